// Copyright 2026 EMQ Technologies Co., Ltd.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package plancodec

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lf-edge/kuiperopt/internal/catalog"
	"github.com/lf-edge/kuiperopt/pkg/errorx"
)

func testCatalog(t *testing.T) *catalog.Catalog {
	cat, err := catalog.NewCatalog(
		&catalog.Table{Name: "T", Columns: []catalog.ColumnDef{{Name: "a", Type: "bigint"}, {Name: "b", Type: "string"}, {Name: "x", Type: "float"}}},
		&catalog.Table{Name: "S", Columns: []catalog.ColumnDef{{Name: "id", Type: "bigint"}, {Name: "v", Type: "float"}}},
		&catalog.Table{Name: "E", Columns: []catalog.ColumnDef{{Name: "id", Type: "bigint"}, {Name: "ts", Type: "datetime"}}, Rowtime: "ts"},
	)
	require.NoError(t, err)
	return cat
}

func TestDecode(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		exp  string
	}{
		{
			name: "filter",
			doc: `
op: Filter
condition: x > 0
inputs:
  - op: Scan
    table: T
`,
			exp: "Filter(condition=[x > 0])\n  Scan(table=[T], fields=[a, b, x])",
		},
		{
			name: "json",
			doc:  `{"op": "Project", "fields": ["b", "x * 2 AS y"], "inputs": [{"op": "Scan", "table": "T"}]}`,
			exp:  "Project(select=[b, x * 2 AS y])\n  Scan(table=[T], fields=[a, b, x])",
		},
		{
			name: "join",
			doc: `
op: Join
type: left
condition: a = id
inputs:
  - op: Scan
    table: T
  - op: Scan
    table: S
`,
			exp: "Join(type=[left], condition=[a = id])\n  Scan(table=[T], fields=[a, b, x])\n  Scan(table=[S], fields=[id, v])",
		},
		{
			name: "aggregate",
			doc: `
op: Aggregate
groupBy: [b]
calls: ["count(*) AS cnt", "sum(x) AS total"]
inputs:
  - op: Scan
    table: T
`,
			exp: "Aggregate(groupBy=[b], select=[count(*) AS cnt, sum(x) AS total])\n  Scan(table=[T], fields=[a, b, x])",
		},
		{
			name: "shared",
			doc: `
op: Union
all: true
inputs:
  - op: Filter
    condition: x > 0
    inputs:
      - op: Scan
        table: T
        id: t
  - op: Filter
    condition: x < 0
    inputs:
      - ref: t
`,
			exp: "Union(all=[true], union=[a, b, x])\n  Filter(condition=[x > 0])\n    Scan(table=[T], fields=[a, b, x]), reuse_id=[1]\n  Filter(condition=[x < 0])\n    Reused(reference_id=[1])",
		},
		{
			name: "watermark",
			doc: `
op: Sink
table: out
inputs:
  - op: WatermarkAssigner
    rowtime: ts
    delay: 5s
    inputs:
      - op: Scan
        table: E
`,
			exp: "Sink(table=[out], fields=[id, ts])\n  WatermarkAssigner(rowtime=[ts], watermark=[ts - 5s])\n    Scan(table=[E], fields=[id, ts])",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, err := Decode([]byte(tt.doc), testCatalog(t))
			require.NoError(t, err)
			assert.Equal(t, tt.exp, g.Explain())
		})
	}
}

func TestDecodeErrors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		err  string
	}{
		{"unknown op", "op: Window\n", "plan document at root: Window: unknown op"},
		{"missing op", "table: T\n", "plan document at root: missing op"},
		{"unknown table", "op: Scan\ntable: Z\n", "plan document at root: Scan: table Z is not in the catalog"},
		{"unknown ref", "op: Filter\ncondition: x > 0\ninputs:\n  - ref: t\n", "plan document at root.inputs[0]: unknown reference t, ids must be defined before use"},
		{"arity", "op: Filter\ncondition: x > 0\n", "plan document at root: Filter: expects 1 inputs, got 0"},
		{"unused param", "op: Scan\ntable: T\nfilter: x\n", ""},
		{"bad expression", "op: Filter\ncondition: x >\ninputs:\n  - op: Scan\n    table: T\n", ""},
		{"anonymous field", "op: Project\nfields: [x * 2]\ninputs:\n  - op: Scan\n    table: T\n", "plan document at root: Project: field x * 2 needs an alias"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode([]byte(tt.doc), testCatalog(t))
			require.Error(t, err)
			assert.True(t, errorx.IsCode(err, errorx.InvalidPlan), err.Error())
			if tt.err != "" {
				assert.Equal(t, tt.err, err.Error())
			}
		})
	}

	// the decoded plan is validated
	_, err := Decode([]byte("op: Filter\ncondition: nope > 0\ninputs:\n  - op: Scan\n    table: T\n"), testCatalog(t))
	assert.True(t, errorx.IsCode(err, errorx.InvalidPlan))

	_, err = Decode([]byte("op: [Scan"), testCatalog(t))
	assert.True(t, errorx.IsCode(err, errorx.ParserError))
}

func TestDecodeFile(t *testing.T) {
	p := filepath.Join(t.TempDir(), "plan.yaml")
	require.NoError(t, os.WriteFile(p, []byte("op: Scan\ntable: S\n"), 0o644))
	g, err := DecodeFile(p, testCatalog(t))
	require.NoError(t, err)
	assert.Equal(t, "Scan(table=[S], fields=[id, v])", g.Explain())

	_, err = DecodeFile(filepath.Join(t.TempDir(), "none.yaml"), testCatalog(t))
	assert.True(t, errorx.IsCode(err, errorx.IOErr))
}
