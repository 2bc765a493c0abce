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

package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lf-edge/kuiperopt/internal/plan"
	"github.com/lf-edge/kuiperopt/pkg/ast"
	"github.com/lf-edge/kuiperopt/pkg/errorx"
)

const catalogYaml = `
tables:
  - name: T
    rowCount: 500
    rowtime: ts
    columns:
      - name: a
        type: bigint
      - name: b
        type: string
      - name: ts
        type: datetime
  - name: Orders
    changelog: "I,UB,UA,D"
    primaryKey: [id]
    columns:
      - name: id
        type: bigint
      - name: amount
        type: float
`

func TestLoadCatalog(t *testing.T) {
	p := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(p, []byte(catalogYaml), 0o600))
	c, err := LoadCatalog(p)
	require.NoError(t, err)
	assert.Equal(t, []string{"Orders", "T"}, c.Names())

	tb, ok := c.Table("t")
	require.True(t, ok)
	rt, err := tb.RowType()
	require.NoError(t, err)
	assert.Equal(t, plan.RowType{
		{Table: "T", Name: "a", Type: ast.BIGINT},
		{Table: "T", Name: "b", Type: ast.STRINGS},
		{Table: "T", Name: "ts", Type: ast.DATETIME},
	}, rt)
	assert.Equal(t, plan.InsertOnly, tb.ChangelogMode())
	assert.Equal(t, float64(500), tb.Rows())

	o, ok := c.Table("Orders")
	require.True(t, ok)
	assert.Equal(t, plan.Retract, o.ChangelogMode())
	assert.Equal(t, float64(DefaultRowCount), o.Rows())
	_, ok = c.Table("missing")
	assert.False(t, ok)
}

func TestCatalogValidation(t *testing.T) {
	tests := []struct {
		name  string
		table *Table
		err   string
	}{
		{name: "no name", table: &Table{Columns: []ColumnDef{{Name: "a", Type: "bigint"}}}, err: "table without name"},
		{name: "no columns", table: &Table{Name: "T"}, err: "has no columns"},
		{name: "bad type", table: &Table{Name: "T", Columns: []ColumnDef{{Name: "a", Type: "blob"}}}, err: "unknown data type"},
		{name: "dup column", table: &Table{Name: "T", Columns: []ColumnDef{{Name: "a", Type: "int"}, {Name: "a", Type: "int"}}}, err: "duplicate column a"},
		{name: "bad rowtime", table: &Table{Name: "T", Rowtime: "ts", Columns: []ColumnDef{{Name: "a", Type: "int"}}}, err: "rowtime ts"},
		{name: "bad changelog", table: &Table{Name: "T", Changelog: "X", Columns: []ColumnDef{{Name: "a", Type: "int"}}}, err: "invalid changelog"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewCatalog(tt.table)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.err)
		})
	}
	tb := &Table{Name: "T", Columns: []ColumnDef{{Name: "a", Type: "int"}}}
	_, err := NewCatalog(tb, tb)
	assert.True(t, errorx.IsCode(err, errorx.InvalidPlan))
}

func TestSqliteStore(t *testing.T) {
	store, err := GetSqliteStore(filepath.Join(t.TempDir(), "data"))
	require.NoError(t, err)
	require.NoError(t, store.Open())
	defer store.Close()

	tb := &Table{Name: "T", RowCount: 10, Columns: []ColumnDef{{Name: "a", Type: "bigint"}, {Name: "b", Type: "float"}}}
	require.NoError(t, store.Save(tb))
	require.NoError(t, store.Save(&Table{Name: "S", Columns: []ColumnDef{{Name: "c", Type: "string"}}}))
	assert.Error(t, store.Save(&Table{Name: "bad"}))

	got, ok, err := store.Get("T")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, tb, got)

	_, ok, err = store.Get("missing")
	require.NoError(t, err)
	assert.False(t, ok)

	keys, err := store.Keys()
	require.NoError(t, err)
	assert.Equal(t, []string{"S", "T"}, keys)

	c, err := store.Catalog()
	require.NoError(t, err)
	assert.Equal(t, []string{"S", "T"}, c.Names())

	require.NoError(t, store.Delete("S"))
	err = store.Delete("S")
	assert.True(t, errorx.IsCode(err, errorx.NOT_FOUND))
}
