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

package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const catalogYaml = `
tables:
  - name: T
    columns:
      - {name: a, type: bigint}
      - {name: b, type: string}
      - {name: x, type: float}
      - {name: flag, type: boolean}
  - name: out
    columns:
      - {name: b, type: string}
    changelog: I
`

const planYaml = `
op: Sink
table: out
inputs:
  - op: Project
    fields: [b]
    inputs:
      - op: Filter
        condition: true AND x > 0
        inputs:
          - op: Scan
            table: T
`

func writeFile(t *testing.T, dir, name, content string) string {
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func run(t *testing.T, args ...string) (string, error) {
	var buf bytes.Buffer
	app := newApp(&buf)
	err := app.Run(append([]string{"kuiperopt"}, args...))
	return buf.String(), err
}

func TestExplain(t *testing.T) {
	dir := t.TempDir()
	cat := writeFile(t, dir, "catalog.yaml", catalogYaml)
	p := writeFile(t, dir, "plan.yaml", planYaml)

	out, err := run(t, "explain", "--catalog", cat, p)
	require.NoError(t, err)
	lines := strings.Split(out, "\n")
	require.True(t, len(lines) > 3)
	assert.Equal(t, []string{
		"Sink(table=[out], fields=[b], distribution=[any], changelogMode=[I])",
		"  Calc(select=[b], where=[x > 0], distribution=[any], changelogMode=[I])",
		"    TableSourceScan(table=[T], fields=[a, b, x, flag], distribution=[any], changelogMode=[I])",
	}, lines[:3])
	assert.True(t, strings.HasPrefix(lines[3], "digest: "))
	assert.Contains(t, out, "phase simplify: ")
	assert.Contains(t, out, "phase physical_rewrite: ")
	assert.NotContains(t, out, "warning:")
}

func TestExplainTrace(t *testing.T) {
	dir := t.TempDir()
	cat := writeFile(t, dir, "catalog.yaml", catalogYaml)
	p := writeFile(t, dir, "plan.yaml", planYaml)

	out, err := run(t, "explain", "--catalog", cat, "--trace", p)
	require.NoError(t, err)
	assert.Contains(t, out, "\noptimize ")
	assert.Contains(t, out, "\n  phase simplify ")
	assert.Contains(t, out, "\n  phase physical ")
}

func TestExplainErrors(t *testing.T) {
	dir := t.TempDir()
	cat := writeFile(t, dir, "catalog.yaml", catalogYaml)
	p := writeFile(t, dir, "plan.yaml", `
op: Filter
condition: missing > 0
inputs:
  - op: Scan
    table: T
`)
	_, err := run(t, "explain", "--catalog", cat, p)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "InvalidPlan")

	_, err = run(t, "explain", "--catalog", cat, filepath.Join(dir, "none.yaml"))
	require.Error(t, err)

	_, err = run(t, "explain", "--catalog", cat)
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	dir := t.TempDir()
	good := writeFile(t, dir, "good.yaml", `
phases:
  - name: simplify
    rulesets: [predicate_simplify]
    strategy: fixpoint
  - name: physical
    rulesets: [physical_conversion]
    strategy: cost-directed
`)
	out, err := run(t, "validate", good)
	require.NoError(t, err)
	assert.Equal(t, "simplify: fixpoint logical -> logical\nphysical: cost-directed logical -> physical\n", out)

	bad := writeFile(t, dir, "bad.yaml", `
phases:
  - name: physical
    rulesets: [physical_conversion]
    strategy: fixpoint
`)
	_, err = run(t, "validate", bad)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PipelineValidationError")
}

func TestRuleSets(t *testing.T) {
	out, err := run(t, "rulesets")
	require.NoError(t, err)
	assert.Contains(t, out, "predicate_simplify (logical): ReduceFilterExpression\n")
	assert.Contains(t, out, "physical_conversion (conversion): ")
}

func TestCatalogImport(t *testing.T) {
	dir := t.TempDir()
	cat := writeFile(t, dir, "catalog.yaml", catalogYaml)
	cfg := writeFile(t, dir, "kuiperopt.yaml", "catalog:\n  sqlite: "+filepath.Join(dir, "data")+"\n")
	p := writeFile(t, dir, "plan.yaml", planYaml)

	out, err := run(t, "-c", cfg, "catalog", "import", cat)
	require.NoError(t, err)
	assert.Equal(t, "table T saved\ntable out saved\n", out)

	// the plan now resolves its tables from the sqlite catalog
	out, err = run(t, "-c", cfg, "explain", p)
	require.NoError(t, err)
	assert.Contains(t, out, "TableSourceScan(table=[T]")
}
