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

package cost

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lf-edge/kuiperopt/internal/catalog"
	"github.com/lf-edge/kuiperopt/internal/plan"
	"github.com/lf-edge/kuiperopt/pkg/ast"
)

func ref(t, n string) *ast.FieldRef { return &ast.FieldRef{StreamName: ast.StreamName(t), Name: n} }

func testCatalog(t *testing.T) *catalog.Catalog {
	c, err := catalog.NewCatalog(
		&catalog.Table{Name: "T", RowCount: 1000, Columns: []catalog.ColumnDef{{Name: "a", Type: "bigint"}, {Name: "b", Type: "float"}}},
		&catalog.Table{Name: "S", RowCount: 10, Columns: []catalog.ColumnDef{{Name: "a", Type: "bigint"}}},
	)
	require.NoError(t, err)
	return c
}

func scan(t *testing.T, c *catalog.Catalog, name string) *plan.Scan {
	tb, ok := c.Table(name)
	require.True(t, ok)
	rt, err := tb.RowType()
	require.NoError(t, err)
	return plan.NewScan(tb.Name, rt)
}

func TestSelectivity(t *testing.T) {
	tests := []struct {
		cond string
		e    ast.Expr
		sel  float64
	}{
		{cond: "nil", e: nil, sel: 1},
		{cond: "a = 1", e: &ast.BinaryExpr{OP: ast.EQ, LHS: ref("", "a"), RHS: &ast.IntegerLiteral{Val: 1}}, sel: 0.15},
		{cond: "a > 1 AND a < 5", e: &ast.BinaryExpr{OP: ast.AND,
			LHS: &ast.BinaryExpr{OP: ast.GT, LHS: ref("", "a"), RHS: &ast.IntegerLiteral{Val: 1}},
			RHS: &ast.BinaryExpr{OP: ast.LT, LHS: ref("", "a"), RHS: &ast.IntegerLiteral{Val: 5}}}, sel: 0.25},
		{cond: "NOT a = 1", e: &ast.UnaryExpr{OP: ast.NOT, Expr: &ast.BinaryExpr{OP: ast.EQ, LHS: ref("", "a"), RHS: &ast.IntegerLiteral{Val: 1}}}, sel: 0.85},
		{cond: "false", e: &ast.BooleanLiteral{}, sel: 0},
		{cond: "udf", e: &ast.Call{Name: "f"}, sel: 0.25},
	}
	for _, tt := range tests {
		t.Run(tt.cond, func(t *testing.T) {
			assert.InDelta(t, tt.sel, Selectivity(tt.e), 1e-9)
		})
	}
}

func TestEstimator(t *testing.T) {
	c := testCatalog(t)
	ts, ss := scan(t, c, "T"), scan(t, c, "S")
	est := NewEstimator(c)
	assert.Equal(t, 1000.0, est.Rows(ts))
	assert.Equal(t, 10.0, est.Rows(ss))

	f := plan.NewFilter(&ast.BinaryExpr{OP: ast.EQ, LHS: ref("", "a"), RHS: &ast.IntegerLiteral{Val: 1}}, ts)
	assert.InDelta(t, 150.0, est.Rows(f), 1e-9)

	j := plan.NewJoin(plan.InnerJoin, &ast.BinaryExpr{OP: ast.EQ, LHS: ref("T", "a"), RHS: ref("S", "a")}, ts, ss)
	assert.Equal(t, 1000.0, est.Rows(j))
	cross := plan.NewJoin(plan.InnerJoin, nil, ts, ss)
	assert.Equal(t, 10000.0, est.Rows(cross))

	agg := plan.NewAggregate(nil, []plan.AggCall{{Func: "count", Alias: "c"}}, ts)
	assert.Equal(t, 1.0, est.Rows(agg))
	grouped := plan.NewAggregate([]string{"a"}, []plan.AggCall{{Func: "count", Alias: "c"}}, ts)
	assert.Equal(t, 100.0, est.Rows(grouped))

	u := plan.NewUnion(true, ts, ts)
	assert.Equal(t, 2000.0, est.Rows(u))
	assert.Equal(t, 5.0, est.Rows(plan.NewSort([]plan.SortKey{{Field: "a"}}, 5, ts)))

	// unknown tables fall back to the default
	assert.Equal(t, float64(catalog.DefaultRowCount), NewEstimator(nil).Rows(ts))
}

func TestDefaultModel(t *testing.T) {
	c := testCatalog(t)
	ts, ss := scan(t, c, "T"), scan(t, c, "S")
	tr := &plan.Traits{Changelog: plan.InsertOnly}
	pts := ts.WithTraits(tr.With("TableSourceScan"))
	pss := ss.WithTraits(tr.With("TableSourceScan"))
	cond := &ast.BinaryExpr{OP: ast.EQ, LHS: ref("T", "a"), RHS: ref("S", "a")}
	hash := plan.NewJoin(plan.InnerJoin, cond, pts, pss).WithTraits(tr.With("HashJoin"))
	nl := plan.NewJoin(plan.InnerJoin, cond, pts, pss).WithTraits(tr.With("NestedLoopJoin"))
	m := DefaultModel{}
	est := NewEstimator(c)
	hc, nc := m.SelfCost(hash, est), m.SelfCost(nl, est)
	assert.Equal(t, 1010.0, hc.CPU)
	assert.Equal(t, 10000.0, nc.CPU)
	assert.True(t, hc.Less(nc))

	ex := plan.NewExchange(plan.Hash("a"), pts)
	bc := plan.NewExchange(plan.Broadcast(), pts)
	assert.Equal(t, 2000.0, m.SelfCost(ex, est).Network)
	assert.Equal(t, 8000.0, m.SelfCost(bc, est).Network)

	sum := Cost{Rows: 3, CPU: 1, Network: 1, Memory: 2}.Add(Cost{Rows: 7, CPU: 2})
	assert.Equal(t, Cost{Rows: 3, CPU: 3, Network: 1, Memory: 2}, sum)
	assert.Equal(t, 8.0, sum.Value())
	assert.Equal(t, "{3 rows, 3 cpu, 1 net, 2 mem}", sum.String())

	fixed := ModelFunc(func(plan.Node, *Estimator) Cost { return Cost{CPU: 7} })
	assert.Equal(t, 7.0, fixed.SelfCost(hash, est).Value())
}
