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

package rules

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lf-edge/kuiperopt/internal/catalog"
	"github.com/lf-edge/kuiperopt/internal/plan"
	"github.com/lf-edge/kuiperopt/internal/rule"
	"github.com/lf-edge/kuiperopt/pkg/ast"
)

func testContext(t *testing.T, options map[string]any) *rule.Context {
	cat, err := catalog.NewCatalog(
		&catalog.Table{Name: "T", Columns: []catalog.ColumnDef{{Name: "a", Type: "bigint"}, {Name: "b", Type: "string"}, {Name: "x", Type: "float"}, {Name: "flag", Type: "boolean"}}},
		&catalog.Table{Name: "S", Columns: []catalog.ColumnDef{{Name: "id", Type: "bigint"}, {Name: "v", Type: "float"}}},
		&catalog.Table{Name: "E", Columns: []catalog.ColumnDef{{Name: "id", Type: "bigint"}, {Name: "ts", Type: "datetime"}}, Rowtime: "ts"},
		&catalog.Table{Name: "out", Columns: []catalog.ColumnDef{{Name: "b", Type: "string"}}, Changelog: "I"},
	)
	require.NoError(t, err)
	return &rule.Context{Phase: "physical", Catalog: cat, Options: options}
}

func convert(t *testing.T, name string, n plan.Node, ctx *rule.Context) []plan.Node {
	t.Helper()
	reg, err := NewRegistry()
	require.NoError(t, err)
	set, _ := reg.Get(PhysicalConversion)
	for _, r := range set.Rules() {
		if r.Name() == name {
			require.True(t, r.Matches(n, ctx))
			out, err := r.Apply(n, ctx)
			require.NoError(t, err)
			for _, o := range out {
				assert.True(t, n.RowType().Equal(o.RowType()))
			}
			return out
		}
	}
	require.Failf(t, "rule not found", "%s", name)
	return nil
}

func physicalScan(t *testing.T, s *plan.Scan, ctx *rule.Context) plan.Node {
	out := convert(t, TableSourceScanConverter, s, ctx)
	require.Len(t, out, 1)
	return out[0]
}

func TestConvertScan(t *testing.T) {
	ctx := testContext(t, map[string]any{rule.OptMiniBatchEnabled: true, rule.OptMiniBatchInterval: "1s"})
	assert.Equal(t, "TableSourceScan(table=[T], fields=[a, b, x, flag], distribution=[any], changelogMode=[I], miniBatch=[1s])", physicalScan(t, tableT(), ctx).Explain())

	e := plan.NewScan("E", plan.RowType{{Table: "E", Name: "id", Type: ast.BIGINT}, {Table: "E", Name: "ts", Type: ast.DATETIME}})
	assert.Equal(t, "TableSourceScan(table=[E], fields=[id, ts], distribution=[any], changelogMode=[I], rowtime=[ts])", physicalScan(t, e, testContext(t, nil)).Explain())
}

func TestConvertJoin(t *testing.T) {
	ctx := testContext(t, nil)
	join := plan.NewJoin(plan.InnerJoin, parse(t, "a = id"), physicalScan(t, tableT(), ctx), physicalScan(t, tableS(), ctx))
	assert.False(t, newConverter(HashJoinConverter, convertHashJoin, plan.OpJoin).Matches(plan.NewJoin(plan.InnerJoin, parse(t, "a = id"), tableT(), tableS()), ctx))

	hash := convert(t, HashJoinConverter, join, ctx)
	require.Len(t, hash, 1)
	assert.Equal(t, "HashJoin(type=[inner], condition=[a = id], distribution=[hash[a]], changelogMode=[I])\n"+
		"  Exchange(distribution=[hash[a]], changelogMode=[I])\n"+
		"    TableSourceScan(table=[T], fields=[a, b, x, flag], distribution=[any], changelogMode=[I])\n"+
		"  Exchange(distribution=[hash[id]], changelogMode=[I])\n"+
		"    TableSourceScan(table=[S], fields=[id, v], distribution=[any], changelogMode=[I])", explain(t, hash[0]))

	nl := convert(t, NestedLoopJoinConverter, join, ctx)
	require.Len(t, nl, 1)
	assert.Equal(t, "NestedLoopJoin(type=[inner], condition=[a = id], distribution=[any], changelogMode=[I])\n"+
		"  TableSourceScan(table=[T], fields=[a, b, x, flag], distribution=[any], changelogMode=[I])\n"+
		"  Exchange(distribution=[broadcast], changelogMode=[I])\n"+
		"    TableSourceScan(table=[S], fields=[id, v], distribution=[any], changelogMode=[I])", explain(t, nl[0]))

	// no equality, no hash join
	theta := plan.NewJoin(plan.LeftJoin, parse(t, "a < id"), join.Left(), join.Right())
	assert.Empty(t, convert(t, HashJoinConverter, theta, ctx))
	nl = convert(t, NestedLoopJoinConverter, theta, ctx)
	require.Len(t, nl, 1)
	assert.Equal(t, plan.Retract, nl[0].Traits().Changelog)
}

func TestConvertNestedLoopJoinTypes(t *testing.T) {
	ctx := testContext(t, nil)
	l, r := physicalScan(t, tableT(), ctx), physicalScan(t, tableS(), ctx)
	tests := []struct {
		jt    plan.JoinType
		dist  string
		left  string
		right string
	}{
		{plan.InnerJoin, "any", "any", "broadcast"},
		{plan.LeftJoin, "any", "any", "broadcast"},
		{plan.SemiJoin, "any", "any", "broadcast"},
		{plan.AntiJoin, "any", "any", "broadcast"},
		{plan.RightJoin, "single", "single", "single"},
		{plan.FullJoin, "single", "single", "single"},
	}
	for _, tt := range tests {
		t.Run(tt.jt.String(), func(t *testing.T) {
			out := convert(t, NestedLoopJoinConverter, plan.NewJoin(tt.jt, parse(t, "a < id"), l, r), ctx)
			require.Len(t, out, 1)
			j := out[0]
			assert.Equal(t, tt.dist, j.Traits().Distribution.String())
			left, right := j.Children()[0], j.Children()[1]
			assert.Equal(t, tt.left, left.Traits().Distribution.String())
			assert.Equal(t, tt.right, right.Traits().Distribution.String())
			if tt.left == "any" {
				assert.Same(t, l, left)
			} else {
				assert.Equal(t, plan.OpExchange, left.Op())
			}
			assert.Equal(t, plan.OpExchange, right.Op())
		})
	}
}

func TestConvertCalc(t *testing.T) {
	ctx := testContext(t, nil)
	scan := physicalScan(t, tableT(), ctx)
	hashed := plan.NewExchange(plan.Hash("a"), scan)
	calc := plan.NewCalc(ast.Fields{{Expr: ref("a"), AName: "k"}, {Expr: ref("x")}}, parse(t, "x > 0"), hashed)
	out := convert(t, CalcConverter, calc, ctx)
	require.Len(t, out, 1)
	assert.Equal(t, "Calc(select=[a AS k, x], where=[x > 0], distribution=[hash[k]], changelogMode=[I])", out[0].Explain())

	// the key is projected away
	p := plan.NewProject(ast.Fields{{Expr: ref("x")}}, hashed)
	out = convert(t, CalcConverter, p, ctx)
	require.Len(t, out, 1)
	assert.Equal(t, "Calc(select=[x], distribution=[any], changelogMode=[I])", out[0].Explain())
}

func TestTwoStageAggregate(t *testing.T) {
	ctx := testContext(t, map[string]any{rule.OptMiniBatchEnabled: true, rule.OptMiniBatchInterval: time.Second})
	agg := plan.NewAggregate([]string{"b"}, []plan.AggCall{{Func: "count", Alias: "c"}, {Func: "sum", Arg: ref("x"), Alias: "s"}}, physicalScan(t, tableT(), ctx))
	out := convert(t, GroupAggregateConverter, agg, ctx)
	require.Len(t, out, 1)
	assert.Equal(t, "GroupAggregate(groupBy=[b], select=[count(*) AS c, sum(x) AS s], distribution=[hash[b]], changelogMode=[I,UB,UA], miniBatch=[1s])\n"+
		"  Exchange(distribution=[hash[b]], changelogMode=[I], miniBatch=[1s])\n"+
		"    TableSourceScan(table=[T], fields=[a, b, x, flag], distribution=[any], changelogMode=[I], miniBatch=[1s])", explain(t, out[0]))

	two := fire(t, newTwoStageAggregate(), out[0], ctx)
	assert.Equal(t, "GlobalGroupAggregate(groupBy=[b], select=[sum(c) AS c, sum(s) AS s], stage=[global], distribution=[hash[b]], changelogMode=[I,UB,UA], miniBatch=[1s])\n"+
		"  Exchange(distribution=[hash[b]], changelogMode=[I], miniBatch=[1s])\n"+
		"    LocalGroupAggregate(groupBy=[b], select=[count(*) AS c, sum(x) AS s], stage=[local], distribution=[any], changelogMode=[I], miniBatch=[1s])\n"+
		"      TableSourceScan(table=[T], fields=[a, b, x, flag], distribution=[any], changelogMode=[I], miniBatch=[1s])", explain(t, two))
	assert.False(t, newTwoStageAggregate().Matches(two, ctx))

	// avg cannot be merged
	avg := plan.NewAggregate([]string{"b"}, []plan.AggCall{{Func: "avg", Arg: ref("x"), Alias: "m"}}, physicalScan(t, tableT(), ctx))
	out = convert(t, GroupAggregateConverter, avg, ctx)
	assert.False(t, newTwoStageAggregate().Matches(out[0], ctx))

	// no mini-batch, no split
	assert.False(t, newTwoStageAggregate().Matches(out[0], testContext(t, nil)))
}

func TestConvertSink(t *testing.T) {
	ctx := testContext(t, nil)
	scan := physicalScan(t, tableT(), ctx)
	proj := convert(t, CalcConverter, plan.NewProject(ast.Fields{{Expr: ref("b")}}, scan), ctx)[0]
	out := convert(t, SinkConverter, plan.NewSink("out", proj), ctx)
	require.Len(t, out, 1)
	assert.Equal(t, "Sink(table=[out], fields=[b], distribution=[any], changelogMode=[I])", out[0].Explain())

	agg := convert(t, GroupAggregateConverter, plan.NewAggregate([]string{"b"}, nil, scan), ctx)[0]
	// the sink only accepts inserts
	assert.Empty(t, convert(t, SinkConverter, plan.NewSink("out", agg), ctx))
	// unknown sinks take anything
	assert.Len(t, convert(t, SinkConverter, plan.NewSink("console", agg), ctx), 1)
}

func TestWatermarkIntoScan(t *testing.T) {
	ctx := testContext(t, nil)
	e := plan.NewScan("E", plan.RowType{{Table: "E", Name: "id", Type: ast.BIGINT}, {Table: "E", Name: "ts", Type: ast.DATETIME}})
	w := convert(t, WatermarkAssignerConverter, plan.NewWatermarkAssigner("ts", 5*time.Second, physicalScan(t, e, ctx)), ctx)[0]
	out := fire(t, newWatermarkIntoScan(), w, ctx)
	assert.Equal(t, "TableSourceScan(table=[E], fields=[id, ts], watermark=[ts - 5s], distribution=[any], changelogMode=[I], rowtime=[ts])", out.Explain())
	assert.Empty(t, out.Children())
}
