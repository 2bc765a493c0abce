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
	"slices"
	"time"

	"github.com/lf-edge/kuiperopt/internal/plan"
	"github.com/lf-edge/kuiperopt/internal/rule"
	"github.com/lf-edge/kuiperopt/pkg/ast"
)

// converter turns a logical operator whose inputs are already physical into
// physical alternatives.
type converter struct {
	ruleBase
	ops     []plan.OpType
	convert func(node plan.Node, ctx *rule.Context) []plan.Node
}

func newConverter(name string, convert func(plan.Node, *rule.Context) []plan.Node, ops ...plan.OpType) rule.Rule {
	return &converter{ruleBase: ruleBase{name: name}, ops: ops, convert: convert}
}

func (c *converter) Matches(node plan.Node, _ *rule.Context) bool {
	if plan.IsPhysical(node) || !slices.Contains(c.ops, node.Op()) {
		return false
	}
	for _, ch := range node.Children() {
		if !plan.IsPhysical(ch) {
			return false
		}
	}
	return true
}

func (c *converter) Apply(node plan.Node, ctx *rule.Context) ([]plan.Node, error) {
	return c.convert(node, ctx), nil
}

// ensure shuffles the physical input unless it is already laid out as
// required.
func ensure(n plan.Node, d plan.Distribution) plan.Node {
	if n.Traits().Distribution.Satisfies(d) {
		return n
	}
	return plan.NewExchange(d, n)
}

func keyed(keys []string) plan.Distribution {
	if len(keys) == 0 {
		return plan.Singleton()
	}
	return plan.Hash(keys...)
}

func miniBatch(ctx *rule.Context) time.Duration {
	if !ctx.Bool(rule.OptMiniBatchEnabled) {
		return 0
	}
	return ctx.Duration(rule.OptMiniBatchInterval)
}

func inherit(in plan.Node, impl string) *plan.Traits {
	return in.Traits().With(impl)
}

func convertScan(node plan.Node, ctx *rule.Context) []plan.Node {
	s := node.(*plan.Scan)
	t := &plan.Traits{Impl: "TableSourceScan", Distribution: plan.AnyDistribution(), Changelog: plan.InsertOnly}
	if tbl, ok := ctx.Table(s.Table); ok {
		t.Changelog = tbl.ChangelogMode()
		t.TimeAttr = tbl.Rowtime
	}
	if s.Watermark != nil {
		t.TimeAttr = s.Watermark.Field
	}
	t.MiniBatch = miniBatch(ctx)
	return single(s.WithTraits(t))
}

// renameTraits maps the input traits through a projection. Keys which do
// not survive the projection lose the layout they describe.
func renameTraits(t *plan.Traits, fields ast.Fields) *plan.Traits {
	if fields == nil {
		return t
	}
	names := make(map[string]string, len(fields))
	for i := range fields {
		if ref, ok := fields[i].Expr.(*ast.FieldRef); ok {
			if _, dup := names[ref.Name]; !dup {
				names[ref.Name] = fields[i].OutputName()
			}
		}
	}
	if t.Distribution.Type == plan.DistHash {
		keys := make([]string, 0, len(t.Distribution.Keys))
		for _, k := range t.Distribution.Keys {
			n, ok := names[k]
			if !ok {
				keys = nil
				break
			}
			keys = append(keys, n)
		}
		if keys == nil {
			t.Distribution = plan.AnyDistribution()
		} else {
			t.Distribution = plan.Hash(keys...)
		}
	}
	var coll []plan.SortKey
	for _, k := range t.Collation {
		n, ok := names[k.Field]
		if !ok {
			break
		}
		coll = append(coll, plan.SortKey{Field: n, Desc: k.Desc})
	}
	t.Collation = coll
	if t.TimeAttr != "" {
		t.TimeAttr = names[t.TimeAttr]
	}
	return t
}

func convertCalc(node plan.Node, _ *rule.Context) []plan.Node {
	in := node.Children()[0]
	proj, cond, ok := asCalc(node)
	if !ok {
		return nil
	}
	t := renameTraits(inherit(in, "Calc"), proj)
	return single(plan.NewCalc(proj, cond, in).WithTraits(t))
}

func joinChangelog(j *plan.Join) plan.ChangelogMode {
	l, r := j.Left().Traits().Changelog, j.Right().Traits().Changelog
	if l.IsInsertOnly() && r.IsInsertOnly() && (j.Type == plan.InnerJoin || j.Type == plan.SemiJoin) {
		return plan.InsertOnly
	}
	return plan.Retract
}

func joinTimeAttr(j *plan.Join) string {
	// a regular join keeps no watermark unless both sides agree on one
	l, r := j.Left().Traits().TimeAttr, j.Right().Traits().TimeAttr
	if l == r {
		return l
	}
	return ""
}

func convertHashJoin(node plan.Node, ctx *rule.Context) []plan.Node {
	j := node.(*plan.Join)
	lk, rk := j.EquiKeys()
	if len(lk) == 0 {
		return nil
	}
	left, right := ensure(j.Left(), plan.Hash(lk...)), ensure(j.Right(), plan.Hash(rk...))
	p := plan.NewJoin(j.Type, j.Condition, left, right)
	t := &plan.Traits{
		Impl:         "HashJoin",
		Distribution: plan.Hash(lk...),
		Changelog:    joinChangelog(j),
		TimeAttr:     joinTimeAttr(j),
		MiniBatch:    miniBatch(ctx),
	}
	return single(p.WithTraits(t))
}

func convertNestedLoopJoin(node plan.Node, ctx *rule.Context) []plan.Node {
	j := node.(*plan.Join)
	left, right := j.Left(), ensure(j.Right(), plan.Broadcast())
	dist := left.Traits().Distribution
	// unmatched right rows must be emitted by a single instance
	if j.Type == plan.RightJoin || j.Type == plan.FullJoin {
		dist = plan.Singleton()
		left, right = ensure(j.Left(), dist), ensure(j.Right(), dist)
	}
	p := plan.NewJoin(j.Type, j.Condition, left, right)
	t := &plan.Traits{
		Impl:         "NestedLoopJoin",
		Distribution: dist,
		Changelog:    joinChangelog(j),
		TimeAttr:     joinTimeAttr(j),
		MiniBatch:    miniBatch(ctx),
	}
	return single(p.WithTraits(t))
}

func convertAggregate(node plan.Node, ctx *rule.Context) []plan.Node {
	a := node.(*plan.Aggregate)
	d := keyed(a.GroupKeys)
	in := ensure(a.Children()[0], d)
	mode := plan.Insert | plan.UpdateBefore | plan.UpdateAfter
	if !in.Traits().Changelog.IsInsertOnly() {
		mode = plan.Retract
	}
	t := &plan.Traits{
		Impl:         "GroupAggregate",
		Distribution: d,
		Changelog:    mode,
		MiniBatch:    miniBatch(ctx),
	}
	return single(a.WithChildren([]plan.Node{in}).WithTraits(t))
}

func convertSort(node plan.Node, _ *rule.Context) []plan.Node {
	s := node.(*plan.Sort)
	in := ensure(s.Children()[0], plan.Singleton())
	t := inherit(in, "Sort")
	t.Distribution = plan.Singleton()
	t.Collation = append([]plan.SortKey(nil), s.Keys...)
	if s.Fetch > 0 {
		// a bounded sort retracts rows pushed out of the top
		t.Changelog = plan.Retract
	}
	return single(s.WithChildren([]plan.Node{in}).WithTraits(t))
}

func convertRank(node plan.Node, _ *rule.Context) []plan.Node {
	r := node.(*plan.Rank)
	d := keyed(r.PartitionKeys)
	in := ensure(r.Children()[0], d)
	t := inherit(in, "Rank")
	t.Distribution = d
	t.Collation = nil
	t.Changelog = plan.Retract
	return single(r.WithChildren([]plan.Node{in}).WithTraits(t))
}

func convertUnion(node plan.Node, _ *rule.Context) []plan.Node {
	u := node.(*plan.Union)
	children := u.Children()
	t := inherit(children[0], "Union")
	t.Collation = nil
	for _, c := range children[1:] {
		ct := c.Traits()
		t.Changelog |= ct.Changelog
		if !ct.Distribution.Satisfies(t.Distribution) || !t.Distribution.Satisfies(ct.Distribution) {
			t.Distribution = plan.AnyDistribution()
		}
		if ct.TimeAttr != t.TimeAttr {
			t.TimeAttr = ""
		}
	}
	if !u.All {
		// a distinct union retracts duplicates it has emitted
		t.Changelog = plan.Retract
	}
	return single(u.WithTraits(t))
}

func convertCorrelate(node plan.Node, _ *rule.Context) []plan.Node {
	in := node.Children()[0]
	return single(node.WithTraits(inherit(in, "Correlate")))
}

func convertWatermarkAssigner(node plan.Node, _ *rule.Context) []plan.Node {
	w := node.(*plan.WatermarkAssigner)
	t := inherit(w.Children()[0], "WatermarkAssigner")
	t.TimeAttr = w.RowtimeField
	return single(w.WithTraits(t))
}

// convertSink refuses to write row kinds the sink table does not declare.
func convertSink(node plan.Node, ctx *rule.Context) []plan.Node {
	s := node.(*plan.Sink)
	in := s.Children()[0]
	if tbl, ok := ctx.Table(s.Table); ok && tbl.Changelog != "" && !tbl.ChangelogMode().Contains(in.Traits().Changelog) {
		return nil
	}
	return single(s.WithTraits(inherit(in, "Sink")))
}
