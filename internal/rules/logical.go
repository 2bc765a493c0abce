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
	"github.com/lf-edge/kuiperopt/internal/plan"
	"github.com/lf-edge/kuiperopt/internal/rule"
	"github.com/lf-edge/kuiperopt/pkg/ast"
)

// reduceFilterExpression simplifies the filter predicate and removes filters
// which always hold.
type reduceFilterExpression struct {
	ruleBase
}

func newReduceFilterExpression() rule.Rule {
	return &reduceFilterExpression{ruleBase{name: ReduceFilterExpression}}
}

func (r *reduceFilterExpression) Matches(node plan.Node, _ *rule.Context) bool {
	f, ok := node.(*plan.Filter)
	if !ok || !isLogical(f) {
		return false
	}
	if b, ok := f.Condition.(*ast.BooleanLiteral); ok {
		return b.Val
	}
	return !ast.Equal(Simplify(f.Condition), f.Condition)
}

func (r *reduceFilterExpression) Apply(node plan.Node, _ *rule.Context) ([]plan.Node, error) {
	f := node.(*plan.Filter)
	cond := Simplify(f.Condition)
	if b, ok := cond.(*ast.BooleanLiteral); ok && b.Val {
		return single(f.Children()[0]), nil
	}
	return single(plan.NewFilter(cond, f.Children()[0])), nil
}

// filterMerge combines two adjacent filters into one.
type filterMerge struct {
	ruleBase
}

func newFilterMerge() rule.Rule {
	return &filterMerge{ruleBase{name: FilterMerge}}
}

func (r *filterMerge) Matches(node plan.Node, _ *rule.Context) bool {
	f, ok := node.(*plan.Filter)
	if !ok || !isLogical(f) {
		return false
	}
	c, ok := f.Children()[0].(*plan.Filter)
	return ok && isLogical(c)
}

func (r *filterMerge) Apply(node plan.Node, _ *rule.Context) ([]plan.Node, error) {
	f := node.(*plan.Filter)
	c := f.Children()[0].(*plan.Filter)
	return single(plan.NewFilter(ast.Combine(c.Condition, f.Condition), c.Children()[0])), nil
}

// filterIntoJoin moves the filter above an inner join into it. Conjuncts
// reading only one side are pushed below the join.
type filterIntoJoin struct {
	ruleBase
}

func newFilterIntoJoin() rule.Rule {
	return &filterIntoJoin{ruleBase{name: FilterIntoJoin, flags: rule.Flags{Idempotent: true}}}
}

func (r *filterIntoJoin) Matches(node plan.Node, _ *rule.Context) bool {
	f, ok := node.(*plan.Filter)
	if !ok || !isLogical(f) {
		return false
	}
	j, ok := f.Children()[0].(*plan.Join)
	return ok && isLogical(j) && j.Type == plan.InnerJoin
}

type side int

const (
	sideNone side = iota
	sideLeft
	sideRight
	sideBoth
)

func sideOf(e ast.Expr, l, r plan.RowType) side {
	s := sideNone
	for _, ref := range ast.FieldRefs(e) {
		_, inL := l.Resolve(ref)
		_, inR := r.Resolve(ref)
		switch {
		case inL && !inR:
			s |= sideLeft
		case inR && !inL:
			s |= sideRight
		default:
			return sideBoth
		}
	}
	return s
}

func (r *filterIntoJoin) Apply(node plan.Node, _ *rule.Context) ([]plan.Node, error) {
	f := node.(*plan.Filter)
	j := f.Children()[0].(*plan.Join)
	left, right := j.Left(), j.Right()
	var lc, rc, rest []ast.Expr
	for _, c := range ast.Conjuncts(f.Condition) {
		switch sideOf(c, left.RowType(), right.RowType()) {
		case sideLeft:
			lc = append(lc, c)
		case sideRight:
			rc = append(rc, c)
		default:
			rest = append(rest, c)
		}
	}
	if len(lc) > 0 {
		left = plan.NewFilter(ast.Combine(lc...), left)
	}
	if len(rc) > 0 {
		right = plan.NewFilter(ast.Combine(rc...), right)
	}
	cond := ast.Combine(append([]ast.Expr{j.Condition}, rest...)...)
	return single(plan.NewJoin(j.Type, cond, left, right)), nil
}

// filterProjectTranspose pushes a filter below a projection, rewriting the
// predicate in terms of the projection input.
type filterProjectTranspose struct {
	ruleBase
}

func newFilterProjectTranspose() rule.Rule {
	return &filterProjectTranspose{ruleBase{name: FilterProjectTranspose}}
}

func (r *filterProjectTranspose) Matches(node plan.Node, _ *rule.Context) bool {
	f, ok := node.(*plan.Filter)
	if !ok || !isLogical(f) {
		return false
	}
	p, ok := f.Children()[0].(*plan.Project)
	return ok && isLogical(p) && !hasAgg(p.Fields)
}

func (r *filterProjectTranspose) Apply(node plan.Node, _ *rule.Context) ([]plan.Node, error) {
	f := node.(*plan.Filter)
	p := f.Children()[0].(*plan.Project)
	pushed := plan.NewFilter(inline(f.Condition, p.Fields), p.Children()[0])
	return single(plan.NewProject(p.Fields, pushed)), nil
}

// projectRemove drops a projection which outputs its input unchanged.
type projectRemove struct {
	ruleBase
}

func newProjectRemove() rule.Rule {
	return &projectRemove{ruleBase{name: ProjectRemove}}
}

func (r *projectRemove) Matches(node plan.Node, _ *rule.Context) bool {
	p, ok := node.(*plan.Project)
	if !ok || !isLogical(p) {
		return false
	}
	return isIdentity(p.Fields, p.Children()[0].RowType())
}

func (r *projectRemove) Apply(node plan.Node, _ *rule.Context) ([]plan.Node, error) {
	return single(node.Children()[0]), nil
}

func isIdentity(fields ast.Fields, in plan.RowType) bool {
	if len(fields) != len(in) {
		return false
	}
	for i := range fields {
		ref, ok := fields[i].Expr.(*ast.FieldRef)
		if !ok || fields[i].OutputName() != in[i].Name {
			return false
		}
		table := ""
		if ref.StreamName != ast.DefaultStream {
			table = string(ref.StreamName)
		}
		if in.IndexOf(table, ref.Name) != i {
			return false
		}
	}
	return true
}

// projectMerge composes two adjacent projections.
type projectMerge struct {
	ruleBase
}

func newProjectMerge() rule.Rule {
	return &projectMerge{ruleBase{name: ProjectMerge}}
}

func (r *projectMerge) Matches(node plan.Node, _ *rule.Context) bool {
	p, ok := node.(*plan.Project)
	if !ok || !isLogical(p) {
		return false
	}
	c, ok := p.Children()[0].(*plan.Project)
	return ok && isLogical(c) && !hasAgg(c.Fields)
}

func (r *projectMerge) Apply(node plan.Node, _ *rule.Context) ([]plan.Node, error) {
	p := node.(*plan.Project)
	c := p.Children()[0].(*plan.Project)
	return single(plan.NewProject(inlineFields(p.Fields, c.Fields), c.Children()[0])), nil
}

// unionMerge flattens a union reading another union of the same kind.
type unionMerge struct {
	ruleBase
}

func newUnionMerge() rule.Rule {
	return &unionMerge{ruleBase{name: UnionMerge}}
}

func (r *unionMerge) Matches(node plan.Node, _ *rule.Context) bool {
	u, ok := node.(*plan.Union)
	if !ok || !isLogical(u) {
		return false
	}
	for _, c := range u.Children() {
		if cu, ok := c.(*plan.Union); ok && isLogical(cu) && cu.All == u.All {
			return true
		}
	}
	return false
}

func (r *unionMerge) Apply(node plan.Node, _ *rule.Context) ([]plan.Node, error) {
	u := node.(*plan.Union)
	var inputs []plan.Node
	for _, c := range u.Children() {
		if cu, ok := c.(*plan.Union); ok && isLogical(cu) && cu.All == u.All {
			inputs = append(inputs, cu.Children()...)
			continue
		}
		inputs = append(inputs, c)
	}
	return single(plan.NewUnion(u.All, inputs...)), nil
}
