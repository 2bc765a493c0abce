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

type filterToCalc struct {
	ruleBase
}

func newFilterToCalc() rule.Rule {
	return &filterToCalc{ruleBase{name: FilterToCalc, flags: rule.Flags{Reapply: true}}}
}

func (r *filterToCalc) Matches(node plan.Node, _ *rule.Context) bool {
	_, ok := node.(*plan.Filter)
	return ok && isLogical(node)
}

func (r *filterToCalc) Apply(node plan.Node, _ *rule.Context) ([]plan.Node, error) {
	f := node.(*plan.Filter)
	return single(plan.NewCalc(nil, f.Condition, f.Children()[0])), nil
}

type projectToCalc struct {
	ruleBase
}

func newProjectToCalc() rule.Rule {
	return &projectToCalc{ruleBase{name: ProjectToCalc, flags: rule.Flags{Reapply: true}}}
}

func (r *projectToCalc) Matches(node plan.Node, _ *rule.Context) bool {
	p, ok := node.(*plan.Project)
	return ok && isLogical(p) && !hasAgg(p.Fields)
}

func (r *projectToCalc) Apply(node plan.Node, _ *rule.Context) ([]plan.Node, error) {
	p := node.(*plan.Project)
	return single(plan.NewCalc(p.Fields, nil, p.Children()[0])), nil
}

// calcMerge folds the filter, projection or calc below a calc into it. It is
// listed first so that a calc absorbs its input before that input is turned
// into a calc of its own.
type calcMerge struct {
	ruleBase
}

func newCalcMerge() rule.Rule {
	return &calcMerge{ruleBase{name: CalcMerge, flags: rule.Flags{
		Reapply: true,
		Before:  []string{FilterToCalc, ProjectToCalc},
	}}}
}

// asCalc reads a logical filter, projection or calc as a projection and a
// condition.
func asCalc(n plan.Node) (ast.Fields, ast.Expr, bool) {
	if !isLogical(n) {
		return nil, nil, false
	}
	switch p := n.(type) {
	case *plan.Filter:
		return nil, p.Condition, true
	case *plan.Project:
		if hasAgg(p.Fields) {
			return nil, nil, false
		}
		return p.Fields, nil, true
	case *plan.Calc:
		return p.Projection, p.Condition, true
	}
	return nil, nil, false
}

func (r *calcMerge) Matches(node plan.Node, _ *rule.Context) bool {
	c, ok := node.(*plan.Calc)
	if !ok || !isLogical(c) {
		return false
	}
	_, _, ok = asCalc(c.Children()[0])
	return ok
}

func (r *calcMerge) Apply(node plan.Node, _ *rule.Context) ([]plan.Node, error) {
	c := node.(*plan.Calc)
	in := c.Children()[0]
	proj, cond, _ := asCalc(in)
	merged := plan.NewCalc(inlineFields(c.Projection, proj), ast.Combine(cond, inline(c.Condition, proj)), in.Children()[0])
	return single(merged), nil
}
