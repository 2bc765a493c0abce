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

// Package rules holds the built-in rewrite rules and the named rule sets the
// default pipeline is made of.
package rules

import (
	"github.com/lf-edge/kuiperopt/internal/plan"
	"github.com/lf-edge/kuiperopt/internal/rule"
	"github.com/lf-edge/kuiperopt/pkg/ast"
)

const (
	ReduceFilterExpression = "ReduceFilterExpression"
	FilterMerge            = "FilterMerge"
	FilterIntoJoin         = "FilterIntoJoin"
	FilterProjectTranspose = "FilterProjectTranspose"
	ProjectRemove          = "ProjectRemove"
	ProjectMerge           = "ProjectMerge"
	UnionMerge             = "UnionMerge"
	FilterToCalc           = "FilterToCalc"
	ProjectToCalc          = "ProjectToCalc"
	CalcMerge              = "CalcMerge"

	TableSourceScanConverter   = "TableSourceScanConverter"
	CalcConverter              = "CalcConverter"
	HashJoinConverter          = "HashJoinConverter"
	NestedLoopJoinConverter    = "NestedLoopJoinConverter"
	GroupAggregateConverter    = "GroupAggregateConverter"
	SortConverter              = "SortConverter"
	RankConverter              = "RankConverter"
	UnionConverter             = "UnionConverter"
	CorrelateConverter         = "CorrelateConverter"
	WatermarkAssignerConverter = "WatermarkAssignerConverter"
	SinkConverter              = "SinkConverter"

	TwoStageAggregate = "TwoStageAggregate"
	WatermarkIntoScan = "WatermarkIntoScan"
)

// ruleBase carries the identity of a rule. Every rule is a distinct pointer
// so that rule sets can tell them apart.
type ruleBase struct {
	name  string
	flags rule.Flags
}

func (r *ruleBase) Name() string {
	return r.name
}

func (r *ruleBase) Flags() rule.Flags {
	return r.flags
}

func single(n plan.Node) []plan.Node {
	return []plan.Node{n}
}

func isLogical(n plan.Node) bool {
	return !plan.IsPhysical(n)
}

func hasAgg(fields ast.Fields) bool {
	for i := range fields {
		if ast.IsAggregate(fields[i].Expr) {
			return true
		}
	}
	return false
}

// inline replaces the references to the output columns of fields by the
// expressions producing them.
func inline(e ast.Expr, fields ast.Fields) ast.Expr {
	if e == nil || fields == nil {
		return e
	}
	return ast.Substitute(e, func(ref *ast.FieldRef) ast.Expr {
		for i := range fields {
			if fields[i].OutputName() == ref.Name {
				return fields[i].Expr
			}
		}
		return nil
	})
}

// inlineFields composes outer over inner while keeping the output names of
// outer.
func inlineFields(outer, inner ast.Fields) ast.Fields {
	if inner == nil {
		return outer
	}
	if outer == nil {
		return inner
	}
	r := make(ast.Fields, len(outer))
	for i := range outer {
		name := outer[i].OutputName()
		f := ast.Field{Name: outer[i].Name, AName: outer[i].AName, Expr: ast.StripParens(inline(outer[i].Expr, inner))}
		if f.OutputName() != name {
			f.AName = name
		}
		r[i] = f
	}
	return r
}
