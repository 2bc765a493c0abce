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
)

// Names of the built-in rule sets.
const (
	PredicateSimplify  = "predicate_simplify"
	FilterRules        = "filter_rules"
	ProjectRules       = "project_rules"
	UnionRules         = "union_rules"
	CalcRules          = "calc_rules"
	PhysicalConversion = "physical_conversion"
	PhysicalRewrite    = "physical_rewrite"
)

// NewRegistry builds the built-in rule sets. A rule shared by several sets is
// the same instance in each, so a union of them fires it once.
func NewRegistry() (*rule.Registry, error) {
	reduce := newReduceFilterExpression()
	filterMerge := newFilterMerge()
	projectRemove := newProjectRemove()

	sets := []struct {
		name  string
		kind  rule.Kind
		rules []rule.Rule
	}{
		{PredicateSimplify, rule.KindLogical, []rule.Rule{reduce}},
		{FilterRules, rule.KindLogical, []rule.Rule{reduce, filterMerge, newFilterIntoJoin(), newFilterProjectTranspose()}},
		{ProjectRules, rule.KindLogical, []rule.Rule{projectRemove, newProjectMerge()}},
		{UnionRules, rule.KindLogical, []rule.Rule{newUnionMerge()}},
		{CalcRules, rule.KindLogical, []rule.Rule{newCalcMerge(), newFilterToCalc(), newProjectToCalc()}},
		{PhysicalConversion, rule.KindConversion, []rule.Rule{
			newConverter(TableSourceScanConverter, convertScan, plan.OpScan),
			newConverter(CalcConverter, convertCalc, plan.OpFilter, plan.OpProject, plan.OpCalc),
			newConverter(HashJoinConverter, convertHashJoin, plan.OpJoin),
			newConverter(NestedLoopJoinConverter, convertNestedLoopJoin, plan.OpJoin),
			newConverter(GroupAggregateConverter, convertAggregate, plan.OpAggregate),
			newConverter(SortConverter, convertSort, plan.OpSort),
			newConverter(RankConverter, convertRank, plan.OpRank),
			newConverter(UnionConverter, convertUnion, plan.OpUnion),
			newConverter(CorrelateConverter, convertCorrelate, plan.OpCorrelate),
			newConverter(WatermarkAssignerConverter, convertWatermarkAssigner, plan.OpWatermarkAssigner),
			newConverter(SinkConverter, convertSink, plan.OpSink),
		}},
		{PhysicalRewrite, rule.KindPhysical, []rule.Rule{newTwoStageAggregate(), newWatermarkIntoScan()}},
	}
	reg, err := rule.NewRegistry()
	if err != nil {
		return nil, err
	}
	for _, s := range sets {
		rs, err := rule.NewSet(s.name, s.kind, s.rules...)
		if err != nil {
			return nil, err
		}
		if err := reg.Register(rs); err != nil {
			return nil, err
		}
	}
	return reg, nil
}
