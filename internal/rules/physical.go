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

// twoStageAggregate splits a shuffled group aggregate into a local
// pre-aggregation before the exchange and a global merge after it. Only
// done in mini-batch mode where the local stage has a batch to reduce.
type twoStageAggregate struct {
	ruleBase
}

func newTwoStageAggregate() rule.Rule {
	return &twoStageAggregate{ruleBase{name: TwoStageAggregate, flags: rule.Flags{Idempotent: true}}}
}

func (r *twoStageAggregate) Matches(node plan.Node, ctx *rule.Context) bool {
	a, ok := node.(*plan.Aggregate)
	if !ok || !plan.IsPhysical(a) || a.Stage != plan.SingleStage || !ctx.Bool(rule.OptMiniBatchEnabled) {
		return false
	}
	if _, ok := a.Children()[0].(*plan.Exchange); !ok {
		return false
	}
	for _, c := range a.Calls {
		if _, ok := ast.IsSplittable(c.Func); !ok {
			return false
		}
	}
	return true
}

func (r *twoStageAggregate) Apply(node plan.Node, ctx *rule.Context) ([]plan.Node, error) {
	a := node.(*plan.Aggregate)
	ex := a.Children()[0]
	in := ex.Children()[0]

	local := plan.NewAggregate(a.GroupKeys, a.Calls, in)
	local.Stage = plan.LocalStage
	lt := inherit(in, "LocalGroupAggregate")
	lt.Collation = nil
	lt.Changelog = plan.InsertOnly
	lt.MiniBatch = a.Traits().MiniBatch

	merges := make([]plan.AggCall, len(a.Calls))
	for i, c := range a.Calls {
		m, _ := ast.IsSplittable(c.Func)
		merges[i] = plan.AggCall{Func: m, Arg: &ast.FieldRef{StreamName: ast.DefaultStream, Name: c.Alias}, Alias: c.Alias}
	}
	global := plan.NewAggregate(a.GroupKeys, merges, plan.NewExchange(ex.Traits().Distribution, local.WithTraits(lt)))
	global.Stage = plan.GlobalStage
	return single(global.WithTraits(a.Traits().With("GlobalGroupAggregate"))), nil
}

// watermarkIntoScan lets the source emit the watermark when the assigner
// sits right on top of it.
type watermarkIntoScan struct {
	ruleBase
}

func newWatermarkIntoScan() rule.Rule {
	return &watermarkIntoScan{ruleBase{name: WatermarkIntoScan, flags: rule.Flags{Idempotent: true}}}
}

func (r *watermarkIntoScan) Matches(node plan.Node, _ *rule.Context) bool {
	w, ok := node.(*plan.WatermarkAssigner)
	if !ok || !plan.IsPhysical(w) {
		return false
	}
	s, ok := w.Children()[0].(*plan.Scan)
	return ok && plan.IsPhysical(s) && s.Watermark == nil
}

func (r *watermarkIntoScan) Apply(node plan.Node, _ *rule.Context) ([]plan.Node, error) {
	w := node.(*plan.WatermarkAssigner)
	s := w.Children()[0].(*plan.Scan)
	t := s.Traits().With(s.Traits().Impl)
	t.TimeAttr = w.RowtimeField
	scan := s.WithWatermark(&plan.Watermark{Field: w.RowtimeField, Delay: w.Delay}).WithTraits(t)
	return single(scan), nil
}
