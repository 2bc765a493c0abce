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

package optimizer

import (
	"github.com/lf-edge/kuiperopt/internal/cost"
	"github.com/lf-edge/kuiperopt/internal/plan"
	"github.com/lf-edge/kuiperopt/internal/rule"
	"github.com/lf-edge/kuiperopt/pkg/errorx"
)

type choice struct {
	node plan.Node
	cost cost.Cost
}

// costDirected converts the logical plan bottom up. Every conversion rule
// matching a node offers alternatives built on the already chosen physical
// inputs, and the cheapest valid one is kept. A shared logical node is
// converted once so the physical plan shares it too.
func (r *phaseRun) costDirected() error {
	chosen := make(map[plan.Node]choice)
	// total cost of every physical node seen, chosen or not
	totals := make(map[plan.Node]cost.Cost)

	var total func(n plan.Node) cost.Cost
	total = func(n plan.Node) cost.Cost {
		if c, ok := totals[n]; ok {
			return c
		}
		c := r.c.p.model.SelfCost(n, r.c.est)
		for _, ch := range n.Children() {
			c = c.Add(total(ch))
		}
		totals[n] = c
		return c
	}

	var convert func(n plan.Node, p plan.Path) (plan.Node, error)
	convert = func(n plan.Node, p plan.Path) (plan.Node, error) {
		if c, ok := chosen[n]; ok {
			return c.node, nil
		}
		if r.ctx.Err() != nil {
			return nil, errCancelled
		}
		children := n.Children()
		candidate := n
		if len(children) > 0 {
			phys := make([]plan.Node, len(children))
			for i, ch := range children {
				pc, err := convert(ch, append(p[:len(p):len(p)], i))
				if err != nil {
					return nil, err
				}
				phys[i] = pc
			}
			candidate = n.WithChildren(phys)
		}
		rc := r.ruleContext(p)
		var (
			best     *choice
			bestRule rule.Rule
		)
		for _, rl := range r.rules {
			alts, err := r.apply(rl, candidate, rc)
			if err != nil {
				return nil, err
			}
			for _, alt := range alts {
				if !valid(alt, n) {
					r.c.log.Debugf("phase %s: rule %s offers an invalid alternative %s", r.ph.Name, rl.Name(), alt.Explain())
					continue
				}
				c := total(alt)
				r.c.log.Debugf("phase %s: rule %s offers %s at %s", r.ph.Name, rl.Name(), alt.Explain(), c)
				// ties keep the earlier rule
				if best == nil || c.Less(best.cost) {
					best = &choice{node: alt, cost: c}
					bestRule = rl
				}
			}
		}
		if best == nil {
			return nil, errorx.PlanErrorf(errorx.UnimplementedPhysicalAlternative, r.ph.Name, "", explainSubtree(n),
				"no physical alternative for %s", n.Op())
		}
		chosen[n] = *best
		r.firings++
		r.lastRule = bestRule.Name()
		r.c.p.metrics.IncRuleFiring(r.ph.Name, bestRule.Name())
		r.c.remember(r.g, best.node, bestRule.Name())
		return best.node, nil
	}

	root, err := convert(r.g.Root(), plan.Path{})
	if err != nil {
		return err
	}
	g, err := plan.NewGraph(root)
	if err != nil {
		return errorx.Locate(err, r.ph.Name, "")
	}
	r.g = g
	r.converged = true
	return nil
}

// valid accepts a fully physical alternative with the row type of the
// logical node.
func valid(alt, logical plan.Node) bool {
	if !alt.RowType().Equal(logical.RowType()) {
		return false
	}
	var physical func(n plan.Node) bool
	physical = func(n plan.Node) bool {
		if !plan.IsPhysical(n) {
			return false
		}
		for _, c := range n.Children() {
			if !physical(c) {
				return false
			}
		}
		return true
	}
	return physical(alt)
}
