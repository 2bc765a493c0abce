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
	"context"
	"fmt"
	"time"

	"github.com/lf-edge/kuiperopt/internal/plan"
	"github.com/lf-edge/kuiperopt/internal/rule"
	"github.com/lf-edge/kuiperopt/pkg/errorx"
	"github.com/lf-edge/kuiperopt/pkg/timex"
)

// phaseRun is one phase applied to one graph.
type phaseRun struct {
	c     *compilation
	ctx   context.Context
	ph    *Phase
	g     *plan.Graph
	rules []rule.Rule
	limit int
	start time.Time

	firings   int
	lastRule  string
	converged bool
}

func newPhaseRun(c *compilation, ctx context.Context, ph *Phase, g *plan.Graph) *phaseRun {
	limit := ph.IterationLimit
	if limit == 0 {
		limit = c.p.iterationFactor * g.Size()
	}
	return &phaseRun{
		c:     c,
		ctx:   ctx,
		ph:    ph,
		g:     g,
		rules: ph.rules.Rules(),
		limit: limit,
		start: timex.GetNow(),
	}
}

func (r *phaseRun) ruleContext(p plan.Path) *rule.Context {
	rc := &rule.Context{
		Phase:   r.ph.Name,
		Catalog: r.c.p.catalog,
		Options: r.c.p.options,
		Graph:   r.g,
	}
	if pp, ok := p.Parent(); ok {
		rc.Parent, _ = r.g.At(pp)
	}
	return rc
}

// apply runs the rule on the node. A rule that panics, fails or returns a nil
// node is broken and aborts the compilation.
func (r *phaseRun) apply(rl rule.Rule, n plan.Node, rc *rule.Context) (out []plan.Node, err error) {
	defer func() {
		if e := recover(); e != nil {
			out = nil
			err = errorx.PlanErrorf(errorx.RuleApplicationError, r.ph.Name, rl.Name(), n.Explain(), "rule panics: %v", e)
		}
	}()
	if !rl.Matches(n, rc) {
		return nil, nil
	}
	out, err = rl.Apply(n, rc)
	if err != nil {
		return nil, errorx.WrapPlanError(err, errorx.RuleApplicationError, r.ph.Name, rl.Name(), n.Explain())
	}
	for _, o := range out {
		if o == nil {
			return nil, errorx.PlanErrorf(errorx.RuleApplicationError, r.ph.Name, rl.Name(), n.Explain(), "rule returns a nil node")
		}
	}
	return out, nil
}

func (r *phaseRun) capped() bool {
	if r.firings >= r.limit {
		return true
	}
	return r.ph.Timeout > 0 && timex.Since(r.start) >= r.ph.Timeout
}

// fire tries the rules in order on the node at p and replaces it with the
// first rewrite offered. It returns the rule which fired, or nil. capped is
// set when a rewrite was found but the phase has no budget left for it.
func (r *phaseRun) fire(p plan.Path, skip rule.Rule) (fired rule.Rule, capped bool, err error) {
	n, ok := r.g.At(p)
	if !ok {
		return nil, false, nil
	}
	rc := r.ruleContext(p)
	for _, rl := range r.rules {
		if rl == skip {
			continue
		}
		out, err := r.apply(rl, n, rc)
		if err != nil {
			return nil, false, err
		}
		// the first alternative is taken, returning the node itself is no rewrite
		if len(out) == 0 || out[0] == n {
			continue
		}
		if r.capped() {
			return nil, true, nil
		}
		g, err := r.g.ReplaceSubtree(n, out[0])
		if err != nil {
			return nil, false, errorx.Locate(err, r.ph.Name, rl.Name())
		}
		r.c.remember(r.g, out[0], rl.Name())
		r.g = g
		r.firings++
		r.lastRule = rl.Name()
		r.c.p.metrics.IncRuleFiring(r.ph.Name, rl.Name())
		r.c.log.Debugf("phase %s: rule %s rewrites %s at %s", r.ph.Name, rl.Name(), n.Explain(), p)
		return rl, false, nil
	}
	return nil, false, nil
}

func (r *phaseRun) nonConvergence() error {
	msg := fmt.Sprintf("no fixed point after %d rule firings", r.firings)
	if r.firings < r.limit {
		msg = fmt.Sprintf("no fixed point within %s", r.ph.Timeout)
	}
	r.c.p.metrics.IncNonConvergence(r.ph.Name)
	if r.ph.FailOnNonConvergence {
		return errorx.PlanErrorf(errorx.NonConvergenceWarning, r.ph.Name, r.lastRule, "", "%s", msg)
	}
	r.c.warn(Diagnostic{Code: errorx.NonConvergenceWarning, Phase: r.ph.Name, Rule: r.lastRule, Message: msg})
	return nil
}

// fixpoint scans the plan in pre-order until a scan rewrites nothing. A
// rewritten position is examined again before the scan moves on.
func (r *phaseRun) fixpoint() error {
	for {
		rewrites := 0
		p, ok := plan.Path{}, true
		var skip rule.Rule
		for ok {
			if r.ctx.Err() != nil {
				return errCancelled
			}
			fired, capped, err := r.fire(p, skip)
			if err != nil {
				return err
			}
			if capped {
				return r.nonConvergence()
			}
			skip = nil
			if fired != nil {
				rewrites++
				if rule.FlagsOf(fired).Idempotent {
					skip = fired
				}
				continue
			}
			p, ok = r.g.Next(p)
		}
		if rewrites == 0 {
			r.converged = true
			return nil
		}
	}
}

// singlePass visits every position once in pre-order. Only rules flagged
// Reapply get to look at their own output. The traversal then goes on with
// the children of whatever is at the position.
func (r *phaseRun) singlePass() error {
	p, ok := plan.Path{}, true
	for ok {
		if r.ctx.Err() != nil {
			return errCancelled
		}
		var skip rule.Rule
		for {
			fired, capped, err := r.fire(p, skip)
			if err != nil {
				return err
			}
			if capped {
				return r.nonConvergence()
			}
			if fired == nil || !rule.FlagsOf(fired).Reapply {
				break
			}
			skip = nil
			if rule.FlagsOf(fired).Idempotent {
				skip = fired
			}
		}
		p, ok = r.g.Next(p)
	}
	r.converged = true
	return nil
}
