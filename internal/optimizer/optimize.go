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

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/pingcap/failpoint"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/lf-edge/kuiperopt/internal/conf"
	"github.com/lf-edge/kuiperopt/internal/cost"
	"github.com/lf-edge/kuiperopt/internal/metric"
	"github.com/lf-edge/kuiperopt/internal/plan"
	"github.com/lf-edge/kuiperopt/pkg/errorx"
	"github.com/lf-edge/kuiperopt/pkg/timex"
	"github.com/lf-edge/kuiperopt/pkg/tracer"
)

type Outcome int

const (
	Succeeded Outcome = iota
	// Cancelled compilations stopped on the context. The graph is the one
	// the last finished phase produced.
	Cancelled
	Failed
)

func (o Outcome) String() string {
	switch o {
	case Cancelled:
		return "cancelled"
	case Failed:
		return "failed"
	}
	return "succeeded"
}

// Diagnostic is a warning recorded during a compilation.
type Diagnostic struct {
	Code    errorx.ErrorCode
	Phase   string
	Rule    string
	Node    string
	Message string
}

func (d Diagnostic) String() string {
	s := fmt.Sprintf("%s in phase %s", d.Code, d.Phase)
	if d.Rule != "" {
		s += " after rule " + d.Rule
	}
	return s + ": " + d.Message
}

type PhaseStats struct {
	Name      string
	Strategy  Strategy
	Skipped   bool
	Converged bool
	Firings   int
	Duration  time.Duration
}

type Result struct {
	// ID identifies the compilation in logs and traces.
	ID          string
	Graph       *plan.Graph
	Outcome     Outcome
	Diagnostics []Diagnostic
	Phases      []PhaseStats
}

var errCancelled = errors.New("compilation cancelled")

// phaseErrFailpoint fails every phase once enabled with return(true).
const phaseErrFailpoint = "github.com/lf-edge/kuiperopt/internal/optimizer/phaseErr"

// compilation is the state of one Optimize call.
type compilation struct {
	p   *Pipeline
	ctx context.Context
	log *logrus.Entry
	res *Result
	est *cost.Estimator
	// origin remembers the rule which created a node
	origin map[plan.Node]string
}

// Optimize runs the phases in order. A cancelled context is not an error:
// the result tells so and carries the last complete graph. The input graph is
// never modified.
func (p *Pipeline) Optimize(ctx context.Context, g *plan.Graph) (*Result, error) {
	id := uuid.NewString()
	c := &compilation{
		p:      p,
		ctx:    ctx,
		log:    conf.Log.WithField("compilation", id),
		res:    &Result{ID: id, Graph: g},
		est:    cost.NewEstimator(p.catalog),
		origin: make(map[plan.Node]string),
	}
	ctx, span := p.tracer.Start(ctx, "optimize")
	span.SetAttributes(attribute.String(tracer.CompilationKey, id), attribute.Int("plan.size", g.Size()))
	defer span.End()
	c.ctx = ctx

	err := c.run()
	switch {
	case errors.Is(err, errCancelled):
		c.res.Outcome = Cancelled
		c.log.Infof("compilation cancelled: %v", ctx.Err())
		span.SetStatus(codes.Error, "cancelled")
		p.metrics.IncCompilation(metric.LblCancelled)
		return c.res, nil
	case err != nil:
		c.res.Outcome = Failed
		c.log.Errorf("compilation failed: %v", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	default:
		c.log.Debugf("compilation done in %d phases, digest %s", len(c.res.Phases), c.res.Graph.Digest())
	}
	p.metrics.IncCompilation(metric.GetStatusValue(err))
	return c.res, err
}

func (c *compilation) run() error {
	g := c.res.Graph
	if n := g.CheckConvention(c.p.initial); n != nil {
		return errorx.PlanErrorf(errorx.InvalidPlan, "", "", n.Explain(), "input plan is not %s", c.p.initial)
	}
	if err := g.Validate(); err != nil {
		return err
	}
	for _, ph := range c.p.phases {
		if c.ctx.Err() != nil {
			return errCancelled
		}
		if !ph.Enabled {
			c.log.Debugf("skip disabled phase %s", ph.Name)
			c.res.Phases = append(c.res.Phases, PhaseStats{Name: ph.Name, Strategy: ph.Strategy, Skipped: true})
			continue
		}
		out, err := c.runPhase(ph, c.res.Graph)
		if err != nil {
			if !errors.Is(err, errCancelled) {
				if code, ok := errorx.GetErrorCode(err); ok {
					c.p.metrics.IncFailure(ph.Name, code.String())
				}
			}
			return err
		}
		c.res.Graph = out
	}
	return nil
}

func (c *compilation) runPhase(ph *Phase, g *plan.Graph) (*plan.Graph, error) {
	ctx, span := c.p.tracer.Start(c.ctx, "phase "+ph.Name)
	defer span.End()
	span.SetAttributes(attribute.String("phase", ph.Name), attribute.String("strategy", ph.Strategy.String()))
	start := timex.GetNow()
	c.log.Debugf("phase %s starts with %s over %d nodes", ph.Name, ph.Strategy, g.Size())

	if v, err := failpoint.Eval(phaseErrFailpoint); err == nil && v == true {
		return nil, errorx.PlanErrorf(errorx.RuleApplicationError, ph.Name, "", "", "injected failure")
	}

	r := newPhaseRun(c, ctx, ph, g)
	var err error
	switch ph.Strategy {
	case Fixpoint:
		err = r.fixpoint()
	case SinglePass:
		err = r.singlePass()
	case CostDirected:
		err = r.costDirected()
	}
	d := timex.Since(start)
	c.p.metrics.ObservePhase(ph.Name, ph.Strategy.String(), d)
	c.res.Phases = append(c.res.Phases, PhaseStats{
		Name:      ph.Name,
		Strategy:  ph.Strategy,
		Converged: r.converged,
		Firings:   r.firings,
		Duration:  d,
	})
	span.SetAttributes(attribute.Int("firings", r.firings), attribute.Bool("converged", r.converged))
	if err != nil {
		if !errors.Is(err, errCancelled) {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		return nil, err
	}
	if err := c.checkPostcondition(ph, r.g); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	c.log.Debugf("phase %s finished after %d rule firings in %s", ph.Name, r.firings, d)
	return r.g, nil
}

// checkPostcondition verifies the convention the phase promises and the
// consistency of every node.
func (c *compilation) checkPostcondition(ph *Phase, g *plan.Graph) error {
	if n := g.CheckConvention(ph.Produces()); n != nil {
		return errorx.PlanErrorf(errorx.PostconditionViolation, ph.Name, c.origin[n], explainSubtree(n),
			"output is not %s", ph.Produces())
	}
	if err := g.Validate(); err != nil {
		return errorx.Locate(err, ph.Name, "")
	}
	return nil
}

func explainSubtree(n plan.Node) string {
	g, err := plan.NewGraph(n)
	if err != nil {
		return n.Explain()
	}
	return g.Explain()
}

// warn records a diagnostic.
func (c *compilation) warn(d Diagnostic) {
	c.log.Warn(d.String())
	c.res.Diagnostics = append(c.res.Diagnostics, d)
}

// remember attributes the nodes new to the plan to the rule which made them.
func (c *compilation) remember(g *plan.Graph, n plan.Node, ruleName string) {
	known := make(map[plan.Node]struct{}, g.Size())
	for _, x := range g.Nodes() {
		known[x] = struct{}{}
	}
	var visit func(x plan.Node)
	visit = func(x plan.Node) {
		if _, ok := known[x]; ok {
			return
		}
		known[x] = struct{}{}
		if _, ok := c.origin[x]; !ok {
			c.origin[x] = ruleName
		}
		for _, ch := range x.Children() {
			visit(ch)
		}
	}
	visit(n)
}
