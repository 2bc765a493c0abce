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
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/lf-edge/kuiperopt/internal/catalog"
	"github.com/lf-edge/kuiperopt/internal/cost"
	"github.com/lf-edge/kuiperopt/internal/metric"
	"github.com/lf-edge/kuiperopt/internal/plan"
	"github.com/lf-edge/kuiperopt/internal/rule"
	"github.com/lf-edge/kuiperopt/pkg/errorx"
)

const (
	DefaultIterationFactor = 10
	tracerName             = "github.com/lf-edge/kuiperopt/internal/optimizer"
)

// Pipeline is an ordered list of phases validated as a whole. It is not
// modified after NewPipeline so any number of compilations may share it.
type Pipeline struct {
	phases          []*Phase
	initial         plan.Convention
	iterationFactor int
	options         map[string]any
	catalog         catalog.Provider
	model           cost.Model
	metrics         *metric.Metrics
	tracer          trace.Tracer
}

type Option func(p *Pipeline)

// WithInitial declares the convention of the plans given to Optimize. It is
// logical by default.
func WithInitial(c plan.Convention) Option {
	return func(p *Pipeline) { p.initial = c }
}

// WithIterationFactor sets the multiplier of the plan size giving the
// default iteration cap.
func WithIterationFactor(f int) Option {
	return func(p *Pipeline) { p.iterationFactor = f }
}

// WithOptions passes options to the rules, see the rule.Opt constants.
func WithOptions(o map[string]any) Option {
	return func(p *Pipeline) {
		p.options = make(map[string]any, len(o))
		for k, v := range o {
			p.options[k] = v
		}
	}
}

func WithCatalog(c catalog.Provider) Option {
	return func(p *Pipeline) { p.catalog = c }
}

func WithCostModel(m cost.Model) Option {
	return func(p *Pipeline) { p.model = m }
}

func WithMetrics(m *metric.Metrics) Option {
	return func(p *Pipeline) { p.metrics = m }
}

func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(p *Pipeline) { p.tracer = tp.Tracer(tracerName) }
}

// NewPipeline composes the rule sets of every phase and checks that each
// enabled phase accepts what the previous one produces.
func NewPipeline(phases []Phase, opts ...Option) (*Pipeline, error) {
	p := &Pipeline{
		initial:         plan.Logical,
		iterationFactor: DefaultIterationFactor,
		options:         map[string]any{},
		model:           cost.DefaultModel{},
	}
	for _, o := range opts {
		o(p)
	}
	if p.metrics == nil {
		p.metrics = metric.GetMetrics()
	}
	if p.tracer == nil {
		p.tracer = otel.GetTracerProvider().Tracer(tracerName)
	}
	if p.iterationFactor <= 0 {
		return nil, errorx.NewPlanError(errorx.PipelineValidationError, "iteration factor must be positive, got %d", p.iterationFactor)
	}
	if len(phases) == 0 {
		return nil, errorx.NewPlanError(errorx.PipelineValidationError, "pipeline has no phase")
	}
	names := make(map[string]struct{}, len(phases))
	ruleNames := make(map[string]rule.Rule)
	current := p.initial
	for i := range phases {
		ph := phases[i]
		if _, ok := names[ph.Name]; ok {
			return nil, errorx.NewPlanError(errorx.PipelineValidationError, "phase %s is declared twice", ph.Name)
		}
		names[ph.Name] = struct{}{}
		if err := ph.compose(); err != nil {
			return nil, err
		}
		for _, r := range ph.rules.Rules() {
			if prev, ok := ruleNames[r.Name()]; ok && prev != r {
				return nil, ph.invalid("has a rule named %s which is not the rule of that name in another phase", r.Name())
			}
			ruleNames[r.Name()] = r
		}
		if ph.Enabled {
			if ph.Requires() != current {
				return nil, ph.invalid("requires a %s plan but receives a %s plan", ph.Requires(), current)
			}
			current = ph.Produces()
		}
		p.phases = append(p.phases, &ph)
	}
	return p, nil
}

func (p *Pipeline) Phases() []*Phase {
	return append([]*Phase(nil), p.phases...)
}

// Output is the convention of the optimized plans.
func (p *Pipeline) Output() plan.Convention {
	c := p.initial
	for _, ph := range p.phases {
		if ph.Enabled {
			c = ph.Produces()
		}
	}
	return c
}
