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
	"fmt"
	"strings"
	"time"

	"github.com/lf-edge/kuiperopt/internal/plan"
	"github.com/lf-edge/kuiperopt/internal/rule"
	"github.com/lf-edge/kuiperopt/pkg/errorx"
)

// Strategy is how a phase applies its rules.
type Strategy int

const (
	// Fixpoint rescans the plan until no rule fires.
	Fixpoint Strategy = iota
	// SinglePass visits every position once, top down.
	SinglePass
	// CostDirected converts the plan bottom up, keeping the cheapest
	// alternative of every node.
	CostDirected
)

var strategyNames = map[Strategy]string{
	Fixpoint:     "fixpoint",
	SinglePass:   "single-pass",
	CostDirected: "cost-directed",
}

func (s Strategy) String() string {
	return strategyNames[s]
}

func ParseStrategy(s string) (Strategy, error) {
	for k, v := range strategyNames {
		if strings.EqualFold(v, strings.TrimSpace(s)) {
			return k, nil
		}
	}
	return 0, errorx.NewWithCode(errorx.PipelineValidationError, fmt.Sprintf("unknown strategy %q", s))
}

// Composition is how the rule sets of a phase are combined.
type Composition int

const (
	ComposeUnion Composition = iota
	ComposeConcat
)

func (c Composition) String() string {
	if c == ComposeConcat {
		return "concat"
	}
	return "union"
}

func ParseComposition(s string) (Composition, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "union":
		return ComposeUnion, nil
	case "concat":
		return ComposeConcat, nil
	}
	return 0, errorx.NewWithCode(errorx.PipelineValidationError, fmt.Sprintf("unknown composition %q", s))
}

// Phase applies one or several rule sets under one strategy.
type Phase struct {
	Name        string
	RuleSets    []*rule.Set
	Composition Composition
	Strategy    Strategy
	// IterationLimit caps the rule firings, 0 derives it from the plan size.
	IterationLimit int
	// Timeout caps the wall time of a fixpoint phase, 0 for none.
	Timeout              time.Duration
	Enabled              bool
	FailOnNonConvergence bool

	rules *rule.Set
}

// Rules are the composed rules, available once the phase is part of a
// pipeline.
func (p *Phase) Rules() *rule.Set {
	return p.rules
}

func (p *Phase) Requires() plan.Convention {
	return p.rules.Kind().Requires()
}

func (p *Phase) Produces() plan.Convention {
	return p.rules.Kind().Produces()
}

func (p *Phase) compose() error {
	if p.Name == "" {
		return errorx.NewWithCode(errorx.PipelineValidationError, "phase without name")
	}
	if len(p.RuleSets) == 0 {
		return p.invalid("has no rule set")
	}
	s := p.RuleSets[0]
	for _, next := range p.RuleSets[1:] {
		var err error
		if p.Composition == ComposeConcat {
			s, err = rule.Concat(p.Name, s, next)
		} else {
			s, err = rule.Union(p.Name, s, next)
		}
		if err != nil {
			return p.invalid("%v", err)
		}
	}
	if s.Len() == 0 {
		return p.invalid("has no rule")
	}
	switch {
	case p.Strategy == CostDirected && s.Kind() != rule.KindConversion:
		return p.invalid("uses the cost-directed strategy with %s rules", s.Kind())
	case p.Strategy != CostDirected && s.Kind() == rule.KindConversion:
		return p.invalid("converts the plan with the %s strategy, conversion needs cost-directed", p.Strategy)
	}
	if p.IterationLimit < 0 {
		return p.invalid("has a negative iteration limit")
	}
	p.rules = s
	return p.checkOrder()
}

// checkOrder enforces the declared Before constraints.
func (p *Phase) checkOrder() error {
	first := make(map[string]int)
	for i, r := range p.rules.Rules() {
		if _, ok := first[r.Name()]; !ok {
			first[r.Name()] = i
		}
	}
	for i, r := range p.rules.Rules() {
		for _, b := range rule.FlagsOf(r).Before {
			if j, ok := first[b]; ok && j < i {
				return p.invalid("lists rule %s before %s which must precede it", b, r.Name())
			}
		}
	}
	return nil
}

func (p *Phase) invalid(format string, args ...any) error {
	return errorx.PlanErrorf(errorx.PipelineValidationError, p.Name, "", "", "phase %s "+format, append([]any{p.Name}, args...)...)
}
