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

	"github.com/lf-edge/kuiperopt/internal/conf"
	"github.com/lf-edge/kuiperopt/internal/plan"
	"github.com/lf-edge/kuiperopt/internal/rule"
	"github.com/lf-edge/kuiperopt/pkg/errorx"
)

type PhaseConf struct {
	Name     string   `yaml:"name"`
	RuleSets []string `yaml:"rulesets"`
	// Strategy is one of fixpoint, single-pass and cost-directed
	Strategy string `yaml:"strategy"`
	// Compose combines several rule sets with union (default) or concat
	Compose        string `yaml:"compose"`
	IterationLimit int    `yaml:"iterationLimit"`
	Timeout        string `yaml:"timeout"`
	// Enabled defaults to true
	Enabled              *bool `yaml:"enabled"`
	FailOnNonConvergence *bool `yaml:"failOnNonConvergence"`
}

type PipelineConf struct {
	Initial              string         `yaml:"initial"`
	IterationFactor      int            `yaml:"iterationFactor"`
	FailOnNonConvergence bool           `yaml:"failOnNonConvergence"`
	Options              map[string]any `yaml:"options"`
	Phases               []PhaseConf    `yaml:"phases"`
}

// DefaultPipelineYaml turns a logical plan into a physical one with the
// built-in rule sets.
const DefaultPipelineYaml = `
initial: logical
iterationFactor: 10
options:
  minibatch_enabled: false
  minibatch_interval: 1s
phases:
  - name: simplify
    rulesets: [predicate_simplify]
    strategy: fixpoint
  - name: logical
    rulesets: [filter_rules, project_rules, union_rules]
    strategy: fixpoint
  - name: calc
    rulesets: [calc_rules]
    strategy: single-pass
  - name: physical
    rulesets: [physical_conversion]
    strategy: cost-directed
  - name: physical_rewrite
    rulesets: [physical_rewrite]
    strategy: fixpoint
`

// LoadPipelineConf reads a pipeline file. Environment variables prefixed by
// the upper cased file name override it, e.g. PIPELINE__ITERATIONFACTOR.
func LoadPipelineConf(p string) (*PipelineConf, error) {
	pc := &PipelineConf{}
	if err := conf.LoadConfigFromPath(p, pc); err != nil {
		return nil, err
	}
	return pc, nil
}

func ParsePipelineConf(b []byte) (*PipelineConf, error) {
	pc := &PipelineConf{}
	if err := conf.LoadConfigFromBytes("", b, pc, nil); err != nil {
		return nil, err
	}
	return pc, nil
}

func parseConvention(s string) (plan.Convention, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "logical":
		return plan.Logical, nil
	case "physical":
		return plan.Physical, nil
	}
	return 0, errorx.NewWithCode(errorx.PipelineValidationError, fmt.Sprintf("unknown convention %q", s))
}

// BuildPipeline resolves the rule sets of the configuration in the registry.
// opts are applied after the configured settings.
func BuildPipeline(pc *PipelineConf, reg *rule.Registry, opts ...Option) (*Pipeline, error) {
	initial, err := parseConvention(pc.Initial)
	if err != nil {
		return nil, err
	}
	phases := make([]Phase, 0, len(pc.Phases))
	for _, c := range pc.Phases {
		ph := Phase{
			Name:                 c.Name,
			IterationLimit:       c.IterationLimit,
			Enabled:              c.Enabled == nil || *c.Enabled,
			FailOnNonConvergence: pc.FailOnNonConvergence,
		}
		if c.FailOnNonConvergence != nil {
			ph.FailOnNonConvergence = *c.FailOnNonConvergence
		}
		if ph.Strategy, err = ParseStrategy(c.Strategy); err != nil {
			return nil, errorx.NewWithCode(errorx.PipelineValidationError, fmt.Sprintf("phase %s: %v", c.Name, err))
		}
		if ph.Composition, err = ParseComposition(c.Compose); err != nil {
			return nil, errorx.NewWithCode(errorx.PipelineValidationError, fmt.Sprintf("phase %s: %v", c.Name, err))
		}
		if c.Timeout != "" {
			if ph.Timeout, err = time.ParseDuration(c.Timeout); err != nil {
				return nil, errorx.NewWithCode(errorx.PipelineValidationError, fmt.Sprintf("phase %s has an invalid timeout: %v", c.Name, err))
			}
		}
		for _, name := range c.RuleSets {
			s, ok := reg.Get(name)
			if !ok {
				return nil, errorx.NewWithCode(errorx.PipelineValidationError, fmt.Sprintf("phase %s refers to unknown rule set %s", c.Name, name))
			}
			ph.RuleSets = append(ph.RuleSets, s)
		}
		phases = append(phases, ph)
	}
	base := []Option{WithInitial(initial)}
	if pc.IterationFactor != 0 {
		base = append(base, WithIterationFactor(pc.IterationFactor))
	}
	if pc.Options != nil {
		base = append(base, WithOptions(pc.Options))
	}
	return NewPipeline(phases, append(base, opts...)...)
}
