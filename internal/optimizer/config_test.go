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
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lf-edge/kuiperopt/internal/metric"
	"github.com/lf-edge/kuiperopt/internal/plan"
	"github.com/lf-edge/kuiperopt/internal/rules"
	"github.com/lf-edge/kuiperopt/pkg/errorx"
)

func TestBuildDefaultPipeline(t *testing.T) {
	pc, err := ParsePipelineConf([]byte(DefaultPipelineYaml))
	require.NoError(t, err)
	assert.Equal(t, 10, pc.IterationFactor)
	assert.Equal(t, "1s", pc.Options["minibatch_interval"])
	p, err := BuildPipeline(pc, registry(t), WithMetrics(metric.NewMetrics(nil)))
	require.NoError(t, err)
	phases := p.Phases()
	require.Len(t, phases, 5)
	exp := []struct {
		name     string
		strategy Strategy
		produces plan.Convention
	}{
		{"simplify", Fixpoint, plan.Logical},
		{"logical", Fixpoint, plan.Logical},
		{"calc", SinglePass, plan.Logical},
		{"physical", CostDirected, plan.Physical},
		{"physical_rewrite", Fixpoint, plan.Physical},
	}
	for i, e := range exp {
		assert.Equal(t, e.name, phases[i].Name)
		assert.Equal(t, e.strategy, phases[i].Strategy)
		assert.Equal(t, e.produces, phases[i].Produces())
		assert.True(t, phases[i].Enabled)
	}
	assert.Equal(t, []string{
		rules.ReduceFilterExpression, rules.FilterMerge, rules.FilterIntoJoin, rules.FilterProjectTranspose,
		rules.ProjectRemove, rules.ProjectMerge, rules.UnionMerge,
	}, ruleNames(phases[1]))
}

func ruleNames(ph *Phase) []string {
	var names []string
	for _, r := range ph.Rules().Rules() {
		names = append(names, r.Name())
	}
	return names
}

func TestBuildPipelineSettings(t *testing.T) {
	pc, err := ParsePipelineConf([]byte(`
failOnNonConvergence: true
phases:
  - name: logical
    rulesets: [project_rules, filter_rules]
    compose: concat
    strategy: Fixpoint
    iterationLimit: 50
    timeout: 200ms
  - name: rewrite
    rulesets: [physical_rewrite]
    strategy: fixpoint
    enabled: false
    failOnNonConvergence: false
`))
	require.NoError(t, err)
	p, err := BuildPipeline(pc, registry(t), WithMetrics(metric.NewMetrics(nil)))
	require.NoError(t, err)
	phases := p.Phases()
	require.Len(t, phases, 2)
	assert.Equal(t, ComposeConcat, phases[0].Composition)
	assert.Equal(t, 50, phases[0].IterationLimit)
	assert.Equal(t, 200*time.Millisecond, phases[0].Timeout)
	assert.True(t, phases[0].FailOnNonConvergence)
	assert.Equal(t, []string{
		rules.ProjectRemove, rules.ProjectMerge,
		rules.ReduceFilterExpression, rules.FilterMerge, rules.FilterIntoJoin, rules.FilterProjectTranspose,
	}, ruleNames(phases[0]))
	assert.False(t, phases[1].Enabled)
	assert.False(t, phases[1].FailOnNonConvergence)
	assert.Equal(t, plan.Logical, p.Output())
}

func TestBuildPipelineErrors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"unknown rule set", "phases:\n  - name: a\n    rulesets: [nope]\n    strategy: fixpoint\n"},
		{"unknown strategy", "phases:\n  - name: a\n    rulesets: [filter_rules]\n    strategy: greedy\n"},
		{"unknown composition", "phases:\n  - name: a\n    rulesets: [filter_rules]\n    strategy: fixpoint\n    compose: merge\n"},
		{"bad timeout", "phases:\n  - name: a\n    rulesets: [filter_rules]\n    strategy: fixpoint\n    timeout: soon\n"},
		{"bad initial", "initial: relational\nphases:\n  - name: a\n    rulesets: [filter_rules]\n    strategy: fixpoint\n"},
		{"wrong order", "phases:\n  - name: a\n    rulesets: [physical_rewrite]\n    strategy: fixpoint\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pc, err := ParsePipelineConf([]byte(tt.yaml))
			require.NoError(t, err)
			_, err = BuildPipeline(pc, registry(t), WithMetrics(metric.NewMetrics(nil)))
			require.Error(t, err)
			assert.True(t, errorx.IsCode(err, errorx.PipelineValidationError), err.Error())
		})
	}
}

func TestLoadPipelineConf(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "pipeline.yaml")
	require.NoError(t, os.WriteFile(p, []byte(DefaultPipelineYaml), 0o644))
	t.Setenv("PIPELINE__ITERATIONFACTOR", "4")
	pc, err := LoadPipelineConf(p)
	require.NoError(t, err)
	assert.Equal(t, 4, pc.IterationFactor)
	assert.Len(t, pc.Phases, 5)

	_, err = LoadPipelineConf(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}

func TestParseStrategy(t *testing.T) {
	for _, s := range []Strategy{Fixpoint, SinglePass, CostDirected} {
		got, err := ParseStrategy(s.String())
		require.NoError(t, err)
		assert.Equal(t, s, got)
	}
	_, err := ParseStrategy("")
	assert.Error(t, err)
}
