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

package conf

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lf-edge/kuiperopt/pkg/errorx"
)

func TestLoadConfigFromBytes(t *testing.T) {
	type phase struct {
		Name     string
		Strategy string
	}
	type pipe struct {
		IterationFactor int
		Options         map[string]interface{}
		Phases          []phase
	}
	content := []byte(`
iterationFactor: 10
options:
  minibatch_enabled: false
phases:
  - name: logical
    strategy: fixpoint
`)
	tests := []struct {
		name string
		env  []string
		exp  pipe
	}{
		{
			name: "plain",
			exp: pipe{
				IterationFactor: 10,
				Options:         map[string]interface{}{"minibatch_enabled": false},
				Phases:          []phase{{Name: "logical", Strategy: "fixpoint"}},
			},
		},
		{
			name: "env override",
			env:  []string{"PIPELINE__ITERATIONFACTOR=20", "PIPELINE__OPTIONS__MINIBATCH_ENABLED=true", "PIPELINEX__ITERATIONFACTOR=30", "OTHER=1"},
			exp: pipe{
				IterationFactor: 20,
				Options:         map[string]interface{}{"minibatch_enabled": true},
				Phases:          []phase{{Name: "logical", Strategy: "fixpoint"}},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var p pipe
			err := LoadConfigFromBytes("PIPELINE", content, &p, tt.env)
			require.NoError(t, err)
			assert.Equal(t, tt.exp, p)
		})
	}
}

func TestLoadConfigErrors(t *testing.T) {
	var m struct{ A int }
	err := LoadConfigFromBytes("P", []byte("a: [1"), &m, nil)
	assert.True(t, errorx.IsCode(err, errorx.ConfKeyError))
	err = LoadConfigFromBytes("P", []byte("a: 1"), &m, []string{"P__A__B=1"})
	assert.True(t, errorx.IsCode(err, errorx.ConfKeyError))
	err = LoadConfigFromBytes("P", []byte("a: abc"), &m, nil)
	assert.True(t, errorx.IsCode(err, errorx.ConfKeyError))
}

func TestGetValueType(t *testing.T) {
	assert.Equal(t, int64(3), getValueType("3"))
	assert.Equal(t, true, getValueType("true"))
	assert.Equal(t, 1.5, getValueType(" 1.5 "))
	assert.Equal(t, "abc", getValueType("abc"))
	assert.Equal(t, []interface{}{int64(1), "b"}, getValueType("[1,b]"))
}

func TestInitConf(t *testing.T) {
	p := filepath.Join(t.TempDir(), ConfFileName)
	require.NoError(t, os.WriteFile(p, []byte("basic:\n  debug: true\noptimizer:\n  iterationFactor: 0\ncatalog:\n  path: c.yaml\n"), 0o600))
	require.NoError(t, InitConf(p))
	defer SetDebug(false)
	assert.True(t, Config.Basic.Debug)
	assert.Equal(t, 10, Config.Optimizer.IterationFactor)
	assert.Equal(t, "c.yaml", Config.Catalog.Path)

	t.Setenv("KUIPEROPT__OPTIMIZER__ITERATIONFACTOR", "4")
	require.NoError(t, InitConf(p))
	assert.Equal(t, 4, Config.Optimizer.IterationFactor)

	require.NoError(t, InitConf(""))
	assert.Equal(t, 10, Config.Optimizer.IterationFactor)
	assert.Error(t, InitConf(filepath.Join(t.TempDir(), "missing.yaml")))
}
