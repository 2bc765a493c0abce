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

package plan

import (
	"strings"

	"github.com/lf-edge/kuiperopt/pkg/ast"
)

type AggStage int

const (
	SingleStage AggStage = iota
	// LocalStage pre-aggregates the partition it runs in.
	LocalStage
	// GlobalStage merges the partial results of a local stage.
	GlobalStage
)

func (s AggStage) String() string {
	switch s {
	case LocalStage:
		return "local"
	case GlobalStage:
		return "global"
	}
	return "single"
}

// AggCall is one aggregate output. A nil Arg stands for `*`.
type AggCall struct {
	Func  string
	Arg   ast.Expr
	Alias string
}

func (c AggCall) String() string {
	arg := "*"
	if c.Arg != nil {
		arg = c.Arg.String()
	}
	return c.Func + "(" + arg + ") AS " + c.Alias
}

type Aggregate struct {
	baseNode
	GroupKeys []string
	Calls     []AggCall
	Stage     AggStage
}

func (p Aggregate) Init() *Aggregate {
	p.baseNode.self = &p
	return &p
}

func NewAggregate(groupKeys []string, calls []AggCall, input Node) *Aggregate {
	p := Aggregate{GroupKeys: groupKeys, Calls: calls}.Init()
	p.children = []Node{input}
	return p
}

func (p *Aggregate) Op() OpType  { return OpAggregate }
func (p *Aggregate) clone() Node { return p.Init() }

func (p *Aggregate) RowType() RowType {
	in := p.inputRowType()
	rt := make(RowType, 0, len(p.GroupKeys)+len(p.Calls))
	for _, k := range p.GroupKeys {
		col := Column{Name: k, Type: ast.UNKNOWN}
		if i := in.IndexOf("", k); i >= 0 {
			col = in[i]
		}
		rt = append(rt, col)
	}
	for _, c := range p.Calls {
		argType := ast.ANY
		if c.Arg != nil {
			if t, err := ast.TypeOf(c.Arg, in.Resolver()); err == nil {
				argType = t
			}
		}
		rt = append(rt, Column{Name: c.Alias, Type: ast.FuncResultType(c.Func, argType)})
	}
	return rt
}

func (p *Aggregate) Explain() string {
	calls := make([]string, len(p.Calls))
	for i, c := range p.Calls {
		calls[i] = c.String()
	}
	ps := []string{param("groupBy", strings.Join(p.GroupKeys, ", ")), param("select", strings.Join(calls, ", "))}
	if p.Stage != SingleStage {
		ps = append(ps, param("stage", p.Stage.String()))
	}
	return explain(p, ps...)
}

func (p *Aggregate) Validate() error {
	if err := arity(p, 1, 1); err != nil {
		return err
	}
	in := p.inputRowType()
	for _, k := range p.GroupKeys {
		if in.IndexOf("", k) < 0 {
			return invalid(p, "group key %s not found in %s", k, in.String())
		}
	}
	seen := make(map[string]struct{})
	for _, c := range p.Calls {
		if !ast.IsAggFunc(c.Func) {
			return invalid(p, "%s is not an aggregate function", c.Func)
		}
		if c.Alias == "" {
			return invalid(p, "aggregate %s has no alias", c.Func)
		}
		if _, ok := seen[c.Alias]; ok {
			return invalid(p, "duplicate output field %s", c.Alias)
		}
		seen[c.Alias] = struct{}{}
		if c.Arg != nil {
			if err := checkRefs(p, c.Arg, in); err != nil {
				return err
			}
		}
	}
	return nil
}
