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

// Package plan holds the relational operator graph the optimizer rewrites.
// Nodes are never mutated after construction: every change produces a copy
// through WithChildren or WithTraits and is grafted into a new Graph.
package plan

import (
	"strings"
)

type OpType string

const (
	OpScan              OpType = "Scan"
	OpFilter            OpType = "Filter"
	OpProject           OpType = "Project"
	OpCalc              OpType = "Calc"
	OpJoin              OpType = "Join"
	OpAggregate         OpType = "Aggregate"
	OpSort              OpType = "Sort"
	OpCorrelate         OpType = "Correlate"
	OpUnion             OpType = "Union"
	OpRank              OpType = "Rank"
	OpWatermarkAssigner OpType = "WatermarkAssigner"
	OpSink              OpType = "Sink"
	OpExchange          OpType = "Exchange"
)

type Node interface {
	Op() OpType
	Children() []Node
	// WithChildren returns a copy of the node reading from the given inputs.
	// Parameters and traits are kept.
	WithChildren(children []Node) Node
	// WithTraits returns a copy of the node with the physical traits set. A
	// nil traits turns the copy back into a logical node.
	WithTraits(t *Traits) Node
	RowType() RowType
	Traits() *Traits
	// Explain describes the node itself in one line.
	Explain() string
	// Validate checks the node against its inputs.
	Validate() error

	clone() Node
	base() *baseNode
}

type baseNode struct {
	children []Node
	traits   *Traits
	// Can be used to return the derived instance from the base type
	self Node
}

func (b *baseNode) Children() []Node {
	return b.children
}

func (b *baseNode) Traits() *Traits {
	return b.traits
}

func (b *baseNode) base() *baseNode {
	return b
}

func (b *baseNode) WithChildren(children []Node) Node {
	c := b.self.clone()
	c.base().children = append([]Node(nil), children...)
	return c
}

func (b *baseNode) WithTraits(t *Traits) Node {
	c := b.self.clone()
	c.base().traits = t
	return c
}

func (b *baseNode) input() Node {
	if len(b.children) == 0 {
		return nil
	}
	return b.children[0]
}

// inputRowType is the row type of the first input, empty for leaves.
func (b *baseNode) inputRowType() RowType {
	if in := b.input(); in != nil {
		return in.RowType()
	}
	return nil
}

// IsPhysical reports whether the node carries physical traits.
func IsPhysical(n Node) bool {
	return n.Traits() != nil
}

// explain prints `Name(k=[v], ...)` followed by the physical traits if any.
// Physical nodes are named after their implementation.
func explain(n Node, params ...string) string {
	name := string(n.Op())
	t := n.Traits()
	if t != nil && t.Impl != "" {
		name = t.Impl
	}
	var b strings.Builder
	b.WriteString(name)
	b.WriteString("(")
	ps := params
	if t != nil {
		ps = append(append([]string(nil), params...), t.explainParams()...)
	}
	b.WriteString(strings.Join(ps, ", "))
	b.WriteString(")")
	return b.String()
}

func param(k, v string) string {
	return k + "=[" + v + "]"
}
