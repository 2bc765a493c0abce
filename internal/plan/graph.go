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
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"

	"github.com/lf-edge/kuiperopt/pkg/errorx"
)

// Path addresses a node occurrence by the child indexes from the root.
type Path []int

func (p Path) String() string {
	if len(p) == 0 {
		return "/"
	}
	parts := make([]string, len(p))
	for i, v := range p {
		parts[i] = strconv.Itoa(v)
	}
	return "/" + strings.Join(parts, "/")
}

// Parent returns the path of the parent, or false for the root.
func (p Path) Parent() (Path, bool) {
	if len(p) == 0 {
		return nil, false
	}
	return p[:len(p)-1], true
}

func (p Path) child(i int) Path {
	c := make(Path, len(p)+1)
	copy(c, p)
	c[len(p)] = i
	return c
}

// Graph is a rooted acyclic plan. A node may be shared by several parents.
// A Graph is never modified, ReplaceSubtree builds a new one.
type Graph struct {
	root  Node
	nodes []Node
}

func NewGraph(root Node) (*Graph, error) {
	if root == nil {
		return nil, errorx.NewPlanError(errorx.InvalidPlan, "plan has no root")
	}
	const (
		visiting = 1
		done     = 2
	)
	state := make(map[Node]int)
	var nodes []Node
	var visit func(n Node) error
	visit = func(n Node) error {
		switch state[n] {
		case visiting:
			return errorx.PlanErrorf(errorx.InvalidPlan, "", "", n.Explain(), "cycle detected at %s", n.Op())
		case done:
			return nil
		}
		state[n] = visiting
		nodes = append(nodes, n)
		for i, c := range n.Children() {
			if c == nil {
				return errorx.PlanErrorf(errorx.InvalidPlan, "", "", n.Explain(), "input %d of %s is nil", i, n.Op())
			}
			if err := visit(c); err != nil {
				return err
			}
		}
		state[n] = done
		return nil
	}
	if err := visit(root); err != nil {
		return nil, err
	}
	return &Graph{root: root, nodes: nodes}, nil
}

func (g *Graph) Root() Node {
	return g.root
}

// Size is the number of distinct nodes.
func (g *Graph) Size() int {
	return len(g.nodes)
}

// Nodes lists the distinct nodes in pre-order of their first occurrence.
func (g *Graph) Nodes() []Node {
	return append([]Node(nil), g.nodes...)
}

// Walk visits every node occurrence in pre-order. Returning false from fn
// skips the children of that occurrence.
func (g *Graph) Walk(fn func(p Path, n Node) bool) {
	var walk func(p Path, n Node)
	walk = func(p Path, n Node) {
		if !fn(p, n) {
			return
		}
		for i, c := range n.Children() {
			walk(p.child(i), c)
		}
	}
	walk(Path{}, g.root)
}

// At returns the node at the path.
func (g *Graph) At(p Path) (Node, bool) {
	n := g.root
	for _, i := range p {
		children := n.Children()
		if i < 0 || i >= len(children) {
			return nil, false
		}
		n = children[i]
	}
	return n, true
}

// Next returns the position following p in pre-order: the first child if
// any, otherwise the next sibling of p or of its closest ancestor.
func (g *Graph) Next(p Path) (Path, bool) {
	n, ok := g.At(p)
	if !ok {
		return nil, false
	}
	if len(n.Children()) > 0 {
		return p.child(0), true
	}
	return g.NextSibling(p)
}

// NextSibling skips the subtree at p.
func (g *Graph) NextSibling(p Path) (Path, bool) {
	for len(p) > 0 {
		parentPath := p[:len(p)-1]
		parent, ok := g.At(parentPath)
		if !ok {
			return nil, false
		}
		idx := p[len(p)-1]
		if idx+1 < len(parent.Children()) {
			return parentPath.child(idx + 1), true
		}
		p = parentPath
	}
	return nil, false
}

// ReplaceSubtree returns a graph where every occurrence of target, compared by
// identity, is replaced. Ancestors of target are copied, everything else is
// shared with the receiver. Two parents sharing a rebuilt child still share
// the rebuilt copy.
func (g *Graph) ReplaceSubtree(target, replacement Node) (*Graph, error) {
	if replacement == nil {
		return nil, errorx.PlanErrorf(errorx.InvalidPlan, "", "", target.Explain(), "nil replacement")
	}
	if !target.RowType().Equal(replacement.RowType()) {
		return nil, errorx.PlanErrorf(errorx.SchemaViolationError, "", "", target.Explain(),
			"replacement row type %s differs from %s", replacement.RowType().String(), target.RowType().String())
	}
	memo := make(map[Node]Node)
	var rebuild func(n Node) Node
	rebuild = func(n Node) Node {
		if n == target {
			return replacement
		}
		if r, ok := memo[n]; ok {
			return r
		}
		r := n
		children := n.Children()
		var newChildren []Node
		for i, c := range children {
			nc := rebuild(c)
			if nc != c && newChildren == nil {
				newChildren = make([]Node, len(children))
				copy(newChildren, children[:i])
			}
			if newChildren != nil {
				newChildren[i] = nc
			}
		}
		if newChildren != nil {
			r = n.WithChildren(newChildren)
		}
		memo[n] = r
		return r
	}
	newRoot := rebuild(g.root)
	if newRoot == g.root {
		return nil, errorx.PlanErrorf(errorx.InvalidPlan, "", "", target.Explain(), "node to replace is not in the plan")
	}
	return NewGraph(newRoot)
}

// Validate checks every node against its inputs.
func (g *Graph) Validate() error {
	for _, n := range g.nodes {
		if err := n.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// CheckConvention returns the first node in pre-order that does not meet the
// convention, or nil. Physical nodes must also declare a changelog mode.
func (g *Graph) CheckConvention(want Convention) Node {
	for _, n := range g.nodes {
		switch want {
		case Logical:
			if IsPhysical(n) {
				return n
			}
		case Physical:
			if !IsPhysical(n) || n.Traits().Changelog == 0 {
				return n
			}
		}
	}
	return nil
}

// Explain prints the plan as an indented tree. A node reached through more
// than one parent is printed once and referenced by its reuse id afterwards.
func (g *Graph) Explain() string {
	parents := make(map[Node]int)
	g.Walk(func(_ Path, n Node) bool {
		parents[n]++
		// count the subtree once
		return parents[n] == 1
	})
	reuse := make(map[Node]int)
	buf := bytes.NewBufferString("")
	var explainNode func(n Node, level int)
	explainNode = func(n Node, level int) {
		for i := 0; i < level; i++ {
			buf.WriteString("  ")
		}
		if id, ok := reuse[n]; ok {
			buf.WriteString(fmt.Sprintf("Reused(reference_id=[%d])\n", id))
			return
		}
		buf.WriteString(n.Explain())
		if parents[n] > 1 {
			id := len(reuse) + 1
			reuse[n] = id
			buf.WriteString(fmt.Sprintf(", reuse_id=[%d]", id))
		}
		buf.WriteString("\n")
		for _, c := range n.Children() {
			explainNode(c, level+1)
		}
	}
	explainNode(g.root, 0)
	return strings.TrimSuffix(buf.String(), "\n")
}

// Digest fingerprints the plan. Equal plans have equal digests.
func (g *Graph) Digest() string {
	return fmt.Sprintf("%016x", xxhash.Sum64String(g.Explain()))
}
