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

// Package rule defines the contract of a rewrite rule and the named, ordered
// rule sets phases are built from.
package rule

import (
	"time"

	"github.com/lf-edge/kuiperopt/internal/catalog"
	"github.com/lf-edge/kuiperopt/internal/plan"
)

// Rule is a schema preserving rewrite of one subtree. Apply is only called
// on nodes Matches accepted. It must not modify its input; an empty result
// means no beneficial rewrite was found.
type Rule interface {
	Name() string
	Matches(node plan.Node, ctx *Context) bool
	Apply(node plan.Node, ctx *Context) ([]plan.Node, error)
}

type Flags struct {
	// Idempotent rules never match their own output again.
	Idempotent bool
	// Reapply asks the single pass strategy to examine the output again.
	Reapply bool
	// Before lists the rules this one must precede in a rule set. It is the
	// only ordering constraint the pipeline enforces.
	Before []string
}

// Flagged is implemented by rules that declare metadata.
type Flagged interface {
	Flags() Flags
}

func FlagsOf(r Rule) Flags {
	if f, ok := r.(Flagged); ok {
		return f.Flags()
	}
	return Flags{}
}

// Option keys understood by the built-in rules.
const (
	OptMiniBatchEnabled  = "minibatch_enabled"
	OptMiniBatchInterval = "minibatch_interval"
)

// Context is what a rule may look at besides the node itself.
type Context struct {
	Phase string
	// Parent is the node the candidate is read by at the current position,
	// nil at the root.
	Parent  plan.Node
	Catalog catalog.Provider
	Options map[string]any
	Graph   *plan.Graph
}

func (c *Context) Bool(key string) bool {
	switch v := c.Options[key].(type) {
	case bool:
		return v
	case string:
		return v == "true"
	}
	return false
}

// Duration reads a duration option given as a string like 1s or as
// milliseconds.
func (c *Context) Duration(key string) time.Duration {
	switch v := c.Options[key].(type) {
	case time.Duration:
		return v
	case string:
		d, _ := time.ParseDuration(v)
		return d
	case int:
		return time.Duration(v) * time.Millisecond
	case int64:
		return time.Duration(v) * time.Millisecond
	}
	return 0
}

// Table looks up the catalog, tolerating a missing one.
func (c *Context) Table(name string) (*catalog.Table, bool) {
	if c.Catalog == nil {
		return nil, false
	}
	return c.Catalog.Table(name)
}

type funcRule struct {
	name    string
	flags   Flags
	matches func(plan.Node, *Context) bool
	apply   func(plan.Node, *Context) ([]plan.Node, error)
}

// New builds a rule from functions.
func New(name string, flags Flags, matches func(plan.Node, *Context) bool, apply func(plan.Node, *Context) ([]plan.Node, error)) Rule {
	return &funcRule{name: name, flags: flags, matches: matches, apply: apply}
}

func (r *funcRule) Name() string { return r.name }

func (r *funcRule) Flags() Flags { return r.flags }

func (r *funcRule) Matches(node plan.Node, ctx *Context) bool {
	return r.matches(node, ctx)
}

func (r *funcRule) Apply(node plan.Node, ctx *Context) ([]plan.Node, error) {
	return r.apply(node, ctx)
}
