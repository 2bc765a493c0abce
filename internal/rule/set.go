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

package rule

import (
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/lf-edge/kuiperopt/internal/plan"
	"github.com/lf-edge/kuiperopt/pkg/errorx"
)

type Kind int

const (
	// KindLogical rewrites logical plans into logical plans.
	KindLogical Kind = iota
	// KindConversion turns logical nodes into physical alternatives.
	KindConversion
	// KindPhysical rewrites physical plans.
	KindPhysical
)

func (k Kind) String() string {
	switch k {
	case KindConversion:
		return "conversion"
	case KindPhysical:
		return "physical"
	}
	return "logical"
}

// Requires is the convention of the plans the rules apply to.
func (k Kind) Requires() plan.Convention {
	if k == KindPhysical {
		return plan.Physical
	}
	return plan.Logical
}

// Produces is the convention of the plans the rules leave behind.
func (k Kind) Produces() plan.Convention {
	if k == KindLogical {
		return plan.Logical
	}
	return plan.Physical
}

// Set is a named ordered sequence of rules. It is immutable once built.
type Set struct {
	name  string
	kind  Kind
	rules []Rule
}

// NewSet validates the rules. Rules are compared by identity so they must be
// of a comparable type, typically a pointer.
func NewSet(name string, kind Kind, rules ...Rule) (*Set, error) {
	for i, r := range rules {
		if r == nil {
			return nil, errorx.NewWithCode(errorx.PipelineValidationError, fmt.Sprintf("rule set %s has a nil rule at %d", name, i))
		}
		if !reflect.TypeOf(r).Comparable() {
			return nil, errorx.NewWithCode(errorx.PipelineValidationError, fmt.Sprintf("rule %s in set %s is not comparable", r.Name(), name))
		}
	}
	return &Set{name: name, kind: kind, rules: append([]Rule(nil), rules...)}, nil
}

// MustNewSet is NewSet for static definitions.
func MustNewSet(name string, kind Kind, rules ...Rule) *Set {
	s, err := NewSet(name, kind, rules...)
	if err != nil {
		panic(err)
	}
	return s
}

func (s *Set) Name() string { return s.name }

func (s *Set) Kind() Kind { return s.kind }

func (s *Set) Len() int { return len(s.rules) }

// Rules returns a copy of the ordered rules.
func (s *Set) Rules() []Rule {
	return append([]Rule(nil), s.rules...)
}

func (s *Set) String() string {
	names := make([]string, len(s.rules))
	for i, r := range s.rules {
		names[i] = r.Name()
	}
	return s.name + "[" + strings.Join(names, ", ") + "]"
}

func composeKind(a, b *Set) (Kind, error) {
	if a.kind != b.kind {
		return 0, errorx.NewWithCode(errorx.PipelineValidationError, fmt.Sprintf("cannot compose %s set %s with %s set %s", a.kind, a.name, b.kind, b.name))
	}
	return a.kind, nil
}

// Union keeps every distinct rule once: the rules of a in order, then the
// rules of b not already in a.
func Union(name string, a, b *Set) (*Set, error) {
	kind, err := composeKind(a, b)
	if err != nil {
		return nil, err
	}
	seen := make(map[Rule]struct{}, len(a.rules)+len(b.rules))
	rules := make([]Rule, 0, len(a.rules)+len(b.rules))
	for _, s := range []*Set{a, b} {
		for _, r := range s.rules {
			if _, ok := seen[r]; ok {
				continue
			}
			seen[r] = struct{}{}
			rules = append(rules, r)
		}
	}
	return &Set{name: name, kind: kind, rules: rules}, nil
}

// Concat keeps both orders and the duplicates.
func Concat(name string, a, b *Set) (*Set, error) {
	kind, err := composeKind(a, b)
	if err != nil {
		return nil, err
	}
	rules := make([]Rule, 0, len(a.rules)+len(b.rules))
	rules = append(append(rules, a.rules...), b.rules...)
	return &Set{name: name, kind: kind, rules: rules}, nil
}

// Registry holds the named rule sets a pipeline configuration refers to.
// Build it once and share it read only.
type Registry struct {
	sets map[string]*Set
}

func NewRegistry(sets ...*Set) (*Registry, error) {
	r := &Registry{sets: make(map[string]*Set, len(sets))}
	for _, s := range sets {
		if err := r.Register(s); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds a set. It must not be called once the registry is shared.
func (r *Registry) Register(s *Set) error {
	if _, ok := r.sets[s.name]; ok {
		return errorx.NewWithCode(errorx.PipelineValidationError, fmt.Sprintf("rule set %s is registered twice", s.name))
	}
	r.sets[s.name] = s
	return nil
}

func (r *Registry) Get(name string) (*Set, bool) {
	s, ok := r.sets[name]
	return s, ok
}

func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.sets))
	for n := range r.sets {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
