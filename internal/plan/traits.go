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
	"time"
)

type Convention int

const (
	// ConventionAny accepts both logical and physical nodes.
	ConventionAny Convention = iota
	Logical
	Physical
)

func (c Convention) String() string {
	switch c {
	case Logical:
		return "logical"
	case Physical:
		return "physical"
	}
	return "any"
}

type DistributionType int

const (
	DistAny DistributionType = iota
	DistSingleton
	DistHash
	DistBroadcast
)

type Distribution struct {
	Type DistributionType
	Keys []string
}

func AnyDistribution() Distribution { return Distribution{Type: DistAny} }

func Singleton() Distribution { return Distribution{Type: DistSingleton} }

func Broadcast() Distribution { return Distribution{Type: DistBroadcast} }

func Hash(keys ...string) Distribution {
	return Distribution{Type: DistHash, Keys: keys}
}

// Satisfies reports whether data laid out by d meets the requirement r.
func (d Distribution) Satisfies(r Distribution) bool {
	switch r.Type {
	case DistAny:
		return true
	case DistHash:
		if d.Type != DistHash || len(d.Keys) != len(r.Keys) {
			return false
		}
		for i := range d.Keys {
			if d.Keys[i] != r.Keys[i] {
				return false
			}
		}
		return true
	default:
		return d.Type == r.Type
	}
}

func (d Distribution) String() string {
	switch d.Type {
	case DistSingleton:
		return "single"
	case DistHash:
		return "hash[" + strings.Join(d.Keys, ", ") + "]"
	case DistBroadcast:
		return "broadcast"
	}
	return "any"
}

// ChangelogMode is the set of row kinds a physical node may emit.
type ChangelogMode uint8

const (
	Insert ChangelogMode = 1 << iota
	UpdateBefore
	UpdateAfter
	Delete

	InsertOnly ChangelogMode = Insert
	Retract                  = Insert | UpdateBefore | UpdateAfter | Delete
	Upsert                   = Insert | UpdateAfter | Delete
)

var changelogNames = []struct {
	m    ChangelogMode
	name string
}{
	{Insert, "I"},
	{UpdateBefore, "UB"},
	{UpdateAfter, "UA"},
	{Delete, "D"},
}

func (m ChangelogMode) Contains(o ChangelogMode) bool {
	return m&o == o
}

func (m ChangelogMode) IsInsertOnly() bool {
	return m == Insert
}

func (m ChangelogMode) String() string {
	var parts []string
	for _, n := range changelogNames {
		if m.Contains(n.m) {
			parts = append(parts, n.name)
		}
	}
	return strings.Join(parts, ",")
}

func ParseChangelogMode(s string) (ChangelogMode, bool) {
	var m ChangelogMode
	for _, p := range strings.Split(s, ",") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		found := false
		for _, n := range changelogNames {
			if strings.EqualFold(p, n.name) {
				m |= n.m
				found = true
				break
			}
		}
		if !found {
			return 0, false
		}
	}
	return m, m != 0
}

type SortKey struct {
	Field string
	Desc  bool
}

func (k SortKey) String() string {
	if k.Desc {
		return k.Field + " DESC"
	}
	return k.Field + " ASC"
}

func sortKeysString(keys []SortKey) string {
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k.String())
	}
	return strings.Join(parts, ", ")
}

// Traits are the physical properties of a node. Only physical nodes have them.
type Traits struct {
	// Impl names the physical implementation, e.g. HashJoin.
	Impl         string
	Distribution Distribution
	Collation    []SortKey
	Changelog    ChangelogMode
	// TimeAttr is the rowtime field the node keeps the watermark on, if any.
	TimeAttr  string
	MiniBatch time.Duration
}

// With returns a copy carrying another implementation name.
func (t *Traits) With(impl string) *Traits {
	c := *t
	c.Impl = impl
	c.Collation = append([]SortKey(nil), t.Collation...)
	return &c
}

func (t *Traits) explainParams() []string {
	ps := []string{param("distribution", t.Distribution.String())}
	if len(t.Collation) > 0 {
		ps = append(ps, param("collation", sortKeysString(t.Collation)))
	}
	ps = append(ps, param("changelogMode", t.Changelog.String()))
	if t.TimeAttr != "" {
		ps = append(ps, param("rowtime", t.TimeAttr))
	}
	if t.MiniBatch > 0 {
		ps = append(ps, param("miniBatch", t.MiniBatch.String()))
	}
	return ps
}
