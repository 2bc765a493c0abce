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

type Column struct {
	// Table is the source table, empty for computed columns.
	Table string
	Name  string
	Type  ast.DataType
}

func (c Column) String() string {
	return c.Name + " " + c.Type.String()
}

// RowType is the ordered output signature of a node.
type RowType []Column

// Equal compares names and types position by position. The source table is
// not part of the signature.
func (r RowType) Equal(o RowType) bool {
	if len(r) != len(o) {
		return false
	}
	for i := range r {
		if r[i].Name != o[i].Name || r[i].Type != o[i].Type {
			return false
		}
	}
	return true
}

func (r RowType) Names() []string {
	names := make([]string, len(r))
	for i, c := range r {
		names[i] = c.Name
	}
	return names
}

// IndexOf finds the column by name. An empty table matches any table.
func (r RowType) IndexOf(table, name string) int {
	for i, c := range r {
		if c.Name == name && (table == "" || c.Table == "" || c.Table == table) {
			return i
		}
	}
	return -1
}

// Resolve finds the column a field reference points to.
func (r RowType) Resolve(ref *ast.FieldRef) (Column, bool) {
	table := ""
	if ref.StreamName != ast.DefaultStream {
		table = string(ref.StreamName)
	}
	i := r.IndexOf(table, ref.Name)
	if i < 0 {
		return Column{}, false
	}
	return r[i], true
}

// Resolver adapts the row type for ast.TypeOf.
func (r RowType) Resolver() ast.TypeResolver {
	return func(ref *ast.FieldRef) (ast.DataType, bool) {
		c, ok := r.Resolve(ref)
		return c.Type, ok
	}
}

func (r RowType) String() string {
	parts := make([]string, len(r))
	for i, c := range r {
		parts[i] = c.String()
	}
	return "[" + strings.Join(parts, ", ") + "]"
}
