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

package ast

import "reflect"

// StripParens removes any number of enclosing parenthesis.
func StripParens(e Expr) Expr {
	for {
		p, ok := e.(*ParenExpr)
		if !ok {
			return e
		}
		e = p.Expr
	}
}

// Conjuncts splits an expression on its top level ANDs.
func Conjuncts(e Expr) []Expr {
	if e == nil {
		return nil
	}
	e = StripParens(e)
	if b, ok := e.(*BinaryExpr); ok && b.OP == AND {
		return append(Conjuncts(b.LHS), Conjuncts(b.RHS)...)
	}
	return []Expr{e}
}

// Combine joins the conditions with AND. It returns nil for an empty list.
func Combine(conds ...Expr) Expr {
	var r Expr
	for _, c := range conds {
		if c == nil {
			continue
		}
		if r == nil {
			r = c
			continue
		}
		r = &BinaryExpr{OP: AND, LHS: r, RHS: c}
	}
	return r
}

// Equal reports whether two expressions are structurally identical.
func Equal(a, b Expr) bool {
	return reflect.DeepEqual(a, b)
}

// FieldRefs collects every field reference in the node in visit order.
func FieldRefs(n Node) []*FieldRef {
	var refs []*FieldRef
	WalkFunc(n, func(n Node) bool {
		if fr, ok := n.(*FieldRef); ok {
			refs = append(refs, fr)
		}
		return true
	})
	return refs
}

// Substitute returns a copy of the expression where every field reference is
// replaced by the expression fn returns for it. References fn returns nil for
// are kept. The input is never modified.
func Substitute(e Expr, fn func(*FieldRef) Expr) Expr {
	switch ex := e.(type) {
	case *FieldRef:
		if r := fn(ex); r != nil {
			if _, isBin := r.(*BinaryExpr); isBin {
				return &ParenExpr{Expr: r}
			}
			return r
		}
		return ex
	case *ParenExpr:
		return &ParenExpr{Expr: Substitute(ex.Expr, fn)}
	case *BinaryExpr:
		return &BinaryExpr{OP: ex.OP, LHS: Substitute(ex.LHS, fn), RHS: Substitute(ex.RHS, fn)}
	case *UnaryExpr:
		return &UnaryExpr{OP: ex.OP, Expr: Substitute(ex.Expr, fn)}
	case *Call:
		args := make([]Expr, len(ex.Args))
		for i, a := range ex.Args {
			args[i] = Substitute(a, fn)
		}
		return &Call{Name: ex.Name, Args: args}
	}
	return e
}
