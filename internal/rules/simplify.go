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

package rules

import (
	"math"

	"github.com/lf-edge/kuiperopt/pkg/ast"
)

// Simplify folds constants and boolean identities. It never changes the
// result of the expression and never modifies its input.
func Simplify(e ast.Expr) ast.Expr {
	switch ex := e.(type) {
	case *ast.ParenExpr:
		return Simplify(ex.Expr)
	case *ast.UnaryExpr:
		return simplifyUnary(ex.OP, Simplify(ex.Expr))
	case *ast.BinaryExpr:
		return simplifyBinary(ex.OP, Simplify(ex.LHS), Simplify(ex.RHS))
	case *ast.Call:
		if len(ex.Args) == 0 {
			return ex
		}
		args := make([]ast.Expr, len(ex.Args))
		for i, a := range ex.Args {
			args[i] = Simplify(a)
		}
		return &ast.Call{Name: ex.Name, Args: args}
	}
	return e
}

func boolLit(e ast.Expr) (bool, bool) {
	if b, ok := e.(*ast.BooleanLiteral); ok {
		return b.Val, true
	}
	return false, false
}

func simplifyUnary(op ast.Token, e ast.Expr) ast.Expr {
	switch op {
	case ast.NOT:
		if v, ok := boolLit(e); ok {
			return &ast.BooleanLiteral{Val: !v}
		}
		switch inner := e.(type) {
		case *ast.UnaryExpr:
			if inner.OP == ast.NOT {
				return inner.Expr
			}
		case *ast.BinaryExpr:
			if neg, ok := inner.OP.Negate(); ok {
				return &ast.BinaryExpr{OP: neg, LHS: inner.LHS, RHS: inner.RHS}
			}
		}
	case ast.SUB:
		switch v := e.(type) {
		case *ast.IntegerLiteral:
			if v.Val != math.MinInt {
				return &ast.IntegerLiteral{Val: -v.Val}
			}
		case *ast.NumberLiteral:
			return &ast.NumberLiteral{Val: -v.Val}
		case *ast.UnaryExpr:
			if v.OP == ast.SUB {
				return v.Expr
			}
		}
	}
	return &ast.UnaryExpr{OP: op, Expr: e}
}

func simplifyBinary(op ast.Token, l, r ast.Expr) ast.Expr {
	switch op {
	case ast.AND:
		lv, lok := boolLit(l)
		rv, rok := boolLit(r)
		switch {
		case lok && !lv, rok && !rv:
			return &ast.BooleanLiteral{Val: false}
		case lok:
			return r
		case rok:
			return l
		case ast.Equal(l, r):
			return l
		}
	case ast.OR:
		lv, lok := boolLit(l)
		rv, rok := boolLit(r)
		switch {
		case lok && lv, rok && rv:
			return &ast.BooleanLiteral{Val: true}
		case lok:
			return r
		case rok:
			return l
		case ast.Equal(l, r):
			return l
		}
	case ast.EQ, ast.NEQ:
		if folded, ok := fold(op, l, r); ok {
			return folded
		}
		// x = true is x, x = false is NOT x
		e, v, ok := boolOperand(l, r)
		if ok {
			if v == (op == ast.EQ) {
				return e
			}
			return simplifyUnary(ast.NOT, e)
		}
	default:
		if folded, ok := fold(op, l, r); ok {
			return folded
		}
	}
	return &ast.BinaryExpr{OP: op, LHS: l, RHS: r}
}

func boolOperand(l, r ast.Expr) (ast.Expr, bool, bool) {
	if v, ok := boolLit(r); ok {
		return l, v, true
	}
	if v, ok := boolLit(l); ok {
		return r, v, true
	}
	return nil, false, false
}

func number(e ast.Expr) (float64, bool, bool) {
	switch v := e.(type) {
	case *ast.IntegerLiteral:
		return float64(v.Val), true, true
	case *ast.NumberLiteral:
		return v.Val, false, true
	}
	return 0, false, false
}

// fold evaluates an operator over two literals.
func fold(op ast.Token, l, r ast.Expr) (ast.Expr, bool) {
	if lv, lInt, ok := number(l); ok {
		rv, rInt, ok := number(r)
		if !ok {
			return nil, false
		}
		if op.IsComparison() {
			return &ast.BooleanLiteral{Val: compare(op, cmpFloat(lv, rv))}, true
		}
		if lInt && rInt {
			li, ri := l.(*ast.IntegerLiteral).Val, r.(*ast.IntegerLiteral).Val
			var (
				v  int
				ok bool
			)
			switch op {
			case ast.ADD:
				v, ok = addInt(li, ri)
			case ast.SUB:
				v, ok = subInt(li, ri)
			case ast.MUL:
				v, ok = mulInt(li, ri)
			case ast.MOD:
				if ri != 0 {
					v, ok = li%ri, true
				}
			}
			// integer division yields a float and an overflow is left to
			// the runtime, keep them unfolded
			if !ok {
				return nil, false
			}
			return &ast.IntegerLiteral{Val: v}, true
		}
		switch op {
		case ast.ADD:
			return &ast.NumberLiteral{Val: lv + rv}, true
		case ast.SUB:
			return &ast.NumberLiteral{Val: lv - rv}, true
		case ast.MUL:
			return &ast.NumberLiteral{Val: lv * rv}, true
		}
		return nil, false
	}
	if op.IsComparison() {
		switch lv := l.(type) {
		case *ast.StringLiteral:
			if rv, ok := r.(*ast.StringLiteral); ok {
				return &ast.BooleanLiteral{Val: compare(op, cmpString(lv.Val, rv.Val))}, true
			}
		case *ast.BooleanLiteral:
			if rv, ok := r.(*ast.BooleanLiteral); ok && (op == ast.EQ || op == ast.NEQ) {
				return &ast.BooleanLiteral{Val: (lv.Val == rv.Val) == (op == ast.EQ)}, true
			}
		}
	}
	return nil, false
}

func addInt(a, b int) (int, bool) {
	s := a + b
	return s, (s > a) == (b > 0)
}

func subInt(a, b int) (int, bool) {
	s := a - b
	return s, (s < a) == (b > 0)
}

func mulInt(a, b int) (int, bool) {
	if a == 0 || b == 0 {
		return 0, true
	}
	if (a == -1 && b == math.MinInt) || (b == -1 && a == math.MinInt) {
		return 0, false
	}
	p := a * b
	return p, p/b == a
}

func cmpFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func cmpString(a, b string) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func compare(op ast.Token, c int) bool {
	switch op {
	case ast.EQ:
		return c == 0
	case ast.NEQ:
		return c != 0
	case ast.LT:
		return c < 0
	case ast.LTE:
		return c <= 0
	case ast.GT:
		return c > 0
	case ast.GTE:
		return c >= 0
	}
	return false
}
