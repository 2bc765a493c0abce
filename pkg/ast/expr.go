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

import (
	"strconv"
	"strings"
)

type Node interface {
	node()
}

type Expr interface {
	Node
	expr()
	String() string
}

type Literal interface {
	Expr
	literal()
}

type ParenExpr struct {
	Expr Expr
}

type BooleanLiteral struct {
	Val bool
}

type IntegerLiteral struct {
	Val int
}

type StringLiteral struct {
	Val string
}

type NumberLiteral struct {
	Val float64
}

type Wildcard struct {
	Token Token
}

func (pe *ParenExpr) expr() {}
func (pe *ParenExpr) node() {}
func (pe *ParenExpr) String() string {
	return "(" + pe.Expr.String() + ")"
}

func (w *Wildcard) expr()          {}
func (w *Wildcard) node()          {}
func (w *Wildcard) String() string { return "*" }

func (bl *BooleanLiteral) expr()    {}
func (bl *BooleanLiteral) literal() {}
func (bl *BooleanLiteral) node()    {}
func (bl *BooleanLiteral) String() string {
	return strconv.FormatBool(bl.Val)
}

func (il *IntegerLiteral) expr()    {}
func (il *IntegerLiteral) literal() {}
func (il *IntegerLiteral) node()    {}
func (il *IntegerLiteral) String() string {
	return strconv.Itoa(il.Val)
}

func (nl *NumberLiteral) expr()    {}
func (nl *NumberLiteral) literal() {}
func (nl *NumberLiteral) node()    {}
func (nl *NumberLiteral) String() string {
	return strconv.FormatFloat(nl.Val, 'f', -1, 64)
}

func (sl *StringLiteral) expr()    {}
func (sl *StringLiteral) literal() {}
func (sl *StringLiteral) node()    {}
func (sl *StringLiteral) String() string {
	return strconv.Quote(sl.Val)
}

type Call struct {
	Name string
	Args []Expr
}

func (c *Call) expr() {}
func (c *Call) node() {}
func (c *Call) String() string {
	args := make([]string, 0, len(c.Args))
	for _, a := range c.Args {
		args = append(args, a.String())
	}
	return c.Name + "(" + strings.Join(args, ", ") + ")"
}

type BinaryExpr struct {
	OP  Token
	LHS Expr
	RHS Expr
}

func (be *BinaryExpr) expr() {}
func (be *BinaryExpr) node() {}

func (be *BinaryExpr) String() string {
	return operand(be.LHS, be.OP, false) + " " + be.OP.String() + " " + operand(be.RHS, be.OP, true)
}

// operand prints a child of a binary expression, adding parenthesis only when
// the precedence requires it. AND and OR are associative so a same-operator
// child never needs them.
func operand(e Expr, parent Token, right bool) string {
	c, ok := e.(*BinaryExpr)
	if !ok {
		return e.String()
	}
	p, cp := parent.Precedence(), c.OP.Precedence()
	if cp < p || (right && cp == p && !(c.OP == parent && (parent == AND || parent == OR))) {
		return "(" + c.String() + ")"
	}
	return c.String()
}

type UnaryExpr struct {
	OP   Token
	Expr Expr
}

func (ue *UnaryExpr) expr() {}
func (ue *UnaryExpr) node() {}

func (ue *UnaryExpr) String() string {
	inner := ue.Expr.String()
	if _, ok := ue.Expr.(*BinaryExpr); ok {
		inner = "(" + inner + ")"
	}
	if ue.OP == NOT {
		return "NOT " + inner
	}
	return ue.OP.String() + inner
}

type StreamName string

const DefaultStream = StreamName("$$default")

type FieldRef struct {
	StreamName
	Name string
}

func (fr *FieldRef) expr() {}
func (fr *FieldRef) node() {}

func (fr *FieldRef) String() string {
	if fr.StreamName == "" || fr.StreamName == DefaultStream {
		return fr.Name
	}
	return string(fr.StreamName) + "." + fr.Name
}

type Field struct {
	Name  string
	AName string
	Expr
}

func (f *Field) node() {}

// OutputName is the column name the field produces downstream.
func (f *Field) OutputName() string {
	if f.AName != "" {
		return f.AName
	}
	if f.Name != "" {
		return f.Name
	}
	if fr, ok := f.Expr.(*FieldRef); ok {
		return fr.Name
	}
	return f.Expr.String()
}

func (f *Field) String() string {
	s := f.Expr.String()
	if f.AName != "" {
		s += " AS " + f.AName
	}
	return s
}

type Fields []Field

func (fs Fields) node() {}

func (fs Fields) String() string {
	parts := make([]string, 0, len(fs))
	for i := range fs {
		parts = append(parts, fs[i].String())
	}
	return strings.Join(parts, ", ")
}
