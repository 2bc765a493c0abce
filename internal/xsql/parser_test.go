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

package xsql

import (
	"strings"
	"testing"

	"github.com/gdexlab/go-render/render"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lf-edge/kuiperopt/pkg/ast"
	"github.com/lf-edge/kuiperopt/pkg/errorx"
)

func TestParseExpr(t *testing.T) {
	tests := []struct {
		s    string
		expr ast.Expr
		err  string
	}{
		{
			s: "x > 0 AND true",
			expr: &ast.BinaryExpr{
				OP:  ast.AND,
				LHS: &ast.BinaryExpr{OP: ast.GT, LHS: &ast.FieldRef{StreamName: ast.DefaultStream, Name: "x"}, RHS: &ast.IntegerLiteral{Val: 0}},
				RHS: &ast.BooleanLiteral{Val: true},
			},
		},
		{
			s: "a + b * 2",
			expr: &ast.BinaryExpr{
				OP:  ast.ADD,
				LHS: &ast.FieldRef{StreamName: ast.DefaultStream, Name: "a"},
				RHS: &ast.BinaryExpr{OP: ast.MUL, LHS: &ast.FieldRef{StreamName: ast.DefaultStream, Name: "b"}, RHS: &ast.IntegerLiteral{Val: 2}},
			},
		},
		{
			s: "T.a <= -1.5",
			expr: &ast.BinaryExpr{
				OP:  ast.LTE,
				LHS: &ast.FieldRef{StreamName: "T", Name: "a"},
				RHS: &ast.NumberLiteral{Val: -1.5},
			},
		},
		{
			s: "NOT a = 'x' OR b",
			expr: &ast.BinaryExpr{
				OP: ast.OR,
				LHS: &ast.UnaryExpr{OP: ast.NOT, Expr: &ast.BinaryExpr{
					OP:  ast.EQ,
					LHS: &ast.FieldRef{StreamName: ast.DefaultStream, Name: "a"},
					RHS: &ast.StringLiteral{Val: "x"},
				}},
				RHS: &ast.FieldRef{StreamName: ast.DefaultStream, Name: "b"},
			},
		},
		{
			s: "COUNT(*)",
			expr: &ast.Call{Name: "count", Args: []ast.Expr{&ast.Wildcard{Token: ast.ASTERISK}}},
		},
		{
			s: "myudf(a, (1))",
			expr: &ast.Call{Name: "myudf", Args: []ast.Expr{
				&ast.FieldRef{StreamName: ast.DefaultStream, Name: "a"},
				&ast.ParenExpr{Expr: &ast.IntegerLiteral{Val: 1}},
			}},
		},
		{
			s:   "a >",
			err: `found "EOF", expected expression.`,
		},
		{
			s:   "(a",
			err: `found "EOF", expected right paren.`,
		},
		{
			s:   "a b",
			err: `found "b", expected EOF.`,
		},
		{
			s:   "f(a b)",
			err: `found function call "f", expected ), but with "b".`,
		},
		{
			s:   "'abc",
			err: `found unterminated string "abc".`,
		},
	}
	for i, tt := range tests {
		t.Run(tt.s, func(t *testing.T) {
			expr, err := ParseExpr(tt.s)
			if tt.err != "" {
				require.Error(t, err)
				assert.Equal(t, tt.err, err.Error())
				assert.True(t, errorx.IsCode(err, errorx.ParserError))
				return
			}
			require.NoError(t, err)
			if !assert.Equal(t, tt.expr, expr) {
				t.Errorf("%d. %q\n\nexpr mismatch:\n\nexp=%s\n\ngot=%s\n\n", i, tt.s, render.AsCode(tt.expr), render.AsCode(expr))
			}
		})
	}
}

func TestParseStringRoundTrip(t *testing.T) {
	tests := []string{
		"x > 0 AND true",
		"(a + 1) * b",
		"a - (b - c)",
		"NOT (a = 1) AND b != 2",
		"abs(T.a) >= 2.5 OR c < -3",
		"a * b / c % 2",
	}
	for _, s := range tests {
		expr, err := ParseExpr(s)
		require.NoError(t, err, s)
		assert.Equal(t, s, expr.String())
	}
}

func TestScanner(t *testing.T) {
	s := NewScanner(strings.NewReader("a<>b /* c */ -- d\n`x y`"))
	var toks []ast.Token
	for {
		tok, _ := s.Scan()
		if tok == ast.EOF {
			break
		}
		if tok != ast.WS {
			toks = append(toks, tok)
		}
	}
	assert.Equal(t, []ast.Token{ast.IDENT, ast.NEQ, ast.IDENT, ast.COMMENT, ast.COMMENT, ast.IDENT}, toks)
}
