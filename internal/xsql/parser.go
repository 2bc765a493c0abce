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
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/lf-edge/kuiperopt/pkg/ast"
	"github.com/lf-edge/kuiperopt/pkg/errorx"
)

type Parser struct {
	s *Scanner

	i   int // buffer index
	n   int // buffer char count
	buf [3]struct {
		tok ast.Token
		lit string
	}
}

func NewParser(r io.Reader) *Parser {
	return &Parser{s: NewScanner(r)}
}

// ParseExpr parses a scalar expression such as `T.a > 1 AND abs(b) < 2.5`.
// The whole text must be consumed.
func ParseExpr(text string) (ast.Expr, error) {
	p := NewParser(strings.NewReader(text))
	expr, err := p.ParseExpr()
	if err != nil {
		return nil, errorx.NewParserError(err.Error())
	}
	if tok, lit := p.scanIgnoreWhitespace(); tok != ast.EOF {
		return nil, errorx.NewParserError(fmt.Sprintf("found %q, expected EOF.", lit))
	}
	return expr, nil
}

func (p *Parser) scan() (tok ast.Token, lit string) {
	if p.n > 0 {
		p.n--
		return p.curr()
	}

	tok, lit = p.s.Scan()

	if tok != ast.WS && tok != ast.COMMENT {
		p.i = (p.i + 1) % len(p.buf)
		buf := &p.buf[p.i]
		buf.tok, buf.lit = tok, lit
	}

	return
}

func (p *Parser) curr() (ast.Token, string) {
	i := (p.i - p.n + len(p.buf)) % len(p.buf)
	buf := &p.buf[i]
	return buf.tok, buf.lit
}

func (p *Parser) scanIgnoreWhitespace() (tok ast.Token, lit string) {
	tok, lit = p.scan()
	for tok == ast.WS || tok == ast.COMMENT {
		tok, lit = p.scan()
	}
	return tok, lit
}

func (p *Parser) unscan() { p.n++ }

func (p *Parser) ParseExpr() (ast.Expr, error) {
	return p.parseBinaryExpr(0)
}

// parseBinaryExpr reads operands and operators until it meets an operator
// binding no tighter than stop. Each new operator is pushed down the right
// spine of the tree until it finds a node with a lower precedence.
func (p *Parser) parseBinaryExpr(stop int) (ast.Expr, error) {
	var err error
	root := &ast.BinaryExpr{}

	root.RHS, err = p.parseUnaryExpr()
	if err != nil {
		return nil, err
	}

	for {
		op, _ := p.scanIgnoreWhitespace()
		if op == ast.ASTERISK {
			op = ast.MUL
		}
		if !op.IsOperator() || op.Precedence() <= stop {
			p.unscan()
			return root.RHS, nil
		}

		var rhs ast.Expr
		if rhs, err = p.parseUnaryExpr(); err != nil {
			return nil, err
		}

		for node := root; ; {
			r, ok := node.RHS.(*ast.BinaryExpr)
			if !ok || r.OP.Precedence() >= op.Precedence() {
				node.RHS = &ast.BinaryExpr{LHS: node.RHS, RHS: rhs, OP: op}
				break
			}
			node = r
		}
	}
}

func (p *Parser) parseUnaryExpr() (ast.Expr, error) {
	tok, lit := p.scanIgnoreWhitespace()
	switch tok {
	case ast.LPAREN:
		expr, err := p.ParseExpr()
		if err != nil {
			return nil, err
		}
		// Expect an RPAREN at the end.
		if tok2, lit2 := p.scanIgnoreWhitespace(); tok2 != ast.RPAREN {
			return nil, fmt.Errorf("found %q, expected right paren.", lit2)
		}
		return &ast.ParenExpr{Expr: expr}, nil
	case ast.NOT:
		// NOT binds looser than comparison but tighter than AND
		expr, err := p.parseBinaryExpr(ast.AND.Precedence())
		if err != nil {
			return nil, err
		}
		return &ast.UnaryExpr{OP: ast.NOT, Expr: expr}, nil
	case ast.SUB:
		expr, err := p.parseUnaryExpr()
		if err != nil {
			return nil, err
		}
		switch v := expr.(type) {
		case *ast.IntegerLiteral:
			return &ast.IntegerLiteral{Val: -v.Val}, nil
		case *ast.NumberLiteral:
			return &ast.NumberLiteral{Val: -v.Val}, nil
		}
		return &ast.UnaryExpr{OP: ast.SUB, Expr: expr}, nil
	case ast.IDENT:
		if tok1, _ := p.scanIgnoreWhitespace(); tok1 == ast.LPAREN {
			return p.parseCall(lit)
		} else if tok1 == ast.DOT {
			tok2, lit2 := p.scanIgnoreWhitespace()
			if tok2 != ast.IDENT {
				return nil, fmt.Errorf("found %q, expected field name after %s.", lit2, lit)
			}
			return &ast.FieldRef{StreamName: ast.StreamName(lit), Name: lit2}, nil
		}
		p.unscan()
		return &ast.FieldRef{StreamName: ast.DefaultStream, Name: lit}, nil
	case ast.STRING:
		return &ast.StringLiteral{Val: lit}, nil
	case ast.INTEGER:
		val, err := strconv.Atoi(lit)
		if err != nil {
			return nil, fmt.Errorf("found %q, invalid integer value.", lit)
		}
		return &ast.IntegerLiteral{Val: val}, nil
	case ast.NUMBER:
		v, err := strconv.ParseFloat(lit, 64)
		if err != nil {
			return nil, fmt.Errorf("found %q, invalid number value.", lit)
		}
		return &ast.NumberLiteral{Val: v}, nil
	case ast.TRUE, ast.FALSE:
		return &ast.BooleanLiteral{Val: tok == ast.TRUE}, nil
	case ast.ASTERISK:
		return &ast.Wildcard{Token: ast.ASTERISK}, nil
	case ast.BADSTRING:
		return nil, fmt.Errorf("found unterminated string %q.", lit)
	}
	return nil, fmt.Errorf("found %q, expected expression.", lit)
}

func (p *Parser) parseCall(n string) (ast.Expr, error) {
	name := n
	if ast.FuncTypeOf(n) != ast.NotFoundFunc {
		name = strings.ToLower(n)
	}
	var args []ast.Expr
	if tok, _ := p.scanIgnoreWhitespace(); tok == ast.RPAREN {
		return &ast.Call{Name: name}, nil
	}
	p.unscan()
	for {
		exp, err := p.ParseExpr()
		if err != nil {
			return nil, err
		}
		args = append(args, exp)
		if tok, _ := p.scanIgnoreWhitespace(); tok != ast.COMMA {
			p.unscan()
			break
		}
	}
	if tok, lit := p.scanIgnoreWhitespace(); tok != ast.RPAREN {
		return nil, fmt.Errorf("found function call %q, expected ), but with %q.", name, lit)
	}
	return &ast.Call{Name: name, Args: args}, nil
}
