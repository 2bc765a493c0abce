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

type Token int

const (
	// Special tokens
	ILLEGAL Token = iota
	EOF
	WS
	COMMENT

	// Literals
	IDENT   // main
	INTEGER // 12345
	NUMBER  // 12345.67
	STRING  // "abc"
	BADSTRING

	operatorBeg
	// ADD and the following are operators
	ADD // +
	SUB // -
	MUL // *
	DIV // /
	MOD // %

	AND // AND
	OR  // OR

	EQ  // =
	NEQ // !=
	LT  // <
	LTE // <=
	GT  // >
	GTE // >=
	operatorEnd

	NOT // NOT

	LPAREN // (
	RPAREN // )
	COMMA  // ,
	DOT    // .

	TRUE
	FALSE
	ASTERISK
)

var Tokens = []string{
	ILLEGAL: "ILLEGAL",
	EOF:     "EOF",
	WS:      "WS",
	COMMENT: "COMMENT",

	IDENT:     "IDENT",
	INTEGER:   "INTEGER",
	NUMBER:    "NUMBER",
	STRING:    "STRING",
	BADSTRING: "BADSTRING",

	ADD: "+",
	SUB: "-",
	MUL: "*",
	DIV: "/",
	MOD: "%",

	AND: "AND",
	OR:  "OR",

	EQ:  "=",
	NEQ: "!=",
	LT:  "<",
	LTE: "<=",
	GT:  ">",
	GTE: ">=",

	NOT: "NOT",

	LPAREN: "(",
	RPAREN: ")",
	COMMA:  ",",
	DOT:    ".",

	TRUE:     "TRUE",
	FALSE:    "FALSE",
	ASTERISK: "*",
}

func (tok Token) String() string {
	if tok >= 0 && int(tok) < len(Tokens) {
		return Tokens[tok]
	}
	return ""
}

func (tok Token) IsOperator() bool {
	return tok > operatorBeg && tok < operatorEnd
}

func (tok Token) IsComparison() bool {
	switch tok {
	case EQ, NEQ, LT, LTE, GT, GTE:
		return true
	}
	return false
}

func (tok Token) Precedence() int {
	switch tok {
	case OR:
		return 1
	case AND:
		return 2
	case EQ, NEQ, LT, LTE, GT, GTE:
		return 4
	case ADD, SUB:
		return 5
	case MUL, DIV, MOD:
		return 6
	}
	return 0
}

// Negate returns the comparison operator with the inverted result, e.g. < to >=.
func (tok Token) Negate() (Token, bool) {
	switch tok {
	case EQ:
		return NEQ, true
	case NEQ:
		return EQ, true
	case LT:
		return GTE, true
	case LTE:
		return GT, true
	case GT:
		return LTE, true
	case GTE:
		return LT, true
	}
	return ILLEGAL, false
}
