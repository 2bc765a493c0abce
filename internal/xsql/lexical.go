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
	"bufio"
	"bytes"
	"io"
	"strings"

	"github.com/lf-edge/kuiperopt/pkg/ast"
)

const eof = rune(0)

type Scanner struct {
	r *bufio.Reader
}

func NewScanner(r io.Reader) *Scanner {
	return &Scanner{r: bufio.NewReader(r)}
}

func (s *Scanner) Scan() (tok ast.Token, lit string) {
	ch := s.read()
	if isWhiteSpace(ch) {
		return s.ScanWhiteSpace()
	} else if isLetter(ch) || ch == '_' {
		s.unread()
		return s.ScanIdent()
	} else if isQuotation(ch) {
		s.unread()
		return s.ScanString()
	} else if isDigit(ch) {
		s.unread()
		return s.ScanNumber()
	} else if isBackquote(ch) {
		return s.ScanBackquoteIdent()
	}

	switch ch {
	case eof:
		return ast.EOF, ast.Tokens[ast.EOF]
	case '=':
		return ast.EQ, ast.Tokens[ast.EQ]
	case '!':
		if r := s.read(); r == '=' {
			return ast.NEQ, ast.Tokens[ast.NEQ]
		}
		s.unread()
		return ast.ILLEGAL, "!"
	case '<':
		if r := s.read(); r == '=' {
			return ast.LTE, ast.Tokens[ast.LTE]
		} else if r == '>' {
			return ast.NEQ, ast.Tokens[ast.NEQ]
		}
		s.unread()
		return ast.LT, ast.Tokens[ast.LT]
	case '>':
		if r := s.read(); r == '=' {
			return ast.GTE, ast.Tokens[ast.GTE]
		}
		s.unread()
		return ast.GT, ast.Tokens[ast.GT]
	case '+':
		return ast.ADD, ast.Tokens[ast.ADD]
	case '-':
		if r := s.read(); r == '-' {
			s.skipUntilNewline()
			return ast.COMMENT, ""
		}
		s.unread()
		return ast.SUB, ast.Tokens[ast.SUB]
	case '/':
		if r := s.read(); r == '*' {
			if err := s.skipUntilEndComment(); err != nil {
				return ast.ILLEGAL, ""
			}
			return ast.COMMENT, ""
		}
		s.unread()
		return ast.DIV, ast.Tokens[ast.DIV]
	case '.':
		return ast.DOT, ast.Tokens[ast.DOT]
	case '%':
		return ast.MOD, ast.Tokens[ast.MOD]
	case '*':
		return ast.ASTERISK, ast.Tokens[ast.ASTERISK]
	case ',':
		return ast.COMMA, ast.Tokens[ast.COMMA]
	case '(':
		return ast.LPAREN, ast.Tokens[ast.LPAREN]
	case ')':
		return ast.RPAREN, ast.Tokens[ast.RPAREN]
	}
	return ast.ILLEGAL, string(ch)
}

func (s *Scanner) ScanIdent() (tok ast.Token, lit string) {
	var buf bytes.Buffer
	buf.WriteRune(s.read())
	for {
		if ch := s.read(); ch == eof {
			break
		} else if !isLetter(ch) && !isDigit(ch) && ch != '_' {
			s.unread()
			break
		} else {
			buf.WriteRune(ch)
		}
	}

	switch lit = strings.ToUpper(buf.String()); lit {
	case "AND":
		return ast.AND, lit
	case "OR":
		return ast.OR, lit
	case "NOT":
		return ast.NOT, lit
	case "TRUE":
		return ast.TRUE, lit
	case "FALSE":
		return ast.FALSE, lit
	}

	return ast.IDENT, buf.String()
}

// ScanString reads a single or double quoted string. A quote is escaped by a
// backslash.
func (s *Scanner) ScanString() (tok ast.Token, lit string) {
	var buf bytes.Buffer
	quote := s.read()
	escape := false
	for {
		ch := s.read()
		if ch == quote && !escape {
			break
		} else if ch == eof {
			return ast.BADSTRING, buf.String()
		} else if ch == '\\' && !escape {
			escape = true
		} else {
			if escape && ch != quote && ch != '\\' {
				buf.WriteRune('\\')
			}
			escape = false
			buf.WriteRune(ch)
		}
	}
	return ast.STRING, buf.String()
}

func (s *Scanner) ScanNumber() (tok ast.Token, lit string) {
	var buf bytes.Buffer
	buf.WriteRune(s.read())

	isNum := false
	for {
		if ch := s.read(); isDigit(ch) {
			buf.WriteRune(ch)
		} else if ch == '.' && !isNum {
			isNum = true
			buf.WriteRune(ch)
		} else {
			s.unread()
			break
		}
	}
	if isNum {
		return ast.NUMBER, buf.String()
	}
	return ast.INTEGER, buf.String()
}

func (s *Scanner) ScanBackquoteIdent() (tok ast.Token, lit string) {
	var buf bytes.Buffer
	for {
		ch := s.read()
		if isBackquote(ch) {
			break
		} else if ch == eof {
			return ast.BADSTRING, buf.String()
		}
		buf.WriteRune(ch)
	}
	return ast.IDENT, buf.String()
}

func (s *Scanner) ScanWhiteSpace() (tok ast.Token, lit string) {
	var buf bytes.Buffer
	for {
		if ch := s.read(); ch == eof {
			break
		} else if !isWhiteSpace(ch) {
			s.unread()
			break
		} else {
			buf.WriteRune(ch)
		}
	}
	return ast.WS, buf.String()
}

func (s *Scanner) skipUntilNewline() {
	for {
		if ch := s.read(); ch == '\n' || ch == eof {
			return
		}
	}
}

func (s *Scanner) skipUntilEndComment() error {
	for {
		if ch1 := s.read(); ch1 == '*' {
			if ch2 := s.read(); ch2 == '/' {
				return nil
			} else if ch2 == eof {
				return io.EOF
			}
			s.unread()
		} else if ch1 == eof {
			return io.EOF
		}
	}
}

func (s *Scanner) read() rune {
	ch, _, err := s.r.ReadRune()
	if err != nil {
		return eof
	}
	return ch
}

func (s *Scanner) unread() { _ = s.r.UnreadRune() }

func isWhiteSpace(r rune) bool { return r == ' ' || r == '\t' || r == '\n' || r == '\r' }

func isLetter(ch rune) bool { return (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z') }

func isDigit(ch rune) bool { return ch >= '0' && ch <= '9' }

func isQuotation(ch rune) bool { return ch == '"' || ch == '\'' }

func isBackquote(ch rune) bool { return ch == '`' }
