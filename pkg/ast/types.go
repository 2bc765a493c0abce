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
	"fmt"
	"strings"
)

type DataType int

const (
	UNKNOWN DataType = iota
	BIGINT
	FLOAT
	STRINGS
	BOOLEAN
	DATETIME
	ANY
)

var dataTypes = []string{
	UNKNOWN:  "unknown",
	BIGINT:   "bigint",
	FLOAT:    "float",
	STRINGS:  "string",
	BOOLEAN:  "boolean",
	DATETIME: "datetime",
	ANY:      "any",
}

func (d DataType) String() string {
	if d >= 0 && int(d) < len(dataTypes) {
		return dataTypes[d]
	}
	return "unknown"
}

func (d DataType) IsNumeric() bool {
	return d == BIGINT || d == FLOAT
}

func GetDataType(s string) (DataType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "bigint", "int", "integer", "long":
		return BIGINT, nil
	case "float", "double", "decimal":
		return FLOAT, nil
	case "string", "varchar", "text":
		return STRINGS, nil
	case "boolean", "bool":
		return BOOLEAN, nil
	case "datetime", "timestamp":
		return DATETIME, nil
	case "any":
		return ANY, nil
	}
	return UNKNOWN, fmt.Errorf("unknown data type %q", s)
}

// TypeResolver returns the type of the referenced field and whether it exists.
type TypeResolver func(ref *FieldRef) (DataType, bool)

// TypeOf infers the result type of an expression.
func TypeOf(e Expr, resolve TypeResolver) (DataType, error) {
	switch ex := e.(type) {
	case *BooleanLiteral:
		return BOOLEAN, nil
	case *IntegerLiteral:
		return BIGINT, nil
	case *NumberLiteral:
		return FLOAT, nil
	case *StringLiteral:
		return STRINGS, nil
	case *ParenExpr:
		return TypeOf(ex.Expr, resolve)
	case *FieldRef:
		t, ok := resolve(ex)
		if !ok {
			return UNKNOWN, fmt.Errorf("unknown field %s", ex.String())
		}
		return t, nil
	case *UnaryExpr:
		t, err := TypeOf(ex.Expr, resolve)
		if err != nil {
			return UNKNOWN, err
		}
		if ex.OP == NOT {
			return BOOLEAN, nil
		}
		return t, nil
	case *BinaryExpr:
		lt, err := TypeOf(ex.LHS, resolve)
		if err != nil {
			return UNKNOWN, err
		}
		rt, err := TypeOf(ex.RHS, resolve)
		if err != nil {
			return UNKNOWN, err
		}
		switch {
		case ex.OP == AND || ex.OP == OR || ex.OP.IsComparison():
			return BOOLEAN, nil
		case lt == FLOAT || rt == FLOAT || ex.OP == DIV:
			return FLOAT, nil
		case lt == BIGINT && rt == BIGINT:
			return BIGINT, nil
		case lt == ANY || rt == ANY:
			return ANY, nil
		default:
			return UNKNOWN, fmt.Errorf("invalid operation %s", ex.String())
		}
	case *Call:
		var argType DataType = ANY
		if len(ex.Args) > 0 {
			if _, ok := ex.Args[0].(*Wildcard); !ok {
				t, err := TypeOf(ex.Args[0], resolve)
				if err != nil {
					return UNKNOWN, err
				}
				argType = t
			}
		}
		return FuncResultType(ex.Name, argType), nil
	case *Wildcard:
		return ANY, nil
	}
	return UNKNOWN, fmt.Errorf("unsupported expression %T", e)
}
