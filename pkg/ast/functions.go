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

import "strings"

type FuncType int

const (
	NotFoundFunc FuncType = iota - 1
	AggFunc
	MathFunc
	StrFunc
	ConvFunc
	OtherFunc
)

type aggFuncInfo struct {
	// splittable aggregates can run as a local pre-aggregate followed by a global merge
	splittable bool
	// merge is the function the global stage applies on the partial results
	merge  string
	result func(arg DataType) DataType
}

func sameType(arg DataType) DataType { return arg }

var aggFuncMap = map[string]aggFuncInfo{
	"count": {splittable: true, merge: "sum", result: func(DataType) DataType { return BIGINT }},
	"sum":   {splittable: true, merge: "sum", result: sameType},
	"min":   {splittable: true, merge: "min", result: sameType},
	"max":   {splittable: true, merge: "max", result: sameType},
	"avg":   {result: func(DataType) DataType { return FLOAT }},
	"collect": {result: func(DataType) DataType { return ANY }},
	"deduplicate": {result: func(DataType) DataType { return ANY }},
}

var mathFuncMap = map[string]func(DataType) DataType{
	"abs":   sameType,
	"ceil":  func(DataType) DataType { return BIGINT },
	"floor": func(DataType) DataType { return BIGINT },
	"round": sameType,
	"power": func(DataType) DataType { return FLOAT },
	"sqrt":  func(DataType) DataType { return FLOAT },
	"mod":   sameType,
}

var strFuncMap = map[string]func(DataType) DataType{
	"concat":     func(DataType) DataType { return STRINGS },
	"lower":      func(DataType) DataType { return STRINGS },
	"upper":      func(DataType) DataType { return STRINGS },
	"trim":       func(DataType) DataType { return STRINGS },
	"length":     func(DataType) DataType { return BIGINT },
	"startswith": func(DataType) DataType { return BOOLEAN },
	"endswith":   func(DataType) DataType { return BOOLEAN },
}

var otherFuncMap = map[string]func(DataType) DataType{
	"isnull":       func(DataType) DataType { return BOOLEAN },
	"tstamp":       func(DataType) DataType { return DATETIME },
	"event_time":   func(DataType) DataType { return DATETIME },
	"window_start": func(DataType) DataType { return DATETIME },
	"window_end":   func(DataType) DataType { return DATETIME },
}

func FuncTypeOf(name string) FuncType {
	n := strings.ToLower(name)
	if _, ok := aggFuncMap[n]; ok {
		return AggFunc
	}
	if _, ok := mathFuncMap[n]; ok {
		return MathFunc
	}
	if _, ok := strFuncMap[n]; ok {
		return StrFunc
	}
	if _, ok := otherFuncMap[n]; ok {
		return OtherFunc
	}
	return NotFoundFunc
}

func IsAggFunc(name string) bool {
	return FuncTypeOf(name) == AggFunc
}

// IsSplittable reports whether the aggregate can be computed in two stages and
// returns the function the global stage uses to merge the partial values.
func IsSplittable(name string) (string, bool) {
	info, ok := aggFuncMap[strings.ToLower(name)]
	if !ok || !info.splittable {
		return "", false
	}
	return info.merge, true
}

// FuncResultType returns the result type of a function call with the given
// first argument type. Unknown functions are typed ANY.
func FuncResultType(name string, arg DataType) DataType {
	n := strings.ToLower(name)
	if info, ok := aggFuncMap[n]; ok {
		return info.result(arg)
	}
	for _, m := range []map[string]func(DataType) DataType{mathFuncMap, strFuncMap, otherFuncMap} {
		if f, ok := m[n]; ok {
			return f(arg)
		}
	}
	return ANY
}
