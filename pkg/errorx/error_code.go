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

package errorx

type ErrorCode int

const (
	Undefined_Err ErrorCode = 1000
	GENERAL_ERR   ErrorCode = 1001
	NOT_FOUND     ErrorCode = 1002
	IOErr         ErrorCode = 1003

	// error code for sql

	ParserError ErrorCode = 2001

	// error code for the optimizer

	InvalidPlan                      ErrorCode = 2101
	SchemaViolationError             ErrorCode = 2102
	RuleApplicationError             ErrorCode = 2103
	NonConvergenceWarning            ErrorCode = 2104
	UnimplementedPhysicalAlternative ErrorCode = 2105
	PipelineValidationError          ErrorCode = 2106
	PostconditionViolation           ErrorCode = 2107

	ConfKeyError ErrorCode = 5000
)

var codeNames = map[ErrorCode]string{
	Undefined_Err:                    "Undefined",
	GENERAL_ERR:                      "GeneralError",
	NOT_FOUND:                        "NotFound",
	IOErr:                            "IOError",
	ParserError:                      "ParserError",
	InvalidPlan:                      "InvalidPlan",
	SchemaViolationError:             "SchemaViolationError",
	RuleApplicationError:             "RuleApplicationError",
	NonConvergenceWarning:            "NonConvergenceWarning",
	UnimplementedPhysicalAlternative: "UnimplementedPhysicalAlternative",
	PipelineValidationError:          "PipelineValidationError",
	PostconditionViolation:           "PostconditionViolation",
	ConfKeyError:                     "ConfKeyError",
}

func (c ErrorCode) String() string {
	if n, ok := codeNames[c]; ok {
		return n
	}
	return "Undefined"
}

var NotFoundErr = NewWithCode(NOT_FOUND, "not found")

func NewParserError(msg string) error {
	return &Error{
		code: ParserError,
		msg:  msg,
	}
}

func NewIOErr(msg string) error {
	return &Error{
		code: IOErr,
		msg:  msg,
	}
}
