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

import (
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
)

type Error struct {
	msg  string
	code ErrorCode
}

func New(message string) *Error {
	return &Error{message, GENERAL_ERR}
}

func NewWithCode(code ErrorCode, message string) *Error {
	return &Error{message, code}
}

func (e *Error) Error() string {
	return e.msg
}

func (e *Error) Code() ErrorCode {
	return e.code
}

type ErrorWithCode interface {
	Error() string
	Code() ErrorCode
}

// PlanError is raised by the optimizer. Phase, Rule and Node are filled when
// they are known at the point of failure. Node holds the explain text of the
// offending subtree.
type PlanError struct {
	code  ErrorCode
	Phase string
	Rule  string
	Node  string
	msg   string
	cause error
}

// NewPlanError creates a plan error with a stack attached.
func NewPlanError(code ErrorCode, format string, args ...any) error {
	return errors.WithStackDepth(&PlanError{code: code, msg: fmt.Sprintf(format, args...)}, 1)
}

// PlanErrorf is NewPlanError with the phase, rule and node fields set.
func PlanErrorf(code ErrorCode, phase, rule, node string, format string, args ...any) error {
	return errors.WithStackDepth(&PlanError{
		code:  code,
		Phase: phase,
		Rule:  rule,
		Node:  node,
		msg:   fmt.Sprintf(format, args...),
	}, 1)
}

// WrapPlanError attaches a code and location to a cause.
func WrapPlanError(cause error, code ErrorCode, phase, rule, node string) error {
	return errors.WithStackDepth(&PlanError{
		code:  code,
		Phase: phase,
		Rule:  rule,
		Node:  node,
		msg:   cause.Error(),
		cause: cause,
	}, 1)
}

func (e *PlanError) Error() string {
	var b strings.Builder
	b.WriteString(e.code.String())
	if e.Phase != "" {
		b.WriteString(" in phase ")
		b.WriteString(e.Phase)
	}
	if e.Rule != "" {
		b.WriteString(" by rule ")
		b.WriteString(e.Rule)
	}
	b.WriteString(": ")
	b.WriteString(e.msg)
	if e.Node != "" {
		b.WriteString("\n")
		b.WriteString(e.Node)
	}
	return b.String()
}

func (e *PlanError) Code() ErrorCode {
	return e.code
}

func (e *PlanError) Unwrap() error {
	return e.cause
}

// GetErrorCode finds the first coded error in the chain.
func GetErrorCode(err error) (ErrorCode, bool) {
	var withCode ErrorWithCode
	if errors.As(err, &withCode) {
		return withCode.Code(), true
	}
	return 0, false
}

// IsCode reports whether any error in the chain carries the code.
func IsCode(err error, code ErrorCode) bool {
	c, ok := GetErrorCode(err)
	return ok && c == code
}

// AsPlanError extracts the plan error in the chain.
func AsPlanError(err error) (*PlanError, bool) {
	var pe *PlanError
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}

// Locate fills the phase and the rule of the plan error in the chain when
// they are unknown. Other errors are returned as is.
func Locate(err error, phase, rule string) error {
	pe, ok := AsPlanError(err)
	if !ok {
		return err
	}
	c := *pe
	if c.Phase == "" {
		c.Phase = phase
	}
	if c.Rule == "" {
		c.Rule = rule
	}
	return errors.WithStackDepth(&c, 1)
}
