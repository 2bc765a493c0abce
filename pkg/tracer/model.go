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

package tracer

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// CompilationKey is the span attribute naming the compilation a trace belongs to.
const CompilationKey = "compilation.id"

type LocalSpan struct {
	Name          string                 `json:"name"`
	TraceID       string                 `json:"traceID"`
	SpanID        string                 `json:"spanID"`
	ParentSpanID  string                 `json:"parentSpanID,omitempty"`
	Attribute     map[string]interface{} `json:"attribute,omitempty"`
	StartTime     time.Time              `json:"startTime"`
	EndTime       time.Time              `json:"endTime"`
	CompilationID string                 `json:"compilationID"`

	ChildSpan []*LocalSpan
}

func FromReadonlySpan(readonly sdktrace.ReadOnlySpan) *LocalSpan {
	span := &LocalSpan{
		Name:      readonly.Name(),
		TraceID:   readonly.SpanContext().TraceID().String(),
		SpanID:    readonly.SpanContext().SpanID().String(),
		ChildSpan: make([]*LocalSpan, 0),
		StartTime: readonly.StartTime(),
		EndTime:   readonly.EndTime(),
	}
	if readonly.Parent().IsValid() {
		span.ParentSpanID = readonly.Parent().SpanID().String()
	}
	if len(readonly.Attributes()) > 0 {
		span.Attribute = make(map[string]interface{})
		for _, attr := range readonly.Attributes() {
			if string(attr.Key) == CompilationKey {
				span.CompilationID = attr.Value.AsString()
			}
			span.Attribute[string(attr.Key)] = attr.Value.AsInterface()
		}
	}
	return span
}

func (span *LocalSpan) Duration() time.Duration {
	return span.EndTime.Sub(span.StartTime)
}

// Print writes the span tree, one span per line with its duration and
// attributes.
func (span *LocalSpan) Print(w io.Writer) {
	span.print(w, 0)
}

func (span *LocalSpan) print(w io.Writer, level int) {
	keys := make([]string, 0, len(span.Attribute))
	for k := range span.Attribute {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	attrs := make([]string, 0, len(keys))
	for _, k := range keys {
		attrs = append(attrs, fmt.Sprintf("%s=%v", k, span.Attribute[k]))
	}
	fmt.Fprintf(w, "%s%s %s", strings.Repeat("  ", level), span.Name, span.Duration())
	if len(attrs) > 0 {
		fmt.Fprintf(w, " [%s]", strings.Join(attrs, " "))
	}
	fmt.Fprintln(w)
	for _, c := range span.ChildSpan {
		c.print(w, level+1)
	}
}
