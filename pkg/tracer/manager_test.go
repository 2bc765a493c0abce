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
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

func TestLocalSpan(t *testing.T) {
	s := newLocalSpanMemoryStorage(1)
	span0 := &LocalSpan{
		TraceID: "t0",
		SpanID:  "s0",
	}
	span1 := &LocalSpan{
		TraceID: "t1",
		SpanID:  "s1",
	}
	require.NoError(t, s.saveSpan(span0))
	require.NoError(t, s.saveSpan(span1))
	require.Equal(t, 1, s.queue.Len())
	// span0 should be dropped
	root, err := s.GetTraceById("t0")
	require.NoError(t, err)
	require.Nil(t, root)
	// span1 should be root span
	s1, err := s.GetTraceById("t1")
	require.NoError(t, err)
	require.Equal(t, span1, s1)
}

func TestLocalTraceByCompilation(t *testing.T) {
	s := newLocalSpanMemoryStorage(2)
	span0 := &LocalSpan{
		TraceID:       "t0",
		SpanID:        "s0",
		CompilationID: "c1",
	}
	span1 := &LocalSpan{
		TraceID:       "t1",
		SpanID:        "s1",
		CompilationID: "c1",
	}
	require.NoError(t, s.saveSpan(span0))
	require.NoError(t, s.saveSpan(span1))
	ids, err := s.GetTraceByCompilationID("c1", 0)
	require.NoError(t, err)
	require.Equal(t, []string{"t1", "t0"}, ids)
	ids, err = s.GetTraceByCompilationID("c1", 1)
	require.NoError(t, err)
	require.Equal(t, []string{"t1"}, ids)
}

func TestManager(t *testing.T) {
	m, err := NewManager("", "", 0)
	require.NoError(t, err)
	defer m.Shutdown(context.Background())

	tr := m.TracerProvider().Tracer("test")
	ctx, root := tr.Start(context.Background(), "optimize", trace.WithAttributes(attribute.String(CompilationKey, "c1")))
	for _, name := range []string{"phase a", "phase b"} {
		_, span := tr.Start(ctx, name)
		span.End()
	}
	root.End()

	got, err := m.GetTraceByCompilation("c1")
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, "optimize", got.Name)
	require.Equal(t, "c1", got.CompilationID)
	require.Len(t, got.ChildSpan, 2)
	require.Equal(t, "phase a", got.ChildSpan[0].Name)
	require.Equal(t, "phase b", got.ChildSpan[1].Name)

	var buf bytes.Buffer
	got.Print(&buf)
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	require.True(t, strings.HasPrefix(lines[0], "optimize "))
	require.Contains(t, lines[0], "compilation.id=c1")
	require.True(t, strings.HasPrefix(lines[1], "  phase a "))

	none, err := m.GetTraceByCompilation("c2")
	require.NoError(t, err)
	require.Nil(t, none)
}
