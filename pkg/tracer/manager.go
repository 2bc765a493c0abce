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
	"context"
	"sort"
	"sync"

	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/lf-edge/kuiperopt/internal/conf"
)

// SpanExporter keeps the finished spans in memory and forwards them to a
// remote collector when one is configured.
type SpanExporter struct {
	remoteSpanExport *otlptrace.Exporter
	spanStorage      *LocalSpanMemoryStorage
}

func NewSpanExporter(remoteEndpoint string, capacity int) (*SpanExporter, error) {
	s := &SpanExporter{spanStorage: newLocalSpanMemoryStorage(capacity)}
	if remoteEndpoint != "" {
		exporter, err := otlptracehttp.New(context.Background(),
			otlptracehttp.WithEndpoint(remoteEndpoint),
			otlptracehttp.WithInsecure(),
		)
		if err != nil {
			return nil, err
		}
		s.remoteSpanExport = exporter
	}
	return s, nil
}

func (l *SpanExporter) ExportSpans(ctx context.Context, spans []sdktrace.ReadOnlySpan) error {
	if l == nil {
		return nil
	}
	if l.remoteSpanExport != nil {
		err := l.remoteSpanExport.ExportSpans(ctx, spans)
		if err != nil {
			conf.Log.Warnf("export remote span err: %v", err)
		}
	}
	for _, span := range spans {
		if err := l.spanStorage.SaveSpan(span); err != nil {
			conf.Log.Errorf("save span err:%v", err)
		}
	}
	return nil
}

func (l *SpanExporter) Shutdown(ctx context.Context) error {
	if l == nil {
		return nil
	}
	if l.remoteSpanExport != nil {
		err := l.remoteSpanExport.Shutdown(ctx)
		if err != nil {
			conf.Log.Warnf("shutdown remote span exporter err: %v", err)
		}
	}
	return nil
}

func (l *SpanExporter) GetTraceById(traceID string) (*LocalSpan, error) {
	return l.spanStorage.GetTraceById(traceID)
}

func (l *SpanExporter) GetTraceByCompilationID(id string, limit int64) ([]string, error) {
	return l.spanStorage.GetTraceByCompilationID(id, limit)
}

type LocalSpanMemoryStorage struct {
	sync.RWMutex
	queue *Queue
	// traceid -> spanid -> span
	m map[string]map[string]*LocalSpan
	// compilation -> traceIDs, deduplicated on read
	compilationTraces map[string][]string
}

func newLocalSpanMemoryStorage(capacity int) *LocalSpanMemoryStorage {
	return &LocalSpanMemoryStorage{
		queue:             NewQueue(capacity),
		compilationTraces: make(map[string][]string),
		m:                 map[string]map[string]*LocalSpan{},
	}
}

func (l *LocalSpanMemoryStorage) SaveSpan(span sdktrace.ReadOnlySpan) error {
	l.Lock()
	defer l.Unlock()
	return l.saveSpan(FromReadonlySpan(span))
}

func (l *LocalSpanMemoryStorage) saveSpan(localSpan *LocalSpan) error {
	droppedTraceID := l.queue.Enqueue(localSpan)
	if droppedTraceID != "" {
		delete(l.m, droppedTraceID)
	}
	spanMap, ok := l.m[localSpan.TraceID]
	if !ok {
		spanMap = make(map[string]*LocalSpan)
		l.m[localSpan.TraceID] = spanMap
	}
	if len(localSpan.CompilationID) > 0 {
		l.compilationTraces[localSpan.CompilationID] = append(l.compilationTraces[localSpan.CompilationID], localSpan.TraceID)
	}
	spanMap[localSpan.SpanID] = localSpan
	return nil
}

// GetTraceById returns the root span with its descendants linked, or nil if
// the trace is unknown or has been dropped.
func (l *LocalSpanMemoryStorage) GetTraceById(traceID string) (*LocalSpan, error) {
	l.RLock()
	defer l.RUnlock()
	allSpans := l.m[traceID]
	if len(allSpans) < 1 {
		return nil, nil
	}
	rootSpan := findRootSpan(allSpans)
	if rootSpan == nil {
		return nil, nil
	}
	copySpan := make(map[string]*LocalSpan)
	for k, s := range allSpans {
		copySpan[k] = s
	}
	delete(copySpan, rootSpan.SpanID)
	buildSpanLink(rootSpan, copySpan)
	return rootSpan, nil
}

// GetTraceByCompilationID lists the latest traces first.
func (l *LocalSpanMemoryStorage) GetTraceByCompilationID(id string, limit int64) ([]string, error) {
	l.RLock()
	defer l.RUnlock()
	allTraces := l.compilationTraces[id]
	r := make([]string, 0)
	if limit < 1 {
		limit = int64(len(allTraces))
	}
	count := int64(0)
	traceMap := make(map[string]struct{})
	for i := len(allTraces) - 1; i >= 0; i-- {
		traceID := allTraces[i]
		if _, existed := traceMap[traceID]; existed {
			continue
		}
		traceMap[traceID] = struct{}{}
		r = append(r, traceID)
		count++
		if count >= limit {
			break
		}
	}
	return r, nil
}

func findRootSpan(allSpans map[string]*LocalSpan) *LocalSpan {
	for id1, span1 := range allSpans {
		if span1.ParentSpanID == "" {
			return span1
		}
		isRoot := true
		for id2, span2 := range allSpans {
			if id1 == id2 {
				continue
			}
			if span1.ParentSpanID == span2.SpanID {
				isRoot = false
				break
			}
		}
		if isRoot {
			return span1
		}
	}
	return nil
}

// buildSpanLink attaches the children in start order.
func buildSpanLink(cur *LocalSpan, otherSpans map[string]*LocalSpan) {
	if len(cur.ChildSpan) > 0 {
		return
	}
	for k, otherSpan := range otherSpans {
		if cur.SpanID == otherSpan.ParentSpanID {
			cur.ChildSpan = append(cur.ChildSpan, otherSpan)
			delete(otherSpans, k)
		}
	}
	sort.SliceStable(cur.ChildSpan, func(i, j int) bool {
		a, b := cur.ChildSpan[i], cur.ChildSpan[j]
		if !a.StartTime.Equal(b.StartTime) {
			return a.StartTime.Before(b.StartTime)
		}
		return a.SpanID < b.SpanID
	})
	for _, span := range cur.ChildSpan {
		buildSpanLink(span, otherSpans)
	}
}

// Queue is traceID FIFO queue with sized capacity
type Queue struct {
	m        map[string]struct{}
	items    []string
	capacity int
}

func NewQueue(capacity int) *Queue {
	return &Queue{
		m:        make(map[string]struct{}),
		items:    make([]string, 0),
		capacity: capacity,
	}
}

// Enqueue returns the trace id pushed out, if any.
func (q *Queue) Enqueue(item *LocalSpan) string {
	if _, ok := q.m[item.TraceID]; ok {
		return ""
	}
	dropped := ""
	if len(q.items) >= q.capacity {
		dropped = q.Dequeue()
	}
	q.items = append(q.items, item.TraceID)
	q.m[item.TraceID] = struct{}{}
	return dropped
}

func (q *Queue) Dequeue() string {
	if len(q.items) == 0 {
		return ""
	}
	traceID := q.items[0]
	q.items = q.items[1:]
	delete(q.m, traceID)
	return traceID
}

func (q *Queue) Len() int {
	return len(q.items)
}
