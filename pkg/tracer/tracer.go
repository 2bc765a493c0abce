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

// Package tracer records the optimizer spans of the command line tool.
package tracer

import (
	"context"

	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.7.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/lf-edge/kuiperopt/internal/conf"
)

const DefaultServiceName = "kuiperopt"

// DefaultCapacity is the number of traces kept in memory.
const DefaultCapacity = 64

type Manager struct {
	provider *sdktrace.TracerProvider
	*SpanExporter
}

// NewManager exports spans synchronously so that a trace is complete once
// its root span has ended.
func NewManager(serviceName, remoteEndpoint string, capacity int) (*Manager, error) {
	if serviceName == "" {
		serviceName = DefaultServiceName
	}
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	exporter, err := NewSpanExporter(remoteEndpoint, capacity)
	if err != nil {
		return nil, err
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithResource(resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceNameKey.String(serviceName),
		)),
		sdktrace.WithSyncer(exporter),
	)
	conf.Log.Debugf("set tracer, serviceName:%v, endpoint:%v", serviceName, remoteEndpoint)
	return &Manager{provider: tp, SpanExporter: exporter}, nil
}

func (m *Manager) TracerProvider() trace.TracerProvider {
	return m.provider
}

// GetTraceByCompilation returns the latest trace of the compilation, nil if
// none was kept.
func (m *Manager) GetTraceByCompilation(id string) (*LocalSpan, error) {
	ids, err := m.GetTraceByCompilationID(id, 1)
	if err != nil || len(ids) == 0 {
		return nil, err
	}
	return m.GetTraceById(ids[0])
}

func (m *Manager) Shutdown(ctx context.Context) error {
	return m.provider.Shutdown(ctx)
}
