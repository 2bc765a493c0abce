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

package metric

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	LblPhase    = "phase"
	LblRule     = "rule"
	LblStrategy = "strategy"
	LblStatus   = "status"
	LblCode     = "code"

	LblException = "err"
	LblSuccess   = "success"
	LblCancelled = "cancelled"
)

func GetStatusValue(err error) string {
	if err == nil {
		return LblSuccess
	}
	return LblException
}

// Metrics are the optimizer counters. All methods are safe for concurrent
// compilations.
type Metrics struct {
	RuleFirings     *prometheus.CounterVec
	NonConvergences *prometheus.CounterVec
	Failures        *prometheus.CounterVec
	PhaseDuration   *prometheus.HistogramVec
	Compilations    *prometheus.CounterVec
}

var (
	defaultMetrics *Metrics
	mutex          sync.Mutex
)

// GetMetrics returns the metrics registered to the default prometheus registry.
func GetMetrics() *Metrics {
	mutex.Lock()
	defer mutex.Unlock()
	if defaultMetrics == nil {
		defaultMetrics = NewMetrics(prometheus.DefaultRegisterer)
	}
	return defaultMetrics
}

// NewMetrics creates the metrics and registers them to reg if it is not nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		RuleFirings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "kuiperopt",
			Subsystem: "rule",
			Name:      "firings_total",
			Help:      "counter of rewrites applied by a rule",
		}, []string{LblPhase, LblRule}),
		NonConvergences: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "kuiperopt",
			Subsystem: "phase",
			Name:      "non_convergence_total",
			Help:      "counter of phases stopped by the iteration cap",
		}, []string{LblPhase}),
		Failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "kuiperopt",
			Subsystem: "phase",
			Name:      "failures_total",
			Help:      "counter of phases aborted by an error",
		}, []string{LblPhase, LblCode}),
		PhaseDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "kuiperopt",
			Subsystem: "phase",
			Name:      "duration_seconds",
			Help:      "histogram of phase execution time",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 10),
		}, []string{LblPhase, LblStrategy}),
		Compilations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "kuiperopt",
			Subsystem: "pipeline",
			Name:      "compilations_total",
			Help:      "counter of compilations by status",
		}, []string{LblStatus}),
	}
	if reg != nil {
		reg.MustRegister(m.RuleFirings, m.NonConvergences, m.Failures, m.PhaseDuration, m.Compilations)
	}
	return m
}

func (m *Metrics) IncRuleFiring(phase, rule string) {
	m.RuleFirings.WithLabelValues(phase, rule).Inc()
}

func (m *Metrics) IncNonConvergence(phase string) {
	m.NonConvergences.WithLabelValues(phase).Inc()
}

func (m *Metrics) IncFailure(phase, code string) {
	m.Failures.WithLabelValues(phase, code).Inc()
}

func (m *Metrics) ObservePhase(phase, strategy string, d time.Duration) {
	m.PhaseDuration.WithLabelValues(phase, strategy).Observe(d.Seconds())
}

func (m *Metrics) IncCompilation(status string) {
	m.Compilations.WithLabelValues(status).Inc()
}
