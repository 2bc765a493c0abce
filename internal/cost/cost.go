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

// Package cost estimates cardinalities and the resources a physical node
// consumes so the conversion phase can pick among alternatives.
package cost

import (
	"fmt"
	"math"
)

// Weights turning the cost vector into one comparable value.
const (
	cpuWeight     = 1.0
	networkWeight = 4.0
	memoryWeight  = 0.5
)

type Cost struct {
	Rows    float64
	CPU     float64
	Network float64
	Memory  float64
}

func (c Cost) Value() float64 {
	return c.CPU*cpuWeight + c.Network*networkWeight + c.Memory*memoryWeight
}

// Add sums the resources. Rows are not cumulative, the receiver keeps its own.
func (c Cost) Add(o Cost) Cost {
	return Cost{
		Rows:    c.Rows,
		CPU:     c.CPU + o.CPU,
		Network: c.Network + o.Network,
		Memory:  c.Memory + o.Memory,
	}
}

// Less compares by value.
func (c Cost) Less(o Cost) bool {
	return c.Value() < o.Value()
}

func (c Cost) String() string {
	return fmt.Sprintf("{%s rows, %s cpu, %s net, %s mem}", num(c.Rows), num(c.CPU), num(c.Network), num(c.Memory))
}

func num(f float64) string {
	if f == math.Trunc(f) && math.Abs(f) < 1e15 {
		return fmt.Sprintf("%.0f", f)
	}
	return fmt.Sprintf("%.2f", f)
}
