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

package cost

import (
	"math"

	"github.com/lf-edge/kuiperopt/internal/plan"
)

// Model computes the cost of a physical node on its own, excluding its
// inputs. The conversion phase adds the chosen input costs.
type Model interface {
	SelfCost(node plan.Node, est *Estimator) Cost
}

// ModelFunc adapts a function to Model.
type ModelFunc func(node plan.Node, est *Estimator) Cost

func (f ModelFunc) SelfCost(node plan.Node, est *Estimator) Cost {
	return f(node, est)
}

// DefaultModel charges CPU per processed row, network per shuffled column
// value and memory for state kept by joins, aggregates and ranks.
type DefaultModel struct {
	// Parallelism multiplies the network cost of a broadcast.
	Parallelism int
}

func (m DefaultModel) parallelism() float64 {
	if m.Parallelism <= 0 {
		return 4
	}
	return float64(m.Parallelism)
}

func (m DefaultModel) SelfCost(node plan.Node, est *Estimator) Cost {
	rows := est.Rows(node)
	in := rows
	if children := node.Children(); len(children) > 0 {
		in = est.Rows(children[0])
	}
	width := float64(len(node.RowType()))
	c := Cost{Rows: rows, CPU: in}
	impl := ""
	if t := node.Traits(); t != nil {
		impl = t.Impl
	}
	switch p := node.(type) {
	case *plan.Exchange:
		c.CPU = 0
		c.Network = rows * width
		if t := p.Traits(); t != nil && t.Distribution.Type == plan.DistBroadcast {
			c.Network *= m.parallelism()
		}
	case *plan.Join:
		l, r := est.Rows(p.Left()), est.Rows(p.Right())
		switch impl {
		case "NestedLoopJoin":
			c.CPU = l * r
			c.Memory = r * float64(len(p.Right().RowType()))
		default:
			c.CPU = l + r
			c.Memory = (l + r) * width
		}
	case *plan.Aggregate:
		c.Memory = rows * width
		if p.Stage == plan.LocalStage {
			// bounded by the mini-batch
			c.Memory = 0
		}
	case *plan.Rank:
		c.Memory = rows * width
	case *plan.Sort:
		c.CPU = in * math.Max(math.Log2(in), 1)
		c.Memory = in * width
	case *plan.Union:
		c.CPU = rows
	case *plan.Scan:
		c.CPU = rows
	}
	return c
}
