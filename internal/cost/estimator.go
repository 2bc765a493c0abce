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

	"github.com/lf-edge/kuiperopt/internal/catalog"
	"github.com/lf-edge/kuiperopt/internal/plan"
	"github.com/lf-edge/kuiperopt/pkg/ast"
)

// Guessed selectivities of predicates without statistics.
const (
	eqSelectivity      = 0.15
	rangeSelectivity   = 0.5
	notEqSelectivity   = 0.9
	defaultSelectivity = 0.25
	// groupRatio is the share of input rows that are distinct group keys.
	groupRatio = 0.1
)

// Estimator derives row counts from the catalog. It memoises per node and is
// meant for one compilation, it is not safe for concurrent use.
type Estimator struct {
	catalog catalog.Provider
	rows    map[plan.Node]float64
}

func NewEstimator(c catalog.Provider) *Estimator {
	return &Estimator{catalog: c, rows: make(map[plan.Node]float64)}
}

func (e *Estimator) Rows(n plan.Node) float64 {
	if r, ok := e.rows[n]; ok {
		return r
	}
	r := math.Max(e.estimate(n), 1)
	e.rows[n] = r
	return r
}

func (e *Estimator) input(n plan.Node, i int) float64 {
	children := n.Children()
	if i >= len(children) {
		return 1
	}
	return e.Rows(children[i])
}

func (e *Estimator) estimate(n plan.Node) float64 {
	switch p := n.(type) {
	case *plan.Scan:
		if e.catalog != nil {
			if t, ok := e.catalog.Table(p.Table); ok {
				return t.Rows()
			}
		}
		return catalog.DefaultRowCount
	case *plan.Filter:
		return e.input(n, 0) * Selectivity(p.Condition)
	case *plan.Calc:
		return e.input(n, 0) * Selectivity(p.Condition)
	case *plan.Join:
		l, r := e.input(n, 0), e.input(n, 1)
		switch {
		case p.Type == plan.SemiJoin || p.Type == plan.AntiJoin:
			return l * 0.5
		case p.Condition == nil:
			return l * r
		}
		if lk, _ := p.EquiKeys(); len(lk) > 0 {
			return math.Max(l, r)
		}
		return l * r * Selectivity(p.Condition)
	case *plan.Aggregate:
		if len(p.GroupKeys) == 0 && p.Stage != plan.LocalStage {
			return 1
		}
		in := e.input(n, 0)
		if p.Stage == plan.LocalStage {
			return in * 0.5
		}
		return in * groupRatio
	case *plan.Sort:
		if p.Fetch > 0 {
			return math.Min(float64(p.Fetch), e.input(n, 0))
		}
		return e.input(n, 0)
	case *plan.Rank:
		in := e.input(n, 0)
		if len(p.PartitionKeys) == 0 {
			return math.Min(float64(p.RankEnd), in)
		}
		return math.Min(in*groupRatio*float64(p.RankEnd), in)
	case *plan.Union:
		total := 0.0
		for i := range n.Children() {
			total += e.input(n, i)
		}
		return total
	case *plan.Correlate:
		return e.input(n, 0) * 2
	}
	return e.input(n, 0)
}

// Selectivity guesses the share of rows a predicate keeps.
func Selectivity(cond ast.Expr) float64 {
	if cond == nil {
		return 1
	}
	switch c := ast.StripParens(cond).(type) {
	case *ast.BooleanLiteral:
		if c.Val {
			return 1
		}
		return 0
	case *ast.UnaryExpr:
		if c.OP == ast.NOT {
			return 1 - Selectivity(c.Expr)
		}
	case *ast.BinaryExpr:
		switch c.OP {
		case ast.AND:
			return Selectivity(c.LHS) * Selectivity(c.RHS)
		case ast.OR:
			l, r := Selectivity(c.LHS), Selectivity(c.RHS)
			return l + r - l*r
		case ast.EQ:
			return eqSelectivity
		case ast.NEQ:
			return notEqSelectivity
		case ast.LT, ast.LTE, ast.GT, ast.GTE:
			return rangeSelectivity
		}
	}
	return defaultSelectivity
}
