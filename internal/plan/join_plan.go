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

package plan

import (
	"strings"

	"github.com/lf-edge/kuiperopt/pkg/ast"
)

type JoinType int

const (
	InnerJoin JoinType = iota
	LeftJoin
	RightJoin
	FullJoin
	SemiJoin
	AntiJoin
)

var joinTypes = map[JoinType]string{
	InnerJoin: "inner",
	LeftJoin:  "left",
	RightJoin: "right",
	FullJoin:  "full",
	SemiJoin:  "semi",
	AntiJoin:  "anti",
}

func (t JoinType) String() string {
	return joinTypes[t]
}

func ParseJoinType(s string) (JoinType, bool) {
	for k, v := range joinTypes {
		if strings.EqualFold(v, s) {
			return k, true
		}
	}
	return 0, false
}

// Join combines two inputs. The output row is the left row followed by the
// right row, or the left row only for semi and anti joins.
type Join struct {
	baseNode
	Type      JoinType
	Condition ast.Expr
}

func (p Join) Init() *Join {
	p.baseNode.self = &p
	return &p
}

func NewJoin(joinType JoinType, condition ast.Expr, left, right Node) *Join {
	p := Join{Type: joinType, Condition: condition}.Init()
	p.children = []Node{left, right}
	return p
}

func (p *Join) Op() OpType  { return OpJoin }
func (p *Join) clone() Node { return p.Init() }

func (p *Join) Left() Node  { return p.children[0] }
func (p *Join) Right() Node { return p.children[1] }

func (p *Join) RowType() RowType {
	if len(p.children) < 2 {
		return p.inputRowType()
	}
	l := p.children[0].RowType()
	if p.Type == SemiJoin || p.Type == AntiJoin {
		return l
	}
	r := p.children[1].RowType()
	rt := make(RowType, 0, len(l)+len(r))
	return append(append(rt, l...), r...)
}

// combinedRowType is what the condition sees.
func (p *Join) combinedRowType() RowType {
	l := p.children[0].RowType()
	r := p.children[1].RowType()
	rt := make(RowType, 0, len(l)+len(r))
	return append(append(rt, l...), r...)
}

func (p *Join) Explain() string {
	ps := []string{param("type", p.Type.String())}
	if p.Condition != nil {
		ps = append(ps, param("condition", p.Condition.String()))
	}
	return explain(p, ps...)
}

func (p *Join) Validate() error {
	if err := arity(p, 2, 2); err != nil {
		return err
	}
	if p.Condition == nil {
		return nil
	}
	return checkPredicate(p, p.Condition, p.combinedRowType())
}

// EquiKeys extracts the pairs of columns compared for equality in the
// condition conjuncts. Each pair is ordered as left key, right key.
func (p *Join) EquiKeys() (left, right []string) {
	if p.Condition == nil || len(p.children) < 2 {
		return nil, nil
	}
	lrt, rrt := p.children[0].RowType(), p.children[1].RowType()
	for _, c := range ast.Conjuncts(p.Condition) {
		be, ok := c.(*ast.BinaryExpr)
		if !ok || be.OP != ast.EQ {
			continue
		}
		lr, ok1 := ast.StripParens(be.LHS).(*ast.FieldRef)
		rr, ok2 := ast.StripParens(be.RHS).(*ast.FieldRef)
		if !ok1 || !ok2 {
			continue
		}
		_, lInL := lrt.Resolve(lr)
		_, rInR := rrt.Resolve(rr)
		if lInL && rInR {
			left, right = append(left, lr.Name), append(right, rr.Name)
			continue
		}
		_, rInL := lrt.Resolve(rr)
		_, lInR := rrt.Resolve(lr)
		if rInL && lInR {
			left, right = append(left, rr.Name), append(right, lr.Name)
		}
	}
	return left, right
}
