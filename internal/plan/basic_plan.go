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
	"time"

	"github.com/lf-edge/kuiperopt/pkg/ast"
	"github.com/lf-edge/kuiperopt/pkg/errorx"
)

// Watermark describes the event time progress a scan emits.
type Watermark struct {
	Field string
	Delay time.Duration
}

func (w *Watermark) String() string {
	return w.Field + " - " + w.Delay.String()
}

type Scan struct {
	baseNode
	Table   string
	Columns RowType
	// Watermark is set once a watermark assigner is pushed into the scan.
	Watermark *Watermark
}

func (p Scan) Init() *Scan {
	p.baseNode.self = &p
	return &p
}

func NewScan(table string, columns RowType) *Scan {
	return Scan{Table: table, Columns: columns}.Init()
}

// WithWatermark returns a copy emitting the watermark.
func (p *Scan) WithWatermark(w *Watermark) *Scan {
	c := *p
	c.Watermark = w
	return c.Init()
}

func (p *Scan) Op() OpType       { return OpScan }
func (p *Scan) clone() Node      { return p.Init() }
func (p *Scan) RowType() RowType { return p.Columns }

func (p *Scan) Explain() string {
	ps := []string{param("table", p.Table), param("fields", strings.Join(p.Columns.Names(), ", "))}
	if p.Watermark != nil {
		ps = append(ps, param("watermark", p.Watermark.String()))
	}
	return explain(p, ps...)
}

func (p *Scan) Validate() error {
	if err := arity(p, 0, 0); err != nil {
		return err
	}
	if p.Watermark != nil && p.Columns.IndexOf("", p.Watermark.Field) < 0 {
		return invalid(p, "watermark field %s not found", p.Watermark.Field)
	}
	return nil
}

type Filter struct {
	baseNode
	Condition ast.Expr
}

func (p Filter) Init() *Filter {
	p.baseNode.self = &p
	return &p
}

func NewFilter(condition ast.Expr, input Node) *Filter {
	p := Filter{Condition: condition}.Init()
	p.children = []Node{input}
	return p
}

func (p *Filter) Op() OpType       { return OpFilter }
func (p *Filter) clone() Node      { return p.Init() }
func (p *Filter) RowType() RowType { return p.inputRowType() }

func (p *Filter) Explain() string {
	return explain(p, param("condition", p.Condition.String()))
}

func (p *Filter) Validate() error {
	if err := arity(p, 1, 1); err != nil {
		return err
	}
	return checkPredicate(p, p.Condition, p.inputRowType())
}

type Project struct {
	baseNode
	Fields ast.Fields
}

func (p Project) Init() *Project {
	p.baseNode.self = &p
	return &p
}

func NewProject(fields ast.Fields, input Node) *Project {
	p := Project{Fields: fields}.Init()
	p.children = []Node{input}
	return p
}

func (p *Project) Op() OpType  { return OpProject }
func (p *Project) clone() Node { return p.Init() }

func (p *Project) RowType() RowType {
	return projectRowType(p.Fields, p.inputRowType())
}

func (p *Project) Explain() string {
	return explain(p, param("select", p.Fields.String()))
}

func (p *Project) Validate() error {
	if err := arity(p, 1, 1); err != nil {
		return err
	}
	return checkFields(p, p.Fields, p.inputRowType())
}

// Calc is a projection and a filter evaluated in one operator. The condition
// is evaluated on the input row before the projection.
type Calc struct {
	baseNode
	// Projection is nil when the input row passes through.
	Projection ast.Fields
	Condition  ast.Expr
}

func (p Calc) Init() *Calc {
	p.baseNode.self = &p
	return &p
}

func NewCalc(projection ast.Fields, condition ast.Expr, input Node) *Calc {
	p := Calc{Projection: projection, Condition: condition}.Init()
	p.children = []Node{input}
	return p
}

func (p *Calc) Op() OpType  { return OpCalc }
func (p *Calc) clone() Node { return p.Init() }

func (p *Calc) RowType() RowType {
	if p.Projection == nil {
		return p.inputRowType()
	}
	return projectRowType(p.Projection, p.inputRowType())
}

func (p *Calc) Explain() string {
	sel := "*"
	if p.Projection != nil {
		sel = p.Projection.String()
	}
	ps := []string{param("select", sel)}
	if p.Condition != nil {
		ps = append(ps, param("where", p.Condition.String()))
	}
	return explain(p, ps...)
}

func (p *Calc) Validate() error {
	if err := arity(p, 1, 1); err != nil {
		return err
	}
	in := p.inputRowType()
	if p.Condition != nil {
		if err := checkPredicate(p, p.Condition, in); err != nil {
			return err
		}
	}
	if p.Projection != nil {
		return checkFields(p, p.Projection, in)
	}
	return nil
}

func projectRowType(fields ast.Fields, in RowType) RowType {
	rt := make(RowType, 0, len(fields))
	for i := range fields {
		f := &fields[i]
		col := Column{Name: f.OutputName(), Type: ast.ANY}
		if fr, ok := f.Expr.(*ast.FieldRef); ok {
			if c, found := in.Resolve(fr); found {
				col.Table = c.Table
			}
		}
		if t, err := ast.TypeOf(f.Expr, in.Resolver()); err == nil {
			col.Type = t
		}
		rt = append(rt, col)
	}
	return rt
}

func arity(n Node, min, max int) error {
	c := len(n.Children())
	if c < min || (max >= 0 && c > max) {
		return invalid(n, "%s expects %d to %d inputs but has %d", n.Op(), min, max, c)
	}
	for i, ch := range n.Children() {
		if ch == nil {
			return invalid(n, "input %d is nil", i)
		}
	}
	return nil
}

func checkRefs(n Node, e ast.Node, rt RowType) error {
	for _, ref := range ast.FieldRefs(e) {
		if _, ok := rt.Resolve(ref); !ok {
			return invalid(n, "field %s not found in %s", ref.String(), rt.String())
		}
	}
	return nil
}

func checkPredicate(n Node, cond ast.Expr, rt RowType) error {
	if cond == nil {
		return invalid(n, "missing condition")
	}
	if err := checkRefs(n, cond, rt); err != nil {
		return err
	}
	t, err := ast.TypeOf(cond, rt.Resolver())
	if err != nil {
		return invalid(n, "%v", err)
	}
	if t != ast.BOOLEAN && t != ast.ANY {
		return invalid(n, "condition %s is %s, not boolean", cond.String(), t)
	}
	return nil
}

func checkFields(n Node, fields ast.Fields, rt RowType) error {
	seen := make(map[string]struct{}, len(fields))
	for i := range fields {
		if err := checkRefs(n, fields[i].Expr, rt); err != nil {
			return err
		}
		name := fields[i].OutputName()
		if _, ok := seen[name]; ok {
			return invalid(n, "duplicate output field %s", name)
		}
		seen[name] = struct{}{}
	}
	return nil
}

func invalid(n Node, format string, args ...any) error {
	return errorx.PlanErrorf(errorx.InvalidPlan, "", "", n.Explain(), format, args...)
}
