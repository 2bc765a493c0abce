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

// Package plancodec reads logical plans written as YAML or JSON documents.
//
// Every node names its operator in op, lists its inputs and carries the
// operator parameters beside them:
//
//	op: Filter
//	condition: x > 0
//	inputs:
//	  - op: Scan
//	    table: T
//
// A node with an id can be read again by a later node written as ref: <id>,
// which makes the subtree shared.
package plancodec

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"

	"github.com/lf-edge/kuiperopt/internal/catalog"
	"github.com/lf-edge/kuiperopt/internal/plan"
	"github.com/lf-edge/kuiperopt/internal/xsql"
	"github.com/lf-edge/kuiperopt/pkg/ast"
	"github.com/lf-edge/kuiperopt/pkg/errorx"
)

// Doc is one node of a plan document.
type Doc struct {
	Op     string         `yaml:"op"`
	ID     string         `yaml:"id"`
	Ref    string         `yaml:"ref"`
	Inputs []*Doc         `yaml:"inputs"`
	Params map[string]any `yaml:",inline"`
}

type decoder struct {
	catalog catalog.Provider
	ids     map[string]plan.Node
}

// Decode builds the plan of a document. Scans take their columns from the
// catalog.
func Decode(b []byte, cat catalog.Provider) (*plan.Graph, error) {
	doc := &Doc{}
	if err := yaml.Unmarshal(b, doc); err != nil {
		return nil, errorx.NewWithCode(errorx.ParserError, fmt.Sprintf("invalid plan document: %v", err))
	}
	return DecodeDoc(doc, cat)
}

func DecodeFile(p string, cat catalog.Provider) (*plan.Graph, error) {
	b, err := os.ReadFile(p)
	if err != nil {
		return nil, errorx.NewIOErr(err.Error())
	}
	return Decode(b, cat)
}

func DecodeDoc(doc *Doc, cat catalog.Provider) (*plan.Graph, error) {
	if cat == nil {
		return nil, errorx.NewWithCode(errorx.InvalidPlan, "no catalog to resolve the plan document")
	}
	d := &decoder{catalog: cat, ids: make(map[string]plan.Node)}
	root, err := d.node(doc, "root")
	if err != nil {
		return nil, err
	}
	g, err := plan.NewGraph(root)
	if err != nil {
		return nil, err
	}
	if err := g.Validate(); err != nil {
		return nil, err
	}
	return g, nil
}

func (d *decoder) node(doc *Doc, path string) (plan.Node, error) {
	if doc == nil {
		return nil, d.errorf(path, "empty node")
	}
	if doc.Ref != "" {
		if doc.Op != "" || len(doc.Inputs) > 0 {
			return nil, d.errorf(path, "a reference to %s cannot define a node", doc.Ref)
		}
		n, ok := d.ids[doc.Ref]
		if !ok {
			return nil, d.errorf(path, "unknown reference %s, ids must be defined before use", doc.Ref)
		}
		return n, nil
	}
	if doc.Op == "" {
		return nil, d.errorf(path, "missing op")
	}
	inputs := make([]plan.Node, 0, len(doc.Inputs))
	for i, in := range doc.Inputs {
		n, err := d.node(in, fmt.Sprintf("%s.inputs[%d]", path, i))
		if err != nil {
			return nil, err
		}
		inputs = append(inputs, n)
	}
	n, err := d.build(doc, inputs)
	if err != nil {
		return nil, d.errorf(path, "%s: %v", doc.Op, err)
	}
	if doc.ID != "" {
		if _, ok := d.ids[doc.ID]; ok {
			return nil, d.errorf(path, "id %s is defined twice", doc.ID)
		}
		d.ids[doc.ID] = n
	}
	return n, nil
}

func (d *decoder) errorf(path, format string, args ...any) error {
	return errorx.NewWithCode(errorx.InvalidPlan, fmt.Sprintf("plan document at %s: ", path)+fmt.Sprintf(format, args...))
}

type (
	scanParams struct {
		Table string
	}
	filterParams struct {
		Condition string
	}
	projectParams struct {
		Fields []string
	}
	calcParams struct {
		Fields    []string
		Condition string
	}
	joinParams struct {
		Type      string
		Condition string
	}
	aggregateParams struct {
		GroupBy []string
		Calls   []string
	}
	sortParams struct {
		OrderBy []string
		Fetch   int
	}
	rankParams struct {
		PartitionBy []string
		OrderBy     []string
		RankEnd     int
		OutputRank  bool
	}
	unionParams struct {
		All bool
	}
	correlateParams struct {
		Function string
		Columns  []catalog.ColumnDef
		Type     string
	}
	watermarkParams struct {
		Rowtime string
		Delay   string
	}
	sinkParams struct {
		Table string
	}
)

func decodeParams(params map[string]any, v any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		Result:           v,
	})
	if err != nil {
		return err
	}
	return decoder.Decode(params)
}

func arity(inputs []plan.Node, n int) error {
	if len(inputs) != n {
		return fmt.Errorf("expects %d inputs, got %d", n, len(inputs))
	}
	return nil
}

func (d *decoder) build(doc *Doc, inputs []plan.Node) (plan.Node, error) {
	switch plan.OpType(doc.Op) {
	case plan.OpScan:
		p := scanParams{}
		if err := decodeParams(doc.Params, &p); err != nil {
			return nil, err
		}
		if err := arity(inputs, 0); err != nil {
			return nil, err
		}
		tbl, ok := d.catalog.Table(p.Table)
		if !ok {
			return nil, fmt.Errorf("table %s is not in the catalog", p.Table)
		}
		rt, err := tbl.RowType()
		if err != nil {
			return nil, err
		}
		return plan.NewScan(tbl.Name, rt), nil
	case plan.OpFilter:
		p := filterParams{}
		if err := decodeParams(doc.Params, &p); err != nil {
			return nil, err
		}
		if err := arity(inputs, 1); err != nil {
			return nil, err
		}
		cond, err := xsql.ParseExpr(p.Condition)
		if err != nil {
			return nil, err
		}
		return plan.NewFilter(cond, inputs[0]), nil
	case plan.OpProject:
		p := projectParams{}
		if err := decodeParams(doc.Params, &p); err != nil {
			return nil, err
		}
		if err := arity(inputs, 1); err != nil {
			return nil, err
		}
		fields, err := parseFields(p.Fields)
		if err != nil {
			return nil, err
		}
		return plan.NewProject(fields, inputs[0]), nil
	case plan.OpCalc:
		p := calcParams{}
		if err := decodeParams(doc.Params, &p); err != nil {
			return nil, err
		}
		if err := arity(inputs, 1); err != nil {
			return nil, err
		}
		fields, err := parseFields(p.Fields)
		if err != nil {
			return nil, err
		}
		var cond ast.Expr
		if p.Condition != "" {
			if cond, err = xsql.ParseExpr(p.Condition); err != nil {
				return nil, err
			}
		}
		return plan.NewCalc(fields, cond, inputs[0]), nil
	case plan.OpJoin:
		p := joinParams{Type: "inner"}
		if err := decodeParams(doc.Params, &p); err != nil {
			return nil, err
		}
		if err := arity(inputs, 2); err != nil {
			return nil, err
		}
		jt, ok := plan.ParseJoinType(p.Type)
		if !ok {
			return nil, fmt.Errorf("unknown join type %s", p.Type)
		}
		var cond ast.Expr
		if p.Condition != "" {
			var err error
			if cond, err = xsql.ParseExpr(p.Condition); err != nil {
				return nil, err
			}
		}
		return plan.NewJoin(jt, cond, inputs[0], inputs[1]), nil
	case plan.OpAggregate:
		p := aggregateParams{}
		if err := decodeParams(doc.Params, &p); err != nil {
			return nil, err
		}
		if err := arity(inputs, 1); err != nil {
			return nil, err
		}
		calls := make([]plan.AggCall, 0, len(p.Calls))
		for _, s := range p.Calls {
			c, err := parseAggCall(s)
			if err != nil {
				return nil, err
			}
			calls = append(calls, c)
		}
		return plan.NewAggregate(p.GroupBy, calls, inputs[0]), nil
	case plan.OpSort:
		p := sortParams{}
		if err := decodeParams(doc.Params, &p); err != nil {
			return nil, err
		}
		if err := arity(inputs, 1); err != nil {
			return nil, err
		}
		keys, err := parseSortKeys(p.OrderBy)
		if err != nil {
			return nil, err
		}
		return plan.NewSort(keys, p.Fetch, inputs[0]), nil
	case plan.OpRank:
		p := rankParams{}
		if err := decodeParams(doc.Params, &p); err != nil {
			return nil, err
		}
		if err := arity(inputs, 1); err != nil {
			return nil, err
		}
		keys, err := parseSortKeys(p.OrderBy)
		if err != nil {
			return nil, err
		}
		return plan.NewRank(p.PartitionBy, keys, p.RankEnd, p.OutputRank, inputs[0]), nil
	case plan.OpUnion:
		p := unionParams{}
		if err := decodeParams(doc.Params, &p); err != nil {
			return nil, err
		}
		if len(inputs) < 2 {
			return nil, fmt.Errorf("expects at least 2 inputs, got %d", len(inputs))
		}
		return plan.NewUnion(p.All, inputs...), nil
	case plan.OpCorrelate:
		p := correlateParams{Type: "inner"}
		if err := decodeParams(doc.Params, &p); err != nil {
			return nil, err
		}
		if err := arity(inputs, 1); err != nil {
			return nil, err
		}
		e, err := xsql.ParseExpr(p.Function)
		if err != nil {
			return nil, err
		}
		fn, ok := e.(*ast.Call)
		if !ok {
			return nil, fmt.Errorf("%s is not a function call", p.Function)
		}
		jt, ok := plan.ParseJoinType(p.Type)
		if !ok {
			return nil, fmt.Errorf("unknown join type %s", p.Type)
		}
		cols := make(plan.RowType, 0, len(p.Columns))
		for _, c := range p.Columns {
			dt, err := ast.GetDataType(c.Type)
			if err != nil {
				return nil, err
			}
			cols = append(cols, plan.Column{Name: c.Name, Type: dt})
		}
		return plan.NewCorrelate(fn, cols, jt, inputs[0]), nil
	case plan.OpWatermarkAssigner:
		p := watermarkParams{}
		if err := decodeParams(doc.Params, &p); err != nil {
			return nil, err
		}
		if err := arity(inputs, 1); err != nil {
			return nil, err
		}
		var delay time.Duration
		if p.Delay != "" {
			var err error
			if delay, err = time.ParseDuration(p.Delay); err != nil {
				return nil, err
			}
		}
		return plan.NewWatermarkAssigner(p.Rowtime, delay, inputs[0]), nil
	case plan.OpSink:
		p := sinkParams{}
		if err := decodeParams(doc.Params, &p); err != nil {
			return nil, err
		}
		if err := arity(inputs, 1); err != nil {
			return nil, err
		}
		return plan.NewSink(p.Table, inputs[0]), nil
	}
	return nil, fmt.Errorf("unknown op")
}

// splitAlias cuts a trailing `AS name`.
func splitAlias(s string) (string, string) {
	i := strings.LastIndex(strings.ToUpper(s), " AS ")
	if i < 0 {
		return strings.TrimSpace(s), ""
	}
	return strings.TrimSpace(s[:i]), strings.TrimSpace(s[i+4:])
}

func parseFields(ss []string) (ast.Fields, error) {
	if len(ss) == 0 {
		return nil, fmt.Errorf("no field")
	}
	fields := make(ast.Fields, 0, len(ss))
	for _, s := range ss {
		text, alias := splitAlias(s)
		e, err := xsql.ParseExpr(text)
		if err != nil {
			return nil, err
		}
		f := ast.Field{Expr: e, AName: alias}
		if fr, ok := e.(*ast.FieldRef); ok {
			f.Name = fr.Name
		} else if alias == "" {
			return nil, fmt.Errorf("field %s needs an alias", text)
		}
		fields = append(fields, f)
	}
	return fields, nil
}

func parseAggCall(s string) (plan.AggCall, error) {
	text, alias := splitAlias(s)
	if alias == "" {
		return plan.AggCall{}, fmt.Errorf("aggregate %s needs an alias", text)
	}
	e, err := xsql.ParseExpr(text)
	if err != nil {
		return plan.AggCall{}, err
	}
	c, ok := e.(*ast.Call)
	if !ok || len(c.Args) > 1 {
		return plan.AggCall{}, fmt.Errorf("%s is not an aggregate call with at most one argument", text)
	}
	call := plan.AggCall{Func: c.Name, Alias: alias}
	if len(c.Args) == 1 {
		if _, star := c.Args[0].(*ast.Wildcard); !star {
			call.Arg = c.Args[0]
		}
	}
	return call, nil
}

func parseSortKeys(ss []string) ([]plan.SortKey, error) {
	keys := make([]plan.SortKey, 0, len(ss))
	for _, s := range ss {
		parts := strings.Fields(s)
		switch {
		case len(parts) == 1:
			keys = append(keys, plan.SortKey{Field: parts[0]})
		case len(parts) == 2 && strings.EqualFold(parts[1], "asc"):
			keys = append(keys, plan.SortKey{Field: parts[0]})
		case len(parts) == 2 && strings.EqualFold(parts[1], "desc"):
			keys = append(keys, plan.SortKey{Field: parts[0], Desc: true})
		default:
			return nil, fmt.Errorf("invalid sort key %q", s)
		}
	}
	return keys, nil
}
