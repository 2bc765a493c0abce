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
	"strconv"
	"strings"
	"time"

	"github.com/lf-edge/kuiperopt/pkg/ast"
)

type Sort struct {
	baseNode
	Keys []SortKey
	// Fetch limits the output rows, 0 for no limit.
	Fetch int
}

func (p Sort) Init() *Sort {
	p.baseNode.self = &p
	return &p
}

func NewSort(keys []SortKey, fetch int, input Node) *Sort {
	p := Sort{Keys: keys, Fetch: fetch}.Init()
	p.children = []Node{input}
	return p
}

func (p *Sort) Op() OpType       { return OpSort }
func (p *Sort) clone() Node      { return p.Init() }
func (p *Sort) RowType() RowType { return p.inputRowType() }

func (p *Sort) Explain() string {
	ps := []string{param("orderBy", sortKeysString(p.Keys))}
	if p.Fetch > 0 {
		ps = append(ps, param("fetch", strconv.Itoa(p.Fetch)))
	}
	return explain(p, ps...)
}

func (p *Sort) Validate() error {
	if err := arity(p, 1, 1); err != nil {
		return err
	}
	return checkKeys(p, sortFields(p.Keys), p.inputRowType())
}

// Correlate joins each input row with the rows a table function returns for it.
type Correlate struct {
	baseNode
	Function *ast.Call
	// Columns are the fields the function produces.
	Columns RowType
	Type    JoinType
}

func (p Correlate) Init() *Correlate {
	p.baseNode.self = &p
	return &p
}

func NewCorrelate(function *ast.Call, columns RowType, joinType JoinType, input Node) *Correlate {
	p := Correlate{Function: function, Columns: columns, Type: joinType}.Init()
	p.children = []Node{input}
	return p
}

func (p *Correlate) Op() OpType  { return OpCorrelate }
func (p *Correlate) clone() Node { return p.Init() }

func (p *Correlate) RowType() RowType {
	in := p.inputRowType()
	rt := make(RowType, 0, len(in)+len(p.Columns))
	return append(append(rt, in...), p.Columns...)
}

func (p *Correlate) Explain() string {
	return explain(p, param("invocation", p.Function.String()), param("fields", strings.Join(p.Columns.Names(), ", ")), param("type", p.Type.String()))
}

func (p *Correlate) Validate() error {
	if err := arity(p, 1, 1); err != nil {
		return err
	}
	if p.Function == nil {
		return invalid(p, "missing table function")
	}
	if p.Type != InnerJoin && p.Type != LeftJoin {
		return invalid(p, "correlate supports inner and left only")
	}
	return checkRefs(p, p.Function, p.inputRowType())
}

type Union struct {
	baseNode
	All bool
}

func (p Union) Init() *Union {
	p.baseNode.self = &p
	return &p
}

func NewUnion(all bool, inputs ...Node) *Union {
	p := Union{All: all}.Init()
	p.children = inputs
	return p
}

func (p *Union) Op() OpType       { return OpUnion }
func (p *Union) clone() Node      { return p.Init() }
func (p *Union) RowType() RowType { return p.inputRowType() }

func (p *Union) Explain() string {
	return explain(p, param("all", strconv.FormatBool(p.All)), param("union", strings.Join(p.RowType().Names(), ", ")))
}

func (p *Union) Validate() error {
	if err := arity(p, 2, -1); err != nil {
		return err
	}
	first := p.children[0].RowType()
	for i, c := range p.children[1:] {
		if !c.RowType().Equal(first) {
			return invalid(p, "input %d row type %s differs from %s", i+1, c.RowType().String(), first.String())
		}
	}
	return nil
}

const RankField = "rank_num"

// Rank keeps the top RankEnd rows of every partition.
type Rank struct {
	baseNode
	PartitionKeys []string
	OrderKeys     []SortKey
	RankEnd       int
	// OutputRank appends the rank number as the last column.
	OutputRank bool
}

func (p Rank) Init() *Rank {
	p.baseNode.self = &p
	return &p
}

func NewRank(partitionKeys []string, orderKeys []SortKey, rankEnd int, outputRank bool, input Node) *Rank {
	p := Rank{PartitionKeys: partitionKeys, OrderKeys: orderKeys, RankEnd: rankEnd, OutputRank: outputRank}.Init()
	p.children = []Node{input}
	return p
}

func (p *Rank) Op() OpType  { return OpRank }
func (p *Rank) clone() Node { return p.Init() }

func (p *Rank) RowType() RowType {
	in := p.inputRowType()
	if !p.OutputRank {
		return in
	}
	rt := make(RowType, 0, len(in)+1)
	return append(append(rt, in...), Column{Name: RankField, Type: ast.BIGINT})
}

func (p *Rank) Explain() string {
	return explain(p,
		param("partitionBy", strings.Join(p.PartitionKeys, ", ")),
		param("orderBy", sortKeysString(p.OrderKeys)),
		param("rankRange", "1.."+strconv.Itoa(p.RankEnd)),
		param("outputRank", strconv.FormatBool(p.OutputRank)))
}

func (p *Rank) Validate() error {
	if err := arity(p, 1, 1); err != nil {
		return err
	}
	if p.RankEnd <= 0 {
		return invalid(p, "rank end must be positive")
	}
	in := p.inputRowType()
	if err := checkKeys(p, p.PartitionKeys, in); err != nil {
		return err
	}
	return checkKeys(p, sortFields(p.OrderKeys), in)
}

// WatermarkAssigner generates watermarks from the rowtime field of its input.
type WatermarkAssigner struct {
	baseNode
	RowtimeField string
	Delay        time.Duration
}

func (p WatermarkAssigner) Init() *WatermarkAssigner {
	p.baseNode.self = &p
	return &p
}

func NewWatermarkAssigner(rowtime string, delay time.Duration, input Node) *WatermarkAssigner {
	p := WatermarkAssigner{RowtimeField: rowtime, Delay: delay}.Init()
	p.children = []Node{input}
	return p
}

func (p *WatermarkAssigner) Op() OpType       { return OpWatermarkAssigner }
func (p *WatermarkAssigner) clone() Node      { return p.Init() }
func (p *WatermarkAssigner) RowType() RowType { return p.inputRowType() }

func (p *WatermarkAssigner) Explain() string {
	return explain(p, param("rowtime", p.RowtimeField), param("watermark", p.RowtimeField+" - "+p.Delay.String()))
}

func (p *WatermarkAssigner) Validate() error {
	if err := arity(p, 1, 1); err != nil {
		return err
	}
	return checkKeys(p, []string{p.RowtimeField}, p.inputRowType())
}

type Sink struct {
	baseNode
	Table string
}

func (p Sink) Init() *Sink {
	p.baseNode.self = &p
	return &p
}

func NewSink(table string, input Node) *Sink {
	p := Sink{Table: table}.Init()
	p.children = []Node{input}
	return p
}

func (p *Sink) Op() OpType       { return OpSink }
func (p *Sink) clone() Node      { return p.Init() }
func (p *Sink) RowType() RowType { return p.inputRowType() }

func (p *Sink) Explain() string {
	return explain(p, param("table", p.Table), param("fields", strings.Join(p.RowType().Names(), ", ")))
}

func (p *Sink) Validate() error {
	return arity(p, 1, 1)
}

// Exchange redistributes its input. It only exists in physical plans.
type Exchange struct {
	baseNode
}

func (p Exchange) Init() *Exchange {
	p.baseNode.self = &p
	return &p
}

// NewExchange shuffles the physical input to the distribution. The other
// traits of the input are kept.
func NewExchange(dist Distribution, input Node) *Exchange {
	p := Exchange{}.Init()
	p.children = []Node{input}
	t := &Traits{}
	if it := input.Traits(); it != nil {
		t = it.With("")
	}
	t.Impl = "Exchange"
	t.Distribution = dist
	// the receiving side loses the input order
	t.Collation = nil
	p.traits = t
	return p
}

func (p *Exchange) Op() OpType       { return OpExchange }
func (p *Exchange) clone() Node      { return p.Init() }
func (p *Exchange) RowType() RowType { return p.inputRowType() }

func (p *Exchange) Explain() string {
	return explain(p)
}

func (p *Exchange) Validate() error {
	if err := arity(p, 1, 1); err != nil {
		return err
	}
	if p.traits == nil {
		return invalid(p, "exchange without physical traits")
	}
	return nil
}

func sortFields(keys []SortKey) []string {
	fields := make([]string, len(keys))
	for i, k := range keys {
		fields[i] = k.Field
	}
	return fields
}

func checkKeys(n Node, keys []string, rt RowType) error {
	for _, k := range keys {
		if rt.IndexOf("", k) < 0 {
			return invalid(n, "field %s not found in %s", k, rt.String())
		}
	}
	return nil
}
