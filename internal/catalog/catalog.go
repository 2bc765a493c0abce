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

package catalog

import (
	"fmt"
	"sort"
	"strings"

	"github.com/lf-edge/kuiperopt/internal/conf"
	"github.com/lf-edge/kuiperopt/internal/plan"
	"github.com/lf-edge/kuiperopt/pkg/ast"
	"github.com/lf-edge/kuiperopt/pkg/errorx"
)

// DefaultRowCount is assumed for tables without statistics.
const DefaultRowCount = 1000

type ColumnDef struct {
	Name string `yaml:"name" json:"name"`
	Type string `yaml:"type" json:"type"`
}

// Table is the definition and the statistics of a source or sink table.
type Table struct {
	Name    string      `yaml:"name" json:"name"`
	Columns []ColumnDef `yaml:"columns" json:"columns"`
	// RowCount is the estimated rows per unit of time, 0 if unknown.
	RowCount float64 `yaml:"rowCount" json:"rowCount"`
	// Changelog lists the row kinds the source emits, e.g. "I" or "I,UB,UA,D".
	Changelog string `yaml:"changelog" json:"changelog"`
	// Rowtime is the event time field, empty for processing time.
	Rowtime    string   `yaml:"rowtime" json:"rowtime"`
	PrimaryKey []string `yaml:"primaryKey" json:"primaryKey"`
}

// RowType converts the column definitions.
func (t *Table) RowType() (plan.RowType, error) {
	rt := make(plan.RowType, 0, len(t.Columns))
	for _, c := range t.Columns {
		dt, err := ast.GetDataType(c.Type)
		if err != nil {
			return nil, errorx.NewWithCode(errorx.InvalidPlan, fmt.Sprintf("table %s column %s: %v", t.Name, c.Name, err))
		}
		rt = append(rt, plan.Column{Table: t.Name, Name: c.Name, Type: dt})
	}
	return rt, nil
}

// ChangelogMode defaults to insert only.
func (t *Table) ChangelogMode() plan.ChangelogMode {
	if m, ok := plan.ParseChangelogMode(t.Changelog); ok {
		return m
	}
	return plan.InsertOnly
}

func (t *Table) Rows() float64 {
	if t.RowCount > 0 {
		return t.RowCount
	}
	return DefaultRowCount
}

func (t *Table) validate() error {
	if t.Name == "" {
		return errorx.NewWithCode(errorx.InvalidPlan, "table without name")
	}
	if len(t.Columns) == 0 {
		return errorx.NewWithCode(errorx.InvalidPlan, fmt.Sprintf("table %s has no columns", t.Name))
	}
	rt, err := t.RowType()
	if err != nil {
		return err
	}
	seen := make(map[string]struct{}, len(rt))
	for _, c := range rt {
		if _, ok := seen[c.Name]; ok {
			return errorx.NewWithCode(errorx.InvalidPlan, fmt.Sprintf("table %s has duplicate column %s", t.Name, c.Name))
		}
		seen[c.Name] = struct{}{}
	}
	if t.Changelog != "" {
		if _, ok := plan.ParseChangelogMode(t.Changelog); !ok {
			return errorx.NewWithCode(errorx.InvalidPlan, fmt.Sprintf("table %s has invalid changelog %q", t.Name, t.Changelog))
		}
	}
	if t.Rowtime != "" && rt.IndexOf("", t.Rowtime) < 0 {
		return errorx.NewWithCode(errorx.InvalidPlan, fmt.Sprintf("table %s rowtime %s is not a column", t.Name, t.Rowtime))
	}
	for _, k := range t.PrimaryKey {
		if rt.IndexOf("", k) < 0 {
			return errorx.NewWithCode(errorx.InvalidPlan, fmt.Sprintf("table %s primary key %s is not a column", t.Name, k))
		}
	}
	return nil
}

// Provider is the read only view of the catalog the optimizer consults.
type Provider interface {
	Table(name string) (*Table, bool)
}

// Catalog is an in memory Provider. It is not modified after it is built so
// concurrent compilations can share it.
type Catalog struct {
	tables map[string]*Table
}

func NewCatalog(tables ...*Table) (*Catalog, error) {
	c := &Catalog{tables: make(map[string]*Table, len(tables))}
	for _, t := range tables {
		if err := t.validate(); err != nil {
			return nil, err
		}
		key := strings.ToLower(t.Name)
		if _, ok := c.tables[key]; ok {
			return nil, errorx.NewWithCode(errorx.InvalidPlan, fmt.Sprintf("table %s is defined twice", t.Name))
		}
		c.tables[key] = t
	}
	return c, nil
}

// Table looks up a table case-insensitively.
func (c *Catalog) Table(name string) (*Table, bool) {
	t, ok := c.tables[strings.ToLower(name)]
	return t, ok
}

func (c *Catalog) Names() []string {
	names := make([]string, 0, len(c.tables))
	for _, t := range c.tables {
		names = append(names, t.Name)
	}
	sort.Strings(names)
	return names
}

type catalogFile struct {
	Tables []*Table `yaml:"tables"`
}

// LoadCatalog reads the tables from a yaml file.
func LoadCatalog(p string) (*Catalog, error) {
	var f catalogFile
	if err := conf.LoadConfigFromPath(p, &f); err != nil {
		return nil, err
	}
	conf.Log.Debugf("load %d tables from %s", len(f.Tables), p)
	return NewCatalog(f.Tables...)
}
