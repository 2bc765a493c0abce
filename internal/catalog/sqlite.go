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
	"bytes"
	"database/sql"
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/lf-edge/kuiperopt/pkg/errorx"
)

const tableName = "tables"

// SqliteStore persists table definitions in a sqlite file.
type SqliteStore struct {
	db   *sql.DB
	path string
}

func GetSqliteStore(dir string) (*SqliteStore, error) {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		if err := os.MkdirAll(dir, os.ModePerm); err != nil {
			return nil, err
		}
	}
	return &SqliteStore{path: filepath.Join(dir, "catalog.db")}, nil
}

func (m *SqliteStore) Open() error {
	db, err := sql.Open("sqlite", m.path)
	if nil != err {
		return err
	}
	db.SetMaxOpenConns(1)
	m.db = db
	_, err = m.db.Exec(fmt.Sprintf("CREATE TABLE IF NOT EXISTS '%s'('key' VARCHAR(255) PRIMARY KEY, 'val' BLOB);", tableName))
	return err
}

func (m *SqliteStore) Close() error {
	if nil != m.db {
		return m.db.Close()
	}
	return nil
}

func encode(t *Table) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(t); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Save creates or replaces the table definition.
func (m *SqliteStore) Save(t *Table) error {
	if err := t.validate(); err != nil {
		return err
	}
	b, err := encode(t)
	if nil != err {
		return err
	}
	_, err = m.db.Exec(fmt.Sprintf("REPLACE INTO %s(key,val) values(?,?);", tableName), t.Name, b)
	return err
}

func (m *SqliteStore) Get(name string) (*Table, bool, error) {
	row := m.db.QueryRow(fmt.Sprintf("SELECT val FROM %s WHERE key=?;", tableName), name)
	var tmp []byte
	if err := row.Scan(&tmp); err != nil {
		if err == sql.ErrNoRows {
			return nil, false, nil
		}
		return nil, false, err
	}
	t := &Table{}
	if err := gob.NewDecoder(bytes.NewBuffer(tmp)).Decode(t); err != nil {
		return nil, false, err
	}
	return t, true, nil
}

func (m *SqliteStore) Delete(name string) error {
	r, err := m.db.Exec(fmt.Sprintf("DELETE FROM %s WHERE key=?;", tableName), name)
	if err != nil {
		return err
	}
	if n, _ := r.RowsAffected(); n == 0 {
		return errorx.NewWithCode(errorx.NOT_FOUND, fmt.Sprintf("%s is not found", name))
	}
	return nil
}

func (m *SqliteStore) Keys() ([]string, error) {
	keys := make([]string, 0)
	rows, err := m.db.Query(fmt.Sprintf("SELECT key FROM %s ORDER BY key", tableName))
	if nil != err {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var val string
		if err := rows.Scan(&val); err != nil {
			return nil, err
		}
		keys = append(keys, val)
	}
	return keys, rows.Err()
}

// Catalog snapshots all stored tables into an in memory catalog.
func (m *SqliteStore) Catalog() (*Catalog, error) {
	keys, err := m.Keys()
	if err != nil {
		return nil, err
	}
	tables := make([]*Table, 0, len(keys))
	for _, k := range keys {
		t, ok, err := m.Get(k)
		if err != nil {
			return nil, err
		}
		if ok {
			tables = append(tables, t)
		}
	}
	return NewCatalog(tables...)
}
