/*
 * Copyright 2025 tomoncle.
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package descriptor holds the static per-entity metadata that parameterizes
// the generic query engine: column declarations, filter/search/sort surfaces,
// and role-keyed field allow-lists. Descriptors are built once at startup and
// never mutated at request time, so they are safe to share across requests.
package descriptor

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// ColumnKind classifies a column for filter value handling.
type ColumnKind int

const (
	KindString ColumnKind = iota
	KindInt
	KindFloat
	KindBool
	KindTime
	KindJSON
)

// Column declares one database column of an entity.
type Column struct {
	Name       string
	Kind       ColumnKind
	Filterable bool
	Rangeable  bool
}

// Relation declares the one fixed join an entity may expose through the
// include query parameter. Anything not declared here is ignored.
type Relation struct {
	Name          string
	Table         string
	LocalColumn   string
	ForeignColumn string
}

// Entity is the immutable descriptor driving the engine for one entity.
// User input is only ever matched against the names declared here; no
// caller-supplied string reaches the SQL builder as an identifier.
type Entity struct {
	name        string
	table       string
	alias       string
	pk          string
	columns     map[string]Column
	searchable  []string
	sortKeys    map[string]string
	policy      AccessPolicy
	relations   map[string]Relation
}

func (e *Entity) Name() string  { return e.name }
func (e *Entity) Table() string { return e.table }
func (e *Entity) Alias() string { return e.alias }

// PK returns the primary key column, the tiebreaker appended to every sort.
func (e *Entity) PK() string { return e.pk }

// Column looks up a declared column by name.
func (e *Entity) Column(name string) (Column, bool) {
	c, ok := e.columns[name]
	return c, ok
}

// Columns returns the declared column names in stable order.
func (e *Entity) Columns() []string {
	names := make([]string, 0, len(e.columns))
	for name := range e.columns {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Searchable returns the columns the free-text search fans out over.
func (e *Entity) Searchable() []string {
	out := make([]string, len(e.searchable))
	copy(out, e.searchable)
	return out
}

// SortColumn maps an external sort key to its column. The boolean reports
// whether the key is declared; unmapped keys fall back to the primary key.
func (e *Entity) SortColumn(key string) (string, bool) {
	col, ok := e.sortKeys[key]
	return col, ok
}

// Policy returns the role-keyed field allow-list table.
func (e *Entity) Policy() AccessPolicy { return e.policy }

// Relation looks up a declared include relation by name.
func (e *Entity) Relation(name string) (Relation, bool) {
	r, ok := e.relations[name]
	return r, ok
}

// Builder assembles an Entity. All declaration errors are collected and
// reported by Build so a misdeclared entity fails at startup, not per request.
type Builder struct {
	entity Entity
	errs   []string
}

// NewEntity starts a descriptor for the named entity backed by table.
func NewEntity(name, table string) *Builder {
	return &Builder{entity: Entity{
		name:      name,
		table:     table,
		alias:     table,
		pk:        "id",
		columns:   map[string]Column{},
		sortKeys:  map[string]string{},
		policy:    AccessPolicy{},
		relations: map[string]Relation{},
	}}
}

// Alias sets the table alias used in generated SQL.
func (b *Builder) Alias(alias string) *Builder {
	b.entity.alias = alias
	return b
}

// PK overrides the default "id" primary key column.
func (b *Builder) PK(column string) *Builder {
	b.entity.pk = column
	return b
}

// Column declares a column that is neither filterable nor range-filterable.
func (b *Builder) Column(name string, kind ColumnKind) *Builder {
	return b.declare(Column{Name: name, Kind: kind})
}

// Filterable declares a column usable in exact-match filters.
func (b *Builder) Filterable(name string, kind ColumnKind) *Builder {
	return b.declare(Column{Name: name, Kind: kind, Filterable: true})
}

// Range declares a column usable in exact and _min/_max range filters.
func (b *Builder) Range(name string, kind ColumnKind) *Builder {
	return b.declare(Column{Name: name, Kind: kind, Filterable: true, Rangeable: true})
}

func (b *Builder) declare(c Column) *Builder {
	if _, dup := b.entity.columns[c.Name]; dup {
		b.errs = append(b.errs, fmt.Sprintf("column %q declared twice", c.Name))
	}
	b.entity.columns[c.Name] = c
	return b
}

// Searchable lists the columns the search parameter fans out over.
func (b *Builder) Searchable(columns ...string) *Builder {
	b.entity.searchable = append(b.entity.searchable, columns...)
	return b
}

// SortKey maps an external sort key (for example "tradeName") to a column.
func (b *Builder) SortKey(key, column string) *Builder {
	b.entity.sortKeys[key] = column
	return b
}

// Allow declares the field allow-list for a role.
func (b *Builder) Allow(role Role, fields ...string) *Builder {
	b.entity.policy[role] = fields
	return b
}

// Relation declares the fixed join exposed through include.
func (b *Builder) Relation(name, table, localColumn, foreignColumn string) *Builder {
	b.entity.relations[name] = Relation{
		Name: name, Table: table, LocalColumn: localColumn, ForeignColumn: foreignColumn,
	}
	return b
}

// Build validates the declarations and freezes the descriptor.
func (b *Builder) Build() (*Entity, error) {
	e := &b.entity
	if e.name == "" || e.table == "" {
		b.errs = append(b.errs, "entity name and table are required")
	}
	if _, ok := e.columns[e.pk]; !ok {
		b.errs = append(b.errs, fmt.Sprintf("primary key column %q is not declared", e.pk))
	}
	for _, col := range e.searchable {
		if _, ok := e.columns[col]; !ok {
			b.errs = append(b.errs, fmt.Sprintf("searchable column %q is not declared", col))
		}
	}
	for key, col := range e.sortKeys {
		if _, ok := e.columns[col]; !ok {
			b.errs = append(b.errs, fmt.Sprintf("sort key %q maps to undeclared column %q", key, col))
		}
	}
	for _, role := range requiredRoles {
		if _, ok := e.policy[role]; !ok {
			b.errs = append(b.errs, fmt.Sprintf("allow-list for role %q is not declared", role))
		}
	}
	for role, fields := range e.policy {
		for _, f := range fields {
			if _, ok := e.columns[f]; !ok {
				b.errs = append(b.errs, fmt.Sprintf("allow-list for role %q names undeclared field %q", role, f))
			}
		}
	}
	for name, rel := range e.relations {
		if _, ok := e.columns[rel.LocalColumn]; !ok {
			b.errs = append(b.errs, fmt.Sprintf("relation %q joins on undeclared column %q", name, rel.LocalColumn))
		}
	}
	if len(b.errs) > 0 {
		return nil, fmt.Errorf("descriptor %q: %s", e.name, strings.Join(b.errs, "; "))
	}
	return e, nil
}

// MustBuild builds or panics; intended for startup-time declarations.
func (b *Builder) MustBuild() *Entity {
	e, err := b.Build()
	if err != nil {
		panic(err)
	}
	return e
}

var (
	registryMu sync.RWMutex
	registry   = map[string]*Entity{}
)

// Register adds a built descriptor to the process-wide registry.
func Register(e *Entity) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[e.name] = e
}

// Lookup returns the registered descriptor for an entity name.
func Lookup(name string) (*Entity, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	e, ok := registry[name]
	return e, ok
}
