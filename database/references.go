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

package database

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/uptrace/bun"
)

// Reference declares that Table.Column points at ReferenceTable's primary
// key. The registry uses these pairs to block deletes of referenced rows;
// Cascade marks references that do not block deletion.
type Reference struct {
	Table           string `yaml:"table"`
	Column          string `yaml:"column"`
	ReferenceTable  string `yaml:"reference_table"`
	ReferenceColumn string `yaml:"reference_column"`
	Cascade         bool   `yaml:"cascade"`
	Description     string `yaml:"description"`
}

// DependentCount is one referencing table's row count for a candidate delete.
type DependentCount struct {
	Table   string `json:"table"`
	Column  string `json:"field"`
	Count   int    `json:"count"`
	Cascade bool   `json:"cascade"`
}

// Blocks reports whether this reference prevents deletion.
func (d DependentCount) Blocks() bool { return d.Count > 0 && !d.Cascade }

// ReferencesFile is the YAML structure listing references.
type ReferencesFile struct {
	References []Reference `yaml:"references"`
}

// ReferenceRegistry holds every known referencing table/column pair, keyed
// by the referenced table. It is populated at startup (from code or YAML)
// and read-only afterwards.
type ReferenceRegistry struct {
	mu     sync.RWMutex
	refs   []Reference
	logger Logger
}

// NewReferenceRegistry creates an empty registry.
func NewReferenceRegistry(logger Logger) *ReferenceRegistry {
	return &ReferenceRegistry{logger: logger}
}

// NewReferenceRegistryFromFile loads references from a YAML file.
func NewReferenceRegistryFromFile(logger Logger, path string) (*ReferenceRegistry, error) {
	r := NewReferenceRegistry(logger)
	if err := r.LoadFile(path); err != nil {
		return nil, err
	}
	return r, nil
}

// LoadFile merges references from a YAML configuration file.
func (r *ReferenceRegistry) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read references file: %w", err)
	}
	var file ReferencesFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("failed to parse references file: %w", err)
	}
	r.Add(file.References...)
	return nil
}

// Add registers references.
func (r *ReferenceRegistry) Add(refs ...Reference) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.refs = append(r.refs, refs...)
}

// ReferencesOf returns the references pointing at the given table.
func (r *ReferenceRegistry) ReferencesOf(table string) []Reference {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Reference
	for _, ref := range r.refs {
		if strings.EqualFold(ref.ReferenceTable, table) {
			out = append(out, ref)
		}
	}
	return out
}

// All returns every registered reference.
func (r *ReferenceRegistry) All() []Reference {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Reference, len(r.refs))
	copy(out, r.refs)
	return out
}

// Validate checks registered references for common declaration mistakes.
func (r *ReferenceRegistry) Validate() []error {
	var errs []error
	for _, ref := range r.All() {
		if ref.Table == "" {
			errs = append(errs, fmt.Errorf("reference table name cannot be empty"))
		}
		if ref.Column == "" {
			errs = append(errs, fmt.Errorf("reference column cannot be empty: %s", ref.Table))
		}
		if ref.ReferenceTable == "" {
			errs = append(errs, fmt.Errorf("referenced table cannot be empty: %s.%s", ref.Table, ref.Column))
		}
		if ref.ReferenceColumn == "" {
			errs = append(errs, fmt.Errorf("referenced column cannot be empty: %s.%s -> %s", ref.Table, ref.Column, ref.ReferenceTable))
		}
	}
	return errs
}

// CountDependents counts rows in every table referencing the given row of
// table. It runs on the supplied IDB so the delete protocol can execute it
// inside the same transaction as the delete itself.
func (r *ReferenceRegistry) CountDependents(ctx context.Context, idb bun.IDB, table string, id any) ([]DependentCount, error) {
	var counts []DependentCount
	for _, ref := range r.ReferencesOf(table) {
		n, err := idb.NewSelect().
			Table(ref.Table).
			Where("? = ?", bun.Ident(ref.Column), id).
			Count(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to count %s.%s references: %w", ref.Table, ref.Column, err)
		}
		if n > 0 {
			counts = append(counts, DependentCount{
				Table:   ref.Table,
				Column:  ref.Column,
				Count:   n,
				Cascade: ref.Cascade,
			})
		}
	}
	return counts, nil
}
