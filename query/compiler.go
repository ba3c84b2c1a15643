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

// Package query compiles an untrusted list query into predicate and sort
// structures over descriptor-declared columns. The compiler never emits a
// caller-supplied string as an identifier: every column below comes from the
// entity descriptor, which is the engine's injection-safety guarantee.
package query

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/tomoncle/adminkit/descriptor"
	"github.com/tomoncle/adminkit/types"
)

// Op is a predicate operator.
type Op int

const (
	OpEq  Op = iota // column = value
	OpGte           // column >= value, from a _min filter
	OpLte           // column <= value, from a _max filter
)

// Clause is one conjunctive predicate over a declared column.
type Clause struct {
	Column string
	Op     Op
	Value  any
}

// Order is one term of the effective sort order.
type Order struct {
	Column string
	Desc   bool
}

// Compiled is the engine-internal form of a list query: AND-ed clauses, an
// optional OR search group, and a stable sort order ending in the primary key.
type Compiled struct {
	Clauses       []Clause
	SearchColumns []string
	SearchTerm    string
	Orders        []Order
}

// Compile turns a normalized list query into predicates and sort terms for
// the given entity. Filter keys that do not resolve to a declared filterable
// column are rejected with a validation error.
func Compile(desc *descriptor.Entity, q *types.ListQuery) (*Compiled, error) {
	c := &Compiled{}

	keys := make([]string, 0, len(q.Filters))
	for key := range q.Filters {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		clause, err := compileFilter(desc, key, q.Filters[key])
		if err != nil {
			return nil, err
		}
		c.Clauses = append(c.Clauses, clause)
	}

	if term := strings.TrimSpace(q.Search); term != "" {
		cols := desc.Searchable()
		if len(cols) > 0 {
			c.SearchColumns = cols
			c.SearchTerm = term
		}
	}

	c.Orders = ParseSort(desc, q.Sort)
	return c, nil
}

// compileFilter resolves one filter key. A key matching a declared filterable
// column is an exact match; otherwise a _min/_max suffix on a rangeable
// column yields an inclusive bound.
func compileFilter(desc *descriptor.Entity, key string, value any) (Clause, error) {
	if col, ok := desc.Column(key); ok {
		if !col.Filterable {
			return Clause{}, types.NewValidationError("FIELD_NOT_FILTERABLE",
				fmt.Sprintf("field %q does not support filtering", key))
		}
		coerced, err := coerceValue(col, value)
		if err != nil {
			return Clause{}, err
		}
		return Clause{Column: col.Name, Op: OpEq, Value: coerced}, nil
	}

	if base, op, ok := splitRangeKey(key); ok {
		if col, declared := desc.Column(base); declared {
			if !col.Rangeable {
				return Clause{}, types.NewValidationError("FIELD_NOT_RANGEABLE",
					fmt.Sprintf("field %q does not support range filtering", base))
			}
			coerced, err := coerceValue(col, value)
			if err != nil {
				return Clause{}, err
			}
			return Clause{Column: col.Name, Op: op, Value: coerced}, nil
		}
	}

	return Clause{}, types.NewValidationError("UNKNOWN_FILTER",
		fmt.Sprintf("unknown filter field %q", key))
}

// coerceValue converts a string filter value (the only shape a query string
// delivers) to the declared column kind, so numeric and time comparisons hit
// the database as typed parameters instead of text. Non-string values pass
// through untouched.
func coerceValue(col descriptor.Column, value any) (any, error) {
	s, ok := value.(string)
	if !ok {
		return value, nil
	}
	switch col.Kind {
	case descriptor.KindInt:
		n, err := strconv.Atoi(s)
		if err != nil {
			return nil, types.NewValidationError("INVALID_FILTER_VALUE",
				fmt.Sprintf("field %q expects an integer, got %q", col.Name, s))
		}
		return n, nil
	case descriptor.KindFloat:
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, types.NewValidationError("INVALID_FILTER_VALUE",
				fmt.Sprintf("field %q expects a number, got %q", col.Name, s))
		}
		return f, nil
	case descriptor.KindBool:
		b, err := strconv.ParseBool(s)
		if err != nil {
			return nil, types.NewValidationError("INVALID_FILTER_VALUE",
				fmt.Sprintf("field %q expects a boolean, got %q", col.Name, s))
		}
		return b, nil
	case descriptor.KindTime:
		ts, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return nil, types.NewValidationError("INVALID_FILTER_VALUE",
				fmt.Sprintf("field %q expects an RFC 3339 timestamp, got %q", col.Name, s))
		}
		return ts, nil
	default:
		return s, nil
	}
}

func splitRangeKey(key string) (string, Op, bool) {
	if base, ok := strings.CutSuffix(key, types.RangeMinSuffix); ok {
		return base, OpGte, true
	}
	if base, ok := strings.CutSuffix(key, types.RangeMaxSuffix); ok {
		return base, OpLte, true
	}
	return "", OpEq, false
}

// ParseSort parses "field[:dir],field[:dir]" into sort terms. An unmapped
// sort key falls back to the primary key descending; a direction token other
// than asc/desc (including absence) means descending. Both behaviors are
// preserved from the per-entity repositories this engine replaced. The
// primary key is always appended as the final term so that pages over tied
// sort values cannot duplicate or skip rows.
func ParseSort(desc *descriptor.Entity, expr string) []Order {
	var orders []Order
	pk := desc.PK()

	for _, segment := range strings.Split(expr, ",") {
		segment = strings.TrimSpace(segment)
		if segment == "" {
			continue
		}
		field, dir, _ := strings.Cut(segment, ":")
		column, mapped := desc.SortColumn(strings.TrimSpace(field))
		if !mapped {
			column = pk
		}
		asc := mapped && strings.EqualFold(strings.TrimSpace(dir), "asc")
		orders = append(orders, Order{Column: column, Desc: !asc})
	}

	if len(orders) == 0 {
		return []Order{{Column: pk, Desc: true}}
	}
	for _, o := range orders {
		if o.Column == pk {
			return orders
		}
	}
	return append(orders, Order{Column: pk, Desc: true})
}
