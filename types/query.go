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

package types

import "fmt"

const (
	DefaultPage  = 1
	DefaultLimit = 20
	MaxLimit     = 1000
	MaxFields    = 20

	// RangeMinSuffix and RangeMaxSuffix mark inclusive range filters on a
	// filter key, e.g. unit_price_min / unit_price_max.
	RangeMinSuffix = "_min"
	RangeMaxSuffix = "_max"
)

// ListQuery is the untrusted list-query object handed to the engine after the
// routing layer has done basic shape validation. Filters carries exact-match
// values keyed by field name plus _min/_max suffixed range bounds.
type ListQuery struct {
	Page    int
	Limit   int
	Sort    string
	Search  string
	Fields  []string
	Include []string
	Filters map[string]any
}

// NewListQuery returns a query with default paging applied.
func NewListQuery() *ListQuery {
	return &ListQuery{Page: DefaultPage, Limit: DefaultLimit, Filters: map[string]any{}}
}

// Normalize validates paging bounds and fills defaults. Out-of-range limits
// are rejected rather than clamped so callers see a 400 instead of a quietly
// smaller page.
func (q *ListQuery) Normalize() error {
	if q.Page == 0 {
		q.Page = DefaultPage
	}
	if q.Page < 1 {
		return NewValidationError("INVALID_PAGE", fmt.Sprintf("page must be >= 1, got %d", q.Page))
	}
	if q.Limit == 0 {
		q.Limit = DefaultLimit
	}
	if q.Limit < 1 || q.Limit > MaxLimit {
		return NewValidationError("INVALID_LIMIT", fmt.Sprintf("limit must be between 1 and %d, got %d", MaxLimit, q.Limit))
	}
	if len(q.Fields) > MaxFields {
		return NewValidationError("TOO_MANY_FIELDS", fmt.Sprintf("at most %d fields may be requested, got %d", MaxFields, len(q.Fields)))
	}
	if q.Filters == nil {
		q.Filters = map[string]any{}
	}
	return nil
}

// Offset returns the data-query offset for the normalized page and limit.
func (q *ListQuery) Offset() int {
	return (q.Page - 1) * q.Limit
}
