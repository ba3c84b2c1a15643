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

// PageInfo is the pagination envelope attached to every list response.
type PageInfo struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"totalPages"`
}

// NewPageInfo computes the envelope for a filtered total. TotalPages is
// ceil(total/limit) and stays 0 when the filtered set is empty.
func NewPageInfo(page, limit, total int) PageInfo {
	info := PageInfo{Page: page, Limit: limit, Total: total}
	if total > 0 {
		info.TotalPages = (total + limit - 1) / limit
	}
	return info
}

// Page holds one page of rows plus its envelope.
type Page[T any] struct {
	Items      []T      `json:"data"`
	Pagination PageInfo `json:"pagination"`
}

// EmptyPage returns a zero-row page with a consistent envelope.
func EmptyPage[T any](page, limit int) *Page[T] {
	return &Page[T]{Items: make([]T, 0), Pagination: NewPageInfo(page, limit, 0)}
}
