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

package repository

import (
	"context"

	"github.com/tomoncle/adminkit/query"
	"github.com/tomoncle/adminkit/types"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/schema"
)

// CrudRepository defines basic row operations for a generic entity type.
// Absence of a row is a value: GetOne returns (nil, nil), Update and Delete
// report false instead of an error.
type CrudRepository[T any] interface {
	GetOne(ctx context.Context, id any) (*T, error)

	Create(ctx context.Context, entity *T) error

	Update(ctx context.Context, entity *T) (bool, error)

	Delete(ctx context.Context, id any) (bool, error)
}

// PageRepository executes the compiled list pipeline: predicates, projection,
// stable sort, and the count+data pagination reads.
type PageRepository interface {
	Page(ctx context.Context, c *query.Compiled, proj *query.Projection,
		page, limit int, includes []string) (*types.Page[types.JsonObject], error)
}

// TransactionRepository defines the write operations that run inside a
// caller-scoped transaction.
type TransactionRepository[T any] interface {
	CreateManyTx(ctx context.Context, tx bun.Tx, entities []*T) error
	DeleteTx(ctx context.Context, tx bun.Tx, id any) (bool, error)
	GetOneTx(ctx context.Context, tx bun.Tx, id any) (*T, error)
	RunInTx(ctx context.Context, fn func(ctx context.Context, tx bun.Tx) error) error
}

// Repository combines row, pagination, and transactional operations and
// exposes Bun query builders for advanced use cases.
type Repository[T any] interface {
	CrudRepository[T]
	PageRepository
	TransactionRepository[T]
	Dialect() schema.Dialect
	NewSelect() *bun.SelectQuery
	NewInsert() *bun.InsertQuery
	NewUpdate() *bun.UpdateQuery
	NewDelete() *bun.DeleteQuery
}
