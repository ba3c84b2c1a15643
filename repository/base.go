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
	"database/sql"
	"errors"
	"time"

	"github.com/tomoncle/adminkit/descriptor"
	"github.com/tomoncle/adminkit/query"
	"github.com/tomoncle/adminkit/types"

	"golang.org/x/sync/errgroup"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/schema"
)

type baseRepositoryImpl[T any] struct {
	db          *bun.DB
	desc        *descriptor.Entity
	readTimeout time.Duration
}

// Option tunes a repository.
type Option func(*options)

type options struct {
	readTimeout time.Duration
}

// WithReadTimeout bounds the count and data queries of a paged list so one
// heavy request cannot hold a connection indefinitely.
func WithReadTimeout(d time.Duration) Option {
	return func(o *options) { o.readTimeout = d }
}

// NewRepository returns a generic repository for the entity described by
// desc, backed by the provided Bun DB.
func NewRepository[T any](db *bun.DB, desc *descriptor.Entity, opts ...Option) Repository[T] {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	return &baseRepositoryImpl[T]{db: db, desc: desc, readTimeout: o.readTimeout}
}

func (r *baseRepositoryImpl[T]) Dialect() schema.Dialect { return r.db.Dialect() }

func (r *baseRepositoryImpl[T]) NewSelect() *bun.SelectQuery { return r.db.NewSelect() }

func (r *baseRepositoryImpl[T]) NewInsert() *bun.InsertQuery { return r.db.NewInsert() }

func (r *baseRepositoryImpl[T]) NewUpdate() *bun.UpdateQuery { return r.db.NewUpdate() }

func (r *baseRepositoryImpl[T]) NewDelete() *bun.DeleteQuery { return r.db.NewDelete() }

func (r *baseRepositoryImpl[T]) GetOne(ctx context.Context, id any) (*T, error) {
	return r.getOne(ctx, r.db, id)
}

func (r *baseRepositoryImpl[T]) GetOneTx(ctx context.Context, tx bun.Tx, id any) (*T, error) {
	return r.getOne(ctx, tx, id)
}

func (r *baseRepositoryImpl[T]) getOne(ctx context.Context, idb bun.IDB, id any) (*T, error) {
	var entity T
	err := idb.NewSelect().Model(&entity).
		Where("? = ?", bun.Ident(r.desc.PK()), id).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &entity, nil
}

// Page issues the count and data reads for one list request. Both queries
// share the compiled predicates; they are independent reads and run
// concurrently. The data query selects only the projected columns and is
// ordered by the compiled sort terms, which always end in the primary key.
func (r *baseRepositoryImpl[T]) Page(ctx context.Context, c *query.Compiled, proj *query.Projection,
	page, limit int, includes []string) (*types.Page[types.JsonObject], error) {

	if r.readTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.readTimeout)
		defer cancel()
	}

	var (
		total int
		rows  []map[string]interface{}
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		total, err = r.applyPredicates(r.baseSelect(includes), c).Count(gctx)
		return err
	})
	g.Go(func() error {
		q := r.applyPredicates(r.baseSelect(includes), c)
		// An empty projection must stay empty: without an explicit column
		// list bun would emit SELECT * and hand a fully denied caller every
		// column. The pk is selected only to drive the scan and is stripped
		// below.
		cols := proj.Columns
		if len(cols) == 0 {
			cols = []string{r.desc.PK()}
		}
		for _, col := range cols {
			q = q.ColumnExpr("?.?", bun.Ident(r.desc.Alias()), bun.Ident(col))
		}
		q = r.applyOrders(q, c.Orders).
			Limit(limit).
			Offset((page - 1) * limit)
		return q.Scan(gctx, &rows)
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	items := make([]types.JsonObject, len(rows))
	for i, row := range rows {
		if len(proj.Columns) == 0 {
			items[i] = types.JsonObject{}
			continue
		}
		items[i] = types.JsonObject(row)
	}
	return &types.Page[types.JsonObject]{
		Items:      items,
		Pagination: types.NewPageInfo(page, limit, total),
	}, nil
}

func (r *baseRepositoryImpl[T]) baseSelect(includes []string) *bun.SelectQuery {
	q := r.db.NewSelect().
		TableExpr("? AS ?", bun.Ident(r.desc.Table()), bun.Ident(r.desc.Alias()))
	for _, name := range includes {
		rel, ok := r.desc.Relation(name)
		if !ok {
			// Undeclared include names are ignored; joins are limited to the
			// descriptor's fixed declarations.
			continue
		}
		q = q.Join("LEFT JOIN ? ON ?.? = ?.?",
			bun.Ident(rel.Table),
			bun.Ident(r.desc.Alias()), bun.Ident(rel.LocalColumn),
			bun.Ident(rel.Table), bun.Ident(rel.ForeignColumn))
	}
	return q
}

func (r *baseRepositoryImpl[T]) applyPredicates(q *bun.SelectQuery, c *query.Compiled) *bun.SelectQuery {
	alias := r.desc.Alias()
	for _, clause := range c.Clauses {
		switch clause.Op {
		case query.OpGte:
			q = q.Where("?.? >= ?", bun.Ident(alias), bun.Ident(clause.Column), clause.Value)
		case query.OpLte:
			q = q.Where("?.? <= ?", bun.Ident(alias), bun.Ident(clause.Column), clause.Value)
		default:
			q = q.Where("?.? = ?", bun.Ident(alias), bun.Ident(clause.Column), clause.Value)
		}
	}
	if c.SearchTerm != "" && len(c.SearchColumns) > 0 {
		pattern := "%" + c.SearchTerm + "%"
		cols := c.SearchColumns
		q = q.WhereGroup(" AND ", func(sq *bun.SelectQuery) *bun.SelectQuery {
			for _, col := range cols {
				sq = sq.WhereOr("?.? LIKE ?", bun.Ident(alias), bun.Ident(col), pattern)
			}
			return sq
		})
	}
	return q
}

func (r *baseRepositoryImpl[T]) applyOrders(q *bun.SelectQuery, orders []query.Order) *bun.SelectQuery {
	alias := r.desc.Alias()
	for _, o := range orders {
		dir := bun.Safe("ASC")
		if o.Desc {
			dir = bun.Safe("DESC")
		}
		q = q.OrderExpr("?.? ?", bun.Ident(alias), bun.Ident(o.Column), dir)
	}
	return q
}

func (r *baseRepositoryImpl[T]) Create(ctx context.Context, entity *T) error {
	_, err := r.db.NewInsert().Model(entity).Exec(ctx)
	return err
}

// CreateManyTx inserts the batch as one statement inside the caller's
// transaction. Bun writes rows in slice order and hydrates generated keys in
// the same order, so results match input order.
func (r *baseRepositoryImpl[T]) CreateManyTx(ctx context.Context, tx bun.Tx, entities []*T) error {
	if len(entities) == 0 {
		return nil
	}
	_, err := tx.NewInsert().Model(&entities).Exec(ctx)
	return err
}

func (r *baseRepositoryImpl[T]) Update(ctx context.Context, entity *T) (bool, error) {
	res, err := r.db.NewUpdate().Model(entity).WherePK().Exec(ctx)
	if err != nil {
		return false, err
	}
	return rowsAffected(res), nil
}

func (r *baseRepositoryImpl[T]) Delete(ctx context.Context, id any) (bool, error) {
	return r.delete(ctx, r.db, id)
}

func (r *baseRepositoryImpl[T]) DeleteTx(ctx context.Context, tx bun.Tx, id any) (bool, error) {
	return r.delete(ctx, tx, id)
}

// delete is conditional on the row still existing: the affected-row count
// distinguishes a deleted row from one already gone.
func (r *baseRepositoryImpl[T]) delete(ctx context.Context, idb bun.IDB, id any) (bool, error) {
	var entity T
	res, err := idb.NewDelete().Model(&entity).
		Where("? = ?", bun.Ident(r.desc.PK()), id).
		Exec(ctx)
	if err != nil {
		return false, err
	}
	return rowsAffected(res), nil
}

// RunInTx commits iff fn returns nil and rolls back otherwise, returning the
// original error unchanged.
func (r *baseRepositoryImpl[T]) RunInTx(ctx context.Context, fn func(ctx context.Context, tx bun.Tx) error) error {
	return r.db.RunInTx(ctx, nil, fn)
}

func rowsAffected(res sql.Result) bool {
	n, err := res.RowsAffected()
	return err == nil && n > 0
}
