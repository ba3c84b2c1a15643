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
	"testing"
	"time"

	"github.com/tomoncle/adminkit/descriptor"
	"github.com/tomoncle/adminkit/query"
	"github.com/tomoncle/adminkit/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

type product struct {
	bun.BaseModel `bun:"table:products,alias:p"`

	ID        int64   `bun:"id,pk,autoincrement" json:"id"`
	TradeName string  `bun:"trade_name" json:"trade_name"`
	Category  string  `bun:"category" json:"category"`
	Quantity  int     `bun:"quantity" json:"quantity"`
	UnitPrice float64 `bun:"unit_price" json:"unit_price"`
	CostPrice float64 `bun:"cost_price" json:"cost_price"`
}

func productDescriptor() *descriptor.Entity {
	return descriptor.NewEntity("product", "products").
		Alias("p").
		Column("id", descriptor.KindInt).
		Column("trade_name", descriptor.KindString).
		Filterable("category", descriptor.KindString).
		Range("quantity", descriptor.KindInt).
		Range("unit_price", descriptor.KindFloat).
		Column("cost_price", descriptor.KindFloat).
		Column("category_id", descriptor.KindInt).
		Searchable("trade_name").
		SortKey("tradeName", "trade_name").
		SortKey("quantity", "quantity").
		Relation("category", "categories", "category_id", "id").
		Allow(descriptor.RolePublic, "id", "trade_name").
		Allow(descriptor.RoleUser, "id", "trade_name", "category", "quantity", "unit_price").
		Allow(descriptor.RoleAdmin, "id", "trade_name", "category", "quantity", "unit_price", "cost_price").
		MustBuild()
}

func setupRepo(t *testing.T, name string) (Repository[product], *bun.DB) {
	t.Helper()
	sqlDB, err := sql.Open(sqliteshim.ShimName, "file:"+name+"?mode=memory&cache=shared")
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	db := bun.NewDB(sqlDB, sqlitedialect.New())
	t.Cleanup(func() { _ = db.Close() })

	ctx := context.Background()
	_, err = db.ExecContext(ctx, `CREATE TABLE products (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		trade_name TEXT,
		category TEXT,
		quantity INTEGER,
		unit_price REAL,
		cost_price REAL,
		category_id INTEGER
	)`)
	require.NoError(t, err)
	_, err = db.ExecContext(ctx, `CREATE TABLE categories (id INTEGER PRIMARY KEY, name TEXT)`)
	require.NoError(t, err)

	return NewRepository[product](db, productDescriptor()), db
}

func seedProducts(t *testing.T, repo Repository[product], items ...*product) {
	t.Helper()
	for _, item := range items {
		require.NoError(t, repo.Create(context.Background(), item))
	}
}

func TestGetOne(t *testing.T) {
	repo, _ := setupRepo(t, "repo_getone")
	ctx := context.Background()

	seedProducts(t, repo, &product{TradeName: "aspirin", Category: "analgesic", Quantity: 10})

	got, err := repo.GetOne(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "aspirin", got.TradeName)

	// Absence is a value, not an error.
	got, err = repo.GetOne(ctx, 999)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestCreateHydratesID(t *testing.T) {
	repo, _ := setupRepo(t, "repo_create")
	p := &product{TradeName: "ibuprofen"}
	require.NoError(t, repo.Create(context.Background(), p))
	assert.NotZero(t, p.ID)
}

func TestPageFiltersAndProjection(t *testing.T) {
	repo, _ := setupRepo(t, "repo_page")
	ctx := context.Background()

	seedProducts(t, repo,
		&product{TradeName: "aspirin", Category: "analgesic", Quantity: 10, UnitPrice: 2.5, CostPrice: 1.0},
		&product{TradeName: "ibuprofen", Category: "analgesic", Quantity: 50, UnitPrice: 4.0, CostPrice: 2.0},
		&product{TradeName: "amoxicillin", Category: "antibiotic", Quantity: 30, UnitPrice: 9.0, CostPrice: 5.0},
	)

	q := types.NewListQuery()
	q.Filters = map[string]any{"category": "analgesic", "quantity_min": 10, "quantity_max": 50}
	require.NoError(t, q.Normalize())
	compiled, err := query.Compile(productDescriptor(), q)
	require.NoError(t, err)

	proj := query.ResolveFields(productDescriptor(), descriptor.RoleUser, []string{"trade_name", "quantity", "cost_price"})
	page, err := repo.Page(ctx, compiled, proj, 1, 20, nil)
	require.NoError(t, err)

	assert.Equal(t, 2, page.Pagination.Total)
	assert.Equal(t, 1, page.Pagination.TotalPages)
	require.Len(t, page.Items, 2)
	for _, row := range page.Items {
		// Exactly the allowed requested columns, nothing else.
		assert.Len(t, row, 2)
		assert.Contains(t, row, "trade_name")
		assert.Contains(t, row, "quantity")
		assert.NotContains(t, row, "cost_price")
	}
	// Default sort is pk desc.
	assert.Equal(t, "ibuprofen", page.Items[0]["trade_name"])
}

func TestPageFullyDeniedProjectionExposesNoColumns(t *testing.T) {
	repo, _ := setupRepo(t, "repo_denied")
	ctx := context.Background()

	seedProducts(t, repo,
		&product{TradeName: "aspirin", Category: "analgesic", Quantity: 10, UnitPrice: 2.5, CostPrice: 9.99},
		&product{TradeName: "ibuprofen", Category: "analgesic", Quantity: 50, UnitPrice: 4.0, CostPrice: 2.0},
	)

	q := types.NewListQuery()
	require.NoError(t, q.Normalize())
	compiled, err := query.Compile(productDescriptor(), q)
	require.NoError(t, err)

	// A public caller asking only for a restricted column ends up with an
	// empty projection. The page must still count and enumerate rows, but
	// every key stays hidden, the pk included.
	proj := query.ResolveFields(productDescriptor(), descriptor.RolePublic, []string{"cost_price"})
	require.Empty(t, proj.Columns)
	require.True(t, proj.Suspicious())

	page, err := repo.Page(ctx, compiled, proj, 1, 20, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, page.Pagination.Total)
	require.Len(t, page.Items, 2)
	for _, row := range page.Items {
		assert.Empty(t, row)
	}
}

func TestPageReadTimeoutBoundsQueries(t *testing.T) {
	sqlDB, err := sql.Open(sqliteshim.ShimName, "file:repo_timeout?mode=memory&cache=shared")
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	db := bun.NewDB(sqlDB, sqlitedialect.New())
	t.Cleanup(func() { _ = db.Close() })
	ctx := context.Background()
	_, err = db.ExecContext(ctx, `CREATE TABLE products (id INTEGER PRIMARY KEY AUTOINCREMENT, trade_name TEXT, category TEXT, quantity INTEGER, unit_price REAL, cost_price REAL, category_id INTEGER)`)
	require.NoError(t, err)

	repo := NewRepository[product](db, productDescriptor(), WithReadTimeout(time.Nanosecond))

	q := types.NewListQuery()
	require.NoError(t, q.Normalize())
	compiled, err := query.Compile(productDescriptor(), q)
	require.NoError(t, err)
	proj := query.ResolveFields(productDescriptor(), descriptor.RolePublic, nil)

	// The deadline expires before either read can run.
	_, err = repo.Page(ctx, compiled, proj, 1, 20, nil)
	require.Error(t, err)
}

func TestPageSearch(t *testing.T) {
	repo, _ := setupRepo(t, "repo_search")
	ctx := context.Background()

	seedProducts(t, repo,
		&product{TradeName: "aspirin"},
		&product{TradeName: "aspirin forte"},
		&product{TradeName: "ibuprofen"},
	)

	q := types.NewListQuery()
	q.Search = "aspirin"
	require.NoError(t, q.Normalize())
	compiled, err := query.Compile(productDescriptor(), q)
	require.NoError(t, err)

	proj := query.ResolveFields(productDescriptor(), descriptor.RolePublic, nil)
	page, err := repo.Page(ctx, compiled, proj, 1, 20, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, page.Pagination.Total)
}

func TestPageStableOrderAcrossTiedPages(t *testing.T) {
	repo, _ := setupRepo(t, "repo_tiebreak")
	ctx := context.Background()

	// All rows tie on quantity; only the pk tiebreak keeps pages disjoint.
	for i := 0; i < 5; i++ {
		seedProducts(t, repo, &product{TradeName: "gauze", Quantity: 7})
	}

	desc := productDescriptor()
	q := types.NewListQuery()
	q.Sort = "quantity:asc"
	require.NoError(t, q.Normalize())
	compiled, err := query.Compile(desc, q)
	require.NoError(t, err)
	proj := query.ResolveFields(desc, descriptor.RoleUser, []string{"id"})

	seen := map[int64]bool{}
	for pageNum := 1; pageNum <= 3; pageNum++ {
		page, err := repo.Page(ctx, compiled, proj, pageNum, 2, nil)
		require.NoError(t, err)
		for _, row := range page.Items {
			id := row["id"].(int64)
			assert.False(t, seen[id], "row %d appeared twice", id)
			seen[id] = true
		}
	}
	assert.Len(t, seen, 5)
}

func TestPageIgnoresUndeclaredInclude(t *testing.T) {
	repo, _ := setupRepo(t, "repo_include")
	ctx := context.Background()
	seedProducts(t, repo, &product{TradeName: "aspirin", Category: "analgesic"})

	q := types.NewListQuery()
	require.NoError(t, q.Normalize())
	compiled, err := query.Compile(productDescriptor(), q)
	require.NoError(t, err)
	proj := query.ResolveFields(productDescriptor(), descriptor.RolePublic, nil)

	page, err := repo.Page(ctx, compiled, proj, 1, 20, []string{"category", "attacker_table"})
	require.NoError(t, err)
	assert.Equal(t, 1, page.Pagination.Total)
}

func TestUpdate(t *testing.T) {
	repo, _ := setupRepo(t, "repo_update")
	ctx := context.Background()

	p := &product{TradeName: "aspirin", Quantity: 10}
	seedProducts(t, repo, p)

	p.Quantity = 25
	updated, err := repo.Update(ctx, p)
	require.NoError(t, err)
	assert.True(t, updated)

	got, err := repo.GetOne(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 25, got.Quantity)

	missing := &product{ID: 999, TradeName: "ghost"}
	updated, err = repo.Update(ctx, missing)
	require.NoError(t, err)
	assert.False(t, updated)
}

func TestDelete(t *testing.T) {
	repo, _ := setupRepo(t, "repo_delete")
	ctx := context.Background()

	p := &product{TradeName: "aspirin"}
	seedProducts(t, repo, p)

	deleted, err := repo.Delete(ctx, p.ID)
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = repo.Delete(ctx, p.ID)
	require.NoError(t, err)
	assert.False(t, deleted)
}

func TestCreateManyTxPreservesOrderAndRollsBack(t *testing.T) {
	repo, db := setupRepo(t, "repo_bulk")
	ctx := context.Background()

	batch := []*product{
		{TradeName: "first"},
		{TradeName: "second"},
		{TradeName: "third"},
	}
	err := repo.RunInTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		return repo.CreateManyTx(ctx, tx, batch)
	})
	require.NoError(t, err)
	assert.True(t, batch[0].ID < batch[1].ID && batch[1].ID < batch[2].ID,
		"hydrated keys follow input order")

	// A failing transaction leaves no rows behind.
	sentinel := errors.New("abort")
	err = repo.RunInTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		if err := repo.CreateManyTx(ctx, tx, []*product{{TradeName: "doomed"}}); err != nil {
			return err
		}
		return sentinel
	})
	require.ErrorIs(t, err, sentinel)

	count, err := db.NewSelect().Table("products").Where("trade_name = ?", "doomed").Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
}
