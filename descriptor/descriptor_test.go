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

package descriptor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validBuilder() *Builder {
	return NewEntity("product", "products").
		Alias("p").
		Column("id", KindInt).
		Filterable("category", KindString).
		Range("unit_price", KindFloat).
		Column("trade_name", KindString).
		Searchable("trade_name").
		SortKey("tradeName", "trade_name").
		Allow(RolePublic, "id", "trade_name").
		Allow(RoleUser, "id", "trade_name", "unit_price").
		Allow(RoleAdmin, "id", "trade_name", "unit_price", "category")
}

func TestBuilderBuildsValidDescriptor(t *testing.T) {
	e, err := validBuilder().Build()
	require.NoError(t, err)

	assert.Equal(t, "product", e.Name())
	assert.Equal(t, "products", e.Table())
	assert.Equal(t, "p", e.Alias())
	assert.Equal(t, "id", e.PK())

	col, ok := e.Column("unit_price")
	require.True(t, ok)
	assert.True(t, col.Filterable)
	assert.True(t, col.Rangeable)

	col, ok = e.Column("category")
	require.True(t, ok)
	assert.True(t, col.Filterable)
	assert.False(t, col.Rangeable)

	_, ok = e.Column("nope")
	assert.False(t, ok)

	colName, mapped := e.SortColumn("tradeName")
	assert.True(t, mapped)
	assert.Equal(t, "trade_name", colName)
	_, mapped = e.SortColumn("trade_name")
	assert.False(t, mapped, "sort keys are external names, not columns")
}

func TestBuilderRejectsUndeclaredPK(t *testing.T) {
	_, err := NewEntity("order", "orders").
		Filterable("status", KindString).
		Allow(RolePublic, "status").
		Allow(RoleUser, "status").
		Allow(RoleAdmin, "status").
		Build()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "primary key")
}

func TestBuilderRejectsMissingRoleAllowList(t *testing.T) {
	_, err := NewEntity("order", "orders").
		Column("id", KindInt).
		Allow(RolePublic, "id").
		Build()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "allow-list")
}

func TestBuilderRejectsUndeclaredReferences(t *testing.T) {
	_, err := validBuilder().
		Searchable("ghost").
		SortKey("bad", "ghost").
		Allow(RoleAdmin, "ghost").
		Relation("cat", "categories", "ghost", "id").
		Build()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ghost")
}

func TestBuilderCollectsAllErrors(t *testing.T) {
	_, err := NewEntity("", "").Build()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "name and table are required")
	assert.Contains(t, err.Error(), "primary key")
}

func TestAccessPolicyResolve(t *testing.T) {
	e := validBuilder().MustBuild()
	policy := e.Policy()

	assert.Equal(t, []string{"id", "trade_name"}, policy.Resolve(RolePublic))
	assert.Equal(t, []string{"id", "trade_name"}, policy.Resolve(Role("intruder")),
		"unknown roles fall back to public")
	assert.True(t, policy.Allows(RoleAdmin, "category"))
	assert.False(t, policy.Allows(RolePublic, "category"))
}

func TestRegistry(t *testing.T) {
	e := validBuilder().MustBuild()
	Register(e)

	got, ok := Lookup("product")
	require.True(t, ok)
	assert.Same(t, e, got)

	_, ok = Lookup("missing")
	assert.False(t, ok)
}
