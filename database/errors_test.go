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
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/tomoncle/adminkit/types"

	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsSqlErrorMySQLNumbers(t *testing.T) {
	tests := []struct {
		number uint16
		want   SQLError
	}{
		{1054, NoColumnErr},
		{1062, DuplicateKeyErr},
		{1048, NotNullViolationErr},
		{1451, ForeignKeyViolationErr},
		{1452, ForeignKeyViolationErr},
		{3819, CheckConstraintViolationErr},
		{1265, DataTruncatedErr},
		{9999, UnknownErr},
	}
	for _, tt := range tests {
		err := &mysql.MySQLError{Number: tt.number, Message: "x"}
		is, kind := IsSqlError(fmt.Errorf("exec: %w", err))
		assert.True(t, is, "number %d", tt.number)
		assert.Equal(t, tt.want, kind, "number %d", tt.number)
	}
}

func TestIsSqlErrorTextMatching(t *testing.T) {
	tests := []struct {
		msg  string
		want SQLError
	}{
		{"ERROR: duplicate key value violates unique constraint (SQLSTATE 23505)", DuplicateKeyErr},
		{"UNIQUE constraint failed: products.sku", DuplicateKeyErr},
		{"NOT NULL constraint failed: products.trade_name", NotNullViolationErr},
		{"ERROR: update violates foreign key violation (SQLSTATE 23503)", ForeignKeyViolationErr},
		{"FOREIGN KEY constraint failed", ForeignKeyViolationErr},
		{"no such column: ghost", NoColumnErr},
		{"no such table: ghosts", NoTableErr},
		{"ERROR: value violates check constraint (SQLSTATE 23514)", CheckConstraintViolationErr},
	}
	for _, tt := range tests {
		is, kind := IsSqlError(errors.New(tt.msg))
		assert.True(t, is, tt.msg)
		assert.Equal(t, tt.want, kind, tt.msg)
	}

	is, _ := IsSqlError(errors.New("connection refused"))
	assert.False(t, is)
}

func TestClassifyErrorTaxonomy(t *testing.T) {
	le := ClassifyError(&mysql.MySQLError{Number: 1062, Message: "dup"})
	require.NotNil(t, le)
	assert.Equal(t, "DUPLICATE_KEY", le.Code)
	assert.Equal(t, http.StatusConflict, le.StatusCode())

	le = ClassifyError(errors.New("FOREIGN KEY constraint failed"))
	assert.Equal(t, "FOREIGN_KEY_VIOLATION", le.Code)
	assert.Equal(t, http.StatusConflict, le.StatusCode())

	le = ClassifyError(&mysql.MySQLError{Number: 1048, Message: "null"})
	assert.Equal(t, "NOT_NULL_VIOLATION", le.Code)
	assert.Equal(t, http.StatusBadRequest, le.StatusCode())

	le = ClassifyError(errors.New("something weird"))
	assert.Equal(t, "INTERNAL_ERROR", le.Code)
	assert.Equal(t, http.StatusInternalServerError, le.StatusCode())
}

func TestClassifyErrorPassesThroughLifecycleErrors(t *testing.T) {
	original := types.NewConflict("DELETE_BLOCKED", "blocked")
	le := ClassifyError(fmt.Errorf("tx: %w", original))
	assert.Same(t, original, le)
}

func TestClassifyErrorNil(t *testing.T) {
	assert.Nil(t, ClassifyError(nil))
}
