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
	"strings"

	"github.com/tomoncle/adminkit/types"

	"github.com/go-sql-driver/mysql"
)

type SQLError int

const (
	UnknownErr SQLError = iota
	NoRowsErr
	NoColumnErr
	NoTableErr
	DuplicateKeyErr
	NotNullViolationErr
	ForeignKeyViolationErr
	CheckConstraintViolationErr
	DataTruncatedErr
	InvalidTypeCastErr
)

// IsSqlError classifies a driver error. MySQL errors carry numeric codes;
// Postgres and SQLite are matched on SQLSTATE text because lib/pq and
// sqliteshim surface them as formatted messages.
func IsSqlError(err error) (is bool, sqlErr SQLError) {
	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) {
		switch mysqlErr.Number {
		case 1054:
			return true, NoColumnErr
		case 1062:
			return true, DuplicateKeyErr
		case 1048:
			return true, NotNullViolationErr
		case 1216, 1217, 1451, 1452:
			return true, ForeignKeyViolationErr
		case 3819:
			return true, CheckConstraintViolationErr
		case 1265:
			return true, DataTruncatedErr
		default:
			return true, UnknownErr
		}
	}
	s := strings.ToLower(err.Error())
	if strings.Contains(s, "sqlstate 42703") ||
		strings.Contains(s, "undefined column") ||
		strings.Contains(s, "no such column") {
		return true, NoColumnErr
	}
	if strings.Contains(s, "sqlstate 42p01") ||
		strings.Contains(s, "undefined table") ||
		strings.Contains(s, "no such table") {
		return true, NoTableErr
	}
	if strings.Contains(s, "duplicate key value") ||
		strings.Contains(s, "unique constraint failed") ||
		strings.Contains(s, "sqlstate 23505") {
		return true, DuplicateKeyErr
	}
	if strings.Contains(s, "not-null constraint") ||
		strings.Contains(s, "sqlstate 23502") ||
		strings.Contains(s, "not null constraint failed") {
		return true, NotNullViolationErr
	}
	if strings.Contains(s, "foreign key violation") ||
		strings.Contains(s, "foreign key constraint failed") ||
		strings.Contains(s, "sqlstate 23503") {
		return true, ForeignKeyViolationErr
	}
	if strings.Contains(s, "check constraint") ||
		strings.Contains(s, "sqlstate 23514") {
		return true, CheckConstraintViolationErr
	}
	if strings.Contains(s, "string data right truncation") ||
		strings.Contains(s, "sqlstate 22001") ||
		strings.Contains(s, "data truncated") {
		return true, DataTruncatedErr
	}
	if strings.Contains(s, "datatype mismatch") ||
		strings.Contains(s, "sqlstate 42804") {
		return true, InvalidTypeCastErr
	}
	return false, UnknownErr
}

// ClassifyError maps a driver error into the lifecycle taxonomy. Duplicate
// keys and foreign key violations are conflicts; constraint and truncation
// failures are validation errors; anything else stays a server error so the
// boundary reports it with a correlation id instead of the driver message.
func ClassifyError(err error) *types.LifecycleError {
	if err == nil {
		return nil
	}
	if le, ok := types.AsLifecycleError(err); ok {
		return le
	}
	if is, kind := IsSqlError(err); is {
		switch kind {
		case DuplicateKeyErr:
			return types.NewConflict("DUPLICATE_KEY", "a row with the same unique value already exists").WithCause(err)
		case ForeignKeyViolationErr:
			return types.NewConflict("FOREIGN_KEY_VIOLATION", "operation violates a foreign key constraint").WithCause(err)
		case NotNullViolationErr:
			return types.NewValidationError("NOT_NULL_VIOLATION", "a required column is missing").WithCause(err)
		case CheckConstraintViolationErr:
			return types.NewValidationError("CHECK_VIOLATION", "a column value violates a check constraint").WithCause(err)
		case DataTruncatedErr, InvalidTypeCastErr:
			return types.NewValidationError("INVALID_VALUE", "a column value has the wrong type or length").WithCause(err)
		}
	}
	return types.NewServerError("INTERNAL_ERROR", "internal server error").WithCause(err)
}
