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

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorKind tags a LifecycleError so the HTTP boundary can match
// exhaustively instead of duck-typing on attached properties.
type ErrorKind int

const (
	KindServerError ErrorKind = iota
	KindValidation
	KindBusinessRuleViolation
	KindNotFound
	KindConflict
	KindPermissionDenied
)

var _ BaseEnum = KindValidation

func (k ErrorKind) IsValid() bool {
	return k >= KindServerError && k <= KindPermissionDenied
}

func (k ErrorKind) Number() int { return int(k) }

func (k ErrorKind) Name() string { return k.String() }

func (k ErrorKind) String() string {
	switch k {
	case KindValidation:
		return "ValidationError"
	case KindBusinessRuleViolation:
		return "BusinessRuleViolation"
	case KindNotFound:
		return "NotFound"
	case KindConflict:
		return "Conflict"
	case KindPermissionDenied:
		return "PermissionDenied"
	case KindServerError:
		return "ServerError"
	default:
		return IllegalName
	}
}

func (k ErrorKind) Desc() string {
	switch k {
	case KindValidation:
		return "request shape or bounds violated"
	case KindBusinessRuleViolation:
		return "entity business rule violated"
	case KindNotFound:
		return "row does not exist"
	case KindConflict:
		return "duplicate key or referential block"
	case KindPermissionDenied:
		return "caller role lacks access"
	case KindServerError:
		return "unclassified internal failure"
	default:
		return IllegalDesc
	}
}

// StatusCode returns the HTTP status the boundary maps this kind to.
func (k ErrorKind) StatusCode() int {
	switch k {
	case KindValidation:
		return http.StatusBadRequest
	case KindBusinessRuleViolation:
		return http.StatusUnprocessableEntity
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindPermissionDenied:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// LifecycleError is the one error type raised by lifecycle hooks and engine
// components. Details is optional structured context (for example the
// blockedBy list of a referential delete block).
type LifecycleError struct {
	Kind    ErrorKind
	Code    string
	Message string
	Details JsonObject
	cause   error
}

func (e *LifecycleError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *LifecycleError) Unwrap() error { return e.cause }

// StatusCode returns the HTTP status for this error's kind.
func (e *LifecycleError) StatusCode() int { return e.Kind.StatusCode() }

// WithDetails attaches structured context and returns the error.
func (e *LifecycleError) WithDetails(details JsonObject) *LifecycleError {
	e.Details = details
	return e
}

// WithCause records the underlying error for logs without leaking it to
// response payloads.
func (e *LifecycleError) WithCause(cause error) *LifecycleError {
	e.cause = cause
	return e
}

func newError(kind ErrorKind, code, message string) *LifecycleError {
	return &LifecycleError{Kind: kind, Code: code, Message: message}
}

func NewValidationError(code, message string) *LifecycleError {
	return newError(KindValidation, code, message)
}

func NewBusinessRuleViolation(code, message string) *LifecycleError {
	return newError(KindBusinessRuleViolation, code, message)
}

func NewNotFound(code, message string) *LifecycleError {
	return newError(KindNotFound, code, message)
}

func NewConflict(code, message string) *LifecycleError {
	return newError(KindConflict, code, message)
}

func NewPermissionDenied(code, message string) *LifecycleError {
	return newError(KindPermissionDenied, code, message)
}

func NewServerError(code, message string) *LifecycleError {
	return newError(KindServerError, code, message)
}

// AsLifecycleError unwraps err into a LifecycleError if it is one.
func AsLifecycleError(err error) (*LifecycleError, bool) {
	var le *LifecycleError
	if errors.As(err, &le) {
		return le, true
	}
	return nil, false
}
