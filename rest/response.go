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

package rest

import (
	"net/http"
	"time"

	"github.com/tomoncle/adminkit/types"
	"github.com/tomoncle/adminkit/utils"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

var (
	appVersion     = utils.EnvDefaultString("APP_VERSION", "dev")
	appEnvironment = utils.EnvDefaultString("APP_ENV", "development")
)

// RequestIDHeader carries the caller's correlation id; when absent a fresh
// uuid is generated per response.
const RequestIDHeader = "X-Request-Id"

// Meta is attached to every success envelope.
type Meta struct {
	Timestamp   string `json:"timestamp"`
	Version     string `json:"version"`
	RequestID   string `json:"requestId"`
	Environment string `json:"environment"`
}

// Envelope is the success response shape shared by every endpoint.
type Envelope struct {
	Success    bool            `json:"success"`
	Data       any             `json:"data"`
	Pagination *types.PageInfo `json:"pagination,omitempty"`
	Meta       Meta            `json:"meta"`
}

// ErrorBody is the error payload inside an error envelope.
type ErrorBody struct {
	Code       string           `json:"code"`
	Message    string           `json:"message"`
	StatusCode int              `json:"statusCode"`
	Details    types.JsonObject `json:"details,omitempty"`
}

// ErrorEnvelope is the error response shape shared by every endpoint.
type ErrorEnvelope struct {
	Success bool      `json:"success"`
	Error   ErrorBody `json:"error"`
	Meta    Meta      `json:"meta"`
}

func newMeta(c *gin.Context) Meta {
	requestID := c.GetHeader(RequestIDHeader)
	if requestID == "" {
		requestID = uuid.NewString()
	}
	return Meta{
		Timestamp:   time.Now().UTC().Format(time.RFC3339),
		Version:     appVersion,
		RequestID:   requestID,
		Environment: appEnvironment,
	}
}

// OK writes a success envelope with data only.
func OK(c *gin.Context, status int, data any) {
	c.JSON(status, Envelope{Success: true, Data: data, Meta: newMeta(c)})
}

// Paginated writes a success envelope carrying a page of rows.
func Paginated(c *gin.Context, page *types.Page[types.JsonObject]) {
	c.JSON(http.StatusOK, Envelope{
		Success:    true,
		Data:       page.Items,
		Pagination: &page.Pagination,
		Meta:       newMeta(c),
	})
}

// Fail maps an error to its envelope. LifecycleError maps 1:1 onto status and
// code; anything else becomes a 500 whose correlation id is logged alongside
// the internal error, which is never leaked to the payload.
func Fail(c *gin.Context, logger *utils.Logger, err error) {
	meta := newMeta(c)
	if le, ok := types.AsLifecycleError(err); ok {
		c.JSON(le.StatusCode(), ErrorEnvelope{
			Error: ErrorBody{
				Code:       le.Code,
				Message:    le.Message,
				StatusCode: le.StatusCode(),
				Details:    le.Details,
			},
			Meta: meta,
		})
		return
	}

	logger.WithField("requestId", meta.RequestID).Errorf("unhandled error: %v", err)
	c.JSON(http.StatusInternalServerError, ErrorEnvelope{
		Error: ErrorBody{
			Code:       "INTERNAL_ERROR",
			Message:    "internal server error",
			StatusCode: http.StatusInternalServerError,
		},
		Meta: meta,
	})
}
