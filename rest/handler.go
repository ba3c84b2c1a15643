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
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/tomoncle/adminkit"
	"github.com/tomoncle/adminkit/descriptor"
	"github.com/tomoncle/adminkit/query"
	"github.com/tomoncle/adminkit/types"
	"github.com/tomoncle/adminkit/utils"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// Context keys populated by the host's auth middleware.
const (
	ContextRoleKey = "role"
	ContextUserKey = "user"
)

// reservedParams are the query keys consumed by paging, sorting, search,
// projection, and includes; everything else is treated as a filter.
var reservedParams = map[string]bool{
	"page": true, "limit": true, "sort": true,
	"search": true, "fields": true, "include": true,
}

// BindListQuery builds an untrusted list query from the request's query
// string. Only shape errors are raised here; names are validated later
// against the entity descriptor.
func BindListQuery(c *gin.Context) (*types.ListQuery, error) {
	q := types.NewListQuery()

	if raw := c.Query("page"); raw != "" {
		page, err := strconv.Atoi(raw)
		if err != nil {
			return nil, types.NewValidationError("INVALID_PAGE", fmt.Sprintf("page must be an integer, got %q", raw))
		}
		q.Page = page
	}
	if raw := c.Query("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			return nil, types.NewValidationError("INVALID_LIMIT", fmt.Sprintf("limit must be an integer, got %q", raw))
		}
		q.Limit = limit
	}
	q.Sort = c.Query("sort")
	q.Search = c.Query("search")
	q.Fields = splitMulti(c.QueryArray("fields"))
	q.Include = splitMulti(c.QueryArray("include"))

	for key, values := range c.Request.URL.Query() {
		if reservedParams[key] || len(values) == 0 {
			continue
		}
		q.Filters[key] = values[0]
	}
	return q, nil
}

// splitMulti flattens repeated query parameters, each of which may itself be
// a comma-separated list.
func splitMulti(values []string) []string {
	var out []string
	for _, raw := range values {
		for _, part := range strings.Split(raw, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// RoleFromContext reads the caller role set by the auth middleware; absent or
// unknown roles resolve to public downstream.
func RoleFromContext(c *gin.Context) descriptor.Role {
	return descriptor.Role(c.GetString(ContextRoleKey))
}

// Resource wires one described entity's lifecycle service into a generic set
// of gin handlers sharing the response envelopes.
type Resource[T any] struct {
	name          string
	desc          *descriptor.Entity
	service       adminkit.Service[T]
	logger        *utils.Logger
	role          func(c *gin.Context) descriptor.Role
	dropdownLabel string
	dropdownValue string
}

// ResourceOption customizes a Resource.
type ResourceOption[T any] func(*Resource[T])

// WithRoleResolver overrides how the caller role is read from the request.
func WithRoleResolver[T any](fn func(c *gin.Context) descriptor.Role) ResourceOption[T] {
	return func(r *Resource[T]) { r.role = fn }
}

// WithDropdown sets the label and value columns of the dropdown endpoint.
func WithDropdown[T any](label, value string) ResourceOption[T] {
	return func(r *Resource[T]) { r.dropdownLabel, r.dropdownValue = label, value }
}

// NewResource creates the generic handlers for a described entity.
func NewResource[T any](desc *descriptor.Entity, service adminkit.Service[T], opts ...ResourceOption[T]) *Resource[T] {
	r := &Resource[T]{
		name:          desc.Name(),
		desc:          desc,
		service:       service,
		logger:        utils.NewLogger("REST"),
		role:          RoleFromContext,
		dropdownLabel: "name",
		dropdownValue: desc.PK(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register mounts the resource's routes on the given group.
func (r *Resource[T]) Register(rg *gin.RouterGroup) {
	rg.GET("", r.List)
	rg.GET("/dropdown", r.Dropdown)
	rg.GET("/:id", r.Get)
	rg.POST("", r.Create)
	rg.POST("/bulk", r.BulkCreate)
	rg.PUT("/:id", r.Update)
	rg.DELETE("/:id", r.Delete)
}

func (r *Resource[T]) List(c *gin.Context) {
	q, err := BindListQuery(c)
	if err != nil {
		Fail(c, r.logger, err)
		return
	}
	role := r.role(c)
	page, proj, err := r.service.List(c.Request.Context(), q, role)
	r.logSuspicious(c, role, proj)
	if err != nil {
		Fail(c, r.logger, err)
		return
	}
	Paginated(c, page)
}

// logSuspicious records a field request reaching outside the caller's
// allow-list. The offending fields were already dropped; this is the audit
// trail, not an error path.
func (r *Resource[T]) logSuspicious(c *gin.Context, role descriptor.Role, proj *query.Projection) {
	if proj == nil || !proj.Suspicious() {
		return
	}
	r.logger.WithFields(logrus.Fields{
		"entity":    r.name,
		"user":      c.GetString(ContextUserKey),
		"ip":        c.ClientIP(),
		"role":      string(role),
		"requested": proj.Requested,
		"allowed":   proj.Allowed,
		"denied":    proj.Denied,
	}).Warn("requested fields outside role allow-list")
}

func (r *Resource[T]) Get(c *gin.Context) {
	model, err := r.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		Fail(c, r.logger, err)
		return
	}
	OK(c, http.StatusOK, model)
}

func (r *Resource[T]) Create(c *gin.Context) {
	var model T
	if err := c.ShouldBindJSON(&model); err != nil {
		Fail(c, r.logger, types.NewValidationError("INVALID_BODY", err.Error()))
		return
	}
	created, err := r.service.Create(c.Request.Context(), &model)
	if err != nil {
		Fail(c, r.logger, err)
		return
	}
	OK(c, http.StatusCreated, created)
}

func (r *Resource[T]) BulkCreate(c *gin.Context) {
	var models []*T
	if err := c.ShouldBindJSON(&models); err != nil {
		Fail(c, r.logger, types.NewValidationError("INVALID_BODY", err.Error()))
		return
	}
	created, err := r.service.CreateMany(c.Request.Context(), models)
	if err != nil {
		Fail(c, r.logger, err)
		return
	}
	OK(c, http.StatusCreated, created)
}

func (r *Resource[T]) Update(c *gin.Context) {
	var model T
	if err := c.ShouldBindJSON(&model); err != nil {
		Fail(c, r.logger, types.NewValidationError("INVALID_BODY", err.Error()))
		return
	}
	updated, err := r.service.Update(c.Request.Context(), &model)
	if err != nil {
		Fail(c, r.logger, err)
		return
	}
	OK(c, http.StatusOK, updated)
}

func (r *Resource[T]) Delete(c *gin.Context) {
	deleted, err := r.service.Delete(c.Request.Context(), c.Param("id"))
	if err != nil {
		Fail(c, r.logger, err)
		return
	}
	if !deleted {
		Fail(c, r.logger, types.NewNotFound("NOT_FOUND", r.name+" not found"))
		return
	}
	OK(c, http.StatusOK, gin.H{"deleted": true})
}

// Dropdown returns label/value pairs for select widgets. It rides the list
// pipeline so the label and value columns pass the same role projection as
// any other field request.
func (r *Resource[T]) Dropdown(c *gin.Context) {
	q := types.NewListQuery()
	q.Search = c.Query("search")
	q.Fields = []string{r.dropdownLabel, r.dropdownValue}
	if raw := c.Query("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			Fail(c, r.logger, types.NewValidationError("INVALID_LIMIT", fmt.Sprintf("limit must be an integer, got %q", raw)))
			return
		}
		q.Limit = limit
	}

	role := r.role(c)
	page, proj, err := r.service.List(c.Request.Context(), q, role)
	r.logSuspicious(c, role, proj)
	if err != nil {
		Fail(c, r.logger, err)
		return
	}
	options := make([]gin.H, 0, len(page.Items))
	for _, row := range page.Items {
		options = append(options, gin.H{
			"label": row[r.dropdownLabel],
			"value": row[r.dropdownValue],
		})
	}
	OK(c, http.StatusOK, options)
}
