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

package adminkit

import (
	"context"
	"sync"

	"github.com/tomoncle/adminkit/database"
	"github.com/tomoncle/adminkit/descriptor"
	"github.com/tomoncle/adminkit/query"
	"github.com/tomoncle/adminkit/repository"
	"github.com/tomoncle/adminkit/types"

	"github.com/uptrace/bun"
)

// Hooks are the per-entity extension points of the lifecycle service. Every
// hook is optional; a nil hook is skipped. Validate hooks reject with a
// LifecycleError (typically a business rule violation), BeforeCreate may
// replace the entity, and AfterCreate runs outside the write path so its
// failures never roll back a committed insert.
type Hooks[T any] struct {
	ValidateCreate func(ctx context.Context, model *T) error
	BeforeCreate   func(ctx context.Context, model *T) (*T, error)
	AfterCreate    func(ctx context.Context, model *T)
	ValidateUpdate func(ctx context.Context, model *T) error
	ValidateDelete func(ctx context.Context, id any, model *T) error
}

type Service[T any] interface {
	// Get returns a single entity by its identifier, or a not-found error.
	Get(ctx context.Context, id any) (*T, error)

	// List executes the full list pipeline for an untrusted query: paging
	// normalization, predicate compilation, role-based field projection, and
	// the paginated count+data reads. The returned projection carries what
	// was requested, allowed, and denied for boundary-level audit logging.
	List(ctx context.Context, q *types.ListQuery, role descriptor.Role) (*types.Page[types.JsonObject], *query.Projection, error)

	// Create validates, transforms, and inserts one entity.
	Create(ctx context.Context, model *T) (*T, error)

	// CreateMany validates and transforms every entity first, then inserts
	// them in one transaction preserving input order. One bad entity means
	// no rows are written.
	CreateMany(ctx context.Context, models []*T) ([]*T, error)

	// Update modifies an existing entity, or returns a not-found error.
	Update(ctx context.Context, model *T) (*T, error)

	// Delete removes an entity if nothing blocks it. It reports false when
	// the row does not exist and a conflict error when referencing rows or
	// the delete validation hook block the removal.
	Delete(ctx context.Context, id any) (bool, error)

	// SelectBuilder returns a Bun select query builder for the entity.
	SelectBuilder() *bun.SelectQuery

	// InsertBuilder returns a Bun insert query builder for the entity.
	InsertBuilder() *bun.InsertQuery

	// UpdateBuilder returns a Bun update query builder for the entity.
	UpdateBuilder() *bun.UpdateQuery

	// DeleteBuilder returns a Bun delete query builder for the entity.
	DeleteBuilder() *bun.DeleteQuery
}

type baseServiceImpl[T any] struct {
	desc  *descriptor.Entity
	hooks Hooks[T]
	refs  *database.ReferenceRegistry
	repo  repository.Repository[T]
	once  sync.Once
}

// ServiceOption customizes a Service.
type ServiceOption[T any] func(*baseServiceImpl[T])

// WithHooks installs the entity's lifecycle hooks.
func WithHooks[T any](hooks Hooks[T]) ServiceOption[T] {
	return func(s *baseServiceImpl[T]) { s.hooks = hooks }
}

// WithReferenceRegistry overrides the delete-protection registry, used by
// tests and by hosts managing several databases.
func WithReferenceRegistry[T any](refs *database.ReferenceRegistry) ServiceOption[T] {
	return func(s *baseServiceImpl[T]) { s.refs = refs }
}

// WithRepository overrides the lazily created repository.
func WithRepository[T any](repo repository.Repository[T]) ServiceOption[T] {
	return func(s *baseServiceImpl[T]) { s.repo = repo }
}

// NewService returns the default Service implementation for a described
// entity, backed by the global database connection.
func NewService[T any](desc *descriptor.Entity, opts ...ServiceOption[T]) Service[T] {
	s := &baseServiceImpl[T]{desc: desc}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *baseServiceImpl[T]) baseRepo() repository.Repository[T] {
	s.once.Do(func() {
		if s.repo == nil {
			var opts []repository.Option
			if d := database.GetReadTimeout(); d > 0 {
				opts = append(opts, repository.WithReadTimeout(d))
			}
			s.repo = repository.NewRepository[T](database.GetDB(), s.desc, opts...)
		}
	})
	return s.repo
}

func (s *baseServiceImpl[T]) references() *database.ReferenceRegistry {
	if s.refs != nil {
		return s.refs
	}
	return database.GetReferenceRegistry()
}

func (s *baseServiceImpl[T]) Get(ctx context.Context, id any) (*T, error) {
	model, err := s.baseRepo().GetOne(ctx, id)
	if err != nil {
		return nil, database.ClassifyError(err)
	}
	if model == nil {
		return nil, types.NewNotFound("NOT_FOUND", s.desc.Name()+" not found")
	}
	return model, nil
}

func (s *baseServiceImpl[T]) List(ctx context.Context, q *types.ListQuery, role descriptor.Role) (*types.Page[types.JsonObject], *query.Projection, error) {
	if q == nil {
		q = types.NewListQuery()
	}
	if err := q.Normalize(); err != nil {
		return nil, nil, err
	}
	compiled, err := query.Compile(s.desc, q)
	if err != nil {
		return nil, nil, err
	}
	proj := query.ResolveFields(s.desc, role, q.Fields)

	page, err := s.baseRepo().Page(ctx, compiled, proj, q.Page, q.Limit, q.Include)
	if err != nil {
		return nil, proj, database.ClassifyError(err)
	}
	return page, proj, nil
}

func (s *baseServiceImpl[T]) Create(ctx context.Context, model *T) (*T, error) {
	model, err := s.prepareCreate(ctx, model)
	if err != nil {
		return nil, err
	}
	if err := s.baseRepo().Create(ctx, model); err != nil {
		return nil, database.ClassifyError(err)
	}
	if s.hooks.AfterCreate != nil {
		s.hooks.AfterCreate(ctx, model)
	}
	return model, nil
}

func (s *baseServiceImpl[T]) CreateMany(ctx context.Context, models []*T) ([]*T, error) {
	prepared := make([]*T, 0, len(models))
	for _, model := range models {
		p, err := s.prepareCreate(ctx, model)
		if err != nil {
			return nil, err
		}
		prepared = append(prepared, p)
	}
	if len(prepared) == 0 {
		return prepared, nil
	}

	err := s.baseRepo().RunInTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		return s.baseRepo().CreateManyTx(ctx, tx, prepared)
	})
	if err != nil {
		return nil, database.ClassifyError(err)
	}
	for _, model := range prepared {
		if s.hooks.AfterCreate != nil {
			s.hooks.AfterCreate(ctx, model)
		}
	}
	return prepared, nil
}

func (s *baseServiceImpl[T]) prepareCreate(ctx context.Context, model *T) (*T, error) {
	if s.hooks.ValidateCreate != nil {
		if err := s.hooks.ValidateCreate(ctx, model); err != nil {
			return nil, asLifecycle(err)
		}
	}
	if s.hooks.BeforeCreate != nil {
		replaced, err := s.hooks.BeforeCreate(ctx, model)
		if err != nil {
			return nil, asLifecycle(err)
		}
		if replaced != nil {
			model = replaced
		}
	}
	return model, nil
}

func (s *baseServiceImpl[T]) Update(ctx context.Context, model *T) (*T, error) {
	if s.hooks.ValidateUpdate != nil {
		if err := s.hooks.ValidateUpdate(ctx, model); err != nil {
			return nil, asLifecycle(err)
		}
	}
	updated, err := s.baseRepo().Update(ctx, model)
	if err != nil {
		return nil, database.ClassifyError(err)
	}
	if !updated {
		return nil, types.NewNotFound("NOT_FOUND", s.desc.Name()+" not found")
	}
	return model, nil
}

// Delete runs the whole protocol in one transaction so the existence check,
// the validation hook, the dependent counts, and the delete itself see the
// same snapshot. A row inserted between check and delete under a weaker
// isolation level still cannot orphan anything: the foreign key violation is
// classified as the same conflict.
func (s *baseServiceImpl[T]) Delete(ctx context.Context, id any) (bool, error) {
	deleted := false
	err := s.baseRepo().RunInTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		model, err := s.baseRepo().GetOneTx(ctx, tx, id)
		if err != nil {
			return err
		}
		if model == nil {
			return nil
		}
		if s.hooks.ValidateDelete != nil {
			if err := s.hooks.ValidateDelete(ctx, id, model); err != nil {
				return asLifecycle(err)
			}
		}

		counts, err := s.references().CountDependents(ctx, tx, s.desc.Table(), id)
		if err != nil {
			return err
		}
		var blockedBy []database.DependentCount
		for _, c := range counts {
			if c.Blocks() {
				blockedBy = append(blockedBy, c)
			}
		}
		if len(blockedBy) > 0 {
			return types.NewConflict("DELETE_BLOCKED",
				s.desc.Name()+" is referenced by other rows and cannot be deleted").
				WithDetails(types.JsonObject{"blockedBy": blockedBy})
		}

		deleted, err = s.baseRepo().DeleteTx(ctx, tx, id)
		return err
	})
	if err != nil {
		return false, database.ClassifyError(err)
	}
	return deleted, nil
}

func (s *baseServiceImpl[T]) SelectBuilder() *bun.SelectQuery {
	return s.baseRepo().NewSelect()
}

func (s *baseServiceImpl[T]) InsertBuilder() *bun.InsertQuery {
	return s.baseRepo().NewInsert()
}

func (s *baseServiceImpl[T]) UpdateBuilder() *bun.UpdateQuery {
	return s.baseRepo().NewUpdate()
}

func (s *baseServiceImpl[T]) DeleteBuilder() *bun.DeleteQuery {
	return s.baseRepo().NewDelete()
}

// asLifecycle coerces hook errors into the lifecycle taxonomy; a plain error
// from a hook is treated as a business rule violation, not a server error.
func asLifecycle(err error) error {
	if _, ok := types.AsLifecycleError(err); ok {
		return err
	}
	return types.NewBusinessRuleViolation("BUSINESS_RULE_VIOLATION", err.Error()).WithCause(err)
}
