package auth

import (
	"context"
	"strings"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// revisionListLimit caps how much history a single listing returns. The
// log itself is unbounded.
const revisionListLimit = 50

// Templates stores one prompt per generation strategy plus an append-only
// revision log. Every overwrite of a non-empty prompt snapshots the
// outgoing values first, so no content is ever silently lost.
type Templates interface {
	Get(ctx context.Context, strategy string) (*Template, error)
	List(ctx context.Context) ([]*Template, error)
	Upsert(ctx context.Context, strategy, name, prompt string, changedBy *uuid.UUID) (*Template, error)
	ListRevisions(ctx context.Context, strategy string) ([]*TemplateRevision, error)
	Rollback(ctx context.Context, strategy, revisionID string, changedBy *uuid.UUID) (*Template, error)
}

type templates struct {
	db     *bun.DB
	logger Logger
}

var _ Templates = (*templates)(nil)

type TemplatesOption func(*templates)

func WithTemplatesLogger(logger Logger) TemplatesOption {
	return func(t *templates) {
		if logger != nil {
			t.logger = logger
		}
	}
}

func NewTemplatesRepository(db *bun.DB, opts ...TemplatesOption) Templates {
	repoTemplates := &templates{
		db:     db,
		logger: defLogger{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(repoTemplates)
		}
	}
	return repoTemplates
}

// Get returns the template for strategy, or nil when the strategy has no
// stored template yet.
func (a *templates) Get(ctx context.Context, strategy string) (*Template, error) {
	return a.getTx(ctx, a.db, strategy)
}

func (a *templates) getTx(ctx context.Context, tx bun.IDB, strategy string) (*Template, error) {
	strategy = strings.TrimSpace(strategy)
	if strategy == "" {
		return nil, ErrNoEmptyString
	}

	record := &Template{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.strategy = ?", strategy).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, nil
		}
		return nil, wrapInternal(err, "failed to load template")
	}

	return record, nil
}

func (a *templates) List(ctx context.Context) ([]*Template, error) {
	var records []*Template
	err := a.db.NewSelect().
		Model(&records).
		Order("strategy ASC").
		Scan(ctx)
	if err != nil {
		return nil, wrapInternal(err, "failed to list templates")
	}
	return records, nil
}

// Upsert writes the template for strategy. When a template with a
// non-empty prompt already exists its outgoing values are appended to
// the revision log inside the same transaction as the overwrite.
func (a *templates) Upsert(ctx context.Context, strategy, name, prompt string, changedBy *uuid.UUID) (*Template, error) {
	strategy = strings.TrimSpace(strategy)
	if strategy == "" {
		return nil, ErrNoEmptyString
	}

	record := &Template{
		Strategy: strategy,
		Name:     name,
		Prompt:   prompt,
	}

	err := a.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := a.snapshotTx(ctx, tx, strategy, changedBy); err != nil {
			return err
		}
		return a.writeTx(ctx, tx, record)
	})

	if err != nil {
		return nil, err
	}

	return record, nil
}

func (a *templates) ListRevisions(ctx context.Context, strategy string) ([]*TemplateRevision, error) {
	strategy = strings.TrimSpace(strategy)
	if strategy == "" {
		return nil, ErrNoEmptyString
	}

	var records []*TemplateRevision
	err := a.db.NewSelect().
		Model(&records).
		Where("?TableAlias.strategy = ?", strategy).
		Order("changed_at DESC").
		Limit(revisionListLimit).
		Scan(ctx)
	if err != nil {
		return nil, wrapInternal(err, "failed to list template revisions")
	}
	return records, nil
}

// Rollback restores a past revision's name and prompt as the current
// template. It is an upsert with old values: the pre-rollback state is
// snapshotted first, so rolling back is itself reversible.
func (a *templates) Rollback(ctx context.Context, strategy, revisionID string, changedBy *uuid.UUID) (*Template, error) {
	strategy = strings.TrimSpace(strategy)
	if strategy == "" {
		return nil, ErrNoEmptyString
	}
	if _, err := uuid.Parse(revisionID); err != nil {
		return nil, ErrRevisionNotFound
	}

	record := &Template{}

	err := a.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		revision := &TemplateRevision{}
		err := tx.NewSelect().
			Model(revision).
			Where("?TableAlias.id = ?", revisionID).
			Where("?TableAlias.strategy = ?", strategy).
			Limit(1).
			Scan(ctx)
		if err != nil {
			if repository.IsRecordNotFound(err) {
				return ErrRevisionNotFound
			}
			return wrapInternal(err, "failed to load template revision")
		}

		if err := a.snapshotTx(ctx, tx, strategy, changedBy); err != nil {
			return err
		}

		record.Strategy = strategy
		record.Name = revision.Name
		record.Prompt = revision.Prompt
		return a.writeTx(ctx, tx, record)
	})

	if err != nil {
		return nil, err
	}

	return record, nil
}

// snapshotTx appends the current template values to the revision log.
// Missing templates and templates with an empty prompt leave no snapshot;
// there is nothing worth restoring.
func (a *templates) snapshotTx(ctx context.Context, tx bun.IDB, strategy string, changedBy *uuid.UUID) error {
	current, err := a.getTx(ctx, tx, strategy)
	if err != nil {
		return err
	}
	if current == nil || current.Prompt == "" {
		return nil
	}

	now := time.Now()
	revision := &TemplateRevision{
		ID:        uuid.New(),
		Strategy:  current.Strategy,
		Name:      current.Name,
		Prompt:    current.Prompt,
		ChangedAt: &now,
		ChangedBy: changedBy,
	}

	if _, err := tx.NewInsert().Model(revision).Exec(ctx); err != nil {
		return wrapInternal(err, "failed to snapshot template revision")
	}

	return nil
}

func (a *templates) writeTx(ctx context.Context, tx bun.IDB, record *Template) error {
	_, err := tx.NewInsert().
		Model(record).
		On("CONFLICT (strategy) DO UPDATE").
		Set("name = EXCLUDED.name").
		Set("prompt = EXCLUDED.prompt").
		Exec(ctx)
	if err != nil {
		return wrapInternal(err, "failed to write template")
	}
	return nil
}
