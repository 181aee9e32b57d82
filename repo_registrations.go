package auth

import (
	"context"
	"strings"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Registrations manages the approval queue for self-service signups. A
// submission parks the hashed credential in a pending request; an admin
// decision either spawns the account or closes the request.
type Registrations interface {
	repository.Repository[*RegistrationRequest]

	Submit(ctx context.Context, username, password string) (*RegistrationRequest, error)
	ListPending(ctx context.Context) ([]*RegistrationRequest, error)

	Approve(ctx context.Context, id string, decidedBy uuid.UUID) (*RegistrationRequest, error)
	Reject(ctx context.Context, id string, decidedBy uuid.UUID) (*RegistrationRequest, error)
}

type registrations struct {
	repository.Repository[*RegistrationRequest]
	db     *bun.DB
	logger Logger
}

var (
	_ Registrations = (*registrations)(nil)
)

type RegistrationsOption func(*registrations)

func WithRegistrationsLogger(logger Logger) RegistrationsOption {
	return func(r *registrations) {
		if logger != nil {
			r.logger = logger
		}
	}
}

func NewRegistrationsRepository(db *bun.DB, opts ...RegistrationsOption) Registrations {
	repo := repository.NewRepository[*RegistrationRequest](db, repository.ModelHandlers[*RegistrationRequest]{
		NewRecord: func() *RegistrationRequest { return &RegistrationRequest{} },
		GetID: func(r *RegistrationRequest) uuid.UUID {
			if r == nil {
				return uuid.Nil
			}
			return r.ID
		},
		SetID: func(r *RegistrationRequest, id uuid.UUID) {
			if r != nil {
				r.ID = id
			}
		},
		GetIdentifier: func() string { return "username" },
	})

	repoRegs := &registrations{
		Repository: repo,
		db:         db,
		logger:     defLogger{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(repoRegs)
		}
	}

	return repoRegs
}

// Submit files a pending request for username. It refuses when the name
// is already held by any account or another pending request. A terminal
// request for the same name is replaced wholesale, so a rejected
// applicant can try again.
func (a *registrations) Submit(ctx context.Context, username, password string) (*RegistrationRequest, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, ErrNoEmptyString
	}

	hash, err := HashPassword(password)
	if err != nil {
		return nil, err
	}

	record := &RegistrationRequest{}

	err = a.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		taken, err := tx.NewSelect().
			Model((*User)(nil)).
			Where("?TableAlias.username = ?", username).
			Exists(ctx)
		if err != nil {
			return wrapInternal(err, "failed to check username")
		}
		if taken {
			return ErrUsernameTaken
		}

		pending, err := tx.NewSelect().
			Model((*RegistrationRequest)(nil)).
			Where("?TableAlias.username = ?", username).
			Where("?TableAlias.status = ?", RegistrationPending).
			Exists(ctx)
		if err != nil {
			return wrapInternal(err, "failed to check pending requests")
		}
		if pending {
			return ErrRegistrationPending
		}

		now := time.Now()
		record.ID = uuid.New()
		record.Username = username
		record.PasswordHash = hash
		record.Status = RegistrationPending
		record.RequestedAt = &now

		_, err = tx.NewInsert().
			Model(record).
			On("CONFLICT (username) DO UPDATE").
			Set("id = EXCLUDED.id").
			Set("password_hash = EXCLUDED.password_hash").
			Set("status = EXCLUDED.status").
			Set("requested_at = EXCLUDED.requested_at").
			Set("decided_at = NULL").
			Set("decided_by = NULL").
			Exec(ctx)
		if err != nil {
			return wrapInternal(err, "failed to store registration request")
		}

		return nil
	})

	if err != nil {
		return nil, err
	}

	return record, nil
}

func (a *registrations) ListPending(ctx context.Context) ([]*RegistrationRequest, error) {
	var records []*RegistrationRequest
	err := a.db.NewSelect().
		Model(&records).
		Where("?TableAlias.status = ?", RegistrationPending).
		Order("requested_at DESC").
		Scan(ctx)
	if err != nil {
		return nil, wrapInternal(err, "failed to list pending requests")
	}
	return records, nil
}

// Approve finalizes a pending request: the account is created from the
// parked credential and the request marked approved, atomically. When the
// account already exists (a racing approval won) the decision is still
// recorded and the call succeeds.
func (a *registrations) Approve(ctx context.Context, id string, decidedBy uuid.UUID) (*RegistrationRequest, error) {
	record := &RegistrationRequest{}

	err := a.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		req, err := a.pendingByIDTx(ctx, tx, id)
		if err != nil {
			return err
		}

		exists, err := tx.NewSelect().
			Model((*User)(nil)).
			Where("?TableAlias.username = ?", req.Username).
			Exists(ctx)
		if err != nil {
			return wrapInternal(err, "failed to check username")
		}

		if !exists {
			user := &User{
				ID:           uuid.New(),
				Username:     req.Username,
				PasswordHash: req.PasswordHash,
				Role:         RoleUser,
				Status:       UserStatusActive,
			}
			if _, err := tx.NewInsert().Model(user).Exec(ctx); err != nil {
				if !isUniqueViolation(err) {
					return wrapInternal(err, "failed to create approved user")
				}
				a.logger.Debug("approved user already created", "username", req.Username)
			}
		}

		decided, err := a.decideTx(ctx, tx, req, RegistrationApproved, decidedBy)
		if err != nil {
			return err
		}

		*record = *decided
		return nil
	})

	if err != nil {
		return nil, err
	}

	return record, nil
}

// Reject closes a pending request without creating an account. The
// parked hash stays on the terminal row until a resubmission replaces it.
func (a *registrations) Reject(ctx context.Context, id string, decidedBy uuid.UUID) (*RegistrationRequest, error) {
	record := &RegistrationRequest{}

	err := a.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		req, err := a.pendingByIDTx(ctx, tx, id)
		if err != nil {
			return err
		}

		decided, err := a.decideTx(ctx, tx, req, RegistrationRejected, decidedBy)
		if err != nil {
			return err
		}

		*record = *decided
		return nil
	})

	if err != nil {
		return nil, err
	}

	return record, nil
}

// pendingByIDTx loads the request and insists it is still pending. A
// missing id and an already decided request look the same to callers.
func (a *registrations) pendingByIDTx(ctx context.Context, tx bun.IDB, id string) (*RegistrationRequest, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrRequestNotFound
	}

	req := &RegistrationRequest{}
	err := tx.NewSelect().
		Model(req).
		Where("?TableAlias.id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, ErrRequestNotFound
		}
		return nil, wrapInternal(err, "failed to load registration request")
	}

	if !req.IsPending() {
		return nil, ErrRequestNotFound
	}

	return req, nil
}

func (a *registrations) decideTx(ctx context.Context, tx bun.IDB, req *RegistrationRequest, status RegistrationStatus, decidedBy uuid.UUID) (*RegistrationRequest, error) {
	now := time.Now()
	req.Status = status
	req.DecidedAt = &now
	if decidedBy != uuid.Nil {
		req.DecidedBy = &decidedBy
	}

	_, err := tx.NewUpdate().
		Model(req).
		Column("status", "decided_at", "decided_by").
		Where("?TableAlias.id = ?", req.ID).
		Exec(ctx)
	if err != nil {
		return nil, wrapInternal(err, "failed to record decision")
	}

	return req, nil
}
