package auth

import (
	"context"
	"database/sql"
	"errors"
	"log"

	"github.com/uptrace/bun"

	repository "github.com/goliatone/go-repository-bun"
)

// RepositoryManager exposes all repositories backed by one bun.DB
type RepositoryManager interface {
	repository.Validator
	repository.TransactionManager
	Users() Users
	Registrations() Registrations
	Templates() Templates
}

type mngr struct {
	db            *bun.DB
	users         Users
	registrations Registrations
	templates     Templates
}

func NewRepositoryManager(db *bun.DB) RepositoryManager {
	return &mngr{
		db:            db,
		users:         NewUsersRepository(db),
		registrations: NewRegistrationsRepository(db),
		templates:     NewTemplatesRepository(db),
	}
}

func (m mngr) Validate() error {
	if m.users == nil {
		return errors.New("repository users should be initialized")
	}

	if m.registrations == nil {
		return errors.New("repository registrations should be initialized")
	}

	if m.templates == nil {
		return errors.New("repository templates should be initialized")
	}

	return nil
}

func (m mngr) MustValidate() {
	if err := m.Validate(); err != nil {
		log.Panic(err)
	}
}

func (m mngr) RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return m.db.RunInTx(ctx, opts, f)
	}
}

func (m mngr) Users() Users {
	return m.users
}

func (m mngr) Registrations() Registrations {
	return m.registrations
}

func (m mngr) Templates() Templates {
	return m.templates
}
