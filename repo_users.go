package auth

import (
	"context"
	"strings"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type Users interface {
	repository.Repository[*User]

	FindActiveByUsername(ctx context.Context, username string) (*User, error)
	FindActiveByUsernameTx(ctx context.Context, tx bun.IDB, username string) (*User, error)
	FindActiveByID(ctx context.Context, id string) (*User, error)
	FindActiveByIDTx(ctx context.Context, tx bun.IDB, id string) (*User, error)

	CreateActive(ctx context.Context, username, password string, role UserRole) (*User, error)
	CreateActiveTx(ctx context.Context, tx bun.IDB, username, password string, role UserRole) (*User, error)

	VerifyPassword(ctx context.Context, username, password string) (*User, error)

	EnsureBootstrapAdmin(ctx context.Context, bootstrap BootstrapAdmin) (*User, error)
	ResetAdminCredential(ctx context.Context, username, password string) (*User, error)
}

type users struct {
	repository.Repository[*User]
	db     *bun.DB
	logger Logger
}

var (
	_ Users                        = (*users)(nil)
	_ repository.Repository[*User] = (*users)(nil)
)

type UsersOption func(*users)

func WithUsersLogger(logger Logger) UsersOption {
	return func(u *users) {
		if logger != nil {
			u.logger = logger
		}
	}
}

func NewUsersRepository(db *bun.DB, opts ...UsersOption) Users {
	repo := repository.NewRepository[*User](db, repository.ModelHandlers[*User]{
		NewRecord: func() *User { return &User{} },
		GetID: func(u *User) uuid.UUID {
			if u == nil {
				return uuid.Nil
			}
			return u.ID
		},
		SetID: func(u *User, id uuid.UUID) {
			if u != nil {
				u.ID = id
			}
		},
		GetIdentifier: func() string { return "username" },
	})

	repoUsers := &users{
		Repository: repo,
		db:         db,
		logger:     defLogger{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(repoUsers)
		}
	}

	return repoUsers
}

func (a *users) FindActiveByUsername(ctx context.Context, username string) (*User, error) {
	return a.FindActiveByUsernameTx(ctx, a.db, username)
}

func (a *users) FindActiveByUsernameTx(ctx context.Context, tx bun.IDB, username string) (*User, error) {
	return a.findActiveBy(ctx, tx, "username", strings.TrimSpace(username))
}

func (a *users) FindActiveByID(ctx context.Context, id string) (*User, error) {
	return a.FindActiveByIDTx(ctx, a.db, id)
}

func (a *users) FindActiveByIDTx(ctx context.Context, tx bun.IDB, id string) (*User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, repository.NewRecordNotFound().
			WithMetadata(map[string]any{
				"id": id,
			})
	}
	return a.findActiveBy(ctx, tx, "id", id)
}

func (a *users) findActiveBy(ctx context.Context, tx bun.IDB, column, value string) (*User, error) {
	if value == "" {
		return nil, ErrNoEmptyString
	}

	record := &User{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias."+column+" = ?", value).
		Where("?TableAlias.status = ?", UserStatusActive).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, repository.NewRecordNotFound().
				WithMetadata(map[string]any{
					column: value,
				})
		}
		return nil, err
	}

	return record, nil
}

func (a *users) CreateActive(ctx context.Context, username, password string, role UserRole) (*User, error) {
	return a.CreateActiveTx(ctx, a.db, username, password, role)
}

// CreateActiveTx inserts a new active account. The username is claimed
// regardless of the holder's status, so a taken name stays taken even if
// the holding account was deactivated.
func (a *users) CreateActiveTx(ctx context.Context, tx bun.IDB, username, password string, role UserRole) (*User, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, ErrNoEmptyString
	}

	if !IsValidRole(role) {
		role = RoleUser
	}

	taken, err := a.usernameExistsTx(ctx, tx, username)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, ErrUsernameTaken
	}

	hash, err := HashPassword(password)
	if err != nil {
		return nil, err
	}

	record := &User{
		ID:           uuid.New(),
		Username:     username,
		PasswordHash: hash,
		Role:         role,
		Status:       UserStatusActive,
	}

	created, err := a.Repository.CreateTx(ctx, tx, record)
	if err != nil {
		// the unique constraint closes the window between the
		// existence check and the insert
		if isUniqueViolation(err) {
			return nil, ErrUsernameTaken
		}
		return nil, wrapInternal(err, "failed to create user")
	}

	return created, nil
}

// usernameExistsTx checks the name against every account, not only
// active ones.
func (a *users) usernameExistsTx(ctx context.Context, tx bun.IDB, username string) (bool, error) {
	exists, err := tx.NewSelect().
		Model((*User)(nil)).
		Where("?TableAlias.username = ?", username).
		Exists(ctx)
	if err != nil {
		return false, wrapInternal(err, "failed to check username")
	}
	return exists, nil
}

// VerifyPassword resolves the active account for username and checks the
// supplied password against its stored hash. Unknown username, inactive
// account, and wrong password are indistinguishable to the caller.
func (a *users) VerifyPassword(ctx context.Context, username, password string) (*User, error) {
	user, err := a.FindActiveByUsername(ctx, username)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, ErrInvalidCredentials
		}
		return nil, wrapInternal(err, "failed to load user for verification")
	}

	if err := ComparePasswordAndHash(password, user.PasswordHash); err != nil {
		a.logger.Debug("password verification failed", "username", username)
		return nil, ErrInvalidCredentials
	}

	return user, nil
}

// EnsureBootstrapAdmin makes sure the configured bootstrap admin exists
// as an active admin account. Called once at startup; safe to call again.
// When the account exists its password is left alone unless ForceReset is
// set, but role and status drift is always repaired.
func (a *users) EnsureBootstrapAdmin(ctx context.Context, bootstrap BootstrapAdmin) (*User, error) {
	username := strings.TrimSpace(bootstrap.Username)
	if username == "" || bootstrap.Password == "" {
		return nil, ErrNoEmptyString
	}

	existing := &User{}
	err := a.db.NewSelect().
		Model(existing).
		Where("?TableAlias.username = ?", username).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if !repository.IsRecordNotFound(err) {
			return nil, wrapInternal(err, "failed to load bootstrap admin")
		}
		return a.ResetAdminCredential(ctx, username, bootstrap.Password)
	}

	if bootstrap.ForceReset {
		return a.ResetAdminCredential(ctx, username, bootstrap.Password)
	}

	if existing.Role == RoleAdmin && existing.Status == UserStatusActive {
		return existing, nil
	}

	a.logger.Warn("repairing bootstrap admin account", "username", username)

	existing.Role = RoleAdmin
	existing.Status = UserStatusActive
	updated, err := a.Repository.Update(ctx, existing, repository.UpdateByID(existing.ID.String()))
	if err != nil {
		return nil, wrapInternal(err, "failed to repair bootstrap admin")
	}

	return updated, nil
}

// ResetAdminCredential writes the admin account for username with a fresh
// hash of password, inserting it when missing and overwriting credential,
// role and status when present. This is the self-heal path behind both
// startup bootstrap and force-reset login.
func (a *users) ResetAdminCredential(ctx context.Context, username, password string) (*User, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, ErrNoEmptyString
	}

	hash, err := HashPassword(password)
	if err != nil {
		return nil, err
	}

	record := &User{
		ID:           uuid.New(),
		Username:     username,
		PasswordHash: hash,
		Role:         RoleAdmin,
		Status:       UserStatusActive,
	}

	_, err = a.db.NewInsert().
		Model(record).
		On("CONFLICT (username) DO UPDATE").
		Set("password_hash = EXCLUDED.password_hash").
		Set("user_role = EXCLUDED.user_role").
		Set("status = EXCLUDED.status").
		Exec(ctx)
	if err != nil {
		return nil, wrapInternal(err, "failed to upsert admin account")
	}

	return a.FindActiveByUsername(ctx, username)
}

// isUniqueViolation sniffs driver errors for unique constraint failures.
// Both sqlite and postgres spell it out in the message.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique") || strings.Contains(msg, "duplicate key")
}
