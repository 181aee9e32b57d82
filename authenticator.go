package auth

import (
	"context"
	"crypto/subtle"
)

// Authenticator is the credential-facing entry point: it turns a
// username and password into a signed session token, and files
// self-service registration requests.
type Authenticator interface {
	Login(ctx context.Context, username, password string) (string, *User, error)
	Register(ctx context.Context, username, password string) (*RegistrationRequest, error)
	TokenService() TokenService
}

// Auther implements Authenticator on top of the Users and Registrations
// repositories.
type Auther struct {
	users         Users
	registrations Registrations
	tokenService  TokenService
	bootstrap     BootstrapAdmin
	logger        Logger
}

var _ Authenticator = (*Auther)(nil)

// NewAuthenticator wires an Auther from the repository manager and
// config. The token service is built from the config's signing key and
// TTL unless one is injected via WithTokenService.
func NewAuthenticator(repo RepositoryManager, config Config) *Auther {
	return &Auther{
		users:         repo.Users(),
		registrations: repo.Registrations(),
		tokenService:  NewTokenService([]byte(config.GetSigningKey()), config.GetTokenTTL()),
		bootstrap:     config.GetBootstrapAdmin(),
		logger:        defLogger{},
	}
}

func (s *Auther) WithLogger(logger Logger) *Auther {
	if logger != nil {
		s.logger = logger
	}
	return s
}

func (s *Auther) WithTokenService(ts TokenService) *Auther {
	if ts != nil {
		s.tokenService = ts
	}
	return s
}

// TokenService returns the token service used for issued sessions
func (s *Auther) TokenService() TokenService {
	return s.tokenService
}

// Login verifies the credential and issues a session token. When the
// bootstrap admin account is missing, or force-reset is on, a login
// with the bootstrap credential repairs the account before verification.
// Every failure surfaces as ErrInvalidCredentials.
func (s *Auther) Login(ctx context.Context, username, password string) (string, *User, error) {
	if username == "" || password == "" {
		return "", nil, ErrInvalidCredentials
	}

	user, err := s.users.FindActiveByUsername(ctx, username)
	if err != nil && !isNotFound(err) {
		s.logger.Error("login lookup failed", "error", err)
		return "", nil, wrapInternal(err, "failed to load user for login")
	}

	if (user == nil || s.bootstrap.ForceReset) && s.matchesBootstrap(username, password) {
		s.logger.Warn("bootstrap admin self-heal triggered", "username", username)
		user, err = s.users.ResetAdminCredential(ctx, s.bootstrap.Username, s.bootstrap.Password)
		if err != nil {
			s.logger.Error("bootstrap self-heal failed", "error", err)
			return "", nil, wrapInternal(err, "failed to restore admin account")
		}
	}

	if user == nil {
		return "", nil, ErrInvalidCredentials
	}

	if err := ComparePasswordAndHash(password, user.PasswordHash); err != nil {
		s.logger.Debug("login rejected", "username", username)
		return "", nil, ErrInvalidCredentials
	}

	token, err := s.tokenService.Issue(user.AsIdentity())
	if err != nil {
		s.logger.Error("token issuance failed", "error", err)
		return "", nil, err
	}

	return token, user, nil
}

// Register files a pending registration request. No account or session
// is created until an admin approves it.
func (s *Auther) Register(ctx context.Context, username, password string) (*RegistrationRequest, error) {
	return s.registrations.Submit(ctx, username, password)
}

// matchesBootstrap compares in constant time against the configured
// bootstrap credential.
func (s *Auther) matchesBootstrap(username, password string) bool {
	if s.bootstrap.Username == "" || s.bootstrap.Password == "" {
		return false
	}

	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(s.bootstrap.Username)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(password), []byte(s.bootstrap.Password)) == 1
	return userOK && passOK
}
