package auth

import (
	"context"
	"sort"
	"strings"

	"github.com/goliatone/go-router"
)

const (
	// ActiveSessionCookie names the cookie whose token decides who the
	// request acts as.
	ActiveSessionCookie = "active-session"

	// AccountSessionPrefix prefixes the per-account cookies that keep
	// every signed-in account reachable for instant switching.
	AccountSessionPrefix = "account-session-"
)

// LogoutScope selects how much of the session set a logout clears.
type LogoutScope = string

const (
	// LogoutCurrent signs out only the active account; the other
	// remembered accounts stay switchable.
	LogoutCurrent LogoutScope = "current"
	// LogoutAll clears the active session and every remembered account.
	LogoutAll LogoutScope = "all"
)

// AccountSummary is one remembered account as shown in the switcher.
type AccountSummary struct {
	UserID   string   `json:"userId"`
	Username string   `json:"username"`
	Role     UserRole `json:"role"`
	Active   bool     `json:"active"`
}

// SessionManager keeps one token per signed-in account in per-account
// cookies, plus an active-session cookie holding a copy of the token for
// whichever account the browser currently acts as. Switching copies a
// token; it never mints one.
type SessionManager struct {
	tokens TokenService
	users  Users
	logger Logger
}

type SessionManagerOption func(*SessionManager)

func WithSessionLogger(logger Logger) SessionManagerOption {
	return func(sm *SessionManager) {
		if logger != nil {
			sm.logger = logger
		}
	}
}

func NewSessionManager(tokens TokenService, users Users, opts ...SessionManagerOption) *SessionManager {
	sm := &SessionManager{
		tokens: tokens,
		users:  users,
		logger: defLogger{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(sm)
		}
	}
	return sm
}

// Remember stores a freshly issued token as both the active session and
// the per-account session for its subject. Signing into an account that
// is already remembered overwrites its cookie with the newer token.
func (sm *SessionManager) Remember(c router.Context, token string, claims *SessionClaims) {
	expires := claims.Expires()
	setSessionCookie(c, ActiveSessionCookie, token, expires)
	setSessionCookie(c, accountCookieName(claims.Subject()), token, expires)
}

// Active validates the active-session cookie. Missing cookie and invalid
// token both come back as ErrTokenInvalid.
func (sm *SessionManager) Active(c router.Context) (*SessionClaims, error) {
	raw := c.Cookies(ActiveSessionCookie)
	if raw == "" {
		return nil, ErrTokenInvalid
	}
	return sm.tokens.Validate(raw)
}

// ListAccounts returns every remembered account that still verifies,
// active account first, the rest ordered by username. Cookies holding
// expired or tampered tokens, or pointing at users that no longer exist,
// are skipped silently.
func (sm *SessionManager) ListAccounts(ctx context.Context, c router.Context) []AccountSummary {
	cookies := parseCookieHeader(c.Header("Cookie"))
	activeID := ""
	if claims, err := sm.tokens.Validate(cookies[ActiveSessionCookie]); err == nil {
		activeID = claims.Subject()
	}

	accounts := []AccountSummary{}
	for userID, token := range accountTokens(cookies) {
		claims, err := sm.tokens.Validate(token)
		if err != nil || claims.Subject() != userID {
			continue
		}

		user, err := sm.users.FindActiveByID(ctx, claims.Subject())
		if err != nil {
			if !isNotFound(err) {
				sm.logger.Warn("account lookup failed while listing sessions", "error", err)
			}
			continue
		}

		accounts = append(accounts, AccountSummary{
			UserID:   user.ID.String(),
			Username: user.Username,
			Role:     user.Role,
			Active:   user.ID.String() == activeID,
		})
	}

	sortAccounts(accounts)
	return accounts
}

// SwitchActive makes the remembered account for userID the active one by
// copying its token into the active-session cookie. A stale per-account
// cookie is cleared as a side effect, so retrying after
// ErrAccountSessionStale prompts a fresh sign-in.
func (sm *SessionManager) SwitchActive(ctx context.Context, c router.Context, userID string) (*AccountSummary, error) {
	cookies := parseCookieHeader(c.Header("Cookie"))
	token, ok := cookies[accountCookieName(userID)]
	if !ok || token == "" {
		return nil, ErrAccountNotRemembered
	}

	claims, err := sm.tokens.Validate(token)
	if err != nil || claims.Subject() != userID {
		cookieDel(c, accountCookieName(userID))
		return nil, ErrAccountSessionStale
	}

	user, err := sm.users.FindActiveByID(ctx, claims.Subject())
	if err != nil {
		if isNotFound(err) {
			cookieDel(c, accountCookieName(userID))
			return nil, ErrAccountSessionStale
		}
		return nil, wrapInternal(err, "failed to load account for switch")
	}

	setSessionCookie(c, ActiveSessionCookie, token, claims.Expires())

	return &AccountSummary{
		UserID:   user.ID.String(),
		Username: user.Username,
		Role:     user.Role,
		Active:   true,
	}, nil
}

// Logout clears session cookies per scope. Current-scope logout drops
// only the active cookie; the signed-out account stays remembered and
// switchable, and no other account becomes active implicitly.
func (sm *SessionManager) Logout(c router.Context, scope LogoutScope) {
	if scope == LogoutAll {
		for userID := range accountTokens(parseCookieHeader(c.Header("Cookie"))) {
			cookieDel(c, accountCookieName(userID))
		}
	}
	cookieDel(c, ActiveSessionCookie)
}

func accountCookieName(userID string) string {
	return AccountSessionPrefix + userID
}

// accountTokens extracts the per-account cookies as userID -> token.
func accountTokens(cookies map[string]string) map[string]string {
	tokens := map[string]string{}
	for name, value := range cookies {
		if !strings.HasPrefix(name, AccountSessionPrefix) {
			continue
		}
		userID := strings.TrimPrefix(name, AccountSessionPrefix)
		if userID == "" || value == "" {
			continue
		}
		tokens[userID] = value
	}
	return tokens
}

// sortAccounts orders the active account first and the rest by username.
func sortAccounts(accounts []AccountSummary) {
	sort.SliceStable(accounts, func(i, j int) bool {
		if accounts[i].Active != accounts[j].Active {
			return accounts[i].Active
		}
		return accounts[i].Username < accounts[j].Username
	})
}
