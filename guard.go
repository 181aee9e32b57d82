package auth

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/goliatone/go-router"
)

// Requirement is what a route demands from the request's session.
type Requirement int

const (
	// RequirePublic lets the request through without a session
	RequirePublic Requirement = iota
	// RequireSession demands a valid active session
	RequireSession
	// RequireAdmin demands a valid active session holding the admin role
	RequireAdmin
)

// Surface selects how denials are delivered: pages get redirects, API
// routes get JSON status codes.
type Surface int

const (
	SurfacePage Surface = iota
	SurfaceAPI
)

// PathMatcher reports whether a request path belongs to a rule.
type PathMatcher func(path string) bool

// ExactPath matches the path itself, tolerating one trailing slash.
func ExactPath(want string) PathMatcher {
	return func(path string) bool {
		return path == want || path == want+"/"
	}
}

// PathPrefix matches want itself and anything nested under it.
func PathPrefix(want string) PathMatcher {
	prefix := strings.TrimSuffix(want, "/")
	return func(path string) bool {
		return path == prefix || strings.HasPrefix(path, prefix+"/")
	}
}

// GuardRule pairs a matcher with the access requirement for the paths it
// covers.
type GuardRule struct {
	Match       PathMatcher
	Requirement Requirement
	Surface     Surface
}

// DefaultGuardRules is the route policy table. Order matters: the first
// matching rule decides, so the public auth endpoints are listed before
// the blanket API rule and the admin namespaces before the general
// protected surfaces.
func DefaultGuardRules() []GuardRule {
	rules := []GuardRule{}

	for _, p := range []string{
		"/login",
		"/api/health",
		"/api/auth/login",
		"/api/auth/register",
		"/api/auth/logout",
		"/api/auth/me",
	} {
		rules = append(rules, GuardRule{Match: ExactPath(p), Requirement: RequirePublic})
	}

	for _, p := range []string{"/favicon", "/public", "/assets"} {
		rules = append(rules, GuardRule{Match: PathPrefix(p), Requirement: RequirePublic})
	}

	rules = append(rules,
		GuardRule{Match: PathPrefix("/api/admin"), Requirement: RequireAdmin, Surface: SurfaceAPI},
		GuardRule{Match: PathPrefix("/admin"), Requirement: RequireAdmin, Surface: SurfacePage},
		GuardRule{Match: PathPrefix("/api"), Requirement: RequireSession, Surface: SurfaceAPI},
		GuardRule{Match: PathPrefix("/generate"), Requirement: RequireSession, Surface: SurfacePage},
		GuardRule{Match: PathPrefix("/history"), Requirement: RequireSession, Surface: SurfacePage},
		GuardRule{Match: PathPrefix("/templates"), Requirement: RequireSession, Surface: SurfacePage},
	)

	return rules
}

// AccessGuard enforces the route policy table as router middleware. It
// resolves the active session to a live user so deactivated accounts are
// locked out even while their tokens are still unexpired.
type AccessGuard struct {
	sessions *SessionManager
	users    Users
	rules    []GuardRule
	logger   Logger
}

type GuardOption func(*AccessGuard)

func WithGuardRules(rules []GuardRule) GuardOption {
	return func(g *AccessGuard) {
		if len(rules) > 0 {
			g.rules = rules
		}
	}
}

func WithGuardLogger(logger Logger) GuardOption {
	return func(g *AccessGuard) {
		if logger != nil {
			g.logger = logger
		}
	}
}

func NewAccessGuard(sessions *SessionManager, users Users, opts ...GuardOption) *AccessGuard {
	g := &AccessGuard{
		sessions: sessions,
		users:    users,
		rules:    DefaultGuardRules(),
		logger:   defLogger{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(g)
		}
	}
	return g
}

// Classify resolves the requirement and surface for a path. Paths no
// rule claims are public.
func (g *AccessGuard) Classify(path string) (Requirement, Surface) {
	for _, rule := range g.rules {
		if rule.Match(path) {
			return rule.Requirement, rule.Surface
		}
	}
	return RequirePublic, SurfacePage
}

// Middleware returns the route-protection middleware. On success the
// resolved user is stored in Locals and on the request context for
// downstream handlers.
func (g *AccessGuard) Middleware() router.MiddlewareFunc {
	return func(next router.HandlerFunc) router.HandlerFunc {
		return func(c router.Context) error {
			requirement, surface := g.Classify(c.Path())
			if requirement == RequirePublic {
				return next(c)
			}

			claims, err := g.sessions.Active(c)
			if err != nil {
				return g.denyUnauthenticated(c, surface)
			}

			user, err := g.users.FindActiveByID(c.Context(), claims.Subject())
			if err != nil {
				if !isNotFound(err) {
					g.logger.Error("guard user lookup failed", "error", err)
				}
				return g.denyUnauthenticated(c, surface)
			}

			if requirement == RequireAdmin && !user.IsAdmin() {
				g.logger.Debug("admin route denied", "username", user.Username, "path", c.Path())
				return g.denyForbidden(c, surface)
			}

			c.Locals(SessionLocalsKey, user)
			c.SetContext(WithClaimsContext(WithContext(c.Context(), user), claims))

			return next(c)
		}
	}
}

// denyUnauthenticated answers "you are not signed in": API calls get a
// 401, pages bounce to the login form with the original path preserved.
func (g *AccessGuard) denyUnauthenticated(c router.Context, surface Surface) error {
	if surface == SurfaceAPI {
		return c.JSON(http.StatusUnauthorized, errorBody(ErrUnauthenticated))
	}
	target := "/login?next=" + url.QueryEscape(c.Path())
	return c.Redirect(target, http.StatusFound)
}

// denyForbidden answers "signed in but not allowed". Kept distinct from
// the unauthenticated denial so a non-admin is never bounced to login.
func (g *AccessGuard) denyForbidden(c router.Context, surface Surface) error {
	if surface == SurfaceAPI {
		return c.JSON(http.StatusForbidden, errorBody(ErrForbidden))
	}
	return c.Redirect("/", http.StatusFound)
}
