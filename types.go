package auth

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// Logger takes a message plus alternating key/value pairs, slog style.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Identity holds the attributes of an authenticated principal
type Identity interface {
	ID() string
	Username() string
	Role() string
}

// Config holds the process-wide auth options. Loading (env, files, flags)
// is the caller's concern; DefaultConfig ships safe local/dev values.
type Config interface {
	GetSigningKey() string
	GetTokenTTL() time.Duration
	GetBootstrapAdmin() BootstrapAdmin
}

// BootstrapAdmin is the administrator account guaranteed to exist
// independent of the registration workflow.
type BootstrapAdmin struct {
	Username string
	Password string
	// ForceReset makes a login matching these credentials rewrite the
	// stored hash even when it differs. Recovery mechanism; a leaked
	// bootstrap secret therefore owns the admin account.
	ForceReset bool
}

const (
	// DefaultSigningKey is for local development only. Production
	// deployments must override it; shipping it unchanged is a deployment
	// risk, not a code fault.
	DefaultSigningKey = "workbench-auth-secret-v1"

	// DefaultTokenTTL bounds session lifetime; cookies carry the same TTL.
	DefaultTokenTTL = 7 * 24 * time.Hour

	DefaultBootstrapUsername = "admin"
	DefaultBootstrapPassword = "workbench-admin"
)

// SimpleConfig is a literal Config for embedding and tests.
type SimpleConfig struct {
	SigningKey string
	TokenTTL   time.Duration
	Bootstrap  BootstrapAdmin
}

func (c SimpleConfig) GetSigningKey() string {
	if c.SigningKey == "" {
		return DefaultSigningKey
	}
	return c.SigningKey
}

func (c SimpleConfig) GetTokenTTL() time.Duration {
	if c.TokenTTL <= 0 {
		return DefaultTokenTTL
	}
	return c.TokenTTL
}

func (c SimpleConfig) GetBootstrapAdmin() BootstrapAdmin {
	b := c.Bootstrap
	if b.Username == "" {
		b.Username = DefaultBootstrapUsername
	}
	if b.Password == "" {
		b.Password = DefaultBootstrapPassword
	}
	return b
}

// DefaultConfig resolves configuration from the environment, falling back
// to the dev defaults: AUTH_SECRET, ADMIN_USERNAME, ADMIN_PASSWORD, and
// ADMIN_FORCE_RESET (1/true/yes).
func DefaultConfig() Config {
	force := strings.ToLower(os.Getenv("ADMIN_FORCE_RESET"))
	return SimpleConfig{
		SigningKey: os.Getenv("AUTH_SECRET"),
		Bootstrap: BootstrapAdmin{
			Username:   strings.TrimSpace(os.Getenv("ADMIN_USERNAME")),
			Password:   os.Getenv("ADMIN_PASSWORD"),
			ForceReset: force == "1" || force == "true" || force == "yes",
		},
	}
}

type defLogger struct{}

func (d defLogger) Error(msg string, args ...any) {
	fmt.Println(logLine("ERR", msg, args))
}

func (d defLogger) Warn(msg string, args ...any) {
	fmt.Println(logLine("WRN", msg, args))
}

func (d defLogger) Info(msg string, args ...any) {
	fmt.Println(logLine("INF", msg, args))
}

func (d defLogger) Debug(msg string, args ...any) {
	fmt.Println(logLine("DBG", msg, args))
}

// logLine renders a message plus trailing key/value pairs, e.g.
// "[ERR] AUTH lookup failed error=timeout". A dangling key is printed
// on its own.
func logLine(level, msg string, args []any) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] AUTH %s", level, msg)
	i := 0
	for ; i+1 < len(args); i += 2 {
		fmt.Fprintf(&b, " %v=%v", args[i], args[i+1])
	}
	if i < len(args) {
		fmt.Fprintf(&b, " %v", args[i])
	}
	return b.String()
}
