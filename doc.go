// Package auth implements the identity and access-control core of the
// content workbench: stateless HMAC-signed session tokens, PBKDF2
// credential storage, a pending-approval registration workflow with a
// self-healing bootstrap administrator, a multi-account cookie session
// model, a path-classification access guard, and a versioned
// prompt-template store with rollback.
//
// Sessions:
//   - Tokens are self-contained JWTs (HS256). Validity is signature plus
//     expiry; there is no server-side session table and no per-token
//     revocation before expiry. Integrators that need early revocation
//     must rotate the signing secret.
//   - A browser may hold several authenticated accounts at once: one
//     active-session cookie selects the operative account, and one
//     account-session-<id> cookie per remembered account carries that
//     account's own token. Switching promotes an already-valid token to
//     the active slot without re-authenticating.
//
// Bootstrap admin:
//   - Users.EnsureBootstrapAdmin guarantees the configured administrator
//     exists and is active. When force-reset is enabled, a login matching
//     the bootstrap credentials rewrites the stored hash even if it was
//     changed since. That is a deliberate recovery path; treat the
//     bootstrap secret accordingly in production.
//
// Templates:
//   - Every overwrite of a template that had content first appends an
//     immutable revision of the outgoing name/prompt. Rollback replays an
//     old revision through the same snapshot-then-write sequence, so the
//     audit log is never pruned and rollbacks are themselves reversible.
package auth
