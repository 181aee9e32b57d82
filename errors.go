package auth

import (
	goerrors "github.com/goliatone/go-errors"
	repository "github.com/goliatone/go-repository-bun"
)

// Text codes surfaced to API clients alongside the HTTP status.
const (
	TextCodeTokenInvalid       = "AUTH_TOKEN_INVALID"
	TextCodeInvalidCreds       = "AUTH_INVALID_CREDENTIALS"
	TextCodeUnauthenticated    = "AUTH_REQUIRED"
	TextCodeForbidden          = "AUTH_FORBIDDEN"
	TextCodeUsernameTaken      = "USERNAME_TAKEN"
	TextCodeRequestPending     = "REGISTRATION_PENDING"
	TextCodeRequestNotFound    = "REGISTRATION_NOT_FOUND"
	TextCodeAccountNotHeld     = "ACCOUNT_NOT_REMEMBERED"
	TextCodeAccountStale       = "ACCOUNT_SESSION_STALE"
	TextCodeRevisionNotFound   = "REVISION_NOT_FOUND"
	TextCodeHashFormatInvalid  = "PASSWORD_HASH_INVALID"
	TextCodeEmptyValue         = "EMPTY_VALUE"
)

// ErrTokenInvalid is the single outcome for every malformed, mis-signed,
// or expired token. Callers never learn which check failed.
var ErrTokenInvalid = goerrors.New("invalid session token", goerrors.CategoryAuth).
	WithTextCode(TextCodeTokenInvalid).
	WithCode(goerrors.CodeUnauthorized)

// ErrInvalidCredentials covers both unknown usernames and wrong passwords;
// the two cases are indistinguishable by design.
var ErrInvalidCredentials = goerrors.New("the credentials provided are invalid", goerrors.CategoryAuth).
	WithTextCode(TextCodeInvalidCreds).
	WithCode(goerrors.CodeUnauthorized)

// ErrUnauthenticated is returned when a protected operation runs without a
// valid active session.
var ErrUnauthenticated = goerrors.New("authentication required", goerrors.CategoryAuth).
	WithTextCode(TextCodeUnauthenticated).
	WithCode(goerrors.CodeUnauthorized)

// ErrForbidden is returned when a valid identity lacks the required role.
// Kept distinct from ErrUnauthenticated so clients can tell "log in" from
// "you may not".
var ErrForbidden = goerrors.New("insufficient role for this resource", goerrors.CategoryAuthz).
	WithTextCode(TextCodeForbidden).
	WithCode(goerrors.CodeForbidden)

// ErrUsernameTaken signals a username already held by an active user.
var ErrUsernameTaken = goerrors.New("username already registered", goerrors.CategoryConflict).
	WithTextCode(TextCodeUsernameTaken).
	WithCode(goerrors.CodeConflict)

// ErrRegistrationPending signals a username that already has a pending
// registration request awaiting decision.
var ErrRegistrationPending = goerrors.New("username already has a pending registration", goerrors.CategoryConflict).
	WithTextCode(TextCodeRequestPending).
	WithCode(goerrors.CodeConflict)

// ErrRequestNotFound is returned when deciding a registration request that
// does not exist or is no longer pending.
var ErrRequestNotFound = goerrors.New("registration request not found or already decided", goerrors.CategoryNotFound).
	WithTextCode(TextCodeRequestNotFound).
	WithCode(goerrors.CodeNotFound)

// ErrAccountNotRemembered is returned by SwitchActive when the browser
// holds no per-account cookie for the requested user.
var ErrAccountNotRemembered = goerrors.New("account was not signed in on this browser", goerrors.CategoryNotFound).
	WithTextCode(TextCodeAccountNotHeld).
	WithCode(goerrors.CodeNotFound)

// ErrAccountSessionStale is returned by SwitchActive when the per-account
// cookie exists but its token no longer verifies or belongs to another
// subject.
var ErrAccountSessionStale = goerrors.New("account session expired, sign in again", goerrors.CategoryAuth).
	WithTextCode(TextCodeAccountStale).
	WithCode(goerrors.CodeUnauthorized)

// ErrRevisionNotFound is returned by Rollback when the revision does not
// exist or belongs to another strategy.
var ErrRevisionNotFound = goerrors.New("template revision not found", goerrors.CategoryNotFound).
	WithTextCode(TextCodeRevisionNotFound).
	WithCode(goerrors.CodeNotFound)

// ErrNoEmptyString rejects empty required inputs before they hit crypto or
// storage.
var ErrNoEmptyString = goerrors.New("value must not be empty", goerrors.CategoryValidation).
	WithTextCode(TextCodeEmptyValue).
	WithCode(goerrors.CodeBadRequest)

// ErrHashFormatInvalid rejects stored password hashes that do not parse as
// scheme$iterations$salt$key, carry an unknown scheme, or demand more work
// than the verification ceiling allows.
var ErrHashFormatInvalid = goerrors.New("stored password hash is not usable", goerrors.CategoryValidation).
	WithTextCode(TextCodeHashFormatInvalid).
	WithCode(goerrors.CodeBadRequest)

// isNotFound matches both repository record-not-found errors and our own
// not-found category.
func isNotFound(err error) bool {
	if err == nil {
		return false
	}
	if repository.IsRecordNotFound(err) {
		return true
	}
	var rich *goerrors.Error
	return goerrors.As(err, &rich) && rich.Category == goerrors.CategoryNotFound
}

// wrapInternal normalizes backing-store failures into a single internal
// category so handlers never leak driver details.
func wrapInternal(err error, msg string) error {
	var rich *goerrors.Error
	if goerrors.As(err, &rich) {
		return rich
	}
	return goerrors.Wrap(err, goerrors.CategoryInternal, msg).
		WithCode(goerrors.CodeInternal)
}
