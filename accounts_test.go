package auth_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"

	auth "github.com/goliatone/go-workbench-auth"
)

type sessionFixture struct {
	db       *bun.DB
	users    auth.Users
	tokens   auth.TokenService
	sessions *auth.SessionManager
}

func newSessionFixture(t *testing.T) *sessionFixture {
	t.Helper()

	db := setupTestDB(t)
	users := auth.NewUsersRepository(db)
	tokens := auth.NewTokenService([]byte("test-signing-key"), time.Hour)

	return &sessionFixture{
		db:       db,
		users:    users,
		tokens:   tokens,
		sessions: auth.NewSessionManager(tokens, users),
	}
}

func (f *sessionFixture) signIn(t *testing.T, username string, role auth.UserRole) (*auth.User, string) {
	t.Helper()

	user, err := f.users.CreateActive(context.Background(), username, "password-123", role)
	require.NoError(t, err)

	token, err := f.tokens.Issue(user.AsIdentity())
	require.NoError(t, err)

	return user, token
}

func cookieHeader(pairs ...string) string {
	return strings.Join(pairs, "; ")
}

func TestSessionManagerRemember(t *testing.T) {
	f := newSessionFixture(t)
	user, token := f.signIn(t, "alice", auth.RoleUser)

	claims, err := f.tokens.Validate(token)
	require.NoError(t, err)

	ctx := newFakeContext()
	f.sessions.Remember(ctx, token, claims)

	active, _, ok := ctx.cookieValue(auth.ActiveSessionCookie)
	require.True(t, ok)
	assert.Equal(t, token, active)

	account, _, ok := ctx.cookieValue(auth.AccountSessionPrefix + user.ID.String())
	require.True(t, ok)
	assert.Equal(t, token, account)
}

func TestSessionManagerListAccounts(t *testing.T) {
	f := newSessionFixture(t)

	alice, aliceToken := f.signIn(t, "alice", auth.RoleUser)
	bob, bobToken := f.signIn(t, "bob", auth.RoleAdmin)
	zoe, zoeToken := f.signIn(t, "zoe", auth.RoleUser)

	ctx := newFakeContext()
	ctx.cookieHeader = cookieHeader(
		auth.ActiveSessionCookie+"="+zoeToken,
		auth.AccountSessionPrefix+alice.ID.String()+"="+aliceToken,
		auth.AccountSessionPrefix+bob.ID.String()+"="+bobToken,
		auth.AccountSessionPrefix+zoe.ID.String()+"="+zoeToken,
	)

	accounts := f.sessions.ListAccounts(context.Background(), ctx)
	require.Len(t, accounts, 3)

	// active account first, then the rest by username
	assert.Equal(t, "zoe", accounts[0].Username)
	assert.True(t, accounts[0].Active)
	assert.Equal(t, "alice", accounts[1].Username)
	assert.Equal(t, "bob", accounts[2].Username)
	assert.False(t, accounts[1].Active)
	assert.False(t, accounts[2].Active)
}

func TestSessionManagerListAccountsSkipsBrokenSessions(t *testing.T) {
	f := newSessionFixture(t)

	alice, aliceToken := f.signIn(t, "alice", auth.RoleUser)
	ghost, ghostToken := f.signIn(t, "ghost", auth.RoleUser)

	// ghost's account disappears after sign-in
	_, err := f.db.NewDelete().
		Model((*auth.User)(nil)).
		Where("id = ?", ghost.ID).
		Exec(context.Background())
	require.NoError(t, err)

	ctx := newFakeContext()
	ctx.cookieHeader = cookieHeader(
		auth.ActiveSessionCookie+"="+aliceToken,
		auth.AccountSessionPrefix+alice.ID.String()+"="+aliceToken,
		auth.AccountSessionPrefix+ghost.ID.String()+"="+ghostToken,
		auth.AccountSessionPrefix+"bad-id=tampered-token",
	)

	accounts := f.sessions.ListAccounts(context.Background(), ctx)
	require.Len(t, accounts, 1)
	assert.Equal(t, "alice", accounts[0].Username)
}

func TestSessionManagerSwitchActive(t *testing.T) {
	f := newSessionFixture(t)

	alice, aliceToken := f.signIn(t, "alice", auth.RoleUser)
	bob, bobToken := f.signIn(t, "bob", auth.RoleAdmin)

	t.Run("copies the remembered token to the active cookie", func(t *testing.T) {
		ctx := newFakeContext()
		ctx.cookieHeader = cookieHeader(
			auth.ActiveSessionCookie+"="+aliceToken,
			auth.AccountSessionPrefix+alice.ID.String()+"="+aliceToken,
			auth.AccountSessionPrefix+bob.ID.String()+"="+bobToken,
		)

		account, err := f.sessions.SwitchActive(context.Background(), ctx, bob.ID.String())
		require.NoError(t, err)
		assert.Equal(t, "bob", account.Username)
		assert.True(t, account.Active)

		active, expired, ok := ctx.cookieValue(auth.ActiveSessionCookie)
		require.True(t, ok)
		assert.False(t, expired)
		assert.Equal(t, bobToken, active)
	})

	t.Run("unremembered account", func(t *testing.T) {
		ctx := newFakeContext()
		ctx.cookieHeader = cookieHeader(auth.ActiveSessionCookie + "=" + aliceToken)

		_, err := f.sessions.SwitchActive(context.Background(), ctx, bob.ID.String())
		assert.ErrorIs(t, err, auth.ErrAccountNotRemembered)
	})

	t.Run("tampered token clears the cookie", func(t *testing.T) {
		ctx := newFakeContext()
		ctx.cookieHeader = cookieHeader(
			auth.AccountSessionPrefix + bob.ID.String() + "=tampered",
		)

		_, err := f.sessions.SwitchActive(context.Background(), ctx, bob.ID.String())
		assert.ErrorIs(t, err, auth.ErrAccountSessionStale)

		_, expired, ok := ctx.cookieValue(auth.AccountSessionPrefix + bob.ID.String())
		require.True(t, ok)
		assert.True(t, expired)
	})

	t.Run("token for another subject is stale", func(t *testing.T) {
		ctx := newFakeContext()
		ctx.cookieHeader = cookieHeader(
			auth.AccountSessionPrefix + bob.ID.String() + "=" + aliceToken,
		)

		_, err := f.sessions.SwitchActive(context.Background(), ctx, bob.ID.String())
		assert.ErrorIs(t, err, auth.ErrAccountSessionStale)
	})

	t.Run("deleted user is stale", func(t *testing.T) {
		gone, goneToken := f.signIn(t, "gone", auth.RoleUser)
		_, err := f.db.NewDelete().
			Model((*auth.User)(nil)).
			Where("id = ?", gone.ID).
			Exec(context.Background())
		require.NoError(t, err)

		ctx := newFakeContext()
		ctx.cookieHeader = cookieHeader(
			auth.AccountSessionPrefix + gone.ID.String() + "=" + goneToken,
		)

		_, err = f.sessions.SwitchActive(context.Background(), ctx, gone.ID.String())
		assert.ErrorIs(t, err, auth.ErrAccountSessionStale)
	})
}

func TestSessionManagerLogout(t *testing.T) {
	f := newSessionFixture(t)

	alice, aliceToken := f.signIn(t, "alice", auth.RoleUser)
	bob, bobToken := f.signIn(t, "bob", auth.RoleAdmin)

	header := cookieHeader(
		auth.ActiveSessionCookie+"="+aliceToken,
		auth.AccountSessionPrefix+alice.ID.String()+"="+aliceToken,
		auth.AccountSessionPrefix+bob.ID.String()+"="+bobToken,
	)

	t.Run("current scope clears only the active cookie", func(t *testing.T) {
		ctx := newFakeContext()
		ctx.cookieHeader = header

		f.sessions.Logout(ctx, auth.LogoutCurrent)

		_, expired, ok := ctx.cookieValue(auth.ActiveSessionCookie)
		require.True(t, ok)
		assert.True(t, expired)

		_, _, ok = ctx.cookieValue(auth.AccountSessionPrefix + alice.ID.String())
		assert.False(t, ok, "alice stays remembered after signing out")

		_, _, ok = ctx.cookieValue(auth.AccountSessionPrefix + bob.ID.String())
		assert.False(t, ok, "bob's session should be untouched")
	})

	t.Run("signed-out account switches back without re-authenticating", func(t *testing.T) {
		ctx := newFakeContext()
		ctx.cookieHeader = header

		f.sessions.Logout(ctx, auth.LogoutCurrent)

		// the browser still holds the per-account cookies; only the
		// active cookie is gone
		after := newFakeContext()
		after.cookieHeader = cookieHeader(
			auth.AccountSessionPrefix+alice.ID.String()+"="+aliceToken,
			auth.AccountSessionPrefix+bob.ID.String()+"="+bobToken,
		)

		account, err := f.sessions.SwitchActive(context.Background(), after, alice.ID.String())
		require.NoError(t, err)
		assert.Equal(t, "alice", account.Username)
		assert.True(t, account.Active)

		active, expired, ok := after.cookieValue(auth.ActiveSessionCookie)
		require.True(t, ok)
		assert.False(t, expired)
		assert.Equal(t, aliceToken, active)
	})

	t.Run("all scope clears everything", func(t *testing.T) {
		ctx := newFakeContext()
		ctx.cookieHeader = header

		f.sessions.Logout(ctx, auth.LogoutAll)

		for _, name := range []string{
			auth.ActiveSessionCookie,
			auth.AccountSessionPrefix + alice.ID.String(),
			auth.AccountSessionPrefix + bob.ID.String(),
		} {
			_, expired, ok := ctx.cookieValue(name)
			require.True(t, ok, name)
			assert.True(t, expired, name)
		}
	})

	t.Run("current scope with a broken active token still clears it", func(t *testing.T) {
		ctx := newFakeContext()
		ctx.cookieHeader = cookieHeader(auth.ActiveSessionCookie + "=garbage")

		f.sessions.Logout(ctx, auth.LogoutCurrent)

		_, expired, ok := ctx.cookieValue(auth.ActiveSessionCookie)
		require.True(t, ok)
		assert.True(t, expired)
	})
}
