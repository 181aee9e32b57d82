package auth_test

import (
	"context"
	"database/sql"
	"encoding/json"
	"io/fs"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/goliatone/go-router"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"

	auth "github.com/goliatone/go-workbench-auth"
)

// setupTestDB opens an in-memory sqlite database and applies the
// embedded migrations.
func setupTestDB(t *testing.T) *bun.DB {
	t.Helper()

	sqldb, err := sql.Open(sqliteshim.ShimName, ":memory:")
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)

	db := bun.NewDB(sqldb, sqlitedialect.New())

	migrations := auth.GetMigrationsFS()
	entries, err := fs.ReadDir(migrations, "data/sql/migrations")
	require.NoError(t, err)

	names := []string{}
	for _, entry := range entries {
		if strings.HasSuffix(entry.Name(), ".up.sql") {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)

	for _, name := range names {
		script, err := fs.ReadFile(migrations, "data/sql/migrations/"+name)
		require.NoError(t, err)
		_, err = db.Exec(string(script))
		require.NoError(t, err, "migration %s", name)
	}

	t.Cleanup(func() {
		_ = db.Close()
	})

	return db
}

// fakeContext is a recording router.Context: request cookies go in via
// the Cookie header, written cookies, JSON bodies and redirects are
// captured for assertions.
type fakeContext struct {
	path         string
	method       string
	cookieHeader string
	headers      map[string]string
	params       map[string]string
	body         []byte

	reqCtx context.Context
	locals map[any]any

	written        []*router.Cookie
	status         int
	jsonStatus     int
	jsonBody       any
	redirectTo     string
	redirectStatus int
	nextCalled     bool
}

var _ router.Context = (*fakeContext)(nil)

func newFakeContext() *fakeContext {
	return &fakeContext{
		method:  "GET",
		headers: map[string]string{},
		params:  map[string]string{},
		locals:  map[any]any{},
		reqCtx:  context.Background(),
	}
}

// cookieValue returns the last written value for name, and whether the
// write was a deletion (expiry in the past).
func (c *fakeContext) cookieValue(name string) (string, bool, bool) {
	for i := len(c.written) - 1; i >= 0; i-- {
		if c.written[i].Name == name {
			expired := c.written[i].Expires.Before(time.Now())
			return c.written[i].Value, expired, true
		}
	}
	return "", false, false
}

func (c *fakeContext) Next() error {
	c.nextCalled = true
	return nil
}

func (c *fakeContext) Context() context.Context {
	return c.reqCtx
}

func (c *fakeContext) SetContext(ctx context.Context) {
	c.reqCtx = ctx
}

func (c *fakeContext) Path() string   { return c.path }
func (c *fakeContext) Method() string { return c.method }
func (c *fakeContext) Body() []byte   { return c.body }

func (c *fakeContext) Status(code int) router.Context {
	c.status = code
	return c
}

func (c *fakeContext) SendString(s string) error { return nil }
func (c *fakeContext) Send(b []byte) error       { return nil }

func (c *fakeContext) JSON(code int, val any) error {
	c.jsonStatus = code
	c.jsonBody = val
	return nil
}

func (c *fakeContext) NoContent(code int) error {
	c.status = code
	return nil
}

func (c *fakeContext) Render(name string, bind any, layout ...string) error {
	return nil
}

func (c *fakeContext) Redirect(path string, status ...int) error {
	c.redirectTo = path
	if len(status) > 0 {
		c.redirectStatus = status[0]
	}
	return nil
}

func (c *fakeContext) RedirectToRoute(name string, data router.ViewContext, status ...int) error {
	c.redirectTo = name
	return nil
}

func (c *fakeContext) RedirectBack(fallback string, status ...int) error {
	c.redirectTo = fallback
	return nil
}

func (c *fakeContext) SetHeader(key, val string) router.Context {
	c.headers[key] = val
	return c
}

func (c *fakeContext) Header(key string) string {
	if key == "Cookie" {
		return c.cookieHeader
	}
	return c.headers[key]
}

func (c *fakeContext) Get(key string, defaultValue any) any {
	if v, ok := c.locals[key]; ok {
		return v
	}
	return defaultValue
}

func (c *fakeContext) GetBool(key string, defaultValue bool) bool {
	if v, ok := c.locals[key].(bool); ok {
		return v
	}
	return defaultValue
}

func (c *fakeContext) GetInt(key string, def int) int {
	if v, ok := c.locals[key].(int); ok {
		return v
	}
	return def
}

func (c *fakeContext) GetString(key string, defaultValue string) string {
	if v, ok := c.locals[key].(string); ok {
		return v
	}
	return defaultValue
}

func (c *fakeContext) Set(key string, val any) {
	c.locals[key] = val
}

func (c *fakeContext) Bind(i any) error {
	if len(c.body) == 0 {
		return nil
	}
	return json.Unmarshal(c.body, i)
}

func (c *fakeContext) BindJSON(i any) error  { return c.Bind(i) }
func (c *fakeContext) BindXML(i any) error   { return c.Bind(i) }
func (c *fakeContext) BindQuery(i any) error { return c.Bind(i) }

func (c *fakeContext) CookieParser(i any) error { return nil }

func (c *fakeContext) Cookie(cookie *router.Cookie) {
	c.written = append(c.written, cookie)
}

func (c *fakeContext) Cookies(key string, defaultValue ...string) string {
	for _, part := range strings.Split(c.cookieHeader, ";") {
		name, value, found := strings.Cut(strings.TrimSpace(part), "=")
		if found && name == key {
			return value
		}
	}
	if len(defaultValue) > 0 {
		return defaultValue[0]
	}
	return ""
}

func (c *fakeContext) Param(key string, defaultValue ...string) string {
	if v, ok := c.params[key]; ok {
		return v
	}
	if len(defaultValue) > 0 {
		return defaultValue[0]
	}
	return ""
}

func (c *fakeContext) ParamsInt(key string, defaultValue int) int {
	return defaultValue
}

func (c *fakeContext) Query(key string, defaultValue string) string {
	return defaultValue
}

func (c *fakeContext) QueryInt(key string, defaultValue int) int {
	return defaultValue
}

func (c *fakeContext) Queries() map[string]string {
	return map[string]string{}
}

func (c *fakeContext) Locals(key any, value ...any) any {
	if len(value) > 0 {
		c.locals[key] = value[0]
		return nil
	}
	return c.locals[key]
}

func (c *fakeContext) OriginalURL() string {
	return "http://localhost" + c.path
}

func (c *fakeContext) OnNext(callback func() error) {}

func (c *fakeContext) Referer() string {
	return c.headers["Referer"]
}
