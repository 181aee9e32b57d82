package auth

import (
	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/gofiber/fiber/v2"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-router"
	"github.com/google/uuid"
)

// RegisterWorkbenchRoutes mounts the auth, admin, and template endpoints
// on the router. The AccessGuard decides who may reach them; handlers
// only re-check what the guard cannot know.
func RegisterWorkbenchRoutes[T any](app router.Router[T], opts ...ControllerOption) {
	controller := NewController(opts...)

	app.Post("/api/auth/login", controller.LoginPost).SetName("auth.login")
	app.Post("/api/auth/register", controller.RegisterPost).SetName("auth.register")
	app.Post("/api/auth/logout", controller.LogoutPost).SetName("auth.logout")
	app.Post("/api/auth/switch", controller.SwitchPost).SetName("auth.switch")
	app.Get("/api/auth/accounts", controller.AccountsList).SetName("auth.accounts")
	app.Get("/api/auth/me", controller.Me).SetName("auth.me")

	app.Get("/api/admin/registration-requests", controller.RegistrationList).
		SetName("admin.registrations.list")
	app.Post("/api/admin/registration-requests/:id/approve", controller.RegistrationApprove).
		SetName("admin.registrations.approve")
	app.Post("/api/admin/registration-requests/:id/reject", controller.RegistrationReject).
		SetName("admin.registrations.reject")
	app.Post("/api/admin/users", controller.UserCreate).SetName("admin.users.create")

	app.Get("/api/templates", controller.TemplateList).SetName("templates.list")
	app.Get("/api/templates/:strategy", controller.TemplateShow).SetName("templates.show")
	app.Put("/api/templates/:strategy", controller.TemplateUpsert).SetName("templates.upsert")
	app.Get("/api/templates/:strategy/revisions", controller.TemplateRevisions).
		SetName("templates.revisions")
	app.Post("/api/templates/:strategy/rollback", controller.TemplateRollback).
		SetName("templates.rollback")
}

type Controller struct {
	Logger   Logger
	Repo     RepositoryManager
	Auther   Authenticator
	Sessions *SessionManager
}

type ControllerOption func(*Controller) *Controller

func WithControllerRepo(repo RepositoryManager) ControllerOption {
	return func(c *Controller) *Controller {
		c.Repo = repo
		return c
	}
}

func WithControllerAuther(auther Authenticator) ControllerOption {
	return func(c *Controller) *Controller {
		c.Auther = auther
		return c
	}
}

func WithControllerSessions(sessions *SessionManager) ControllerOption {
	return func(c *Controller) *Controller {
		c.Sessions = sessions
		return c
	}
}

func WithControllerLogger(logger Logger) ControllerOption {
	return func(c *Controller) *Controller {
		c.Logger = logger
		return c
	}
}

func NewController(opts ...ControllerOption) *Controller {
	c := &Controller{
		Logger: defLogger{},
	}

	for _, opt := range opts {
		c = opt(c)
	}

	if c.Repo == nil {
		panic("Missing RepositoryManager in auth controller...")
	}

	if c.Auther == nil {
		panic("Missing Authenticator in auth controller...")
	}

	if c.Sessions == nil {
		c.Sessions = NewSessionManager(c.Auther.TokenService(), c.Repo.Users())
	}

	return c
}

// LoginRequest payload
type LoginRequest struct {
	Username string `form:"username" json:"username"`
	Password string `form:"password" json:"password"`
}

// Validate will run validation rules
func (r LoginRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Username, validation.Required),
		validation.Field(&r.Password, validation.Required),
	)
}

func (a *Controller) LoginPost(ctx router.Context) error {
	payload := new(LoginRequest)

	if err := ctx.Bind(payload); err != nil {
		return a.badRequest(ctx, err)
	}

	if err := payload.Validate(); err != nil {
		return a.validationFailed(ctx, err)
	}

	token, user, err := a.Auther.Login(ctx.Context(), payload.Username, payload.Password)
	if err != nil {
		a.Logger.Info("login rejected", "username", payload.Username)
		return a.respondError(ctx, err)
	}

	claims, err := a.Auther.TokenService().Validate(token)
	if err != nil {
		return a.respondError(ctx, err)
	}

	a.Sessions.Remember(ctx, token, claims)

	return ctx.JSON(fiber.StatusOK, router.ViewContext{
		"user": accountOf(user, true),
	})
}

// RegisterRequest payload
type RegisterRequest struct {
	Username string `form:"username" json:"username"`
	Password string `form:"password" json:"password"`
}

// Validate will run validation rules
func (r RegisterRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Username, validation.Required, validation.Length(3, 100)),
		validation.Field(&r.Password, validation.Required, validation.Length(8, 100)),
	)
}

func (a *Controller) RegisterPost(ctx router.Context) error {
	payload := new(RegisterRequest)

	if err := ctx.Bind(payload); err != nil {
		return a.badRequest(ctx, err)
	}

	if err := payload.Validate(); err != nil {
		return a.validationFailed(ctx, err)
	}

	request, err := a.Auther.Register(ctx.Context(), payload.Username, payload.Password)
	if err != nil {
		return a.respondError(ctx, err)
	}

	return ctx.JSON(fiber.StatusAccepted, router.ViewContext{
		"request": request,
	})
}

// LogoutRequest payload. Scope defaults to current.
type LogoutRequest struct {
	Scope LogoutScope `form:"scope" json:"scope"`
}

// Validate will run validation rules
func (r LogoutRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Scope, validation.In(LogoutCurrent, LogoutAll)),
	)
}

func (a *Controller) LogoutPost(ctx router.Context) error {
	payload := new(LogoutRequest)

	// logout must succeed even with an empty body
	if err := ctx.Bind(payload); err != nil {
		a.Logger.Debug("logout payload ignored", "error", err)
	}

	if err := payload.Validate(); err != nil {
		return a.validationFailed(ctx, err)
	}

	scope := payload.Scope
	if scope == "" {
		scope = LogoutCurrent
	}

	a.Sessions.Logout(ctx, scope)

	return ctx.JSON(fiber.StatusOK, router.ViewContext{
		"success": true,
	})
}

// SwitchRequest payload
type SwitchRequest struct {
	UserID string `form:"userId" json:"userId"`
}

// Validate will run validation rules
func (r SwitchRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.UserID, validation.Required, is.UUID),
	)
}

func (a *Controller) SwitchPost(ctx router.Context) error {
	payload := new(SwitchRequest)

	if err := ctx.Bind(payload); err != nil {
		return a.badRequest(ctx, err)
	}

	if err := payload.Validate(); err != nil {
		return a.validationFailed(ctx, err)
	}

	account, err := a.Sessions.SwitchActive(ctx.Context(), ctx, payload.UserID)
	if err != nil {
		return a.respondError(ctx, err)
	}

	return ctx.JSON(fiber.StatusOK, router.ViewContext{
		"account": account,
	})
}

func (a *Controller) AccountsList(ctx router.Context) error {
	accounts := a.Sessions.ListAccounts(ctx.Context(), ctx)
	return ctx.JSON(fiber.StatusOK, router.ViewContext{
		"accounts": accounts,
	})
}

// Me reports the active session's user, or null when the browser holds
// no usable session. Public on purpose so clients can probe sign-in
// state without tripping the guard.
func (a *Controller) Me(ctx router.Context) error {
	claims, err := a.Sessions.Active(ctx)
	if err != nil {
		return ctx.JSON(fiber.StatusOK, router.ViewContext{"user": nil})
	}

	user, err := a.Repo.Users().FindActiveByID(ctx.Context(), claims.Subject())
	if err != nil {
		if !isNotFound(err) {
			return a.respondError(ctx, err)
		}
		return ctx.JSON(fiber.StatusOK, router.ViewContext{"user": nil})
	}

	return ctx.JSON(fiber.StatusOK, router.ViewContext{
		"user": accountOf(user, true),
	})
}

func (a *Controller) RegistrationList(ctx router.Context) error {
	requests, err := a.Repo.Registrations().ListPending(ctx.Context())
	if err != nil {
		return a.respondError(ctx, err)
	}

	return ctx.JSON(fiber.StatusOK, router.ViewContext{
		"requests": requests,
	})
}

func (a *Controller) RegistrationApprove(ctx router.Context) error {
	id := ctx.Param("id", "")

	request, err := a.Repo.Registrations().Approve(ctx.Context(), id, a.actorID(ctx))
	if err != nil {
		return a.respondError(ctx, err)
	}

	return ctx.JSON(fiber.StatusOK, router.ViewContext{
		"request": request,
	})
}

func (a *Controller) RegistrationReject(ctx router.Context) error {
	id := ctx.Param("id", "")

	request, err := a.Repo.Registrations().Reject(ctx.Context(), id, a.actorID(ctx))
	if err != nil {
		return a.respondError(ctx, err)
	}

	return ctx.JSON(fiber.StatusOK, router.ViewContext{
		"request": request,
	})
}

// UserCreateRequest payload. Password is optional; a generated one is
// returned when omitted.
type UserCreateRequest struct {
	Username string   `form:"username" json:"username"`
	Password string   `form:"password" json:"password"`
	Role     UserRole `form:"role" json:"role"`
}

// Validate will run validation rules
func (r UserCreateRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Username, validation.Required, validation.Length(3, 100)),
		validation.Field(&r.Password, validation.Length(8, 100)),
		validation.Field(&r.Role, validation.In(RoleUser, RoleAdmin)),
	)
}

func (a *Controller) UserCreate(ctx router.Context) error {
	payload := new(UserCreateRequest)

	if err := ctx.Bind(payload); err != nil {
		return a.badRequest(ctx, err)
	}

	if err := payload.Validate(); err != nil {
		return a.validationFailed(ctx, err)
	}

	password := payload.Password
	generated := false
	if password == "" {
		password = RandomPassword(12)
		generated = true
	}

	role := payload.Role
	if role == "" {
		role = RoleUser
	}

	user, err := a.Repo.Users().CreateActive(ctx.Context(), payload.Username, password, role)
	if err != nil {
		return a.respondError(ctx, err)
	}

	body := router.ViewContext{
		"user": accountOf(user, false),
	}
	if generated {
		body["generatedPassword"] = password
	}

	return ctx.JSON(fiber.StatusCreated, body)
}

func (a *Controller) TemplateList(ctx router.Context) error {
	records, err := a.Repo.Templates().List(ctx.Context())
	if err != nil {
		return a.respondError(ctx, err)
	}

	return ctx.JSON(fiber.StatusOK, router.ViewContext{
		"templates": records,
	})
}

func (a *Controller) TemplateShow(ctx router.Context) error {
	strategy := ctx.Param("strategy", "")

	record, err := a.Repo.Templates().Get(ctx.Context(), strategy)
	if err != nil {
		return a.respondError(ctx, err)
	}

	if record == nil {
		return ctx.JSON(fiber.StatusNotFound, router.ViewContext{
			"error": "template not found",
		})
	}

	return ctx.JSON(fiber.StatusOK, router.ViewContext{
		"template": record,
	})
}

// TemplateUpsertRequest payload
type TemplateUpsertRequest struct {
	Name   string `form:"name" json:"name"`
	Prompt string `form:"prompt" json:"prompt"`
}

// Validate will run validation rules
func (r TemplateUpsertRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Name, validation.Required, validation.Length(1, 200)),
		validation.Field(&r.Prompt, validation.Required),
	)
}

func (a *Controller) TemplateUpsert(ctx router.Context) error {
	strategy := ctx.Param("strategy", "")
	payload := new(TemplateUpsertRequest)

	if err := ctx.Bind(payload); err != nil {
		return a.badRequest(ctx, err)
	}

	if err := payload.Validate(); err != nil {
		return a.validationFailed(ctx, err)
	}

	record, err := a.Repo.Templates().Upsert(ctx.Context(), strategy, payload.Name, payload.Prompt, a.actorRef(ctx))
	if err != nil {
		return a.respondError(ctx, err)
	}

	return ctx.JSON(fiber.StatusOK, router.ViewContext{
		"template": record,
	})
}

func (a *Controller) TemplateRevisions(ctx router.Context) error {
	strategy := ctx.Param("strategy", "")

	records, err := a.Repo.Templates().ListRevisions(ctx.Context(), strategy)
	if err != nil {
		return a.respondError(ctx, err)
	}

	return ctx.JSON(fiber.StatusOK, router.ViewContext{
		"revisions": records,
	})
}

// TemplateRollbackRequest payload
type TemplateRollbackRequest struct {
	RevisionID string `form:"revisionId" json:"revisionId"`
}

// Validate will run validation rules
func (r TemplateRollbackRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.RevisionID, validation.Required, is.UUID),
	)
}

func (a *Controller) TemplateRollback(ctx router.Context) error {
	strategy := ctx.Param("strategy", "")
	payload := new(TemplateRollbackRequest)

	if err := ctx.Bind(payload); err != nil {
		return a.badRequest(ctx, err)
	}

	if err := payload.Validate(); err != nil {
		return a.validationFailed(ctx, err)
	}

	record, err := a.Repo.Templates().Rollback(ctx.Context(), strategy, payload.RevisionID, a.actorRef(ctx))
	if err != nil {
		return a.respondError(ctx, err)
	}

	return ctx.JSON(fiber.StatusOK, router.ViewContext{
		"template": record,
	})
}

// actorID is the guard-resolved user id, or uuid.Nil when the route ran
// unguarded.
func (a *Controller) actorID(ctx router.Context) uuid.UUID {
	if user, ok := GetRouterUser(ctx); ok {
		return user.ID
	}
	return uuid.Nil
}

func (a *Controller) actorRef(ctx router.Context) *uuid.UUID {
	if user, ok := GetRouterUser(ctx); ok {
		id := user.ID
		return &id
	}
	return nil
}

func (a *Controller) badRequest(ctx router.Context, err error) error {
	a.Logger.Error("failed to parse payload", "error", err)
	return ctx.JSON(fiber.StatusBadRequest, router.ViewContext{
		"error": "failed to parse request body",
	})
}

func (a *Controller) validationFailed(ctx router.Context, err error) error {
	return ctx.JSON(fiber.StatusBadRequest, router.ViewContext{
		"error":      "validation failed",
		"validation": err.Error(),
	})
}

// respondError maps rich errors onto HTTP statuses. Unknown errors come
// back as a bare 500 so driver details never leak.
func (a *Controller) respondError(ctx router.Context, err error) error {
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		a.Logger.Error("unexpected error", "error", err)
		return ctx.JSON(fiber.StatusInternalServerError, router.ViewContext{
			"error": "internal server error",
		})
	}

	status := richErr.Code
	if status < fiber.StatusBadRequest {
		status = fiber.StatusInternalServerError
	}

	if status >= fiber.StatusInternalServerError {
		a.Logger.Error("request failed", "error", richErr)
		return ctx.JSON(status, router.ViewContext{
			"error": "internal server error",
		})
	}

	return ctx.JSON(status, errorBody(richErr))
}

func errorBody(err error) router.ViewContext {
	body := router.ViewContext{
		"error": err.Error(),
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		body["error"] = richErr.Message
		if richErr.TextCode != "" {
			body["code"] = richErr.TextCode
		}
	}

	return body
}

func accountOf(user *User, active bool) AccountSummary {
	return AccountSummary{
		UserID:   user.ID.String(),
		Username: user.Username,
		Role:     user.Role,
		Active:   active,
	}
}
