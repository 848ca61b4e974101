// Package api exposes the session service over HTTP: login, refresh,
// logout, revocation, password reset, and the authenticator and
// throttling middleware protecting those routes.
package api

import (
	_ "embed"
	"log/slog"
	"net/http"
	"net/netip"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-openapi/runtime/middleware"

	"github.com/AlyBadawy/Securial-sub000/identity"
	"github.com/AlyBadawy/Securial-sub000/internal/mailer"
	"github.com/AlyBadawy/Securial-sub000/rate"
	"github.com/AlyBadawy/Securial-sub000/session"
	"github.com/AlyBadawy/Securial-sub000/token"
)

//go:embed openapi.yaml
var openapiSpec []byte

// Config carries the request-independent tunables the handlers need.
type Config struct {
	// AccessTokenTTL mirrors the codec's token lifetime and feeds the
	// expires_in field of token responses.
	AccessTokenTTL time.Duration
	// RefreshTokenTTL is the sliding refresh window applied at session
	// creation and on every rotation.
	RefreshTokenTTL time.Duration
	// ResetCodeTTL bounds the lifetime of issued password-reset codes.
	ResetCodeTTL time.Duration

	// Login/reset throttling parameters for the default rule set. Ignored
	// when a limiter is injected via WithLimiter.
	LoginLimit  int
	LoginWindow time.Duration
	ResetLimit  int
	ResetWindow time.Duration
	// LimitStatus is the rejection status; 0 means 429.
	LimitStatus int
	// LimitMessage is the rejection body message; empty means a default.
	LimitMessage string
}

// API holds the dependencies needed by the HTTP handlers.
type API struct {
	sessions  session.Store
	users     identity.Store
	verifier  *identity.Verifier
	codec     *token.Codec
	generator *token.Generator
	limiter   *rate.Limiter
	mail      mailer.Sender
	audit     *auditLogger
	resets    *resetCodeStore
	cfg       Config

	trustedProxies []netip.Prefix
	exempt         map[string]bool
}

// Option configures the API instance.
type Option func(*API)

// WithLogger sets the structured logger for audit events. If not set, a
// default JSON logger writing to stderr is used.
func WithLogger(logger *slog.Logger) Option {
	return func(a *API) {
		a.audit = newAuditLogger(logger)
	}
}

// WithMailer sets the reset-code delivery boundary.
func WithMailer(m mailer.Sender) Option {
	return func(a *API) {
		a.mail = m
	}
}

// WithLimiter replaces the default in-memory rate limiter, e.g. with one
// backed by a shared redis counter store.
func WithLimiter(l *rate.Limiter) Option {
	return func(a *API) {
		a.limiter = l
	}
}

// WithCounterStore keeps the default throttling rules but moves their
// counters to the given store.
func WithCounterStore(store rate.CounterStore) Option {
	return func(a *API) {
		a.limiter = rate.NewLimiter(store, a.defaultRules()...)
	}
}

// WithTrustedProxies enables proxy-header IP extraction for requests
// arriving from the given CIDR ranges.
func WithTrustedProxies(prefixes []netip.Prefix) Option {
	return func(a *API) {
		a.trustedProxies = prefixes
	}
}

// New creates a new API instance. Zero-valued Config fields fall back
// to the package defaults; a zero limit in particular must not mean
// "reject everything".
func New(sessions session.Store, users identity.Store, codec *token.Codec, generator *token.Generator, cfg Config, opts ...Option) *API {
	if cfg.AccessTokenTTL <= 0 {
		cfg.AccessTokenTTL = 15 * time.Minute
	}
	if cfg.RefreshTokenTTL <= 0 {
		cfg.RefreshTokenTTL = 7 * 24 * time.Hour
	}
	if cfg.ResetCodeTTL <= 0 {
		cfg.ResetCodeTTL = 2 * time.Hour
	}
	if cfg.LoginLimit <= 0 {
		cfg.LoginLimit = 5
	}
	if cfg.LoginWindow <= 0 {
		cfg.LoginWindow = time.Minute
	}
	if cfg.ResetLimit <= 0 {
		cfg.ResetLimit = 5
	}
	if cfg.ResetWindow <= 0 {
		cfg.ResetWindow = time.Minute
	}

	a := &API{
		sessions:  sessions,
		users:     users,
		verifier:  identity.NewVerifier(users),
		codec:     codec,
		generator: generator,
		resets:    newResetCodeStore(),
		cfg:       cfg,
		exempt:    defaultExemptRoutes(),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.audit == nil {
		a.audit = newAuditLogger(slog.New(slog.NewJSONHandler(os.Stderr, nil)))
	}
	if a.mail == nil {
		a.mail = &mailer.LogSender{Logger: slog.New(slog.NewJSONHandler(os.Stderr, nil))}
	}
	if a.limiter == nil {
		a.limiter = rate.NewLimiter(rate.NewMemoryCounterStore(), a.defaultRules()...)
	}
	return a
}

// Router returns a chi.Router with all API routes mounted.
func (a *API) Router() chi.Router {
	r := chi.NewRouter()

	r.Get("/openapi.yaml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/yaml")
		w.Write(openapiSpec)
	})

	r.Handle("/docs*", middleware.SwaggerUI(middleware.SwaggerUIOpts{
		SpecURL: "/api/v1/openapi.yaml",
		Path:    "api/v1/docs",
	}, nil))

	r.Handle("/redoc*", middleware.Redoc(middleware.RedocOpts{
		SpecURL: "/api/v1/openapi.yaml",
		Path:    "api/v1/redoc",
	}, nil))

	r.Group(func(r chi.Router) {
		r.Use(a.Throttle)
		r.Use(a.Authenticate)

		r.Post("/auth/login", a.Login)
		r.Post("/auth/refresh", a.Refresh)
		r.With(a.RequireAuth).Post("/auth/logout", a.Logout)
		r.With(a.RequireAuth).Delete("/auth/logout", a.Logout)
		r.With(a.RequireAuth).Delete("/auth/revoke", a.RevokeAll)
		r.With(a.RequireAuth).Get("/auth/me", a.Me)
		r.With(a.RequireAuth).Get("/auth/sessions", a.ListSessions)
		r.With(a.RequireAuth, a.RequireAdmin).Get("/admin/sessions/{userID}", a.AdminListSessions)

		r.Post("/password/forgot", a.ForgotPassword)
		r.Put("/password/reset", a.ResetPassword)
	})

	return r
}

// defaultExemptRoutes lists the routes the authenticator short-circuits
// as anonymous: the ones a client must reach without holding a token.
func defaultExemptRoutes() map[string]bool {
	return map[string]bool{
		"POST /auth/login":      true,
		"POST /auth/refresh":    true,
		"POST /password/forgot": true,
		"PUT /password/reset":   true,
	}
}
