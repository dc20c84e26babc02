// Package httpapi exposes the record store over REST+JSON.
package httpapi

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"

	app "github.com/R3E-Network/recordstore/internal/app"
	"github.com/R3E-Network/recordstore/internal/app/auth"
	"github.com/R3E-Network/recordstore/internal/app/domain/user"
	"github.com/R3E-Network/recordstore/internal/app/metrics"
	"github.com/R3E-Network/recordstore/internal/errors"
	internalhttputil "github.com/R3E-Network/recordstore/internal/httputil"
	"github.com/R3E-Network/recordstore/internal/logging"
	"github.com/R3E-Network/recordstore/internal/middleware"
)

// HealthCheck reports whether a dependency is reachable.
type HealthCheck func(ctx context.Context) error

// Options carries the collaborators the HTTP layer needs besides the
// application services.
type Options struct {
	Auth    *auth.Manager
	Uploads *middleware.UploadMiddleware
	// Audit nil keeps an in-memory log without persistence.
	Audit *AuditLog
	// Limiter nil disables rate limiting.
	Limiter     *middleware.RateLimiter
	CORSOrigins []string
	Health      map[string]HealthCheck
	Logger      *logging.Logger
}

// handler bundles HTTP endpoints for the application services.
type handler struct {
	app     *app.Application
	auth    *auth.Manager
	authn   *middleware.AuthMiddleware
	uploads *middleware.UploadMiddleware
	audit   *AuditLog
	limiter *middleware.RateLimiter
	health  map[string]HealthCheck
	log     *logging.Logger
}

// NewHandler returns the routed API wrapped in CORS, logging and metrics
// middleware.
func NewHandler(application *app.Application, opts Options) (http.Handler, error) {
	if application == nil {
		return nil, fmt.Errorf("application is required")
	}
	if opts.Auth == nil {
		return nil, fmt.Errorf("auth manager is required")
	}
	if opts.Uploads == nil {
		return nil, fmt.Errorf("upload middleware is required")
	}
	log := opts.Logger
	if log == nil {
		log = logging.NewDefault("httpapi")
	}
	audit := opts.Audit
	if audit == nil {
		audit = NewAuditLog(0)
	}

	h := &handler{
		app:     application,
		auth:    opts.Auth,
		authn:   middleware.NewAuthMiddleware(opts.Auth, log.Named("auth")),
		uploads: opts.Uploads,
		audit:   audit,
		limiter: opts.Limiter,
		health:  opts.Health,
		log:     log,
	}

	r := mux.NewRouter()
	r.Use(middleware.LoggingMiddleware(log), middleware.MetricsMiddleware())
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		internalhttputil.WriteError(w, req, errors.NotFound("route", ""))
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		internalhttputil.WriteErrorResponse(w, req, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method not allowed", nil)
	})

	r.HandleFunc("/healthz", h.healthz).Methods(http.MethodGet)
	r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)
	r.HandleFunc("/uploads/{name}", h.serveUpload).Methods(http.MethodGet, http.MethodHead)

	h.userRoutes(r)
	h.catalogRoutes(r)
	h.cartRoutes(r)
	h.orderRoutes(r)

	r.Handle("/admin/orders", h.admin(h.listAllOrders)).Methods(http.MethodGet)
	r.Handle("/admin/audit", h.admin(h.listAudit)).Methods(http.MethodGet)

	return middleware.NewCORSMiddleware(opts.CORSOrigins).Handler(r), nil
}

// public routes run without authentication, limited per client address.
func (h *handler) public(fn http.HandlerFunc) http.Handler {
	if h.limiter != nil {
		return h.limiter.Handler(fn)
	}
	return fn
}

// authenticated routes require a valid bearer token whose user still exists.
// The stored role replaces the token's claim. Rate limiting runs after
// authentication so buckets are keyed by user.
func (h *handler) authenticated(next http.Handler) http.Handler {
	next = h.audit.Middleware(next)
	if h.limiter != nil {
		next = h.limiter.Handler(next)
	}
	next = middleware.RefreshRole(h.storedRole, h.log)(next)
	return h.authn.Handler(next)
}

func (h *handler) storedRole(ctx context.Context, userID string) (string, error) {
	u, err := h.app.Users.Get(ctx, userID)
	if err != nil {
		return "", err
	}
	return string(u.Role), nil
}

func (h *handler) user(fn http.HandlerFunc) http.Handler {
	return h.authenticated(fn)
}

func (h *handler) admin(fn http.HandlerFunc) http.Handler {
	return h.authenticated(middleware.RequireRole(h.log, string(user.RoleAdmin))(fn))
}

// adminUpload stores the multipart field before fn runs. The role check
// comes first so rejected callers never write to disk.
func (h *handler) adminUpload(field string, fn http.HandlerFunc) http.Handler {
	guarded := middleware.RequireRole(h.log, string(user.RoleAdmin))(h.uploads.Handler(field)(fn))
	return h.authenticated(guarded)
}

func isAdmin(r *http.Request) bool {
	return middleware.GetUserRole(r) == string(user.RoleAdmin)
}

func (h *handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	if se := errors.GetServiceError(err); se == nil || se.HTTPStatus >= http.StatusInternalServerError {
		h.log.WithContext(r.Context()).WithError(err).
			WithField("path", r.URL.Path).
			WithField("method", r.Method).
			Error("request failed")
	}
	internalhttputil.WriteError(w, r, err)
}
