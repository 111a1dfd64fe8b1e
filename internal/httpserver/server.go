package httpserver

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"queueapp/queue-web/internal/audit"
	"queueapp/queue-web/internal/config"
	"queueapp/queue-web/internal/identity"
	"queueapp/queue-web/internal/session"
	"queueapp/queue-web/internal/supabase"
	"queueapp/queue-web/internal/tasks"
)

// IdentityProvider is the part of the auth API the page handlers call.
type IdentityProvider interface {
	SignInWithPassword(ctx context.Context, email, password string) (*supabase.AuthResult, error)
	SignUp(ctx context.Context, email, password string, metadata map[string]any) (*supabase.AuthResult, error)
	ResetPasswordForEmail(ctx context.Context, email, redirectTo string) error
	SignOut(ctx context.Context, accessToken, refreshToken string) error
	UpdateUserMetadata(ctx context.Context, accessToken string, metadata map[string]any) (*identity.Record, error)
}

type TaskService interface {
	BuildView(ctx context.Context, owner tasks.Owner, f tasks.Filters) (tasks.View, error)
	Profile(ctx context.Context, owner tasks.Owner) (tasks.ProfileView, error)
	Create(ctx context.Context, owner tasks.Owner, d tasks.Draft) (tasks.Task, error)
	Update(ctx context.Context, owner tasks.Owner, id string, p tasks.Patch) (tasks.Task, error)
	Delete(ctx context.Context, owner tasks.Owner, id string) error
	Toggle(ctx context.Context, owner tasks.Owner, id string, status tasks.Status) (tasks.Task, error)
	ClearCompleted(ctx context.Context, owner tasks.Owner) (int, error)
}

// SessionResolver puts the request's auth.State into its context.
type SessionResolver interface {
	Middleware(next http.Handler) http.Handler
}

type AuditLogger interface {
	Log(e audit.Event) error
}

// Metrics is optional; nil disables /metrics and request instrumentation.
type Metrics interface {
	Middleware(next http.Handler) http.Handler
	Handler() http.Handler
}

type Deps struct {
	Identity IdentityProvider
	Tasks    TaskService
	Sessions SessionResolver
	Codec    *session.Codec
	Audit    AuditLogger
	Metrics  Metrics
	Logger   *slog.Logger
	// Ready reports whether backing stores are reachable. Nil means always ready.
	Ready func(ctx context.Context) error
}

type Server struct {
	httpServer *http.Server
}

func New(cfg config.HTTPConfig, deps Deps) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:         cfg.Addr,
			Handler:      NewHandler(deps),
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
			IdleTimeout:  60 * time.Second,
		},
	}
}

func NewHandler(deps Deps) http.Handler {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	h := &handlers{deps: deps, log: deps.Logger}

	r := chi.NewRouter()
	r.Use(loggingMiddleware(deps.Logger))
	if deps.Metrics != nil {
		r.Use(deps.Metrics.Middleware)
		r.Method(http.MethodGet, "/metrics", deps.Metrics.Handler())
	}

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if deps.Ready != nil {
			if err := deps.Ready(r.Context()); err != nil {
				h.log.WarnContext(r.Context(), "readiness check failed", "error", err)
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	})

	r.Group(func(r chi.Router) {
		r.Use(deps.Sessions.Middleware)
		h.registerAuthRoutes(r)

		r.Group(func(r chi.Router) {
			r.Use(requireUser)
			h.registerTaskRoutes(r)
			h.registerProfileRoutes(r)
		})
	})

	return r
}

func (s *Server) Start() error {
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

type handlers struct {
	deps Deps
	log  *slog.Logger
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"message": message})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(statusCode int) {
	r.status = statusCode
	r.ResponseWriter.WriteHeader(statusCode)
}

func loggingMiddleware(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			reqID := strings.TrimSpace(r.Header.Get("X-Request-Id"))
			if reqID == "" {
				reqID = newRequestID()
			}
			w.Header().Set("X-Request-Id", reqID)
			r = r.WithContext(context.WithValue(r.Context(), requestIDKey{}, reqID))
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)

			log.InfoContext(r.Context(), "http request",
				"request_id", reqID,
				"method", r.Method,
				"path", r.URL.Path,
				"status", rec.status,
				"duration", time.Since(start),
			)
		})
	}
}

type requestIDKey struct{}

func newRequestID() string {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		return fmt.Sprintf("req-%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(b)
}

func requestIDFromContext(ctx context.Context) string {
	s, _ := ctx.Value(requestIDKey{}).(string)
	return s
}

func clientIP(r *http.Request) string {
	if fwd := strings.TrimSpace(r.Header.Get("X-Forwarded-For")); fwd != "" {
		parts := strings.Split(fwd, ",")
		return strings.TrimSpace(parts[0])
	}
	if realIP := strings.TrimSpace(r.Header.Get("X-Real-IP")); realIP != "" {
		return realIP
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil {
		return host
	}
	return r.RemoteAddr
}

// requestOrigin rebuilds scheme://host for links sent in emails.
func requestOrigin(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := strings.TrimSpace(r.Header.Get("X-Forwarded-Proto")); proto != "" {
		scheme = strings.ToLower(strings.TrimSpace(strings.Split(proto, ",")[0]))
	}
	return scheme + "://" + r.Host
}

func (h *handlers) audit(r *http.Request, actor, action, target, outcome, detail string) {
	if h.deps.Audit == nil {
		return
	}
	err := h.deps.Audit.Log(audit.Event{
		Actor:     actor,
		Action:    action,
		Target:    target,
		Outcome:   outcome,
		RequestID: requestIDFromContext(r.Context()),
		IP:        clientIP(r),
		Detail:    strings.TrimSpace(detail),
	})
	if err != nil {
		h.log.ErrorContext(r.Context(), "audit write failed", "action", action, "error", err)
	}
}
