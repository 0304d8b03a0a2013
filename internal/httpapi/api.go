// Package httpapi is the HTTP layer: routing, middleware and handlers.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/guustavogomes/emprestimosdiario/internal/audit"
	"github.com/guustavogomes/emprestimosdiario/internal/auth"
	"github.com/guustavogomes/emprestimosdiario/internal/clients"
	"github.com/guustavogomes/emprestimosdiario/internal/obs"
)

// ReadyProbe checks the dependencies the service cannot run without.
type ReadyProbe struct {
	Ping func(ctx context.Context) error
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.Ping == nil {
		return nil
	}
	return rp.Ping(ctx)
}

// Config wires the services into the HTTP layer.
type Config struct {
	Auth     *auth.Service
	Tokens   *auth.TokenService
	Clients  *clients.Service
	Recorder *audit.Recorder
	Ready    ReadyProbe
	Version  string

	// Login rate limit, per client IP.
	LoginBurst     int
	LoginPerMinute int

	MaxBodyBytes int64
}

// API is the HTTP layer.
type API struct {
	mux      *http.ServeMux
	auth     *auth.Service
	tokens   *auth.TokenService
	clients  *clients.Service
	recorder *audit.Recorder
	ready    ReadyProbe
	version  string

	maxBodyBytes int64
	loginLimiter *ipLimiter
}

func New(cfg Config) *API {
	if cfg.LoginBurst <= 0 {
		cfg.LoginBurst = 5
	}
	if cfg.LoginPerMinute <= 0 {
		cfg.LoginPerMinute = 10
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 1 << 20
	}
	a := &API{
		mux:          http.NewServeMux(),
		auth:         cfg.Auth,
		tokens:       cfg.Tokens,
		clients:      cfg.Clients,
		recorder:     cfg.Recorder,
		ready:        cfg.Ready,
		version:      cfg.Version,
		maxBodyBytes: cfg.MaxBodyBytes,
		loginLimiter: newIPLimiter(cfg.LoginBurst, cfg.LoginPerMinute),
	}

	a.mux.HandleFunc("/healthz", a.Healthz)
	a.mux.HandleFunc("/readyz", a.Ready)
	a.mux.Handle("/metrics", obs.Handler())

	a.mux.HandleFunc("/api/auth/login", a.Login)
	a.mux.HandleFunc("/api/auth/logout", a.requireAuth(a.Logout))
	a.mux.HandleFunc("/api/auth/me", a.requireAuth(a.Me))

	a.mux.HandleFunc("/api/usuarios", a.UsersCollection)
	a.mux.HandleFunc("/api/usuarios/", a.UserItem)

	a.mux.HandleFunc("/api/perfis", a.ProfilesCollection)
	a.mux.HandleFunc("/api/perfis/", a.ProfileItem)
	a.mux.HandleFunc("/api/permissions", a.Permissions)

	a.mux.HandleFunc("/api/clientes", a.ClientsCollection)
	a.mux.HandleFunc("/api/clientes/registrar", a.RegisterClient)
	a.mux.HandleFunc("/api/clientes/", a.ClientItem)

	a.mux.HandleFunc("/api/audit-logs", a.AuditLogs)
	a.mux.HandleFunc("/api/dashboard/stats", a.requireAuth(a.DashboardStats))

	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	return a
}

// Handler wraps the mux with the middleware chain.
func (a *API) Handler() http.Handler {
	var h http.Handler = a.mux
	h = MaxBodyBytes(h, a.maxBodyBytes)
	h = Logging(h)
	h = RequestID(h)
	h = CORS(h)
	h = SecurityHeaders(h)
	return obs.Instrument(h)
}

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "emprestimosdiario-api",
		"version": a.version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	if !obs.Ready() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "not_ready"})
		return
	}
	if err := a.ready.Check(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
}

// --- helpers ---

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, errMsg string, details ...string) {
	body := map[string]any{"error": errMsg}
	if len(details) > 0 && details[0] != "" {
		body["message"] = details[0]
	}
	writeJSON(w, code, body)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "JSON inválido")
		return false
	}
	return true
}

func methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, "Método não permitido")
}

// pathTail returns the path segment after the prefix, without slashes:
// pathTail("/api/usuarios/abc", "/api/usuarios/") == "abc". An empty or
// nested remainder yields "".
func pathTail(path, prefix string) string {
	tail := strings.TrimPrefix(path, prefix)
	if tail == "" || strings.Contains(tail, "/") {
		return ""
	}
	return tail
}

// listMeta is the aggregate metadata attached to collection-read audit
// entries.
type listMeta struct {
	Total  int    `json:"total"`
	Label  string `json:"etiqueta,omitempty"`
	Search string `json:"search,omitempty"`
}

// actor resolves the acting identity for audit attribution. When the
// lookup fails the claims still identify the account.
func (a *API) actor(ctx context.Context, claims *auth.Claims) audit.Actor {
	ident, err := a.auth.GetIdentity(ctx, claims.IdentityID())
	if err != nil {
		return audit.Actor{ID: claims.IdentityID(), Name: claims.CPF}
	}
	return audit.Actor{ID: ident.ID, Name: ident.Name}
}

func isNotFound(err error) bool {
	return errors.Is(err, auth.ErrNotFound) || errors.Is(err, clients.ErrNotFound)
}

func isConflict(err error) bool {
	return errors.Is(err, auth.ErrConflict) || errors.Is(err, clients.ErrConflict)
}

func isInvalidInput(err error) bool {
	return errors.Is(err, auth.ErrInvalidInput) || errors.Is(err, clients.ErrInvalidInput)
}
