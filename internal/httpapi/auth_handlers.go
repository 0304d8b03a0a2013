package httpapi

import (
	"errors"
	"net/http"

	"github.com/guustavogomes/emprestimosdiario/internal/audit"
	"github.com/guustavogomes/emprestimosdiario/internal/auth"
	"github.com/guustavogomes/emprestimosdiario/internal/obs"
)

type loginRequest struct {
	CPF      string `json:"cpf"`
	Password string `json:"senha"`
}

type loginResponse struct {
	Token string               `json:"token"`
	User  auth.IdentitySummary `json:"user"`
}

// Login authenticates a CPF/password pair and issues a session token.
// Failed attempts share one message and are not audited; the rate
// limiter is what slows guessing down.
func (a *API) Login(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if !a.loginLimiter.Allow(clientIP(r)) {
		obs.IncRateLimited()
		w.Header().Set("Retry-After", "60")
		writeError(w, http.StatusTooManyRequests, "Muitas tentativas, aguarde um momento")
		return
	}

	var req loginRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	summary, err := a.auth.Authenticate(r.Context(), req.CPF, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrUnauthorized) {
			writeError(w, http.StatusUnauthorized, "CPF ou senha incorretos")
			return
		}
		writeError(w, http.StatusInternalServerError, "Erro interno")
		return
	}

	token, _, err := a.tokens.Issue(summary.ID, summary.CPF, summary.Role)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Erro interno")
		return
	}

	a.recorder.RecordLogin(audit.Actor{ID: summary.ID, Name: summary.Name}, audit.InfoFromRequest(r))
	writeJSON(w, http.StatusOK, loginResponse{Token: token, User: summary})
}

// Logout audits the sign-out. The token itself stays valid until expiry;
// the client is expected to discard it.
func (a *API) Logout(w http.ResponseWriter, r *http.Request, claims *auth.Claims) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	a.recorder.RecordLogout(a.actor(r.Context(), claims), audit.InfoFromRequest(r))
	writeJSON(w, http.StatusOK, map[string]any{"message": "Logout realizado com sucesso"})
}

// Me returns the acting identity with its resolved permission set.
func (a *API) Me(w http.ResponseWriter, r *http.Request, claims *auth.Claims) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	summary, err := a.auth.Summarize(r.Context(), claims.IdentityID())
	if err != nil {
		if errors.Is(err, auth.ErrNotFound) {
			writeError(w, http.StatusUnauthorized, "Token inválido ou expirado")
			return
		}
		writeError(w, http.StatusInternalServerError, "Erro interno")
		return
	}
	writeJSON(w, http.StatusOK, summary)
}
