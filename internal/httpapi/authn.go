package httpapi

import (
	"fmt"
	"net/http"

	"github.com/guustavogomes/emprestimosdiario/internal/auth"
	"github.com/guustavogomes/emprestimosdiario/internal/obs"
)

// authedHandler receives the verified claims of the acting identity.
type authedHandler func(w http.ResponseWriter, r *http.Request, claims *auth.Claims)

// requireAuth gates a handler on a valid bearer token. A missing header
// and an invalid token produce distinct 401 messages; an invalid token
// never says why it is invalid.
func (a *API) requireAuth(next authedHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, ok := auth.ExtractBearerToken(r.Header.Get("Authorization"))
		if !ok {
			writeError(w, http.StatusUnauthorized, "Token não fornecido")
			return
		}
		claims, err := a.tokens.Verify(token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "Token inválido ou expirado")
			return
		}
		ctx := auth.ContextWithClaims(r.Context(), claims)
		ctx = auth.ContextWithToken(ctx, token)
		next(w, r.WithContext(ctx), claims)
	}
}

// requirePermission additionally requires one (resource, action) grant.
func (a *API) requirePermission(resource, action string, next authedHandler) http.HandlerFunc {
	return a.requireAuth(func(w http.ResponseWriter, r *http.Request, claims *auth.Claims) {
		allowed, err := a.auth.HasPermission(r.Context(), claims.IdentityID(), resource, action)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "Erro interno")
			return
		}
		if !allowed {
			obs.IncAuthzDenial(resource, action)
			writeError(w, http.StatusForbidden, "Acesso negado",
				fmt.Sprintf("Você não tem permissão para %s em %s", action, resource))
			return
		}
		next(w, r, claims)
	})
}

// requireAnyPermission passes when at least one of the checks is granted.
func (a *API) requireAnyPermission(checks []auth.PermissionCheck, next authedHandler) http.HandlerFunc {
	return a.requireAuth(func(w http.ResponseWriter, r *http.Request, claims *auth.Claims) {
		allowed, err := a.auth.HasAnyPermission(r.Context(), claims.IdentityID(), checks)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "Erro interno")
			return
		}
		if !allowed {
			for _, c := range checks {
				obs.IncAuthzDenial(c.Resource, c.Action)
			}
			writeError(w, http.StatusForbidden, "Acesso negado")
			return
		}
		next(w, r, claims)
	})
}
