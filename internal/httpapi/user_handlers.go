package httpapi

import (
	"net/http"

	"github.com/guustavogomes/emprestimosdiario/internal/audit"
	"github.com/guustavogomes/emprestimosdiario/internal/auth"
)

type userPayload struct {
	Name      *string `json:"nome"`
	Email     *string `json:"email"`
	CPF       *string `json:"cpf"`
	Password  *string `json:"senha"`
	Role      *string `json:"tipo"`
	ProfileID *string `json:"profile_id"`
}

// UsersCollection handles GET (list) and POST (create) on /api/usuarios.
func (a *API) UsersCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		a.requirePermission(auth.ResourceUsers, auth.ActionRead, a.listUsers)(w, r)
	case http.MethodPost:
		a.requirePermission(auth.ResourceUsers, auth.ActionCreate, a.createUser)(w, r)
	default:
		methodNotAllowed(w)
	}
}

func (a *API) listUsers(w http.ResponseWriter, r *http.Request, claims *auth.Claims) {
	identities, err := a.auth.ListIdentities(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Erro ao listar usuários")
		return
	}
	a.recorder.RecordList(a.actor(r.Context(), claims), auth.ResourceUsers, listMeta{Total: len(identities)}, audit.InfoFromRequest(r))
	writeJSON(w, http.StatusOK, identities)
}

func (a *API) createUser(w http.ResponseWriter, r *http.Request, claims *auth.Claims) {
	var req userPayload
	if !decodeJSON(w, r, &req) {
		return
	}
	in := auth.NewIdentity{}
	if req.Name != nil {
		in.Name = *req.Name
	}
	if req.Email != nil {
		in.Email = *req.Email
	}
	if req.CPF != nil {
		in.CPF = *req.CPF
	}
	if req.Password != nil {
		in.Password = *req.Password
	}
	if req.Role != nil {
		in.Role = auth.RoleTag(*req.Role)
	}
	if req.ProfileID != nil {
		in.ProfileID = *req.ProfileID
	}

	ident, err := a.auth.CreateIdentity(r.Context(), in)
	if err != nil {
		switch {
		case isConflict(err):
			writeError(w, http.StatusBadRequest, "CPF já cadastrado")
		case isInvalidInput(err):
			writeError(w, http.StatusBadRequest, "Dados inválidos", err.Error())
		default:
			writeError(w, http.StatusInternalServerError, "Erro ao criar usuário")
		}
		return
	}
	a.recorder.RecordCreate(a.actor(r.Context(), claims), auth.ResourceUsers, ident.ID, ident.Name, audit.InfoFromRequest(r))
	writeJSON(w, http.StatusCreated, ident)
}

// UserItem handles GET/PUT/DELETE on /api/usuarios/{id}.
func (a *API) UserItem(w http.ResponseWriter, r *http.Request) {
	id := pathTail(r.URL.Path, "/api/usuarios/")
	if id == "" {
		http.NotFound(w, r)
		return
	}
	switch r.Method {
	case http.MethodGet:
		a.requirePermission(auth.ResourceUsers, auth.ActionRead, func(w http.ResponseWriter, r *http.Request, claims *auth.Claims) {
			a.getUser(w, r, claims, id)
		})(w, r)
	case http.MethodPut:
		a.requirePermission(auth.ResourceUsers, auth.ActionUpdate, func(w http.ResponseWriter, r *http.Request, claims *auth.Claims) {
			a.updateUser(w, r, claims, id)
		})(w, r)
	case http.MethodDelete:
		a.requirePermission(auth.ResourceUsers, auth.ActionDelete, func(w http.ResponseWriter, r *http.Request, claims *auth.Claims) {
			a.deleteUser(w, r, claims, id)
		})(w, r)
	default:
		methodNotAllowed(w)
	}
}

func (a *API) getUser(w http.ResponseWriter, r *http.Request, _ *auth.Claims, id string) {
	ident, err := a.auth.GetIdentity(r.Context(), id)
	if err != nil {
		if isNotFound(err) {
			writeError(w, http.StatusNotFound, "Usuário não encontrado")
			return
		}
		writeError(w, http.StatusInternalServerError, "Erro ao buscar usuário")
		return
	}
	writeJSON(w, http.StatusOK, ident)
}

func (a *API) updateUser(w http.ResponseWriter, r *http.Request, claims *auth.Claims, id string) {
	var req userPayload
	if !decodeJSON(w, r, &req) {
		return
	}
	patch := auth.IdentityPatch{
		Name:      req.Name,
		Email:     req.Email,
		CPF:       req.CPF,
		Password:  req.Password,
		ProfileID: req.ProfileID,
	}
	if req.Role != nil {
		role := auth.RoleTag(*req.Role)
		patch.Role = &role
	}

	ident, err := a.auth.UpdateIdentity(r.Context(), id, patch)
	if err != nil {
		switch {
		case isNotFound(err):
			writeError(w, http.StatusNotFound, "Usuário não encontrado")
		case isConflict(err):
			writeError(w, http.StatusBadRequest, "CPF já cadastrado")
		case isInvalidInput(err):
			writeError(w, http.StatusBadRequest, "Dados inválidos", err.Error())
		default:
			writeError(w, http.StatusInternalServerError, "Erro ao atualizar usuário")
		}
		return
	}
	a.recorder.RecordUpdate(a.actor(r.Context(), claims), auth.ResourceUsers, ident.ID, ident.Name, audit.InfoFromRequest(r))
	writeJSON(w, http.StatusOK, ident)
}

func (a *API) deleteUser(w http.ResponseWriter, r *http.Request, claims *auth.Claims, id string) {
	// Fetch first so the audit entry can carry the name.
	ident, err := a.auth.GetIdentity(r.Context(), id)
	if err != nil {
		if isNotFound(err) {
			writeError(w, http.StatusNotFound, "Usuário não encontrado")
			return
		}
		writeError(w, http.StatusInternalServerError, "Erro ao deletar usuário")
		return
	}
	if err := a.auth.DeleteIdentity(r.Context(), id, claims.IdentityID()); err != nil {
		switch {
		case isNotFound(err):
			writeError(w, http.StatusNotFound, "Usuário não encontrado")
		case isInvalidInput(err):
			writeError(w, http.StatusBadRequest, "Você não pode deletar seu próprio usuário")
		default:
			writeError(w, http.StatusInternalServerError, "Erro ao deletar usuário")
		}
		return
	}
	a.recorder.RecordDelete(a.actor(r.Context(), claims), auth.ResourceUsers, ident.ID, ident.Name, audit.InfoFromRequest(r))
	writeJSON(w, http.StatusOK, map[string]any{"message": "Usuário deletado com sucesso"})
}
