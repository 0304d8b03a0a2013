package httpapi

import (
	"net/http"

	"github.com/guustavogomes/emprestimosdiario/internal/audit"
	"github.com/guustavogomes/emprestimosdiario/internal/auth"
)

type profilePayload struct {
	Name          *string   `json:"nome"`
	Description   *string   `json:"descricao"`
	PermissionIDs *[]string `json:"permission_ids"`
}

// ProfilesCollection handles GET (list) and POST (create) on /api/perfis.
func (a *API) ProfilesCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		a.requirePermission(auth.ResourceProfiles, auth.ActionRead, a.listProfiles)(w, r)
	case http.MethodPost:
		a.requirePermission(auth.ResourceProfiles, auth.ActionCreate, a.createProfile)(w, r)
	default:
		methodNotAllowed(w)
	}
}

func (a *API) listProfiles(w http.ResponseWriter, r *http.Request, claims *auth.Claims) {
	profiles, err := a.auth.ListProfiles(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Erro ao listar perfis")
		return
	}
	a.recorder.RecordList(a.actor(r.Context(), claims), auth.ResourceProfiles, listMeta{Total: len(profiles)}, audit.InfoFromRequest(r))
	writeJSON(w, http.StatusOK, profiles)
}

func (a *API) createProfile(w http.ResponseWriter, r *http.Request, claims *auth.Claims) {
	var req profilePayload
	if !decodeJSON(w, r, &req) {
		return
	}
	name, description := "", ""
	if req.Name != nil {
		name = *req.Name
	}
	if req.Description != nil {
		description = *req.Description
	}
	var permissionIDs []string
	if req.PermissionIDs != nil {
		permissionIDs = *req.PermissionIDs
	}

	profile, err := a.auth.CreateProfile(r.Context(), name, description, claims.IdentityID(), permissionIDs)
	if err != nil {
		switch {
		case isConflict(err):
			writeError(w, http.StatusBadRequest, "Já existe um perfil com esse nome")
		case isInvalidInput(err):
			writeError(w, http.StatusBadRequest, "Dados inválidos", err.Error())
		case isNotFound(err):
			writeError(w, http.StatusBadRequest, "Permissão inexistente")
		default:
			writeError(w, http.StatusInternalServerError, "Erro ao criar perfil")
		}
		return
	}
	a.recorder.RecordCreate(a.actor(r.Context(), claims), auth.ResourceProfiles, profile.ID, profile.Name, audit.InfoFromRequest(r))
	writeJSON(w, http.StatusCreated, profile)
}

// ProfileItem handles GET/PUT/DELETE on /api/perfis/{id}.
func (a *API) ProfileItem(w http.ResponseWriter, r *http.Request) {
	id := pathTail(r.URL.Path, "/api/perfis/")
	if id == "" {
		http.NotFound(w, r)
		return
	}
	switch r.Method {
	case http.MethodGet:
		a.requirePermission(auth.ResourceProfiles, auth.ActionRead, func(w http.ResponseWriter, r *http.Request, claims *auth.Claims) {
			a.getProfile(w, r, claims, id)
		})(w, r)
	case http.MethodPut:
		a.requirePermission(auth.ResourceProfiles, auth.ActionUpdate, func(w http.ResponseWriter, r *http.Request, claims *auth.Claims) {
			a.updateProfile(w, r, claims, id)
		})(w, r)
	case http.MethodDelete:
		a.requirePermission(auth.ResourceProfiles, auth.ActionDelete, func(w http.ResponseWriter, r *http.Request, claims *auth.Claims) {
			a.deleteProfile(w, r, claims, id)
		})(w, r)
	default:
		methodNotAllowed(w)
	}
}

func (a *API) getProfile(w http.ResponseWriter, r *http.Request, _ *auth.Claims, id string) {
	profile, err := a.auth.GetProfile(r.Context(), id)
	if err != nil {
		if isNotFound(err) {
			writeError(w, http.StatusNotFound, "Perfil não encontrado")
			return
		}
		writeError(w, http.StatusInternalServerError, "Erro ao buscar perfil")
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func (a *API) updateProfile(w http.ResponseWriter, r *http.Request, claims *auth.Claims, id string) {
	var req profilePayload
	if !decodeJSON(w, r, &req) {
		return
	}
	patch := auth.ProfilePatch{
		Name:          req.Name,
		Description:   req.Description,
		PermissionIDs: req.PermissionIDs,
	}
	profile, err := a.auth.UpdateProfile(r.Context(), id, patch, claims.IdentityID())
	if err != nil {
		switch {
		case isNotFound(err):
			writeError(w, http.StatusNotFound, "Perfil não encontrado")
		case isConflict(err):
			writeError(w, http.StatusBadRequest, "Já existe um perfil com esse nome")
		case isInvalidInput(err):
			writeError(w, http.StatusBadRequest, "Dados inválidos", err.Error())
		default:
			writeError(w, http.StatusInternalServerError, "Erro ao atualizar perfil")
		}
		return
	}
	a.recorder.RecordUpdate(a.actor(r.Context(), claims), auth.ResourceProfiles, profile.ID, profile.Name, audit.InfoFromRequest(r))
	writeJSON(w, http.StatusOK, profile)
}

func (a *API) deleteProfile(w http.ResponseWriter, r *http.Request, claims *auth.Claims, id string) {
	profile, err := a.auth.GetProfile(r.Context(), id)
	if err != nil {
		if isNotFound(err) {
			writeError(w, http.StatusNotFound, "Perfil não encontrado")
			return
		}
		writeError(w, http.StatusInternalServerError, "Erro ao deletar perfil")
		return
	}
	if err := a.auth.DeleteProfile(r.Context(), id, claims.IdentityID()); err != nil {
		switch {
		case isNotFound(err):
			writeError(w, http.StatusNotFound, "Perfil não encontrado")
		case isConflict(err):
			writeError(w, http.StatusBadRequest, "Não é possível deletar: existem usuários vinculados a este perfil")
		default:
			writeError(w, http.StatusInternalServerError, "Erro ao deletar perfil")
		}
		return
	}
	a.recorder.RecordDelete(a.actor(r.Context(), claims), auth.ResourceProfiles, profile.ID, profile.Name, audit.InfoFromRequest(r))
	writeJSON(w, http.StatusOK, map[string]any{"message": "Perfil deletado com sucesso"})
}

// Permissions lists the seeded catalog on GET /api/permissions.
func (a *API) Permissions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	a.requirePermission(auth.ResourceProfiles, auth.ActionRead, func(w http.ResponseWriter, r *http.Request, _ *auth.Claims) {
		perms, err := a.auth.ListPermissions(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, "Erro ao listar permissões")
			return
		}
		writeJSON(w, http.StatusOK, perms)
	})(w, r)
}
