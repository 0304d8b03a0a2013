package httpapi

import (
	"net/http"
	"time"

	"github.com/guustavogomes/emprestimosdiario/internal/audit"
	"github.com/guustavogomes/emprestimosdiario/internal/auth"
	"github.com/guustavogomes/emprestimosdiario/internal/clients"
	"github.com/guustavogomes/emprestimosdiario/internal/obs"
)

type clientPayload struct {
	Name            *string `json:"nome"`
	Phone           *string `json:"telefone"`
	CPF             *string `json:"cpf"`
	BirthDate       *string `json:"data_nascimento"`
	PostalCode      *string `json:"cep"`
	Street          *string `json:"endereco"`
	Number          *string `json:"numero"`
	District        *string `json:"bairro"`
	City            *string `json:"cidade"`
	PixKey          *string `json:"chave_pix"`
	EmergencyName1  *string `json:"nome_emergencia1"`
	EmergencyPhone1 *string `json:"telefone_emergencia1"`
	EmergencyName2  *string `json:"nome_emergencia2"`
	EmergencyPhone2 *string `json:"telefone_emergencia2"`
	Label           *string `json:"etiqueta"`
	Password        *string `json:"senha"`
}

func (p clientPayload) toNewClient() (clients.NewClient, bool) {
	in := clients.NewClient{}
	set := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}
	set(&in.Name, p.Name)
	set(&in.Phone, p.Phone)
	set(&in.CPF, p.CPF)
	set(&in.PostalCode, p.PostalCode)
	set(&in.Street, p.Street)
	set(&in.Number, p.Number)
	set(&in.District, p.District)
	set(&in.City, p.City)
	set(&in.PixKey, p.PixKey)
	set(&in.EmergencyName1, p.EmergencyName1)
	set(&in.EmergencyPhone1, p.EmergencyPhone1)
	set(&in.EmergencyName2, p.EmergencyName2)
	set(&in.EmergencyPhone2, p.EmergencyPhone2)
	set(&in.Label, p.Label)
	if p.BirthDate != nil && *p.BirthDate != "" {
		birth, ok := parseDate(*p.BirthDate)
		if !ok {
			return in, false
		}
		in.BirthDate = &birth
	}
	return in, true
}

// parseDate accepts both plain dates and full RFC 3339 timestamps.
func parseDate(v string) (time.Time, bool) {
	if t, err := time.Parse("2006-01-02", v); err == nil {
		return t, true
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, true
	}
	return time.Time{}, false
}

// anyClientAccess grants the client listing to loan operators too: who
// can read loans needs to see who the loans belong to.
var anyClientAccess = []auth.PermissionCheck{
	{Resource: auth.ResourceClients, Action: auth.ActionRead},
	{Resource: auth.ResourceLoans, Action: auth.ActionRead},
}

// ClientsCollection handles GET (list) and POST (create) on /api/clientes.
func (a *API) ClientsCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		a.requireAnyPermission(anyClientAccess, a.listClients)(w, r)
	case http.MethodPost:
		a.requirePermission(auth.ResourceClients, auth.ActionCreate, a.createClient)(w, r)
	default:
		methodNotAllowed(w)
	}
}

func (a *API) listClients(w http.ResponseWriter, r *http.Request, claims *auth.Claims) {
	filter := clients.Filter{
		Label:  r.URL.Query().Get("etiqueta"),
		Search: r.URL.Query().Get("search"),
	}
	result, err := a.clients.List(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Erro ao listar clientes")
		return
	}
	a.recorder.RecordList(a.actor(r.Context(), claims), auth.ResourceClients, listMeta{
		Total:  len(result),
		Label:  filter.Label,
		Search: filter.Search,
	}, audit.InfoFromRequest(r))
	writeJSON(w, http.StatusOK, result)
}

func (a *API) createClient(w http.ResponseWriter, r *http.Request, claims *auth.Claims) {
	var req clientPayload
	if !decodeJSON(w, r, &req) {
		return
	}
	in, ok := req.toNewClient()
	if !ok {
		writeError(w, http.StatusBadRequest, "Data de nascimento inválida")
		return
	}
	client, err := a.clients.Create(r.Context(), in)
	if err != nil {
		switch {
		case isConflict(err):
			writeError(w, http.StatusBadRequest, "CPF já cadastrado")
		case isInvalidInput(err):
			writeError(w, http.StatusBadRequest, "Nome, telefone e CPF são obrigatórios")
		default:
			writeError(w, http.StatusInternalServerError, "Erro ao criar cliente")
		}
		return
	}
	a.recorder.RecordCreate(a.actor(r.Context(), claims), auth.ResourceClients, client.ID, client.Name, audit.InfoFromRequest(r))
	writeJSON(w, http.StatusCreated, client)
}

// ClientItem handles GET/PUT/DELETE on /api/clientes/{id}.
func (a *API) ClientItem(w http.ResponseWriter, r *http.Request) {
	id := pathTail(r.URL.Path, "/api/clientes/")
	if id == "" {
		http.NotFound(w, r)
		return
	}
	switch r.Method {
	case http.MethodGet:
		a.requirePermission(auth.ResourceClients, auth.ActionRead, func(w http.ResponseWriter, r *http.Request, claims *auth.Claims) {
			a.getClient(w, r, claims, id)
		})(w, r)
	case http.MethodPut:
		a.requirePermission(auth.ResourceClients, auth.ActionUpdate, func(w http.ResponseWriter, r *http.Request, claims *auth.Claims) {
			a.updateClient(w, r, claims, id)
		})(w, r)
	case http.MethodDelete:
		a.requirePermission(auth.ResourceClients, auth.ActionDelete, func(w http.ResponseWriter, r *http.Request, claims *auth.Claims) {
			a.deleteClient(w, r, claims, id)
		})(w, r)
	default:
		methodNotAllowed(w)
	}
}

func (a *API) getClient(w http.ResponseWriter, r *http.Request, claims *auth.Claims, id string) {
	client, err := a.clients.Get(r.Context(), id)
	if err != nil {
		if isNotFound(err) {
			writeError(w, http.StatusNotFound, "Cliente não encontrado")
			return
		}
		writeError(w, http.StatusInternalServerError, "Erro ao buscar cliente")
		return
	}
	a.recorder.RecordRead(a.actor(r.Context(), claims), auth.ResourceClients, client.ID, client.Name, audit.InfoFromRequest(r))
	writeJSON(w, http.StatusOK, client)
}

func (a *API) updateClient(w http.ResponseWriter, r *http.Request, claims *auth.Claims, id string) {
	var req clientPayload
	if !decodeJSON(w, r, &req) {
		return
	}
	upd := clients.Update{
		Name:            req.Name,
		Phone:           req.Phone,
		CPF:             req.CPF,
		PostalCode:      req.PostalCode,
		Street:          req.Street,
		Number:          req.Number,
		District:        req.District,
		City:            req.City,
		PixKey:          req.PixKey,
		EmergencyName1:  req.EmergencyName1,
		EmergencyPhone1: req.EmergencyPhone1,
		EmergencyName2:  req.EmergencyName2,
		EmergencyPhone2: req.EmergencyPhone2,
		Label:           req.Label,
	}
	if req.BirthDate != nil && *req.BirthDate != "" {
		birth, ok := parseDate(*req.BirthDate)
		if !ok {
			writeError(w, http.StatusBadRequest, "Data de nascimento inválida")
			return
		}
		upd.BirthDate = &birth
	}

	client, err := a.clients.Update(r.Context(), id, upd)
	if err != nil {
		switch {
		case isNotFound(err):
			writeError(w, http.StatusNotFound, "Cliente não encontrado")
		case isConflict(err):
			writeError(w, http.StatusBadRequest, "CPF já cadastrado para outro cliente")
		case isInvalidInput(err):
			writeError(w, http.StatusBadRequest, "Dados inválidos", err.Error())
		default:
			writeError(w, http.StatusInternalServerError, "Erro ao atualizar cliente")
		}
		return
	}
	a.recorder.RecordUpdate(a.actor(r.Context(), claims), auth.ResourceClients, client.ID, client.Name, audit.InfoFromRequest(r))
	writeJSON(w, http.StatusOK, client)
}

func (a *API) deleteClient(w http.ResponseWriter, r *http.Request, claims *auth.Claims, id string) {
	client, err := a.clients.Get(r.Context(), id)
	if err != nil {
		if isNotFound(err) {
			writeError(w, http.StatusNotFound, "Cliente não encontrado")
			return
		}
		writeError(w, http.StatusInternalServerError, "Erro ao deletar cliente")
		return
	}
	if err := a.clients.Delete(r.Context(), id, claims.IdentityID()); err != nil {
		if isNotFound(err) {
			writeError(w, http.StatusNotFound, "Cliente não encontrado")
			return
		}
		writeError(w, http.StatusInternalServerError, "Erro ao deletar cliente")
		return
	}
	a.recorder.RecordDelete(a.actor(r.Context(), claims), auth.ResourceClients, client.ID, client.Name, audit.InfoFromRequest(r))
	writeJSON(w, http.StatusOK, map[string]any{"message": "Cliente deletado com sucesso"})
}

// RegisterClient is the public self-service sign-up: the customer record
// and its CLIENT login land in one transaction.
func (a *API) RegisterClient(w http.ResponseWriter, r *http.Request) {
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

	var req clientPayload
	if !decodeJSON(w, r, &req) {
		return
	}
	in, ok := req.toNewClient()
	if !ok {
		writeError(w, http.StatusBadRequest, "Data de nascimento inválida")
		return
	}
	reg := clients.Registration{NewClient: in}
	if req.Password != nil {
		reg.Password = *req.Password
	}

	client, err := a.clients.Register(r.Context(), reg)
	if err != nil {
		switch {
		case isConflict(err):
			writeError(w, http.StatusBadRequest, "CPF já cadastrado")
		case isInvalidInput(err):
			writeError(w, http.StatusBadRequest, "Dados inválidos", err.Error())
		default:
			writeError(w, http.StatusInternalServerError, "Erro ao registrar cliente")
		}
		return
	}
	a.recorder.RecordCreate(audit.Actor{ID: client.ID, Name: client.Name}, auth.ResourceClients, client.ID, client.Name, audit.InfoFromRequest(r))
	writeJSON(w, http.StatusCreated, client)
}
