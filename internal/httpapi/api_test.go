package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/guustavogomes/emprestimosdiario/internal/audit"
	"github.com/guustavogomes/emprestimosdiario/internal/auth"
	"github.com/guustavogomes/emprestimosdiario/internal/clients"
	"github.com/guustavogomes/emprestimosdiario/internal/obs"
)

type testEnv struct {
	t          *testing.T
	handler    http.Handler
	auth       *auth.Service
	authStore  *auth.InMemoryStore
	clients    *clients.Service
	recorder   *audit.Recorder
	auditStore *audit.InMemoryStore
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()

	authStore := auth.NewInMemoryStore()
	authSvc, err := auth.NewService(authStore)
	if err != nil {
		t.Fatalf("auth service: %v", err)
	}
	if err := authSvc.EnsureBuiltins(ctx); err != nil {
		t.Fatalf("seed permissions: %v", err)
	}

	tokens, err := auth.NewTokenService(auth.TokenConfig{Secret: "test-secret", Issuer: "emprestimosdiario"})
	if err != nil {
		t.Fatalf("token service: %v", err)
	}

	clientStore := clients.NewInMemoryStore(authStore)
	clientSvc, err := clients.NewService(clientStore, clientStore)
	if err != nil {
		t.Fatalf("client service: %v", err)
	}

	auditStore := audit.NewInMemoryStore()
	recorder := audit.NewRecorder(auditStore, 64)
	t.Cleanup(recorder.Close)

	api := New(Config{
		Auth:     authSvc,
		Tokens:   tokens,
		Clients:  clientSvc,
		Recorder: recorder,
		Version:  "test",
	})
	return &testEnv{
		t:          t,
		handler:    api.Handler(),
		auth:       authSvc,
		authStore:  authStore,
		clients:    clientSvc,
		recorder:   recorder,
		auditStore: auditStore,
	}
}

func (e *testEnv) do(method, path, token string, body any) (int, map[string]any) {
	e.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			e.t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)

	var out map[string]any
	if rec.Body.Len() > 0 {
		if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
			e.t.Fatalf("decode response %q: %v", rec.Body.String(), err)
		}
	}
	return rec.Code, out
}

// doList is for endpoints that answer with a JSON array.
func (e *testEnv) doList(method, path, token string) (int, []map[string]any) {
	e.t.Helper()
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)

	var out []map[string]any
	if rec.Code == http.StatusOK {
		if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
			e.t.Fatalf("decode list %q: %v", rec.Body.String(), err)
		}
	}
	return rec.Code, out
}

func (e *testEnv) seedAdmin() auth.Identity {
	e.t.Helper()
	ident, err := e.auth.CreateIdentity(context.Background(), auth.NewIdentity{
		Name:     "Admin Master",
		CPF:      "00000000001",
		Password: "senha-admin",
		Role:     auth.RoleAdmin,
	})
	if err != nil {
		e.t.Fatalf("seed admin: %v", err)
	}
	return ident
}

func (e *testEnv) seedAnalyst(pairs ...[2]string) auth.Identity {
	e.t.Helper()
	ctx := context.Background()
	var permIDs []string
	for _, p := range pairs {
		permIDs = append(permIDs, e.authStore.PermissionID(p[0], p[1]))
	}
	profile, err := e.auth.CreateProfile(ctx, "Analista Teste", "", "seed", permIDs)
	if err != nil {
		e.t.Fatalf("seed profile: %v", err)
	}
	ident, err := e.auth.CreateIdentity(ctx, auth.NewIdentity{
		Name:      "Ana Analista",
		CPF:       "11111111111",
		Password:  "senha-ana",
		Role:      auth.RoleAnalyst,
		ProfileID: profile.ID,
	})
	if err != nil {
		e.t.Fatalf("seed analyst: %v", err)
	}
	return ident
}

func (e *testEnv) login(cpf, password string) string {
	e.t.Helper()
	code, body := e.do(http.MethodPost, "/api/auth/login", "", map[string]string{"cpf": cpf, "senha": password})
	if code != http.StatusOK {
		e.t.Fatalf("login %s: status %d body %v", cpf, code, body)
	}
	token, _ := body["token"].(string)
	if token == "" {
		e.t.Fatalf("login %s: empty token", cpf)
	}
	return token
}

// waitForAudit blocks until the trail holds at least n entries; the
// recorder persists asynchronously.
func (e *testEnv) waitForAudit(n int) {
	e.t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if e.auditStore.Len() >= n {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	e.t.Fatalf("audit trail never reached %d entries (have %d)", n, e.auditStore.Len())
}

func TestHealthz(t *testing.T) {
	env := newTestEnv(t)
	code, body := env.do(http.MethodGet, "/healthz", "", nil)
	if code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if body["service"] != "emprestimosdiario-api" || body["version"] != "test" {
		t.Fatalf("unexpected body: %v", body)
	}
}

func TestReadyGate(t *testing.T) {
	env := newTestEnv(t)
	obs.SetReady(false)
	if code, _ := env.do(http.MethodGet, "/readyz", "", nil); code != http.StatusServiceUnavailable {
		t.Fatalf("not-ready status = %d", code)
	}
	obs.SetReady(true)
	if code, _ := env.do(http.MethodGet, "/readyz", "", nil); code != http.StatusOK {
		t.Fatalf("ready status = %d", code)
	}
}

func TestLoginFlow(t *testing.T) {
	env := newTestEnv(t)
	env.seedAdmin()

	code, body := env.do(http.MethodPost, "/api/auth/login", "", map[string]string{"cpf": "00000000001", "senha": "errada"})
	if code != http.StatusUnauthorized || body["error"] != "CPF ou senha incorretos" {
		t.Fatalf("bad password: status %d body %v", code, body)
	}

	token := env.login("000.000.000-01", "senha-admin")

	code, body = env.do(http.MethodGet, "/api/auth/me", token, nil)
	if code != http.StatusOK {
		t.Fatalf("me: status %d body %v", code, body)
	}
	if body["nome"] != "Admin Master" || body["tipo"] != "ADMIN" {
		t.Fatalf("me body: %v", body)
	}

	code, body = env.do(http.MethodPost, "/api/auth/logout", token, nil)
	if code != http.StatusOK || body["message"] != "Logout realizado com sucesso" {
		t.Fatalf("logout: status %d body %v", code, body)
	}

	// The failed attempt above must not leave a LOGIN entry; only the
	// successful one does.
	env.waitForAudit(2) // login + logout
	entries, _, err := env.auditStore.List(context.Background(), audit.Filter{Action: audit.ActionLogin})
	if err != nil {
		t.Fatalf("audit list: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("LOGIN entries = %d, want 1", len(entries))
	}
}

func TestAuthRejections(t *testing.T) {
	env := newTestEnv(t)
	env.seedAdmin()

	code, body := env.do(http.MethodGet, "/api/auth/me", "", nil)
	if code != http.StatusUnauthorized || body["error"] != "Token não fornecido" {
		t.Fatalf("missing token: status %d body %v", code, body)
	}

	code, body = env.do(http.MethodGet, "/api/auth/me", "nao-e-um-jwt", nil)
	if code != http.StatusUnauthorized || body["error"] != "Token inválido ou expirado" {
		t.Fatalf("garbage token: status %d body %v", code, body)
	}
}

func TestPermissionEnforcement(t *testing.T) {
	env := newTestEnv(t)
	env.seedAdmin()
	env.seedAnalyst([2]string{auth.ResourceClients, auth.ActionRead})

	analystToken := env.login("11111111111", "senha-ana")
	adminToken := env.login("00000000001", "senha-admin")

	if code, _ := env.doList(http.MethodGet, "/api/clientes", analystToken); code != http.StatusOK {
		t.Fatalf("analyst list clients: status %d", code)
	}

	code, body := env.do(http.MethodPost, "/api/clientes", analystToken, map[string]string{
		"nome": "X", "telefone": "11999990000", "cpf": "22222222222",
	})
	if code != http.StatusForbidden || body["error"] != "Acesso negado" {
		t.Fatalf("analyst create client: status %d body %v", code, body)
	}

	code, created := env.do(http.MethodPost, "/api/clientes", adminToken, map[string]string{
		"nome": "Cliente Um", "telefone": "11999990000", "cpf": "22222222222",
	})
	if code != http.StatusCreated {
		t.Fatalf("admin create client: status %d", code)
	}

	// A denied update leaves the record untouched and unaudited.
	id, _ := created["id"].(string)
	code, _ = env.do(http.MethodPut, "/api/clientes/"+id, analystToken, map[string]string{"nome": "Invasor"})
	if code != http.StatusForbidden {
		t.Fatalf("analyst update client: status %d", code)
	}
	code, got := env.do(http.MethodGet, "/api/clientes/"+id, analystToken, nil)
	if code != http.StatusOK || got["nome"] != "Cliente Um" {
		t.Fatalf("record after denied update: status %d body %v", code, got)
	}
	entries, _, err := env.auditStore.List(context.Background(), audit.Filter{Action: audit.ActionUpdate, Resource: auth.ResourceClients})
	if err != nil {
		t.Fatalf("audit list: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("denied update was audited: %v", entries)
	}
}

func TestProfilePermissionReplacementTakesEffect(t *testing.T) {
	env := newTestEnv(t)
	env.seedAdmin()
	env.seedAnalyst([2]string{auth.ResourceClients, auth.ActionRead})

	adminToken := env.login("00000000001", "senha-admin")
	analystToken := env.login("11111111111", "senha-ana")

	if code, _ := env.doList(http.MethodGet, "/api/usuarios", analystToken); code != http.StatusForbidden {
		t.Fatalf("analyst should not list users yet: status %d", code)
	}

	code, profiles := env.doList(http.MethodGet, "/api/perfis", adminToken)
	if code != http.StatusOK || len(profiles) != 1 {
		t.Fatalf("list profiles: status %d n %d", code, len(profiles))
	}
	profileID, _ := profiles[0]["id"].(string)

	code, body := env.do(http.MethodPut, "/api/perfis/"+profileID, adminToken, map[string]any{
		"permission_ids": []string{env.authStore.PermissionID(auth.ResourceUsers, auth.ActionRead)},
	})
	if code != http.StatusOK {
		t.Fatalf("update profile: status %d body %v", code, body)
	}

	// The old grant is gone and the new one works, on the same token.
	if code, _ := env.doList(http.MethodGet, "/api/clientes", analystToken); code != http.StatusForbidden {
		t.Fatalf("revoked grant still honored: status %d", code)
	}
	if code, _ := env.doList(http.MethodGet, "/api/usuarios", analystToken); code != http.StatusOK {
		t.Fatalf("new grant not honored: status %d", code)
	}
}

func TestUserCRUD(t *testing.T) {
	env := newTestEnv(t)
	admin := env.seedAdmin()
	token := env.login("00000000001", "senha-admin")

	code, created := env.do(http.MethodPost, "/api/usuarios", token, map[string]string{
		"nome": "Novo Usuário", "cpf": "33333333333", "senha": "senha-nova", "tipo": "GERENTE",
	})
	if code != http.StatusCreated {
		t.Fatalf("create user: status %d body %v", code, created)
	}
	newID, _ := created["id"].(string)

	code, body := env.do(http.MethodPost, "/api/usuarios", token, map[string]string{
		"nome": "Duplicado", "cpf": "333.333.333-33", "senha": "outra", "tipo": "ANALISTA",
	})
	if code != http.StatusBadRequest || body["error"] != "CPF já cadastrado" {
		t.Fatalf("duplicate cpf: status %d body %v", code, body)
	}

	code, body = env.do(http.MethodPut, "/api/usuarios/"+newID, token, map[string]string{"nome": "Renomeado"})
	if code != http.StatusOK || body["nome"] != "Renomeado" {
		t.Fatalf("update user: status %d body %v", code, body)
	}

	code, body = env.do(http.MethodDelete, "/api/usuarios/"+admin.ID, token, nil)
	if code != http.StatusBadRequest || body["error"] != "Você não pode deletar seu próprio usuário" {
		t.Fatalf("self delete: status %d body %v", code, body)
	}

	code, body = env.do(http.MethodDelete, "/api/usuarios/"+newID, token, nil)
	if code != http.StatusOK || body["message"] != "Usuário deletado com sucesso" {
		t.Fatalf("delete user: status %d body %v", code, body)
	}

	code, body = env.do(http.MethodGet, "/api/usuarios/inexistente", token, nil)
	if code != http.StatusNotFound || body["error"] != "Usuário não encontrado" {
		t.Fatalf("get missing user: status %d body %v", code, body)
	}
}

func TestProfileGuards(t *testing.T) {
	env := newTestEnv(t)
	env.seedAdmin()
	analyst := env.seedAnalyst([2]string{auth.ResourceClients, auth.ActionRead})
	token := env.login("00000000001", "senha-admin")

	code, body := env.do(http.MethodPost, "/api/perfis", token, map[string]any{"nome": "Analista Teste"})
	if code != http.StatusBadRequest || body["error"] != "Já existe um perfil com esse nome" {
		t.Fatalf("duplicate profile name: status %d body %v", code, body)
	}

	code, body = env.do(http.MethodDelete, "/api/perfis/"+analyst.ProfileID, token, nil)
	if code != http.StatusBadRequest || body["error"] != "Não é possível deletar: existem usuários vinculados a este perfil" {
		t.Fatalf("delete referenced profile: status %d body %v", code, body)
	}

	// Detach the user, then the profile can go.
	code, body = env.do(http.MethodPut, "/api/usuarios/"+analyst.ID, token, map[string]string{"profile_id": ""})
	if code != http.StatusOK {
		t.Fatalf("detach profile: status %d body %v", code, body)
	}
	code, body = env.do(http.MethodDelete, "/api/perfis/"+analyst.ProfileID, token, nil)
	if code != http.StatusOK || body["message"] != "Perfil deletado com sucesso" {
		t.Fatalf("delete profile: status %d body %v", code, body)
	}
}

func TestClientLifecycle(t *testing.T) {
	env := newTestEnv(t)
	env.seedAdmin()
	token := env.login("00000000001", "senha-admin")

	code, created := env.do(http.MethodPost, "/api/clientes", token, map[string]string{
		"nome": "Maria Souza", "telefone": "11988887777", "cpf": "444.444.444-44",
		"data_nascimento": "1990-05-20", "etiqueta": "vip",
	})
	if code != http.StatusCreated {
		t.Fatalf("create client: status %d body %v", code, created)
	}
	if created["cpf"] != "44444444444" {
		t.Fatalf("cpf not normalized: %v", created["cpf"])
	}
	id, _ := created["id"].(string)

	code, _ = env.do(http.MethodPost, "/api/clientes", token, map[string]string{
		"nome": "Outro", "telefone": "1100000000", "cpf": "44444444444",
	})
	if code != http.StatusBadRequest {
		t.Fatalf("duplicate client cpf: status %d", code)
	}

	code, body := env.do(http.MethodPut, "/api/clientes/"+id, token, map[string]string{"etiqueta": "inadimplente"})
	if code != http.StatusOK || body["etiqueta"] != "inadimplente" {
		t.Fatalf("update client: status %d body %v", code, body)
	}

	code, list := env.doList(http.MethodGet, "/api/clientes?etiqueta=inadimplente", token)
	if code != http.StatusOK || len(list) != 1 {
		t.Fatalf("filtered list: status %d n %d", code, len(list))
	}

	code, body = env.do(http.MethodDelete, "/api/clientes/"+id, token, nil)
	if code != http.StatusOK || body["message"] != "Cliente deletado com sucesso" {
		t.Fatalf("delete client: status %d body %v", code, body)
	}
	if code, list := env.doList(http.MethodGet, "/api/clientes", token); code != http.StatusOK || len(list) != 0 {
		t.Fatalf("deleted client still listed: status %d n %d", code, len(list))
	}
}

func TestPublicClientRegistration(t *testing.T) {
	env := newTestEnv(t)

	code, body := env.do(http.MethodPost, "/api/clientes/registrar", "", map[string]string{
		"nome": "João Autocadastro", "telefone": "11977776666", "cpf": "555.555.555-55",
		"senha": "senha-joao",
	})
	if code != http.StatusCreated {
		t.Fatalf("register: status %d body %v", code, body)
	}

	// The registration creates a CLIENT login with the same CPF.
	token := env.login("55555555555", "senha-joao")
	code, me := env.do(http.MethodGet, "/api/auth/me", token, nil)
	if code != http.StatusOK || me["tipo"] != "CLIENT" {
		t.Fatalf("registered login: status %d body %v", code, me)
	}

	code, body = env.do(http.MethodPost, "/api/clientes/registrar", "", map[string]string{
		"nome": "João De Novo", "telefone": "11977776666", "cpf": "55555555555", "senha": "x",
	})
	if code != http.StatusBadRequest || body["error"] != "CPF já cadastrado" {
		t.Fatalf("duplicate registration: status %d body %v", code, body)
	}

	code, body = env.do(http.MethodPost, "/api/clientes/registrar", "", map[string]string{
		"nome": "Sem Senha", "telefone": "119", "cpf": "66666666666",
	})
	if code != http.StatusBadRequest {
		t.Fatalf("registration without password: status %d body %v", code, body)
	}
}

func TestAuditLogsEndpoint(t *testing.T) {
	env := newTestEnv(t)
	admin := env.seedAdmin()
	token := env.login("00000000001", "senha-admin")

	code, _ := env.do(http.MethodPost, "/api/clientes", token, map[string]string{
		"nome": "Auditado", "telefone": "119", "cpf": "77777777777",
	})
	if code != http.StatusCreated {
		t.Fatalf("create client: status %d", code)
	}
	env.waitForAudit(2) // login + create

	code, body := env.do(http.MethodGet, "/api/audit-logs?resource=clientes&action=CREATE", token, nil)
	if code != http.StatusOK {
		t.Fatalf("audit list: status %d body %v", code, body)
	}
	if total, _ := body["total"].(float64); total != 1 {
		t.Fatalf("total = %v, want 1", body["total"])
	}
	logs, _ := body["logs"].([]any)
	if len(logs) != 1 {
		t.Fatalf("logs = %d entries", len(logs))
	}
	entry, _ := logs[0].(map[string]any)
	if entry["descricao"] != "Criou clientes Auditado" {
		t.Fatalf("unexpected entry: %v", entry)
	}
	if entry["usuario_id"] != admin.ID {
		t.Fatalf("attribution: %v", entry["usuario_id"])
	}

	code, body = env.do(http.MethodGet, "/api/audit-logs?userId=ninguem", token, nil)
	if code != http.StatusOK {
		t.Fatalf("filtered audit list: status %d", code)
	}
	if total, _ := body["total"].(float64); total != 0 {
		t.Fatalf("unknown user total = %v", body["total"])
	}

	code, body = env.do(http.MethodGet, "/api/audit-logs?startDate=nao-e-data", token, nil)
	if code != http.StatusBadRequest {
		t.Fatalf("bad start date: status %d body %v", code, body)
	}
}

func TestAuditRequiresGrant(t *testing.T) {
	env := newTestEnv(t)
	env.seedAdmin()
	env.seedAnalyst([2]string{auth.ResourceClients, auth.ActionRead})
	token := env.login("11111111111", "senha-ana")

	code, body := env.do(http.MethodGet, "/api/audit-logs", token, nil)
	if code != http.StatusForbidden || body["error"] != "Acesso negado" {
		t.Fatalf("analyst audit access: status %d body %v", code, body)
	}
}

func TestDashboardStats(t *testing.T) {
	env := newTestEnv(t)
	env.seedAdmin()
	env.seedAnalyst([2]string{auth.ResourceClients, auth.ActionRead})
	token := env.login("00000000001", "senha-admin")

	code, _ := env.do(http.MethodPost, "/api/clientes", token, map[string]string{
		"nome": "Cliente Painel", "telefone": "119", "cpf": "88888888888",
	})
	if code != http.StatusCreated {
		t.Fatalf("create client: status %d", code)
	}
	env.waitForAudit(2)

	code, body := env.do(http.MethodGet, "/api/dashboard/stats", token, nil)
	if code != http.StatusOK {
		t.Fatalf("stats: status %d body %v", code, body)
	}
	if total, _ := body["totalClientes"].(float64); total != 1 {
		t.Fatalf("totalClientes = %v", body["totalClientes"])
	}
	if total, _ := body["totalPerfis"].(float64); total != 1 {
		t.Fatalf("totalPerfis = %v", body["totalPerfis"])
	}
	byRole, _ := body["usuariosPorTipo"].([]any)
	if len(byRole) != 2 {
		t.Fatalf("usuariosPorTipo = %v", body["usuariosPorTipo"])
	}
	recent, _ := body["ultimasAcoes"].([]any)
	if len(recent) == 0 {
		t.Fatalf("ultimasAcoes empty")
	}
	byAction, _ := body["acoesPorTipo"].([]any)
	if len(byAction) == 0 {
		t.Fatalf("acoesPorTipo empty")
	}
}

func TestLoginRateLimit(t *testing.T) {
	env := newTestEnv(t)
	env.seedAdmin()

	// Fresh API with a tight limiter; the shared env limiter is too
	// permissive to trip in a test.
	api := New(Config{
		Auth:           env.auth,
		Tokens:         mustTokens(t),
		Clients:        env.clients,
		Recorder:       env.recorder,
		LoginBurst:     1,
		LoginPerMinute: 1,
	})
	handler := api.Handler()

	body := bytes.NewBufferString(`{"cpf":"00000000001","senha":"errada"}`)
	first := httptest.NewRecorder()
	handler.ServeHTTP(first, httptest.NewRequest(http.MethodPost, "/api/auth/login", body))
	if first.Code != http.StatusUnauthorized {
		t.Fatalf("first attempt: status %d", first.Code)
	}

	second := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", bytes.NewBufferString(`{}`))
	handler.ServeHTTP(second, req)
	if second.Code != http.StatusTooManyRequests {
		t.Fatalf("second attempt: status %d", second.Code)
	}
	if got := second.Header().Get("Retry-After"); got != "60" {
		t.Fatalf("Retry-After = %q", got)
	}
}

func mustTokens(t *testing.T) *auth.TokenService {
	t.Helper()
	svc, err := auth.NewTokenService(auth.TokenConfig{Secret: "test-secret", Issuer: "emprestimosdiario"})
	if err != nil {
		t.Fatalf("token service: %v", err)
	}
	return svc
}

func TestMethodNotAllowed(t *testing.T) {
	env := newTestEnv(t)
	env.seedAdmin()
	token := env.login("00000000001", "senha-admin")

	for _, tc := range []struct{ method, path string }{
		{http.MethodDelete, "/api/auth/login"},
		{http.MethodPatch, "/api/usuarios"},
		{http.MethodPost, "/api/dashboard/stats"},
	} {
		code, body := env.do(tc.method, tc.path, token, nil)
		if code != http.StatusMethodNotAllowed {
			t.Fatalf("%s %s: status %d body %v", tc.method, tc.path, code, body)
		}
	}
}

func TestUnknownRouteIs404(t *testing.T) {
	env := newTestEnv(t)
	req := httptest.NewRequest(http.MethodGet, "/api/nada", nil)
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rec.Code)
	}
}
