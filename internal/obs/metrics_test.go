package obs

import "testing"

func TestCanonicalPath(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"/", "/"},
		{"/healthz", "/healthz"},
		{"/api/clientes", "/api/clientes"},
		{"/api/clientes/01HZX4T9V2", "/api/clientes/:id"},
		{"/api/usuarios/abc-123", "/api/usuarios/:id"},
		{"/api/perfis/01HZX4T9V2", "/api/perfis/:id"},
		{"/api/clientes/registrar", "/api/clientes/registrar"},
		{"/api/auth/login", "/api/auth/login"},
		{"/api/dashboard/stats", "/api/dashboard/stats"},
		{"/api/audit-logs", "/api/audit-logs"},
	}
	for _, tc := range cases {
		if got := CanonicalPath(tc.in); got != tc.want {
			t.Fatalf("CanonicalPath(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestReadyGate(t *testing.T) {
	SetReady(false)
	if Ready() {
		t.Fatalf("expected not ready")
	}
	SetReady(true)
	if !Ready() {
		t.Fatalf("expected ready")
	}
	SetReady(false)
}
