package clients

import (
	"context"
	"errors"
	"testing"

	"github.com/guustavogomes/emprestimosdiario/internal/auth"
)

func newTestService(t *testing.T) (*Service, *InMemoryStore, *auth.InMemoryStore) {
	t.Helper()
	identities := auth.NewInMemoryStore()
	store := NewInMemoryStore(identities)
	svc, err := NewService(store, store)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc, store, identities
}

func TestCreateRequiresCoreFields(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.Create(context.Background(), NewClient{Name: "João", Phone: "11 99999-0000"})
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("missing cpf = %v, want ErrInvalidInput", err)
	}

	client, err := svc.Create(context.Background(), NewClient{
		Name:  "João da Silva",
		Phone: "11 99999-0000",
		CPF:   "123.456.789-00",
		Label: "novo",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if client.CPF != "12345678900" {
		t.Fatalf("cpf not normalized: %q", client.CPF)
	}
	if !client.Active {
		t.Fatalf("new client not active")
	}
}

func TestCreateDuplicateCPF(t *testing.T) {
	svc, _, _ := newTestService(t)
	seed := NewClient{Name: "João", Phone: "11 99999-0000", CPF: "12345678900"}
	if _, err := svc.Create(context.Background(), seed); err != nil {
		t.Fatalf("Create: %v", err)
	}
	seed.Name = "Outro João"
	if _, err := svc.Create(context.Background(), seed); !errors.Is(err, ErrConflict) {
		t.Fatalf("duplicate = %v, want ErrConflict", err)
	}
}

func TestListFilters(t *testing.T) {
	svc, _, _ := newTestService(t)
	seedData := []NewClient{
		{Name: "Ana Souza", Phone: "11 98888-1111", CPF: "11111111111", Label: "vip"},
		{Name: "Bruno Lima", Phone: "11 97777-2222", CPF: "22222222222", Label: "novo"},
		{Name: "Ana Paula", Phone: "11 96666-3333", CPF: "33333333333", Label: "vip"},
	}
	for _, in := range seedData {
		if _, err := svc.Create(context.Background(), in); err != nil {
			t.Fatalf("Create(%s): %v", in.Name, err)
		}
	}

	vips, err := svc.List(context.Background(), Filter{Label: "vip"})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(vips) != 2 {
		t.Fatalf("label filter matched %d, want 2", len(vips))
	}

	anas, err := svc.List(context.Background(), Filter{Search: "ana"})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(anas) != 2 {
		t.Fatalf("search matched %d, want 2", len(anas))
	}

	byCPF, err := svc.List(context.Background(), Filter{Search: "2222222"})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(byCPF) != 1 || byCPF[0].Name != "Bruno Lima" {
		t.Fatalf("cpf search = %v", byCPF)
	}
}

func TestUpdateAndDelete(t *testing.T) {
	svc, _, _ := newTestService(t)
	client, err := svc.Create(context.Background(), NewClient{
		Name: "João", Phone: "11 99999-0000", CPF: "12345678900",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	other, err := svc.Create(context.Background(), NewClient{
		Name: "Maria", Phone: "11 98888-0000", CPF: "99999999999",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	taken := other.CPF
	if _, err := svc.Update(context.Background(), client.ID, Update{CPF: &taken}); !errors.Is(err, ErrConflict) {
		t.Fatalf("cpf steal = %v, want ErrConflict", err)
	}

	label := "atrasado"
	updated, err := svc.Update(context.Background(), client.ID, Update{Label: &label})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.Label != "atrasado" {
		t.Fatalf("label = %q", updated.Label)
	}

	if err := svc.Delete(context.Background(), client.ID, "admin-1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	remaining, err := svc.List(context.Background(), Filter{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(remaining) != 1 || remaining[0].ID != other.ID {
		t.Fatalf("soft-deleted client still listed: %v", remaining)
	}
	if _, err := svc.Get(context.Background(), client.ID); err != nil {
		t.Fatalf("point lookup of soft-deleted client: %v", err)
	}
}

func TestSelfServiceRegistration(t *testing.T) {
	svc, _, identities := newTestService(t)

	client, err := svc.Register(context.Background(), Registration{
		NewClient: NewClient{Name: "João da Silva", Phone: "11 99999-0000", CPF: "123.456.789-00"},
		Password:  "s3nh4-forte",
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	ident, err := identities.FindIdentityByCPF(context.Background(), "12345678900")
	if err != nil {
		t.Fatalf("identity not created: %v", err)
	}
	if ident.Role != auth.RoleClient {
		t.Fatalf("identity role = %q, want CLIENT", ident.Role)
	}
	if ident.Name != client.Name {
		t.Fatalf("identity name = %q", ident.Name)
	}
	if err := auth.VerifyPassword(ident.PasswordHash, "s3nh4-forte"); err != nil {
		t.Fatalf("stored hash does not verify: %v", err)
	}

	_, err = svc.Register(context.Background(), Registration{
		NewClient: NewClient{Name: "Clone", Phone: "11 90000-0000", CPF: "12345678900"},
		Password:  "outra-senha",
	})
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("duplicate registration = %v, want ErrConflict", err)
	}

	_, err = svc.Register(context.Background(), Registration{
		NewClient: NewClient{Name: "Sem Senha", Phone: "11 90000-0000", CPF: "55555555555"},
	})
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("missing password = %v, want ErrInvalidInput", err)
	}
}
