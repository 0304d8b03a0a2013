package auth

import (
	"context"
	"errors"
	"testing"
)

func TestAuthenticateSuccess(t *testing.T) {
	svc, store := newTestService(t)
	profile := seedProfile(t, svc, store, "Gerência",
		PermissionCheck{Resource: ResourceLoans, Action: ActionRead},
		PermissionCheck{Resource: ResourceLoans, Action: ActionCreate},
	)
	ident, err := svc.CreateIdentity(context.Background(), NewIdentity{
		Name:      "Maria Gerente",
		CPF:       "123.456.789-00",
		Password:  "s3nh4-forte",
		Role:      RoleManager,
		ProfileID: profile.ID,
	})
	if err != nil {
		t.Fatalf("CreateIdentity: %v", err)
	}

	// Formatted and bare CPF must land on the same account.
	for _, cpf := range []string{"12345678900", "123.456.789-00"} {
		summary, err := svc.Authenticate(context.Background(), cpf, "s3nh4-forte")
		if err != nil {
			t.Fatalf("Authenticate(%q): %v", cpf, err)
		}
		if summary.ID != ident.ID {
			t.Fatalf("authenticated wrong identity: %s", summary.ID)
		}
		if summary.Role != RoleManager {
			t.Fatalf("role = %q", summary.Role)
		}
		if len(summary.Permissions) != 2 {
			t.Fatalf("permissions = %v, want 2 entries", summary.Permissions)
		}
	}
}

func TestAuthenticateFailuresAreUniform(t *testing.T) {
	svc, _ := newTestService(t)
	admin := seedIdentity(t, svc, RoleAdmin, "")
	ident, err := svc.CreateIdentity(context.Background(), NewIdentity{
		Name: "Conta Desativada", CPF: "55566677788", Password: "s3nh4-forte", Role: RoleAnalyst,
	})
	if err != nil {
		t.Fatalf("CreateIdentity: %v", err)
	}
	if err := svc.DeleteIdentity(context.Background(), ident.ID, admin.ID); err != nil {
		t.Fatalf("DeleteIdentity: %v", err)
	}

	cases := []struct {
		name     string
		cpf      string
		password string
	}{
		{"unknown cpf", "00000000000", "s3nh4-forte"},
		{"wrong password", admin.CPF, "senha-errada"},
		{"deactivated account", "55566677788", "s3nh4-forte"},
		{"blank credentials", "", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Authenticate(context.Background(), tc.cpf, tc.password)
			if !errors.Is(err, ErrUnauthorized) {
				t.Fatalf("Authenticate = %v, want ErrUnauthorized", err)
			}
		})
	}
}
