// Command seed bootstraps the permission catalog, the default profiles
// and the first administrator account. Safe to run repeatedly.
package main

import (
	"context"
	"errors"
	"log"
	"os"
	"time"

	"github.com/guustavogomes/emprestimosdiario/internal/auth"
	"github.com/guustavogomes/emprestimosdiario/internal/config"
	"github.com/guustavogomes/emprestimosdiario/internal/store/pg"
)

type profileSeed struct {
	name        string
	description string
	grants      [][2]string
}

func defaultProfiles() []profileSeed {
	return []profileSeed{
		{
			name:        "Administrador",
			description: "Acesso total ao sistema",
			grants:      allGrants(),
		},
		{
			name:        "Gerente",
			description: "Gestão da operação de empréstimos",
			grants: [][2]string{
				{auth.ResourceClients, auth.ActionRead},
				{auth.ResourceClients, auth.ActionCreate},
				{auth.ResourceClients, auth.ActionUpdate},
				{auth.ResourceClients, auth.ActionDelete},
				{auth.ResourceLoans, auth.ActionRead},
				{auth.ResourceLoans, auth.ActionCreate},
				{auth.ResourceLoans, auth.ActionUpdate},
				{auth.ResourceLoans, auth.ActionDelete},
				{auth.ResourceUsers, auth.ActionRead},
				{auth.ResourceReports, auth.ActionRead},
				{auth.ResourceSettings, auth.ActionRead},
				{auth.ResourceSettings, auth.ActionUpdate},
				{auth.ResourceAudit, auth.ActionRead},
				{auth.ResourceDashboard, auth.ActionRead},
			},
		},
		{
			name:        "Analista",
			description: "Cadastro e acompanhamento de clientes e empréstimos",
			grants: [][2]string{
				{auth.ResourceClients, auth.ActionRead},
				{auth.ResourceClients, auth.ActionCreate},
				{auth.ResourceClients, auth.ActionUpdate},
				{auth.ResourceLoans, auth.ActionRead},
				{auth.ResourceLoans, auth.ActionCreate},
				{auth.ResourceLoans, auth.ActionUpdate},
				{auth.ResourceReports, auth.ActionRead},
				{auth.ResourceDashboard, auth.ActionRead},
			},
		},
		{
			name:        "Cobrança",
			description: "Acompanhamento de pagamentos em atraso",
			grants: [][2]string{
				{auth.ResourceClients, auth.ActionRead},
				{auth.ResourceLoans, auth.ActionRead},
				{auth.ResourceLoans, auth.ActionUpdate},
				{auth.ResourceDashboard, auth.ActionRead},
			},
		},
	}
}

func allGrants() [][2]string {
	var grants [][2]string
	for _, resource := range auth.Resources {
		for _, action := range auth.Actions {
			grants = append(grants, [2]string{resource, action})
		}
	}
	return grants
}

func main() {
	log.SetFlags(0)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	store, err := pg.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer store.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	svc, err := auth.NewService(store)
	if err != nil {
		log.Fatalf("auth service: %v", err)
	}
	if err := svc.EnsureBuiltins(ctx); err != nil {
		log.Fatalf("seed permissions: %v", err)
	}
	log.Println("permission catalog ok")

	permID, err := permissionIndex(ctx, svc)
	if err != nil {
		log.Fatalf("load permissions: %v", err)
	}

	for _, seed := range defaultProfiles() {
		var ids []string
		for _, g := range seed.grants {
			id, ok := permID[g[0]+":"+g[1]]
			if !ok {
				log.Fatalf("profile %s: unknown permission %s:%s", seed.name, g[0], g[1])
			}
			ids = append(ids, id)
		}
		_, err := svc.CreateProfile(ctx, seed.name, seed.description, "seed", ids)
		switch {
		case err == nil:
			log.Printf("profile %s created", seed.name)
		case errors.Is(err, auth.ErrConflict):
			log.Printf("profile %s already exists", seed.name)
		default:
			log.Fatalf("profile %s: %v", seed.name, err)
		}
	}

	if err := seedAdmin(ctx, svc); err != nil {
		log.Fatalf("seed admin: %v", err)
	}
}

func permissionIndex(ctx context.Context, svc *auth.Service) (map[string]string, error) {
	perms, err := svc.ListPermissions(ctx)
	if err != nil {
		return nil, err
	}
	index := make(map[string]string, len(perms))
	for _, p := range perms {
		index[p.Resource+":"+p.Action] = p.ID
	}
	return index, nil
}

func seedAdmin(ctx context.Context, svc *auth.Service) error {
	cpf := os.Getenv("ADMIN_CPF")
	password := os.Getenv("ADMIN_PASSWORD")
	if cpf == "" || password == "" {
		log.Println("ADMIN_CPF/ADMIN_PASSWORD not set, skipping admin bootstrap")
		return nil
	}

	_, err := svc.CreateIdentity(ctx, auth.NewIdentity{
		Name:     "Administrador",
		CPF:      cpf,
		Password: password,
		Role:     auth.RoleAdmin,
	})
	switch {
	case err == nil:
		log.Println("admin account created")
		return nil
	case errors.Is(err, auth.ErrConflict):
		log.Println("admin account already exists")
		return nil
	default:
		return err
	}
}
