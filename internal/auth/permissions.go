package auth

import "fmt"

// Resource and action vocabulary. Permission checks are exact string
// matches against these values; there are no hierarchies and no implied
// actions ("update" does not grant "read").
const (
	ResourceClients   = "clientes"
	ResourceLoans     = "emprestimos"
	ResourceUsers     = "usuarios"
	ResourceReports   = "relatorios"
	ResourceSettings  = "configuracoes"
	ResourceProfiles  = "perfis"
	ResourceAudit     = "auditoria"
	ResourceDashboard = "dashboard"
)

const (
	ActionRead   = "read"
	ActionCreate = "create"
	ActionUpdate = "update"
	ActionDelete = "delete"
)

// Resources lists every gateable resource, in seed order.
var Resources = []string{
	ResourceClients,
	ResourceLoans,
	ResourceUsers,
	ResourceReports,
	ResourceSettings,
	ResourceProfiles,
	ResourceAudit,
	ResourceDashboard,
}

// Actions lists every gateable action.
var Actions = []string{ActionRead, ActionCreate, ActionUpdate, ActionDelete}

// BuiltinPermissions returns the full resource x action catalog seeded at
// system initialization. The catalog is effectively static afterwards.
func BuiltinPermissions() []Permission {
	perms := make([]Permission, 0, len(Resources)*len(Actions))
	for _, resource := range Resources {
		for _, action := range Actions {
			perms = append(perms, Permission{
				Resource:    resource,
				Action:      action,
				Description: fmt.Sprintf("Permissão para %s em %s", action, resource),
			})
		}
	}
	return perms
}
