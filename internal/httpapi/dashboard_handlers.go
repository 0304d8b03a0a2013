package httpapi

import (
	"net/http"
	"sort"
	"time"

	"github.com/guustavogomes/emprestimosdiario/internal/audit"
	"github.com/guustavogomes/emprestimosdiario/internal/auth"
)

type roleCount struct {
	Role  auth.RoleTag `json:"tipo"`
	Total int          `json:"total"`
}

type actionCount struct {
	Action audit.Action `json:"acao"`
	Total  int          `json:"total"`
}

type dashboardStats struct {
	UsersByRole    []roleCount   `json:"usuariosPorTipo"`
	TotalClients   int           `json:"totalClientes"`
	TotalProfiles  int           `json:"totalPerfis"`
	RecentActions  []audit.Entry `json:"ultimasAcoes"`
	ActionsByType  []actionCount `json:"acoesPorTipo"`
}

// DashboardStats assembles the landing-page numbers. Any signed-in
// identity may read them; the per-widget data carries no detail beyond
// counts and the recent audit tail.
func (a *API) DashboardStats(w http.ResponseWriter, r *http.Request, _ *auth.Claims) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	ctx := r.Context()

	byRole, err := a.auth.CountIdentitiesByRole(ctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Erro ao montar estatísticas")
		return
	}
	totalClients, err := a.clients.Count(ctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Erro ao montar estatísticas")
		return
	}
	totalProfiles, err := a.auth.CountProfiles(ctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Erro ao montar estatísticas")
		return
	}
	recent, _, err := a.recorder.List(ctx, audit.Filter{Limit: 10})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Erro ao montar estatísticas")
		return
	}
	if recent == nil {
		recent = []audit.Entry{}
	}
	counts, err := a.recorder.ActionCounts(ctx, time.Now().AddDate(0, 0, -30))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Erro ao montar estatísticas")
		return
	}

	stats := dashboardStats{
		UsersByRole:   make([]roleCount, 0, len(byRole)),
		TotalClients:  totalClients,
		TotalProfiles: totalProfiles,
		RecentActions: recent,
		ActionsByType: make([]actionCount, 0, len(counts)),
	}
	for role, total := range byRole {
		stats.UsersByRole = append(stats.UsersByRole, roleCount{Role: role, Total: total})
	}
	sort.Slice(stats.UsersByRole, func(i, j int) bool {
		return stats.UsersByRole[i].Role < stats.UsersByRole[j].Role
	})
	for action, total := range counts {
		stats.ActionsByType = append(stats.ActionsByType, actionCount{Action: action, Total: total})
	}
	sort.Slice(stats.ActionsByType, func(i, j int) bool {
		return stats.ActionsByType[i].Action < stats.ActionsByType[j].Action
	})

	writeJSON(w, http.StatusOK, stats)
}
