package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/guustavogomes/emprestimosdiario/internal/audit"
	"github.com/guustavogomes/emprestimosdiario/internal/auth"
)

type auditLogsResponse struct {
	Logs   []audit.Entry `json:"logs"`
	Total  int           `json:"total"`
	Limit  int           `json:"limit"`
	Offset int           `json:"offset"`
}

// AuditLogs lists the trail on GET /api/audit-logs. Filters combine with
// AND; results come newest first with a total for pagination.
func (a *API) AuditLogs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	a.requirePermission(auth.ResourceAudit, auth.ActionRead, a.listAuditLogs)(w, r)
}

func (a *API) listAuditLogs(w http.ResponseWriter, r *http.Request, _ *auth.Claims) {
	q := r.URL.Query()
	filter := audit.Filter{
		UserID:   q.Get("userId"),
		Resource: q.Get("resource"),
		Action:   audit.Action(q.Get("action")),
	}

	if raw := q.Get("startDate"); raw != "" {
		from, _, ok := parseFilterDate(raw)
		if !ok {
			writeError(w, http.StatusBadRequest, "Data inicial inválida")
			return
		}
		filter.From = from
	}
	if raw := q.Get("endDate"); raw != "" {
		to, dateOnly, ok := parseFilterDate(raw)
		if !ok {
			writeError(w, http.StatusBadRequest, "Data final inválida")
			return
		}
		// A bare end date means the whole day, inclusive.
		if dateOnly {
			to = to.Add(24*time.Hour - time.Nanosecond)
		}
		filter.To = to
	}

	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "Limite inválido")
			return
		}
		filter.Limit = n
	}
	if raw := q.Get("offset"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "Offset inválido")
			return
		}
		filter.Offset = n
	}

	filter = filter.Normalize()
	entries, total, err := a.recorder.List(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Erro ao listar auditoria")
		return
	}
	if entries == nil {
		entries = []audit.Entry{}
	}
	writeJSON(w, http.StatusOK, auditLogsResponse{
		Logs:   entries,
		Total:  total,
		Limit:  filter.Limit,
		Offset: filter.Offset,
	})
}

// parseFilterDate accepts RFC 3339 timestamps and bare dates; the second
// return reports the bare-date case.
func parseFilterDate(v string) (time.Time, bool, bool) {
	if t, err := time.Parse("2006-01-02", v); err == nil {
		return t, true, true
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, false, true
	}
	return time.Time{}, false, false
}
