package pg

import (
	"context"
	"errors"
	"time"

	"github.com/guustavogomes/emprestimosdiario/internal/audit"
)

// ActionCounts groups the audit trail by action from the cutoff onward.
func (s *Store) ActionCounts(ctx context.Context, since time.Time) (map[audit.Action]int, error) {
	if s.db == nil {
		return nil, errors.New("database connection unavailable")
	}
	rows, err := s.db.QueryContext(ctx, `
		select acao, count(*)
		from audit_log
		where created_at >= $1
		group by acao
	`, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[audit.Action]int)
	for rows.Next() {
		var (
			acao  string
			count int
		)
		if err := rows.Scan(&acao, &count); err != nil {
			return nil, err
		}
		counts[audit.Action(acao)] = count
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return counts, nil
}
