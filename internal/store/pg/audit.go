package pg

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/guustavogomes/emprestimosdiario/internal/audit"
	"github.com/guustavogomes/emprestimosdiario/internal/ids"
)

var _ audit.Store = (*Store)(nil)

func (s *Store) Append(ctx context.Context, entry audit.Entry) error {
	if s.db == nil {
		return errors.New("database connection unavailable")
	}
	if entry.ID == "" {
		entry.ID = ids.NewAt(entry.CreatedAt)
	}
	_, err := s.db.ExecContext(ctx, `
		insert into audit_log (id, usuario_id, usuario_nome, acao, recurso, recurso_id, descricao, metadata, ip_address, user_agent, created_at)
		values ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, entry.ID, entry.UserID, entry.UserName, string(entry.Action), entry.Resource,
		nullIfEmpty(entry.ResourceID), nullIfEmpty(entry.Description), nullIfEmpty(string(entry.Metadata)),
		nullIfEmpty(entry.IPAddress), nullIfEmpty(entry.UserAgent), entry.CreatedAt)
	return err
}

func (s *Store) List(ctx context.Context, filter audit.Filter) ([]audit.Entry, int, error) {
	if s.db == nil {
		return nil, 0, errors.New("database connection unavailable")
	}
	filter = filter.Normalize()

	var (
		conds []string
		args  []any
		idx   = 1
	)
	if filter.UserID != "" {
		conds = append(conds, fmt.Sprintf("usuario_id = $%d", idx))
		args = append(args, filter.UserID)
		idx++
	}
	if filter.Resource != "" {
		conds = append(conds, fmt.Sprintf("recurso = $%d", idx))
		args = append(args, filter.Resource)
		idx++
	}
	if filter.Action != "" {
		conds = append(conds, fmt.Sprintf("acao = $%d", idx))
		args = append(args, string(filter.Action))
		idx++
	}
	if !filter.From.IsZero() {
		conds = append(conds, fmt.Sprintf("created_at >= $%d", idx))
		args = append(args, filter.From)
		idx++
	}
	if !filter.To.IsZero() {
		conds = append(conds, fmt.Sprintf("created_at <= $%d", idx))
		args = append(args, filter.To)
		idx++
	}
	where := ""
	if len(conds) > 0 {
		where = "where " + strings.Join(conds, " and ")
	}

	var total int
	if err := s.db.QueryRowContext(ctx, `select count(*) from audit_log `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf(`
		select id, usuario_id, usuario_nome, acao, recurso,
		       coalesce(recurso_id, ''), coalesce(descricao, ''), coalesce(metadata::text, ''),
		       coalesce(ip_address, ''), coalesce(user_agent, ''), created_at
		from audit_log
		%s
		order by created_at desc, id desc
		limit $%d offset $%d
	`, where, idx, idx+1)
	args = append(args, filter.Limit, filter.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	entries := make([]audit.Entry, 0, filter.Limit)
	for rows.Next() {
		var (
			entry audit.Entry
			acao  string
			meta  string
		)
		if err := rows.Scan(&entry.ID, &entry.UserID, &entry.UserName, &acao, &entry.Resource,
			&entry.ResourceID, &entry.Description, &meta, &entry.IPAddress, &entry.UserAgent, &entry.CreatedAt); err != nil {
			return nil, 0, err
		}
		entry.Action = audit.Action(acao)
		if meta != "" {
			entry.Metadata = json.RawMessage(meta)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return entries, total, nil
}
