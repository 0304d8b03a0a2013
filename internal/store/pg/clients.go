package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/guustavogomes/emprestimosdiario/internal/clients"
	"github.com/guustavogomes/emprestimosdiario/internal/ids"
)

var _ clients.Store = (*Store)(nil)

const clientColumns = `id, nome, telefone, cpf, data_nascimento, cep, endereco, numero, bairro, cidade,
	chave_pix, nome_emergencia1, telefone_emergencia1, nome_emergencia2, telefone_emergencia2,
	etiqueta, ativo, deleted_at, deleted_by, created_at, updated_at`

func (s *Store) Create(ctx context.Context, client *clients.Client) error {
	if s.db == nil {
		return errors.New("database connection unavailable")
	}
	return insertClient(ctx, s.db, client)
}

type rowQueryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func insertClient(ctx context.Context, db rowQueryer, client *clients.Client) error {
	if client.ID == "" {
		client.ID = ids.New()
	}
	row := db.QueryRowContext(ctx, `
		insert into clientes (id, nome, telefone, cpf, data_nascimento, cep, endereco, numero, bairro, cidade,
			chave_pix, nome_emergencia1, telefone_emergencia1, nome_emergencia2, telefone_emergencia2, etiqueta, ativo)
		values ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		returning created_at, updated_at
	`, client.ID, client.Name, client.Phone, client.CPF, nullTime(client.BirthDate),
		nullIfEmpty(client.PostalCode), nullIfEmpty(client.Street), nullIfEmpty(client.Number),
		nullIfEmpty(client.District), nullIfEmpty(client.City), nullIfEmpty(client.PixKey),
		nullIfEmpty(client.EmergencyName1), nullIfEmpty(client.EmergencyPhone1),
		nullIfEmpty(client.EmergencyName2), nullIfEmpty(client.EmergencyPhone2),
		nullIfEmpty(client.Label), client.Active)
	if err := row.Scan(&client.CreatedAt, &client.UpdatedAt); err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrUniqueViolation {
			return clients.ErrConflict
		}
		return err
	}
	return nil
}

func (s *Store) Get(ctx context.Context, id string) (clients.Client, error) {
	if s.db == nil {
		return clients.Client{}, errors.New("database connection unavailable")
	}
	row := s.db.QueryRowContext(ctx, `
		select `+clientColumns+`
		from clientes
		where id = $1
	`, id)
	return scanClient(row)
}

func (s *Store) FindByCPF(ctx context.Context, cpf string) (clients.Client, error) {
	if s.db == nil {
		return clients.Client{}, errors.New("database connection unavailable")
	}
	row := s.db.QueryRowContext(ctx, `
		select `+clientColumns+`
		from clientes
		where cpf = $1 and deleted_at is null
	`, cpf)
	return scanClient(row)
}

func (s *Store) List(ctx context.Context, filter clients.Filter) ([]clients.Client, error) {
	if s.db == nil {
		return nil, errors.New("database connection unavailable")
	}
	var (
		conds = []string{"deleted_at is null"}
		args  []any
		idx   = 1
	)
	if filter.Label != "" {
		conds = append(conds, fmt.Sprintf("etiqueta = $%d", idx))
		args = append(args, filter.Label)
		idx++
	}
	if filter.Search != "" {
		conds = append(conds, fmt.Sprintf("(nome ilike $%d or cpf like $%d or telefone like $%d)", idx, idx+1, idx+1))
		args = append(args, "%"+filter.Search+"%", "%"+filter.Search+"%")
		idx += 2
	}
	query := fmt.Sprintf(`
		select %s
		from clientes
		where %s
		order by created_at desc, id desc
	`, clientColumns, strings.Join(conds, " and "))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []clients.Client
	for rows.Next() {
		client, err := scanClient(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, client)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Store) Update(ctx context.Context, id string, upd clients.Update) (clients.Client, error) {
	if s.db == nil {
		return clients.Client{}, errors.New("database connection unavailable")
	}
	var (
		sets []string
		args []any
		idx  = 1
	)
	add := func(column string, value any) {
		sets = append(sets, fmt.Sprintf("%s = $%d", column, idx))
		args = append(args, value)
		idx++
	}
	if upd.Name != nil {
		add("nome", *upd.Name)
	}
	if upd.Phone != nil {
		add("telefone", *upd.Phone)
	}
	if upd.CPF != nil {
		add("cpf", *upd.CPF)
	}
	if upd.BirthDate != nil {
		add("data_nascimento", *upd.BirthDate)
	}
	if upd.PostalCode != nil {
		add("cep", nullIfEmpty(*upd.PostalCode))
	}
	if upd.Street != nil {
		add("endereco", nullIfEmpty(*upd.Street))
	}
	if upd.Number != nil {
		add("numero", nullIfEmpty(*upd.Number))
	}
	if upd.District != nil {
		add("bairro", nullIfEmpty(*upd.District))
	}
	if upd.City != nil {
		add("cidade", nullIfEmpty(*upd.City))
	}
	if upd.PixKey != nil {
		add("chave_pix", nullIfEmpty(*upd.PixKey))
	}
	if upd.EmergencyName1 != nil {
		add("nome_emergencia1", nullIfEmpty(*upd.EmergencyName1))
	}
	if upd.EmergencyPhone1 != nil {
		add("telefone_emergencia1", nullIfEmpty(*upd.EmergencyPhone1))
	}
	if upd.EmergencyName2 != nil {
		add("nome_emergencia2", nullIfEmpty(*upd.EmergencyName2))
	}
	if upd.EmergencyPhone2 != nil {
		add("telefone_emergencia2", nullIfEmpty(*upd.EmergencyPhone2))
	}
	if upd.Label != nil {
		add("etiqueta", nullIfEmpty(*upd.Label))
	}
	if len(sets) > 0 {
		sets = append(sets, "updated_at = now()")
		query := fmt.Sprintf(`update clientes set %s where id = $%d and deleted_at is null`, strings.Join(sets, ", "), idx)
		args = append(args, id)
		res, err := s.db.ExecContext(ctx, query, args...)
		if err != nil {
			if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrUniqueViolation {
				return clients.Client{}, clients.ErrConflict
			}
			return clients.Client{}, err
		}
		aff, err := res.RowsAffected()
		if err != nil {
			return clients.Client{}, err
		}
		if aff == 0 {
			return clients.Client{}, clients.ErrNotFound
		}
	}
	return s.Get(ctx, id)
}

func (s *Store) SoftDelete(ctx context.Context, id, actorID string) error {
	if s.db == nil {
		return errors.New("database connection unavailable")
	}
	res, err := s.db.ExecContext(ctx, `
		update clientes
		set ativo = false, deleted_at = now(), deleted_by = $2, updated_at = now()
		where id = $1 and deleted_at is null
	`, id, nullIfEmpty(actorID))
	if err != nil {
		return err
	}
	aff, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if aff == 0 {
		return clients.ErrNotFound
	}
	return nil
}

func (s *Store) Count(ctx context.Context) (int, error) {
	if s.db == nil {
		return 0, errors.New("database connection unavailable")
	}
	var count int
	err := s.db.QueryRowContext(ctx, `
		select count(*) from clientes
		where deleted_at is null and ativo
	`).Scan(&count)
	if err != nil {
		return 0, err
	}
	return count, nil
}

func scanClient(row rowScanner) (clients.Client, error) {
	var (
		client clients.Client
		birth  sql.NullTime
		opt    [11]sql.NullString
		delAt  sql.NullTime
		delBy  sql.NullString
	)
	err := row.Scan(&client.ID, &client.Name, &client.Phone, &client.CPF, &birth,
		&opt[0], &opt[1], &opt[2], &opt[3], &opt[4], &opt[5],
		&opt[6], &opt[7], &opt[8], &opt[9], &opt[10],
		&client.Active, &delAt, &delBy, &client.CreatedAt, &client.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return clients.Client{}, clients.ErrNotFound
	}
	if err != nil {
		return clients.Client{}, err
	}
	if birth.Valid {
		t := birth.Time
		client.BirthDate = &t
	}
	fields := []*string{
		&client.PostalCode, &client.Street, &client.Number, &client.District, &client.City,
		&client.PixKey, &client.EmergencyName1, &client.EmergencyPhone1,
		&client.EmergencyName2, &client.EmergencyPhone2, &client.Label,
	}
	for i, dst := range fields {
		if opt[i].Valid {
			*dst = opt[i].String
		}
	}
	if delAt.Valid {
		t := delAt.Time
		client.DeletedAt = &t
	}
	if delBy.Valid {
		client.DeletedBy = delBy.String
	}
	return client, nil
}
