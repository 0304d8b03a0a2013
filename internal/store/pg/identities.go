package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/guustavogomes/emprestimosdiario/internal/auth"
	"github.com/guustavogomes/emprestimosdiario/internal/ids"
)

var _ auth.Store = (*Store)(nil)

const identityColumns = `id, nome, email, cpf, password_hash, tipo, profile_id, ativo, deleted_at, deleted_by, created_at, updated_at`

func (s *Store) CreateIdentity(ctx context.Context, ident *auth.Identity) error {
	if s.db == nil {
		return errors.New("database connection unavailable")
	}
	if ident.ID == "" {
		ident.ID = ids.New()
	}
	row := s.db.QueryRowContext(ctx, `
		insert into usuarios (id, nome, email, cpf, password_hash, tipo, profile_id, ativo)
		values ($1, $2, $3, $4, $5, $6, $7, $8)
		returning created_at, updated_at
	`, ident.ID, ident.Name, nullIfEmpty(ident.Email), ident.CPF, ident.PasswordHash,
		string(ident.Role), nullIfEmpty(ident.ProfileID), ident.Active)
	if err := row.Scan(&ident.CreatedAt, &ident.UpdatedAt); err != nil {
		if pgErr, ok := maybePgError(err); ok {
			switch pgErr.Code {
			case pgErrUniqueViolation:
				return auth.ErrConflict
			case pgErrForeignKeyViolation:
				return fmt.Errorf("%w: perfil não encontrado", auth.ErrInvalidInput)
			}
		}
		return err
	}
	return nil
}

func (s *Store) GetIdentity(ctx context.Context, id string) (auth.Identity, error) {
	if s.db == nil {
		return auth.Identity{}, errors.New("database connection unavailable")
	}
	row := s.db.QueryRowContext(ctx, `
		select `+identityColumns+`
		from usuarios
		where id = $1
	`, id)
	return scanIdentity(row)
}

func (s *Store) FindIdentityByCPF(ctx context.Context, cpf string) (auth.Identity, error) {
	if s.db == nil {
		return auth.Identity{}, errors.New("database connection unavailable")
	}
	row := s.db.QueryRowContext(ctx, `
		select `+identityColumns+`
		from usuarios
		where cpf = $1 and deleted_at is null
	`, cpf)
	return scanIdentity(row)
}

func (s *Store) ListIdentities(ctx context.Context) ([]auth.Identity, error) {
	if s.db == nil {
		return nil, errors.New("database connection unavailable")
	}
	rows, err := s.db.QueryContext(ctx, `
		select `+identityColumns+`
		from usuarios
		where deleted_at is null
		order by created_at desc, id desc
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []auth.Identity
	for rows.Next() {
		ident, err := scanIdentity(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, ident)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Store) UpdateIdentity(ctx context.Context, id string, upd auth.IdentityUpdate) (auth.Identity, error) {
	if s.db == nil {
		return auth.Identity{}, errors.New("database connection unavailable")
	}
	var (
		sets []string
		args []any
		idx  = 1
	)
	if upd.Name != nil {
		sets = append(sets, fmt.Sprintf("nome = $%d", idx))
		args = append(args, *upd.Name)
		idx++
	}
	if upd.Email != nil {
		if *upd.Email == "" {
			sets = append(sets, "email = NULL")
		} else {
			sets = append(sets, fmt.Sprintf("email = $%d", idx))
			args = append(args, *upd.Email)
			idx++
		}
	}
	if upd.CPF != nil {
		sets = append(sets, fmt.Sprintf("cpf = $%d", idx))
		args = append(args, *upd.CPF)
		idx++
	}
	if upd.Password != nil {
		sets = append(sets, fmt.Sprintf("password_hash = $%d", idx))
		args = append(args, *upd.Password)
		idx++
	}
	if upd.Role != nil {
		sets = append(sets, fmt.Sprintf("tipo = $%d", idx))
		args = append(args, string(*upd.Role))
		idx++
	}
	if upd.ProfileID != nil {
		if *upd.ProfileID == "" {
			sets = append(sets, "profile_id = NULL")
		} else {
			sets = append(sets, fmt.Sprintf("profile_id = $%d", idx))
			args = append(args, *upd.ProfileID)
			idx++
		}
	}
	if len(sets) > 0 {
		sets = append(sets, "updated_at = now()")
		query := fmt.Sprintf(`update usuarios set %s where id = $%d and deleted_at is null`, strings.Join(sets, ", "), idx)
		args = append(args, id)
		res, err := s.db.ExecContext(ctx, query, args...)
		if err != nil {
			if pgErr, ok := maybePgError(err); ok {
				switch pgErr.Code {
				case pgErrUniqueViolation:
					return auth.Identity{}, auth.ErrConflict
				case pgErrForeignKeyViolation:
					return auth.Identity{}, fmt.Errorf("%w: perfil não encontrado", auth.ErrInvalidInput)
				}
			}
			return auth.Identity{}, err
		}
		aff, err := res.RowsAffected()
		if err != nil {
			return auth.Identity{}, err
		}
		if aff == 0 {
			return auth.Identity{}, auth.ErrNotFound
		}
	}
	return s.GetIdentity(ctx, id)
}

func (s *Store) SoftDeleteIdentity(ctx context.Context, id, actorID string) error {
	if s.db == nil {
		return errors.New("database connection unavailable")
	}
	res, err := s.db.ExecContext(ctx, `
		update usuarios
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
		return auth.ErrNotFound
	}
	return nil
}

func (s *Store) CountIdentitiesByProfile(ctx context.Context, profileID string) (int, error) {
	if s.db == nil {
		return 0, errors.New("database connection unavailable")
	}
	var count int
	err := s.db.QueryRowContext(ctx, `
		select count(*) from usuarios
		where profile_id = $1 and deleted_at is null
	`, profileID).Scan(&count)
	if err != nil {
		return 0, err
	}
	return count, nil
}

func (s *Store) CountIdentitiesByRole(ctx context.Context) (map[auth.RoleTag]int, error) {
	if s.db == nil {
		return nil, errors.New("database connection unavailable")
	}
	rows, err := s.db.QueryContext(ctx, `
		select tipo, count(*)
		from usuarios
		where deleted_at is null and ativo
		group by tipo
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[auth.RoleTag]int)
	for rows.Next() {
		var (
			tag   string
			count int
		)
		if err := rows.Scan(&tag, &count); err != nil {
			return nil, err
		}
		counts[auth.RoleTag(tag)] = count
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return counts, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanIdentity(row rowScanner) (auth.Identity, error) {
	var (
		ident     auth.Identity
		email     sql.NullString
		tipo      string
		profileID sql.NullString
		deletedAt sql.NullTime
		deletedBy sql.NullString
	)
	err := row.Scan(&ident.ID, &ident.Name, &email, &ident.CPF, &ident.PasswordHash,
		&tipo, &profileID, &ident.Active, &deletedAt, &deletedBy,
		&ident.CreatedAt, &ident.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return auth.Identity{}, auth.ErrNotFound
	}
	if err != nil {
		return auth.Identity{}, err
	}
	if email.Valid {
		ident.Email = email.String
	}
	ident.Role = auth.RoleTag(tipo)
	if profileID.Valid {
		ident.ProfileID = profileID.String
	}
	if deletedAt.Valid {
		t := deletedAt.Time
		ident.DeletedAt = &t
	}
	if deletedBy.Valid {
		ident.DeletedBy = deletedBy.String
	}
	return ident, nil
}
