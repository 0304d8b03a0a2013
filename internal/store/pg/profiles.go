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

const profileColumns = `id, nome, descricao, created_by, updated_by, ativo, deleted_at, deleted_by, created_at, updated_at`

func (s *Store) CreateProfile(ctx context.Context, profile *auth.Profile) error {
	if s.db == nil {
		return errors.New("database connection unavailable")
	}
	if profile.ID == "" {
		profile.ID = ids.New()
	}
	row := s.db.QueryRowContext(ctx, `
		insert into profiles (id, nome, descricao, created_by, ativo)
		values ($1, $2, $3, $4, $5)
		returning created_at, updated_at
	`, profile.ID, profile.Name, nullIfEmpty(profile.Description), nullIfEmpty(profile.CreatedBy), profile.Active)
	if err := row.Scan(&profile.CreatedAt, &profile.UpdatedAt); err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrUniqueViolation {
			return auth.ErrConflict
		}
		return err
	}
	return nil
}

func (s *Store) GetProfile(ctx context.Context, id string) (auth.Profile, error) {
	if s.db == nil {
		return auth.Profile{}, errors.New("database connection unavailable")
	}
	row := s.db.QueryRowContext(ctx, `
		select `+profileColumns+`
		from profiles
		where id = $1 and deleted_at is null
	`, id)
	profile, err := scanProfile(row)
	if err != nil {
		return auth.Profile{}, err
	}
	perms, err := s.ProfilePermissions(ctx, id)
	if err != nil {
		return auth.Profile{}, err
	}
	profile.Permissions = perms
	return profile, nil
}

func (s *Store) ListProfiles(ctx context.Context) ([]auth.Profile, error) {
	if s.db == nil {
		return nil, errors.New("database connection unavailable")
	}
	rows, err := s.db.QueryContext(ctx, `
		select `+profileColumns+`
		from profiles
		where deleted_at is null
		order by nome
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []auth.Profile
	for rows.Next() {
		profile, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, profile)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range result {
		perms, err := s.ProfilePermissions(ctx, result[i].ID)
		if err != nil {
			return nil, err
		}
		result[i].Permissions = perms
	}
	return result, nil
}

func (s *Store) UpdateProfile(ctx context.Context, id string, upd auth.ProfileUpdate) (auth.Profile, error) {
	if s.db == nil {
		return auth.Profile{}, errors.New("database connection unavailable")
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
	if upd.Description != nil {
		if *upd.Description == "" {
			sets = append(sets, "descricao = NULL")
		} else {
			sets = append(sets, fmt.Sprintf("descricao = $%d", idx))
			args = append(args, *upd.Description)
			idx++
		}
	}
	if len(sets) > 0 {
		if upd.UpdatedBy != "" {
			sets = append(sets, fmt.Sprintf("updated_by = $%d", idx))
			args = append(args, upd.UpdatedBy)
			idx++
		}
		sets = append(sets, "updated_at = now()")
		query := fmt.Sprintf(`update profiles set %s where id = $%d and deleted_at is null`, strings.Join(sets, ", "), idx)
		args = append(args, id)
		res, err := s.db.ExecContext(ctx, query, args...)
		if err != nil {
			if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrUniqueViolation {
				return auth.Profile{}, auth.ErrConflict
			}
			return auth.Profile{}, err
		}
		aff, err := res.RowsAffected()
		if err != nil {
			return auth.Profile{}, err
		}
		if aff == 0 {
			return auth.Profile{}, auth.ErrNotFound
		}
	}
	return s.GetProfile(ctx, id)
}

func (s *Store) SoftDeleteProfile(ctx context.Context, id, actorID string) error {
	if s.db == nil {
		return errors.New("database connection unavailable")
	}
	res, err := s.db.ExecContext(ctx, `
		update profiles
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

func (s *Store) CountProfiles(ctx context.Context) (int, error) {
	if s.db == nil {
		return 0, errors.New("database connection unavailable")
	}
	var count int
	err := s.db.QueryRowContext(ctx, `
		select count(*) from profiles
		where deleted_at is null and ativo
	`).Scan(&count)
	if err != nil {
		return 0, err
	}
	return count, nil
}

// SetProfilePermissions replaces the grant set by applying only the
// difference, inside one transaction. The profile row is locked first so
// two concurrent replacements serialize; readers on the default
// isolation level never observe a half-applied set.
func (s *Store) SetProfilePermissions(ctx context.Context, profileID string, permissionIDs []string) error {
	if s.db == nil {
		return errors.New("database connection unavailable")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var exists int
	if err := tx.QueryRowContext(ctx, `
		select 1 from profiles where id = $1 and deleted_at is null for update
	`, profileID).Scan(&exists); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return auth.ErrNotFound
		}
		return err
	}

	rows, err := tx.QueryContext(ctx, `
		select permission_id from profile_permissions where profile_id = $1
	`, profileID)
	if err != nil {
		return err
	}
	current := make(map[string]struct{})
	for rows.Next() {
		var permID string
		if err := rows.Scan(&permID); err != nil {
			rows.Close()
			return err
		}
		current[permID] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return err
	}
	rows.Close()

	desired := make(map[string]struct{}, len(permissionIDs))
	for _, permID := range permissionIDs {
		desired[permID] = struct{}{}
	}

	for permID := range current {
		if _, keep := desired[permID]; keep {
			continue
		}
		if _, err := tx.ExecContext(ctx, `
			delete from profile_permissions where profile_id = $1 and permission_id = $2
		`, profileID, permID); err != nil {
			return err
		}
	}
	for permID := range desired {
		if _, have := current[permID]; have {
			continue
		}
		if _, err := tx.ExecContext(ctx, `
			insert into profile_permissions (profile_id, permission_id)
			values ($1, $2)
			on conflict (profile_id, permission_id) do nothing
		`, profileID, permID); err != nil {
			if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrForeignKeyViolation {
				return fmt.Errorf("%w: permission %s not found", auth.ErrNotFound, permID)
			}
			return err
		}
	}
	return tx.Commit()
}

func scanProfile(row rowScanner) (auth.Profile, error) {
	var (
		profile   auth.Profile
		desc      sql.NullString
		createdBy sql.NullString
		updatedBy sql.NullString
		deletedAt sql.NullTime
		deletedBy sql.NullString
	)
	err := row.Scan(&profile.ID, &profile.Name, &desc, &createdBy, &updatedBy,
		&profile.Active, &deletedAt, &deletedBy, &profile.CreatedAt, &profile.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return auth.Profile{}, auth.ErrNotFound
	}
	if err != nil {
		return auth.Profile{}, err
	}
	if desc.Valid {
		profile.Description = desc.String
	}
	if createdBy.Valid {
		profile.CreatedBy = createdBy.String
	}
	if updatedBy.Valid {
		profile.UpdatedBy = updatedBy.String
	}
	if deletedAt.Valid {
		t := deletedAt.Time
		profile.DeletedAt = &t
	}
	if deletedBy.Valid {
		profile.DeletedBy = deletedBy.String
	}
	return profile, nil
}
