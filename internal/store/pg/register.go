package pg

import (
	"context"
	"errors"
	"fmt"

	"github.com/guustavogomes/emprestimosdiario/internal/auth"
	"github.com/guustavogomes/emprestimosdiario/internal/clients"
	"github.com/guustavogomes/emprestimosdiario/internal/ids"
)

var _ clients.RegistrationStore = (*Store)(nil)

// Register creates the customer record and its login identity in one
// transaction. Either both rows land or neither does.
func (s *Store) Register(ctx context.Context, client *clients.Client, identity *auth.Identity) error {
	if s.db == nil {
		return errors.New("database connection unavailable")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if err := insertClient(ctx, tx, client); err != nil {
		return err
	}

	if identity.ID == "" {
		identity.ID = ids.New()
	}
	row := tx.QueryRowContext(ctx, `
		insert into usuarios (id, nome, email, cpf, password_hash, tipo, profile_id, ativo)
		values ($1, $2, $3, $4, $5, $6, $7, $8)
		returning created_at, updated_at
	`, identity.ID, identity.Name, nullIfEmpty(identity.Email), identity.CPF, identity.PasswordHash,
		string(identity.Role), nullIfEmpty(identity.ProfileID), identity.Active)
	if err := row.Scan(&identity.CreatedAt, &identity.UpdatedAt); err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrUniqueViolation {
			return fmt.Errorf("%w: CPF já cadastrado", clients.ErrConflict)
		}
		return err
	}

	return tx.Commit()
}
