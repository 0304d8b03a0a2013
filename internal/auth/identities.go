package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// NewIdentity is the input for creating a back-office identity.
type NewIdentity struct {
	Name      string
	Email     string
	CPF       string
	Password  string
	Role      RoleTag
	ProfileID string
}

// CreateIdentity registers an identity. The CPF is the login handle and
// must be unique among live identities.
func (s *Service) CreateIdentity(ctx context.Context, in NewIdentity) (Identity, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.CPF = normalizeCPF(in.CPF)
	in.Email = strings.TrimSpace(in.Email)
	if in.Name == "" || in.CPF == "" || in.Password == "" {
		return Identity{}, fmt.Errorf("%w: nome, cpf e senha são obrigatórios", ErrInvalidInput)
	}
	role, ok := ParseRoleTag(string(in.Role))
	if !ok {
		return Identity{}, fmt.Errorf("%w: tipo de usuário inválido: %q", ErrInvalidInput, in.Role)
	}
	in.Role = role
	if in.ProfileID != "" {
		if _, err := s.store.GetProfile(ctx, in.ProfileID); err != nil {
			if errors.Is(err, ErrNotFound) {
				return Identity{}, fmt.Errorf("%w: perfil não encontrado", ErrInvalidInput)
			}
			return Identity{}, err
		}
	}
	hash, err := HashPassword(in.Password)
	if err != nil {
		return Identity{}, err
	}
	ident := Identity{
		Name:         in.Name,
		Email:        in.Email,
		CPF:          in.CPF,
		PasswordHash: hash,
		Role:         in.Role,
		ProfileID:    in.ProfileID,
		Lifecycle:    Lifecycle{Active: true},
	}
	if err := s.store.CreateIdentity(ctx, &ident); err != nil {
		if errors.Is(err, ErrConflict) {
			return Identity{}, fmt.Errorf("%w: CPF já cadastrado", ErrConflict)
		}
		return Identity{}, err
	}
	return ident, nil
}

// IdentityPatch is the caller-facing partial update. An empty non-nil
// Password is rejected; a non-nil empty ProfileID detaches the profile.
type IdentityPatch struct {
	Name      *string
	Email     *string
	CPF       *string
	Password  *string
	Role      *RoleTag
	ProfileID *string
}

// UpdateIdentity applies the patch and returns the updated identity.
func (s *Service) UpdateIdentity(ctx context.Context, id string, patch IdentityPatch) (Identity, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Identity{}, fmt.Errorf("%w: identity id is required", ErrInvalidInput)
	}
	upd := IdentityUpdate{}
	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		if name == "" {
			return Identity{}, fmt.Errorf("%w: nome is required", ErrInvalidInput)
		}
		upd.Name = &name
	}
	if patch.Email != nil {
		email := strings.TrimSpace(*patch.Email)
		upd.Email = &email
	}
	if patch.CPF != nil {
		cpf := normalizeCPF(*patch.CPF)
		if cpf == "" {
			return Identity{}, fmt.Errorf("%w: cpf is required", ErrInvalidInput)
		}
		upd.CPF = &cpf
	}
	if patch.Password != nil {
		hash, err := HashPassword(*patch.Password)
		if err != nil {
			return Identity{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		upd.Password = &hash
	}
	if patch.Role != nil {
		role, ok := ParseRoleTag(string(*patch.Role))
		if !ok {
			return Identity{}, fmt.Errorf("%w: tipo de usuário inválido: %q", ErrInvalidInput, *patch.Role)
		}
		upd.Role = &role
	}
	if patch.ProfileID != nil {
		profileID := strings.TrimSpace(*patch.ProfileID)
		if profileID != "" {
			if _, err := s.store.GetProfile(ctx, profileID); err != nil {
				if errors.Is(err, ErrNotFound) {
					return Identity{}, fmt.Errorf("%w: perfil não encontrado", ErrInvalidInput)
				}
				return Identity{}, err
			}
		}
		upd.ProfileID = &profileID
	}
	ident, err := s.store.UpdateIdentity(ctx, id, upd)
	if err != nil {
		if errors.Is(err, ErrConflict) {
			return Identity{}, fmt.Errorf("%w: CPF já cadastrado", ErrConflict)
		}
		return Identity{}, err
	}
	return ident, nil
}

// DeleteIdentity soft-deletes an identity. Deleting yourself is refused:
// an operator must not be able to lock the whole office out by removing
// the last account they control.
func (s *Service) DeleteIdentity(ctx context.Context, id, actorID string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("%w: identity id is required", ErrInvalidInput)
	}
	if id == actorID {
		return fmt.Errorf("%w: você não pode deletar seu próprio usuário", ErrInvalidInput)
	}
	ident, err := s.store.GetIdentity(ctx, id)
	if err != nil {
		return err
	}
	if ident.Deleted() {
		return ErrNotFound
	}
	return s.store.SoftDeleteIdentity(ctx, id, actorID)
}

// GetIdentity loads one identity, soft-deleted or not.
func (s *Service) GetIdentity(ctx context.Context, id string) (Identity, error) {
	return s.store.GetIdentity(ctx, id)
}

// ListIdentities returns live identities, newest first.
func (s *Service) ListIdentities(ctx context.Context) ([]Identity, error) {
	return s.store.ListIdentities(ctx)
}

// Summarize resolves the identity into the shape the session endpoints
// return: core facts plus the flattened permission set.
func (s *Service) Summarize(ctx context.Context, id string) (IdentitySummary, error) {
	ident, err := s.store.GetIdentity(ctx, id)
	if err != nil {
		return IdentitySummary{}, err
	}
	perms, err := s.UserPermissions(ctx, id)
	if err != nil {
		return IdentitySummary{}, err
	}
	return IdentitySummary{
		ID:          ident.ID,
		Name:        ident.Name,
		Email:       ident.Email,
		CPF:         ident.CPF,
		Role:        ident.Role,
		ProfileID:   ident.ProfileID,
		Permissions: perms,
	}, nil
}

// normalizeCPF strips the usual formatting punctuation so "123.456.789-00"
// and "12345678900" land on the same row.
func normalizeCPF(cpf string) string {
	cpf = strings.TrimSpace(cpf)
	cpf = strings.ReplaceAll(cpf, ".", "")
	cpf = strings.ReplaceAll(cpf, "-", "")
	return cpf
}
