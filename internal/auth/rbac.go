package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Service provides permission resolution and profile administration on
// top of a Store. It holds no state of its own; every check re-reads
// current grants, so a profile change is visible on the next request.
type Service struct {
	store Store
	now   func() time.Time
}

// ServiceOption configures Service behavior.
type ServiceOption func(*Service)

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) ServiceOption {
	return func(s *Service) {
		if fn != nil {
			s.now = fn
		}
	}
}

// NewService constructs the RBAC service.
func NewService(store Store, opts ...ServiceOption) (*Service, error) {
	if store == nil {
		return nil, errors.New("auth: store is required")
	}
	svc := &Service{store: store, now: time.Now}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// EnsureBuiltins seeds the permission catalog. Safe to call repeatedly.
func (s *Service) EnsureBuiltins(ctx context.Context) error {
	return s.store.EnsurePermissions(ctx, BuiltinPermissions())
}

// HasPermission resolves whether the identity may perform action on
// resource. Resolution dispatches on the role tag: the ADMIN arm is
// unconditionally true, every other arm delegates to the attached
// profile's grant set. Matching is exact, case included.
func (s *Service) HasPermission(ctx context.Context, identityID, resource, action string) (bool, error) {
	ident, err := s.store.GetIdentity(ctx, identityID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	if !ident.Active || ident.Deleted() {
		return false, nil
	}
	if ident.Role.IsAdmin() {
		return true, nil
	}
	if ident.ProfileID == "" {
		return false, nil
	}
	perms, err := s.store.ProfilePermissions(ctx, ident.ProfileID)
	if err != nil {
		return false, err
	}
	for _, p := range perms {
		if p.Resource == resource && p.Action == action {
			return true, nil
		}
	}
	return false, nil
}

// HasAnyPermission is a logical OR over the checks, short-circuiting on
// the first grant.
func (s *Service) HasAnyPermission(ctx context.Context, identityID string, checks []PermissionCheck) (bool, error) {
	for _, c := range checks {
		ok, err := s.HasPermission(ctx, identityID, c.Resource, c.Action)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

// HasAllPermissions is a logical AND over the checks, short-circuiting on
// the first denial.
func (s *Service) HasAllPermissions(ctx context.Context, identityID string, checks []PermissionCheck) (bool, error) {
	for _, c := range checks {
		ok, err := s.HasPermission(ctx, identityID, c.Resource, c.Action)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

// UserPermissions returns the fully resolved permission set: the whole
// catalog for administrators, the profile's grants otherwise, empty when
// the identity is absent or has no profile.
func (s *Service) UserPermissions(ctx context.Context, identityID string) ([]PermissionCheck, error) {
	ident, err := s.store.GetIdentity(ctx, identityID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return []PermissionCheck{}, nil
		}
		return nil, err
	}
	if ident.Role.IsAdmin() {
		perms, err := s.store.ListPermissions(ctx)
		if err != nil {
			return nil, err
		}
		return toChecks(perms), nil
	}
	if ident.ProfileID == "" {
		return []PermissionCheck{}, nil
	}
	perms, err := s.store.ProfilePermissions(ctx, ident.ProfileID)
	if err != nil {
		return nil, err
	}
	return toChecks(perms), nil
}

// ListPermissions exposes the seeded catalog.
func (s *Service) ListPermissions(ctx context.Context) ([]Permission, error) {
	return s.store.ListPermissions(ctx)
}

// CreateProfile creates a named profile and grants the given permissions.
// A name collision with a live profile is a conflict. Grants are inserted
// idempotently.
func (s *Service) CreateProfile(ctx context.Context, name, description, granterID string, permissionIDs []string) (Profile, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Profile{}, fmt.Errorf("%w: nome is required", ErrInvalidInput)
	}
	profile := Profile{
		Name:        name,
		Description: strings.TrimSpace(description),
		CreatedBy:   granterID,
		Lifecycle:   Lifecycle{Active: true},
	}
	if err := s.store.CreateProfile(ctx, &profile); err != nil {
		if errors.Is(err, ErrConflict) {
			return Profile{}, fmt.Errorf("%w: já existe um perfil com esse nome", ErrConflict)
		}
		return Profile{}, err
	}
	for _, permissionID := range dedupeStrings(permissionIDs) {
		if err := s.store.GrantPermission(ctx, profile.ID, permissionID); err != nil {
			return Profile{}, err
		}
	}
	return s.store.GetProfile(ctx, profile.ID)
}

// ProfilePatch is the caller-facing update shape. A non-nil PermissionIDs
// fully supersedes the previous grant set.
type ProfilePatch struct {
	Name          *string
	Description   *string
	PermissionIDs *[]string
}

// UpdateProfile applies the patch. Replacing the permission set is
// all-or-nothing: the store swaps the grants inside one transaction so a
// concurrent reader never observes the empty intermediate state.
func (s *Service) UpdateProfile(ctx context.Context, id string, patch ProfilePatch, updaterID string) (Profile, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Profile{}, fmt.Errorf("%w: profile id is required", ErrInvalidInput)
	}
	upd := ProfileUpdate{UpdatedBy: updaterID}
	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		if name == "" {
			return Profile{}, fmt.Errorf("%w: nome is required", ErrInvalidInput)
		}
		upd.Name = &name
	}
	if patch.Description != nil {
		desc := strings.TrimSpace(*patch.Description)
		upd.Description = &desc
	}
	if _, err := s.store.UpdateProfile(ctx, id, upd); err != nil {
		return Profile{}, err
	}
	if patch.PermissionIDs != nil {
		if err := s.store.SetProfilePermissions(ctx, id, dedupeStrings(*patch.PermissionIDs)); err != nil {
			return Profile{}, err
		}
	}
	return s.store.GetProfile(ctx, id)
}

// DeleteProfile soft-deletes a profile. While any identity still points
// at it the delete is refused; grant rows are never removed so history
// stays reconstructible.
func (s *Service) DeleteProfile(ctx context.Context, id, deleterID string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("%w: profile id is required", ErrInvalidInput)
	}
	if _, err := s.store.GetProfile(ctx, id); err != nil {
		return err
	}
	dependents, err := s.store.CountIdentitiesByProfile(ctx, id)
	if err != nil {
		return err
	}
	if dependents > 0 {
		return fmt.Errorf("%w: não é possível deletar, existem %d usuário(s) vinculado(s) a este perfil", ErrConflict, dependents)
	}
	return s.store.SoftDeleteProfile(ctx, id, deleterID)
}

// GetProfile loads a profile with its permission set.
func (s *Service) GetProfile(ctx context.Context, id string) (Profile, error) {
	return s.store.GetProfile(ctx, id)
}

// ListProfiles returns live profiles ordered by name.
func (s *Service) ListProfiles(ctx context.Context) ([]Profile, error) {
	return s.store.ListProfiles(ctx)
}

// CountProfiles reports how many live profiles exist.
func (s *Service) CountProfiles(ctx context.Context) (int, error) {
	return s.store.CountProfiles(ctx)
}

// CountIdentitiesByRole groups live identities by role tag.
func (s *Service) CountIdentitiesByRole(ctx context.Context) (map[RoleTag]int, error) {
	return s.store.CountIdentitiesByRole(ctx)
}

func toChecks(perms []Permission) []PermissionCheck {
	checks := make([]PermissionCheck, 0, len(perms))
	for _, p := range perms {
		checks = append(checks, PermissionCheck{Resource: p.Resource, Action: p.Action})
	}
	return checks
}

func dedupeStrings(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(values))
	result := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		result = append(result, v)
	}
	return result
}
