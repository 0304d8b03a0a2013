package auth

import "context"

// IdentityUpdate is a partial update; nil fields are left untouched. A
// non-nil empty ProfileID detaches the profile.
type IdentityUpdate struct {
	Name      *string
	Email     *string
	CPF       *string
	Password  *string
	Role      *RoleTag
	ProfileID *string
}

// ProfileUpdate is a partial update for profile metadata. Permission set
// replacement goes through SetProfilePermissions.
type ProfileUpdate struct {
	Name        *string
	Description *string
	UpdatedBy   string
}

// Store describes the persistence operations the RBAC subsystem needs.
// Implementations: the PostgreSQL store and an in-memory test double.
type Store interface {
	// Identities. Point lookups return soft-deleted rows (the audit trail
	// still references them); listings exclude them.
	CreateIdentity(ctx context.Context, ident *Identity) error
	GetIdentity(ctx context.Context, id string) (Identity, error)
	FindIdentityByCPF(ctx context.Context, cpf string) (Identity, error)
	ListIdentities(ctx context.Context) ([]Identity, error)
	UpdateIdentity(ctx context.Context, id string, upd IdentityUpdate) (Identity, error)
	SoftDeleteIdentity(ctx context.Context, id, actorID string) error
	CountIdentitiesByProfile(ctx context.Context, profileID string) (int, error)
	CountIdentitiesByRole(ctx context.Context) (map[RoleTag]int, error)

	// Profiles.
	CreateProfile(ctx context.Context, profile *Profile) error
	GetProfile(ctx context.Context, id string) (Profile, error)
	ListProfiles(ctx context.Context) ([]Profile, error)
	UpdateProfile(ctx context.Context, id string, upd ProfileUpdate) (Profile, error)
	SoftDeleteProfile(ctx context.Context, id, actorID string) error
	CountProfiles(ctx context.Context) (int, error)

	// Permission catalog and grants. SetProfilePermissions replaces the
	// grant set inside one transaction, applying only the difference
	// between current and desired grants. GrantPermission is idempotent.
	EnsurePermissions(ctx context.Context, perms []Permission) error
	ListPermissions(ctx context.Context) ([]Permission, error)
	ProfilePermissions(ctx context.Context, profileID string) ([]Permission, error)
	GrantPermission(ctx context.Context, profileID, permissionID string) error
	SetProfilePermissions(ctx context.Context, profileID string, permissionIDs []string) error
}
