package auth

import (
	"strings"
	"time"
)

// RoleTag is the coarse role carried by every identity. ADMIN is a
// super-user sentinel: it bypasses the permission table entirely. Every
// other role is checked against the identity's attached profile.
type RoleTag string

const (
	RoleAdmin     RoleTag = "ADMIN"
	RoleManager   RoleTag = "GERENTE"
	RoleAnalyst   RoleTag = "ANALISTA"
	RoleCollector RoleTag = "COBRANCA"
	RoleClient    RoleTag = "CLIENT"
)

var roleTags = map[RoleTag]struct{}{
	RoleAdmin:     {},
	RoleManager:   {},
	RoleAnalyst:   {},
	RoleCollector: {},
	RoleClient:    {},
}

// ParseRoleTag normalizes and validates a role tag value.
func ParseRoleTag(raw string) (RoleTag, bool) {
	tag := RoleTag(strings.ToUpper(strings.TrimSpace(raw)))
	_, ok := roleTags[tag]
	return tag, ok
}

// IsAdmin reports whether the role resolves every permission check to true.
func (r RoleTag) IsAdmin() bool { return r == RoleAdmin }

// Lifecycle is the shared soft-deletion state embedded in identities and
// profiles. A soft-deleted row stays in storage for audit integrity.
type Lifecycle struct {
	Active    bool       `json:"ativo"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
	DeletedBy string     `json:"deleted_by,omitempty"`
}

// SoftDelete marks the row inactive recording when and by whom.
func (l *Lifecycle) SoftDelete(actorID string, at time.Time) {
	at = at.UTC()
	l.Active = false
	l.DeletedAt = &at
	l.DeletedBy = actorID
}

// Deleted reports whether the row has been soft-deleted.
func (l Lifecycle) Deleted() bool { return l.DeletedAt != nil }

// Identity is an authenticable principal: back-office staff or a
// self-service customer. The CPF is the immutable natural key.
type Identity struct {
	ID           string  `json:"id"`
	Name         string  `json:"nome"`
	Email        string  `json:"email,omitempty"`
	CPF          string  `json:"cpf"`
	PasswordHash string  `json:"-"`
	Role         RoleTag `json:"tipo"`
	ProfileID    string  `json:"profile_id,omitempty"`
	Lifecycle
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Permission is an atomic (resource, action) capability. The pair is the
// real identity of the row; the surrogate id only exists for joins.
type Permission struct {
	ID          string    `json:"id"`
	Resource    string    `json:"resource"`
	Action      string    `json:"action"`
	Description string    `json:"descricao,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// PermissionCheck names a required (resource, action) pair.
type PermissionCheck struct {
	Resource string `json:"resource"`
	Action   string `json:"action"`
}

// Profile is a named bundle of permissions (a role).
type Profile struct {
	ID          string       `json:"id"`
	Name        string       `json:"nome"`
	Description string       `json:"descricao,omitempty"`
	Permissions []Permission `json:"permissions,omitempty"`
	CreatedBy   string       `json:"created_by,omitempty"`
	UpdatedBy   string       `json:"updated_by,omitempty"`
	Lifecycle
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IdentitySummary is what authentication yields: the identity facts plus
// the fully resolved permission set. The password hash never leaves the
// package through this type.
type IdentitySummary struct {
	ID          string            `json:"id"`
	Name        string            `json:"nome"`
	Email       string            `json:"email,omitempty"`
	CPF         string            `json:"cpf"`
	Role        RoleTag           `json:"tipo"`
	ProfileID   string            `json:"profile_id,omitempty"`
	Permissions []PermissionCheck `json:"permissions"`
}
