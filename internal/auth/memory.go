package auth

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/guustavogomes/emprestimosdiario/internal/ids"
)

// InMemoryStore is a Store backed by maps. It exists for tests and local
// experiments; production traffic goes through the PostgreSQL store.
type InMemoryStore struct {
	mu          sync.RWMutex
	identities  map[string]Identity
	profiles    map[string]Profile
	permissions map[string]Permission
	permByPair  map[string]string
	grants      map[string]map[string]struct{}
	now         func() time.Time
}

// NewInMemoryStore builds an empty store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		identities:  make(map[string]Identity),
		profiles:    make(map[string]Profile),
		permissions: make(map[string]Permission),
		permByPair:  make(map[string]string),
		grants:      make(map[string]map[string]struct{}),
		now:         time.Now,
	}
}

// SetClock overrides the time source for tests.
func (m *InMemoryStore) SetClock(fn func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if fn != nil {
		m.now = fn
	}
}

func (m *InMemoryStore) CreateIdentity(_ context.Context, ident *Identity) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.identities {
		if existing.CPF == ident.CPF && !existing.Deleted() {
			return ErrConflict
		}
	}
	if ident.ID == "" {
		ident.ID = ids.New()
	}
	now := m.now().UTC()
	ident.CreatedAt = now
	ident.UpdatedAt = now
	m.identities[ident.ID] = *ident
	return nil
}

func (m *InMemoryStore) GetIdentity(_ context.Context, id string) (Identity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ident, ok := m.identities[id]
	if !ok {
		return Identity{}, ErrNotFound
	}
	return ident, nil
}

func (m *InMemoryStore) FindIdentityByCPF(_ context.Context, cpf string) (Identity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, ident := range m.identities {
		if ident.CPF == cpf && !ident.Deleted() {
			return ident, nil
		}
	}
	return Identity{}, ErrNotFound
}

func (m *InMemoryStore) ListIdentities(_ context.Context) ([]Identity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Identity, 0, len(m.identities))
	for _, ident := range m.identities {
		if ident.Deleted() {
			continue
		}
		out = append(out, ident)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (m *InMemoryStore) UpdateIdentity(_ context.Context, id string, upd IdentityUpdate) (Identity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ident, ok := m.identities[id]
	if !ok || ident.Deleted() {
		return Identity{}, ErrNotFound
	}
	if upd.CPF != nil && *upd.CPF != ident.CPF {
		for otherID, other := range m.identities {
			if otherID != id && other.CPF == *upd.CPF && !other.Deleted() {
				return Identity{}, ErrConflict
			}
		}
		ident.CPF = *upd.CPF
	}
	if upd.Name != nil {
		ident.Name = *upd.Name
	}
	if upd.Email != nil {
		ident.Email = *upd.Email
	}
	if upd.Password != nil {
		ident.PasswordHash = *upd.Password
	}
	if upd.Role != nil {
		ident.Role = *upd.Role
	}
	if upd.ProfileID != nil {
		ident.ProfileID = *upd.ProfileID
	}
	ident.UpdatedAt = m.now().UTC()
	m.identities[id] = ident
	return ident, nil
}

func (m *InMemoryStore) SoftDeleteIdentity(_ context.Context, id, actorID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	ident, ok := m.identities[id]
	if !ok || ident.Deleted() {
		return ErrNotFound
	}
	ident.SoftDelete(actorID, m.now())
	ident.UpdatedAt = m.now().UTC()
	m.identities[id] = ident
	return nil
}

func (m *InMemoryStore) CountIdentitiesByProfile(_ context.Context, profileID string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	count := 0
	for _, ident := range m.identities {
		if ident.ProfileID == profileID && !ident.Deleted() {
			count++
		}
	}
	return count, nil
}

func (m *InMemoryStore) CountIdentitiesByRole(_ context.Context) (map[RoleTag]int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	counts := make(map[RoleTag]int)
	for _, ident := range m.identities {
		if ident.Deleted() {
			continue
		}
		counts[ident.Role]++
	}
	return counts, nil
}

func (m *InMemoryStore) CreateProfile(_ context.Context, profile *Profile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.profiles {
		if strings.EqualFold(existing.Name, profile.Name) && !existing.Deleted() {
			return ErrConflict
		}
	}
	if profile.ID == "" {
		profile.ID = ids.New()
	}
	now := m.now().UTC()
	profile.CreatedAt = now
	profile.UpdatedAt = now
	m.profiles[profile.ID] = *profile
	m.grants[profile.ID] = make(map[string]struct{})
	return nil
}

func (m *InMemoryStore) GetProfile(_ context.Context, id string) (Profile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	profile, ok := m.profiles[id]
	if !ok || profile.Deleted() {
		return Profile{}, ErrNotFound
	}
	profile.Permissions = m.profilePermissionsLocked(id)
	return profile, nil
}

func (m *InMemoryStore) ListProfiles(_ context.Context) ([]Profile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Profile, 0, len(m.profiles))
	for id, profile := range m.profiles {
		if profile.Deleted() {
			continue
		}
		profile.Permissions = m.profilePermissionsLocked(id)
		out = append(out, profile)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *InMemoryStore) UpdateProfile(_ context.Context, id string, upd ProfileUpdate) (Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	profile, ok := m.profiles[id]
	if !ok || profile.Deleted() {
		return Profile{}, ErrNotFound
	}
	if upd.Name != nil && !strings.EqualFold(*upd.Name, profile.Name) {
		for otherID, other := range m.profiles {
			if otherID != id && strings.EqualFold(other.Name, *upd.Name) && !other.Deleted() {
				return Profile{}, ErrConflict
			}
		}
		profile.Name = *upd.Name
	}
	if upd.Description != nil {
		profile.Description = *upd.Description
	}
	profile.UpdatedBy = upd.UpdatedBy
	profile.UpdatedAt = m.now().UTC()
	m.profiles[id] = profile
	profile.Permissions = m.profilePermissionsLocked(id)
	return profile, nil
}

func (m *InMemoryStore) SoftDeleteProfile(_ context.Context, id, actorID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	profile, ok := m.profiles[id]
	if !ok || profile.Deleted() {
		return ErrNotFound
	}
	profile.SoftDelete(actorID, m.now())
	profile.UpdatedAt = m.now().UTC()
	m.profiles[id] = profile
	return nil
}

func (m *InMemoryStore) CountProfiles(_ context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	count := 0
	for _, profile := range m.profiles {
		if !profile.Deleted() {
			count++
		}
	}
	return count, nil
}

func (m *InMemoryStore) EnsurePermissions(_ context.Context, perms []Permission) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, perm := range perms {
		key := permKey(perm.Resource, perm.Action)
		if _, ok := m.permByPair[key]; ok {
			continue
		}
		if perm.ID == "" {
			perm.ID = ids.New()
		}
		perm.CreatedAt = m.now().UTC()
		m.permissions[perm.ID] = perm
		m.permByPair[key] = perm.ID
	}
	return nil
}

func (m *InMemoryStore) ListPermissions(_ context.Context) ([]Permission, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Permission, 0, len(m.permissions))
	for _, perm := range m.permissions {
		out = append(out, perm)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Resource != out[j].Resource {
			return out[i].Resource < out[j].Resource
		}
		return out[i].Action < out[j].Action
	})
	return out, nil
}

func (m *InMemoryStore) ProfilePermissions(_ context.Context, profileID string) ([]Permission, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.profilePermissionsLocked(profileID), nil
}

func (m *InMemoryStore) GrantPermission(_ context.Context, profileID, permissionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.profiles[profileID]; !ok {
		return ErrNotFound
	}
	if _, ok := m.permissions[permissionID]; !ok {
		return ErrNotFound
	}
	if m.grants[profileID] == nil {
		m.grants[profileID] = make(map[string]struct{})
	}
	m.grants[profileID][permissionID] = struct{}{}
	return nil
}

func (m *InMemoryStore) SetProfilePermissions(_ context.Context, profileID string, permissionIDs []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.profiles[profileID]; !ok {
		return ErrNotFound
	}
	next := make(map[string]struct{}, len(permissionIDs))
	for _, permissionID := range permissionIDs {
		if _, ok := m.permissions[permissionID]; !ok {
			return ErrNotFound
		}
		next[permissionID] = struct{}{}
	}
	m.grants[profileID] = next
	return nil
}

// PermissionID resolves a (resource, action) pair to its catalog id.
// Test helper; returns the empty string when the pair is unknown.
func (m *InMemoryStore) PermissionID(resource, action string) string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.permByPair[permKey(resource, action)]
}

func (m *InMemoryStore) profilePermissionsLocked(profileID string) []Permission {
	grantSet := m.grants[profileID]
	out := make([]Permission, 0, len(grantSet))
	for permissionID := range grantSet {
		if perm, ok := m.permissions[permissionID]; ok {
			out = append(out, perm)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Resource != out[j].Resource {
			return out[i].Resource < out[j].Resource
		}
		return out[i].Action < out[j].Action
	})
	return out
}

func permKey(resource, action string) string { return resource + ":" + action }

var _ Store = (*InMemoryStore)(nil)
