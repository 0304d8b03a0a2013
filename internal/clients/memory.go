package clients

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/guustavogomes/emprestimosdiario/internal/auth"
	"github.com/guustavogomes/emprestimosdiario/internal/ids"
)

// InMemoryStore is the test double for Store and, when given an identity
// sink, RegistrationStore.
type InMemoryStore struct {
	mu         sync.RWMutex
	records    map[string]Client
	identities auth.Store
	now        func() time.Time
}

// NewInMemoryStore builds an empty store. identities may be nil when
// registration is not under test.
func NewInMemoryStore(identities auth.Store) *InMemoryStore {
	return &InMemoryStore{
		records:    make(map[string]Client),
		identities: identities,
		now:        time.Now,
	}
}

func (m *InMemoryStore) Create(_ context.Context, client *Client) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.createLocked(client)
}

func (m *InMemoryStore) createLocked(client *Client) error {
	for _, existing := range m.records {
		if existing.CPF == client.CPF && !existing.Deleted() {
			return ErrConflict
		}
	}
	if client.ID == "" {
		client.ID = ids.New()
	}
	now := m.now().UTC()
	client.CreatedAt = now
	client.UpdatedAt = now
	m.records[client.ID] = *client
	return nil
}

func (m *InMemoryStore) Get(_ context.Context, id string) (Client, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	client, ok := m.records[id]
	if !ok {
		return Client{}, ErrNotFound
	}
	return client, nil
}

func (m *InMemoryStore) FindByCPF(_ context.Context, cpf string) (Client, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, client := range m.records {
		if client.CPF == cpf && !client.Deleted() {
			return client, nil
		}
	}
	return Client{}, ErrNotFound
}

func (m *InMemoryStore) List(_ context.Context, filter Filter) ([]Client, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	search := strings.ToLower(filter.Search)
	out := make([]Client, 0, len(m.records))
	for _, client := range m.records {
		if client.Deleted() {
			continue
		}
		if filter.Label != "" && client.Label != filter.Label {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(client.Name), search) &&
			!strings.Contains(client.CPF, filter.Search) &&
			!strings.Contains(client.Phone, filter.Search) {
			continue
		}
		out = append(out, client)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (m *InMemoryStore) Update(_ context.Context, id string, upd Update) (Client, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	client, ok := m.records[id]
	if !ok || client.Deleted() {
		return Client{}, ErrNotFound
	}
	if upd.CPF != nil && *upd.CPF != client.CPF {
		for otherID, other := range m.records {
			if otherID != id && other.CPF == *upd.CPF && !other.Deleted() {
				return Client{}, ErrConflict
			}
		}
		client.CPF = *upd.CPF
	}
	applyString := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}
	applyString(&client.Name, upd.Name)
	applyString(&client.Phone, upd.Phone)
	applyString(&client.PostalCode, upd.PostalCode)
	applyString(&client.Street, upd.Street)
	applyString(&client.Number, upd.Number)
	applyString(&client.District, upd.District)
	applyString(&client.City, upd.City)
	applyString(&client.PixKey, upd.PixKey)
	applyString(&client.EmergencyName1, upd.EmergencyName1)
	applyString(&client.EmergencyPhone1, upd.EmergencyPhone1)
	applyString(&client.EmergencyName2, upd.EmergencyName2)
	applyString(&client.EmergencyPhone2, upd.EmergencyPhone2)
	applyString(&client.Label, upd.Label)
	if upd.BirthDate != nil {
		client.BirthDate = upd.BirthDate
	}
	client.UpdatedAt = m.now().UTC()
	m.records[id] = client
	return client, nil
}

func (m *InMemoryStore) SoftDelete(_ context.Context, id, actorID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	client, ok := m.records[id]
	if !ok || client.Deleted() {
		return ErrNotFound
	}
	client.SoftDelete(actorID, m.now())
	client.UpdatedAt = m.now().UTC()
	m.records[id] = client
	return nil
}

func (m *InMemoryStore) Count(_ context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	count := 0
	for _, client := range m.records {
		if !client.Deleted() {
			count++
		}
	}
	return count, nil
}

// Register creates the record and the login. Sequential rather than
// atomic, which is acceptable for a test double.
func (m *InMemoryStore) Register(ctx context.Context, client *Client, identity *auth.Identity) error {
	m.mu.Lock()
	if err := m.createLocked(client); err != nil {
		m.mu.Unlock()
		return err
	}
	m.mu.Unlock()
	if m.identities != nil {
		return m.identities.CreateIdentity(ctx, identity)
	}
	return nil
}

var (
	_ Store             = (*InMemoryStore)(nil)
	_ RegistrationStore = (*InMemoryStore)(nil)
)
