package audit

import (
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

func TestRecorderWritesAsync(t *testing.T) {
	store := NewInMemoryStore()
	rec := NewRecorder(store, 16)
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	rec.SetClock(func() time.Time { return base })

	actor := Actor{ID: "user-1", Name: "Maria"}
	info := RequestInfo{IPAddress: "10.0.0.1", UserAgent: "go-test"}
	rec.RecordLogin(actor, info)
	rec.RecordCreate(actor, "clientes", "cli-1", "João da Silva", info)
	rec.RecordDelete(actor, "usuarios", "user-9", "Conta Antiga", info)
	rec.Close()

	entries, total, err := store.List(context.Background(), Filter{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if total != 3 || len(entries) != 3 {
		t.Fatalf("trail = %d entries (total %d), want 3", len(entries), total)
	}
	for _, entry := range entries {
		if entry.ID == "" {
			t.Fatalf("entry without id: %+v", entry)
		}
		if !entry.CreatedAt.Equal(base) {
			t.Fatalf("entry timestamp = %v, want capture time %v", entry.CreatedAt, base)
		}
		if entry.UserID != "user-1" || entry.IPAddress != "10.0.0.1" {
			t.Fatalf("attribution lost: %+v", entry)
		}
	}

	byAction := map[Action]string{}
	for _, entry := range entries {
		byAction[entry.Action] = entry.Description
	}
	if byAction[ActionLogin] != "Realizou login" {
		t.Fatalf("login description = %q", byAction[ActionLogin])
	}
	if byAction[ActionCreate] != "Criou clientes João da Silva" {
		t.Fatalf("create description = %q", byAction[ActionCreate])
	}
	if byAction[ActionDelete] != "Deletou usuarios Conta Antiga" {
		t.Fatalf("delete description = %q", byAction[ActionDelete])
	}
}

func TestRecordListCarriesMetadata(t *testing.T) {
	store := NewInMemoryStore()
	rec := NewRecorder(store, 4)

	rec.RecordList(Actor{ID: "user-1", Name: "Maria"}, "clientes",
		map[string]any{"total": 7, "etiqueta": "vip"}, RequestInfo{})
	rec.Close()

	entries, _, err := store.List(context.Background(), Filter{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("trail = %d entries, want 1", len(entries))
	}
	entry := entries[0]
	if entry.Action != ActionRead || entry.Description != "Leu clientes lista" {
		t.Fatalf("entry = %+v", entry)
	}
	var meta map[string]any
	if err := json.Unmarshal(entry.Metadata, &meta); err != nil {
		t.Fatalf("metadata %q: %v", entry.Metadata, err)
	}
	if meta["total"] != float64(7) || meta["etiqueta"] != "vip" {
		t.Fatalf("metadata = %v", meta)
	}
}

type failingStore struct {
	mu    sync.Mutex
	calls int
}

func (f *failingStore) Append(context.Context, Entry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return errors.New("disk on fire")
}

func (f *failingStore) List(context.Context, Filter) ([]Entry, int, error) {
	return nil, 0, errors.New("disk on fire")
}

func (f *failingStore) ActionCounts(context.Context, time.Time) (map[Action]int, error) {
	return nil, errors.New("disk on fire")
}

func TestRecorderSurvivesFailingStore(t *testing.T) {
	store := &failingStore{}
	rec := NewRecorder(store, 4)
	actor := Actor{ID: "user-1", Name: "Maria"}

	start := time.Now()
	for i := 0; i < 100; i++ {
		rec.RecordUpdate(actor, "clientes", "cli-1", "João", RequestInfo{})
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("Record blocked the caller for %v", elapsed)
	}
	rec.Close()

	store.mu.Lock()
	calls := store.calls
	store.mu.Unlock()
	if calls == 0 {
		t.Fatalf("writer never reached the store")
	}
}

func TestRecorderIgnoresEntriesAfterClose(t *testing.T) {
	store := NewInMemoryStore()
	rec := NewRecorder(store, 4)
	rec.Close()

	rec.RecordLogin(Actor{ID: "user-1"}, RequestInfo{})
	if store.Len() != 0 {
		t.Fatalf("entry recorded after close")
	}
}

func TestListFiltersAndPaging(t *testing.T) {
	store := NewInMemoryStore()
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	seed := []Entry{
		{ID: "a", UserID: "u1", Action: ActionCreate, Resource: "clientes", CreatedAt: base},
		{ID: "b", UserID: "u1", Action: ActionUpdate, Resource: "clientes", CreatedAt: base.Add(time.Minute)},
		{ID: "c", UserID: "u2", Action: ActionCreate, Resource: "usuarios", CreatedAt: base.Add(2 * time.Minute)},
		{ID: "d", UserID: "u1", Action: ActionCreate, Resource: "clientes", CreatedAt: base.Add(3 * time.Minute)},
	}
	for _, entry := range seed {
		if err := store.Append(context.Background(), entry); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	entries, total, err := store.List(context.Background(), Filter{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if total != 4 {
		t.Fatalf("total = %d, want 4", total)
	}
	if entries[0].ID != "d" || entries[3].ID != "a" {
		t.Fatalf("expected newest-first order, got %v", entryIDs(entries))
	}

	entries, total, err = store.List(context.Background(), Filter{UserID: "u1", Resource: "clientes", Action: ActionCreate})
	if err != nil {
		t.Fatalf("List filtered: %v", err)
	}
	if total != 2 || len(entries) != 2 {
		t.Fatalf("ANDed filters matched %d (total %d), want 2", len(entries), total)
	}

	entries, total, err = store.List(context.Background(), Filter{Limit: 2, Offset: 2})
	if err != nil {
		t.Fatalf("List paged: %v", err)
	}
	if total != 4 || len(entries) != 2 || entries[0].ID != "b" {
		t.Fatalf("page = %v (total %d)", entryIDs(entries), total)
	}

	entries, total, err = store.List(context.Background(), Filter{Offset: 10})
	if err != nil {
		t.Fatalf("List beyond end: %v", err)
	}
	if total != 4 || len(entries) != 0 {
		t.Fatalf("page beyond end = %v (total %d), want empty", entryIDs(entries), total)
	}
}

func entryIDs(entries []Entry) []string {
	out := make([]string, len(entries))
	for i, entry := range entries {
		out[i] = entry.ID
	}
	return out
}

func TestInfoFromRequest(t *testing.T) {
	cases := []struct {
		name    string
		headers map[string]string
		remote  string
		wantIP  string
	}{
		{"forwarded chain", map[string]string{"X-Forwarded-For": "203.0.113.7, 10.0.0.1"}, "10.0.0.2:1234", "203.0.113.7"},
		{"real ip", map[string]string{"X-Real-Ip": "203.0.113.9"}, "10.0.0.2:1234", "203.0.113.9"},
		{"socket fallback", nil, "192.0.2.5:4321", "192.0.2.5"},
		{"nothing known", nil, "", "unknown"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/api/clientes", nil)
			r.RemoteAddr = tc.remote
			for k, v := range tc.headers {
				r.Header.Set(k, v)
			}
			info := InfoFromRequest(r)
			if info.IPAddress != tc.wantIP {
				t.Fatalf("ip = %q, want %q", info.IPAddress, tc.wantIP)
			}
		})
	}
}
