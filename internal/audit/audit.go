// Package audit captures who did what in the back office. Entries are
// append-only facts: nothing in the system updates or deletes them.
package audit

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"
)

// Action classifies an audit entry.
type Action string

const (
	ActionCreate   Action = "CREATE"
	ActionRead     Action = "READ"
	ActionUpdate   Action = "UPDATE"
	ActionDelete   Action = "DELETE"
	ActionLogin    Action = "LOGIN"
	ActionLogout   Action = "LOGOUT"
	ActionUpload   Action = "UPLOAD"
	ActionDownload Action = "DOWNLOAD"
)

// Entry is one recorded fact. UserName is denormalized on purpose: the
// trail must stay readable after the identity is soft-deleted or renamed.
// Metadata holds optional structured context (result counts, applied
// filters, before/after diffs) as raw JSON.
type Entry struct {
	ID          string          `json:"id"`
	UserID      string          `json:"usuario_id"`
	UserName    string          `json:"usuario_nome"`
	Action      Action          `json:"acao"`
	Resource    string          `json:"recurso"`
	ResourceID  string          `json:"recurso_id,omitempty"`
	Description string          `json:"descricao,omitempty"`
	Metadata    json.RawMessage `json:"metadata,omitempty"`
	IPAddress   string          `json:"ip_address,omitempty"`
	UserAgent   string          `json:"user_agent,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

// Filter narrows a trail query. Zero-valued fields are ignored; set
// fields are combined with AND.
type Filter struct {
	UserID   string
	Resource string
	Action   Action
	From     time.Time
	To       time.Time
	Limit    int
	Offset   int
}

const (
	// DefaultLimit applies when a query does not say how many entries it
	// wants.
	DefaultLimit = 50
	// MaxLimit caps a single page regardless of what the query asks for.
	MaxLimit = 500
)

// Normalize clamps the paging fields into their allowed ranges.
func (f Filter) Normalize() Filter {
	if f.Limit <= 0 {
		f.Limit = DefaultLimit
	}
	if f.Limit > MaxLimit {
		f.Limit = MaxLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return f
}

// Store persists the trail. List returns one page newest-first plus the
// total number of entries matching the filter.
type Store interface {
	Append(ctx context.Context, entry Entry) error
	List(ctx context.Context, filter Filter) ([]Entry, int, error)
	ActionCounts(ctx context.Context, since time.Time) (map[Action]int, error)
}

// Actor names the identity a fact is attributed to.
type Actor struct {
	ID   string
	Name string
}

// RequestInfo is the client-side origin captured alongside each fact.
type RequestInfo struct {
	IPAddress string
	UserAgent string
}

// InfoFromRequest extracts the origin from an HTTP request. Proxy headers
// win over the socket address; with neither present the address is
// recorded as unknown rather than left blank.
func InfoFromRequest(r *http.Request) RequestInfo {
	if r == nil {
		return RequestInfo{IPAddress: "unknown", UserAgent: "unknown"}
	}
	info := RequestInfo{UserAgent: r.UserAgent()}
	if info.UserAgent == "" {
		info.UserAgent = "unknown"
	}
	if fwd := strings.TrimSpace(r.Header.Get("X-Forwarded-For")); fwd != "" {
		// First hop in the chain is the original client.
		if idx := strings.IndexByte(fwd, ','); idx >= 0 {
			fwd = fwd[:idx]
		}
		info.IPAddress = strings.TrimSpace(fwd)
	} else if real := strings.TrimSpace(r.Header.Get("X-Real-Ip")); real != "" {
		info.IPAddress = real
	} else if host := remoteHost(r.RemoteAddr); host != "" {
		info.IPAddress = host
	} else {
		info.IPAddress = "unknown"
	}
	return info
}

func remoteHost(addr string) string {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return ""
	}
	if idx := strings.LastIndexByte(addr, ':'); idx >= 0 && !strings.HasSuffix(addr, "]") {
		host := addr[:idx]
		host = strings.TrimPrefix(host, "[")
		host = strings.TrimSuffix(host, "]")
		return host
	}
	return addr
}
