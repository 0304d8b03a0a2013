package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/guustavogomes/emprestimosdiario/internal/ids"
	"github.com/guustavogomes/emprestimosdiario/internal/obs"
)

// DefaultQueueSize is the recorder's buffer. At back-office request
// rates the writer drains far faster than handlers fill.
const DefaultQueueSize = 1024

const appendTimeout = 5 * time.Second

// Recorder decouples audit capture from the request path. Record never
// returns an error and never blocks: entries go into a buffered queue
// and a single background writer persists them. When the queue is full
// the entry is dropped and counted; a broken audit sink must not take
// loan operations down with it.
type Recorder struct {
	store Store
	queue chan Entry
	done  chan struct{}
	now   func() time.Time

	mu     sync.Mutex
	closed bool
}

// NewRecorder starts the background writer. queueSize <= 0 selects
// DefaultQueueSize.
func NewRecorder(store Store, queueSize int) *Recorder {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	r := &Recorder{
		store: store,
		queue: make(chan Entry, queueSize),
		done:  make(chan struct{}),
		now:   time.Now,
	}
	go r.run()
	return r
}

// SetClock overrides the capture timestamp source for tests.
func (r *Recorder) SetClock(fn func() time.Time) {
	if fn != nil {
		r.now = fn
	}
}

// Record enqueues one entry. The capture timestamp is stamped here, not
// at write time, so queueing delay never skews the trail.
func (r *Recorder) Record(entry Entry) {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = r.now().UTC()
	}
	if entry.ID == "" {
		entry.ID = ids.NewAt(entry.CreatedAt)
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		obs.IncAuditDropped()
		return
	}
	select {
	case r.queue <- entry:
	default:
		obs.IncAuditDropped()
		obs.Logger().Printf(`{"level":"warn","msg":"audit queue full, entry dropped","action":%q,"resource":%q}`, entry.Action, entry.Resource)
	}
	r.mu.Unlock()
}

// Close stops accepting entries, drains the queue and waits for the
// writer to finish. Call during shutdown, after the HTTP server has
// stopped.
func (r *Recorder) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	close(r.queue)
	r.mu.Unlock()
	<-r.done
}

// run is the single writer. It uses a detached context: a cancelled
// request must not abort persisting a fact about what that request did.
func (r *Recorder) run() {
	defer close(r.done)
	for entry := range r.queue {
		ctx, cancel := context.WithTimeout(context.Background(), appendTimeout)
		err := r.store.Append(ctx, entry)
		cancel()
		if err != nil {
			obs.IncAuditFailed()
			obs.Logger().Printf(`{"level":"error","msg":"audit append failed","error":%q,"action":%q,"resource":%q}`, err.Error(), entry.Action, entry.Resource)
			continue
		}
		obs.IncAuditRecorded()
	}
}

// List queries the trail through the recorder's store.
func (r *Recorder) List(ctx context.Context, filter Filter) ([]Entry, int, error) {
	return r.store.List(ctx, filter.Normalize())
}

// ActionCounts groups the trail by action from the cutoff onward.
func (r *Recorder) ActionCounts(ctx context.Context, since time.Time) (map[Action]int, error) {
	return r.store.ActionCounts(ctx, since)
}

// The helpers below encode the fixed description vocabulary the office
// reports are built on. Keep the wording stable: dashboards group on it.

// RecordCreate captures a successful creation.
func (r *Recorder) RecordCreate(actor Actor, resource, resourceID, label string, info RequestInfo) {
	r.record(actor, ActionCreate, resource, resourceID, fmt.Sprintf("Criou %s %s", resource, label), info)
}

// RecordUpdate captures a successful mutation.
func (r *Recorder) RecordUpdate(actor Actor, resource, resourceID, label string, info RequestInfo) {
	r.record(actor, ActionUpdate, resource, resourceID, fmt.Sprintf("Atualizou %s %s", resource, label), info)
}

// RecordDelete captures a successful deletion.
func (r *Recorder) RecordDelete(actor Actor, resource, resourceID, label string, info RequestInfo) {
	r.record(actor, ActionDelete, resource, resourceID, fmt.Sprintf("Deletou %s %s", resource, label), info)
}

// RecordRead captures a successful read of sensitive data.
func (r *Recorder) RecordRead(actor Actor, resource, resourceID, label string, info RequestInfo) {
	r.record(actor, ActionRead, resource, resourceID, fmt.Sprintf("Leu %s %s", resource, label), info)
}

// RecordList captures a collection read as one entry carrying aggregate
// metadata (result count, applied filters) instead of per-row entries.
func (r *Recorder) RecordList(actor Actor, resource string, meta any, info RequestInfo) {
	entry := Entry{
		UserID:      actor.ID,
		UserName:    actor.Name,
		Action:      ActionRead,
		Resource:    resource,
		Description: fmt.Sprintf("Leu %s lista", resource),
		IPAddress:   info.IPAddress,
		UserAgent:   info.UserAgent,
	}
	if meta != nil {
		if raw, err := json.Marshal(meta); err == nil {
			entry.Metadata = raw
		}
	}
	r.Record(entry)
}

// RecordLogin captures a successful sign-in. Failed attempts are not
// recorded here.
func (r *Recorder) RecordLogin(actor Actor, info RequestInfo) {
	r.record(actor, ActionLogin, "auth", actor.ID, "Realizou login", info)
}

// RecordLogout captures an explicit sign-out.
func (r *Recorder) RecordLogout(actor Actor, info RequestInfo) {
	r.record(actor, ActionLogout, "auth", actor.ID, "Realizou logout", info)
}

// RecordUpload captures a document upload.
func (r *Recorder) RecordUpload(actor Actor, fileName string, info RequestInfo) {
	r.record(actor, ActionUpload, "files", "", fmt.Sprintf("Enviou arquivo %s", fileName), info)
}

// RecordDownload captures a document download.
func (r *Recorder) RecordDownload(actor Actor, fileName string, info RequestInfo) {
	r.record(actor, ActionDownload, "files", "", fmt.Sprintf("Baixou arquivo %s", fileName), info)
}

func (r *Recorder) record(actor Actor, action Action, resource, resourceID, description string, info RequestInfo) {
	r.Record(Entry{
		UserID:      actor.ID,
		UserName:    actor.Name,
		Action:      action,
		Resource:    resource,
		ResourceID:  resourceID,
		Description: description,
		IPAddress:   info.IPAddress,
		UserAgent:   info.UserAgent,
	})
}
