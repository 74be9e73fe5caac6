// Package audit provides the best-effort access trail. Writes are queued and
// flushed by a background worker so a slow or failing sink can never add
// latency or failure modes to the request that triggered them.
package audit

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"cloudos.jermis.io/internal/identity"
	"cloudos.jermis.io/internal/ids"
	"cloudos.jermis.io/internal/obs"
)

const (
	defaultQueueSize    = 256
	defaultWriteTimeout = 5 * time.Second
)

// skipPrefixes lists paths that would only produce noise in the trail.
var skipPrefixes = []string{"/api/v1/health", "/api/v1/auth/verify"}

// RequestMeta is the serialized snapshot stored with each access record.
type RequestMeta struct {
	Method    string `json:"method"`
	Path      string `json:"path"`
	Query     string `json:"query,omitempty"`
	UserAgent string `json:"userAgent,omitempty"`
	IP        string `json:"ip,omitempty"`
}

// Recorder drains a bounded queue of audit entries into an identity.AuditStore.
// Record never blocks and never returns an error; when the queue is full the
// entry is dropped and counted in the log.
type Recorder struct {
	store identity.AuditStore
	queue chan *identity.AuditEntry
	now   func() time.Time

	closeOnce sync.Once
	done      chan struct{}
}

// Option configures a Recorder.
type Option func(*Recorder)

// WithQueueSize overrides the default queue capacity.
func WithQueueSize(n int) Option {
	return func(r *Recorder) {
		if n > 0 {
			r.queue = make(chan *identity.AuditEntry, n)
		}
	}
}

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) Option {
	return func(r *Recorder) {
		if fn != nil {
			r.now = fn
		}
	}
}

// NewRecorder starts the background writer.
func NewRecorder(store identity.AuditStore, opts ...Option) *Recorder {
	r := &Recorder{
		store: store,
		queue: make(chan *identity.AuditEntry, defaultQueueSize),
		now:   time.Now,
		done:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	go r.run()
	return r
}

func (r *Recorder) run() {
	defer close(r.done)
	for entry := range r.queue {
		ctx, cancel := context.WithTimeout(context.Background(), defaultWriteTimeout)
		if err := r.store.Append(ctx, entry); err != nil {
			obs.Error("audit append failed", map[string]any{
				"user_id": entry.UserID,
				"action":  entry.Action,
				"error":   err.Error(),
			})
		}
		cancel()
	}
}

// Skip reports whether the path is excluded from the trail.
func Skip(path string) bool {
	for _, prefix := range skipPrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

// RecordAccess queues an API access record for an authenticated request.
func (r *Recorder) RecordAccess(userID string, meta RequestMeta) {
	if Skip(meta.Path) {
		return
	}
	changes, err := json.Marshal(meta)
	if err != nil {
		obs.Error("audit marshal failed", map[string]any{"user_id": userID})
		return
	}
	r.Record(&identity.AuditEntry{
		UserID:    userID,
		Action:    "API_ACCESS",
		Entity:    "API",
		EntityID:  meta.Path,
		Changes:   string(changes),
		IPAddress: meta.IP,
		UserAgent: meta.UserAgent,
	})
}

// Record queues an arbitrary entry, filling in id and timestamp.
func (r *Recorder) Record(entry *identity.AuditEntry) {
	if entry == nil {
		return
	}
	if entry.ID == "" {
		entry.ID = ids.New()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = r.now().UTC()
	}
	select {
	case r.queue <- entry:
	default:
		obs.Error("audit queue full, entry dropped", map[string]any{
			"user_id": entry.UserID,
			"action":  entry.Action,
		})
	}
}

// Close stops accepting entries and drains what was already queued.
func (r *Recorder) Close() {
	r.closeOnce.Do(func() {
		close(r.queue)
		<-r.done
	})
}
