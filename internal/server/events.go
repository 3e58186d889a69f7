package server

import (
	"context"
	"sync"

	"github.com/creachadair/jrpc2"

	"github.com/unitime/unitime/pkg/logger"
)

// Push notification methods sent to connected event subscribers.
const (
	EventNotifyFired = "notify.fired"
	EventSyncDone    = "sync.done"
)

// FiredEvent is the payload of a notify.fired push.
type FiredEvent struct {
	ID       string `json:"id"`
	Category string `json:"category"`
	Kind     string `json:"kind"`
	Title    string `json:"title"`
	Body     string `json:"body"`
	LessonID string `json:"lessonId,omitempty"`
}

// SyncEvent is the payload of a sync.done push.
type SyncEvent struct {
	Outcomes []RefreshOutcome `json:"outcomes"`
}

// Hub tracks the jrpc2 servers backing live WebSocket connections and
// fans push notifications out to all of them. A subscriber that fails
// is logged and skipped; event delivery is best-effort.
type Hub struct {
	mu   sync.Mutex
	subs map[*jrpc2.Server]bool
	log  logger.Logger
}

// NewHub creates an empty Hub.
func NewHub(log logger.Logger) *Hub {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Hub{subs: make(map[*jrpc2.Server]bool), log: log}
}

// Attach registers a connection's server for pushes.
func (h *Hub) Attach(srv *jrpc2.Server) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.subs[srv] = true
}

// Detach removes a connection's server.
func (h *Hub) Detach(srv *jrpc2.Server) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.subs, srv)
}

// Publish pushes a notification to every attached subscriber.
func (h *Hub) Publish(ctx context.Context, method string, payload interface{}) {
	h.mu.Lock()
	subs := make([]*jrpc2.Server, 0, len(h.subs))
	for srv := range h.subs {
		subs = append(subs, srv)
	}
	h.mu.Unlock()

	for _, srv := range subs {
		if err := srv.Notify(ctx, method, payload); err != nil {
			h.log.Warning("hub: push %s failed: %v", method, err)
		}
	}
}

// Subscribers returns how many connections are attached.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}
