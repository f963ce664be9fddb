package presence

import (
	"context"
	"log"
	"sort"
	"sync"
	"time"

	ws "parley/internal/infrastructure/websocket"
)

// Broadcaster is the outbound half of the socket layer the registry needs.
type Broadcaster interface {
	EmitToAll(eventType string, data interface{})
}

// Registry tracks a heartbeat timestamp per user, nothing persisted. A user
// is online while the last heartbeat is younger than the TTL; a sweep evicts
// stale entries and announces offline.
type Registry struct {
	mu          sync.Mutex
	beats       map[string]time.Time
	ttl         time.Duration
	sweepEvery  time.Duration
	broadcaster Broadcaster
	now         func() time.Time
}

func NewRegistry(broadcaster Broadcaster, ttl, sweepEvery time.Duration) *Registry {
	return &Registry{
		beats:       make(map[string]time.Time),
		ttl:         ttl,
		sweepEvery:  sweepEvery,
		broadcaster: broadcaster,
		now:         time.Now,
	}
}

// Heartbeat records activity for userID. The first heartbeat of an absent
// user broadcasts online exactly once; repeats only refresh the timestamp.
func (r *Registry) Heartbeat(userID string) {
	r.mu.Lock()
	_, known := r.beats[userID]
	r.beats[userID] = r.now()
	r.mu.Unlock()

	if !known {
		r.broadcaster.EmitToAll(ws.EventPresenceUpdate, ws.PresenceUpdateData{
			UserID: userID,
			Status: "online",
		})
	}
}

// OnlineUsers returns the users whose last heartbeat is within the TTL.
func (r *Registry) OnlineUsers() []string {
	cutoff := r.now().Add(-r.ttl)

	r.mu.Lock()
	users := make([]string, 0, len(r.beats))
	for userID, at := range r.beats {
		if at.After(cutoff) {
			users = append(users, userID)
		}
	}
	r.mu.Unlock()

	sort.Strings(users)
	return users
}

// Start runs the sweep loop until the context is cancelled.
func (r *Registry) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(r.sweepEvery)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				for _, userID := range r.sweep() {
					r.broadcaster.EmitToAll(ws.EventPresenceUpdate, ws.PresenceUpdateData{
						UserID: userID,
						Status: "offline",
					})
				}
			case <-ctx.Done():
				return
			}
		}
	}()
}

// sweep evicts entries older than the TTL and returns the evicted users.
func (r *Registry) sweep() []string {
	cutoff := r.now().Add(-r.ttl)

	r.mu.Lock()
	defer r.mu.Unlock()

	var evicted []string
	for userID, at := range r.beats {
		if !at.After(cutoff) {
			delete(r.beats, userID)
			evicted = append(evicted, userID)
		}
	}

	if len(evicted) > 0 {
		log.Printf("Presence sweep: %d user(s) went offline", len(evicted))
	}
	return evicted
}
