package syncer

import (
	"slices"
	"sync"
	"time"
)

// Trigger names what started a pass.
type Trigger string

const (
	TriggerMutation  Trigger = "mutation"
	TriggerManual    Trigger = "manual"
	TriggerReconnect Trigger = "reconnect"
	TriggerTrailing  Trigger = "trailing"
)

// SkipReason explains why a pass ended without talking to the server.
type SkipReason string

const (
	SkipNone     SkipReason = ""
	SkipGuest    SkipReason = "guest"
	SkipInFlight SkipReason = "in_flight"
	SkipOffline  SkipReason = "offline"
	SkipEmpty    SkipReason = "empty"
)

// Result summarises one pass.
type Result struct {
	Trigger Trigger
	Skipped SkipReason
	// Sent is the size of the uploaded batch.
	Sent int
	// Applied counts records upserted as clean.
	Applied int
	// Purged counts tombstones physically removed.
	Purged int
	// KeptDirty counts records changed while the pass was in flight. They
	// received their server id but stay dirty for the next pass.
	KeptDirty  int
	ServerTime time.Time
	Duration   time.Duration
}

// Event is published after every pass, skipped ones included.
type Event struct {
	Result Result
	Err    error
}

// registry is a callback list safe for concurrent use.
type registry struct {
	mu     sync.RWMutex
	nextID int
	subs   map[int]func(Event)
}

func newRegistry() *registry {
	return &registry{subs: map[int]func(Event){}}
}

func (r *registry) subscribe(fn func(Event)) func() {
	r.mu.Lock()
	id := r.nextID
	r.nextID++
	r.subs[id] = fn
	r.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			r.mu.Lock()
			delete(r.subs, id)
			r.mu.Unlock()
		})
	}
}

// publish calls subscribers in subscription order.
func (r *registry) publish(ev Event) {
	r.mu.RLock()
	ids := make([]int, 0, len(r.subs))
	for id := range r.subs {
		ids = append(ids, id)
	}
	fns := make(map[int]func(Event), len(ids))
	for _, id := range ids {
		fns[id] = r.subs[id]
	}
	r.mu.RUnlock()

	slices.Sort(ids)
	for _, id := range ids {
		fns[id](ev)
	}
}
