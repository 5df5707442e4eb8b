// Package connectivity tracks whether the sync server is reachable.
package connectivity

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dmitrijs2005/gophnotes/internal/logging"
)

type Mode string

const (
	ModeOffline Mode = "offline"
	ModeOnline  Mode = "online"
)

// Pinger probes the server.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Watcher polls the server on a fixed interval and keeps an online flag.
type Watcher struct {
	pinger   Pinger
	interval time.Duration
	timeout  time.Duration
	log      logging.Logger

	online atomic.Bool

	mu    sync.Mutex
	hooks []func(online bool)
}

// NewWatcher returns a watcher that starts offline until the first probe.
func NewWatcher(p Pinger, interval, timeout time.Duration, logger logging.Logger) *Watcher {
	if logger == nil {
		logger = logging.Nop()
	}
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &Watcher{pinger: p, interval: interval, timeout: timeout, log: logger.With("module", "connectivity")}
}

// Online reports the last observed state.
func (w *Watcher) Online() bool {
	return w.online.Load()
}

func (w *Watcher) Mode() Mode {
	if w.Online() {
		return ModeOnline
	}
	return ModeOffline
}

// OnChange registers fn to be called after every transition. Hooks run on the
// watcher goroutine and must not block.
func (w *Watcher) OnChange(fn func(online bool)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.hooks = append(w.hooks, fn)
}

// Set forces the state, notifying hooks on a transition.
func (w *Watcher) Set(ctx context.Context, online bool) {
	if w.online.Swap(online) == online {
		return
	}
	mode := ModeOffline
	if online {
		mode = ModeOnline
	}
	w.log.Info(ctx, "switched mode", "mode", mode)

	w.mu.Lock()
	hooks := append([]func(bool){}, w.hooks...)
	w.mu.Unlock()

	for _, fn := range hooks {
		fn(online)
	}
}

// Check probes the server once and updates the state.
func (w *Watcher) Check(ctx context.Context) bool {
	pctx, cancel := context.WithTimeout(ctx, w.timeout)
	err := w.pinger.Ping(pctx)
	cancel()

	if err != nil {
		w.log.Debug(ctx, "ping failed", "error", err)
	}
	w.Set(ctx, err == nil)
	return err == nil
}

// Run probes immediately and then on every tick until ctx is done.
func (w *Watcher) Run(ctx context.Context) error {
	w.Check(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.Check(ctx)
		case <-ctx.Done():
			return nil
		}
	}
}
