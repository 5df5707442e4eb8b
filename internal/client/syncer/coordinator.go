package syncer

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dmitrijs2005/gophnotes/internal/api"
	"github.com/dmitrijs2005/gophnotes/internal/client/client"
	"github.com/dmitrijs2005/gophnotes/internal/client/models"
	"github.com/dmitrijs2005/gophnotes/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/gophnotes/internal/client/repositories/notes"
	"github.com/dmitrijs2005/gophnotes/internal/common"
	"github.com/dmitrijs2005/gophnotes/internal/dbx"
	"github.com/dmitrijs2005/gophnotes/internal/logging"
)

// MetaLastSyncedAt holds the server time of the last successful pass.
const MetaLastSyncedAt = "last_synced_at"

// Authenticator reports the session state without network access.
type Authenticator interface {
	IsAuthenticated(ctx context.Context) bool
}

// Connectivity reports whether the server is believed reachable.
type Connectivity interface {
	Online() bool
}

// Options configures a Coordinator. Notes, Auth and Sender are required.
type Options struct {
	Notes notes.Repository
	Meta  metadata.Repository
	// DB, when set, makes the merge transactional. Repositories bound to the
	// transaction are created with the sqlite constructors.
	DB     dbx.TxBeginner
	Auth   Authenticator
	Sender client.Doer
	// Online may be nil, meaning always online.
	Online Connectivity
	Logger logging.Logger
	// TrailingPass schedules one follow-up pass for triggers that arrive
	// while a pass is running instead of dropping them.
	TrailingPass bool
}

type task struct {
	trigger Trigger
}

// Coordinator runs sync passes.
type Coordinator struct {
	opts Options
	log  logging.Logger

	inFlight atomic.Bool
	trailing atomic.Bool

	queue chan task
	subs  *registry

	mu      sync.Mutex
	cancel  context.CancelFunc
	running sync.WaitGroup
}

// New returns a Coordinator. Call Start (or Run) to process RecordMutated
// triggers.
func New(opts Options) *Coordinator {
	if opts.Logger == nil {
		opts.Logger = logging.Nop()
	}
	return &Coordinator{
		opts:  opts,
		log:   opts.Logger.With("module", "syncer"),
		queue: make(chan task, 1),
		subs:  newRegistry(),
	}
}

// Subscribe registers fn for pass events and returns a function removing it.
// Callbacks run on the goroutine that finished the pass.
func (c *Coordinator) Subscribe(fn func(Event)) (unsubscribe func()) {
	return c.subs.subscribe(fn)
}

// InFlight reports whether a pass is running.
func (c *Coordinator) InFlight() bool {
	return c.inFlight.Load()
}

// Start runs the worker in the background until Stop or ctx is done.
func (c *Coordinator) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)

	c.mu.Lock()
	c.cancel = cancel
	c.mu.Unlock()

	c.running.Add(1)
	go func() {
		defer c.running.Done()
		_ = c.Run(ctx)
	}()
}

// Stop cancels the worker started by Start and waits for it.
func (c *Coordinator) Stop() {
	c.mu.Lock()
	cancel := c.cancel
	c.cancel = nil
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	c.running.Wait()
}

// Run consumes queued triggers until ctx is done.
func (c *Coordinator) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case t := <-c.queue:
			_, _ = c.run(ctx, t.trigger)
		}
	}
}

// RecordMutated asks for a pass without waiting for it. It never blocks and
// never fails.
func (c *Coordinator) RecordMutated() {
	c.Trigger(TriggerMutation)
}

// Trigger enqueues a pass for trigger. While a pass is running the trigger is
// dropped, or remembered for one trailing pass when TrailingPass is set.
func (c *Coordinator) Trigger(trigger Trigger) {
	if c.inFlight.Load() {
		c.noteBusy(context.Background(), trigger)
		return
	}
	select {
	case c.queue <- task{trigger: trigger}:
	default:
		c.log.Debug(context.Background(), "sync already queued, trigger dropped", "trigger", trigger)
	}
}

// SyncNow runs a pass on the calling goroutine and returns its outcome.
// Skips are not errors.
func (c *Coordinator) SyncNow(ctx context.Context) (Result, error) {
	return c.run(ctx, TriggerManual)
}

func (c *Coordinator) noteBusy(ctx context.Context, trigger Trigger) {
	if c.opts.TrailingPass {
		c.trailing.Store(true)
		c.log.Debug(ctx, "sync in flight, trailing pass scheduled", "trigger", trigger)
		return
	}
	c.log.Debug(ctx, "sync in flight, trigger dropped", "trigger", trigger)
}

// run executes one pass, publishes its event and schedules the trailing pass
// if one was requested meanwhile.
func (c *Coordinator) run(ctx context.Context, trigger Trigger) (Result, error) {
	start := time.Now()
	res, owned, err := c.pass(ctx, trigger)
	res.Trigger = trigger
	res.Duration = time.Since(start)

	switch {
	case err != nil:
		c.log.Warn(ctx, "sync pass failed", "trigger", trigger, "kind", client.KindOf(err).String(), "error", err)
	case res.Skipped != SkipNone:
		c.log.Debug(ctx, "sync pass skipped", "trigger", trigger, "reason", res.Skipped)
	default:
		c.log.Info(ctx, "sync pass finished", "trigger", trigger, "sent", res.Sent,
			"applied", res.Applied, "purged", res.Purged, "kept_dirty", res.KeptDirty)
	}

	c.subs.publish(Event{Result: res, Err: err})

	if owned && c.trailing.Swap(false) {
		c.Trigger(TriggerTrailing)
	}
	return res, err
}

// pass reports owned=true when it held the in-flight guard.
func (c *Coordinator) pass(ctx context.Context, trigger Trigger) (res Result, owned bool, err error) {
	if !c.opts.Auth.IsAuthenticated(ctx) {
		return Result{Skipped: SkipGuest}, false, nil
	}

	if !c.inFlight.CompareAndSwap(false, true) {
		c.noteBusy(ctx, trigger)
		return Result{Skipped: SkipInFlight}, false, nil
	}
	defer c.inFlight.Store(false)

	if c.opts.Online != nil && !c.opts.Online.Online() {
		return Result{Skipped: SkipOffline}, true, nil
	}

	snapshot, err := c.opts.Notes.GetAllDirty(ctx)
	if err != nil {
		return Result{}, true, client.LocalStorageError("read dirty notes", err)
	}
	if len(snapshot) == 0 {
		return Result{Skipped: SkipEmpty}, true, nil
	}

	batch, err := encodeBatch(snapshot)
	if err != nil {
		return Result{}, true, err
	}

	var resp api.SyncResponse
	if err := client.DoJSON(ctx, c.opts.Sender, http.MethodPost, common.RouteNotesSync, batch, &resp); err != nil {
		return Result{}, true, err
	}

	confirmed, err := decodeResponse(&resp)
	if err != nil {
		return Result{}, true, err
	}

	res = Result{Sent: len(batch), ServerTime: resp.ServerTime}
	if err := c.merge(ctx, snapshot, confirmed, &res); err != nil {
		return Result{}, true, err
	}
	return res, true, nil
}

// merge applies confirmed server state. With a DB it runs in one transaction
// so a failure leaves every record as it was.
func (c *Coordinator) merge(ctx context.Context, snapshot, confirmed []*models.Note, res *Result) error {
	apply := func(ctx context.Context, nr notes.Repository, mr metadata.Repository) error {
		var counts Result
		if err := mergeInto(ctx, nr, snapshot, confirmed, &counts); err != nil {
			return err
		}
		if mr != nil && !res.ServerTime.IsZero() {
			if err := mr.Set(ctx, MetaLastSyncedAt, []byte(res.ServerTime.UTC().Format(time.RFC3339Nano))); err != nil {
				return err
			}
		}
		res.Applied, res.Purged, res.KeptDirty = counts.Applied, counts.Purged, counts.KeptDirty
		return nil
	}

	var err error
	if c.opts.DB != nil {
		err = dbx.WithTx(ctx, c.opts.DB, nil, func(ctx context.Context, tx dbx.DBTX) error {
			var mr metadata.Repository
			if c.opts.Meta != nil {
				mr = metadata.NewSQLiteRepository(tx)
			}
			return apply(ctx, notes.NewSQLiteRepository(tx), mr)
		})
	} else {
		err = apply(ctx, c.opts.Notes, c.opts.Meta)
	}
	if err != nil {
		return client.LocalStorageError("merge sync response", err)
	}
	return nil
}

func mergeInto(ctx context.Context, repo notes.Repository, snapshot, confirmed []*models.Note, res *Result) error {
	sent := make(map[string]*models.Note, len(snapshot))
	for _, n := range snapshot {
		sent[n.LocalID] = n
	}

	for _, srv := range confirmed {
		current, err := repo.GetByLocalID(ctx, srv.LocalID)
		if err != nil && !errors.Is(err, common.ErrorNotFound) {
			return err
		}

		if current != nil && changedSince(current, sent[srv.LocalID]) {
			// Edited while the batch was on the wire: keep the local edit
			// dirty, only learn the server id.
			if srv.ServerID != nil && !current.HasServerID() {
				if err := repo.SetServerID(ctx, srv.LocalID, *srv.ServerID); err != nil {
					return err
				}
			}
			res.KeptDirty++
			continue
		}

		if srv.IsDeleted {
			if current != nil {
				if err := repo.Purge(ctx, srv.LocalID); err != nil {
					return err
				}
				res.Purged++
			}
			continue
		}

		if current != nil {
			srv.Tags = current.Tags
		}
		if err := repo.ApplyServerState(ctx, srv); err != nil {
			return err
		}
		res.Applied++
	}
	return nil
}

// changedSince reports whether current differs from the copy that was sent.
// A dirty record that was not part of the batch counts as changed.
func changedSince(current, sent *models.Note) bool {
	if sent == nil {
		return current.IsDirty
	}
	return current.UpdatedAt.After(sent.UpdatedAt) || current.IsDeleted != sent.IsDeleted
}
