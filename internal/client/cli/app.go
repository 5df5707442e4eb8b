package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/dmitrijs2005/gophnotes/internal/client/auth"
	"github.com/dmitrijs2005/gophnotes/internal/client/client"
	"github.com/dmitrijs2005/gophnotes/internal/client/config"
	"github.com/dmitrijs2005/gophnotes/internal/client/connectivity"
	"github.com/dmitrijs2005/gophnotes/internal/client/credentials"
	"github.com/dmitrijs2005/gophnotes/internal/client/services"
	"github.com/dmitrijs2005/gophnotes/internal/client/syncer"
	"github.com/dmitrijs2005/gophnotes/internal/filex"
	"github.com/dmitrijs2005/gophnotes/internal/logging"
	"golang.org/x/sync/errgroup"
)

// App is the interactive client: local note service, auth gateway, sync
// coordinator and connectivity watcher behind a REPL.
type App struct {
	config  *config.Config
	repos   *client.Repositories
	notes   services.NoteService
	auth    *auth.Gateway
	syncer  *syncer.Coordinator
	watcher *connectivity.Watcher
	log     logging.Logger
	logSink io.Closer

	reader *bufio.Reader
	out    io.Writer
	outMu  sync.Mutex

	userMu   sync.RWMutex
	userName string
}

// NewApp wires the client from c.
func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	if err := filex.EnsureParentDirs(c.DatabasePath, c.KeyFile, c.LogFile); err != nil {
		return nil, err
	}

	sink := logging.NewFileSink(c.LogFile)
	logger := logging.NewTextLogger(sink, logging.ParseLevel(c.LogLevel))

	repos, err := client.InitDatabase(ctx, c.DatabasePath, logger)
	if err != nil {
		_ = sink.Close()
		return nil, fmt.Errorf("error initializing database: %w", err)
	}

	store, err := credentials.OpenEncryptedStore(repos.Metadata, c.KeyFile)
	if err != nil {
		_ = repos.Close()
		_ = sink.Close()
		return nil, fmt.Errorf("error opening credential store: %w", err)
	}

	transport := client.NewTransport(c.ServerBaseURL, client.WithTimeout(c.RequestTimeout))
	gateway := auth.NewGateway(transport, store, repos.Metadata, logger)
	watcher := connectivity.NewWatcher(transport, c.OnlineCheckInterval, c.RequestTimeout, logger)

	coord := syncer.New(syncer.Options{
		Notes:        repos.Notes,
		Meta:         repos.Metadata,
		DB:           repos.DB,
		Auth:         gateway,
		Sender:       gateway,
		Online:       watcher,
		Logger:       logger,
		TrailingPass: c.TrailingSync,
	})

	a := &App{
		config:  c,
		repos:   repos,
		notes:   services.NewNoteService(repos.Notes, coord),
		auth:    gateway,
		syncer:  coord,
		watcher: watcher,
		log:     logger.With("module", "cli"),
		logSink: sink,
		reader:  bufio.NewReader(os.Stdin),
		out:     os.Stdout,
	}
	a.wire(ctx)
	return a, nil
}

// wire connects background components to the UI.
func (a *App) wire(ctx context.Context) {
	a.watcher.OnChange(func(online bool) {
		if online {
			a.syncer.Trigger(syncer.TriggerReconnect)
		}
	})
	a.syncer.Subscribe(a.onSyncEvent)

	if p, err := a.auth.Profile(ctx); err == nil && p != nil {
		a.setUser(p.Email)
	}
}

// Run starts the watcher and the sync worker and blocks in the REPL until the
// user quits or ctx is done.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return a.watcher.Run(gctx) })
	g.Go(func() error { return a.syncer.Run(gctx) })

	a.printf("Welcome to gophnotes (type 'help' for commands)\n")

	replDone := make(chan struct{})
	go func() {
		defer close(replDone)
		runREPL(gctx, a, a.getStatus, a.reader)
	}()

	select {
	case <-replDone:
	case <-gctx.Done():
	}
	cancel()
	return g.Wait()
}

// Close releases the database and the log file.
func (a *App) Close() error {
	var firstErr error
	if a.repos != nil {
		firstErr = a.repos.Close()
	}
	if a.logSink != nil {
		if err := a.logSink.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (a *App) isLoggedIn(ctx context.Context) bool {
	return a.auth.IsAuthenticated(ctx)
}

func (a *App) setUser(name string) {
	a.userMu.Lock()
	a.userName = name
	a.userMu.Unlock()
}

func (a *App) user() string {
	a.userMu.RLock()
	defer a.userMu.RUnlock()
	return a.userName
}

// printf serialises output from the REPL and from background events.
func (a *App) printf(format string, args ...any) {
	a.outMu.Lock()
	defer a.outMu.Unlock()
	fmt.Fprintf(a.out, format, args...)
}
