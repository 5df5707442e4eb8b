package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/dmitrijs2005/gophnotes/internal/api"
	"github.com/dmitrijs2005/gophnotes/internal/client/client"
	"github.com/dmitrijs2005/gophnotes/internal/client/credentials"
	"github.com/dmitrijs2005/gophnotes/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/gophnotes/internal/common"
	"github.com/dmitrijs2005/gophnotes/internal/logging"
)

// Metadata keys of the cached profile.
const (
	metaUserID   = "profile:user_id"
	metaEmail    = "profile:email"
	metaFullName = "profile:full_name"
)

// State is the session state of the gateway.
type State int32

const (
	Unauthenticated State = iota
	Authenticated
	Refreshing
)

func (s State) String() string {
	switch s {
	case Authenticated:
		return "authenticated"
	case Refreshing:
		return "refreshing"
	default:
		return "unauthenticated"
	}
}

// Profile is the user information returned on login and cached locally.
type Profile struct {
	UserID   string
	Email    string
	FullName string
}

// waiter is a request parked while a refresh is in progress.
type waiter struct {
	ctx      context.Context
	req      *client.Request
	original error
	done     chan outcome
}

type outcome struct {
	resp *client.Response
	err  error
}

// Gateway implements client.Doer for authenticated requests.
type Gateway struct {
	// raw never decorates and never refreshes. It carries the auth endpoints
	// and the replays.
	raw   *client.Transport
	store credentials.Store
	meta  metadata.Repository
	log   logging.Logger

	state atomic.Int32

	// mu guards the refresh queue and the session epoch. Writes of a new
	// session to the store happen under it.
	mu         sync.Mutex
	refreshing bool
	waiters    []*waiter
	// epoch changes on every login, registration and logout. A refresh only
	// commits its outcome if the epoch it started in is still current.
	epoch     uint64
	refreshes atomic.Int64
}

// errSessionChanged fails a refresh that was overtaken by a logout or a new
// login.
var errSessionChanged = errors.New("session changed during refresh")

// NewGateway builds a gateway on top of transport. meta may be nil, in which
// case the profile is not cached.
func NewGateway(transport *client.Transport, store credentials.Store, meta metadata.Repository, logger logging.Logger) *Gateway {
	if logger == nil {
		logger = logging.Nop()
	}
	g := &Gateway{
		raw:   transport.Undecorated(),
		store: store,
		meta:  meta,
		log:   logger.With("module", "auth"),
	}
	if g.IsAuthenticated(context.Background()) {
		g.state.Store(int32(Authenticated))
	}
	return g
}

// IsPublic reports whether path is served without credentials.
func IsPublic(path string) bool {
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	switch path {
	case common.RouteLogin, common.RouteRegister, common.RouteRefreshToken, common.RouteHealth:
		return true
	}
	return false
}

// State returns the current session state.
func (g *Gateway) State() State {
	return State(g.state.Load())
}

// RefreshCount returns how many refresh calls have been made.
func (g *Gateway) RefreshCount() int64 {
	return g.refreshes.Load()
}

// IsAuthenticated reports whether an access token is stored. It never touches
// the network.
func (g *Gateway) IsAuthenticated(ctx context.Context) bool {
	tok, err := g.store.Get(ctx, credentials.KeyAccessToken)
	if err != nil {
		g.log.Warn(ctx, "failed to read access token", "error", err)
		return false
	}
	return tok != ""
}

// Login exchanges credentials for a token pair.
func (g *Gateway) Login(ctx context.Context, email, password string) (*Profile, error) {
	return g.authenticate(ctx, common.RouteLogin, api.CredentialsRequest{Email: email, Password: password})
}

// Register creates an account and logs it in.
func (g *Gateway) Register(ctx context.Context, email, password, fullName string) (*Profile, error) {
	return g.authenticate(ctx, common.RouteRegister, api.CredentialsRequest{Email: email, Password: password, FullName: fullName})
}

func (g *Gateway) authenticate(ctx context.Context, path string, in api.CredentialsRequest) (*Profile, error) {
	var out api.AuthResponse
	if err := client.DoJSON(ctx, g.raw, http.MethodPost, path, in, &out); err != nil {
		g.log.Info(ctx, "authentication failed", "path", path, "kind", client.KindOf(err).String())
		return nil, err
	}
	if out.AccessToken == "" || out.RefreshToken == "" {
		return nil, &client.Error{Kind: client.KindMalformed, Op: http.MethodPost + " " + path, Message: "missing tokens"}
	}

	p := &Profile{UserID: out.UserID, Email: in.Email, FullName: out.FullName}

	g.mu.Lock()
	defer g.mu.Unlock()
	g.epoch++
	if err := credentials.SetPair(ctx, g.store, out.AccessToken, out.RefreshToken); err != nil {
		return nil, client.LocalStorageError("store credentials", err)
	}
	if err := g.saveProfile(ctx, p); err != nil {
		return nil, client.LocalStorageError("store profile", err)
	}

	g.state.Store(int32(Authenticated))
	g.log.Info(ctx, "authenticated", "user_id", p.UserID)
	return p, nil
}

// Logout drops the session locally. A refresh still in flight is discarded
// when it completes.
func (g *Gateway) Logout(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.logoutLocked(ctx)
}

func (g *Gateway) logoutLocked(ctx context.Context) error {
	g.epoch++
	g.state.Store(int32(Unauthenticated))
	if err := g.store.Clear(ctx); err != nil {
		return client.LocalStorageError("clear credentials", err)
	}
	if g.meta != nil {
		if err := g.meta.DeletePrefix(ctx, "profile:"); err != nil {
			return client.LocalStorageError("clear profile", err)
		}
	}
	return nil
}

// Profile returns the cached profile, or nil for a guest.
func (g *Gateway) Profile(ctx context.Context) (*Profile, error) {
	if !g.IsAuthenticated(ctx) {
		return nil, nil
	}
	p := &Profile{}
	if g.meta == nil {
		return p, nil
	}
	for key, dst := range map[string]*string{metaUserID: &p.UserID, metaEmail: &p.Email, metaFullName: &p.FullName} {
		v, err := g.meta.Get(ctx, key)
		if err != nil {
			return nil, client.LocalStorageError("read profile", err)
		}
		*dst = string(v)
	}
	return p, nil
}

func (g *Gateway) saveProfile(ctx context.Context, p *Profile) error {
	if g.meta == nil {
		return nil
	}
	if err := g.meta.Set(ctx, metaUserID, []byte(p.UserID)); err != nil {
		return err
	}
	if err := g.meta.Set(ctx, metaEmail, []byte(p.Email)); err != nil {
		return err
	}
	return g.meta.Set(ctx, metaFullName, []byte(p.FullName))
}

// Decorate attaches the bearer access token to req unless its path is
// public or no token is stored.
func (g *Gateway) Decorate(req *client.Request) {
	g.decorate(context.Background(), req)
}

func (g *Gateway) decorate(ctx context.Context, req *client.Request) {
	if req.Header == nil {
		req.Header = http.Header{}
	}
	if IsPublic(req.Path) {
		req.Header.Del(common.AuthorizationHeaderName)
		return
	}
	tok, err := g.store.Get(ctx, credentials.KeyAccessToken)
	if err != nil || tok == "" {
		return
	}
	req.Header.Set(common.AuthorizationHeaderName, common.BearerPrefix+tok)
}

// Do sends a decorated request. A 401 is handed to HandleUnauthorized.
func (g *Gateway) Do(ctx context.Context, req *client.Request) (*client.Response, error) {
	out := req.Clone()
	g.decorate(ctx, out)

	resp, err := g.raw.Do(ctx, out)
	if err == nil || client.KindOf(err) != client.KindAuth {
		return resp, err
	}
	return g.HandleUnauthorized(ctx, out, err)
}

// HandleUnauthorized resolves a request that failed with 401. Concurrent
// callers share one refresh call. On success every parked request is
// replayed with the new token in the order it arrived. On failure the
// session is cleared and every parked request fails with its original error.
// A refresh overtaken by a login or logout leaves the store untouched and
// fails the parked requests.
func (g *Gateway) HandleUnauthorized(ctx context.Context, failed *client.Request, original error) (*client.Response, error) {
	if IsPublic(failed.Path) {
		return nil, original
	}

	w := &waiter{ctx: ctx, req: failed.Clone(), original: original, done: make(chan outcome, 1)}

	g.mu.Lock()
	if !g.refreshing && g.tokenRotatedSince(ctx, failed) {
		// Another refresh already finished after this request was sent.
		g.mu.Unlock()
		return g.replay(w)
	}
	g.waiters = append(g.waiters, w)
	start := !g.refreshing
	g.refreshing = true
	epoch := g.epoch
	if start {
		g.state.Store(int32(Refreshing))
	}
	g.mu.Unlock()

	if start {
		go g.refreshAndDrain(context.WithoutCancel(ctx), epoch)
	}

	select {
	case o := <-w.done:
		return o.resp, o.err
	case <-ctx.Done():
		return nil, &client.Error{Kind: client.KindTransient, Op: failed.Op(), Err: ctx.Err()}
	}
}

// tokenRotatedSince reports whether the stored access token differs from the
// one the failed request carried.
func (g *Gateway) tokenRotatedSince(ctx context.Context, failed *client.Request) bool {
	tok, err := g.store.Get(ctx, credentials.KeyAccessToken)
	if err != nil || tok == "" {
		return false
	}
	sent := strings.TrimPrefix(failed.Header.Get(common.AuthorizationHeaderName), common.BearerPrefix)
	return sent != "" && sent != tok
}

func (g *Gateway) refreshAndDrain(ctx context.Context, epoch uint64) {
	err := g.refresh(ctx, epoch)

	switch {
	case errors.Is(err, errSessionChanged):
		g.log.Info(ctx, "token refresh discarded, session changed")
	case err != nil:
		g.mu.Lock()
		if g.epoch == epoch {
			g.log.Warn(ctx, "token refresh failed, logging out", "error", err)
			if lerr := g.logoutLocked(ctx); lerr != nil {
				g.log.Error(ctx, "failed to clear credentials", "error", lerr)
			}
		} else {
			err = errSessionChanged
			g.log.Info(ctx, "token refresh failed after session change, keeping credentials")
		}
		g.mu.Unlock()
	}

	// Requests that hit 401 while the queue is drained join the same batch.
	for {
		g.mu.Lock()
		batch := g.waiters
		g.waiters = nil
		if len(batch) == 0 {
			g.refreshing = false
			g.mu.Unlock()
			return
		}
		g.mu.Unlock()

		for _, w := range batch {
			if err != nil {
				w.done <- outcome{err: refreshFailed(w, err)}
				continue
			}
			resp, rerr := g.replay(w)
			w.done <- outcome{resp: resp, err: rerr}
		}
	}
}

func refreshFailed(w *waiter, cause error) error {
	e := &client.Error{Kind: client.KindRefreshFailed, Op: w.req.Op(), Status: http.StatusUnauthorized, Err: w.original}
	var orig *client.Error
	if errors.As(w.original, &orig) {
		e.Message = orig.Message
	}
	if e.Message == "" {
		e.Message = "refresh failed: " + client.ReasonOf(cause)
	}
	return e
}

// replay re-sends a parked request with the current token. A second 401 is
// returned as is.
func (g *Gateway) replay(w *waiter) (*client.Response, error) {
	if err := w.ctx.Err(); err != nil {
		return nil, &client.Error{Kind: client.KindTransient, Op: w.req.Op(), Err: err}
	}
	req := w.req.Clone()
	g.decorate(w.ctx, req)
	return g.raw.Do(w.ctx, req)
}

// refresh exchanges the stored pair for a new one over the undecorated
// transport. The new pair is stored only while epoch is current.
func (g *Gateway) refresh(ctx context.Context, epoch uint64) error {
	g.refreshes.Add(1)

	access, err := g.store.Get(ctx, credentials.KeyAccessToken)
	if err != nil {
		return client.LocalStorageError("read access token", err)
	}
	refresh, err := g.store.Get(ctx, credentials.KeyRefreshToken)
	if err != nil {
		return client.LocalStorageError("read refresh token", err)
	}
	if refresh == "" {
		return &client.Error{Kind: client.KindAuth, Op: "refresh", Message: "no refresh token"}
	}

	req, err := client.NewJSONRequest(http.MethodPost, common.RouteRefreshToken, api.TokenPair{AccessToken: access, RefreshToken: refresh})
	if err != nil {
		return err
	}
	resp, err := g.raw.Do(ctx, req)
	if err != nil {
		return err
	}

	var pair api.TokenPair
	if err := resp.Decode(req.Op(), &pair); err != nil {
		return err
	}
	if pair.AccessToken == "" || pair.RefreshToken == "" {
		return &client.Error{Kind: client.KindMalformed, Op: req.Op(), Message: "missing tokens"}
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.epoch != epoch {
		return errSessionChanged
	}
	if err := credentials.SetPair(ctx, g.store, pair.AccessToken, pair.RefreshToken); err != nil {
		return client.LocalStorageError("store credentials", fmt.Errorf("refresh: %w", err))
	}
	g.state.Store(int32(Authenticated))
	g.log.Debug(ctx, "token pair refreshed")
	return nil
}
