// Package httpapi exposes the user and note services over JSON/HTTP.
package httpapi

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/dmitrijs2005/gophnotes/internal/api"
	"github.com/dmitrijs2005/gophnotes/internal/logging"
	"github.com/dmitrijs2005/gophnotes/internal/server/services"
)

// UserService is the part of services.UserService the API needs.
type UserService interface {
	Register(ctx context.Context, email, password, fullName string) (*services.AuthResult, error)
	Login(ctx context.Context, email, password string) (*services.AuthResult, error)
	RefreshToken(ctx context.Context, accessToken, refreshToken string) (*api.TokenPair, error)
	Authenticate(accessToken string) (string, error)
}

// NoteService is the part of services.NoteService the API needs.
type NoteService interface {
	Sync(ctx context.Context, userID string, batch api.SyncRequest) (*api.SyncResponse, error)
}

type Server struct {
	address         string
	users           UserService
	notes           NoteService
	logger          logging.Logger
	shutdownTimeout time.Duration
}

func NewServer(address string, l logging.Logger, us UserService, ns NoteService, shutdownTimeout time.Duration) *Server {
	return &Server{
		address:         address,
		logger:          l.With("module", "http_server"),
		users:           us,
		notes:           ns,
		shutdownTimeout: shutdownTimeout,
	}
}

// Run listens on the configured address until ctx is done, then shuts down
// gracefully.
func (s *Server) Run(ctx context.Context) error {
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}
	return s.Serve(ctx, listen)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, listen net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}

	shutdownErr := make(chan error, 1)
	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping HTTP server...")
		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.shutdownTimeout)
		defer cancel()
		shutdownErr <- srv.Shutdown(sctx)
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", listen.Addr().String())

	if err := srv.Serve(listen); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return <-shutdownErr
}
