package httpapi

import (
	"net/http"

	"github.com/dmitrijs2005/gophnotes/internal/common"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Handler builds the router. Everything under /notes needs a bearer token.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)

	r.Get(common.RouteHealth, s.health)

	r.Post(common.RouteRegister, s.register)
	r.Post(common.RouteLogin, s.login)
	r.Post(common.RouteRefreshToken, s.refreshToken)

	r.Group(func(r chi.Router) {
		r.Use(s.requireAuth)
		r.Post(common.RouteNotesSync, s.syncNotes)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})
	return r
}
