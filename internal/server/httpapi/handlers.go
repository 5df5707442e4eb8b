package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dmitrijs2005/gophnotes/internal/api"
	"github.com/dmitrijs2005/gophnotes/internal/common"
	"github.com/dmitrijs2005/gophnotes/internal/server/services"
)

const maxBodyBytes = 4 << 20

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) register(w http.ResponseWriter, r *http.Request) {
	var in api.CredentialsRequest
	if !decode(w, r, &in) {
		return
	}

	res, err := s.users.Register(r.Context(), in.Email, in.Password, in.FullName)
	if err != nil {
		s.fail(w, r, "register", err)
		return
	}

	s.logger.Info(r.Context(), "Registered", "user_id", res.User.ID)
	writeJSON(w, http.StatusOK, authResponse(res))
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var in api.CredentialsRequest
	if !decode(w, r, &in) {
		return
	}

	res, err := s.users.Login(r.Context(), in.Email, in.Password)
	if err != nil {
		s.fail(w, r, "login", err)
		return
	}

	writeJSON(w, http.StatusOK, authResponse(res))
}

func (s *Server) refreshToken(w http.ResponseWriter, r *http.Request) {
	var in api.TokenPair
	if !decode(w, r, &in) {
		return
	}
	if in.AccessToken == "" || in.RefreshToken == "" {
		writeError(w, http.StatusBadRequest, "accessToken and refreshToken are required")
		return
	}

	pair, err := s.users.RefreshToken(r.Context(), in.AccessToken, in.RefreshToken)
	if err != nil {
		s.fail(w, r, "refresh token", err)
		return
	}

	writeJSON(w, http.StatusOK, pair)
}

func (s *Server) syncNotes(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing token")
		return
	}

	var batch api.SyncRequest
	if !decode(w, r, &batch) {
		return
	}

	resp, err := s.notes.Sync(r.Context(), userID, batch)
	if err != nil {
		s.fail(w, r, "sync", err)
		return
	}

	s.logger.Info(r.Context(), "Synced", "user_id", userID, "notes", len(batch))
	writeJSON(w, http.StatusOK, resp)
}

func authResponse(res *services.AuthResult) api.AuthResponse {
	return api.AuthResponse{
		TokenPair: res.Tokens,
		UserID:    res.User.ID,
		FullName:  res.User.FullName,
	}
}

// fail maps service errors to a status and a client-facing message.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	switch {
	case errors.Is(err, common.ErrorValidation):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, common.ErrorAlreadyExists):
		writeError(w, http.StatusConflict, "user already exists")
	case errors.Is(err, common.ErrRefreshTokenExpired):
		writeError(w, http.StatusUnauthorized, "refresh token expired")
	case errors.Is(err, common.ErrorUnauthorized),
		errors.Is(err, common.ErrInvalidToken),
		errors.Is(err, common.ErrTokenExpired):
		writeError(w, http.StatusUnauthorized, "invalid credentials")
	default:
		s.logger.Error(r.Context(), op+" failed", "error", err.Error())
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, api.ErrorResponse{Error: msg})
}
