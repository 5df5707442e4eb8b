// Package api holds the JSON payloads exchanged between the client and the
// sync server.
package api

import "time"

// CredentialsRequest is the body of login and register calls. FullName is
// used by register only.
type CredentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"fullName,omitempty"`
}

// TokenPair is both the refresh request and the refresh response.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// AuthResponse answers login and register.
type AuthResponse struct {
	TokenPair
	UserID   string `json:"userId"`
	FullName string `json:"fullName"`
}

// NoteDTO is one note in a sync batch. NoteID is omitted until the server has
// assigned an id. Responses always carry both NoteID and ID.
type NoteDTO struct {
	ClientID     string    `json:"clientId"`
	Title        string    `json:"title"`
	ShortPreview string    `json:"shortPreview"`
	FullContent  string    `json:"fullContent"`
	IsPinned     bool      `json:"isPinned"`
	IsDeleted    bool      `json:"isDeleted"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
	NoteID       *int64    `json:"noteId,omitempty"`
	ID           *int64    `json:"id,omitempty"`
}

// ServerID returns the server id of a response entry, preferring NoteID.
func (n *NoteDTO) ServerID() (int64, bool) {
	switch {
	case n.NoteID != nil:
		return *n.NoteID, true
	case n.ID != nil:
		return *n.ID, true
	}
	return 0, false
}

// SyncRequest is the body of POST /notes/sync.
type SyncRequest []NoteDTO

// SyncResponse answers POST /notes/sync. ServerTime may be stored by the
// client as a checkpoint.
type SyncResponse struct {
	Notes      []NoteDTO `json:"notes"`
	ServerTime time.Time `json:"serverTime"`
}

// ErrorResponse is the body of every non-2xx answer.
type ErrorResponse struct {
	Error string `json:"error"`
}
