package models

import "time"

// Note is the server copy of a client note. ID is assigned by the database;
// (UserID, ClientID) is unique. Deleted notes are kept as tombstones.
type Note struct {
	ID           int64
	UserID       string
	ClientID     string
	Title        string
	ShortPreview string
	FullContent  string
	IsPinned     bool
	IsDeleted    bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
