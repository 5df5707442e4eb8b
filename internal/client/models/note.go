// Package models defines client-side data models used by the gophnotes CLI.
package models

import (
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// PreviewLength is the number of body characters kept in a short preview.
const PreviewLength = 50

// Note is a user note as persisted in the local Record Store.
type Note struct {
	// LocalID is generated on the client and never changes.
	LocalID string

	// ServerID is assigned by the server on first acceptance and is never
	// cleared afterwards. Nil means the server has not seen the note yet.
	ServerID *string

	Title string
	Body  string
	Tags  []string

	// CreatedAt is set once. UpdatedAt moves on every mutation and is the
	// server's last-write-wins tie-breaker.
	CreatedAt time.Time
	UpdatedAt time.Time

	IsPinned bool

	// IsDirty is true until a sync response confirms the current state.
	IsDirty bool

	// IsDeleted marks a tombstone, hidden from listings and purged once the
	// server confirms the deletion.
	IsDeleted bool
}

// NewNote returns a fresh dirty note stamped with now (UTC).
func NewNote(title, body string, tags []string, now time.Time) *Note {
	now = now.UTC()
	return &Note{
		LocalID:   uuid.NewString(),
		Title:     title,
		Body:      body,
		Tags:      NormalizeTags(tags),
		CreatedAt: now,
		UpdatedAt: now,
		IsDirty:   true,
	}
}

// Touch records a local mutation: UpdatedAt moves to now and the note
// becomes dirty again.
func (n *Note) Touch(now time.Time) {
	n.UpdatedAt = now.UTC()
	n.IsDirty = true
}

// HasServerID reports whether the server has accepted this note before.
func (n *Note) HasServerID() bool {
	return n.ServerID != nil && *n.ServerID != ""
}

// Preview is the short preview of the note body.
func (n *Note) Preview() string {
	return ShortPreview(n.Body)
}

// ShortPreview returns the first PreviewLength characters of body followed
// by "..." when the body is longer than that.
func ShortPreview(body string) string {
	runes := []rune(body)
	if len(runes) <= PreviewLength {
		return body
	}
	return string(runes[:PreviewLength]) + "..."
}

// ParseTags splits a comma separated list into normalized tags.
func ParseTags(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return NormalizeTags(strings.Split(s, ","))
}

// NormalizeTags trims, lower-cases, de-duplicates and sorts tags.
func NormalizeTags(tags []string) []string {
	if len(tags) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	if len(out) == 0 {
		return nil
	}
	sort.Strings(out)
	return out
}
