// Package models defines server-side data models persisted in the database.
package models

import "time"

// User is an account. PasswordHash is a bcrypt hash.
type User struct {
	ID           string
	Email        string
	FullName     string
	PasswordHash []byte
	CreatedAt    time.Time
}
