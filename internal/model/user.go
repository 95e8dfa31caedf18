package model

import (
	"time"

	"github.com/google/uuid"
)

// User is a login record.  One instance is held as the current session
// under its own storage key; the durable users collection accumulates
// historical logins keyed by email.
//
// Fields:
//  ID        – opaque identifier minted at login.
//  Name      – display name, at least two trimmed characters.
//  Email     – lower-cased, RFC-shaped address.  Unique within the
//              users collection.
//  LoginTime – UTC timestamp of the most recent login.
type User struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	LoginTime time.Time `json:"loginTime"`
}

// NewUserID mints a fresh opaque user identifier.
func NewUserID() string { return uuid.NewString() }
