package model

import (
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Reservation is a single booking record as stored in the durable
// blob.  The json tags carry the wire names used by the persisted
// format, so records written by earlier deployments keep parsing.
//
// Fields:
//  ID              – opaque identifier, unique within the collection,
//                    immutable once assigned.
//  CustomerName    – customer display name.
//  CustomerEmail   – customer contact email.
//  CustomerPhone   – optional phone number.
//  Type            – kind of booking (dinner, lunch, event).
//  Guests          – party size, 1 to 20 inclusive.
//  Date            – calendar date in YYYY-MM-DD form.
//  Time            – time of day in HH:MM form.
//  Status          – lifecycle state (pending, confirmed, cancelled).
//  SpecialRequests – free-text notes.
//  CreatedBy       – name of the session user who created the record,
//                    or "Unknown".
//  CreatedAt       – creation timestamp in UTC.
type Reservation struct {
	ID              string    `json:"id"`
	CustomerName    string    `json:"customerName"`
	CustomerEmail   string    `json:"customerEmail"`
	CustomerPhone   string    `json:"customerPhone"`
	Type            string    `json:"reservationType"`
	Guests          int       `json:"numberOfGuests"`
	Date            string    `json:"reservationDate"`
	Time            string    `json:"reservationTime"`
	Status          string    `json:"status"`
	SpecialRequests string    `json:"specialRequests"`
	CreatedBy       string    `json:"createdBy"`
	CreatedAt       time.Time `json:"createdAt"`
}

// Reservation statuses.  StatusPending is the default for new records.
const (
	StatusPending   = "pending"
	StatusConfirmed = "confirmed"
	StatusCancelled = "cancelled"
)

// Built-in reservation types.  The type field is an open enumeration:
// these are the values the service synthesizes, but stored records may
// carry others.
const (
	TypeDinner = "dinner"
	TypeLunch  = "lunch"
	TypeEvent  = "event"
)

// Guest count bounds, inclusive.
const (
	MinGuests = 1
	MaxGuests = 20
)

// MinNameLen is the minimum length of a trimmed customer or user name.
const MinNameLen = 2

var (
	emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	phonePattern = regexp.MustCompile(`^[+]?[(]?[0-9]{3}[)]?[-\s.]?[0-9]{3}[-\s.]?[0-9]{4,6}$`)
)

// ValidEmail reports whether s is an RFC-shaped email address.
func ValidEmail(s string) bool { return emailPattern.MatchString(s) }

// ValidPhone reports whether s looks like a phone number.  Empty
// phones are handled by the caller; this checks shape only.
func ValidPhone(s string) bool { return phonePattern.MatchString(s) }

// ValidName reports whether the trimmed name meets the minimum length.
func ValidName(s string) bool { return len(strings.TrimSpace(s)) >= MinNameLen }

// ValidStatus reports whether s is one of the known lifecycle states.
func ValidStatus(s string) bool {
	return s == StatusPending || s == StatusConfirmed || s == StatusCancelled
}

// NewReservationID mints a fresh opaque reservation identifier.
func NewReservationID() string { return "res-" + uuid.NewString() }
