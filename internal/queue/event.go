// Package queue defines message payloads exchanged over the message broker.
package queue

// ReservationChangedEvent is published after a reservation mutation
// has been applied.  It carries enough for downstream consumers to
// log or notify without reading the primary store.
type ReservationChangedEvent struct {
	Action        string `json:"action"` // created, updated or deleted
	ReservationID string `json:"reservation_id"`
	Status        string `json:"status,omitempty"`
	Type          string `json:"reservation_type,omitempty"`
	Date          string `json:"reservation_date,omitempty"`
	Time          string `json:"reservation_time,omitempty"`
	Guests        int    `json:"number_of_guests,omitempty"`
	ChangedBy     string `json:"changed_by,omitempty"`
	ChangedAt     string `json:"changed_at"`
}
