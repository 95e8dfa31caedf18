package repository

import (
	"context"
	"log"

	"github.com/tablebook/tablebook/internal/model"
	"github.com/tablebook/tablebook/internal/storage"
)

// ReservationRepo owns the reservations collection inside the
// persisted store.  All operations are full read-modify-writes of the
// blob; durability faults are logged and absorbed so a storage outage
// never fails the user's current action, at the cost of possible
// staleness versus durable state.
type ReservationRepo struct {
	store *storage.Store
}

// NewReservationRepo returns a repo bound to the given store.
func NewReservationRepo(store *storage.Store) *ReservationRepo {
	return &ReservationRepo{store: store}
}

// ReservationPatch holds the fields Update may change.  Nil fields are
// left untouched; set fields overwrite the stored value (shallow
// merge, later fields win).  The identifier and creation metadata are
// immutable and therefore not patchable.
type ReservationPatch struct {
	CustomerName    *string `json:"customerName"`
	CustomerEmail   *string `json:"customerEmail"`
	CustomerPhone   *string `json:"customerPhone"`
	Type            *string `json:"reservationType"`
	Guests          *int    `json:"numberOfGuests"`
	Date            *string `json:"reservationDate"`
	Time            *string `json:"reservationTime"`
	Status          *string `json:"status"`
	SpecialRequests *string `json:"specialRequests"`
}

// Apply merges the patch over r, overwriting only the set fields.
func (p ReservationPatch) Apply(r *model.Reservation) {
	if p.CustomerName != nil {
		r.CustomerName = *p.CustomerName
	}
	if p.CustomerEmail != nil {
		r.CustomerEmail = *p.CustomerEmail
	}
	if p.CustomerPhone != nil {
		r.CustomerPhone = *p.CustomerPhone
	}
	if p.Type != nil {
		r.Type = *p.Type
	}
	if p.Guests != nil {
		r.Guests = *p.Guests
	}
	if p.Date != nil {
		r.Date = *p.Date
	}
	if p.Time != nil {
		r.Time = *p.Time
	}
	if p.Status != nil {
		r.Status = *p.Status
	}
	if p.SpecialRequests != nil {
		r.SpecialRequests = *p.SpecialRequests
	}
}

// GetAll returns the reservations collection verbatim.  Absent or
// malformed storage yields an empty slice.
func (r *ReservationRepo) GetAll(ctx context.Context) []model.Reservation {
	return r.store.Read(ctx).Reservations
}

// GetByID returns the reservation with the given identifier, or nil
// when not found.  An empty id short-circuits without touching
// storage.
func (r *ReservationRepo) GetByID(ctx context.Context, id string) *model.Reservation {
	if id == "" {
		return nil
	}
	for _, res := range r.store.Read(ctx).Reservations {
		if res.ID == id {
			out := res
			return &out
		}
	}
	return nil
}

// Create appends the reservation and persists the blob.  The record
// must already carry an identifier; a missing id raises a
// ValidationError.  The stored record is returned even when the write
// failed, since storage faults are absorbed.
func (r *ReservationRepo) Create(ctx context.Context, res model.Reservation) (model.Reservation, error) {
	if res.ID == "" {
		return model.Reservation{}, Invalid("reservation id is required")
	}
	if _, err := r.store.Update(ctx, func(b *storage.Blob) {
		b.Reservations = append(b.Reservations, res)
	}); err != nil {
		log.Printf("repository: create %s not durable: %v", res.ID, err)
	}
	return res, nil
}

// Update locates the reservation by id, merges the patch over it and
// persists.  A missing id raises a ValidationError.  An unknown id
// returns nil with no error: updating a non-existent record is a no-op
// signal, not a fault.
func (r *ReservationRepo) Update(ctx context.Context, id string, patch ReservationPatch) (*model.Reservation, error) {
	if id == "" {
		return nil, Invalid("reservation id is required")
	}
	var updated *model.Reservation
	if _, err := r.store.Update(ctx, func(b *storage.Blob) {
		for i := range b.Reservations {
			if b.Reservations[i].ID == id {
				patch.Apply(&b.Reservations[i])
				out := b.Reservations[i]
				updated = &out
				return
			}
		}
	}); err != nil {
		log.Printf("repository: update %s not durable: %v", id, err)
	}
	return updated, nil
}

// Delete removes every record matching id (expected: at most one) and
// persists unconditionally, even when nothing matched, which makes the
// operation idempotent.  A missing id raises a ValidationError.
func (r *ReservationRepo) Delete(ctx context.Context, id string) error {
	if id == "" {
		return Invalid("reservation id is required")
	}
	if _, err := r.store.Update(ctx, func(b *storage.Blob) {
		kept := b.Reservations[:0]
		for _, res := range b.Reservations {
			if res.ID != id {
				kept = append(kept, res)
			}
		}
		b.Reservations = kept
	}); err != nil {
		log.Printf("repository: delete %s not durable: %v", id, err)
	}
	return nil
}

// ReplaceAll swaps the whole reservations collection and persists.  It
// backs the cache's wholesale set operation.
func (r *ReservationRepo) ReplaceAll(ctx context.Context, list []model.Reservation) error {
	if _, err := r.store.Update(ctx, func(b *storage.Blob) {
		b.Reservations = list
	}); err != nil {
		log.Printf("repository: replace not durable: %v", err)
	}
	return nil
}

// MergeByID concatenates existing and incoming, then collapses the
// result to one entry per identifier, keeping the first occurrence in
// iteration order.  Entries from existing therefore win over same-id
// entries from incoming; this is what lets periodic sample refreshes
// avoid clobbering locally created records.  Records without an id are
// dropped.
func MergeByID(existing, incoming []model.Reservation) []model.Reservation {
	out := make([]model.Reservation, 0, len(existing)+len(incoming))
	seen := make(map[string]bool, len(existing)+len(incoming))
	for _, list := range [][]model.Reservation{existing, incoming} {
		for _, res := range list {
			if res.ID == "" || seen[res.ID] {
				continue
			}
			seen[res.ID] = true
			out = append(out, res)
		}
	}
	return out
}
