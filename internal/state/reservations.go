// Package state holds the reactive in-memory mirror of the
// reservations collection.  The persisted store stays the single
// source of truth: the cache is rebuilt from it at startup and every
// mutation entry point writes through to the repository.  When a
// write-through fails the in-memory mutation is deliberately not
// rolled back; the cache can diverge from durable state until the next
// full reload, which is a documented risk of this design rather than a
// masked one.
package state

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/tablebook/tablebook/internal/model"
	"github.com/tablebook/tablebook/internal/repository"
	"github.com/tablebook/tablebook/internal/sampledata"
)

// SampleSource is the network collaborator consulted by Refresh.
type SampleSource interface {
	FetchSample(ctx context.Context) ([]model.Reservation, error)
}

// ReservationState is the cache plus the error and loading flags
// exposed to observers.  Safe for concurrent use.
type ReservationState struct {
	repo   *repository.ReservationRepo
	source SampleSource

	mu      sync.Mutex
	items   []model.Reservation
	loading bool
	errMsg  string
}

// NewReservationState builds the cache, seeding it from the durable
// reservations collection.
func NewReservationState(ctx context.Context, repo *repository.ReservationRepo, source SampleSource) *ReservationState {
	return &ReservationState{
		repo:   repo,
		source: source,
		items:  repo.GetAll(ctx),
	}
}

// NewReservationInput carries the raw caller-supplied fields for a new
// reservation, before validation and identifier minting.
type NewReservationInput struct {
	CustomerName    string `json:"customerName"`
	CustomerEmail   string `json:"customerEmail"`
	CustomerPhone   string `json:"customerPhone"`
	Type            string `json:"reservationType"`
	Guests          int    `json:"numberOfGuests"`
	Date            string `json:"reservationDate"`
	Time            string `json:"reservationTime"`
	Status          string `json:"status"`
	SpecialRequests string `json:"specialRequests"`
}

// CreateNew validates the input, builds a reservation with a freshly
// minted identifier and creation metadata, adds it to the cache and
// writes it through.  Validation failures raise a ValidationError and
// leave both cache and store untouched.
func (s *ReservationState) CreateNew(ctx context.Context, in NewReservationInput, createdBy string) (model.Reservation, error) {
	res, err := buildReservation(in, createdBy)
	if err != nil {
		s.setErr(err.Error())
		return model.Reservation{}, err
	}
	if err := s.Add(ctx, res); err != nil {
		return model.Reservation{}, err
	}
	return res, nil
}

// buildReservation normalizes and validates the raw input: a trimmed
// name of at least two characters, an RFC-shaped email,
// optionally a plausible phone number, a non-empty type, date and
// time, and a party size of 1 to 20 (defaulting to 2 when unset).
func buildReservation(in NewReservationInput, createdBy string) (model.Reservation, error) {
	name := strings.TrimSpace(in.CustomerName)
	if !model.ValidName(name) {
		return model.Reservation{}, repository.Invalid("customer name must be at least %d characters", model.MinNameLen)
	}
	email := strings.TrimSpace(in.CustomerEmail)
	if !model.ValidEmail(email) {
		return model.Reservation{}, repository.Invalid("valid customer email is required")
	}
	phone := strings.TrimSpace(in.CustomerPhone)
	if phone != "" && !model.ValidPhone(phone) {
		return model.Reservation{}, repository.Invalid("customer phone is not a valid phone number")
	}
	if in.Type == "" {
		return model.Reservation{}, repository.Invalid("reservation type is required")
	}
	if in.Date == "" {
		return model.Reservation{}, repository.Invalid("reservation date is required")
	}
	if in.Time == "" {
		return model.Reservation{}, repository.Invalid("reservation time is required")
	}
	guests := in.Guests
	if guests == 0 {
		guests = 2
	}
	if guests < model.MinGuests || guests > model.MaxGuests {
		return model.Reservation{}, repository.Invalid("number of guests must be between %d and %d", model.MinGuests, model.MaxGuests)
	}
	status := in.Status
	if status == "" {
		status = model.StatusPending
	}
	if !model.ValidStatus(status) {
		return model.Reservation{}, repository.Invalid("unknown reservation status %q", status)
	}
	if createdBy == "" {
		createdBy = "Unknown"
	}
	return model.Reservation{
		ID:              model.NewReservationID(),
		CustomerName:    name,
		CustomerEmail:   email,
		CustomerPhone:   phone,
		Type:            in.Type,
		Guests:          guests,
		Date:            in.Date,
		Time:            in.Time,
		Status:          status,
		SpecialRequests: strings.TrimSpace(in.SpecialRequests),
		CreatedBy:       createdBy,
		CreatedAt:       time.Now().UTC(),
	}, nil
}

// Set replaces the cached sequence wholesale and writes it through.  A
// nil list is coerced to empty.
func (s *ReservationState) Set(ctx context.Context, list []model.Reservation) {
	if list == nil {
		list = []model.Reservation{}
	}
	s.mu.Lock()
	s.items = list
	s.mu.Unlock()
	if err := s.repo.ReplaceAll(ctx, list); err != nil {
		log.Printf("state: set write-through failed: %v", err)
	}
}

// Add appends a reservation to the cache and writes it through.  The
// record must carry an identifier; otherwise a ValidationError is
// raised and the cache is left untouched.
func (s *ReservationState) Add(ctx context.Context, res model.Reservation) error {
	if res.ID == "" {
		err := repository.Invalid("reservation id is required")
		s.setErr(err.Error())
		return err
	}
	s.mu.Lock()
	s.items = append(s.items, res)
	s.mu.Unlock()
	if _, err := s.repo.Create(ctx, res); err != nil {
		// Not rolled back; see the package comment.
		log.Printf("state: add write-through failed: %v", err)
	}
	return nil
}

// Update merges the patch over the cached record with the given id and
// writes the change through.  Returns nil when the id is unknown.
func (s *ReservationState) Update(ctx context.Context, id string, patch repository.ReservationPatch) (*model.Reservation, error) {
	if id == "" {
		err := repository.Invalid("reservation id is required")
		s.setErr(err.Error())
		return nil, err
	}
	s.mu.Lock()
	found := false
	for i := range s.items {
		if s.items[i].ID == id {
			patch.Apply(&s.items[i])
			found = true
			break
		}
	}
	s.mu.Unlock()
	if !found {
		return nil, nil
	}
	updated, err := s.repo.Update(ctx, id, patch)
	if err != nil {
		log.Printf("state: update write-through failed: %v", err)
	}
	if updated == nil {
		// The cache held a record the store no longer has; report the
		// cached view, which is the contract under divergence.
		out := s.ByID(id)
		return out, nil
	}
	return updated, nil
}

// Remove deletes the record with the given id from the cache and
// writes the deletion through.  Removing an unknown id succeeds.
func (s *ReservationState) Remove(ctx context.Context, id string) error {
	if id == "" {
		err := repository.Invalid("reservation id is required")
		s.setErr(err.Error())
		return err
	}
	s.mu.Lock()
	kept := s.items[:0]
	for _, res := range s.items {
		if res.ID != id {
			kept = append(kept, res)
		}
	}
	s.items = kept
	s.mu.Unlock()
	if err := s.repo.Delete(ctx, id); err != nil {
		log.Printf("state: remove write-through failed: %v", err)
	}
	return nil
}

// Refresh fetches candidate records from the sample source, merges
// them against the durable collection (existing records win on id
// collision) and replaces cache and store in a single set.  On any
// failure it falls back to the last-known durable reservations, sets a
// categorized error message, and always clears the loading flag.
func (s *ReservationState) Refresh(ctx context.Context) {
	s.setLoading(true)
	s.setErr("")
	defer s.setLoading(false)

	samples, err := s.source.FetchSample(ctx)
	if err != nil {
		log.Printf("state: refresh failed: %v", err)
		s.setErr(refreshErrorMessage(err))
		s.Set(ctx, s.repo.GetAll(ctx))
		return
	}
	s.Set(ctx, repository.MergeByID(s.repo.GetAll(ctx), samples))
}

// refreshErrorMessage categorizes a refresh failure into the
// user-facing message recorded on the error flag.
func refreshErrorMessage(err error) string {
	var statusErr *sampledata.StatusError
	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded),
		errors.As(err, &netErr) && netErr.Timeout():
		return "Request timeout. Please check your connection."
	case errors.As(err, &statusErr):
		return fmt.Sprintf("Server error: %d", statusErr.Code)
	case errors.Is(err, sampledata.ErrBadPayload):
		return "Error loading reservations"
	default:
		return "Network error. Please check your connection."
	}
}

// All returns a copy of the cached sequence.
func (s *ReservationState) All() []model.Reservation {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Reservation, len(s.items))
	copy(out, s.items)
	return out
}

// ByID returns the cached record with the given id, or nil.
func (s *ReservationState) ByID(id string) *model.Reservation {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, res := range s.items {
		if res.ID == id {
			out := res
			return &out
		}
	}
	return nil
}

// ByStatus returns the cached records with the given status.
func (s *ReservationState) ByStatus(status string) []model.Reservation {
	return s.filter(func(r model.Reservation) bool { return r.Status == status })
}

// ByType returns the cached records with the given type.
func (s *ReservationState) ByType(typ string) []model.Reservation {
	return s.filter(func(r model.Reservation) bool { return r.Type == typ })
}

// ByDate returns the cached records on the given calendar date.
func (s *ReservationState) ByDate(date string) []model.Reservation {
	return s.filter(func(r model.Reservation) bool { return r.Date == date })
}

func (s *ReservationState) filter(keep func(model.Reservation) bool) []model.Reservation {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Reservation, 0)
	for _, res := range s.items {
		if keep(res) {
			out = append(out, res)
		}
	}
	return out
}

// Loading reports whether a refresh is in flight.
func (s *ReservationState) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

// Err returns the last recorded error message, empty when clear.
func (s *ReservationState) Err() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.errMsg
}

func (s *ReservationState) setLoading(v bool) {
	s.mu.Lock()
	s.loading = v
	s.mu.Unlock()
}

func (s *ReservationState) setErr(msg string) {
	s.mu.Lock()
	s.errMsg = msg
	s.mu.Unlock()
}
