// Package sampledata talks to the optional, non-authoritative sample
// data source: a read-only HTTP endpoint serving user-like records
// that are synthesized into sample reservations.  Every fetch is
// bounded by a timeout; all failures are returned to the caller to be
// categorized, never retried.
package sampledata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/tablebook/tablebook/internal/model"
)

// DefaultTimeout bounds the whole fetch, dial through body read.
const DefaultTimeout = 10 * time.Second

// ErrBadPayload is returned when the response body is not the expected
// JSON sequence.
var ErrBadPayload = errors.New("sampledata: malformed payload")

// StatusError reports a non-2xx response from the source.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("sampledata: server returned %d", e.Code)
}

// Client fetches and maps sample records.
type Client struct {
	url     string
	timeout time.Duration
	limit   int
	httpc   *http.Client
}

// NewClient builds a client for the given endpoint.  A non-positive
// timeout falls back to DefaultTimeout; a positive limit is passed to
// the source as the _limit query parameter.
func NewClient(endpoint string, timeout time.Duration, limit int) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{url: endpoint, timeout: timeout, limit: limit, httpc: &http.Client{}}
}

// flexID tolerates both numeric and string identifiers in source
// records.  Any other shape leaves the id empty, which drops the
// record during mapping.
type flexID string

func (f *flexID) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*f = flexID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err == nil {
		*f = flexID(n.String())
	}
	return nil
}

// sourceUser is the subset of the source record the mapping needs.
type sourceUser struct {
	ID    flexID `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// FetchSample retrieves the source records and maps them into valid
// reservation shapes.  Source records missing an id, name or email are
// dropped, not faulted.  Cancellation via the timeout surfaces as a
// normal request error.
func (c *Client) FetchSample(ctx context.Context) ([]model.Reservation, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	u, err := url.Parse(c.url)
	if err != nil {
		return nil, err
	}
	if c.limit > 0 {
		q := u.Query()
		q.Set("_limit", strconv.Itoa(c.limit))
		u.RawQuery = q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{Code: resp.StatusCode}
	}
	var users []sourceUser
	if err := json.NewDecoder(resp.Body).Decode(&users); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadPayload, err)
	}

	now := time.Now().UTC()
	out := make([]model.Reservation, 0, len(users))
	for _, su := range users {
		if su.ID == "" || su.Name == "" || su.Email == "" {
			continue
		}
		// The rotation index counts kept records only.
		out = append(out, mapReservation(su, len(out), now))
	}
	return out, nil
}

// Rotation tables for synthesized fields, one slot per source record.
var (
	sampleTypes    = []string{model.TypeDinner, model.TypeLunch, model.TypeEvent}
	sampleTimes    = []string{"19:00", "12:30", "18:00"}
	sampleGuests   = []int{2, 4, 6}
	sampleStatuses = []string{model.StatusPending, model.StatusConfirmed, model.StatusConfirmed}
)

// mapReservation turns one source user into a sample reservation.  The
// identifier is derived from the source id so repeated refreshes keep
// producing the same ids and dedup against previous merges.
func mapReservation(su sourceUser, index int, now time.Time) model.Reservation {
	phoneSeed := 1000 + index
	if n, err := strconv.Atoi(string(su.ID)); err == nil {
		phoneSeed = 1000 + n
	}
	return model.Reservation{
		ID:              "sample-" + string(su.ID),
		CustomerName:    su.Name,
		CustomerEmail:   su.Email,
		CustomerPhone:   fmt.Sprintf("+1-555-%d", phoneSeed),
		Type:            sampleTypes[index%3],
		Guests:          sampleGuests[index%3],
		Date:            now.AddDate(0, 0, index+1).Format("2006-01-02"),
		Time:            sampleTimes[index%3],
		Status:          sampleStatuses[index%3],
		SpecialRequests: "Special request for " + su.Name,
		CreatedBy:       fmt.Sprintf("Staff Member %d", index+1),
		CreatedAt:       now,
	}
}
