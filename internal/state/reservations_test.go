package state

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/tablebook/tablebook/internal/kv"
	"github.com/tablebook/tablebook/internal/model"
	"github.com/tablebook/tablebook/internal/repository"
	"github.com/tablebook/tablebook/internal/sampledata"
	"github.com/tablebook/tablebook/internal/storage"
)

// stubSource is a canned SampleSource for driving Refresh.
type stubSource struct {
	items []model.Reservation
	err   error
}

func (s *stubSource) FetchSample(context.Context) ([]model.Reservation, error) {
	return s.items, s.err
}

func newTestState(t *testing.T, source SampleSource) (*ReservationState, *storage.Store) {
	t.Helper()
	fs, err := kv.NewFileStore(t.TempDir(), 0)
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	store := storage.New(fs)
	ctx := context.Background()
	if err := store.Initialize(ctx); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	repo := repository.NewReservationRepo(store)
	return NewReservationState(ctx, repo, source), store
}

func validInput() NewReservationInput {
	return NewReservationInput{
		CustomerName:  "Ada Lovelace",
		CustomerEmail: "ada@example.com",
		Type:          model.TypeDinner,
		Guests:        4,
		Date:          "2026-09-01",
		Time:          "19:00",
	}
}

func TestStateSeedsFromDurableStore(t *testing.T) {
	ctx := context.Background()
	fs, err := kv.NewFileStore(t.TempDir(), 0)
	if err != nil {
		t.Fatal(err)
	}
	store := storage.New(fs)
	if err := store.Initialize(ctx); err != nil {
		t.Fatal(err)
	}
	repo := repository.NewReservationRepo(store)
	if _, err := repo.Create(ctx, model.Reservation{ID: "res-1"}); err != nil {
		t.Fatal(err)
	}

	s := NewReservationState(ctx, repo, &stubSource{})
	if got := s.All(); len(got) != 1 || got[0].ID != "res-1" {
		t.Errorf("seeded cache = %+v, want the durable record", got)
	}
}

func TestCreateNewWritesThrough(t *testing.T) {
	ctx := context.Background()
	s, store := newTestState(t, &stubSource{})

	res, err := s.CreateNew(ctx, validInput(), "Al")
	if err != nil {
		t.Fatalf("CreateNew: %v", err)
	}
	if res.ID == "" || res.CreatedAt.IsZero() {
		t.Errorf("identifier or timestamp not minted: %+v", res)
	}
	if res.Status != model.StatusPending {
		t.Errorf("Status = %q, want default %q", res.Status, model.StatusPending)
	}
	if res.CreatedBy != "Al" {
		t.Errorf("CreatedBy = %q, want Al", res.CreatedBy)
	}

	if got := s.All(); len(got) != 1 {
		t.Fatalf("cache = %d records, want 1", len(got))
	}
	durable := store.Read(ctx).Reservations
	if len(durable) != 1 || durable[0].ID != res.ID {
		t.Errorf("durable collection = %+v, want the created record", durable)
	}
}

func TestCreateNewValidation(t *testing.T) {
	ctx := context.Background()
	cases := []struct {
		name   string
		mutate func(*NewReservationInput)
	}{
		{"short name", func(in *NewReservationInput) { in.CustomerName = "A" }},
		{"bad email", func(in *NewReservationInput) { in.CustomerEmail = "nope" }},
		{"bad phone", func(in *NewReservationInput) { in.CustomerPhone = "call me" }},
		{"missing type", func(in *NewReservationInput) { in.Type = "" }},
		{"missing date", func(in *NewReservationInput) { in.Date = "" }},
		{"missing time", func(in *NewReservationInput) { in.Time = "" }},
		{"too many guests", func(in *NewReservationInput) { in.Guests = 21 }},
		{"negative guests", func(in *NewReservationInput) { in.Guests = -1 }},
		{"unknown status", func(in *NewReservationInput) { in.Status = "maybe" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s, store := newTestState(t, &stubSource{})
			in := validInput()
			tc.mutate(&in)

			if _, err := s.CreateNew(ctx, in, "Al"); !errors.Is(err, repository.ErrValidation) {
				t.Fatalf("CreateNew = %v, want ErrValidation", err)
			}
			if got := s.All(); len(got) != 0 {
				t.Errorf("cache mutated by rejected input: %+v", got)
			}
			if durable := store.Read(ctx).Reservations; len(durable) != 0 {
				t.Errorf("store mutated by rejected input: %+v", durable)
			}
			if s.Err() == "" {
				t.Error("error flag not recorded for observers")
			}
		})
	}
}

func TestCreateNewDefaultsGuests(t *testing.T) {
	s, _ := newTestState(t, &stubSource{})
	in := validInput()
	in.Guests = 0
	res, err := s.CreateNew(context.Background(), in, "")
	if err != nil {
		t.Fatalf("CreateNew: %v", err)
	}
	if res.Guests != 2 {
		t.Errorf("Guests = %d, want default 2", res.Guests)
	}
	if res.CreatedBy != "Unknown" {
		t.Errorf("CreatedBy = %q, want Unknown fallback", res.CreatedBy)
	}
}

func TestUpdateWritesThrough(t *testing.T) {
	ctx := context.Background()
	s, store := newTestState(t, &stubSource{})
	res, err := s.CreateNew(ctx, validInput(), "Al")
	if err != nil {
		t.Fatal(err)
	}

	confirmed := model.StatusConfirmed
	got, err := s.Update(ctx, res.ID, repository.ReservationPatch{Status: &confirmed})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if got == nil || got.Status != model.StatusConfirmed {
		t.Errorf("Update = %+v, want confirmed record", got)
	}
	if cached := s.ByID(res.ID); cached.Status != model.StatusConfirmed {
		t.Errorf("cache not updated: %+v", cached)
	}
	if durable := store.Read(ctx).Reservations[0]; durable.Status != model.StatusConfirmed {
		t.Errorf("store not updated: %+v", durable)
	}

	// Unknown id: nil result, nothing changes.
	if got, err := s.Update(ctx, "res-ghost", repository.ReservationPatch{Status: &confirmed}); err != nil || got != nil {
		t.Errorf("Update(ghost) = (%+v, %v), want (nil, nil)", got, err)
	}
}

func TestRemoveWritesThrough(t *testing.T) {
	ctx := context.Background()
	s, store := newTestState(t, &stubSource{})
	res, err := s.CreateNew(ctx, validInput(), "Al")
	if err != nil {
		t.Fatal(err)
	}

	if err := s.Remove(ctx, res.ID); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if got := s.All(); len(got) != 0 {
		t.Errorf("cache after remove = %+v, want empty", got)
	}
	if durable := store.Read(ctx).Reservations; len(durable) != 0 {
		t.Errorf("store after remove = %+v, want empty", durable)
	}
	// Removing again is fine.
	if err := s.Remove(ctx, res.ID); err != nil {
		t.Errorf("second Remove = %v, want nil", err)
	}
}

func TestDerivedViews(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestState(t, &stubSource{})
	seed := []model.Reservation{
		{ID: "r1", Status: model.StatusPending, Type: model.TypeDinner, Date: "2026-09-01"},
		{ID: "r2", Status: model.StatusConfirmed, Type: model.TypeLunch, Date: "2026-09-01"},
		{ID: "r3", Status: model.StatusPending, Type: model.TypeDinner, Date: "2026-09-02"},
	}
	s.Set(ctx, seed)

	if got := s.ByStatus(model.StatusPending); len(got) != 2 {
		t.Errorf("ByStatus(pending) = %d records, want 2", len(got))
	}
	if got := s.ByType(model.TypeLunch); len(got) != 1 || got[0].ID != "r2" {
		t.Errorf("ByType(lunch) = %+v, want r2", got)
	}
	if got := s.ByDate("2026-09-01"); len(got) != 2 {
		t.Errorf("ByDate = %d records, want 2", len(got))
	}
	if got := s.ByID("r3"); got == nil || got.ID != "r3" {
		t.Errorf("ByID(r3) = %+v", got)
	}
	if got := s.ByID("ghost"); got != nil {
		t.Errorf("ByID(ghost) = %+v, want nil", got)
	}

	// Views hand out copies; mutating them must not touch the cache.
	all := s.All()
	all[0].Status = "tampered"
	if got := s.ByID("r1"); got.Status != model.StatusPending {
		t.Errorf("cache aliased by view: %+v", got)
	}
}

func TestRefreshMergesKeepingExisting(t *testing.T) {
	ctx := context.Background()
	source := &stubSource{items: []model.Reservation{
		{ID: "sample-1", CustomerName: "Replaced?", Status: model.StatusConfirmed},
		{ID: "sample-2", CustomerName: "New"},
	}}
	s, store := newTestState(t, source)
	s.Set(ctx, []model.Reservation{{ID: "sample-1", CustomerName: "Local", Status: model.StatusPending}})

	s.Refresh(ctx)

	if s.Err() != "" {
		t.Errorf("Err = %q, want clear", s.Err())
	}
	if s.Loading() {
		t.Error("loading flag still set after refresh")
	}
	got := s.All()
	if len(got) != 2 {
		t.Fatalf("cache after refresh = %d records, want 2", len(got))
	}
	if got[0].CustomerName != "Local" {
		t.Errorf("existing record clobbered by incoming: %+v", got[0])
	}
	if got[1].ID != "sample-2" {
		t.Errorf("new record not appended: %+v", got[1])
	}
	if durable := store.Read(ctx).Reservations; len(durable) != 2 {
		t.Errorf("merge not persisted: %+v", durable)
	}
}

func TestRefreshFailureFallsBackToDurable(t *testing.T) {
	ctx := context.Background()
	source := &stubSource{err: errors.New("connection refused")}
	s, _ := newTestState(t, source)
	s.Set(ctx, []model.Reservation{{ID: "res-1"}})

	s.Refresh(ctx)

	if got := s.All(); len(got) != 1 || got[0].ID != "res-1" {
		t.Errorf("local reservations lost on failure: %+v", got)
	}
	if want := "Network error. Please check your connection."; s.Err() != want {
		t.Errorf("Err = %q, want %q", s.Err(), want)
	}
	if s.Loading() {
		t.Error("loading flag not cleared on failure")
	}
}

func TestRefreshTimeout(t *testing.T) {
	// A real client against a server that answers too late: the fetch
	// must time out, keep local records, record the timeout message and
	// clear the loading flag.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	ctx := context.Background()
	client := sampledata.NewClient(srv.URL, 20*time.Millisecond, 3)
	s, _ := newTestState(t, client)
	s.Set(ctx, []model.Reservation{{ID: "res-1"}})

	s.Refresh(ctx)

	if got := s.All(); len(got) != 1 || got[0].ID != "res-1" {
		t.Errorf("local reservations lost on timeout: %+v", got)
	}
	if want := "Request timeout. Please check your connection."; s.Err() != want {
		t.Errorf("Err = %q, want %q", s.Err(), want)
	}
	if s.Loading() {
		t.Error("loading flag not cleared on timeout")
	}
}

func TestRefreshServerErrorMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	ctx := context.Background()
	s, _ := newTestState(t, sampledata.NewClient(srv.URL, time.Second, 3))
	s.Refresh(ctx)

	if want := "Server error: 502"; s.Err() != want {
		t.Errorf("Err = %q, want %q", s.Err(), want)
	}
}

func TestRefreshMalformedPayloadMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"not":"a list"}`))
	}))
	defer srv.Close()

	ctx := context.Background()
	s, _ := newTestState(t, sampledata.NewClient(srv.URL, time.Second, 3))
	s.Refresh(ctx)

	if want := "Error loading reservations"; s.Err() != want {
		t.Errorf("Err = %q, want %q", s.Err(), want)
	}
}

func TestSetCoercesNil(t *testing.T) {
	s, _ := newTestState(t, &stubSource{})
	s.Set(context.Background(), nil)
	if got := s.All(); got == nil || len(got) != 0 {
		t.Errorf("Set(nil) left cache = %#v, want empty slice", got)
	}
}

func TestAddRequiresID(t *testing.T) {
	s, store := newTestState(t, &stubSource{})
	ctx := context.Background()
	if err := s.Add(ctx, model.Reservation{CustomerName: "No ID"}); !errors.Is(err, repository.ErrValidation) {
		t.Fatalf("Add without id = %v, want ErrValidation", err)
	}
	if len(s.All()) != 0 || len(store.Read(ctx).Reservations) != 0 {
		t.Error("rejected add still mutated cache or store")
	}
	if !strings.Contains(s.Err(), "id") {
		t.Errorf("error flag = %q, want id complaint", s.Err())
	}
}
