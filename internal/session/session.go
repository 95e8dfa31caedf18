// Package session manages the single current-session user.  The
// session lives under its own storage key, separate from the blob; on
// login the user is also upserted into the durable users collection so
// historical logins accumulate keyed by email.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/tablebook/tablebook/internal/kv"
	"github.com/tablebook/tablebook/internal/model"
	"github.com/tablebook/tablebook/internal/repository"
)

// SessionKey is the storage key holding the current session record.
const SessionKey = "user"

// GuestName is the display name shown when no session is active.
const GuestName = "Guest"

// Store holds the current session user and persists it through the
// key-value medium.  Safe for concurrent use.
type Store struct {
	kv    kv.Store
	users *repository.UserRepo

	mu      sync.Mutex
	current *model.User
}

// NewStore loads any persisted session.  A corrupted session record is
// cleared and treated as logged out rather than surfaced.
func NewStore(ctx context.Context, medium kv.Store, users *repository.UserRepo) *Store {
	s := &Store{kv: medium, users: users}
	raw, err := medium.Get(ctx, SessionKey)
	if err != nil {
		if !errors.Is(err, kv.ErrNotFound) {
			log.Printf("session: load failed: %v", err)
		}
		return s
	}
	var u model.User
	if err := json.Unmarshal([]byte(raw), &u); err != nil || u.Name == "" {
		log.Printf("session: clearing corrupted session record")
		if err := medium.Delete(ctx, SessionKey); err != nil {
			log.Printf("session: clear failed: %v", err)
		}
		return s
	}
	s.current = &u
	return s
}

// Credentials are the caller-supplied login fields.
type Credentials struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// UserPatch holds the fields UpdateUser may change.  Nil fields are
// left untouched.
type UserPatch struct {
	Name  *string `json:"name"`
	Email *string `json:"email"`
}

// Login validates the credentials, constructs a session user with a
// freshly minted identifier and login timestamp, persists it as the
// current session and upserts it into the durable users collection.
// Validation failures raise a ValidationError and persist nothing.
func (s *Store) Login(ctx context.Context, creds Credentials) (model.User, error) {
	name := strings.TrimSpace(creds.Name)
	if !model.ValidName(name) {
		return model.User{}, repository.Invalid("name must be at least %d characters", model.MinNameLen)
	}
	email := strings.ToLower(strings.TrimSpace(creds.Email))
	if !model.ValidEmail(email) {
		return model.User{}, repository.Invalid("valid email is required")
	}
	u := model.User{
		ID:        model.NewUserID(),
		Name:      name,
		Email:     email,
		LoginTime: time.Now().UTC(),
	}
	s.setCurrent(ctx, &u)
	if _, err := s.users.Upsert(ctx, u); err != nil {
		log.Printf("session: recording login in users collection failed: %v", err)
	}
	return u, nil
}

// Logout clears the current session.  It never fails: storage errors
// while removing the session key are logged and absorbed.
func (s *Store) Logout(ctx context.Context) {
	s.mu.Lock()
	s.current = nil
	s.mu.Unlock()
	if err := s.kv.Delete(ctx, SessionKey); err != nil {
		log.Printf("session: logout clear failed: %v", err)
	}
}

// UpdateUser merges the patch over the current session user,
// re-validating any touched field with the same rules as Login, and
// re-persists both the session record and the users collection entry.
// It fails when no session is active.
func (s *Store) UpdateUser(ctx context.Context, patch UserPatch) (model.User, error) {
	s.mu.Lock()
	cur := s.current
	s.mu.Unlock()
	if cur == nil {
		return model.User{}, repository.Invalid("no active session to update")
	}
	u := *cur
	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		if !model.ValidName(name) {
			return model.User{}, repository.Invalid("name must be at least %d characters", model.MinNameLen)
		}
		u.Name = name
	}
	if patch.Email != nil {
		email := strings.ToLower(strings.TrimSpace(*patch.Email))
		if !model.ValidEmail(email) {
			return model.User{}, repository.Invalid("valid email is required")
		}
		u.Email = email
	}
	s.setCurrent(ctx, &u)
	if _, err := s.users.Upsert(ctx, u); err != nil {
		log.Printf("session: recording update in users collection failed: %v", err)
	}
	return u, nil
}

// Current returns a copy of the session user, or nil when logged out.
func (s *Store) Current() *model.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return nil
	}
	out := *s.current
	return &out
}

// IsAuthenticated reports whether a session is active.
func (s *Store) IsAuthenticated() bool { return s.Current() != nil }

// DisplayName returns the session user's name, or the guest fallback.
func (s *Store) DisplayName() string {
	if u := s.Current(); u != nil {
		return u.Name
	}
	return GuestName
}

// setCurrent swaps the in-memory session and persists it.  Storage
// faults are logged and absorbed; the in-memory session stands either
// way.
func (s *Store) setCurrent(ctx context.Context, u *model.User) {
	s.mu.Lock()
	s.current = u
	s.mu.Unlock()
	data, err := json.Marshal(u)
	if err != nil {
		log.Printf("session: marshal failed: %v", err)
		return
	}
	if err := s.kv.Set(ctx, SessionKey, string(data)); err != nil {
		log.Printf("session: persist failed: %v", err)
	}
}
