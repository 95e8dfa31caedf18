package repository

import (
	"context"
	"log"
	"strings"

	"github.com/tablebook/tablebook/internal/model"
	"github.com/tablebook/tablebook/internal/storage"
)

// UserRepo owns the users collection inside the persisted store.  The
// collection accumulates historical login records keyed by email:
// logging in again with a known email updates that record in place
// instead of appending a duplicate.
type UserRepo struct {
	store *storage.Store
}

// NewUserRepo returns a repo bound to the given store.
func NewUserRepo(store *storage.Store) *UserRepo {
	return &UserRepo{store: store}
}

// GetAll returns the users collection, empty when absent or malformed.
func (r *UserRepo) GetAll(ctx context.Context) []model.User {
	return r.store.Read(ctx).Users
}

// GetByID returns the user with the given identifier, or nil.  An
// empty id short-circuits without touching storage.
func (r *UserRepo) GetByID(ctx context.Context, id string) *model.User {
	if id == "" {
		return nil
	}
	for _, u := range r.store.Read(ctx).Users {
		if u.ID == id {
			out := u
			return &out
		}
	}
	return nil
}

// GetByEmail returns the user with the given email, or nil.  The
// lookup is case-insensitive since stored emails are lower-cased.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) *model.User {
	if email == "" {
		return nil
	}
	email = strings.ToLower(email)
	for _, u := range r.store.Read(ctx).Users {
		if u.Email == email {
			out := u
			return &out
		}
	}
	return nil
}

// Upsert writes the user into the collection keyed by email:
// update-in-place on a matching email, append otherwise.  A missing id
// raises a ValidationError.  Storage faults are logged and absorbed.
func (r *UserRepo) Upsert(ctx context.Context, u model.User) (model.User, error) {
	if u.ID == "" {
		return model.User{}, Invalid("user id is required")
	}
	if _, err := r.store.Update(ctx, func(b *storage.Blob) {
		for i := range b.Users {
			if b.Users[i].Email == u.Email {
				b.Users[i] = u
				return
			}
		}
		b.Users = append(b.Users, u)
	}); err != nil {
		log.Printf("repository: upsert user %s not durable: %v", u.ID, err)
	}
	return u, nil
}
