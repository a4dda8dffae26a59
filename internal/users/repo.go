package users

import (
	"context"
	"errors"

	"articles-backend/internal/resources"
)

// ErrNotFound mirrors the coordinator's not-found so handlers map one error.
var ErrNotFound = resources.ErrNotFound

// ErrEmailTaken is returned when a registration or email change collides
// with an existing account.
var ErrEmailTaken = errors.New("email already registered")

// Repo persists users. It doubles as a resources.Record so profile updates
// run through the update coordinator: Load snapshots the account (users own
// themselves) and Apply writes a minimal change set.
type Repo interface {
	resources.Record

	Create(ctx context.Context, user User) (User, error)
	GetByID(ctx context.Context, id int64) (User, error)
	GetByEmail(ctx context.Context, email string) (User, error)
	EmailTaken(ctx context.Context, email string, excludeID int64) (bool, error)
}
