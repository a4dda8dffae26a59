package users

import (
	"context"
	"sync"
	"time"

	"articles-backend/internal/resources"
)

// MemoryRepo is an in-memory Repo for development and tests.
type MemoryRepo struct {
	mu     sync.RWMutex
	nextID int64
	users  map[int64]User
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{nextID: 1, users: make(map[int64]User)}
}

func (r *MemoryRepo) Create(ctx context.Context, user User) (User, error) {
	if err := ctx.Err(); err != nil {
		return User{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.users {
		if existing.Email == user.Email {
			return User{}, ErrEmailTaken
		}
	}
	now := time.Now().UTC()
	user.ID = r.nextID
	r.nextID++
	user.CreatedAt = now
	user.UpdatedAt = now
	r.users[user.ID] = user
	return user, nil
}

func (r *MemoryRepo) GetByID(ctx context.Context, id int64) (User, error) {
	if err := ctx.Err(); err != nil {
		return User{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	user, ok := r.users[id]
	if !ok {
		return User{}, ErrNotFound
	}
	return user, nil
}

func (r *MemoryRepo) GetByEmail(ctx context.Context, email string) (User, error) {
	if err := ctx.Err(); err != nil {
		return User{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, user := range r.users {
		if user.Email == email {
			return user, nil
		}
	}
	return User{}, ErrNotFound
}

func (r *MemoryRepo) EmailTaken(ctx context.Context, email string, excludeID int64) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, user := range r.users {
		if user.Email == email && user.ID != excludeID {
			return true, nil
		}
	}
	return false, nil
}

func (r *MemoryRepo) Load(ctx context.Context, id int64) (resources.Snapshot, error) {
	user, err := r.GetByID(ctx, id)
	if err != nil {
		return resources.Snapshot{}, err
	}
	return resources.Snapshot{
		ID:            user.ID,
		OwnerID:       user.ID,
		AttachmentRef: user.AvatarRef,
		Fields: map[string]string{
			"name":  user.Name,
			"email": user.Email,
		},
	}, nil
}

func (r *MemoryRepo) Apply(ctx context.Context, id int64, cs *resources.ChangeSet) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[id]
	if !ok {
		return ErrNotFound
	}
	for _, a := range cs.Assignments() {
		value := ""
		if a.Value != nil {
			value = a.Value.(string)
		}
		switch a.Column {
		case "name":
			user.Name = value
		case "email":
			for _, existing := range r.users {
				if existing.Email == value && existing.ID != id {
					return ErrEmailTaken
				}
			}
			user.Email = value
		case "password_hash":
			user.PasswordHash = value
		case "avatar_ref":
			user.AvatarRef = value
		}
	}
	user.UpdatedAt = time.Now().UTC()
	r.users[id] = user
	return nil
}
