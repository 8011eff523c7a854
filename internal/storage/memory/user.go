package memory

import (
	"context"
	"sync"

	"github.com/xenking/quickcart/internal/domain/user"
)

var _ user.Repository = (*Users)(nil)

// Users is an in-memory user store with a unique email index.
type Users struct {
	mu      sync.RWMutex
	byID    map[string]user.User
	byEmail map[string]string
}

// NewUsers creates an empty user store.
func NewUsers() *Users {
	return &Users{
		byID:    make(map[string]user.User),
		byEmail: make(map[string]string),
	}
}

// Create stores u or returns user.ErrDuplicateEmail.
func (r *Users) Create(_ context.Context, u *user.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, taken := r.byEmail[u.Email]; taken {
		return user.ErrDuplicateEmail
	}
	r.byID[u.ID] = *u
	r.byEmail[u.Email] = u.ID
	return nil
}

// GetByEmail returns the user registered with email.
func (r *Users) GetByEmail(_ context.Context, email string) (*user.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byEmail[email]
	if !ok {
		return nil, user.ErrNotFound
	}
	u := r.byID[id]
	return &u, nil
}

// GetByID returns the user with id.
func (r *Users) GetByID(_ context.Context, id string) (*user.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.byID[id]
	if !ok {
		return nil, user.ErrNotFound
	}
	return &u, nil
}
