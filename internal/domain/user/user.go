package user

import (
	"context"
	"time"

	"github.com/go-faster/errors"
)

// Sentinel errors for user operations.
var (
	ErrNotFound           = errors.New("user not found")
	ErrDuplicateEmail     = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInvalidToken       = errors.New("invalid token")
	ErrInvalidOTP         = errors.New("invalid OTP")
	ErrPasswordTooLong    = errors.New("password must be at most 72 bytes")
)

// MaxPasswordLen is the longest password bcrypt accepts, in bytes.
const MaxPasswordLen = 72

// User is a registered account. PasswordHash holds a bcrypt hash.
type User struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}

// Repository persists users.
type Repository interface {
	// Create stores u and returns ErrDuplicateEmail when the email is taken.
	Create(ctx context.Context, u *User) error
	GetByEmail(ctx context.Context, email string) (*User, error)
	GetByID(ctx context.Context, id string) (*User, error)
}
