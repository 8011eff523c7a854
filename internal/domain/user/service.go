package user

import (
	"context"
	"crypto/subtle"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// Service registers users and authenticates bearer tokens.
type Service struct {
	users  Repository
	tokens *TokenIssuer
	otp    string
	cost   int
	now    func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithBcryptCost overrides bcrypt.DefaultCost.
func WithBcryptCost(cost int) Option {
	return func(s *Service) { s.cost = cost }
}

// NewService creates a user Service. otp is the registration code every
// sign-up must present.
func NewService(users Repository, tokens *TokenIssuer, otp string, opts ...Option) *Service {
	s := &Service{
		users:  users,
		tokens: tokens,
		otp:    otp,
		cost:   bcrypt.DefaultCost,
		now:    time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Register creates a user after checking the registration OTP.
func (s *Service) Register(ctx context.Context, name, email, password, otp string) (*User, error) {
	if subtle.ConstantTimeCompare([]byte(otp), []byte(s.otp)) != 1 {
		return nil, ErrInvalidOTP
	}
	if len(password) > MaxPasswordLen {
		return nil, ErrPasswordTooLong
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return nil, errors.Wrap(err, "hash password")
	}

	u := &User{
		ID:           uuid.New().String(),
		Name:         strings.TrimSpace(name),
		Email:        normalizeEmail(email),
		PasswordHash: string(hash),
		CreatedAt:    s.now().UTC().Truncate(time.Microsecond),
	}
	if err := s.users.Create(ctx, u); err != nil {
		if errors.Is(err, ErrDuplicateEmail) {
			return nil, err
		}
		return nil, errors.Wrap(err, "create user")
	}

	zctx.From(ctx).Info("User registered", zap.String("user_id", u.ID))
	return u, nil
}

// Login verifies the password and returns a signed bearer token.
func (s *Service) Login(ctx context.Context, email, password string) (string, error) {
	u, err := s.users.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return "", ErrInvalidCredentials
		}
		return "", errors.Wrap(err, "get user")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return "", ErrInvalidCredentials
	}
	return s.tokens.Issue(u.ID)
}

// Authenticate resolves a bearer token to its user.
func (s *Service) Authenticate(ctx context.Context, token string) (*User, error) {
	id, err := s.tokens.Verify(token)
	if err != nil {
		return nil, err
	}
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, errors.Wrap(err, "get user")
	}
	return u, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
