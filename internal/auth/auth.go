// Package auth implements account signup and login on top of a UserStore.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/jxucoder/codehelper/pkg/model"
	"github.com/jxucoder/codehelper/pkg/store"
)

// DefaultCost is the bcrypt work factor for new passwords.
const DefaultCost = 10

// MaxPasswordBytes is the longest password bcrypt accepts.
const MaxPasswordBytes = 72

// Reason classifies an auth failure.
type Reason string

const (
	ReasonInvalidInput Reason = "invalid_input"
	ReasonEmailExists  Reason = "email_exists"
	ReasonBadEmail     Reason = "bad_email"
	ReasonBadPassword  Reason = "bad_password"
)

// Error is a user-facing auth failure. Message is safe to show to clients.
type Error struct {
	Reason  Reason
	Message string
}

func (e *Error) Error() string { return e.Message }

var (
	errMissingCredentials = &Error{Reason: ReasonInvalidInput, Message: "Email and password are required!"}
	errEmailExists        = &Error{Reason: ReasonEmailExists, Message: "Email already exists!"}
	errInvalidEmail       = &Error{Reason: ReasonBadEmail, Message: "Invalid email!"}
	errIncorrectPassword  = &Error{Reason: ReasonBadPassword, Message: "Incorrect password!"}
	errPasswordTooLong    = &Error{Reason: ReasonInvalidInput, Message: "Password is too long!"}
)

// Service handles signup and login.
type Service struct {
	users store.UserStore
	cost  int
	now   func() time.Time
}

// NewService creates a Service. cost <= 0 selects DefaultCost.
func NewService(users store.UserStore, cost int) *Service {
	if cost <= 0 {
		cost = DefaultCost
	}
	return &Service{users: users, cost: cost, now: time.Now}
}

// NormalizeEmail trims and lower-cases an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Signup registers a new account.
func (s *Service) Signup(ctx context.Context, name, email, password string) (*model.User, error) {
	email = NormalizeEmail(email)
	if email == "" || password == "" {
		return nil, errMissingCredentials
	}
	// bcrypt only hashes the first 72 bytes and refuses longer input.
	if len(password) > MaxPasswordBytes {
		return nil, errPasswordTooLong
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	u := &model.User{
		ID:           uuid.NewString(),
		Name:         strings.TrimSpace(name),
		Email:        email,
		PasswordHash: string(hash),
		CreatedAt:    s.now().UTC(),
	}
	if err := s.users.Insert(ctx, u); err != nil {
		if errors.Is(err, store.ErrEmailExists) {
			return nil, errEmailExists
		}
		return nil, err
	}
	return u, nil
}

// Login verifies credentials and returns the matching user.
func (s *Service) Login(ctx context.Context, email, password string) (*model.User, error) {
	email = NormalizeEmail(email)
	if email == "" || password == "" {
		return nil, errMissingCredentials
	}

	u, err := s.users.FindByEmail(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		return nil, errInvalidEmail
	}
	if err != nil {
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return nil, errIncorrectPassword
	}
	return u, nil
}
