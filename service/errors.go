package service

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/licito/backend/model"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrForbidden          = errors.New("forbidden")
)

// ValidationError carries a message that can be shown to the user as is
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func invalid(msg string) error {
	return &ValidationError{Message: msg}
}

// Actor is the authenticated user on whose behalf a service call runs
type Actor struct {
	ID   string
	Role model.Role
	Name string
}

func newID() string {
	return uuid.New().String()
}

// clock is replaced in tests
type clock func() time.Time

func (c clock) now() time.Time {
	if c == nil {
		return time.Now()
	}
	return c()
}
