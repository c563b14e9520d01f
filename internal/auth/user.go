// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Libretto Contributors

package auth

import (
	"context"
	"net/mail"
	"time"

	"github.com/google/uuid"
	"github.com/samber/oops"
)

// Role is the access level assigned to a user account.
type Role string

// Known roles, ordered roughly by privilege.
const (
	RoleUser   Role = "user"
	RoleAuthor Role = "author"
	RoleWorker Role = "worker"
	RoleAdmin  Role = "admin"
	RoleSeller Role = "seller"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAuthor, RoleWorker, RoleAdmin, RoleSeller:
		return true
	}
	return false
}

// Name-field validation constraints.
const (
	MinNameLength     = 2
	MaxNameLength     = 100
	MinAge            = 0
	MaxAge            = 150
	MinPasswordLength = 8
)

// User represents a registered account. PasswordHash never leaves the
// process: response shaping strips it before serialization.
type User struct {
	ID           uuid.UUID
	FirstName    string
	LastName     string
	MiddleName   *string
	Age          int
	Email        string
	PasswordHash string
	Biography    *string
	File         string
	Verified     bool
	Role         Role
	Balance      float64
	Rating       float64
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// RegisterInput carries the validated fields of a registration request.
type RegisterInput struct {
	FirstName  string
	LastName   string
	MiddleName *string
	Age        int
	Email      string
	Password   string
}

// Validate checks the registration fields against the account rules.
func (in RegisterInput) Validate() error {
	if err := validateName("first_name", in.FirstName); err != nil {
		return err
	}
	if err := validateName("last_name", in.LastName); err != nil {
		return err
	}
	if in.MiddleName != nil {
		if err := validateName("middle_name", *in.MiddleName); err != nil {
			return err
		}
	}
	if in.Age < MinAge || in.Age > MaxAge {
		return oops.Code("AUTH_INVALID_INPUT").
			With("field", "age").
			Errorf("age must be between %d and %d", MinAge, MaxAge)
	}
	if err := ValidateEmail(in.Email); err != nil {
		return err
	}
	if len(in.Password) < MinPasswordLength {
		return oops.Code("AUTH_INVALID_INPUT").
			With("field", "password").
			Errorf("password must be at least %d characters", MinPasswordLength)
	}
	return nil
}

// ValidateEmail validates an email address.
func ValidateEmail(email string) error {
	if email == "" {
		return oops.Code("AUTH_INVALID_INPUT").
			With("field", "email").
			Errorf("email cannot be empty")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return oops.Code("AUTH_INVALID_INPUT").
			With("field", "email").
			Errorf("invalid email address")
	}
	return nil
}

func validateName(field, value string) error {
	if len(value) < MinNameLength || len(value) > MaxNameLength {
		return oops.Code("AUTH_INVALID_INPUT").
			With("field", field).
			Errorf("%s must be between %d and %d characters", field, MinNameLength, MaxNameLength)
	}
	return nil
}

// UserRepository manages user account persistence.
type UserRepository interface {
	// Create stores a new user. Returns ErrDuplicateEmail (wrapped) when
	// the email is already registered.
	Create(ctx context.Context, user *User) error

	// GetByID retrieves a user by id. Returns ErrNotFound (wrapped) when
	// no such user exists.
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)

	// GetByEmail retrieves a user by email. Returns ErrNotFound (wrapped)
	// when no such user exists.
	GetByEmail(ctx context.Context, email string) (*User, error)
}
