// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Libretto Contributors

package auth

import "errors"

var (
	// ErrNotFound is returned when a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidCredentials is returned for a wrong email or password.
	// The two cases are deliberately indistinguishable.
	ErrInvalidCredentials = errors.New("invalid email or password")

	// ErrInvalidToken is returned when a token fails cryptographic
	// verification, carries malformed claims, or has expired.
	ErrInvalidToken = errors.New("invalid token")

	// ErrDuplicateEmail is returned when registration hits an existing email.
	ErrDuplicateEmail = errors.New("email already registered")
)
