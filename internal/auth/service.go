// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Libretto Contributors

package auth

import (
	"context"
	"crypto/rsa"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/samber/oops"
)

// SessionRegistry maps session ids to user ids with TTL expiry. Absence
// on Get is the same whether the entry expired or was deleted; callers
// must not try to distinguish the two.
type SessionRegistry interface {
	// Put registers a session. Overwriting an existing id is allowed.
	Put(ctx context.Context, sessionID uuid.UUID, userID uuid.UUID, ttl time.Duration) error

	// Get resolves a session to its user id. Returns ErrNotFound
	// (wrapped) when the entry is absent.
	Get(ctx context.Context, sessionID uuid.UUID) (uuid.UUID, error)

	// Delete removes the given sessions in one batch. Absent ids are
	// a no-op, not an error.
	Delete(ctx context.Context, sessionIDs ...uuid.UUID) error
}

// TokenConfig holds the decoded key material and validity windows for
// both token kinds. Immutable after construction.
type TokenConfig struct {
	AccessPrivateKey  *rsa.PrivateKey
	AccessPublicKey   *rsa.PublicKey
	RefreshPrivateKey *rsa.PrivateKey
	RefreshPublicKey  *rsa.PublicKey
	AccessTTL         time.Duration
	RefreshTTL        time.Duration
}

// TokenPair is the pair of independently signed, independently
// registered tokens minted by one login.
type TokenPair struct {
	Access  MintedToken
	Refresh MintedToken
}

// Service provides registration, login, and logout.
type Service struct {
	users    UserRepository
	registry SessionRegistry
	hasher   PasswordHasher
	tokens   TokenConfig
}

// NewService creates a Service.
func NewService(users UserRepository, registry SessionRegistry, hasher PasswordHasher, tokens TokenConfig) (*Service, error) {
	if users == nil {
		return nil, oops.Code("AUTH_INIT_FAILED").Errorf("user repository is required")
	}
	if registry == nil {
		return nil, oops.Code("AUTH_INIT_FAILED").Errorf("session registry is required")
	}
	if hasher == nil {
		return nil, oops.Code("AUTH_INIT_FAILED").Errorf("password hasher is required")
	}
	if tokens.AccessPrivateKey == nil || tokens.RefreshPrivateKey == nil {
		return nil, oops.Code("AUTH_INIT_FAILED").Errorf("token signing keys are required")
	}
	if tokens.AccessTTL <= 0 || tokens.RefreshTTL <= 0 {
		return nil, oops.Code("AUTH_INIT_FAILED").Errorf("token TTLs must be positive")
	}
	return &Service{users: users, registry: registry, hasher: hasher, tokens: tokens}, nil
}

// Register creates a new account with role "user".
func (s *Service) Register(ctx context.Context, in RegisterInput) (*User, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	digest, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, oops.Code("AUTH_REGISTER_FAILED").
			With("operation", "hash password").
			Wrap(err)
	}

	now := time.Now().UTC()
	user := &User{
		ID:           uuid.New(),
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		MiddleName:   in.MiddleName,
		Age:          in.Age,
		Email:        in.Email,
		PasswordHash: digest,
		Role:         RoleUser,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, ErrDuplicateEmail) {
			return nil, err
		}
		return nil, oops.Code("AUTH_REGISTER_FAILED").
			With("operation", "insert user").
			Wrap(err)
	}

	return user, nil
}

// Login verifies the credentials and, on success, mints an access and a
// refresh token and registers both session ids with their own TTLs. The
// two registrations are independent; nothing requires them to succeed
// atomically.
//
// An unknown email still runs password verification against a dummy
// digest so response time does not reveal which emails exist.
func (s *Service) Login(ctx context.Context, email, password string) (*User, *TokenPair, error) {
	user, lookupErr := s.users.GetByEmail(ctx, email)

	digest := DummyDigest
	if lookupErr == nil {
		digest = user.PasswordHash
	} else if !errors.Is(lookupErr, ErrNotFound) {
		return nil, nil, oops.Code("AUTH_LOGIN_FAILED").
			With("operation", "get user by email").
			Wrap(lookupErr)
	}

	valid := s.hasher.Verify(password, digest)
	if lookupErr != nil || !valid {
		return nil, nil, oops.Code("AUTH_INVALID_CREDENTIALS").Wrap(ErrInvalidCredentials)
	}

	access, err := MintToken(user.ID, s.tokens.AccessTTL, s.tokens.AccessPrivateKey)
	if err != nil {
		return nil, nil, err
	}
	refresh, err := MintToken(user.ID, s.tokens.RefreshTTL, s.tokens.RefreshPrivateKey)
	if err != nil {
		return nil, nil, err
	}

	if err := s.registry.Put(ctx, access.SessionID, user.ID, s.tokens.AccessTTL); err != nil {
		return nil, nil, oops.Code("AUTH_SESSION_REGISTER_FAILED").
			With("operation", "register access session").
			Wrap(err)
	}
	if err := s.registry.Put(ctx, refresh.SessionID, user.ID, s.tokens.RefreshTTL); err != nil {
		return nil, nil, oops.Code("AUTH_SESSION_REGISTER_FAILED").
			With("operation", "register refresh session").
			Wrap(err)
	}

	return user, &TokenPair{Access: access, Refresh: refresh}, nil
}

// Logout revokes the refresh session named by the refresh token plus the
// caller's current access session, in one registry batch. Deleting an
// already-absent entry is a no-op, so logout is idempotent in effect.
func (s *Service) Logout(ctx context.Context, refreshToken string, accessSessionID uuid.UUID) error {
	refreshSID, _, err := VerifyToken(refreshToken, s.tokens.RefreshPublicKey)
	if err != nil {
		return err
	}

	if err := s.registry.Delete(ctx, refreshSID, accessSessionID); err != nil {
		return oops.Code("AUTH_LOGOUT_FAILED").
			With("operation", "delete sessions").
			Wrap(err)
	}
	return nil
}

// AccessTTL returns the configured access-token validity window.
func (s *Service) AccessTTL() time.Duration { return s.tokens.AccessTTL }

// RefreshTTL returns the configured refresh-token validity window.
func (s *Service) RefreshTTL() time.Duration { return s.tokens.RefreshTTL }
