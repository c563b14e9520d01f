// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Libretto Contributors

package auth

import (
	"crypto/rsa"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/samber/oops"
)

// tokenClaims is the claim set carried by both access and refresh tokens.
// The session id ("sid") is the unit of revocation: it is mirrored as a
// key in the session registry, and a token is only honored while that
// key exists.
type tokenClaims struct {
	SID string `json:"sid"`
	jwt.RegisteredClaims
}

// MintedToken is the result of minting a session token.
type MintedToken struct {
	Token     string
	SessionID uuid.UUID
	ExpiresAt time.Time
}

// MintToken signs a session token for userID with the given validity
// window. A fresh random session id is generated per call, so the access
// and refresh tokens of one login never collide and revoke independently.
// Access vs refresh is purely the caller's choice of key and TTL.
func MintToken(userID uuid.UUID, ttl time.Duration, key *rsa.PrivateKey) (MintedToken, error) {
	if key == nil {
		return MintedToken{}, oops.Code("TOKEN_MINT_FAILED").Errorf("signing key is required")
	}

	sid := uuid.New()
	now := time.Now()
	expiresAt := now.Add(ttl)

	claims := tokenClaims{
		SID: sid.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(key)
	if err != nil {
		return MintedToken{}, oops.Code("TOKEN_MINT_FAILED").
			With("operation", "sign token").
			Wrap(err)
	}

	return MintedToken{Token: signed, SessionID: sid, ExpiresAt: expiresAt}, nil
}

// VerifyToken checks a token's signature and time bounds and returns its
// session and user ids. It is purely cryptographic: whether the session
// is still live is the session registry's call, not this one's. All
// failure causes collapse into ErrInvalidToken.
func VerifyToken(token string, key *rsa.PublicKey) (sessionID, userID uuid.UUID, err error) {
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}))

	parsed, err := parser.ParseWithClaims(token, &tokenClaims{}, func(*jwt.Token) (any, error) {
		return key, nil
	})
	if err != nil {
		return uuid.Nil, uuid.Nil, oops.Code("TOKEN_INVALID").Wrap(ErrInvalidToken)
	}

	claims, ok := parsed.Claims.(*tokenClaims)
	if !ok || !parsed.Valid {
		return uuid.Nil, uuid.Nil, oops.Code("TOKEN_INVALID").Wrap(ErrInvalidToken)
	}

	sessionID, err = uuid.Parse(claims.SID)
	if err != nil {
		return uuid.Nil, uuid.Nil, oops.Code("TOKEN_INVALID").Wrap(ErrInvalidToken)
	}
	userID, err = uuid.Parse(claims.Subject)
	if err != nil {
		return uuid.Nil, uuid.Nil, oops.Code("TOKEN_INVALID").Wrap(ErrInvalidToken)
	}

	return sessionID, userID, nil
}
