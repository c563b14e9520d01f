// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Libretto Contributors

package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/samber/oops"
	"golang.org/x/crypto/argon2"
)

// OWASP-recommended argon2id parameters.
const (
	argon2Time    = 1         // iterations
	argon2Memory  = 64 * 1024 // 64 MB
	argon2Threads = 4         // parallelism
	argon2SaltLen = 16        // salt length in bytes
	argon2KeyLen  = 32        // output length in bytes
)

// ErrEmptyPassword is returned when attempting to hash an empty password.
var ErrEmptyPassword = oops.Code("AUTH_EMPTY_PASSWORD").Errorf("password cannot be empty")

// PasswordHasher provides password hashing and verification.
type PasswordHasher interface {
	// Hash produces an argon2id hash of the password with a fresh random salt.
	Hash(password string) (string, error)

	// Verify checks if the password matches the stored digest. A malformed
	// digest is a mismatch, never an error: verification failure and wrong
	// password are indistinguishable to the caller.
	Verify(password, digest string) bool
}

// Argon2idHasher implements PasswordHasher using argon2id.
type Argon2idHasher struct{}

// NewArgon2idHasher creates a new Argon2idHasher.
func NewArgon2idHasher() *Argon2idHasher {
	return &Argon2idHasher{}
}

// Hash produces an argon2id hash of the password in PHC string format.
func (h *Argon2idHasher) Hash(password string) (string, error) {
	if password == "" {
		return "", ErrEmptyPassword
	}

	salt := make([]byte, argon2SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", oops.Code("AUTH_SALT_FAILED").Wrap(err)
	}

	hash := argon2.IDKey([]byte(password), salt, argon2Time, argon2Memory, argon2Threads, argon2KeyLen)

	// $argon2id$v=19$m=65536,t=1,p=4$<salt>$<hash>
	encoded := fmt.Sprintf(
		"$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		argon2Memory,
		argon2Time,
		argon2Threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(hash),
	)

	return encoded, nil
}

// Verify checks if the password matches the encoded digest.
func (h *Argon2idHasher) Verify(password, digest string) bool {
	params, ok := parseDigest(digest)
	if !ok {
		return false
	}

	computed := argon2.IDKey([]byte(password), params.salt, params.time, params.memory, params.threads, params.keyLen)

	return subtle.ConstantTimeCompare(computed, params.hash) == 1
}

type digestParams struct {
	memory  uint32
	time    uint32
	threads uint8
	salt    []byte
	hash    []byte
	keyLen  uint32
}

// parseDigest decodes a PHC argon2id string. Any malformation returns ok=false.
func parseDigest(digest string) (digestParams, bool) {
	var p digestParams

	parts := strings.Split(digest, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		return p, false
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil || version != argon2.Version {
		return p, false
	}

	var memory, time, threads uint32
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &time, &threads); err != nil {
		return p, false
	}
	// threads must fit in uint8 to avoid silent truncation
	if threads == 0 || threads > 255 {
		return p, false
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return p, false
	}
	hash, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return p, false
	}
	if len(hash) == 0 || len(hash) > 1<<10 {
		return p, false
	}

	p.memory = memory
	p.time = time
	p.threads = uint8(threads)
	p.salt = salt
	p.hash = hash
	p.keyLen = uint32(len(hash))
	return p, true
}

// DummyDigest is verified against when a login email is unknown, so the
// response time matches the known-email path. It never matches any password.
//
//nolint:gosec // G101: intentionally fake digest for timing uniformity, not a credential.
const DummyDigest = "$argon2id$v=19$m=65536,t=1,p=4$AAAAAAAAAAAAAAAAAAAAAA$AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"
