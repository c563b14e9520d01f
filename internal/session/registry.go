// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Libretto Contributors

// Package session implements the session registry on Redis. Each entry
// maps a session id to a user id and lives exactly as long as the token
// that carries the id; Redis enforces the TTL, nothing here scans or
// evicts.
package session

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/samber/oops"

	"github.com/libretto/libretto/internal/auth"
)

// RedisRegistry implements auth.SessionRegistry using Redis.
type RedisRegistry struct {
	client *redis.Client
}

// NewRedisRegistry creates a RedisRegistry on an existing client.
func NewRedisRegistry(client *redis.Client) *RedisRegistry {
	return &RedisRegistry{client: client}
}

// Put registers a session with the given TTL. Re-registering an id
// overwrites the previous entry.
func (r *RedisRegistry) Put(ctx context.Context, sessionID, userID uuid.UUID, ttl time.Duration) error {
	if err := r.client.Set(ctx, sessionID.String(), userID.String(), ttl).Err(); err != nil {
		return oops.Code("SESSION_PUT_FAILED").
			With("operation", "set session").
			Wrap(err)
	}
	return nil
}

// Get resolves a session id to the user id it was registered for.
// Expired and explicitly deleted entries are equally absent: both come
// back as auth.ErrNotFound.
func (r *RedisRegistry) Get(ctx context.Context, sessionID uuid.UUID) (uuid.UUID, error) {
	value, err := r.client.Get(ctx, sessionID.String()).Result()
	if errors.Is(err, redis.Nil) {
		return uuid.Nil, oops.Code("SESSION_NOT_FOUND").
			With("session_id", sessionID.String()).
			Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return uuid.Nil, oops.Code("SESSION_GET_FAILED").
			With("operation", "get session").
			Wrap(err)
	}

	userID, err := uuid.Parse(value)
	if err != nil {
		return uuid.Nil, oops.Code("SESSION_CORRUPT").
			With("session_id", sessionID.String()).
			Wrap(err)
	}
	return userID, nil
}

// Delete removes the given sessions in a single DEL. Redis ignores
// absent keys, which is what makes logout idempotent in effect.
func (r *RedisRegistry) Delete(ctx context.Context, sessionIDs ...uuid.UUID) error {
	if len(sessionIDs) == 0 {
		return nil
	}
	keys := make([]string, len(sessionIDs))
	for i, id := range sessionIDs {
		keys[i] = id.String()
	}
	if err := r.client.Del(ctx, keys...).Err(); err != nil {
		return oops.Code("SESSION_DELETE_FAILED").
			With("operation", "delete sessions").
			Wrap(err)
	}
	return nil
}
