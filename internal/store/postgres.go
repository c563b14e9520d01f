// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Libretto Contributors

// Package store provides PostgreSQL persistence for users and the book
// catalog, plus schema migration management.
package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/oops"
)

// ErrDuplicate indicates a unique-constraint violation on a catalog
// entity (duplicate isbn or genre name). Duplicate user emails map to
// auth.ErrDuplicateEmail instead.
var ErrDuplicate = errors.New("duplicate entry")

// poolIface abstracts pgxpool.Pool so pgxmock can stand in for tests.
type poolIface interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// NewPool connects a pgx pool and verifies the connection with a ping.
func NewPool(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, oops.Code("STORE_CONNECT_FAILED").With("operation", "create pool").Wrap(err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, oops.Code("STORE_CONNECT_FAILED").With("operation", "ping").Wrap(err)
	}
	return pool, nil
}
