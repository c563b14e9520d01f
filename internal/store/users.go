// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Libretto Contributors

package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/samber/oops"

	"github.com/libretto/libretto/internal/auth"
)

// PostgresUserRepository implements auth.UserRepository using PostgreSQL.
type PostgresUserRepository struct {
	pool poolIface
}

// NewPostgresUserRepository creates a new PostgreSQL user repository.
func NewPostgresUserRepository(pool poolIface) *PostgresUserRepository {
	return &PostgresUserRepository{pool: pool}
}

const userColumns = `id, first_name, last_name, middle_name, age, email, password_hash,
	biography, file, verified, role, balance, rating, created_at, updated_at`

// Create persists a new user. A duplicate email comes back as
// auth.ErrDuplicateEmail.
func (r *PostgresUserRepository) Create(ctx context.Context, user *auth.User) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO users (id, first_name, last_name, middle_name, age, email, password_hash,
		 biography, file, verified, role, balance, rating, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		user.ID.String(), user.FirstName, user.LastName, user.MiddleName, user.Age,
		user.Email, user.PasswordHash, user.Biography, user.File, user.Verified,
		string(user.Role), user.Balance, user.Rating, user.CreatedAt, user.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return oops.Code("USER_DUPLICATE_EMAIL").
				With("email", user.Email).
				Wrap(auth.ErrDuplicateEmail)
		}
		return oops.Code("USER_CREATE_FAILED").With("id", user.ID.String()).Wrap(err)
	}
	return nil
}

// GetByID retrieves a user by id.
func (r *PostgresUserRepository) GetByID(ctx context.Context, id uuid.UUID) (*auth.User, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id.String())
	user, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("USER_NOT_FOUND").
			With("id", id.String()).
			Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("USER_GET_FAILED").With("id", id.String()).Wrap(err)
	}
	return user, nil
}

// GetByEmail retrieves a user by email, matched case-insensitively.
func (r *PostgresUserRepository) GetByEmail(ctx context.Context, email string) (*auth.User, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE LOWER(email) = LOWER($1)`, email)
	user, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("USER_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("USER_GET_FAILED").With("operation", "get user by email").Wrap(err)
	}
	return user, nil
}

func scanUser(row pgx.Row) (*auth.User, error) {
	var user auth.User
	var idStr, roleStr string
	if err := row.Scan(&idStr, &user.FirstName, &user.LastName, &user.MiddleName,
		&user.Age, &user.Email, &user.PasswordHash, &user.Biography, &user.File,
		&user.Verified, &roleStr, &user.Balance, &user.Rating,
		&user.CreatedAt, &user.UpdatedAt); err != nil {
		return nil, err
	}
	id, err := uuid.Parse(idStr)
	if err != nil {
		return nil, oops.Code("USER_CORRUPT_ID").With("id", idStr).Wrap(err)
	}
	user.ID = id
	user.Role = auth.Role(roleStr)
	return &user, nil
}
