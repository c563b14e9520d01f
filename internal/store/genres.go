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
	"github.com/libretto/libretto/internal/catalog"
)

// PostgresGenreRepository implements catalog.GenreRepository using PostgreSQL.
type PostgresGenreRepository struct {
	pool poolIface
}

// NewPostgresGenreRepository creates a new PostgreSQL genre repository.
func NewPostgresGenreRepository(pool poolIface) *PostgresGenreRepository {
	return &PostgresGenreRepository{pool: pool}
}

// Create persists a new genre. A duplicate name comes back as ErrDuplicate.
func (r *PostgresGenreRepository) Create(ctx context.Context, genre *catalog.Genre) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO genres (id, name, description, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		genre.ID.String(), genre.Name, genre.Description, genre.CreatedAt, genre.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return oops.Code("GENRE_DUPLICATE_NAME").
				With("name", genre.Name).
				Wrap(ErrDuplicate)
		}
		return oops.Code("GENRE_CREATE_FAILED").With("id", genre.ID.String()).Wrap(err)
	}
	return nil
}

// GetByID retrieves a genre by id.
func (r *PostgresGenreRepository) GetByID(ctx context.Context, id uuid.UUID) (*catalog.Genre, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, name, description, created_at, updated_at FROM genres WHERE id = $1`,
		id.String())
	genre, err := scanGenre(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("GENRE_NOT_FOUND").
			With("id", id.String()).
			Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("GENRE_GET_FAILED").With("id", id.String()).Wrap(err)
	}
	return genre, nil
}

// List returns all genres.
func (r *PostgresGenreRepository) List(ctx context.Context) ([]catalog.Genre, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, name, description, created_at, updated_at FROM genres ORDER BY name`)
	if err != nil {
		return nil, oops.Code("GENRE_LIST_FAILED").With("operation", "list genres").Wrap(err)
	}
	defer rows.Close()

	var genres []catalog.Genre
	for rows.Next() {
		genre, err := scanGenre(rows)
		if err != nil {
			return nil, oops.Code("GENRE_LIST_FAILED").With("operation", "scan genre row").Wrap(err)
		}
		genres = append(genres, *genre)
	}
	if err := rows.Err(); err != nil {
		return nil, oops.Code("GENRE_LIST_FAILED").With("operation", "iterate genres").Wrap(err)
	}
	return genres, nil
}

func scanGenre(row pgx.Row) (*catalog.Genre, error) {
	var genre catalog.Genre
	var idStr string
	if err := row.Scan(&idStr, &genre.Name, &genre.Description,
		&genre.CreatedAt, &genre.UpdatedAt); err != nil {
		return nil, err
	}
	id, err := uuid.Parse(idStr)
	if err != nil {
		return nil, oops.Code("GENRE_CORRUPT_ID").With("id", idStr).Wrap(err)
	}
	genre.ID = id
	return &genre, nil
}
