// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Libretto Contributors

package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/samber/oops"

	"github.com/libretto/libretto/internal/auth"
	"github.com/libretto/libretto/internal/catalog"
)

// PostgresBookRepository implements catalog.BookRepository using PostgreSQL.
type PostgresBookRepository struct {
	pool poolIface
}

// NewPostgresBookRepository creates a new PostgreSQL book repository.
func NewPostgresBookRepository(pool poolIface) *PostgresBookRepository {
	return &PostgresBookRepository{pool: pool}
}

const bookColumns = `id, title, description, author_id, genre_id, publication_year,
	isbn, cover_image, price, discount, created_at, updated_at`

// Create persists a new book. A duplicate isbn comes back as ErrDuplicate.
func (r *PostgresBookRepository) Create(ctx context.Context, book *catalog.Book) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO books (id, title, description, author_id, genre_id, publication_year,
		 isbn, cover_image, price, discount, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		book.ID.String(), book.Title, book.Description, book.AuthorID.String(),
		book.GenreID.String(), book.PublicationYear, book.ISBN, book.CoverImage,
		book.Price, book.Discount, book.CreatedAt, book.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return oops.Code("BOOK_DUPLICATE_ISBN").
				With("isbn", book.ISBN).
				Wrap(ErrDuplicate)
		}
		return oops.Code("BOOK_CREATE_FAILED").With("id", book.ID.String()).Wrap(err)
	}
	return nil
}

// GetByID retrieves a book by id.
func (r *PostgresBookRepository) GetByID(ctx context.Context, id uuid.UUID) (*catalog.Book, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+bookColumns+` FROM books WHERE id = $1`, id.String())
	book, err := scanBook(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("BOOK_NOT_FOUND").
			With("id", id.String()).
			Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("BOOK_GET_FAILED").With("id", id.String()).Wrap(err)
	}
	return book, nil
}

// List returns all books.
func (r *PostgresBookRepository) List(ctx context.Context) ([]catalog.Book, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+bookColumns+` FROM books ORDER BY created_at`)
	if err != nil {
		return nil, oops.Code("BOOK_LIST_FAILED").With("operation", "list books").Wrap(err)
	}
	defer rows.Close()

	var books []catalog.Book
	for rows.Next() {
		book, err := scanBook(rows)
		if err != nil {
			return nil, oops.Code("BOOK_LIST_FAILED").With("operation", "scan book row").Wrap(err)
		}
		books = append(books, *book)
	}
	if err := rows.Err(); err != nil {
		return nil, oops.Code("BOOK_LIST_FAILED").With("operation", "iterate books").Wrap(err)
	}
	return books, nil
}

// Update applies the non-nil fields of in and returns the updated row.
// Absent rows come back as auth.ErrNotFound.
func (r *PostgresBookRepository) Update(ctx context.Context, id uuid.UUID, in catalog.UpdateBookInput) (*catalog.Book, error) {
	row := r.pool.QueryRow(ctx,
		`UPDATE books SET
			title = COALESCE($1, title),
			description = COALESCE($2, description),
			cover_image = COALESCE($3, cover_image),
			price = COALESCE($4, price),
			discount = COALESCE($5, discount),
			updated_at = $6
		 WHERE id = $7
		 RETURNING `+bookColumns,
		in.Title, in.Description, in.CoverImage, in.Price, in.Discount,
		time.Now().UTC(), id.String())
	book, err := scanBook(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("BOOK_NOT_FOUND").
			With("id", id.String()).
			Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("BOOK_UPDATE_FAILED").With("id", id.String()).Wrap(err)
	}
	return book, nil
}

// Delete removes a book. Absent rows come back as auth.ErrNotFound.
func (r *PostgresBookRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM books WHERE id = $1`, id.String())
	if err != nil {
		return oops.Code("BOOK_DELETE_FAILED").With("id", id.String()).Wrap(err)
	}
	if tag.RowsAffected() == 0 {
		return oops.Code("BOOK_NOT_FOUND").
			With("id", id.String()).
			Wrap(auth.ErrNotFound)
	}
	return nil
}

func scanBook(row pgx.Row) (*catalog.Book, error) {
	var book catalog.Book
	var idStr, authorStr, genreStr string
	if err := row.Scan(&idStr, &book.Title, &book.Description, &authorStr, &genreStr,
		&book.PublicationYear, &book.ISBN, &book.CoverImage, &book.Price,
		&book.Discount, &book.CreatedAt, &book.UpdatedAt); err != nil {
		return nil, err
	}

	id, err := uuid.Parse(idStr)
	if err != nil {
		return nil, oops.Code("BOOK_CORRUPT_ID").With("id", idStr).Wrap(err)
	}
	book.ID = id
	if book.AuthorID, err = uuid.Parse(authorStr); err != nil {
		return nil, oops.Code("BOOK_CORRUPT_ID").With("author_id", authorStr).Wrap(err)
	}
	if book.GenreID, err = uuid.Parse(genreStr); err != nil {
		return nil, oops.Code("BOOK_CORRUPT_ID").With("genre_id", genreStr).Wrap(err)
	}
	return &book, nil
}
