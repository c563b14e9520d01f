// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Libretto Contributors

// Package catalog defines the bookstore catalog: books, genres, and the
// validation rules their write operations enforce. Storage lives in
// internal/store; HTTP shaping lives in internal/httpapi.
package catalog

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/samber/oops"
)

// ISBNLength is the number of characters an ISBN must have (ISBN-13).
const ISBNLength = 13

// Book is a catalog entry. AuthorID references the user who created it.
type Book struct {
	ID              uuid.UUID
	Title           string
	Description     *string
	AuthorID        uuid.UUID
	GenreID         uuid.UUID
	PublicationYear *int
	ISBN            string
	CoverImage      *string
	Price           float64
	Discount        float64
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// DiscountedPrice applies the percentage discount to the list price.
func (b *Book) DiscountedPrice() float64 {
	return b.Price * (1 - b.Discount/100)
}

// CreateBookInput carries the fields a client supplies when creating a
// book. AuthorID and publication year are filled in server-side.
type CreateBookInput struct {
	Title       string    `json:"title"`
	Description *string   `json:"description,omitempty"`
	Price       float64   `json:"price"`
	ISBN        string    `json:"isbn"`
	Discount    float64   `json:"discount,omitempty"`
	GenreID     uuid.UUID `json:"genre_id"`
	CoverImage  string    `json:"cover_image"`
}

// Validate checks the input against the catalog rules.
func (in CreateBookInput) Validate() error {
	errb := oops.Code("CATALOG_INVALID_INPUT").With("entity", "book")
	if in.Title == "" {
		return errb.Errorf("title is required")
	}
	if len(in.ISBN) != ISBNLength {
		return errb.Errorf("isbn must be exactly %d characters", ISBNLength)
	}
	if in.Price < 0 {
		return errb.Errorf("price must not be negative")
	}
	if in.Discount < 0 || in.Discount > 100 {
		return errb.Errorf("discount must be between 0 and 100")
	}
	if in.GenreID == uuid.Nil {
		return errb.Errorf("genre_id is required")
	}
	return nil
}

// UpdateBookInput carries a partial update. Nil fields keep their
// current values.
type UpdateBookInput struct {
	Title       *string  `json:"title,omitempty"`
	Description *string  `json:"description,omitempty"`
	CoverImage  *string  `json:"cover_image,omitempty"`
	Price       *float64 `json:"price,omitempty"`
	Discount    *float64 `json:"discount,omitempty"`
}

// Validate checks only the fields present in the update.
func (in UpdateBookInput) Validate() error {
	errb := oops.Code("CATALOG_INVALID_INPUT").With("entity", "book")
	if in.Title != nil && *in.Title == "" {
		return errb.Errorf("title must not be empty")
	}
	if in.Price != nil && *in.Price < 0 {
		return errb.Errorf("price must not be negative")
	}
	if in.Discount != nil && (*in.Discount < 0 || *in.Discount > 100) {
		return errb.Errorf("discount must be between 0 and 100")
	}
	return nil
}

// BookRepository provides book persistence.
type BookRepository interface {
	Create(ctx context.Context, book *Book) error
	GetByID(ctx context.Context, id uuid.UUID) (*Book, error)
	List(ctx context.Context) ([]Book, error)
	// Update applies the non-nil fields of in to the stored book and
	// returns the updated row, or auth.ErrNotFound for an unknown id.
	Update(ctx context.Context, id uuid.UUID, in UpdateBookInput) (*Book, error)
	// Delete returns auth.ErrNotFound when no row matched.
	Delete(ctx context.Context, id uuid.UUID) error
}

// NewBook builds a Book from validated input. The publication year is
// stamped server-side from now; clients never set it.
func NewBook(in CreateBookInput, authorID uuid.UUID, now time.Time) (*Book, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	if authorID == uuid.Nil {
		return nil, oops.Code("CATALOG_INVALID_INPUT").Errorf("author id is required")
	}
	year := now.Year()
	book := &Book{
		ID:              uuid.New(),
		Title:           in.Title,
		Description:     in.Description,
		AuthorID:        authorID,
		GenreID:         in.GenreID,
		PublicationYear: &year,
		ISBN:            in.ISBN,
		Price:           in.Price,
		Discount:        in.Discount,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if in.CoverImage != "" {
		book.CoverImage = &in.CoverImage
	}
	return book, nil
}
