// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Libretto Contributors

package catalog

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/samber/oops"
)

// Genre is a catalog taxonomy entry with a unique name.
type Genre struct {
	ID          uuid.UUID
	Name        string
	Description *string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// GenreInput carries the fields a client supplies when creating a genre.
type GenreInput struct {
	Name        string  `json:"name"`
	Description *string `json:"description,omitempty"`
}

// Validate checks the input against the catalog rules.
func (in GenreInput) Validate() error {
	if in.Name == "" {
		return oops.Code("CATALOG_INVALID_INPUT").
			With("entity", "genre").
			Errorf("name is required")
	}
	return nil
}

// GenreRepository provides genre persistence.
type GenreRepository interface {
	Create(ctx context.Context, genre *Genre) error
	GetByID(ctx context.Context, id uuid.UUID) (*Genre, error)
	List(ctx context.Context) ([]Genre, error)
}

// NewGenre builds a Genre from validated input.
func NewGenre(in GenreInput, now time.Time) (*Genre, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	return &Genre{
		ID:          uuid.New(),
		Name:        in.Name,
		Description: in.Description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}
