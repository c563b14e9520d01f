// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Libretto Contributors

package httpapi

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/libretto/libretto/internal/catalog"
)

type genreResponse struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Description *string   `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func newGenreResponse(g *catalog.Genre) genreResponse {
	return genreResponse{
		ID:          g.ID,
		Name:        g.Name,
		Description: g.Description,
		CreatedAt:   g.CreatedAt,
		UpdatedAt:   g.UpdatedAt,
	}
}

// handleListGenres returns every genre. Public, uncached: the genre
// table is tiny and changes rarely.
func (s *Server) handleListGenres(w http.ResponseWriter, r *http.Request) {
	genres, err := s.genres.List(r.Context())
	if err != nil {
		writeServiceError(s.logger, w, err)
		return
	}

	out := make([]genreResponse, len(genres))
	for i := range genres {
		out[i] = newGenreResponse(&genres[i])
	}
	writeSuccess(w, http.StatusOK, out, "Genres fetched successfully")
}

// handleCreateGenre creates a genre. Admin only.
func (s *Server) handleCreateGenre(w http.ResponseWriter, r *http.Request) {
	var in catalog.GenreInput
	if err := decodeRequest(r, "genre_create", &in); err != nil {
		writeServiceError(s.logger, w, err)
		return
	}

	genre, err := catalog.NewGenre(in, time.Now().UTC())
	if err != nil {
		writeServiceError(s.logger, w, err)
		return
	}

	if err := s.genres.Create(r.Context(), genre); err != nil {
		writeServiceError(s.logger, w, err)
		return
	}

	writeSuccess(w, http.StatusCreated, newGenreResponse(genre), "Genre created successfully")
}
