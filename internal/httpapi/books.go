// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Libretto Contributors

package httpapi

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/samber/oops"

	"github.com/libretto/libretto/internal/catalog"
)

// createBookRequest is the creation body. GenreID travels as a string
// so the generated schema describes it as one.
type createBookRequest struct {
	Title       string  `json:"title"`
	Description *string `json:"description,omitempty"`
	Price       float64 `json:"price"`
	ISBN        string  `json:"isbn"`
	Discount    float64 `json:"discount,omitempty"`
	GenreID     string  `json:"genre_id"`
	CoverImage  string  `json:"cover_image"`
}

// bookResponse is the public view of a book. DiscountedPrice is derived
// at response time so clients never compute it themselves.
type bookResponse struct {
	ID              uuid.UUID `json:"id"`
	Title           string    `json:"title"`
	Description     *string   `json:"description,omitempty"`
	AuthorID        uuid.UUID `json:"author_id"`
	GenreID         uuid.UUID `json:"genre_id"`
	PublicationYear *int      `json:"publication_year,omitempty"`
	ISBN            string    `json:"isbn"`
	CoverImage      *string   `json:"cover_image,omitempty"`
	Price           float64   `json:"price"`
	Discount        float64   `json:"discount"`
	DiscountedPrice float64   `json:"discounted_price"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

func newBookResponse(b *catalog.Book) bookResponse {
	return bookResponse{
		ID:              b.ID,
		Title:           b.Title,
		Description:     b.Description,
		AuthorID:        b.AuthorID,
		GenreID:         b.GenreID,
		PublicationYear: b.PublicationYear,
		ISBN:            b.ISBN,
		CoverImage:      b.CoverImage,
		Price:           b.Price,
		Discount:        b.Discount,
		DiscountedPrice: b.DiscountedPrice(),
		CreatedAt:       b.CreatedAt,
		UpdatedAt:       b.UpdatedAt,
	}
}

func newBookListResponse(books []catalog.Book) []bookResponse {
	out := make([]bookResponse, len(books))
	for i := range books {
		out[i] = newBookResponse(&books[i])
	}
	return out
}

func bookCacheKey(id uuid.UUID) string {
	return bookCacheKeyPrefix + id.String()
}

// handleListBooks returns every book, cache first.
func (s *Server) handleListBooks(w http.ResponseWriter, r *http.Request) {
	var cached []bookResponse
	if s.cache.Get(r.Context(), booksCacheKey, &cached) {
		writeSuccess(w, http.StatusOK, cached, "Books fetched successfully")
		return
	}

	books, err := s.books.List(r.Context())
	if err != nil {
		writeServiceError(s.logger, w, err)
		return
	}

	resp := newBookListResponse(books)
	s.cache.Set(r.Context(), booksCacheKey, resp)
	writeSuccess(w, http.StatusOK, resp, "Books fetched successfully")
}

// handleGetBook returns one book by id, cache first.
func (s *Server) handleGetBook(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid book id")
		return
	}

	key := bookCacheKey(id)
	var cached bookResponse
	if s.cache.Get(r.Context(), key, &cached) {
		writeSuccess(w, http.StatusOK, cached, "Book fetched successfully")
		return
	}

	book, err := s.books.GetByID(r.Context(), id)
	if err != nil {
		writeServiceError(s.logger, w, err)
		return
	}

	resp := newBookResponse(book)
	s.cache.Set(r.Context(), key, resp)
	writeSuccess(w, http.StatusOK, resp, "Book fetched successfully")
}

// handleCreateBook creates a book authored by the caller.
func (s *Server) handleCreateBook(w http.ResponseWriter, r *http.Request) {
	principal, ok := PrincipalFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "You are not logged in, please provide token")
		return
	}

	var req createBookRequest
	if err := decodeRequest(r, "book_create", &req); err != nil {
		writeServiceError(s.logger, w, err)
		return
	}

	genreID, err := uuid.Parse(req.GenreID)
	if err != nil {
		writeServiceError(s.logger, w,
			oops.Code("CATALOG_INVALID_INPUT").With("field", "genre_id").Wrap(err))
		return
	}

	book, err := catalog.NewBook(catalog.CreateBookInput{
		Title:       req.Title,
		Description: req.Description,
		Price:       req.Price,
		ISBN:        req.ISBN,
		Discount:    req.Discount,
		GenreID:     genreID,
		CoverImage:  req.CoverImage,
	}, principal.User.ID, time.Now().UTC())
	if err != nil {
		writeServiceError(s.logger, w, err)
		return
	}

	if err := s.books.Create(r.Context(), book); err != nil {
		writeServiceError(s.logger, w, err)
		return
	}

	s.cache.Invalidate(r.Context(), booksCacheKey)
	writeSuccess(w, http.StatusCreated, newBookResponse(book), "Book created successfully")
}

// handleUpdateBook applies a partial update.
func (s *Server) handleUpdateBook(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid book id")
		return
	}

	var in catalog.UpdateBookInput
	if err := decodeRequest(r, "book_update", &in); err != nil {
		writeServiceError(s.logger, w, err)
		return
	}
	if err := in.Validate(); err != nil {
		writeServiceError(s.logger, w, err)
		return
	}

	book, err := s.books.Update(r.Context(), id, in)
	if err != nil {
		writeServiceError(s.logger, w, err)
		return
	}

	s.cache.Invalidate(r.Context(), booksCacheKey, bookCacheKey(id))
	writeSuccess(w, http.StatusOK, newBookResponse(book), "Book updated successfully")
}

// handleDeleteBook removes a book.
func (s *Server) handleDeleteBook(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid book id")
		return
	}

	if err := s.books.Delete(r.Context(), id); err != nil {
		writeServiceError(s.logger, w, err)
		return
	}

	s.cache.Invalidate(r.Context(), booksCacheKey, bookCacheKey(id))
	writeSuccess(w, http.StatusOK, nil, "Book deleted successfully")
}
