// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Libretto Contributors

package httpapi_test

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/samber/oops"

	"github.com/libretto/libretto/internal/auth"
	"github.com/libretto/libretto/internal/catalog"
	"github.com/libretto/libretto/internal/store"
)

// memUserRepo is an in-memory auth.UserRepository for handler tests.
type memUserRepo struct {
	mu    sync.Mutex
	users map[uuid.UUID]*auth.User
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{users: map[uuid.UUID]*auth.User{}}
}

func (r *memUserRepo) Create(_ context.Context, user *auth.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if strings.EqualFold(u.Email, user.Email) {
			return oops.Code("USER_DUPLICATE_EMAIL").Wrap(auth.ErrDuplicateEmail)
		}
	}
	clone := *user
	r.users[user.ID] = &clone
	return nil
}

func (r *memUserRepo) GetByID(_ context.Context, id uuid.UUID) (*auth.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, oops.Code("USER_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	clone := *u
	return &clone, nil
}

func (r *memUserRepo) GetByEmail(_ context.Context, email string) (*auth.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if strings.EqualFold(u.Email, email) {
			clone := *u
			return &clone, nil
		}
	}
	return nil, oops.Code("USER_NOT_FOUND").Wrap(auth.ErrNotFound)
}

// setRole rewrites a stored user's role, bypassing the registration
// default.
func (r *memUserRepo) setRole(id uuid.UUID, role auth.Role) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.users[id]; ok {
		u.Role = role
	}
}

// delete removes a user entirely, for unknown-user gate tests.
func (r *memUserRepo) delete(id uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.users, id)
}

// memBookRepo is an in-memory catalog.BookRepository.
type memBookRepo struct {
	mu    sync.Mutex
	order []uuid.UUID
	books map[uuid.UUID]*catalog.Book
}

func newMemBookRepo() *memBookRepo {
	return &memBookRepo{books: map[uuid.UUID]*catalog.Book{}}
}

func (r *memBookRepo) Create(_ context.Context, book *catalog.Book) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, b := range r.books {
		if b.ISBN == book.ISBN {
			return oops.Code("BOOK_DUPLICATE_ISBN").Wrap(store.ErrDuplicate)
		}
	}
	clone := *book
	r.books[book.ID] = &clone
	r.order = append(r.order, book.ID)
	return nil
}

func (r *memBookRepo) GetByID(_ context.Context, id uuid.UUID) (*catalog.Book, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.books[id]
	if !ok {
		return nil, oops.Code("BOOK_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	clone := *b
	return &clone, nil
}

func (r *memBookRepo) List(_ context.Context) ([]catalog.Book, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]catalog.Book, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, *r.books[id])
	}
	return out, nil
}

func (r *memBookRepo) Update(_ context.Context, id uuid.UUID, in catalog.UpdateBookInput) (*catalog.Book, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.books[id]
	if !ok {
		return nil, oops.Code("BOOK_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	if in.Title != nil {
		b.Title = *in.Title
	}
	if in.Description != nil {
		b.Description = in.Description
	}
	if in.CoverImage != nil {
		b.CoverImage = in.CoverImage
	}
	if in.Price != nil {
		b.Price = *in.Price
	}
	if in.Discount != nil {
		b.Discount = *in.Discount
	}
	clone := *b
	return &clone, nil
}

func (r *memBookRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.books[id]; !ok {
		return oops.Code("BOOK_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	delete(r.books, id)
	for i, oid := range r.order {
		if oid == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return nil
}

// add inserts a book directly, bypassing the API, for cache tests.
func (r *memBookRepo) add(book *catalog.Book) {
	r.mu.Lock()
	defer r.mu.Unlock()
	clone := *book
	r.books[book.ID] = &clone
	r.order = append(r.order, book.ID)
}

// memGenreRepo is an in-memory catalog.GenreRepository.
type memGenreRepo struct {
	mu     sync.Mutex
	order  []uuid.UUID
	genres map[uuid.UUID]*catalog.Genre
}

func newMemGenreRepo() *memGenreRepo {
	return &memGenreRepo{genres: map[uuid.UUID]*catalog.Genre{}}
}

func (r *memGenreRepo) Create(_ context.Context, genre *catalog.Genre) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, g := range r.genres {
		if g.Name == genre.Name {
			return oops.Code("GENRE_DUPLICATE_NAME").Wrap(store.ErrDuplicate)
		}
	}
	clone := *genre
	r.genres[genre.ID] = &clone
	r.order = append(r.order, genre.ID)
	return nil
}

func (r *memGenreRepo) GetByID(_ context.Context, id uuid.UUID) (*catalog.Genre, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	g, ok := r.genres[id]
	if !ok {
		return nil, oops.Code("GENRE_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	clone := *g
	return &clone, nil
}

func (r *memGenreRepo) List(_ context.Context) ([]catalog.Genre, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]catalog.Genre, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, *r.genres[id])
	}
	return out, nil
}
