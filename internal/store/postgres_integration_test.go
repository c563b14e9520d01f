// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Libretto Contributors

//go:build integration

package store_test

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/libretto/libretto/internal/auth"
	"github.com/libretto/libretto/internal/catalog"
	"github.com/libretto/libretto/internal/store"
)

// setupPostgresContainer starts a PostgreSQL container, runs the
// migrations, and hands back a connected pool.
func setupPostgresContainer() (*pgxpool.Pool, func(), error) {
	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("libretto_test"),
		postgres.WithUsername("libretto"),
		postgres.WithPassword("libretto"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		return nil, nil, err
	}

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		return nil, nil, err
	}

	migrator, err := store.NewMigrator(connStr)
	if err != nil {
		return nil, nil, err
	}
	if err := migrator.Up(); err != nil {
		return nil, nil, err
	}
	if err := migrator.Close(); err != nil {
		return nil, nil, err
	}

	pool, err := store.NewPool(ctx, connStr)
	if err != nil {
		return nil, nil, err
	}

	cleanup := func() {
		pool.Close()
		_ = container.Terminate(ctx)
	}

	return pool, cleanup, nil
}

var _ = Describe("Postgres repositories", func() {
	var pool *pgxpool.Pool
	var cleanup func()
	var users *store.PostgresUserRepository
	var genres *store.PostgresGenreRepository
	var books *store.PostgresBookRepository

	BeforeEach(func() {
		var err error
		pool, cleanup, err = setupPostgresContainer()
		Expect(err).NotTo(HaveOccurred())
		users = store.NewPostgresUserRepository(pool)
		genres = store.NewPostgresGenreRepository(pool)
		books = store.NewPostgresBookRepository(pool)
	})

	AfterEach(func() {
		cleanup()
	})

	newUser := func(email string) *auth.User {
		now := time.Now().UTC()
		return &auth.User{
			ID:           uuid.New(),
			FirstName:    "Anna",
			LastName:     "Karenina",
			Age:          28,
			Email:        email,
			PasswordHash: "digest",
			Role:         auth.RoleUser,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
	}

	Describe("UserRepository", func() {
		It("round-trips a user by id and email", func() {
			ctx := context.Background()
			user := newUser("anna@example.com")

			Expect(users.Create(ctx, user)).To(Succeed())

			byID, err := users.GetByID(ctx, user.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(byID.Email).To(Equal("anna@example.com"))

			byEmail, err := users.GetByEmail(ctx, "ANNA@EXAMPLE.COM")
			Expect(err).NotTo(HaveOccurred())
			Expect(byEmail.ID).To(Equal(user.ID))
		})

		It("rejects duplicate emails case-insensitively", func() {
			ctx := context.Background()
			Expect(users.Create(ctx, newUser("anna@example.com"))).To(Succeed())

			err := users.Create(ctx, newUser("Anna@Example.com"))
			Expect(errors.Is(err, auth.ErrDuplicateEmail)).To(BeTrue())
		})
	})

	Describe("GenreRepository", func() {
		It("creates and lists genres", func() {
			ctx := context.Background()
			satire, err := catalog.NewGenre(catalog.GenreInput{Name: "Satire"}, time.Now().UTC())
			Expect(err).NotTo(HaveOccurred())
			Expect(genres.Create(ctx, satire)).To(Succeed())

			all, err := genres.List(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(all).To(HaveLen(1))
			Expect(all[0].Name).To(Equal("Satire"))
		})

		It("rejects duplicate names", func() {
			ctx := context.Background()
			first, _ := catalog.NewGenre(catalog.GenreInput{Name: "Satire"}, time.Now().UTC())
			second, _ := catalog.NewGenre(catalog.GenreInput{Name: "Satire"}, time.Now().UTC())
			Expect(genres.Create(ctx, first)).To(Succeed())

			err := genres.Create(ctx, second)
			Expect(errors.Is(err, store.ErrDuplicate)).To(BeTrue())
		})
	})

	Describe("BookRepository", func() {
		var author *auth.User
		var genre *catalog.Genre

		BeforeEach(func() {
			ctx := context.Background()
			author = newUser("author@example.com")
			Expect(users.Create(ctx, author)).To(Succeed())
			var err error
			genre, err = catalog.NewGenre(catalog.GenreInput{Name: "Satire"}, time.Now().UTC())
			Expect(err).NotTo(HaveOccurred())
			Expect(genres.Create(ctx, genre)).To(Succeed())
		})

		newBook := func(isbn string) *catalog.Book {
			book, err := catalog.NewBook(catalog.CreateBookInput{
				Title:   "The Master and Margarita",
				Price:   24.99,
				ISBN:    isbn,
				GenreID: genre.ID,
			}, author.ID, time.Now().UTC())
			Expect(err).NotTo(HaveOccurred())
			return book
		}

		It("round-trips create, get, list, update, delete", func() {
			ctx := context.Background()
			book := newBook("9780141180144")
			Expect(books.Create(ctx, book)).To(Succeed())

			got, err := books.GetByID(ctx, book.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.ISBN).To(Equal("9780141180144"))

			all, err := books.List(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(all).To(HaveLen(1))

			title := "Heart of a Dog"
			updated, err := books.Update(ctx, book.ID, catalog.UpdateBookInput{Title: &title})
			Expect(err).NotTo(HaveOccurred())
			Expect(updated.Title).To(Equal(title))
			Expect(updated.ISBN).To(Equal(book.ISBN))

			Expect(books.Delete(ctx, book.ID)).To(Succeed())
			_, err = books.GetByID(ctx, book.ID)
			Expect(errors.Is(err, auth.ErrNotFound)).To(BeTrue())
		})

		It("rejects duplicate isbn", func() {
			ctx := context.Background()
			Expect(books.Create(ctx, newBook("9780141180144"))).To(Succeed())

			err := books.Create(ctx, newBook("9780141180144"))
			Expect(errors.Is(err, store.ErrDuplicate)).To(BeTrue())
		})

		It("reports not found on update and delete of unknown id", func() {
			ctx := context.Background()
			title := "anything"
			_, err := books.Update(ctx, newBook("9780141180144").ID, catalog.UpdateBookInput{Title: &title})
			Expect(errors.Is(err, auth.ErrNotFound)).To(BeTrue())

			err = books.Delete(ctx, newBook("9780679760801").ID)
			Expect(errors.Is(err, auth.ErrNotFound)).To(BeTrue())
		})
	})
})
