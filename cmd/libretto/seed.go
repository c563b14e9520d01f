// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Libretto Contributors

package main

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/libretto/libretto/internal/auth"
	"github.com/libretto/libretto/internal/catalog"
	"github.com/libretto/libretto/internal/store"
)

// Default timeout for the seed command.
const defaultSeedTimeout = 30 * time.Second

// seedGenres is the starting genre taxonomy. Creating an existing genre
// is skipped, so reseeding is safe.
var seedGenres = []string{
	"Fiction",
	"Non-fiction",
	"Science Fiction",
	"Fantasy",
	"Satire",
	"Poetry",
}

// seedConfig holds configuration for the seed command.
type seedConfig struct {
	timeout       time.Duration
	adminEmail    string
	adminPassword string
}

// NewSeedCmd creates the seed subcommand.
func NewSeedCmd() *cobra.Command {
	cfg := &seedConfig{}

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Seed the database with an admin account and genres",
		Long: `Creates the initial admin account and the starting genre taxonomy.
This command is idempotent - it will not create duplicates if run multiple times.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSeed(cmd, cfg)
		},
	}

	cmd.Flags().DurationVar(&cfg.timeout, "timeout", defaultSeedTimeout, "timeout for database operations (e.g., 30s, 1m)")
	cmd.Flags().StringVar(&cfg.adminEmail, "admin-email", "admin@libretto.local", "email for the admin account")
	cmd.Flags().StringVar(&cfg.adminPassword, "admin-password", "", "password for the admin account (required)")

	return cmd
}

func runSeed(cmd *cobra.Command, cfg *seedConfig) error {
	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		return oops.Code("CONFIG_INVALID").Errorf("DATABASE_URL environment variable is required")
	}
	if cfg.adminPassword == "" {
		return oops.Code("CONFIG_INVALID").Errorf("--admin-password is required")
	}
	if len(cfg.adminPassword) < auth.MinPasswordLength {
		return oops.Code("CONFIG_INVALID").Errorf("admin password must be at least %d characters", auth.MinPasswordLength)
	}

	// Use cmd.Context() so SIGINT/SIGTERM interrupt the seed.
	ctx, cancel := context.WithTimeout(cmd.Context(), cfg.timeout)
	defer cancel()

	cmd.Println("Connecting to database...")
	pool, err := store.NewPool(ctx, databaseURL)
	if err != nil {
		return oops.Code("DB_CONNECT_FAILED").With("operation", "connect to database").Wrap(err)
	}
	defer pool.Close()

	if err := seedAdmin(ctx, cmd, store.NewPostgresUserRepository(pool), cfg); err != nil {
		return err
	}
	if err := seedGenreRows(ctx, cmd, store.NewPostgresGenreRepository(pool)); err != nil {
		return err
	}

	cmd.Println("Seeding complete!")
	return nil
}

func seedAdmin(ctx context.Context, cmd *cobra.Command, users auth.UserRepository, cfg *seedConfig) error {
	digest, err := auth.NewArgon2idHasher().Hash(cfg.adminPassword)
	if err != nil {
		return oops.Code("SEED_FAILED").With("operation", "hash admin password").Wrap(err)
	}

	now := time.Now().UTC()
	admin := &auth.User{
		ID:           uuid.New(),
		FirstName:    "Libretto",
		LastName:     "Admin",
		Email:        cfg.adminEmail,
		PasswordHash: digest,
		Verified:     true,
		Role:         auth.RoleAdmin,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := users.Create(ctx, admin); err != nil {
		if errors.Is(err, auth.ErrDuplicateEmail) {
			cmd.Println("Admin account already exists, skipping")
			return nil
		}
		return oops.Code("SEED_FAILED").With("operation", "create admin account").Wrap(err)
	}

	cmd.Println("Created admin account:", cfg.adminEmail)
	return nil
}

func seedGenreRows(ctx context.Context, cmd *cobra.Command, genres catalog.GenreRepository) error {
	created := 0
	for _, name := range seedGenres {
		genre, err := catalog.NewGenre(catalog.GenreInput{Name: name}, time.Now().UTC())
		if err != nil {
			return oops.Code("SEED_FAILED").With("genre", name).Wrap(err)
		}
		if err := genres.Create(ctx, genre); err != nil {
			if errors.Is(err, store.ErrDuplicate) {
				continue
			}
			return oops.Code("SEED_FAILED").With("operation", "create genre").With("genre", name).Wrap(err)
		}
		created++
	}

	cmd.Printf("Created %d genre(s), %d already present\n", created, len(seedGenres)-created)
	return nil
}
