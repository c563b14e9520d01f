// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Libretto Contributors

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/libretto/libretto/internal/store"
)

// DependencyStatus holds the reachability report for one dependency.
type DependencyStatus struct {
	Name      string `json:"name"`
	Reachable bool   `json:"reachable"`
	Detail    string `json:"detail,omitempty"`
	Error     string `json:"error,omitempty"`
}

// statusConfig holds configuration for the status command.
type statusConfig struct {
	jsonOutput bool
	timeout    time.Duration
}

// NewStatusCmd creates the status subcommand.
func NewStatusCmd() *cobra.Command {
	cfg := &statusConfig{}

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the status of the server's dependencies",
		Long:  `Check PostgreSQL (including migration state) and Redis reachability.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStatus(cmd, cfg)
		},
	}

	cmd.Flags().BoolVar(&cfg.jsonOutput, "json", false, "output status as JSON")
	cmd.Flags().DurationVar(&cfg.timeout, "timeout", 5*time.Second, "per-dependency timeout")

	return cmd
}

func runStatus(cmd *cobra.Command, cfg *statusConfig) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), cfg.timeout)
	defer cancel()

	statuses := []DependencyStatus{
		postgresStatus(ctx),
		redisStatus(ctx),
	}

	if cfg.jsonOutput {
		data, err := json.MarshalIndent(statuses, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal status: %w", err)
		}
		cmd.Println(string(data))
		return nil
	}

	cmd.Println(formatStatusTable(statuses))
	return nil
}

// postgresStatus pings the database and reports the migration version.
func postgresStatus(ctx context.Context) DependencyStatus {
	status := DependencyStatus{Name: "postgres"}

	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		status.Error = "DATABASE_URL not set"
		return status
	}

	pool, err := store.NewPool(ctx, databaseURL)
	if err != nil {
		status.Error = err.Error()
		return status
	}
	defer pool.Close()
	status.Reachable = true

	m, err := store.NewMigrator(databaseURL)
	if err != nil {
		status.Detail = "migration state unknown"
		return status
	}
	defer func() { _ = m.Close() }()

	version, dirty, err := m.Version()
	switch {
	case err != nil:
		status.Detail = "migration state unknown"
	case dirty:
		status.Detail = fmt.Sprintf("DIRTY at version %d", version)
	case version == 0:
		status.Detail = "no migrations applied"
	default:
		name, nameErr := store.MigrationName(version)
		if nameErr != nil {
			name = "unknown"
		}
		status.Detail = fmt.Sprintf("version %d (%s)", version, name)
	}
	return status
}

// redisStatus pings Redis.
func redisStatus(ctx context.Context) DependencyStatus {
	status := DependencyStatus{Name: "redis"}

	redisURL := os.Getenv("REDIS_URL")
	if redisURL == "" {
		status.Error = "REDIS_URL not set"
		return status
	}

	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		status.Error = err.Error()
		return status
	}
	client := redis.NewClient(opts)
	defer func() { _ = client.Close() }()

	if err := client.Ping(ctx).Err(); err != nil {
		status.Error = err.Error()
		return status
	}
	status.Reachable = true
	status.Detail = "pong"
	return status
}

// formatStatusTable formats the statuses as a human-readable table.
func formatStatusTable(statuses []DependencyStatus) string {
	var buf []byte
	w := tabwriter.NewWriter((*byteWriter)(&buf), 0, 0, 2, ' ', 0)

	_, _ = fmt.Fprintln(w, "DEPENDENCY\tSTATUS\tDETAIL")
	_, _ = fmt.Fprintln(w, "----------\t------\t------")

	for _, s := range statuses {
		if s.Reachable {
			_, _ = fmt.Fprintf(w, "%s\tok\t%s\n", s.Name, s.Detail)
		} else {
			_, _ = fmt.Fprintf(w, "%s\tunreachable\t%s\n", s.Name, s.Error)
		}
	}

	_ = w.Flush()
	return string(buf)
}

// byteWriter is a simple writer that appends to a byte slice.
type byteWriter []byte

func (w *byteWriter) Write(p []byte) (int, error) {
	*w = append(*w, p...)
	return len(p), nil
}
