// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Libretto Contributors

package main

import (
	"github.com/spf13/cobra"
)

// Global flags available to all subcommands.
var configFile string

// NewRootCmd creates the root command for the Libretto CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "libretto",
		Short: "Libretto - a bookstore REST backend",
		Long: `Libretto is a bookstore REST backend with session-revoking JWT
authentication, a PostgreSQL catalog, and a Redis session registry.`,
	}

	// Global flag for config file path
	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path")

	// Add subcommands
	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewMigrateCmd())
	cmd.AddCommand(NewSeedCmd())
	cmd.AddCommand(NewStatusCmd())

	return cmd
}
