// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Storeloft Contributors

package main

import (
	"github.com/spf13/cobra"
)

// Global flags available to all subcommands.
var configFile string

// NewRootCmd creates the root command for the Storeloft CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "storeloft",
		Short: "Storeloft - a multi-tenant storefront platform",
		Long: `Storeloft is a multi-tenant storefront platform with a sandboxed
plugin extension runtime: merchants install catalog plugins, configure them,
and serve their widgets on public storefront profiles.`,
	}

	// Global flag for config file path
	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path")

	// Add subcommands
	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewMigrateCmd())
	cmd.AddCommand(NewSeedCmd())

	return cmd
}
