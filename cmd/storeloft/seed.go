// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Storeloft Contributors

package main

import (
	"context"
	"strings"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/storeloft/storeloft/internal/config"
	"github.com/storeloft/storeloft/internal/extension"
	extpg "github.com/storeloft/storeloft/internal/extension/postgres"
	"github.com/storeloft/storeloft/internal/store"
	"github.com/storeloft/storeloft/plugins/loyaltypoints"
)

// Default timeout for seed command.
const defaultSeedTimeout = 30 * time.Second

// seedConfig holds configuration for the seed command.
type seedConfig struct {
	timeout time.Duration
}

// NewSeedCmd creates the seed subcommand.
func NewSeedCmd() *cobra.Command {
	cfg := &seedConfig{}

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Seed the plugin catalog with bundled plugins",
		Long: `Validates the manifests of the plugins compiled into this binary and
upserts them into the catalog. This command is idempotent - re-running it
updates existing catalog entries in place.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSeed(cmd, args, cfg)
		},
	}

	cmd.Flags().DurationVar(&cfg.timeout, "timeout", defaultSeedTimeout, "timeout for database operations (e.g., 30s, 1m)")
	cmd.Flags().String("database.url", "", "PostgreSQL connection URL")

	return cmd
}

// bundledManifests lists the plugin.yaml documents compiled into the binary.
var bundledManifests = [][]byte{
	loyaltypoints.ManifestYAML,
}

func runSeed(cmd *cobra.Command, _ []string, seedCfg *seedConfig) error {
	cfg, err := config.Load(configFile, cmd.Flags())
	if err != nil {
		return err
	}
	if cfg.Database.URL == "" {
		return oops.Code("CONFIG_INVALID").Errorf("database.url (or DATABASE_URL) is required")
	}

	// Use cmd.Context() to respect SIGINT/SIGTERM signals
	ctx, cancel := context.WithTimeout(cmd.Context(), seedCfg.timeout)
	defer cancel()

	cmd.Println("Connecting to database...")
	pool, err := store.Connect(ctx, cfg.Database.URL)
	if err != nil {
		return err
	}
	defer pool.Close()

	catalog := extpg.NewCatalogRepository(pool)

	for _, raw := range bundledManifests {
		result := extension.ParseManifestYAML(raw)
		if !result.Valid {
			return oops.Code("SEED_FAILED").
				With("violations", result.Errors).
				Errorf("bundled manifest rejected: %s", strings.Join(result.Errors, "; "))
		}

		m := result.Manifest
		plugin := &extension.Plugin{
			Key:      m.Key,
			Name:     m.Name,
			Version:  m.Version,
			Type:     m.Type,
			Manifest: m,
			Active:   true,
		}
		if err := catalog.Upsert(ctx, plugin); err != nil {
			return oops.Code("SEED_FAILED").With("plugin", m.Key).Wrap(err)
		}
		cmd.Printf("Seeded plugin %s@%s\n", m.Key, m.Version)
	}

	return nil
}
