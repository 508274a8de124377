// Package config handles loading and validation of lineage.yaml project
// configuration.
package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/mesoscale/lineage/internal/secrets"
	"github.com/mesoscale/lineage/pkg/types"
)

// FileName is the project configuration file name.
const FileName = "lineage.yaml"

// Load reads and parses lineage.yaml from the given directory.
func Load(dir string) (*types.ProjectConfig, error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	var cfg types.ProjectConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return &cfg, nil
}

// ResolveDSN returns the relational store DSN, fetching it from Secrets
// Manager when the config names a secret instead of a literal DSN.
func ResolveDSN(ctx context.Context, cfg *types.ProjectConfig) (string, error) {
	if cfg.Postgres.DSN != "" {
		return cfg.Postgres.DSN, nil
	}
	dsn, err := secrets.ResolveDSN(ctx, cfg.Postgres.SecretARN)
	if err != nil {
		return "", fmt.Errorf("resolving postgres credentials: %w", err)
	}
	return dsn, nil
}

func validate(cfg *types.ProjectConfig) error {
	if cfg.Postgres.DSN == "" && cfg.Postgres.SecretARN == "" {
		return fmt.Errorf("postgres.dsn or postgres.secret_arn is required")
	}
	if cfg.Postgres.DSN != "" && cfg.Postgres.SecretARN != "" {
		return fmt.Errorf("postgres.dsn and postgres.secret_arn are mutually exclusive")
	}
	if cfg.Legacy.Table == "" {
		return fmt.Errorf("legacy.table is required")
	}
	return nil
}
