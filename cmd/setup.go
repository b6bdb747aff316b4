package main

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/voxup/internal/shared"
)

// Setup creates the config file if missing, initializes the database and resolves the owner id.
func (r *Runner) Setup(ctx context.Context, cmd *cli.Command) error {
	if cmd.Bool("rollback") {
		return r.rollback()
	}

	configPath := r.configPath
	if configPath == "" {
		configPath = "config.toml"
	}

	if _, err := os.Stat(configPath); err != nil {
		r.logger.Info("config file not found, creating from template", "path", configPath)
		if err := shared.CreateConfigFile(configPath); err != nil {
			r.logger.Warn("failed to create config file, using defaults", "error", err)
		} else {
			r.logger.Info("config file created", "path", configPath)
			if config, err := shared.LoadConfig(configPath); err != nil {
				r.logger.Warn("failed to load created config, using defaults", "error", err)
			} else {
				r.config = config
			}
		}
	}

	r.logger.Info("initializing database", "path", r.config.Database.Path)

	db, ledger, err := r.openLedger()
	if err != nil {
		return fmt.Errorf("failed to set up database: %w", err)
	}
	defer db.Close()

	r.logger.Infof("setup complete for database: %v", r.config.Database.Path)

	r.writePlain("✓ Config: %s\n", configPath)
	r.writePlain("✓ Database: %s\n", r.config.Database.Path)
	r.writePlain("✓ Owner: %s\n", ledger.Owner())
	r.writePlain("  Completed uploads: %d\n", ledger.Len())
	r.writePlainln("Next steps:")
	r.writePlain("1. Set library.root and the upload backend in %s\n", configPath)
	r.writePlain("2. Run 'voxup scan' to see what would be uploaded\n")
	return nil
}

func (r *Runner) rollback() error {
	db, err := shared.NewDatabase(r.config.Database.Path)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := shared.RollbackMigration(db); err != nil {
		return fmt.Errorf("failed to roll back: %w", err)
	}
	r.logger.Info("rolled back latest migration", "path", r.config.Database.Path)
	return nil
}
