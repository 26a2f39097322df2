// Package cli wires the providerlab commands.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"

	"github.com/sumire/providerlab/internal/config"
	"github.com/sumire/providerlab/internal/logger"
	"github.com/sumire/providerlab/internal/repository"
)

type options struct {
	configPath string
}

// NewRootCommand returns the providerlab command tree.
func NewRootCommand() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:           "providerlab",
		Short:         "OAuth provider integration-testing backend",
		Long:          `providerlab tracks the authorize, profile, refresh and revoke status of every supported OAuth provider while testers run real flows against them.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "Path to config file (default: ./configs/config.yaml)")

	cmd.AddCommand(
		newServeCommand(opts),
		newMigrateCommand(opts),
		newProvidersCommand(opts),
	)

	return cmd
}

// env is the state shared by every command: loaded config, logger and an
// open database.
type env struct {
	cfg    config.Config
	log    *slog.Logger
	db     *sqlx.DB
	closer io.Closer
}

func (o *options) initEnv(ctx context.Context) (*env, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	closer, err := logger.Init(logger.Config{
		Level:  cfg.Logger.Level,
		Format: cfg.Logger.Format,
		Output: cfg.Logger.Output,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	db, err := repository.Open(ctx, cfg.Database.Driver, cfg.Database.URL, repository.PoolConfig{
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	})
	if err != nil {
		closer.Close()
		return nil, err
	}

	log := logger.WithComponent("cli")
	log.Debug("database connected", "driver", cfg.Database.Driver)

	return &env{cfg: cfg, log: log, db: db, closer: closer}, nil
}

func (e *env) Close() error {
	dbErr := e.db.Close()
	if err := e.closer.Close(); err != nil {
		return err
	}
	return dbErr
}
