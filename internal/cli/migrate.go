package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sumire/providerlab/internal/logger"
	"github.com/sumire/providerlab/internal/repository"
)

func newMigrateCommand(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Database migration tools",
		Long:  `Apply, roll back and inspect the embedded schema migrations.`,
	}

	var steps int
	down := &cobra.Command{
		Use:   "down",
		Short: "Rollback migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withMigrator(cmd, func(m *repository.Migrator) error {
				return m.Down(cmd.Context(), steps)
			})
		},
	}
	down.Flags().IntVarP(&steps, "steps", "n", 1, "Number of migrations to rollback")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Run all pending migrations",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return opts.withMigrator(cmd, func(m *repository.Migrator) error {
					return m.Up(cmd.Context())
				})
			},
		},
		down,
		&cobra.Command{
			Use:   "status",
			Short: "Show migration status",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return opts.withMigrator(cmd, func(m *repository.Migrator) error {
					states, err := m.Status(cmd.Context())
					if err != nil {
						return err
					}

					w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
					fmt.Fprintln(w, "VERSION\tAPPLIED\tFILE")
					for _, s := range states {
						fmt.Fprintf(w, "%d\t%t\t%s\n", s.Version, s.Applied, s.Path)
					}
					return w.Flush()
				})
			},
		},
	)

	return cmd
}

func (o *options) withMigrator(cmd *cobra.Command, fn func(*repository.Migrator) error) error {
	e, err := o.initEnv(cmd.Context())
	if err != nil {
		return err
	}
	defer e.Close()

	m, err := repository.NewMigrator(e.db, logger.WithComponent("migrate"))
	if err != nil {
		return err
	}

	e.log.Info("running migration command", "command", cmd.Name(), "driver", e.cfg.Database.Driver)
	if err := fn(m); err != nil {
		e.log.Error("migration failed", "command", cmd.Name(), "error", err)
		return fmt.Errorf("migrate %s: %w", cmd.Name(), err)
	}
	return nil
}
