package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/R3E-Network/recordstore/internal/platform/migrations"
)

// NewMigrateCommand creates the migrate command and its up, down and version
// subcommands.
func NewMigrateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the postgres schema",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(cmd, rootOpts, (*migrations.Migrator).Up)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "down [steps]",
		Short: "Roll back migrations (one step by default)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			steps := 1
			if len(args) == 1 {
				n, err := strconv.Atoi(args[0])
				if err != nil || n <= 0 {
					return fmt.Errorf("steps must be a positive integer, got %q", args[0])
				}
				steps = n
			}
			return withMigrator(cmd, rootOpts, func(m *migrations.Migrator) error {
				return m.Down(steps)
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the applied schema version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(cmd, rootOpts, nil)
		},
	})

	return cmd
}

// withMigrator opens the migrator, runs action when set and prints the
// resulting version.
func withMigrator(cmd *cobra.Command, rootOpts *RootOptions, action func(*migrations.Migrator) error) (err error) {
	cfg, err := rootOpts.load()
	if err != nil {
		return err
	}
	if cfg.Database.DSN == "" {
		return fmt.Errorf("database.dsn (DATABASE_URL) is required")
	}

	m, err := migrations.NewMigrator(cfg.Database.DSN)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := m.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("close migrator: %w", closeErr)
		}
	}()

	if action != nil {
		if err := action(m); err != nil {
			return err
		}
	}
	version, dirty, err := m.Version()
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "schema version %d (dirty=%t)\n", version, dirty)
	return nil
}
