package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/R3E-Network/recordstore/internal/app/runtime"
	"github.com/R3E-Network/recordstore/internal/errors"
)

// DefaultGenres are created by seed unless --genres says otherwise.
var DefaultGenres = []string{"Rock", "Jazz", "Blues", "Soul", "Hip-Hop", "Electronic", "Classical", "Folk"}

// SeedOptions holds flags for the seed command.
type SeedOptions struct {
	*RootOptions
	AdminName     string
	AdminEmail    string
	AdminPassword string
	Genres        []string
}

// NewSeedCommand creates the seed command.
func NewSeedCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SeedOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Create the admin account and starter genres",
		Long: `Create or refresh the administrator account and insert the starter genres.

Genres that already exist are skipped, so seed can run on every deploy.

Example:
  ADMIN_PASSWORD=... recordstore seed --admin-email ops@example.com`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSeed(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.AdminName, "admin-name", "Administrator", "display name of the admin account")
	cmd.Flags().StringVar(&opts.AdminEmail, "admin-email", os.Getenv("ADMIN_EMAIL"), "admin email (ADMIN_EMAIL); empty skips the admin")
	cmd.Flags().StringVar(&opts.AdminPassword, "admin-password", os.Getenv("ADMIN_PASSWORD"), "admin password (ADMIN_PASSWORD)")
	cmd.Flags().StringSliceVar(&opts.Genres, "genres", DefaultGenres, "genres to create")

	return cmd
}

func runSeed(opts *SeedOptions, cmd *cobra.Command) error {
	if opts.AdminEmail != "" && opts.AdminPassword == "" {
		return fmt.Errorf("--admin-password (ADMIN_PASSWORD) is required with --admin-email")
	}
	cfg, err := opts.load()
	if err != nil {
		return err
	}
	if cfg.Database.DSN == "" {
		return fmt.Errorf("database.dsn (DATABASE_URL) is required; seeding the in-memory store would be lost")
	}
	cfg.Sweeper.Enabled = false

	ctx := cmd.Context()
	app, err := runtime.NewApplication(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := app.Shutdown(ctx); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "shutdown: %v\n", err)
		}
	}()

	out := cmd.OutOrStdout()
	if opts.AdminEmail != "" {
		admin, err := app.App().Users.EnsureAdmin(ctx, opts.AdminName, opts.AdminEmail, opts.AdminPassword)
		if err != nil {
			return fmt.Errorf("ensure admin: %w", err)
		}
		fmt.Fprintf(out, "admin %s ready (id %s)\n", admin.Email, admin.ID)
	}

	created := 0
	for _, name := range opts.Genres {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if _, err := app.App().Genres.Create(ctx, name); err != nil {
			if errors.IsCode(err, errors.CodeConflict) {
				continue
			}
			return fmt.Errorf("create genre %q: %w", name, err)
		}
		created++
	}
	fmt.Fprintf(out, "seeded %d genres\n", created)
	return nil
}
