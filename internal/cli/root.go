// Package cli implements the recordstore command line.
package cli

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/R3E-Network/recordstore/internal/config"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigPath string
}

// load reads .env when present, then the YAML file and the environment.
func (o *RootOptions) load() (*config.Config, error) {
	_ = godotenv.Load()
	return config.LoadFromPath(o.ConfigPath)
}

// NewRootCommand creates the root command for the recordstore CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "recordstore",
		Short: "Record store API server",
		Long: `Record store backend: users, carts, the music catalog and orders over REST+JSON.

Configuration comes from an optional YAML file and environment variables
(JWT_SECRET, DATABASE_URL, REDIS_ADDR, ...). A .env file in the working
directory is loaded first when present.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", os.Getenv("CONFIG_FILE"), "path to YAML configuration")

	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewMigrateCommand(opts))
	cmd.AddCommand(NewSeedCommand(opts))

	return cmd
}
