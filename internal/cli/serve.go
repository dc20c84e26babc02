package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/R3E-Network/recordstore/internal/app/runtime"
)

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := rootOpts.load()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			app, err := runtime.NewApplication(ctx, cfg)
			if err != nil {
				return err
			}

			runErr := app.Run(ctx)
			fmt.Fprintln(cmd.ErrOrStderr(), "shutting down")
			// The signal context is done by now; shutdown gets a fresh one.
			if err := app.Shutdown(context.WithoutCancel(ctx)); err != nil {
				return fmt.Errorf("shutdown: %w", err)
			}
			return runErr
		},
	}
}
