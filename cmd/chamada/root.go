package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/saturnino-fabrica-de-software/chamada/internal/api/handler"
	"github.com/saturnino-fabrica-de-software/chamada/internal/app"
	"github.com/saturnino-fabrica-de-software/chamada/internal/config"
)

// opener builds the attendance core for one command invocation.
type opener func(ctx context.Context) (*app.App, error)

func openFromEnv(ctx context.Context) (*app.App, error) {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger := config.NewLogger(cfg.Environment)
	slog.SetDefault(logger)

	return app.Open(ctx, cfg, logger, app.Options{StartCamera: cfg.CameraEnabled})
}

// cli carries the core shared by subcommands.
type cli struct {
	open opener
	core *app.App
}

func newRootCmd(open opener) *cobra.Command {
	c := &cli{open: open}

	root := &cobra.Command{
		Use:           "chamada",
		Short:         "Face recognition attendance for classrooms",
		Version:       handler.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			core, err := c.open(cmd.Context())
			if err != nil {
				return err
			}
			c.core = core
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if c.core == nil {
				return nil
			}
			return c.core.Close()
		},
	}
	root.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	root.AddCommand(
		c.enrollCmd(),
		c.recognizeCmd(),
		c.attendCmd(),
		c.studentsCmd(),
	)
	return root
}
