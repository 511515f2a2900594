// Package main provides the entry point for the application with CLI commands.
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/phivault/phivault/cmd/app/commands"
	"github.com/phivault/phivault/internal/app"
	"github.com/phivault/phivault/internal/config"
)

const version = "1.0.0"

// withContainer loads the configuration, builds the DI container and runs fn
// with it, shutting the container down afterwards.
func withContainer(ctx context.Context, fn func(ctx context.Context, container *app.Container) error) error {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return err
	}

	container := app.NewContainer(cfg)
	defer func() {
		if err := container.Shutdown(context.Background()); err != nil {
			container.Logger().Error("failed to shutdown container", slog.Any("error", err))
		}
	}()

	return fn(ctx, container)
}

func main() {
	cmd := &cli.Command{
		Name:    "phivault",
		Usage:   "Healthcare data encryption and key lifecycle manager",
		Version: version,
		Commands: []*cli.Command{
			{
				Name:  "serve",
				Usage: "Provision default keys and serve health and metrics endpoints",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return commands.RunServe(ctx, version)
				},
			},
			{
				Name:  "migrate",
				Usage: "Run database migrations",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					cfg := config.Load()
					container := app.NewContainer(cfg)
					return commands.RunMigrations(container.Logger(), cfg.DBDriver, cfg.DBConnectionString)
				},
			},
			{
				Name:  "create-master-key",
				Usage: "Generate a new master key for envelope encryption",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "kms-key-uri",
						Aliases: []string{"k"},
						Value:   "",
						Usage:   "KMS keeper URI used to encrypt the key before output (e.g., awskms://...)",
					},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return commands.RunCreateMasterKey(ctx, os.Stdout, cmd.String("kms-key-uri"))
				},
			},
			{
				Name:  "ensure-default-keys",
				Usage: "Provision one active key per encryption level (idempotent)",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return withContainer(ctx, func(ctx context.Context, container *app.Container) error {
						keyManager, err := container.KeyManager(ctx)
						if err != nil {
							return err
						}
						return commands.RunEnsureDefaultKeys(
							ctx,
							keyManager,
							container.Logger(),
							os.Stdout,
							commands.CurrentUserID(),
						)
					})
				},
			},
			{
				Name:  "generate-key",
				Usage: "Generate a new active key for an encryption level",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "level",
						Aliases:  []string{"l"},
						Required: true,
						Usage:    "Encryption level: basic, healthcare or critical",
					},
					&cli.StringFlag{
						Name:    "type",
						Aliases: []string{"t"},
						Value:   "symmetric",
						Usage:   "Key type: symmetric or asymmetric",
					},
					&cli.StringFlag{
						Name:    "format",
						Aliases: []string{"f"},
						Value:   "text",
						Usage:   "Output format: 'text' or 'json'",
					},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return withContainer(ctx, func(ctx context.Context, container *app.Container) error {
						keyManager, err := container.KeyManager(ctx)
						if err != nil {
							return err
						}
						return commands.RunGenerateKey(
							ctx,
							keyManager,
							container.Logger(),
							os.Stdout,
							cmd.String("level"),
							cmd.String("type"),
							commands.CurrentUserID(),
							cmd.String("format"),
						)
					})
				},
			},
			{
				Name:  "rotate-key",
				Usage: "Rotate an active key, minting a successor for its level",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "id",
						Aliases:  []string{"i"},
						Required: true,
						Usage:    "ID of the active key to rotate (UUID)",
					},
					&cli.StringFlag{
						Name:    "format",
						Aliases: []string{"f"},
						Value:   "text",
						Usage:   "Output format: 'text' or 'json'",
					},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return withContainer(ctx, func(ctx context.Context, container *app.Container) error {
						keyManager, err := container.KeyManager(ctx)
						if err != nil {
							return err
						}
						return commands.RunRotateKey(
							ctx,
							keyManager,
							container.Logger(),
							os.Stdout,
							cmd.String("id"),
							commands.CurrentUserID(),
							cmd.String("format"),
						)
					})
				},
			},
			{
				Name:  "status",
				Usage: "Report active key counts and usage for the last 24 hours",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "format",
						Aliases: []string{"f"},
						Value:   "text",
						Usage:   "Output format: 'text' or 'json'",
					},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return withContainer(ctx, func(ctx context.Context, container *app.Container) error {
						encryptionService, err := container.EncryptionService(ctx)
						if err != nil {
							return err
						}
						return commands.RunStatus(ctx, encryptionService, os.Stdout, cmd.String("format"))
					})
				},
			},
			{
				Name:  "verify-usage-log",
				Usage: "Verify the integrity of signed key usage records",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:    "days",
						Aliases: []string{"d"},
						Value:   7,
						Usage:   "Verify records created within the last N days",
					},
					&cli.IntFlag{
						Name:    "limit",
						Aliases: []string{"n"},
						Value:   10000,
						Usage:   "Maximum number of records to verify",
					},
					&cli.StringFlag{
						Name:    "format",
						Aliases: []string{"f"},
						Value:   "text",
						Usage:   "Output format: 'text' or 'json'",
					},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return withContainer(ctx, func(ctx context.Context, container *app.Container) error {
						auditor, err := container.Auditor(ctx)
						if err != nil {
							return err
						}
						return commands.RunVerifyUsageLog(
							ctx,
							auditor,
							container.Logger(),
							os.Stdout,
							cmd.Int("days"),
							cmd.Int("limit"),
							cmd.String("format"),
						)
					})
				},
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.Any("error", err))
		os.Exit(1)
	}
}
