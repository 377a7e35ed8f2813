// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strings"

	"codeberg.org/oliverandrich/votemail/internal/config"
	"codeberg.org/oliverandrich/votemail/internal/database"
	"codeberg.org/oliverandrich/votemail/internal/repository"
	"codeberg.org/oliverandrich/votemail/internal/server"
	"codeberg.org/oliverandrich/votemail/internal/services/auth"
	"codeberg.org/oliverandrich/votemail/internal/services/provision"
	"github.com/urfave/cli/v3"
	"github.com/vinovest/sqlx"
)

// Version information (set via ldflags during build)
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func newCommand() *cli.Command {
	return &cli.Command{
		Name:    "votemail",
		Usage:   "Send voting codes by email and run the election",
		Version: fmt.Sprintf("%s (built %s)", Version, BuildTime),
		Flags:   config.Flags(),
		Action:  server.Run,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Start the API server and background workers",
				Action: server.Run,
			},
			{
				Name:  "codes",
				Usage: "Manage voting codes",
				Commands: []*cli.Command{
					{
						Name:  "generate",
						Usage: "Create codes without recipients and print them",
						Flags: []cli.Flag{
							&cli.IntFlag{
								Name:    "count",
								Aliases: []string{"n"},
								Value:   10,
								Usage:   "Number of codes (1-1000)",
							},
						},
						Action: generateCodes,
					},
				},
			},
			{
				Name:  "emails",
				Usage: "Manage recipients",
				Commands: []*cli.Command{
					{
						Name:      "import",
						Usage:     "Register addresses from a file, one per line or comma separated",
						ArgsUsage: "FILE",
						Action:    importEmails,
					},
				},
			},
			{
				Name:  "admin",
				Usage: "Admin API helpers",
				Commands: []*cli.Command{
					{
						Name:      "hash-token",
						Usage:     "Print the bcrypt hash of a token for admin-token-hash",
						ArgsUsage: "[TOKEN]",
						Flags: []cli.Flag{
							&cli.BoolFlag{
								Name:  "generate",
								Usage: "Generate a random token and print it with its hash",
							},
						},
						Action: hashToken,
					},
				},
			},
			{
				Name:  "migrate",
				Usage: "Manage the database schema",
				Commands: []*cli.Command{
					{Name: "up", Usage: "Apply all pending migrations", Action: migrate(nil)},
					{Name: "down", Usage: "Roll back the last migration", Action: migrate(database.MigrateDown)},
					{Name: "reset", Usage: "Roll back all migrations", Action: migrate(database.MigrateReset)},
				},
			},
		},
	}
}

// openRepository opens the configured database, applying migrations.
func openRepository(cmd *cli.Command) (*config.Config, *sqlx.DB, *repository.Repository, error) {
	cfg := config.NewFromCLI(cmd)
	server.SetupLogger(cfg.Log.Level, cfg.Log.Format)

	db, err := database.Open(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to open database: %w", err)
	}
	return cfg, db, repository.New(db), nil
}

func generateCodes(ctx context.Context, cmd *cli.Command) error {
	_, db, repo, err := openRepository(cmd)
	if err != nil {
		return err
	}
	defer db.Close()

	generated, err := provision.NewService(repo, nil).GenerateCodes(ctx, int(cmd.Int("count")))
	if err != nil {
		return err
	}
	for _, code := range generated {
		fmt.Fprintln(cmd.Root().Writer, code)
	}
	return nil
}

func importEmails(ctx context.Context, cmd *cli.Command) error {
	path := cmd.Args().First()
	if path == "" {
		return errors.New("missing FILE argument")
	}
	input, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	_, db, repo, err := openRepository(cmd)
	if err != nil {
		return err
	}
	defer db.Close()

	// The running server picks the new rows up on its next cycle or trigger.
	reg, err := provision.NewService(repo, nil).RegisterEmails(ctx, string(input))
	if err != nil {
		return err
	}

	w := cmd.Root().Writer
	fmt.Fprintf(w, "queued: %d\n", len(reg.Queued))
	if len(reg.Duplicates) > 0 {
		fmt.Fprintf(w, "duplicates: %s\n", strings.Join(reg.Duplicates, ", "))
	}
	if len(reg.Invalid) > 0 {
		fmt.Fprintf(w, "invalid: %s\n", strings.Join(reg.Invalid, ", "))
	}
	return nil
}

func hashToken(_ context.Context, cmd *cli.Command) error {
	token := cmd.Args().First()
	w := cmd.Root().Writer

	if cmd.Bool("generate") {
		generated, err := auth.GenerateToken()
		if err != nil {
			return err
		}
		token = generated
		fmt.Fprintf(w, "token: %s\n", token)
	}
	if token == "" {
		return errors.New("missing TOKEN argument (or use --generate)")
	}

	hash, err := auth.HashToken(token)
	if err != nil {
		return err
	}
	fmt.Fprintln(w, hash)
	return nil
}

// migrate opens the database, which applies pending migrations, then runs
// step if set and prints the resulting schema version.
func migrate(step func(db *sql.DB, driver string) error) cli.ActionFunc {
	return func(_ context.Context, cmd *cli.Command) error {
		cfg, db, _, err := openRepository(cmd)
		if err != nil {
			return err
		}
		defer db.Close()

		if step != nil {
			if err := step(db.DB, cfg.Database.Driver); err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
		}

		version, err := database.MigrationVersion(db.DB, cfg.Database.Driver)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.Root().Writer, "schema version: %d\n", version)
		return nil
	}
}
