package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"queueapp/queue-web/internal/app"
	"queueapp/queue-web/internal/config"
	"queueapp/queue-web/internal/migrations"
)

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Inspect or apply the Postgres task schema",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "status",
			Short: "List migrations and whether they are applied",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withMigrations(cmd.Context(), func(svc *migrations.Service) error {
					statuses, err := svc.Status(cmd.Context())
					if err != nil {
						return err
					}
					return printStatus(cmd.OutOrStdout(), statuses)
				})
			},
		},
		&cobra.Command{
			Use:   "up",
			Short: "Apply pending migrations",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withMigrations(cmd.Context(), func(svc *migrations.Service) error {
					ran, err := svc.Up(cmd.Context())
					for _, name := range ran {
						fmt.Fprintf(cmd.OutOrStdout(), "applied %s\n", name)
					}
					if err != nil {
						return err
					}
					if len(ran) == 0 {
						fmt.Fprintln(cmd.OutOrStdout(), "nothing to apply")
					}
					return nil
				})
			},
		},
	)
	return cmd
}

func withMigrations(ctx context.Context, fn func(*migrations.Service) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if cfg.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required for migrations")
	}
	db, err := app.OpenDB(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer func(db *sql.DB) { _ = db.Close() }(db)

	svc, err := migrations.New(ctx, db)
	if err != nil {
		return err
	}
	return fn(svc)
}

func printStatus(w io.Writer, statuses []migrations.Status) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tSTATE\tAPPLIED AT")
	for _, st := range statuses {
		state := "pending"
		switch {
		case st.Drifted:
			state = "changed"
		case st.Applied:
			state = "applied"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", st.Name, state, st.AppliedAt)
	}
	return tw.Flush()
}
