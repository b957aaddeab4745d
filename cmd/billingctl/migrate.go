package main

import (
	"context"
	"fmt"
	"ptero-billing/internal/app"
	"ptero-billing/internal/client"
	"ptero-billing/internal/config"

	"github.com/spf13/cobra"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, cfg *config.Config, a *app.App) error {
				if err := client.Migrate(a.DB); err != nil {
					return err
				}
				fmt.Printf("Schema migrated (%s)\n", cfg.Database.Driver)
				return nil
			})
		},
	}
}
