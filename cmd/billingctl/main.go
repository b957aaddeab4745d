package main

import (
	"context"
	"fmt"
	"os"
	"ptero-billing/internal/app"
	"ptero-billing/internal/config"

	"github.com/spf13/cobra"
)

var Version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:           "billingctl",
		Short:         "Operator tool for the ptero-billing order store",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().String("operator", "cli", "Operator id recorded in the order audit log")

	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(plansCmd())
	rootCmd.AddCommand(ordersCmd())
	rootCmd.AddCommand(tokenCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// withApp loads configuration and opens the store for the duration of fn.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, cfg *config.Config, a *app.App) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	a, err := app.New(ctx, cfg, config.NewLogger(cfg.Log))
	if err != nil {
		return err
	}
	defer a.Close()

	return fn(ctx, cfg, a)
}
