package main

import (
	"context"
	"fmt"
	"os"
	"ptero-billing/internal/app"
	"ptero-billing/internal/config"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func plansCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plans",
		Short: "Manage the plan catalog",
	}
	cmd.AddCommand(plansSyncCmd())
	cmd.AddCommand(plansListCmd())
	return cmd
}

func plansSyncCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync [catalog.yaml]",
		Short: "Upsert the plans of a catalog file",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, cfg *config.Config, a *app.App) error {
				path := cfg.PlanCatalogPath
				if len(args) == 1 {
					path = args[0]
				}
				n, err := a.SyncPlans(ctx, path)
				if err != nil {
					return err
				}
				fmt.Printf("Synced %d plans from %s\n", n, path)
				return nil
			})
		},
	}
	return cmd
}

func plansListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List plans",
		RunE: func(cmd *cobra.Command, args []string) error {
			all, _ := cmd.Flags().GetBool("all")
			return withApp(cmd, func(ctx context.Context, cfg *config.Config, a *app.App) error {
				plans, err := a.Plans.ListPlans(ctx, all)
				if err != nil {
					return err
				}

				w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "ID\tNAME\tMEMORY\tDISK\tCPU\tPRICE\tACTIVE")
				for _, p := range plans {
					fmt.Fprintf(w, "%s\t%s\t%d MB\t%d GB\t%d%%\t%s %s\t%t\n",
						p.ID, p.Name, p.Memory, p.Disk, p.CPU, p.Price.StringFixed(2), p.Currency, p.IsActive)
				}
				return w.Flush()
			})
		},
	}
	cmd.Flags().BoolP("all", "a", false, "Include inactive plans")
	return cmd
}
