package main

import (
	"context"
	"fmt"
	"ptero-billing/internal/app"
	"ptero-billing/internal/apperr"
	"ptero-billing/internal/config"
	"ptero-billing/internal/model"
	"ptero-billing/internal/service"
	"strings"

	"github.com/spf13/cobra"
)

func ordersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "orders",
		Short: "Inspect and remediate orders",
	}
	cmd.AddCommand(ordersShowCmd())
	cmd.AddCommand(ordersApproveCmd())
	cmd.AddCommand(ordersRejectCmd())
	cmd.AddCommand(ordersRetryCmd())
	return cmd
}

func operator(cmd *cobra.Command) model.Actor {
	id, _ := cmd.Flags().GetString("operator")
	return model.Actor{UserID: id, Role: model.RoleAdmin}
}

func ordersShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show [order-id]",
		Short: "Show an order with its payments and audit log",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			actor := operator(cmd)
			return withApp(cmd, func(ctx context.Context, cfg *config.Config, a *app.App) error {
				order, err := a.Orders.GetOrder(ctx, args[0], actor)
				if err != nil {
					return describe(err)
				}
				payments, err := a.Orders.ListPayments(ctx, order.ID, actor)
				if err != nil {
					return describe(err)
				}
				events, err := a.Orders.ListEvents(ctx, order.ID, actor)
				if err != nil {
					return describe(err)
				}

				fmt.Printf("Order %s\n", order.ID)
				fmt.Println(strings.Repeat("=", 44))
				fmt.Printf("  User:        %s\n", order.UserID)
				fmt.Printf("  Plan:        %s\n", order.PlanID)
				fmt.Printf("  Server name: %s\n", order.ServerName)
				fmt.Printf("  Status:      %s / payment %s\n", order.Status, order.PaymentStatus)
				if order.PterodactylServerID != nil {
					fmt.Printf("  Server:      #%d (simulated: %t)\n", *order.PterodactylServerID, order.ServerSimulated)
				}
				if order.FailureReason != nil {
					fmt.Printf("  Failure:     %s\n", *order.FailureReason)
				}
				fmt.Printf("  Attempts:    %d\n", order.ProvisioningAttempts)

				fmt.Println("\nPayments:")
				for _, p := range payments {
					fmt.Printf("  %s  %-9s %-24s %s %s  %s\n", p.ID, p.Gateway, p.Reference, p.Amount.StringFixed(2), p.Currency, p.Status)
				}

				fmt.Println("\nEvents:")
				for _, e := range events {
					line := fmt.Sprintf("  %s  %-24s %-28s %s/%s -> %s/%s",
						e.CreatedAt.Format("2006-01-02 15:04:05"), e.Action, e.Actor,
						e.FromStatus, e.FromPaymentStatus, e.ToStatus, e.ToPaymentStatus)
					if e.Reason != nil {
						line += "  (" + *e.Reason + ")"
					}
					fmt.Println(line)
				}
				return nil
			})
		},
	}
}

func ordersApproveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "approve [order-id]",
		Short: "Approve the order's payment and provision its server",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			actor := operator(cmd)
			paymentID, _ := cmd.Flags().GetString("payment")
			return withApp(cmd, func(ctx context.Context, cfg *config.Config, a *app.App) error {
				res, err := a.Admin.Approve(ctx, actor, args[0], paymentID)
				return printApproval(ctx, a, res, err)
			})
		},
	}
	cmd.Flags().StringP("payment", "p", "", "Payment id to approve (default: newest pending payment)")
	return cmd
}

func ordersRejectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reject [order-id]",
		Short: "Reject the order's payment and cancel it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			actor := operator(cmd)
			return withApp(cmd, func(ctx context.Context, cfg *config.Config, a *app.App) error {
				order, err := a.Admin.Reject(ctx, actor, args[0])
				if err != nil {
					return describe(err)
				}
				fmt.Printf("Order %s is %s (payment %s)\n", order.ID, order.Status, order.PaymentStatus)
				return nil
			})
		},
	}
}

func ordersRetryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "retry [order-id]",
		Short: "Retry provisioning of a failed order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			actor := operator(cmd)
			return withApp(cmd, func(ctx context.Context, cfg *config.Config, a *app.App) error {
				res, err := a.Admin.Retry(ctx, actor, args[0])
				return printApproval(ctx, a, res, err)
			})
		},
	}
}

func printApproval(ctx context.Context, a *app.App, res *service.ApprovalResult, err error) error {
	if err != nil {
		if ae, ok := apperr.As(err); ok && ae.Kind == apperr.Provisioning {
			a.Notifier.ProvisioningFailed(ctx, ae.OrderID, ae.Detail)
		}
		return describe(err)
	}
	switch {
	case res.AlreadyActive:
		fmt.Printf("Order %s was already active on server #%d\n", res.OrderID, res.ServerID)
	case res.Simulated:
		fmt.Printf("Order %s active on simulated server #%d\n", res.OrderID, res.ServerID)
		a.Notifier.OrderProvisioned(ctx, res.OrderID, res.ServerID, true)
	default:
		fmt.Printf("Order %s active on server #%d\n", res.OrderID, res.ServerID)
		a.Notifier.OrderProvisioned(ctx, res.OrderID, res.ServerID, false)
	}
	return nil
}

// describe shows operators the full error, provider detail included.
func describe(err error) error {
	ae, ok := apperr.As(err)
	if !ok {
		return err
	}
	msg := fmt.Sprintf("%s: %s", ae.Kind, ae.PublicMsg)
	if ae.OrderID != "" {
		msg += " (order " + ae.OrderID + ")"
	}
	if ae.Detail != "" {
		msg += "\n  " + ae.Detail
	} else if ae.Err != nil {
		msg += "\n  " + ae.Err.Error()
	}
	return fmt.Errorf("%s", msg)
}
