package main

import (
	"fmt"
	"ptero-billing/internal/config"
	"ptero-billing/internal/middleware"
	"ptero-billing/internal/model"
	"time"

	"github.com/spf13/cobra"
)

func tokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token [user-id]",
		Short: "Mint a bearer token signed with AUTH_JWT_SECRET",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			admin, _ := cmd.Flags().GetBool("admin")
			ttl, _ := cmd.Flags().GetDuration("ttl")

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			role := model.RoleUser
			if admin {
				role = model.RoleAdmin
			}
			tok, err := middleware.IssueToken(cfg.Auth, args[0], role, ttl)
			if err != nil {
				return err
			}
			fmt.Println(tok)
			return nil
		},
	}
	cmd.Flags().Bool("admin", false, "Grant the admin role")
	cmd.Flags().Duration("ttl", 24*time.Hour, "Token lifetime")
	return cmd
}
