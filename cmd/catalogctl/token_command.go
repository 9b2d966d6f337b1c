package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/therealutkarshpriyadarshi/subcatalog/internal/middleware"
	"github.com/therealutkarshpriyadarshi/subcatalog/pkg/models"
)

func newTokenCommand(ctx *commandContext) *cobra.Command {
	var (
		ttl  time.Duration
		role string
	)

	cmd := &cobra.Command{
		Use:   "token <userId>",
		Short: "Issue a bearer token for the admin API",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if cfg.Auth.JWTSecret == "" {
				return errors.New("auth.jwtSecret is not configured (set JWT_SECRET)")
			}
			if ttl <= 0 {
				ttl = cfg.Auth.TokenTTL
			}
			middleware.SetJWTSecret(cfg.Auth.JWTSecret)

			token, err := middleware.GenerateToken(args[0], models.UserRole(role), ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().DurationVar(&ttl, "ttl", 0, "Token lifetime (defaults to auth.tokenttl)")
	cmd.Flags().StringVar(&role, "role", string(models.UserRoleAdmin), "Role claim")

	return cmd
}
