package main

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"github.com/trailsocial/engagement/internal/auth"
)

var (
	tokenUserID int64
	tokenAdmin  bool
	tokenTTL    time.Duration
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue a bearer token for local testing",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if cfg.IsProduction() {
			return fmt.Errorf("refusing to mint tokens in production")
		}
		if tokenUserID < 1 {
			return fmt.Errorf("--user-id is required")
		}

		svc, err := auth.NewService([]byte(cfg.JWTSecret))
		if err != nil {
			return err
		}
		token, expiresAt, err := svc.GenerateToken(tokenUserID, tokenAdmin, tokenTTL)
		if err != nil {
			return err
		}

		result := map[string]interface{}{"token": token, "expires_at": expiresAt.UTC()}
		return printResult(cmd.OutOrStdout(), result, func(w io.Writer) {
			fmt.Fprintln(w, token)
		})
	},
}

func init() {
	tokenCmd.Flags().Int64Var(&tokenUserID, "user-id", 0, "User id to embed in the token")
	tokenCmd.Flags().BoolVar(&tokenAdmin, "admin", false, "Grant the admin flag")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", auth.DefaultTokenTTL, "Token lifetime")
}
