package cli

import (
	"fmt"
	"time"

	"github.com/ddramp/exchange/internal/api/middleware"
	"github.com/spf13/cobra"
)

var (
	tokenOperator string
	tokenRole     string
	tokenTTL      time.Duration
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Mint an operator token for the admin API",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := getApp().Config
		middleware.SetJWTSecret(cfg.JWTSecret)
		middleware.SetJWTValidation(cfg.JWTIssuer, cfg.JWTAudience)

		token, err := middleware.IssueOperatorToken(tokenOperator, tokenRole, tokenTTL)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}

func init() {
	tokenCmd.Flags().StringVar(&tokenOperator, "operator", "", "Operator name recorded as the token subject")
	tokenCmd.Flags().StringVar(&tokenRole, "role", middleware.RoleAdmin, "Role granted by the token")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 12*time.Hour, "Token lifetime")
	_ = tokenCmd.MarkFlagRequired("operator")
}
