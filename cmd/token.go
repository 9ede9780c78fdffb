package cmd

import (
	"fmt"
	"time"

	"melodify/core/auth"

	"github.com/spf13/cobra"
)

var (
	tokenName string
	tokenTTL  time.Duration
)

// tokenCmd 本地开发时代替身份提供方签发令牌
var tokenCmd = &cobra.Command{
	Use:   "token <external-user-id>",
	Short: "签发开发用的访问令牌",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		verifier, err := auth.NewVerifier(cfg.JWTSecret)
		if err != nil {
			return err
		}
		token, err := verifier.Issue(args[0], tokenName, tokenTTL)
		if err != nil {
			return err
		}
		fmt.Println(token)
		return nil
	},
}

func init() {
	tokenCmd.Flags().StringVar(&tokenName, "name", "", "令牌中的显示名")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 24*time.Hour, "有效期")
	rootCmd.AddCommand(tokenCmd)
}
