package main

import (
	"boardsync/internal/auth"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var (
	tokenSecret string
	tokenUser   string
	tokenTTL    time.Duration
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Mint a development token signed with the server's secret",
	Long: `Mint an HS256 token the server accepts. Only useful where you hold the
server's JWT_SECRET, such as a local stack.

  export BOARD_TOKEN=$(boardctl token --user alice)`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if tokenSecret == "" {
			return errors.New("--secret or JWT_SECRET is required")
		}
		if tokenUser == "" {
			return errors.New("--user is required")
		}
		tok, err := auth.Issue(tokenSecret, tokenUser, tokenTTL)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), tok)
		return nil
	},
}

func init() {
	tokenCmd.Flags().StringVar(&tokenSecret, "secret", os.Getenv("JWT_SECRET"), "signing secret")
	tokenCmd.Flags().StringVar(&tokenUser, "user", "", "user id to embed")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 24*time.Hour, "lifetime, 0 for no expiry")
}
