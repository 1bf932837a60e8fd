// Command boardctl talks to a boardsync server from the terminal: it follows
// a room, draws into it, exports it, and issues development tokens.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	serverURL string
	token     string
	roomID    int64
	timeout   time.Duration
	verbose   bool
)

var rootCmd = &cobra.Command{
	Use:   "boardctl",
	Short: "Command line client for boardsync rooms",
	Long: `boardctl connects to a boardsync server as an ordinary room member.

The token is read from --token or BOARD_TOKEN. Use "boardctl token" with the
server's secret to mint one for local development.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level := zapcore.WarnLevel
		if verbose {
			level = zapcore.DebugLevel
		}
		cfg := zap.NewDevelopmentConfig()
		cfg.Level = zap.NewAtomicLevelAt(level)
		logger, err := cfg.Build()
		if err != nil {
			return err
		}
		zap.ReplaceGlobals(logger)

		if token == "" {
			token = os.Getenv("BOARD_TOKEN")
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&serverURL, "server", "s", envOr("BOARD_SERVER", "http://localhost:8080"), "board server base URL")
	rootCmd.PersistentFlags().StringVar(&token, "token", "", "bearer token (default $BOARD_TOKEN)")
	rootCmd.PersistentFlags().Int64VarP(&roomID, "room", "r", 1, "room id")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 10*time.Second, "timeout for one-shot commands")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	rootCmd.AddCommand(tailCmd, drawCmd, chatCmd, injectCmd, exportCmd, tokenCmd)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render("error: ")+err.Error())
		os.Exit(1)
	}
}
