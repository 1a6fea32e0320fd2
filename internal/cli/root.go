// Package cli implements the goguard command line.
package cli

import (
	"log/slog"
	"os"

	"github.com/MrEthical07/goGuard/internal/logging"
	"github.com/spf13/cobra"
)

var (
	flagRedisAddr string
	flagDebug     bool
	flagLogLevel  string
	flagLogFormat string

	logger *slog.Logger
)

// defaultRedisAddr reads GOGUARD_REDIS_ADDR, then REDIS_ADDR. Empty means miniredis.
func defaultRedisAddr() string {
	if s := os.Getenv("GOGUARD_REDIS_ADDR"); s != "" {
		return s
	}
	return os.Getenv("REDIS_ADDR")
}

// NewRootCmd creates the root cobra command for the goguard CLI.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "goguard",
		Short: "goguard request-time security control plane",
		Long:  "goguard rate-limits, authenticates, and authorizes requests against a shared Redis store.",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if flagDebug {
				flagLogLevel = "debug"
			}
			logger = logging.NewLogger(logging.ParseLevel(flagLogLevel), flagLogFormat)
		},
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&flagRedisAddr, "redis-addr", defaultRedisAddr(), "Redis address (or GOGUARD_REDIS_ADDR env); empty starts an in-process miniredis")
	root.PersistentFlags().BoolVar(&flagDebug, "debug", false, "Enable debug logging")
	root.PersistentFlags().StringVar(&flagLogLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&flagLogFormat, "log-format", "text", "Log format (text, json)")

	root.AddCommand(
		newServeCmd(),
		newConfigCmd(),
		newLoadtestCmd(),
	)

	return root
}
