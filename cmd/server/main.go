package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/web3-frozen/energy-monitor/internal/config"
)

var (
	v      = config.NewViper()
	cfg    config.Config
	logger *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "energy-monitor",
	Short: "Energy analytics for hold-to-earn contracts",
	Long: `energy-monitor fetches hold-to-earn logs from the chain indexer, computes energy
analytics per contract, caches them in Redis and refreshes all monitored contracts on a schedule.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		cfg = config.Load(v)
		logger = config.NewLogger(os.Stdout, cfg.LogLevel, cfg.LogFormat)
		slog.SetDefault(logger)
	},
}

func init() {
	rootCmd.PersistentFlags().String("log-level", "info", "Set the logging level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "json", "Set the logging format (text, json)")
	_ = v.BindPFlag("LOG_LEVEL", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = v.BindPFlag("LOG_FORMAT", rootCmd.PersistentFlags().Lookup("log-format"))

	rootCmd.AddCommand(serveCmd, processCmd, contractsCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
