package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"cancerscope/config"
	"cancerscope/logging"
)

var rootCmd = &cobra.Command{
	Use:           "train_model",
	Short:         "Train and evaluate breast cancer classifiers",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().String("db", "data/cancerscope.db", "SQLite database holding the training log (empty disables it)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level")

	rootCmd.AddCommand(trainCmd)
	rootCmd.AddCommand(evaluateCmd)
	rootCmd.AddCommand(historyCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newLogger(cmd *cobra.Command) (*zap.Logger, error) {
	level, _ := cmd.Flags().GetString("log-level")
	return logging.New(config.LogConfig{Level: level, Format: "console"})
}
