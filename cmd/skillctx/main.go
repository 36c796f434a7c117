package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/opus67/skillctx/pkg/logger"
)

func init() {
	// Environment variables
	viper.SetEnvPrefix("SKILLCTX")
	viper.AutomaticEnv()

	// Config file support
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("$HOME/.skillctx")
	viper.AddConfigPath(".")

	// Load config file if it exists (ignore errors if it doesn't)
	_ = viper.ReadInConfig()

	// Pipeline tuning knobs and their documented defaults
	viper.SetDefault("scoring.keyword_weight", 3.0)
	viper.SetDefault("scoring.file_type_weight", 2.0)
	viper.SetDefault("scoring.directory_weight", 1.0)
	viper.SetDefault("scoring.class_cap", 3)
	viper.SetDefault("expansion.max_depth", 1)
	viper.SetDefault("expansion.discount", 0.5)
	viper.SetDefault("cache.capacity", 128)
	// 0 defers to the engine's built-in default budget.
	viper.SetDefault("budget.default", 0)
}

var rootCmd = &cobra.Command{
	Use:   "skillctx",
	Short: "Deterministic skill selection for assistant context windows",
	Long: `skillctx chooses which skill documents to load into an AI assistant's
context window, given the current request text, open files, and active
directories. Selection is a deterministic rule engine over each skill's
declared triggers, tier, and token cost, packed into a fixed token budget.`,
	PersistentPreRun: func(cmd *cobra.Command, _ []string) {
		if level, err := cmd.Flags().GetString("log-level"); err == nil && level != "" {
			if err := logger.SetLogLevel(level); err != nil {
				fmt.Fprintf(os.Stderr, "invalid log level %q: %v\n", level, err)
			}
		}
		if format, err := cmd.Flags().GetString("log-format"); err == nil && format != "" {
			logger.SetLogFormat(format)
		}
	},
	Run: func(cmd *cobra.Command, _ []string) {
		cmd.Help()
	},
}

func main() {
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "fmt", "Log format (fmt, json)")
	rootCmd.PersistentFlags().StringSlice("skill-dir", nil, "Skill directories (overrides defaults and config)")
	viper.BindPFlag("skills.dirs", rootCmd.PersistentFlags().Lookup("skill-dir"))

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
