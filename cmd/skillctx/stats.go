package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/opus67/skillctx/pkg/presenter"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show registry statistics",
	Run: func(cmd *cobra.Command, _ []string) {
		ctx := cmd.Context()

		eng, _, err := loadEngine(ctx)
		if err != nil {
			presenter.Error(err, "Failed to load skills")
			os.Exit(1)
		}

		stats := eng.Stats()
		presenter.Section("Registry")
		presenter.Info(fmt.Sprintf("Skills:   %d", stats.SkillCount))
		presenter.Info(fmt.Sprintf("Version:  %d", stats.RegistryVersion))
		if !stats.LastReloadTime.IsZero() {
			presenter.Info(fmt.Sprintf("Loaded:   %s", stats.LastReloadTime.Format("2006-01-02 15:04:05")))
		}
	},
}

func init() {
	rootCmd.AddCommand(statsCmd)
}
