package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/opus67/skillctx/pkg/history"
	"github.com/opus67/skillctx/pkg/presenter"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent selections",
	Long:  `Show the most recent selections recorded by a running serve process.`,
	Run: func(cmd *cobra.Command, _ []string) {
		ctx := cmd.Context()
		limit, _ := cmd.Flags().GetInt("limit")

		dbPath, err := history.DefaultDBPath()
		if err != nil {
			presenter.Error(err, "Failed to locate history database")
			os.Exit(1)
		}
		if _, err := os.Stat(dbPath); err != nil {
			presenter.Info("No selection history recorded yet")
			return
		}

		store, err := history.Open(ctx, dbPath)
		if err != nil {
			presenter.Error(err, "Failed to open history database")
			os.Exit(1)
		}
		defer store.Close()

		records, err := store.Recent(ctx, limit)
		if err != nil {
			presenter.Error(err, "Failed to read history")
			os.Exit(1)
		}
		if len(records) == 0 {
			presenter.Info("No selection history recorded yet")
			return
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "TIME\tQUERY\tSKILLS\tCOST\tCACHE")
		for _, rec := range records {
			cached := ""
			if rec.CacheHit {
				cached = "hit"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%d/%d\t%s\n",
				rec.CreatedAt.Format("01-02 15:04:05"),
				truncate(rec.QueryText, 40),
				truncate(strings.Join(rec.SkillIDs, ","), 50),
				rec.TotalCost, rec.Budget, cached)
		}
		w.Flush()
	},
}

func init() {
	historyCmd.Flags().IntP("limit", "n", 20, "Number of selections to show")
	rootCmd.AddCommand(historyCmd)
}
