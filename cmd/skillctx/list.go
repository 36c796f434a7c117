package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/opus67/skillctx/pkg/presenter"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List all registered skills",
	Long:  `List every skill in the registry with its tier, token cost, and triggers.`,
	Run: func(cmd *cobra.Command, _ []string) {
		ctx := cmd.Context()

		eng, _, err := loadEngine(ctx)
		if err != nil {
			presenter.Error(err, "Failed to load skills")
			os.Exit(1)
		}

		skills := eng.Skills()
		if len(skills) == 0 {
			presenter.Info("No skills found")
			return
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tTIER\tCOST\tALWAYS-ON\tKEYWORDS")
		for _, skill := range skills {
			alwaysOn := ""
			if skill.AlwaysOn {
				alwaysOn = "yes"
			}
			fmt.Fprintf(w, "%s\t%d\t%d\t%s\t%s\n",
				skill.ID, skill.Tier, skill.TokenCost, alwaysOn,
				truncate(strings.Join(skill.Triggers.Keywords, ", "), 50))
		}
		w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(listCmd)
}
