package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/opus67/skillctx/pkg/engine"
	"github.com/opus67/skillctx/pkg/presenter"
	"github.com/opus67/skillctx/pkg/types/selection"
)

// SelectConfig holds configuration for the select command
type SelectConfig struct {
	Query  string
	Files  []string
	Dirs   []string
	Budget int
	JSON   bool
}

// NewSelectConfig creates a new SelectConfig with default values
func NewSelectConfig() *SelectConfig {
	return &SelectConfig{}
}

var selectCmd = &cobra.Command{
	Use:   "select [query]",
	Short: "Select skills for a working context",
	Long: `Run the selection pipeline for a context assembled from the query text,
open files, and active directories, and print the chosen skills.

Examples:
  skillctx select "set up a cache layer"
  skillctx select "fix the form" --file src/components/Form.tsx --file src/hooks/useForm.ts
  skillctx select --dir src/components --budget 20000 --json`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		config := getSelectConfigFromFlags(cmd)
		if len(args) > 0 {
			config.Query = args[0]
		}

		eng, _, err := loadEngine(ctx)
		if err != nil {
			presenter.Error(err, "Failed to load skills")
			os.Exit(1)
		}

		sel, err := eng.Select(ctx, selection.Context{
			QueryText:         config.Query,
			OpenFiles:         config.Files,
			ActiveDirectories: config.Dirs,
			Budget:            config.Budget,
		})
		if err != nil {
			presenter.Error(err, "Selection failed")
			os.Exit(1)
		}

		if config.JSON {
			out, err := json.MarshalIndent(sel, "", "  ")
			if err != nil {
				presenter.Error(err, "Failed to encode selection")
				os.Exit(1)
			}
			fmt.Println(string(out))
			return
		}

		printSelection(eng, sel)
	},
}

func init() {
	selectCmd.Flags().StringSliceP("file", "f", nil, "Open file path (repeatable)")
	selectCmd.Flags().StringSliceP("dir", "d", nil, "Active directory path (repeatable)")
	selectCmd.Flags().IntP("budget", "b", 0, "Token budget for this selection (0 uses the default)")
	selectCmd.Flags().Bool("json", false, "Print the selection as JSON")
	rootCmd.AddCommand(selectCmd)
}

func getSelectConfigFromFlags(cmd *cobra.Command) *SelectConfig {
	config := NewSelectConfig()
	if files, err := cmd.Flags().GetStringSlice("file"); err == nil {
		config.Files = files
	}
	if dirs, err := cmd.Flags().GetStringSlice("dir"); err == nil {
		config.Dirs = dirs
	}
	if budget, err := cmd.Flags().GetInt("budget"); err == nil {
		config.Budget = budget
	}
	if config.Budget == 0 {
		config.Budget = viper.GetInt("budget.default")
	}
	if jsonOut, err := cmd.Flags().GetBool("json"); err == nil {
		config.JSON = jsonOut
	}
	return config
}

func printSelection(eng *engine.Engine, sel *selection.Selection) {
	presenter.Section(fmt.Sprintf("Selected %d skills (%d/%d tokens)", len(sel.SkillIDs), sel.TotalCost, sel.Budget))

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTIER\tCOST\tDESCRIPTION")
	for _, id := range sel.SkillIDs {
		skill, err := eng.Get(id)
		if err != nil {
			continue
		}
		fmt.Fprintf(w, "%s\t%d\t%d\t%s\n", skill.ID, skill.Tier, skill.TokenCost, truncate(skill.Description, 60))
	}
	w.Flush()

	if len(sel.Rejected) > 0 {
		rejected := make([]string, 0, len(sel.Rejected))
		for _, r := range sel.Rejected {
			rejected = append(rejected, fmt.Sprintf("%s (%s)", r.ID, r.Reason))
		}
		presenter.Separator()
		presenter.Warning("Rejected: " + strings.Join(rejected, ", "))
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
