package main

import (
	"fmt"
	"os"

	"github.com/hashicorp/go-multierror"
	"github.com/spf13/cobra"

	"github.com/opus67/skillctx/pkg/presenter"
	"github.com/opus67/skillctx/pkg/registry"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the skill corpus without loading it",
	Long: `Read every skill record from the configured directories and report all
validation errors: duplicate ids, dangling related-skill references, empty
trigger sets, and invalid token costs. A valid corpus exits 0.`,
	Run: func(cmd *cobra.Command, _ []string) {
		ctx := cmd.Context()

		source, err := buildSource()
		if err != nil {
			presenter.Error(err, "Failed to configure skill source")
			os.Exit(1)
		}

		reg := registry.New()
		if err := reg.Load(ctx, source); err != nil {
			presenter.Section("Validation failed")
			var merr *multierror.Error
			if ok := asMultierror(err, &merr); ok {
				for _, sub := range merr.Errors {
					presenter.Warning(sub.Error())
				}
				presenter.Error(fmt.Errorf("%d validation errors", len(merr.Errors)), "Corpus rejected")
			} else {
				presenter.Error(err, "Corpus rejected")
			}
			os.Exit(1)
		}

		presenter.Success(fmt.Sprintf("%d skills valid", reg.Snapshot().Len()))
	},
}

func asMultierror(err error, target **multierror.Error) bool {
	merr, ok := err.(*multierror.Error)
	if ok {
		*target = merr
	}
	return ok
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
