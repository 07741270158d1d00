package commands

import (
	"scrapejob/internal/job"
	"scrapejob/internal/merge"
	"scrapejob/internal/render"
	"scrapejob/internal/telemetry"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(mergeCmd)
}

var mergeCmd = &cobra.Command{
	Use:   "merge [path/to/job.json5]",
	Short: "Merges the result files a job has produced so far.",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		j, err := job.Read(jobPath(args))
		if err != nil {
			fatal("failed to read job", err)
		}
		err = merge.Job(cmd.Context(), j, render.NewHandlebars(), telemetry.SlogAPI{})
		if err != nil {
			fatal("merge failed", err)
		}
	},
}
