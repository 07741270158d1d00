package commands

import (
	"os"

	"scrapejob/internal/job"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(statusCmd)
}

func newTable() table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.SetOutputMirror(os.Stdout)
	return t
}

var statusCmd = &cobra.Command{
	Use:   "status [path/to/job.json5]",
	Short: "Shows the queue of a job, including contexts declared since the last run.",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		_, q, err := job.Load(cmd.Context(), jobPath(args))
		if err != nil {
			fatal("failed to load job", err)
		}

		t := newTable()
		t.AppendHeader(table.Row{"#", "Finished", "Context"})
		for i, item := range q.Items() {
			t.AppendRow(table.Row{i, item.Finished, item.Data.Key()})
		}
		t.AppendFooter(table.Row{"", "Waiting", q.NumWaiting()})
		t.Render()
	},
}
