package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"scrapejob/lib/telemetry"

	"github.com/spf13/cobra"
)

const defaultJobPath = "job.json5"

var (
	verbose bool
	tel     telemetry.Telemetry
)

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log debug information.")
}

var rootCmd = &cobra.Command{
	Use:   "scrapejob",
	Short: "scrapejob runs resumable extraction jobs over a list of parameterized pages.",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		telemetry.InitSlog(os.Stderr, verbose)

		var err error
		tel, err = telemetry.SetupFromEnv(cmd.Context(), "scrapejob")
		if err != nil {
			fatal("failed to setup telemetry", err)
		}
		telemetry.InstrumentPerfStats(cmd.Context(), time.Second*30)
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		err := tel.Shutdown(context.Background())
		if err != nil {
			slog.Warn("failed to shutdown telemetry", "err", err)
		}
	},
}

func fatal(message string, err error) {
	slog.Error(message, "err", err.Error())
	os.Exit(1)
}

func jobPath(args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return defaultJobPath
}

func ExecuteContext(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
