package commands

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"scrapejob/internal/job"
	"scrapejob/internal/merge"
	"scrapejob/internal/page"
	"scrapejob/internal/page/browser"
	"scrapejob/internal/page/static"
	"scrapejob/internal/render"
	"scrapejob/internal/runner"
	"scrapejob/internal/telemetry"
	"scrapejob/lib/restyutil"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var (
	noMerge  bool
	driver   string
	install  bool
	dumpHttp string
)

func init() {
	runCmd.Flags().BoolVar(&noMerge, "no-merge", false, "Skip merging results after the run.")
	runCmd.Flags().StringVar(&driver, "driver", "", "Override the page driver of the job (browser or static).")
	runCmd.Flags().BoolVar(&install, "install", false, "Install the browser before launching it.")
	runCmd.Flags().StringVar(&dumpHttp, "dump-http", "", "Directory to dump HTTP exchanges of the static driver to.")
	rootCmd.AddCommand(runCmd)
}

// openPage starts the page driver the job asks for. The returned close
// function releases it.
func openPage(j job.Job) (page.Page, func() error, error) {
	name := j.Options.Driver
	if driver != "" {
		name = driver
	}
	d, err := page.ParseDriver(name)
	if err != nil {
		return nil, nil, err
	}

	switch d {
	case page.DriverStatic:
		opts := static.Options{UserAgent: j.Options.UserAgent}
		if dumpHttp != "" {
			output, err := restyutil.NewFilesystemOutput(dumpHttp)
			if err != nil {
				return nil, nil, fmt.Errorf("prepare http dump: %w", err)
			}
			opts.Output = output
		}
		return static.New(opts), func() error { return nil }, nil
	default:
		p, err := browser.Launch(browser.Options{
			Headless: j.Headless(),
			Install:  install,
		})
		if err != nil {
			return nil, nil, err
		}
		return p, p.Close, nil
	}
}

func run(ctx context.Context, path string) error {
	j, q, err := job.Load(ctx, path)
	if err != nil {
		return err
	}
	slog.InfoContext(ctx, "loaded job", "path", path, "items", q.Len(), "waiting", q.NumWaiting())

	p, closePage, err := openPage(j)
	if err != nil {
		return fmt.Errorf("open page: %w", err)
	}
	defer func() {
		err := closePage()
		if err != nil {
			slog.WarnContext(ctx, "failed to close page", "err", err)
		}
	}()

	renderer := render.NewHandlebars()
	r := runner.New(j, p, renderer, telemetry.SlogAPI{})

	t1 := time.Now()
	err = r.Run(ctx, q)
	if err != nil {
		return err
	}
	slog.InfoContext(ctx, "run time", "seconds", time.Since(t1).Seconds())

	if noMerge {
		return nil
	}
	return merge.Job(ctx, j, renderer, telemetry.SlogAPI{})
}

var runCmd = &cobra.Command{
	Use:   "run [path/to/job.json5] [--no-merge] [--driver browser|static]",
	Short: "Processes every unfinished context of a job, then merges the results.",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		id := uuid.New().String()
		slog.SetDefault(slog.Default().With("run", id))

		err := run(cmd.Context(), jobPath(args))
		if err != nil {
			fatal("run failed", err)
		}
	},
}
