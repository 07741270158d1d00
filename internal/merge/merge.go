package merge

import (
	"context"
	"fmt"
	"log/slog"

	"scrapejob/internal/job"
	"scrapejob/internal/render"
	"scrapejob/internal/telemetry"

	"go.opentelemetry.io/otel/codes"
)

// Job merges the result files of every declared context of `j` into each
// output its merge options name. Nothing is written when none is named.
func Job(ctx context.Context, j job.Job, r render.Renderer, api telemetry.API) error {
	ctx, span := tracer.Start(ctx, "Job")
	defer span.End()

	api = telemetry.NewScopedAPI("merge", api)
	opts := j.Options.Merge

	paths, err := j.Outputs(r)
	if err != nil {
		return fmt.Errorf("render outputs: %w", err)
	}
	results := Collect(ctx, paths, api)
	rows := Rows(results, j.Delim())

	if opts.Csv != "" {
		err = WriteCSV(opts.Csv, rows)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to write csv")
			return fmt.Errorf("write csv: %w", err)
		}
		slog.InfoContext(ctx, "wrote csv", "path", opts.Csv, "rows", len(rows))
	}
	if opts.Json != "" {
		err = WriteJSON(opts.Json, rows)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to write json")
			return fmt.Errorf("write json: %w", err)
		}
		slog.InfoContext(ctx, "wrote json", "path", opts.Json, "rows", len(rows))
	}
	if opts.DB.Enabled() {
		db, err := opts.DB.OpenDB()
		if err != nil {
			return fmt.Errorf("open db: %w", err)
		}
		defer db.Close()
		err = WriteDB(ctx, db, results)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to write db")
			return fmt.Errorf("write db: %w", err)
		}
		slog.InfoContext(ctx, "wrote db", "results", len(results))
	}
	return nil
}
