// Package runner drives a job's queue to completion, one context at a time.
package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"scrapejob/internal/extract"
	"scrapejob/internal/job"
	"scrapejob/internal/page"
	"scrapejob/internal/queue"
	"scrapejob/internal/render"
	"scrapejob/internal/scope"
	"scrapejob/internal/telemetry"
	"scrapejob/lib/fsutil"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("scrapejob.internal.runner")

// Store persists queue snapshots between items.
type Store interface {
	Save(ctx context.Context, q queue.Queue[scope.Vars]) error
	Remove(ctx context.Context) error
}

type Runner struct {
	Job      job.Job
	Page     page.Page
	Renderer render.Renderer
	Store    Store
	// Settle is waited after every load before anything is read.
	Settle    time.Duration
	Telemetry telemetry.API
}

// New creates a runner for a job with the job's own queue location and settle
// time.
func New(j job.Job, p page.Page, r render.Renderer, api telemetry.API) Runner {
	return Runner{
		Job:       j,
		Page:      p,
		Renderer:  r,
		Store:     j.Store(),
		Settle:    j.SettleDuration(),
		Telemetry: telemetry.NewScopedAPI("runner", api),
	}
}

func (r Runner) settle(ctx context.Context) error {
	if r.Settle <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(r.Settle)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Visit loads the page for one context, extracts its records and writes them
// to the context's result file. The queue is not touched.
func (r Runner) Visit(ctx context.Context, vars scope.Vars) error {
	ctx, span := tracer.Start(ctx, "Runner:Visit")
	defer span.End()

	view := scope.New(vars).View()
	key := vars.Key()
	span.SetAttributes(attribute.String("context", key))

	address, err := r.Renderer.Render(r.Job.Action.TplUrl, view)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to render address")
		return fmt.Errorf("render address: %w", err)
	}
	span.SetAttributes(attribute.String("address", address))
	slog.InfoContext(ctx, "visiting", "context", key, "address", address)

	err = r.Page.Load(ctx, address)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to load page")
		return err
	}
	err = r.settle(ctx)
	if err != nil {
		return err
	}

	records, err := extract.NewExtractor(r.Page, r.Renderer).
		Resolve(ctx, r.Job.Action.Data, scope.New(vars))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to extract records")
		return err
	}
	if records == nil {
		records = []extract.Record{}
	}

	output, err := r.Job.OutputPath(r.Renderer, vars)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to render output path")
		return fmt.Errorf("render output path: %w", err)
	}
	err = fsutil.WriteJSON(output, records)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to write result")
		return fmt.Errorf("write result: %w", err)
	}
	r.Telemetry.ReportDebug("wrote result", output, len(records))
	return nil
}

// ProcessOne visits the first unfinished context, marks it finished and
// persists the queue. It reports false when the queue was already drained.
func (r Runner) ProcessOne(ctx context.Context, q queue.Queue[scope.Vars]) (queue.Queue[scope.Vars], bool, error) {
	vars, ok := q.Next()
	if !ok {
		return q, false, nil
	}
	r.Telemetry.ReportCount("queue.waiting", int64(q.NumWaiting()))

	err := r.Visit(ctx, vars)
	if err != nil {
		return q, false, fmt.Errorf("context %s: %w", vars.Key(), err)
	}

	q = q.Finish()
	err = r.Store.Save(ctx, q)
	if err != nil {
		return q, false, err
	}
	return q, true, nil
}

// Run processes contexts until the queue is drained and then deletes the
// persisted queue. The first failure aborts the run, leaving the failed
// context unfinished.
func (r Runner) Run(ctx context.Context, q queue.Queue[scope.Vars]) error {
	ctx, span := tracer.Start(ctx, "Runner:Run")
	defer span.End()
	span.SetAttributes(attribute.Int("waiting", q.NumWaiting()))

	for {
		var (
			processed bool
			err       error
		)
		q, processed, err = r.ProcessOne(ctx, q)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "run aborted")
			if !errors.Is(err, context.Canceled) {
				r.Telemetry.ReportBroken("run.abort", err)
			}
			return err
		}
		if !processed {
			break
		}
	}

	err := r.Store.Remove(ctx)
	if err != nil {
		r.Telemetry.ReportWarning("queue.remove", err)
	}
	return nil
}
