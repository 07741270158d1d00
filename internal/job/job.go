// Package job reads job definitions and builds the work queue a run starts
// from.
package job

import (
	"context"
	"fmt"
	"time"

	"scrapejob/internal/extract"
	"scrapejob/internal/queue"
	"scrapejob/internal/render"
	"scrapejob/internal/scope"
	"scrapejob/lib/configutil"
	configlibsql "scrapejob/lib/configutil/libsql"
)

type Merge struct {
	Delim string `json:"delim"`
	Json  string `json:"json"`
	Csv   string `json:"csv"`
	// DB is where merged records can additionally be written. A bare File
	// opens a local sqlite database, a Url opens a remote libsql one.
	DB configlibsql.Struct `json:"db"`
}

type Options struct {
	// Queue is the path of the durable queue file.
	Queue string `json:"queue"`
	// TplJson renders the per-context result path.
	TplJson string `json:"tplJson"`
	Merge   Merge  `json:"merge"`

	// Settle is how long to wait after each load, in milliseconds.
	Settle    *int   `json:"settle"`
	Driver    string `json:"driver"`
	UserAgent string `json:"userAgent"`
	Headless  *bool  `json:"headless"`
}

type Action struct {
	TplUrl string          `json:"tplUrl"`
	Data   []extract.Group `json:"data"`
}

type Job struct {
	Options  Options      `json:"options"`
	Contexts []scope.Vars `json:"contexts"`
	Action   Action       `json:"action"`
}

const (
	DefaultSettle = 500 * time.Millisecond
	DefaultDelim  = "_"
)

func (j Job) SettleDuration() time.Duration {
	if j.Options.Settle == nil {
		return DefaultSettle
	}
	return time.Duration(*j.Options.Settle) * time.Millisecond
}

func (j Job) Headless() bool {
	return j.Options.Headless == nil || *j.Options.Headless
}

func (j Job) Delim() string {
	if j.Options.Merge.Delim == "" {
		return DefaultDelim
	}
	return j.Options.Merge.Delim
}

func (j Job) Validate() error {
	switch {
	case j.Options.Queue == "":
		return fmt.Errorf("options.queue is required")
	case j.Options.TplJson == "":
		return fmt.Errorf("options.tplJson is required")
	case j.Action.TplUrl == "":
		return fmt.Errorf("action.tplUrl is required")
	}
	if j.Options.Settle != nil && *j.Options.Settle < 0 {
		return fmt.Errorf("options.settle must not be negative")
	}
	return nil
}

// Store is the durable location of the job's queue.
func (j Job) Store() queue.FileStore[scope.Vars] {
	return queue.NewFileStore[scope.Vars](j.Options.Queue)
}

// OutputPath renders the result path of one context.
func (j Job) OutputPath(r render.Renderer, vars scope.Vars) (string, error) {
	return r.Render(j.Options.TplJson, scope.New(vars).View())
}

// Outputs renders the result path of every declared context, in declaration
// order.
func (j Job) Outputs(r render.Renderer) ([]string, error) {
	out := make([]string, len(j.Contexts))
	for i, c := range j.Contexts {
		path, err := j.OutputPath(r, c)
		if err != nil {
			return nil, err
		}
		out[i] = path
	}
	return out, nil
}

// Read reads and validates a job definition, merging `<name>.local.<ext>`
// over it when present.
func Read(path string) (Job, error) {
	j, err := configutil.ReadConfig[Job](path)
	if err != nil {
		return Job{}, fmt.Errorf("read job: %w", err)
	}
	err = j.Validate()
	if err != nil {
		return Job{}, fmt.Errorf("invalid job %s: %w", path, err)
	}
	return j, nil
}

// Enqueue appends the declared contexts not already in `q`, compared by deep
// equality, after every existing item. Prior completion state is kept.
func Enqueue(q queue.Queue[scope.Vars], contexts []scope.Vars) queue.Queue[scope.Vars] {
	var fresh []scope.Vars
	for _, c := range contexts {
		_, known := q.Find(c.Equal)
		if known {
			continue
		}
		fresh = append(fresh, c)
	}
	return q.AddData(fresh...)
}

// Load reads the job and the queue persisted for it, then enqueues the job's
// declared contexts. A missing queue file starts an empty queue.
func Load(ctx context.Context, path string) (Job, queue.Queue[scope.Vars], error) {
	j, err := Read(path)
	if err != nil {
		return Job{}, queue.Queue[scope.Vars]{}, err
	}
	persisted, err := j.Store().Load(ctx)
	if err != nil {
		return Job{}, queue.Queue[scope.Vars]{}, fmt.Errorf("load queue: %w", err)
	}
	return j, Enqueue(persisted, j.Contexts), nil
}
