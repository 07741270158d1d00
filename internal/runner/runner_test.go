package runner

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"scrapejob/internal/extract"
	"scrapejob/internal/job"
	"scrapejob/internal/loop"
	"scrapejob/internal/page/pagetest"
	"scrapejob/internal/queue"
	"scrapejob/internal/render"
	"scrapejob/internal/scope"
	"scrapejob/internal/telemetry/telemetrytest"

	"github.com/stretchr/testify/require"
	"github.com/titanous/json5"
)

// failingPage fails to load any address containing `fail`.
type failingPage struct {
	pagetest.Page
	fail string
}

func (p *failingPage) Load(ctx context.Context, address string) error {
	if strings.Contains(address, p.fail) {
		return errors.New("navigation failed")
	}
	return p.Page.Load(ctx, address)
}

func testJob(dir string) job.Job {
	return job.Job{
		Options: job.Options{
			Queue:   filepath.Join(dir, "queue.json"),
			TplJson: filepath.Join(dir, "out", "{{country}}.json"),
		},
		Action: job.Action{
			TplUrl: "https://example.com/{{country}}",
			Data: []extract.Group{
				{
					Kind: extract.GroupPlain,
					Entry: extract.Entry{
						Name:  extract.Literal(extract.String("capital")),
						Value: extract.FromOption(extract.Option{Selector: "#capital"}),
					},
				},
				{
					Kind: extract.GroupLoop,
					Loop: loop.Specs{{Selector: "#cities"}},
					Entry: extract.Entry{
						Name: extract.Literal(extract.String("city")),
						Value: extract.FromOption(extract.Option{
							Selector:  "#cities > li:nth-child({{index}})",
							Templated: true,
						}),
					},
				},
			},
		},
	}
}

func fileStore(dir string) queue.FileStore[scope.Vars] {
	return queue.NewFileStore[scope.Vars](filepath.Join(dir, "queue.json"))
}

// failingSaves persists nothing, every Save fails.
type failingSaves struct {
	queue.FileStore[scope.Vars]
}

func (failingSaves) Save(ctx context.Context, q queue.Queue[scope.Vars]) error {
	return errors.New("disk full")
}

func newTestRunner(dir string, p *pagetest.Page) (Runner, *telemetrytest.Recorder) {
	recorder := &telemetrytest.Recorder{}
	r := New(testJob(dir), p, render.NewHandlebars(), recorder)
	r.Settle = 0
	return r, recorder
}

func countryPage() *pagetest.Page {
	return &pagetest.Page{
		Texts: map[string]string{
			"#capital":                  " Paris ",
			"#cities > li:nth-child(1)": "Lyon",
			"#cities > li:nth-child(2)": "Lille",
		},
		Children: map[string]int{"#cities": 2},
	}
}

func readRecords(t *testing.T, path string) []map[string]any {
	contents, err := os.ReadFile(path)
	require.NoError(t, err)
	var records []map[string]any
	require.NoError(t, json5.Unmarshal(contents, &records))
	return records
}

func contexts(names ...string) queue.Queue[scope.Vars] {
	var vars []scope.Vars
	for _, n := range names {
		vars = append(vars, scope.Vars{"country": n})
	}
	return queue.Queue[scope.Vars]{}.AddData(vars...)
}

func TestRunProcessesEveryContext(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	p := countryPage()
	r, recorder := newTestRunner(dir, p)

	err := r.Run(ctx, contexts("fr", "be"))
	require.NoError(t, err)

	require.Equal(t, []string{"https://example.com/fr", "https://example.com/be"}, p.Loaded)
	for _, country := range []string{"fr", "be"} {
		records := readRecords(t, filepath.Join(dir, "out", country+".json"))
		require.Equal(t, []map[string]any{
			{"name": "capital", "value": "Paris"},
			{"name": "city", "value": "Lyon"},
			{"name": "city", "value": "Lille"},
		}, records)
	}

	_, err = os.Stat(fileStore(dir).Path)
	require.ErrorIs(t, err, os.ErrNotExist)
	require.Empty(t, recorder.Find("warning"))
	require.Len(t, recorder.Find("count"), 2)
}

func TestResultIsFourSpaceJSON(t *testing.T) {
	dir := t.TempDir()
	r, _ := newTestRunner(dir, countryPage())

	require.NoError(t, r.Visit(context.Background(), scope.Vars{"country": "fr"}))

	contents, err := os.ReadFile(filepath.Join(dir, "out", "fr.json"))
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(string(contents), "[\n    {\n        \"name\": \"capital\""))
}

func TestProcessOnePersistsQueue(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	r, _ := newTestRunner(dir, countryPage())

	q, processed, err := r.ProcessOne(ctx, contexts("fr", "be"))
	require.NoError(t, err)
	require.True(t, processed)
	require.Equal(t, 1, q.NumWaiting())

	persisted, err := fileStore(dir).Load(ctx)
	require.NoError(t, err)
	require.Equal(t, q.Items(), persisted.Items())

	next, ok := persisted.Next()
	require.True(t, ok)
	require.Equal(t, "be", next["country"])
}

func TestProcessOneDrained(t *testing.T) {
	dir := t.TempDir()
	p := countryPage()
	r, _ := newTestRunner(dir, p)

	_, processed, err := r.ProcessOne(context.Background(), queue.Queue[scope.Vars]{})
	require.NoError(t, err)
	require.False(t, processed)
	require.Empty(t, p.Loaded)
}

func TestCrashBeforeQueueWriteReprocesses(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	p := countryPage()
	r, _ := newTestRunner(dir, p)

	q := contexts("fr", "be")
	require.NoError(t, fileStore(dir).Save(ctx, q))

	// the result of "fr" lands on disk but the process dies before the
	// queue is rewritten
	require.NoError(t, r.Visit(ctx, scope.Vars{"country": "fr"}))

	restored, err := fileStore(dir).Load(ctx)
	require.NoError(t, err)
	next, ok := restored.Next()
	require.True(t, ok)
	require.Equal(t, "fr", next["country"])

	require.NoError(t, r.Run(ctx, restored))
	require.Equal(t, []string{
		"https://example.com/fr",
		"https://example.com/fr",
		"https://example.com/be",
	}, p.Loaded)
	require.Len(t, readRecords(t, filepath.Join(dir, "out", "fr.json")), 3)
}

func TestLoadFailureAborts(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	p := &failingPage{Page: *countryPage(), fail: "/be"}
	recorder := &telemetrytest.Recorder{}
	r := New(testJob(dir), p, render.NewHandlebars(), recorder)
	r.Settle = 0

	err := r.Run(ctx, contexts("fr", "be", "de"))
	require.ErrorContains(t, err, "navigation failed")
	require.ErrorContains(t, err, `"country":"be"`)

	persisted, err := fileStore(dir).Load(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, persisted.NumWaiting())
	next, ok := persisted.Next()
	require.True(t, ok)
	require.Equal(t, "be", next["country"])

	_, err = os.Stat(filepath.Join(dir, "out", "be.json"))
	require.ErrorIs(t, err, os.ErrNotExist)
	_, err = os.Stat(filepath.Join(dir, "out", "de.json"))
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestCancelDuringSettle(t *testing.T) {
	dir := t.TempDir()
	r, _ := newTestRunner(dir, countryPage())
	r.Settle = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	q, processed, err := r.ProcessOne(ctx, contexts("fr"))
	require.ErrorIs(t, err, context.Canceled)
	require.False(t, processed)
	require.Equal(t, 1, q.NumWaiting())
}

func TestRunEmptyQueueRemovesMissingFile(t *testing.T) {
	dir := t.TempDir()
	r, recorder := newTestRunner(dir, countryPage())

	require.NoError(t, r.Run(context.Background(), queue.Queue[scope.Vars]{}))
	require.Empty(t, recorder.Find("warning"))
}

func TestRemoveFailureIsWarning(t *testing.T) {
	dir := t.TempDir()
	r, recorder := newTestRunner(dir, countryPage())

	// a non-empty directory where the queue file should be cannot be removed
	require.NoError(t, os.MkdirAll(filepath.Join(fileStore(dir).Path, "child"), 0777))

	require.NoError(t, r.Run(context.Background(), queue.Queue[scope.Vars]{}))
	warnings := recorder.Find("warning")
	require.Len(t, warnings, 1)
	require.Equal(t, "runner: queue.remove", warnings[0].Id)
}

func TestResultWriteFailureAborts(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	r, recorder := newTestRunner(dir, countryPage())

	// a regular file where the result directory should be
	blocker := filepath.Join(dir, "blocker")
	require.NoError(t, os.WriteFile(blocker, nil, 0644))
	r.Job.Options.TplJson = filepath.Join(blocker, "{{country}}.json")

	q := contexts("fr", "be")
	require.NoError(t, fileStore(dir).Save(ctx, q))

	err := r.Run(ctx, q)
	require.ErrorContains(t, err, "write result")

	persisted, err := fileStore(dir).Load(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, persisted.NumWaiting())
	next, ok := persisted.Next()
	require.True(t, ok)
	require.Equal(t, "fr", next["country"])

	broken := recorder.Find("broken")
	require.Len(t, broken, 1)
	require.Equal(t, "runner: run.abort", broken[0].Id)
}

func TestQueueWriteFailureAborts(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	p := countryPage()
	r, recorder := newTestRunner(dir, p)

	q := contexts("fr", "be")
	require.NoError(t, fileStore(dir).Save(ctx, q))
	r.Store = failingSaves{fileStore(dir)}

	err := r.Run(ctx, q)
	require.ErrorContains(t, err, "disk full")
	require.Equal(t, []string{"https://example.com/fr"}, p.Loaded)

	// the result landed before the queue write failed
	require.Len(t, readRecords(t, filepath.Join(dir, "out", "fr.json")), 3)

	restored, err := fileStore(dir).Load(ctx)
	require.NoError(t, err)
	next, ok := restored.Next()
	require.True(t, ok)
	require.Equal(t, "fr", next["country"])
	require.Len(t, recorder.Find("broken"), 1)
}

func TestWroteResultIsReported(t *testing.T) {
	dir := t.TempDir()
	r, recorder := newTestRunner(dir, countryPage())

	require.NoError(t, r.Visit(context.Background(), scope.Vars{"country": "fr"}))

	debug := recorder.Find("debug")
	require.Len(t, debug, 1)
	require.Equal(t, "runner: wrote result", debug[0].Id)
	require.Equal(t, []any{filepath.Join(dir, "out", "fr.json"), 3}, debug[0].Params)
}
