package job

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"scrapejob/internal/queue"
	"scrapejob/internal/render"
	"scrapejob/internal/scope"

	"github.com/stretchr/testify/require"
)

func writeJob(t *testing.T, dir string, contexts string) string {
	path := filepath.Join(dir, "job.json5")
	contents := fmt.Sprintf(`{
		options: {
			queue: %q,
			tplJson: %q,
			merge: {delim: "|", csv: "all.csv"},
		},
		contexts: %s,
		action: {
			tplUrl: "https://example.com/{{country}}",
			data: [
				{name: "capital", value: {selector: "#capital"}},
			],
		},
	}`,
		filepath.Join(dir, "state", "queue.json"),
		filepath.Join(dir, "out", "{{country}}.json"),
		contexts,
	)
	require.NoError(t, os.WriteFile(path, []byte(contents), 0644))
	return path
}

func TestLoadFresh(t *testing.T) {
	dir := t.TempDir()
	path := writeJob(t, dir, `[{country: "fr"}, {country: "de"}]`)

	j, q, err := Load(context.Background(), path)
	require.NoError(t, err)
	require.Equal(t, 2, q.Len())
	require.Equal(t, 2, q.NumWaiting())
	require.Equal(t, "|", j.Delim())
	require.Equal(t, DefaultSettle, j.SettleDuration())
	require.True(t, j.Headless())

	next, ok := q.Next()
	require.True(t, ok)
	require.Equal(t, "fr", next["country"])

	outputs, err := j.Outputs(render.NewHandlebars())
	require.NoError(t, err)
	require.Equal(t, []string{
		filepath.Join(dir, "out", "fr.json"),
		filepath.Join(dir, "out", "de.json"),
	}, outputs)
}

func TestLoadEmptyQueueLocation(t *testing.T) {
	dir := t.TempDir()
	path := writeJob(t, dir, `[]`)

	_, q, err := Load(context.Background(), path)
	require.NoError(t, err)
	require.Equal(t, 0, q.Len())
}

func TestLoadMergesPersistedQueue(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	path := writeJob(t, dir, `[{country: "fr"}, {country: "de", year: 2019}, {country: "it"}]`)

	j, err := Read(path)
	require.NoError(t, err)

	persisted := queue.New([]queue.Item[scope.Vars]{
		{Finished: true, Data: scope.Vars{"country": "fr"}},
		{Finished: false, Data: scope.Vars{"country": "es"}},
		{Finished: false, Data: scope.Vars{"country": "de", "year": float64(2019)}},
	})
	require.NoError(t, j.Store().Save(ctx, persisted))

	_, q, err := Load(ctx, path)
	require.NoError(t, err)

	items := q.Items()
	require.Len(t, items, 4)
	require.Equal(t, persisted.Items(), items[:3])
	require.Equal(t, queue.Item[scope.Vars]{Data: scope.Vars{"country": "it"}}, items[3])

	next, ok := q.Next()
	require.True(t, ok)
	require.Equal(t, "es", next["country"])
}

func TestEnqueueKeepsDeclaredDuplicates(t *testing.T) {
	q := Enqueue(queue.Queue[scope.Vars]{}, []scope.Vars{{"a": 1}, {"a": 1}})
	require.Equal(t, 2, q.Len())

	q = Enqueue(q, []scope.Vars{{"a": 1}, {"a": 2}})
	require.Equal(t, 3, q.Len())
}

func TestLocalOverride(t *testing.T) {
	dir := t.TempDir()
	path := writeJob(t, dir, `[{country: "fr"}]`)
	require.NoError(t, os.WriteFile(
		filepath.Join(dir, "job.local.json5"),
		[]byte(`{options: {settle: 0, driver: "static"}, contexts: [{country: "nl"}]}`),
		0644,
	))

	j, err := Read(path)
	require.NoError(t, err)
	require.Equal(t, time.Duration(0), j.SettleDuration())
	require.Equal(t, "static", j.Options.Driver)
	require.Equal(t, []scope.Vars{{"country": "nl"}}, j.Contexts)
	require.Equal(t, "https://example.com/{{country}}", j.Action.TplUrl)
	require.Len(t, j.Action.Data, 1)
}

func TestReadErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := Read(filepath.Join(dir, "missing.json5"))
	require.ErrorIs(t, err, os.ErrNotExist)

	invalid := filepath.Join(dir, "invalid.json5")
	require.NoError(t, os.WriteFile(invalid, []byte(`{options: {queue: "q.json"}}`), 0644))
	_, err = Read(invalid)
	require.ErrorContains(t, err, "tplJson")

	corrupt := filepath.Join(dir, "corrupt.json5")
	require.NoError(t, os.WriteFile(corrupt, []byte(`{options: `), 0644))
	_, err = Read(corrupt)
	require.Error(t, err)
}

func TestLoadCorruptQueue(t *testing.T) {
	dir := t.TempDir()
	path := writeJob(t, dir, `[{country: "fr"}]`)
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "state"), 0777))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "state", "queue.json"), []byte(`[{`), 0644))

	_, _, err := Load(context.Background(), path)
	require.Error(t, err)
}
