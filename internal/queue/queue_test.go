package queue

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func finishedCount[T any](q Queue[T]) int {
	return q.Len() - q.NumWaiting()
}

func TestNextIsFirstUnfinished(t *testing.T) {
	q := New([]Item[string]{
		{Finished: true, Data: "a"},
		{Finished: false, Data: "b"},
		{Finished: true, Data: "c"},
		{Finished: false, Data: "d"},
	})

	next, ok := q.Next()
	require.True(t, ok)
	require.Equal(t, "b", next)
	require.Equal(t, 4, q.Len())
	require.Equal(t, 2, q.NumWaiting())
}

func TestFinishAdvancesExactlyOne(t *testing.T) {
	testCases := []struct {
		items    []Item[int]
		expected []Item[int]
	}{
		{
			items:    []Item[int]{{Data: 1}, {Data: 2}},
			expected: []Item[int]{{Finished: true, Data: 1}, {Data: 2}},
		},
		{
			items:    []Item[int]{{Finished: true, Data: 1}, {Data: 2}, {Data: 3}},
			expected: []Item[int]{{Finished: true, Data: 1}, {Finished: true, Data: 2}, {Data: 3}},
		},
		{
			items:    []Item[int]{{Data: 1}, {Finished: true, Data: 2}},
			expected: []Item[int]{{Finished: true, Data: 1}, {Finished: true, Data: 2}},
		},
	}

	for _, test := range testCases {
		q := New(test.items)
		before := finishedCount(q)
		next, ok := q.Next()
		require.True(t, ok)

		finished := q.Finish()
		require.Equal(t, before+1, finishedCount(finished))

		diff := cmp.Diff(test.expected, finished.Items())
		if diff != "" {
			t.Fatal(diff)
		}

		// the transitioned item is the one Next returned
		for i, item := range finished.Items() {
			if item.Finished != q.Items()[i].Finished {
				require.Equal(t, next, item.Data)
			}
		}
	}
}

func TestFinishDrainedIsNoop(t *testing.T) {
	items := []Item[string]{{Finished: true, Data: "a"}, {Finished: true, Data: "b"}}
	q := New(items)

	_, ok := q.Next()
	require.False(t, ok)

	finished := q.Finish()
	require.Equal(t, q.Items(), finished.Items())
	require.Equal(t, Queue[string]{}.Finish().Len(), 0)
}

func TestSnapshotsAreImmutable(t *testing.T) {
	q := New[string](nil).AddData("a", "b")
	q2 := q.Finish()
	q3 := q2.AddData("c")

	require.Equal(t, 2, q.NumWaiting())
	require.Equal(t, 1, q2.NumWaiting())
	require.Equal(t, 2, q2.Len())
	require.Equal(t, 3, q3.Len())

	items := q3.Items()
	items[0].Finished = false
	require.True(t, q3.Items()[0].Finished)
}

func TestAddPreservesOrder(t *testing.T) {
	q := New([]Item[string]{{Finished: true, Data: "a"}}).
		Add(Item[string]{Data: "b"}).
		AddData("c", "d")

	var got []string
	for _, item := range q.Items() {
		got = append(got, item.Data)
	}
	require.Equal(t, []string{"a", "b", "c", "d"}, got)

	next, ok := q.Next()
	require.True(t, ok)
	require.Equal(t, "b", next)
}

func TestFind(t *testing.T) {
	q := New([]Item[string]{{Finished: true, Data: "apple"}, {Data: "banana"}})

	found, ok := q.Find(func(s string) bool { return s == "apple" })
	require.True(t, ok)
	require.Equal(t, "apple", found)

	_, ok = q.Find(func(s string) bool { return s == "cherry" })
	require.False(t, ok)
}

func TestFileStoreMissingIsEmpty(t *testing.T) {
	dir := t.TempDir()
	store := NewFileStore[map[string]any](filepath.Join(dir, "nested", "queue.json"))

	q, err := store.Load(context.Background())
	require.NoError(t, err)
	require.Equal(t, 0, q.Len())

	_, err = os.Stat(filepath.Join(dir, "nested"))
	require.NoError(t, err)
}

func TestFileStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewFileStore[map[string]any](filepath.Join(t.TempDir(), "queue.json"))

	q := New[map[string]any](nil).AddData(
		map[string]any{"id": float64(1)},
		map[string]any{"id": float64(2), "name": "two"},
	).Finish()
	require.NoError(t, store.Save(ctx, q))

	loaded, err := store.Load(ctx)
	require.NoError(t, err)
	diff := cmp.Diff(q.Items(), loaded.Items())
	if diff != "" {
		t.Fatal(diff)
	}
}

func TestFileStoreReadsJSON5(t *testing.T) {
	path := filepath.Join(t.TempDir(), "queue.json5")
	err := os.WriteFile(path, []byte(`[
		// hand edited
		{finished: true, data: {id: 1}},
		{finished: false, data: {id: 2},},
	]`), 0644)
	require.NoError(t, err)

	q, err := NewFileStore[map[string]any](path).Load(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, q.Len())
	require.Equal(t, 1, q.NumWaiting())

	next, ok := q.Next()
	require.True(t, ok)
	require.Equal(t, float64(2), next["id"])
}

func TestFileStoreCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "queue.json")
	require.NoError(t, os.WriteFile(path, []byte(`[{finished: `), 0644))

	_, err := NewFileStore[map[string]any](path).Load(context.Background())
	require.Error(t, err)
}

func TestFileStoreRemove(t *testing.T) {
	ctx := context.Background()
	store := NewFileStore[string](filepath.Join(t.TempDir(), "queue.json"))

	require.NoError(t, store.Save(ctx, New[string](nil).AddData("a")))
	require.NoError(t, store.Remove(ctx))
	_, err := os.Stat(store.Path)
	require.True(t, os.IsNotExist(err))

	// removing twice is fine
	require.NoError(t, store.Remove(ctx))
}
