package queue

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"scrapejob/lib/fsutil"

	"github.com/titanous/json5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("scrapejob.internal.queue")

// FileStore persists a queue as a structured-text file holding the ordered
// list of {finished, data} items.
type FileStore[T any] struct {
	Path string
}

func NewFileStore[T any](path string) FileStore[T] {
	return FileStore[T]{Path: path}
}

// Load reads the persisted queue. A missing file is an empty queue, the
// parent directory is created so later saves succeed.
func (s FileStore[T]) Load(ctx context.Context) (Queue[T], error) {
	_, span := tracer.Start(ctx, "FileStore:Load")
	defer span.End()
	span.SetAttributes(attribute.String("path", s.Path))

	err := os.MkdirAll(filepath.Dir(s.Path), 0777)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to create queue directory")
		return Queue[T]{}, err
	}

	contents, err := os.ReadFile(s.Path)
	if errors.Is(err, os.ErrNotExist) {
		span.AddEvent("queue file not found, starting empty")
		return Queue[T]{}, nil
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to read queue file")
		return Queue[T]{}, err
	}

	var items []Item[T]
	err = json5.Unmarshal(contents, &items)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to parse queue file")
		return Queue[T]{}, fmt.Errorf("parse queue %s: %w", s.Path, err)
	}
	span.SetAttributes(attribute.Int("items", len(items)))
	return New(items), nil
}

// Save replaces the persisted queue with the given snapshot.
func (s FileStore[T]) Save(ctx context.Context, q Queue[T]) error {
	_, span := tracer.Start(ctx, "FileStore:Save")
	defer span.End()

	items := q.Items()
	if items == nil {
		items = []Item[T]{}
	}
	err := fsutil.WriteJSON(s.Path, items)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to write queue file")
		return fmt.Errorf("save queue %s: %w", s.Path, err)
	}
	return nil
}

// Remove deletes the persisted queue, a missing file is not an error.
func (s FileStore[T]) Remove(ctx context.Context) error {
	_, span := tracer.Start(ctx, "FileStore:Remove")
	defer span.End()

	err := os.Remove(s.Path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to remove queue file")
		return err
	}
	return nil
}
