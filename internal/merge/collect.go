// Package merge folds the per-context result files of a job into combined
// CSV, JSON and SQL outputs.
package merge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"

	"scrapejob/internal/extract"
	"scrapejob/internal/telemetry"

	"github.com/titanous/json5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var tracer = otel.Tracer("scrapejob.internal.merge")

// Result is the content of one result file.
type Result struct {
	Output  string
	Records []extract.Record
}

// Collect reads every result file in order. Files that cannot be read or
// parsed are reported and skipped.
func Collect(ctx context.Context, paths []string, api telemetry.API) []Result {
	_, span := tracer.Start(ctx, "Collect")
	defer span.End()

	results := make([]Result, 0, len(paths))
	for _, path := range paths {
		contents, err := os.ReadFile(path)
		if err != nil {
			api.ReportWarning("collect.read", path, err)
			continue
		}
		var records []extract.Record
		err = json5.Unmarshal(contents, &records)
		if err != nil {
			api.ReportWarning("collect.parse", path, err)
			continue
		}
		results = append(results, Result{Output: path, Records: records})
	}
	span.SetAttributes(
		attribute.Int("requested", len(paths)),
		attribute.Int("collected", len(results)),
	)
	return results
}

// Row is one result file flattened into named columns, in first-seen order.
type Row struct {
	Columns []string
	Values  map[string]extract.Value
}

func (r *Row) set(column string, v extract.Value) {
	if r.Values == nil {
		r.Values = map[string]extract.Value{}
	}
	if _, ok := r.Values[column]; !ok {
		r.Columns = append(r.Columns, column)
	}
	r.Values[column] = v
}

// Flatten turns records into a row. A record's value lands in the column
// `name`, or `name<delim>year` when it has a year. A unit lands in a column
// named after itself, `name<delim>unit`, so differing units of one name stay
// apart. Later records overwrite earlier ones on the same column.
func Flatten(records []extract.Record, delim string) Row {
	var row Row
	for _, rec := range records {
		column := rec.Name
		if rec.Year != nil {
			column = rec.Name + delim + *rec.Year
		}
		row.set(column, rec.Value)
		if rec.Unit != nil {
			row.set(rec.Name+delim+*rec.Unit, extract.String(*rec.Unit))
		}
	}
	return row
}

// Rows flattens every result.
func Rows(results []Result, delim string) []Row {
	rows := make([]Row, len(results))
	for i, res := range results {
		rows[i] = Flatten(res.Records, delim)
	}
	return rows
}

// MarshalJSON keeps the column order.
func (r Row) MarshalJSON() ([]byte, error) {
	buf := bytes.Buffer{}
	buf.WriteByte('{')
	for i, column := range r.Columns {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(column)
		if err != nil {
			return nil, err
		}
		value, err := json.Marshal(r.Values[column])
		if err != nil {
			return nil, fmt.Errorf("column %s: %w", column, err)
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
