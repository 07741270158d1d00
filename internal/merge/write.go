package merge

import (
	"bytes"
	"context"
	"database/sql"
	_ "embed"
	"encoding/csv"
	"fmt"
	"math"

	"scrapejob/internal/extract"
	"scrapejob/lib/fsutil"
)

//go:embed schema.sql
var Schema string

// Header is the union of the rows' columns in first-seen order.
func Header(rows []Row) []string {
	seen := map[string]bool{}
	var header []string
	for _, row := range rows {
		for _, column := range row.Columns {
			if seen[column] {
				continue
			}
			seen[column] = true
			header = append(header, column)
		}
	}
	return header
}

func cell(v extract.Value, ok bool) string {
	if !ok {
		return ""
	}
	if v.IsNumber() && (math.IsNaN(v.Float()) || math.IsInf(v.Float(), 0)) {
		return ""
	}
	return v.String()
}

// WriteCSV writes one line per row under the union header. Missing columns
// and values that are not numbers become empty cells.
func WriteCSV(path string, rows []Row) error {
	header := Header(rows)

	buf := bytes.Buffer{}
	w := csv.NewWriter(&buf)
	err := w.Write(header)
	if err != nil {
		return err
	}
	for _, row := range rows {
		line := make([]string, len(header))
		for i, column := range header {
			v, ok := row.Values[column]
			line[i] = cell(v, ok)
		}
		err = w.Write(line)
		if err != nil {
			return err
		}
	}
	w.Flush()
	err = w.Error()
	if err != nil {
		return err
	}
	return fsutil.WriteFile(path, buf.Bytes(), 0644)
}

// WriteJSON writes the rows as an array of objects.
func WriteJSON(path string, rows []Row) error {
	if rows == nil {
		rows = []Row{}
	}
	return fsutil.WriteJSON(path, rows)
}

func nullable(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func number(v extract.Value) sql.NullFloat64 {
	if !v.IsNumber() || math.IsNaN(v.Float()) || math.IsInf(v.Float(), 0) {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: v.Float(), Valid: true}
}

// WriteDB replaces the stored records of every given result file.
func WriteDB(ctx context.Context, db *sql.DB, results []Result) error {
	ctx, span := tracer.Start(ctx, "WriteDB")
	defer span.End()

	_, err := db.ExecContext(ctx, Schema)
	if err != nil {
		return fmt.Errorf("create schema: %w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, res := range results {
		_, err = tx.ExecContext(ctx, "delete from records where output = ?", res.Output)
		if err != nil {
			return fmt.Errorf("clear %s: %w", res.Output, err)
		}
		for i, rec := range res.Records {
			_, err = tx.ExecContext(
				ctx,
				"insert into records (output, position, name, year, unit, value, number) values (?, ?, ?, ?, ?, ?, ?)",
				res.Output, i, rec.Name, nullable(rec.Year), nullable(rec.Unit),
				cell(rec.Value, true), number(rec.Value),
			)
			if err != nil {
				return fmt.Errorf("insert %s: %w", res.Output, err)
			}
		}
	}
	return tx.Commit()
}
