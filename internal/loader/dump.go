package loader

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/sirupsen/logrus"

	"pgarray/internal/config"
	"pgarray/internal/metrics"
	"pgarray/internal/storage"
	"pgarray/pkg/arrayfield"
)

// Dump writes every row of the declared table to w as one JSON object per
// line, keyed by column name. Array columns come out as typed nested lists
// whichever way the backend stores them.
func Dump(ctx context.Context, decl config.Declaration, repo storage.Repository, w io.Writer) (int64, error) {
	cols, err := decl.BuildFields()
	if err != nil {
		return 0, fmt.Errorf("loader: %w", err)
	}
	fields := make(map[string]*arrayfield.Field, len(cols))
	for _, c := range cols {
		fields[c.Spec.Name] = c.Field
	}

	names := decl.ColumnNames()
	q := storage.Query{Columns: names, Arrays: storage.ArrayColumns(decl)}

	bw := bufio.NewWriter(w)
	enc := json.NewEncoder(bw)
	var n int64

	err = repo.Rows(ctx, q, func(row []any) error {
		obj := make(map[string]any, len(names))
		for i, name := range names {
			v, err := dumpCell(fields[name], row[i])
			if err != nil {
				return fmt.Errorf("row %d: column %s: %w", n+1, name, err)
			}
			obj[name] = v
		}
		if err := enc.Encode(obj); err != nil {
			return fmt.Errorf("row %d: encode: %w", n+1, err)
		}
		n++
		return nil
	})
	if err != nil {
		return n, fmt.Errorf("loader: dump: %w", err)
	}
	if err := bw.Flush(); err != nil {
		return n, fmt.Errorf("loader: dump: flush: %w", err)
	}

	metrics.RecordRow(decl.JobName(), metrics.RowsDumped, n)
	logrus.WithFields(logrus.Fields{"job": decl.JobName(), "rows": n}).Info("loader: dump finished")
	return n, nil
}

// dumpCell converts one stored value. f is nil for scalar columns.
func dumpCell(f *arrayfield.Field, v any) (any, error) {
	if f == nil {
		if b, ok := v.([]byte); ok {
			return string(b), nil
		}
		return v, nil
	}
	a := f.Array(nil)
	if err := a.Scan(v); err != nil {
		return nil, err
	}
	return a.V, nil
}
