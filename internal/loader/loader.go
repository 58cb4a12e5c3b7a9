// Package loader moves rows between CSV/JSON-lines files and a storage
// backend, running every array cell through its declared field.
//
// Load is a two-stage pipeline: a reader stage parses, cleans, validates and
// encodes rows; a writer stage groups them into batches for the repository.
// Invalid rows are counted and logged, never fatal.
package loader

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
	"github.com/zeebo/xxh3"
	"golang.org/x/sync/errgroup"

	"pgarray/internal/config"
	"pgarray/internal/metrics"
	"pgarray/internal/storage"
	"pgarray/pkg/typecast"
)

// maxLoggedRejects caps per-row warnings; the Summary still counts them all.
const maxLoggedRejects = 100

// Summary reports what a Load did.
type Summary struct {
	Rows       int64 // data rows read, excluding the header
	Inserted   int64
	Rejected   int64
	Duplicates int64
	Batches    int64
	Elapsed    time.Duration
}

// RowError describes why one input row was rejected.
type RowError struct {
	Line   int
	Column string
	Err    error
}

func (e *RowError) Error() string {
	if e.Column == "" {
		return fmt.Sprintf("line %d: %v", e.Line, e.Err)
	}
	return fmt.Sprintf("line %d: column %s: %v", e.Line, e.Column, e.Err)
}

func (e *RowError) Unwrap() error { return e.Err }

// Load reads CSV from r, whose header row names the declared columns, and
// writes the rows into repo. Columns may appear in any order; extra CSV
// columns are ignored.
func Load(ctx context.Context, decl config.Declaration, repo storage.Repository, r io.Reader) (Summary, error) {
	start := time.Now()
	job := decl.JobName()

	enc, err := newEncoder(decl, repo.Dialect().NativeArrays())
	if err != nil {
		return Summary{}, err
	}

	cr := csv.NewReader(r)
	cr.ReuseRecord = true
	header, err := cr.Read()
	if err != nil {
		return Summary{}, fmt.Errorf("loader: read csv header: %w", err)
	}
	if err := enc.bind(header); err != nil {
		return Summary{}, err
	}

	var (
		sum     Summary
		seen    mapset.Set[uint64]
		columns = decl.ColumnNames()
		rows    = make(chan []any, channelBuffer(decl))
	)
	if decl.Runtime.Dedup {
		seen = mapset.NewThreadUnsafeSet[uint64]()
	}

	reject := func(re *RowError) {
		sum.Rejected++
		if sum.Rejected <= maxLoggedRejects {
			logrus.WithFields(logrus.Fields{"job": job, "line": re.Line, "column": re.Column}).
				WithError(re.Err).Warn("loader: row rejected")
		}
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer close(rows)
		for line := 2; ; line++ {
			rec, err := cr.Read()
			if errors.Is(err, io.EOF) {
				return nil
			}
			if err != nil {
				if errors.Is(err, csv.ErrFieldCount) {
					sum.Rows++
					reject(&RowError{Line: line, Err: err})
					continue
				}
				return fmt.Errorf("loader: read csv line %d: %w", line, err)
			}
			sum.Rows++

			row, rerr := enc.encode(rec)
			if rerr != nil {
				rerr.Line = line
				reject(rerr)
				continue
			}
			if seen != nil && !seen.Add(hashRow(row)) {
				sum.Duplicates++
				continue
			}

			select {
			case rows <- row:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
	})

	g.Go(func() error {
		st, err := storage.LoadBatches(gctx, columns, rows, decl.BatchSize(), repo.CopyFrom)
		sum.Inserted, sum.Batches = st.Rows, st.Batches
		return err
	})

	err = g.Wait()
	sum.Elapsed = time.Since(start)

	metrics.RecordRow(job, metrics.RowsRead, sum.Rows)
	metrics.RecordRow(job, metrics.RowsInserted, sum.Inserted)
	metrics.RecordRow(job, metrics.RowsRejected, sum.Rejected)
	metrics.RecordRow(job, metrics.RowsDuplicates, sum.Duplicates)
	metrics.RecordBatches(job, sum.Batches)

	logrus.WithFields(logrus.Fields{
		"job":        job,
		"rows":       sum.Rows,
		"inserted":   sum.Inserted,
		"rejected":   sum.Rejected,
		"duplicates": sum.Duplicates,
		"batches":    sum.Batches,
		"elapsed":    sum.Elapsed.Truncate(time.Millisecond),
	}).Info("loader: load finished")

	if err != nil {
		return sum, fmt.Errorf("loader: %w", err)
	}
	return sum, nil
}

func channelBuffer(decl config.Declaration) int {
	if decl.Runtime.ChannelBuffer > 0 {
		return decl.Runtime.ChannelBuffer
	}
	return decl.BatchSize()
}

// hashRow hashes the encoded row. Cells are tagged so nil and "" differ.
func hashRow(row []any) uint64 {
	var buf bytes.Buffer
	for _, c := range row {
		if c == nil {
			buf.WriteByte(0)
			continue
		}
		buf.WriteByte(1)
		buf.WriteString(typecast.Format(c))
		buf.WriteByte(0x1f)
	}
	return xxh3.Hash(buf.Bytes())
}

// looksStructured reports whether a cell holds a whole array (JSON or an
// array literal) rather than delimited text.
func looksStructured(s string) bool {
	switch {
	case strings.HasPrefix(s, "{"):
		return true
	case strings.HasPrefix(s, "["):
		return gjson.Valid(s) || strings.Contains(s, "]={")
	}
	return false
}
