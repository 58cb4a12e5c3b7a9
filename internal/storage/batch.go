package storage

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"
)

// CopyFn writes one batch of rows aligned to columns and reports how many
// were written. Repository.CopyFrom satisfies it.
type CopyFn func(ctx context.Context, columns []string, rows [][]any) (int64, error)

// BatchStats is what LoadBatches wrote before it returned.
type BatchStats struct {
	Rows    int64 // sum of CopyFn results, including a failed batch's partial count
	Batches int64 // batches that CopyFn accepted without error
}

var (
	errBatchSize = errors.New("storage: batch size must be > 0")
	errNoCopyFn  = errors.New("storage: nil CopyFn")
)

// LoadBatches drains in, hands copyFn batches of at most size rows, and stops
// at the first copy error or when ctx is done. A short final batch is
// flushed when in closes; rows still buffered at cancellation are dropped.
func LoadBatches(ctx context.Context, columns []string, in <-chan []any, size int, copyFn CopyFn) (BatchStats, error) {
	var st BatchStats
	if size <= 0 {
		return st, errBatchSize
	}
	if copyFn == nil {
		return st, errNoCopyFn
	}

	log := logrus.WithField("columns", len(columns))
	pending := make([][]any, 0, size)
	started := time.Now()

	flush := func() error {
		if len(pending) == 0 {
			return nil
		}
		t0 := time.Now()
		n, err := copyFn(ctx, columns, pending)
		st.Rows += n
		if err != nil {
			log.WithFields(logrus.Fields{"batch_rows": len(pending), "written": st.Rows}).
				WithError(err).Error("storage: batch failed")
			return err
		}
		st.Batches++
		took := time.Since(t0)
		rps := int64(0)
		if took > 0 {
			rps = int64(float64(n) / took.Seconds())
		}
		log.WithFields(logrus.Fields{
			"batch":   st.Batches,
			"rows":    n,
			"written": st.Rows,
			"rps":     rps,
			"took":    took.Truncate(time.Microsecond),
		}).Debug("storage: batch written")
		// A fresh slice: copyFn may keep the rows it was given.
		pending = make([][]any, 0, size)
		return nil
	}

	for {
		select {
		case <-ctx.Done():
			return st, ctx.Err()
		case row, ok := <-in:
			if !ok {
				err := flush()
				if err == nil {
					log.WithFields(logrus.Fields{
						"written": st.Rows,
						"batches": st.Batches,
						"elapsed": time.Since(started).Truncate(time.Millisecond),
					}).Debug("storage: input drained")
				}
				return st, err
			}
			pending = append(pending, row)
			if len(pending) == size {
				if err := flush(); err != nil {
					return st, err
				}
			}
		}
	}
}
