package etl

import (
	"context"
	"encoding/json"

	"github.com/go-faster/errors"

	"github.com/BartekS5/salesimport/pkg/models"
)

// BatchWriter buffers rows and hands them to the store every size rows, so
// ingestion memory does not grow with the file.
type BatchWriter struct {
	store     RowStore
	sessionID int64
	size      int
	buf       []models.ImportRow
	flushed   int
}

func NewBatchWriter(store RowStore, sessionID int64, size int) *BatchWriter {
	if size <= 0 {
		size = DefaultBatchSize
	}
	return &BatchWriter{
		store:     store,
		sessionID: sessionID,
		size:      size,
		buf:       make([]models.ImportRow, 0, size),
	}
}

// Write appends row with the next row index and flushes a full buffer.
func (w *BatchWriter) Write(ctx context.Context, row map[string]string) error {
	data, err := json.Marshal(row)
	if err != nil {
		return errors.Wrap(err, "encode row")
	}
	w.buf = append(w.buf, models.ImportRow{
		SessionID: w.sessionID,
		RowIndex:  w.Count(),
		RowData:   string(data),
	})
	if len(w.buf) >= w.size {
		return w.Flush(ctx)
	}
	return nil
}

// Flush writes any buffered rows.
func (w *BatchWriter) Flush(ctx context.Context) error {
	if len(w.buf) == 0 {
		return nil
	}
	if err := w.store.InsertRows(ctx, w.buf); err != nil {
		return errors.Wrapf(err, "flush rows %d-%d", w.flushed, w.flushed+len(w.buf)-1)
	}
	w.flushed += len(w.buf)
	w.buf = make([]models.ImportRow, 0, w.size)
	return nil
}

// Count is the number of rows written so far, buffered ones included.
func (w *BatchWriter) Count() int {
	return w.flushed + len(w.buf)
}
