package etl

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-faster/errors"

	"github.com/BartekS5/salesimport/pkg/logger"
)

// DefaultBatchSize bounds how many rows are held in memory at once.
const DefaultBatchSize = 500

type Pipeline struct {
	Extractor Extractor
	Loader    Loader
	BatchSize int
}

func NewPipeline(ext Extractor, loader Loader, batchSize int) *Pipeline {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Pipeline{
		Extractor: ext,
		Loader:    loader,
		BatchSize: batchSize,
	}
}

// Run feeds every page from the extractor to the loader, in order, and
// returns the number of rows seen.
func (p *Pipeline) Run(ctx context.Context) (int, error) {
	offset := 0
	total := 0
	start := time.Now()

	for {
		if err := ctx.Err(); err != nil {
			return total, err
		}

		data, next, err := p.Extractor.Extract(ctx, p.BatchSize, offset)
		if err != nil {
			logger.Errorf("Extraction failed at offset %d: %v", offset, err)
			return total, errors.Wrapf(err, "extract at offset %d", offset)
		}
		if len(data) == 0 {
			break
		}

		if err := p.Loader.Load(ctx, offset, data); err != nil {
			logger.Errorf("Loading failed at offset %d: %v", offset, err)
			return total, errors.Wrapf(err, "load at offset %d", offset)
		}

		total += len(data)
		offset = next

		rate := 0.0
		if d := time.Since(start).Seconds(); d > 0 {
			rate = float64(total) / d
		}
		logger.Debugf("Batch done. Total: %d. Rate: %.2f rows/sec. Next offset: %d", total, rate, offset)

		if len(data) < p.BatchSize {
			break
		}
	}
	return total, nil
}

// SessionExtractor pages the stored rows of one session back out.
type SessionExtractor struct {
	Store     RowStore
	SessionID int64
}

func (s *SessionExtractor) Extract(ctx context.Context, batchSize int, offset int) ([]map[string]string, int, error) {
	rows, err := s.Store.Rows(ctx, s.SessionID, offset, batchSize)
	if err != nil {
		return nil, offset, err
	}
	out := make([]map[string]string, 0, len(rows))
	for _, r := range rows {
		m, err := DecodeRow(r.RowData)
		if err != nil {
			return nil, offset, errors.Wrapf(err, "row %d", r.RowIndex)
		}
		out = append(out, m)
	}
	return out, offset + len(out), nil
}

// DecodeRow parses the stored JSON representation of a row.
func DecodeRow(data string) (map[string]string, error) {
	m := make(map[string]string)
	if data == "" {
		return m, nil
	}
	if err := json.Unmarshal([]byte(data), &m); err != nil {
		return nil, err
	}
	return m, nil
}
