package etl

import (
	"context"

	"github.com/BartekS5/salesimport/pkg/models"
)

// RowStore persists the raw rows of an import session.
type RowStore interface {
	InsertRows(ctx context.Context, rows []models.ImportRow) error
	// Rows returns up to limit rows of the session ordered by RowIndex,
	// starting at offset.
	Rows(ctx context.Context, sessionID int64, offset, limit int) ([]models.ImportRow, error)
	CountRows(ctx context.Context, sessionID int64) (int64, error)
	DeleteRows(ctx context.Context, sessionID int64) error
}

// Extractor returns the page of decoded rows starting at offset and the
// offset of the next page.
type Extractor interface {
	Extract(ctx context.Context, batchSize int, offset int) ([]map[string]string, int, error)
}

// Loader consumes one page. offset is the index of the first row.
type Loader interface {
	Load(ctx context.Context, offset int, rows []map[string]string) error
}

// LoaderFunc adapts a function to Loader.
type LoaderFunc func(ctx context.Context, offset int, rows []map[string]string) error

func (f LoaderFunc) Load(ctx context.Context, offset int, rows []map[string]string) error {
	return f(ctx, offset, rows)
}
