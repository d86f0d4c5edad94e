// Package parser reads CSV and XLSX uploads as header-keyed rows.
package parser

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-faster/errors"

	"github.com/BartekS5/salesimport/internal/detect"
)

const (
	FileTypeCSV  = "csv"
	FileTypeXLSX = "xlsx"
)

var ErrUnsupportedFileType = errors.New("unsupported file type")

// RowReader yields one row per Next call and io.EOF after the last one.
type RowReader interface {
	Columns() []string
	Next() (map[string]string, error)
	Close() error
}

// DetectFileType decides by extension first and sniffs the content when the
// extension says nothing. r is rewound afterwards.
func DetectFileType(name string, r io.ReadSeeker) (string, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv", ".txt":
		return FileTypeCSV, nil
	case ".xlsx", ".xlsm":
		return FileTypeXLSX, nil
	}

	mime, err := mimetype.DetectReader(r)
	if _, serr := r.Seek(0, io.SeekStart); serr != nil && err == nil {
		err = serr
	}
	if err != nil {
		return "", errors.Wrap(err, "sniff file type")
	}
	switch {
	case mime.Is("application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"):
		return FileTypeXLSX, nil
	case mime.Is("text/csv"), mime.Is("text/plain"):
		return FileTypeCSV, nil
	}
	return "", errors.Wrapf(ErrUnsupportedFileType, "%s (%s)", name, mime.String())
}

// Open returns a reader for r. For CSV a zero delimiter means detect it.
func Open(fileType string, r io.ReadSeeker, delimiter rune) (RowReader, error) {
	switch fileType {
	case FileTypeCSV:
		if delimiter == 0 {
			d, err := detect.Delimiter(r)
			if err != nil {
				return nil, err
			}
			delimiter = d
		}
		return newCSVReader(r, delimiter)
	case FileTypeXLSX:
		return newXLSXReader(r)
	}
	return nil, errors.Wrap(ErrUnsupportedFileType, fileType)
}

// headers trims names, names blank columns and makes duplicates unique.
func headers(raw []string) []string {
	out := make([]string, len(raw))
	seen := make(map[string]int, len(raw))
	for i, h := range raw {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\uFEFF"))
		if h == "" {
			h = fmt.Sprintf("Column%d", i+1)
		}
		seen[h]++
		if n := seen[h]; n > 1 {
			h = fmt.Sprintf("%s_%d", h, n)
		}
		out[i] = h
	}
	return out
}

// toRow maps values onto columns. Missing trailing cells become "", extra
// cells are dropped. ok is false when every cell is blank.
func toRow(columns, values []string) (row map[string]string, ok bool) {
	row = make(map[string]string, len(columns))
	for i, c := range columns {
		v := ""
		if i < len(values) {
			v = strings.TrimSpace(values[i])
		}
		if v != "" {
			ok = true
		}
		row[c] = v
	}
	return row, ok
}
