package parser

import (
	"io"

	"github.com/go-faster/errors"
	"github.com/xuri/excelize/v2"
)

type xlsxReader struct {
	f       *excelize.File
	rows    *excelize.Rows
	columns []string
	done    bool
}

// newXLSXReader streams the first sheet.
func newXLSXReader(src io.Reader) (*xlsxReader, error) {
	f, err := excelize.OpenReader(src)
	if err != nil {
		return nil, errors.Wrap(err, "open xlsx")
	}
	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		f.Close()
		return nil, errors.New("xlsx has no sheets")
	}
	rows, err := f.Rows(sheets[0])
	if err != nil {
		f.Close()
		return nil, errors.Wrapf(err, "read sheet %s", sheets[0])
	}

	x := &xlsxReader{f: f, rows: rows}
	for rows.Next() {
		cols, err := rows.Columns()
		if err != nil {
			x.Close()
			return nil, errors.Wrap(err, "read header")
		}
		if _, ok := toRow(cols, cols); ok {
			x.columns = headers(cols)
			return x, nil
		}
	}
	x.Close()
	return nil, errors.New("empty file: no header line found")
}

func (x *xlsxReader) Columns() []string {
	return x.columns
}

// Next skips blank rows anywhere in the sheet; iteration ends at the last
// row excelize reports.
func (x *xlsxReader) Next() (map[string]string, error) {
	if x.done {
		return nil, io.EOF
	}
	for x.rows.Next() {
		cols, err := x.rows.Columns()
		if err != nil {
			return nil, errors.Wrap(err, "read xlsx row")
		}
		row, ok := toRow(x.columns, cols)
		if ok {
			return row, nil
		}
	}
	x.done = true
	if err := x.rows.Error(); err != nil {
		return nil, errors.Wrap(err, "iterate xlsx rows")
	}
	return nil, io.EOF
}

func (x *xlsxReader) Close() error {
	var err error
	if x.rows != nil {
		err = x.rows.Close()
	}
	if cerr := x.f.Close(); err == nil {
		err = cerr
	}
	return err
}
