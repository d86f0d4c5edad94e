package parser

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"io"
	"strings"

	"github.com/go-faster/errors"
)

type csvReader struct {
	r       *csv.Reader
	columns []string
}

func newCSVReader(src io.Reader, delimiter rune) (*csvReader, error) {
	br := bufio.NewReader(src)
	if b, err := br.Peek(3); err == nil && bytes.Equal(b, []byte{0xEF, 0xBB, 0xBF}) {
		_, _ = br.Discard(3)
	}
	if b, _ := br.Peek(4); strings.EqualFold(string(b), "sep=") {
		if _, err := br.ReadString('\n'); err != nil && err != io.EOF {
			return nil, errors.Wrap(err, "skip sep line")
		}
	}

	r := csv.NewReader(br)
	r.Comma = delimiter
	r.LazyQuotes = true
	r.FieldsPerRecord = -1

	for {
		rec, err := r.Read()
		if err == io.EOF {
			return nil, errors.New("empty file: no header line found")
		}
		if err != nil {
			return nil, errors.Wrap(err, "read header")
		}
		if _, ok := toRow(rec, rec); ok {
			return &csvReader{r: r, columns: headers(rec)}, nil
		}
	}
}

func (c *csvReader) Columns() []string {
	return c.columns
}

func (c *csvReader) Next() (map[string]string, error) {
	for {
		rec, err := c.r.Read()
		if err == io.EOF {
			return nil, io.EOF
		}
		if err != nil {
			return nil, errors.Wrap(err, "read csv record")
		}
		if row, ok := toRow(c.columns, rec); ok {
			return row, nil
		}
	}
}

func (c *csvReader) Close() error { return nil }
