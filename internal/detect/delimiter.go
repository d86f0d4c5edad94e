// Package detect sniffs the field separator of CSV exports.
package detect

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/go-faster/errors"
)

// Candidates are the separators spreadsheet exports actually use.
var Candidates = []rune{',', ';'}

// NoVerdict is reported by a classifier that could not decide.
const NoVerdict rune = 0

// AmbiguousError is returned when the classifiers disagree or neither could
// decide. The caller should ask for the delimiter explicitly.
type AmbiguousError struct {
	Frequency  rune
	Structural rune
}

func (e *AmbiguousError) Error() string {
	if e.Frequency == NoVerdict && e.Structural == NoVerdict {
		return "could not determine the CSV delimiter: both ',' and ';' are plausible, please choose one"
	}
	return fmt.Sprintf("could not determine the CSV delimiter: header frequency suggests %s but field counts suggest %s, please choose one",
		verdictString(e.Frequency), verdictString(e.Structural))
}

func verdictString(r rune) string {
	if r == NoVerdict {
		return "nothing"
	}
	return fmt.Sprintf("'%c'", r)
}

// Delimiter inspects the header and first data line of r and returns the
// separator. r is rewound to the start before returning.
func Delimiter(r io.ReadSeeker) (rune, error) {
	header, data, err := sampleLines(r)
	if _, serr := r.Seek(0, io.SeekStart); serr != nil && err == nil {
		err = errors.Wrap(serr, "rewind")
	}
	if err != nil {
		return NoVerdict, err
	}
	if header == "" {
		return NoVerdict, errors.New("empty file: no header line found")
	}

	byFreq := frequencyVerdict(header)
	byShape := structuralVerdict(header, data)

	switch {
	case byFreq != NoVerdict && byShape != NoVerdict:
		if byFreq == byShape {
			return byFreq, nil
		}
	case byFreq != NoVerdict:
		return byFreq, nil
	case byShape != NoVerdict:
		return byShape, nil
	}
	return NoVerdict, &AmbiguousError{Frequency: byFreq, Structural: byShape}
}

// sampleLines returns the first two lines that are neither blank nor an
// Excel "sep=" hint. A leading BOM is dropped.
func sampleLines(r io.Reader) (string, string, error) {
	br := bufio.NewReader(r)
	var lines []string
	first := true
	for len(lines) < 2 {
		line, err := br.ReadString('\n')
		if err != nil && err != io.EOF {
			return "", "", errors.Wrap(err, "read sample")
		}
		if first {
			line = strings.TrimPrefix(line, "\uFEFF")
			first = false
		}
		trimmed := strings.TrimSpace(line)
		if trimmed != "" && !strings.HasPrefix(strings.ToLower(trimmed), "sep=") {
			lines = append(lines, strings.TrimRight(line, "\r\n"))
		}
		if err == io.EOF {
			break
		}
	}
	switch len(lines) {
	case 0:
		return "", "", nil
	case 1:
		return lines[0], "", nil
	}
	return lines[0], lines[1], nil
}

func frequencyVerdict(header string) rune {
	counts := make(map[rune]int, len(Candidates))
	inQuotes := false
	for _, c := range header {
		if c == '"' {
			inQuotes = !inQuotes
			continue
		}
		if !inQuotes {
			counts[c]++
		}
	}
	comma, semi := counts[','], counts[';']
	switch {
	case comma > semi:
		return ','
	case semi > comma:
		return ';'
	}
	return NoVerdict
}

func structuralVerdict(header, data string) rune {
	var winners []rune
	for _, d := range Candidates {
		h := countFields(header, d)
		if h <= 1 {
			continue
		}
		if data != "" && countFields(data, d) != h {
			continue
		}
		winners = append(winners, d)
	}
	if len(winners) == 1 {
		return winners[0]
	}
	return NoVerdict
}

// countFields splits on delim outside double quotes.
func countFields(line string, delim rune) int {
	n := 1
	inQuotes := false
	for _, c := range line {
		switch {
		case c == '"':
			inQuotes = !inQuotes
		case c == delim && !inQuotes:
			n++
		}
	}
	return n
}
