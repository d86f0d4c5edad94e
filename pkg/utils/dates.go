package utils

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/go-faster/errors"
)

// dateLayouts is tried in order; US before Brazilian so "01/02/2025" is
// January 2nd and "31/08/2025" still falls through to the day-first layouts.
var dateLayouts = []string{
	"01/02/2006",
	"1/2/2006",
	"01/02/2006 15:04:05",
	"1/2/2006 15:04:05",
	"01/02/2006 15:04",
	"1/2/2006 15:04",
	"2006-01-02",
	"2006-1-2",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006/01/02",
	"2006/1/2",
	"02/01/2006",
	"2/1/2006",
	"02/01/2006 15:04:05",
	"2/1/2006 15:04:05",
	"02/01/2006 15:04",
	"01-02-2006",
	"1-2-2006",
	"02-01-2006",
	"2-1-2006",
	"02.01.2006",
}

var generalLayouts = []string{
	time.RFC3339,
	time.RFC3339Nano,
	time.RFC1123,
	time.RFC1123Z,
	"Jan 2, 2006",
	"January 2, 2006",
	"2 Jan 2006",
	"02-Jan-2006",
}

var excelEpoch = time.Date(1899, 12, 30, 0, 0, 0, 0, time.UTC)

// maxExcelSerial is 9999-12-31.
const maxExcelSerial = 2958465

// ParseDate tries the preferred layouts, then the common layouts, then an
// Excel serial number, then a handful of general formats. Results are UTC.
func ParseDate(s string, preferred ...string) (time.Time, error) {
	v := strings.TrimSpace(s)
	if v == "" {
		return time.Time{}, errors.New("empty date")
	}

	for _, layout := range preferred {
		if layout == "" {
			continue
		}
		if t, err := time.Parse(layout, v); err == nil {
			return t, nil
		}
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t, nil
		}
	}
	if f, err := strconv.ParseFloat(v, 64); err == nil {
		if t, ok := FromExcelSerial(f); ok {
			return t, nil
		}
	}
	for _, layout := range generalLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, errors.Errorf("unable to parse date %q", s)
}

// FromExcelSerial converts a 1900-system spreadsheet serial. Serials before
// 61 are shifted by a day because Excel counts the non-existent 1900-02-29.
func FromExcelSerial(serial float64) (time.Time, bool) {
	if serial <= 0 || serial > maxExcelSerial || math.IsNaN(serial) {
		return time.Time{}, false
	}
	days := math.Floor(serial)
	if days < 61 {
		days++
	}
	frac := serial - math.Floor(serial)
	t := excelEpoch.AddDate(0, 0, int(days))
	return t.Add(time.Duration(math.Round(frac*86400)) * time.Second), true
}

var patternReplacer = strings.NewReplacer(
	"YYYY", "2006",
	"yyyy", "2006",
	"YY", "06",
	"yy", "06",
	"MM", "01",
	"DD", "02",
	"dd", "02",
	"HH", "15",
	"mm", "04",
	"ss", "05",
)

// LayoutFromPattern turns a caller supplied hint like "MM/DD/YYYY" into a
// Go layout.
func LayoutFromPattern(p string) string {
	if strings.TrimSpace(p) == "" {
		return ""
	}
	return patternReplacer.Replace(p)
}
