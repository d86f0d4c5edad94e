package utils

import (
	"math"
	"strconv"
	"strings"

	"github.com/go-faster/errors"
)

var truthy = map[string]bool{
	"true": true,
	"1":    true,
	"yes":  true,
	"sim":  true,
	"y":    true,
	"s":    true,
}

// ParseBool maps the flag vocabulary used in spreadsheets to a bool.
// Anything outside it, blank included, is false.
func ParseBool(s string) bool {
	return truthy[strings.ToLower(strings.TrimSpace(s))]
}

// ConvertToInt converts spreadsheet values to int. Strings holding a whole
// float ("10.0", common in XLSX exports) are accepted.
func ConvertToInt(val interface{}) (int, error) {
	switch v := val.(type) {
	case int:
		return v, nil
	case int32:
		return int(v), nil
	case int64:
		return int(v), nil
	case float64:
		if v != math.Trunc(v) {
			return 0, errors.Errorf("not a whole number: %v", v)
		}
		return int(v), nil
	case string:
		s := strings.TrimSpace(v)
		if n, err := strconv.Atoi(s); err == nil {
			return n, nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, errors.Errorf("not an integer: %q", v)
		}
		return ConvertToInt(f)
	case []byte:
		return ConvertToInt(string(v))
	default:
		return 0, errors.Errorf("cannot convert %T to int", val)
	}
}

// ParseOptionalInt returns nil for blank input.
func ParseOptionalInt(s string) (*int, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	n, err := ConvertToInt(s)
	if err != nil {
		return nil, err
	}
	return &n, nil
}
