package utils

import (
	"strings"
	"unicode"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ParseCurrency reads Brazilian ("1.234,56") and US ("1,234.56") amounts,
// with or without a currency symbol. When both separators appear, the last
// one is the decimal mark. A lone comma is decimal only when exactly two
// digits follow it. A lone dot is decimal; repeated dots group thousands.
func ParseCurrency(s string) (decimal.Decimal, error) {
	raw := strings.TrimSpace(s)
	if raw == "" {
		return decimal.Zero, errors.New("empty amount")
	}

	neg := false
	if strings.HasPrefix(raw, "(") && strings.HasSuffix(raw, ")") {
		neg = true
		raw = raw[1 : len(raw)-1]
	}
	if i := strings.IndexRune(raw, '-'); i >= 0 && strings.IndexFunc(raw[:i], unicode.IsDigit) < 0 {
		neg = true
		raw = raw[:i] + raw[i+1:]
	}

	raw = strings.TrimFunc(raw, func(r rune) bool {
		return unicode.IsLetter(r) || unicode.IsSymbol(r) || unicode.IsSpace(r)
	})
	raw = strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, raw)

	num := normalizeSeparators(raw)
	if !isPlainNumber(num) {
		return decimal.Zero, errors.Errorf("invalid amount %q", s)
	}

	d, err := decimal.NewFromString(num)
	if err != nil {
		return decimal.Zero, errors.Wrapf(err, "invalid amount %q", s)
	}
	if neg {
		d = d.Neg()
	}
	return d, nil
}

func normalizeSeparators(s string) string {
	dot := strings.LastIndex(s, ".")
	comma := strings.LastIndex(s, ",")

	switch {
	case dot >= 0 && comma >= 0:
		if comma > dot {
			s = strings.ReplaceAll(s, ".", "")
			return strings.Replace(s, ",", ".", 1)
		}
		return strings.ReplaceAll(s, ",", "")
	case comma >= 0:
		if strings.Count(s, ",") == 1 && len(s)-comma-1 == 2 {
			return strings.Replace(s, ",", ".", 1)
		}
		return strings.ReplaceAll(s, ",", "")
	case dot >= 0 && strings.Count(s, ".") > 1:
		return strings.ReplaceAll(s, ".", "")
	}
	return s
}

func isPlainNumber(s string) bool {
	digits, dots := 0, 0
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
			digits++
		case r == '.':
			dots++
		default:
			return false
		}
	}
	return digits > 0 && dots <= 1
}
