// Package status maps the free-text contract situations found in sales
// exports onto the fixed set of status codes stored with a contract.
package status

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const (
	Active      = "active"
	Late1       = "late1"
	Late2       = "late2"
	Late3       = "late3"
	Defaulted   = "defaulted"
	Transferred = "transferred"
)

var valid = []string{Active, Late1, Late2, Late3, Defaulted, Transferred}

var aliases = buildAliases(map[string][]string{
	Active:      {Active, "normal", "ativo", "em dia"},
	Late1:       {Late1, "ncont 1 at"},
	Late2:       {Late2, "ncont 2 at"},
	Late3:       {Late3, "ncont 3 at", "suj. a cancelamento", "delinquent"},
	Defaulted:   {Defaulted, "desistente", "excluido", "paid_off", "cancelado"},
	Transferred: {Transferred, "transferido"},
})

func buildAliases(table map[string][]string) map[string]string {
	out := make(map[string]string)
	for code, names := range table {
		for _, n := range names {
			out[Fold(n)] = code
		}
	}
	return out
}

// Map resolves s to a status code. Matching ignores case, accents, padding
// and repeated inner spaces. ok is false for blank or unknown input.
func Map(s string) (code string, ok bool) {
	key := Fold(s)
	if key == "" {
		return "", false
	}
	code, ok = aliases[key]
	return code, ok
}

// MapOrDefault returns Active when s is not recognised.
func MapOrDefault(s string) string {
	if code, ok := Map(s); ok {
		return code
	}
	return Active
}

// IsValid reports whether s already is a status code. Aliases are rejected.
func IsValid(s string) bool {
	for _, v := range valid {
		if s == v {
			return true
		}
	}
	return false
}

// Valid returns the status codes in display order.
func Valid() []string {
	out := make([]string, len(valid))
	copy(out, valid)
	return out
}

// Fold lower-cases s, strips diacritics and collapses whitespace runs.
func Fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	stripped, _, err := transform.String(t, s)
	if err != nil {
		stripped = s
	}
	return strings.Join(strings.Fields(strings.ToLower(stripped)), " ")
}
