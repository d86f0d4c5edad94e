// Package automap proposes source column -> target field mappings for an
// uploaded file.
package automap

import (
	"sort"
	"strings"
)

const (
	EntityContract = "Contract"
	EntityUser     = "User"
)

// Suggest maps each column to a target field. Columns whose name equals a
// template field (ignoring case) are taken first; the rest are matched by
// substring against the entity's pattern table. Unknown entity types only
// get the exact matches.
func Suggest(columns []string, entityType string, templateFields []string) map[string]string {
	out := make(map[string]string, len(columns))

	for _, col := range columns {
		for _, f := range templateFields {
			if strings.EqualFold(strings.TrimSpace(col), f) {
				out[col] = f
				break
			}
		}
	}

	rules, ok := rulesByEntity[entityType]
	if !ok {
		return out
	}

	for _, col := range columns {
		if _, done := out[col]; done {
			continue
		}
		norm := normalize(col)
		if norm == "" {
			continue
		}
	match:
		for _, r := range rules {
			for _, p := range r.Patterns {
				if strings.Contains(norm, normalize(p)) {
					out[col] = r.Target
					break match
				}
			}
		}
	}
	return out
}

// ApplyTemplate overlays saved source -> target pairs onto columns. Keys
// are matched exactly first, then ignoring case. Nothing is inferred.
func ApplyTemplate(defaults map[string]string, columns []string) map[string]string {
	keys := make([]string, 0, len(defaults))
	for k := range defaults {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make(map[string]string)
	for _, col := range columns {
		if target, ok := defaults[col]; ok {
			out[col] = target
			continue
		}
		for _, key := range keys {
			if strings.EqualFold(key, col) {
				out[col] = defaults[key]
				break
			}
		}
	}
	return out
}

// Overlay applies the template defaults on top of suggestions; defaults win.
func Overlay(suggested, defaults map[string]string) map[string]string {
	out := make(map[string]string, len(suggested)+len(defaults))
	for k, v := range suggested {
		out[k] = v
	}
	for k, v := range defaults {
		out[k] = v
	}
	return out
}

func normalize(s string) string {
	s = strings.ToLower(s)
	s = strings.NewReplacer("_", " ", "-", " ").Replace(s)
	return strings.TrimSpace(s)
}
