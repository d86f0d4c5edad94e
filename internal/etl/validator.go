package etl

import (
	"strings"
)

// Validator checks that the required target fields of a row have values.
type Validator struct {
	Required []string
}

func NewValidator(required ...string) *Validator {
	return &Validator{Required: required}
}

// Missing returns the required fields that are blank in values, which is
// keyed by target field.
func (v *Validator) Missing(values map[string]string) []string {
	var missing []string
	for _, f := range v.Required {
		if strings.TrimSpace(values[f]) == "" {
			missing = append(missing, f)
		}
	}
	return missing
}
