package config

import (
	"os"

	"github.com/go-faster/errors"

	"github.com/BartekS5/salesimport/pkg/models"
)

// LoadMapping reads a JSON object of source column -> target field.
func LoadMapping(filePath string) (models.FieldMapping, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, errors.Wrapf(err, "read mapping file '%s'", filePath)
	}
	m, err := models.LoadMapping(data)
	if err != nil {
		return nil, errors.Wrapf(err, "parse mapping file '%s'", filePath)
	}
	return m, nil
}
