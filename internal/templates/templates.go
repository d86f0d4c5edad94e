// Package templates holds the built-in import templates.
package templates

import (
	"fmt"
	"sort"
	"strings"

	"github.com/BartekS5/salesimport/internal/automap"
	"github.com/BartekS5/salesimport/pkg/models"
)

const (
	Users             = "Users"
	Contracts         = "Contracts"
	ContractDashboard = "contractDashboard"
)

type Template struct {
	ID              int
	Name            string
	EntityType      string
	RequiredFields  []string
	OptionalFields  []string
	DefaultMappings map[string]string
}

// Fields returns required then optional fields.
func (t Template) Fields() []string {
	out := make([]string, 0, len(t.RequiredFields)+len(t.OptionalFields))
	out = append(out, t.RequiredFields...)
	return append(out, t.OptionalFields...)
}

var builtin = []Template{
	{
		ID:             1,
		Name:           Users,
		EntityType:     automap.EntityUser,
		RequiredFields: []string{models.FieldName, models.FieldEmail},
		OptionalFields: []string{models.FieldSurname, models.FieldRoleID, models.FieldParentEmail, models.FieldSendEmail,
			models.FieldMatricula, models.FieldIsMatriculaOwner, models.FieldPassword},
	},
	{
		ID:             2,
		Name:           Contracts,
		EntityType:     automap.EntityContract,
		RequiredFields: []string{models.FieldContractNumber, models.FieldUserEmail, models.FieldTotalAmount},
		OptionalFields: []string{models.FieldGroupID, models.FieldStatus, models.FieldSaleStartDate, models.FieldSaleEndDate,
			models.FieldContractType, models.FieldQuota, models.FieldPvID, models.FieldCustomerName, models.FieldVersion},
	},
	{
		ID:         3,
		Name:       ContractDashboard,
		EntityType: automap.EntityContract,
		RequiredFields: []string{models.FieldContractNumber, models.FieldTotalAmount, models.FieldSaleStartDate,
			models.FieldGroupID, models.FieldQuota, models.FieldCustomerName},
		OptionalFields: []string{models.FieldStatus, models.FieldPvID, models.FieldPvName, models.FieldVersion,
			models.FieldTempMatricula, models.FieldCategory, models.FieldPlanoVenda},
		DefaultMappings: map[string]string{
			"cota.group":        models.FieldGroupID,
			"cota.cota":         models.FieldQuota,
			"cota.customer":     models.FieldCustomerName,
			"cota.contract":     models.FieldContractNumber,
			"DtVenda":           models.FieldSaleStartDate,
			"Dt Venda":          models.FieldSaleStartDate,
			"Situação Cobrança": models.FieldStatus,
			"SituacaoCobranca":  models.FieldStatus,
			"CodPV":             models.FieldPvID,
			"Cód. PV":           models.FieldPvID,
			"PV":                models.FieldPvName,
			"Versao":            models.FieldVersion,
			"Matricula":         models.FieldTempMatricula,
			"Categoria":         models.FieldCategory,
			"PlanoVenda":        models.FieldPlanoVenda,
		},
	},
}

// ByName looks a template up ignoring case.
func ByName(name string) (Template, bool) {
	for _, t := range builtin {
		if strings.EqualFold(t.Name, name) {
			return t, true
		}
	}
	return Template{}, false
}

func ByID(id int) (Template, bool) {
	for _, t := range builtin {
		if t.ID == id {
			return t, true
		}
	}
	return Template{}, false
}

// All returns the templates ordered by id.
func All() []Template {
	out := make([]Template, len(builtin))
	copy(out, builtin)
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Quality reports how well a suggested mapping covers the template's
// required fields. A low score is a warning, never a failure.
type Quality struct {
	MappedRequired int
	Required       int
	Match          bool
	Message        string
}

// Assess computes the template match signal for mapping.
func (t Template) Assess(mapping map[string]string) Quality {
	targets := models.FieldMapping(mapping).Targets()
	q := Quality{Required: len(t.RequiredFields), Match: true}
	for _, f := range t.RequiredFields {
		if targets[f] {
			q.MappedRequired++
		}
	}
	if q.Required == 0 {
		return q
	}
	switch {
	case q.MappedRequired < (q.Required+1)/2:
		q.Match = false
		q.Message = fmt.Sprintf("the uploaded file does not look like the '%s' template: only %d of %d required fields were identified",
			t.Name, q.MappedRequired, q.Required)
	case t.Name == ContractDashboard && q.MappedRequired < 3:
		q.Match = false
		q.Message = "the uploaded file does not look like a valid contract dashboard"
	}
	return q
}
