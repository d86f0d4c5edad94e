package models

import (
	"encoding/json"
	"sort"
	"strings"
)

// FieldMapping maps a raw source column to one canonical target field.
type FieldMapping map[string]string

// Reverse builds the target -> source lookup used at execution time.
// When several sources point at the same target the last one (in sorted
// source order) wins, so the result is deterministic.
func (m FieldMapping) Reverse() map[string]string {
	sources := make([]string, 0, len(m))
	for src := range m {
		sources = append(sources, src)
	}
	sort.Strings(sources)

	rev := make(map[string]string, len(m))
	for _, src := range sources {
		target := strings.TrimSpace(m[src])
		if target == "" {
			continue
		}
		rev[target] = src
	}
	return rev
}

// Targets returns the set of mapped target fields.
func (m FieldMapping) Targets() map[string]bool {
	out := make(map[string]bool, len(m))
	for _, t := range m {
		if t != "" {
			out[t] = true
		}
	}
	return out
}

func LoadMapping(data []byte) (FieldMapping, error) {
	var m FieldMapping
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return m, nil
}

// Canonical target field names.
const (
	FieldContractNumber   = "ContractNumber"
	FieldUserEmail        = "UserEmail"
	FieldTotalAmount      = "TotalAmount"
	FieldGroupID          = "GroupId"
	FieldStatus           = "Status"
	FieldSaleStartDate    = "SaleStartDate"
	FieldSaleEndDate      = "SaleEndDate"
	FieldPvID             = "PvId"
	FieldPvName           = "PvName"
	FieldQuota            = "Quota"
	FieldContractType     = "ContractType"
	FieldCustomerName     = "CustomerName"
	FieldVersion          = "Version"
	FieldTempMatricula    = "TempMatricula"
	FieldCategory         = "Category"
	FieldPlanoVenda       = "PlanoVenda"
	FieldName             = "Name"
	FieldSurname          = "Surname"
	FieldEmail            = "Email"
	FieldRoleID           = "RoleId"
	FieldParentEmail      = "ParentEmail"
	FieldMatricula        = "Matricula"
	FieldIsMatriculaOwner = "IsMatriculaOwner"
	FieldSendEmail        = "SendEmail"
	FieldPassword         = "Password"
)
