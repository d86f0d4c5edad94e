package etl

import (
	"strings"
)

// CotaColumn is the packed "group;quota;...;customer;...;contract" field
// found in contract dashboard exports.
const CotaColumn = "Cota"

// Virtual columns derived from CotaColumn.
const (
	ColCotaGroup    = "cota.group"
	ColCotaQuota    = "cota.cota"
	ColCotaCustomer = "cota.customer"
	ColCotaContract = "cota.contract"
)

var VirtualColumns = []string{ColCotaGroup, ColCotaQuota, ColCotaCustomer, ColCotaContract}

type Cota struct {
	Group    string
	Quota    string
	Customer string
	Contract string
}

// SplitCota unpacks a Cota value. At least five ';' separated parts are
// required; the contract number is always the last one.
func SplitCota(v string) (Cota, bool) {
	if strings.TrimSpace(v) == "" {
		return Cota{}, false
	}
	parts := strings.Split(v, ";")
	if len(parts) < 5 {
		return Cota{}, false
	}
	return Cota{
		Group:    strings.TrimSpace(parts[0]),
		Quota:    strings.TrimSpace(parts[1]),
		Customer: strings.TrimSpace(parts[3]),
		Contract: strings.TrimSpace(parts[len(parts)-1]),
	}, true
}

// Lookup finds a column ignoring case.
func Lookup(row map[string]string, column string) (string, bool) {
	if v, ok := row[column]; ok {
		return v, true
	}
	for k, v := range row {
		if strings.EqualFold(k, column) {
			return v, true
		}
	}
	return "", false
}

// Transformer derives virtual columns while rows stream in.
type Transformer struct{}

func NewTransformer() *Transformer {
	return &Transformer{}
}

// Columns appends the virtual columns missing from cols.
func (t *Transformer) Columns(cols []string) []string {
	out := append([]string(nil), cols...)
	for _, v := range VirtualColumns {
		found := false
		for _, c := range cols {
			if c == v {
				found = true
				break
			}
		}
		if !found {
			out = append(out, v)
		}
	}
	return out
}

// AddVirtualColumns fills the cota.* columns of row in place. They are
// always present afterwards, blank when the row has no usable Cota.
func (t *Transformer) AddVirtualColumns(row map[string]string) {
	for _, v := range VirtualColumns {
		if _, ok := row[v]; !ok {
			row[v] = ""
		}
	}
	raw, ok := Lookup(row, CotaColumn)
	if !ok {
		return
	}
	c, ok := SplitCota(raw)
	if !ok {
		return
	}
	row[ColCotaGroup] = c.Group
	row[ColCotaQuota] = c.Quota
	row[ColCotaCustomer] = c.Customer
	row[ColCotaContract] = c.Contract
}
