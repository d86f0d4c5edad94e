package models

// ImportResult is returned by every execution flow. Built fresh per call.
type ImportResult struct {
	TotalRows     int
	ProcessedRows int
	FailedRows    int
	// SkippedRows counts rows dropped by silent-skip rules. They are not part
	// of TotalRows.
	SkippedRows int
	Errors      []string

	CreatedGroups []string
	CreatedPVs    []string

	CreatedContracts []*Contract
	UpdatedContracts []*Contract
	CreatedUsers     []*User
	UpdatedUsers     []*User

	// SaveError is set when the final save phase failed. Row counts are not
	// adjusted for it.
	SaveError error
}

// Merge folds the result of a later page into r.
func (r *ImportResult) Merge(o *ImportResult) {
	if o == nil {
		return
	}
	r.TotalRows += o.TotalRows
	r.ProcessedRows += o.ProcessedRows
	r.FailedRows += o.FailedRows
	r.SkippedRows += o.SkippedRows
	r.Errors = append(r.Errors, o.Errors...)
	r.CreatedGroups = appendUnique(r.CreatedGroups, o.CreatedGroups...)
	r.CreatedPVs = appendUnique(r.CreatedPVs, o.CreatedPVs...)
	r.CreatedContracts = append(r.CreatedContracts, o.CreatedContracts...)
	r.UpdatedContracts = append(r.UpdatedContracts, o.UpdatedContracts...)
	r.CreatedUsers = append(r.CreatedUsers, o.CreatedUsers...)
	r.UpdatedUsers = append(r.UpdatedUsers, o.UpdatedUsers...)
	if r.SaveError == nil {
		r.SaveError = o.SaveError
	}
}

func appendUnique(dst []string, values ...string) []string {
	for _, v := range values {
		found := false
		for _, d := range dst {
			if d == v {
				found = true
				break
			}
		}
		if !found {
			dst = append(dst, v)
		}
	}
	return dst
}
