package importer

import (
	"context"
	"strings"

	"github.com/go-faster/errors"

	"github.com/BartekS5/salesimport/internal/etl"
	"github.com/BartekS5/salesimport/internal/resolver"
	"github.com/BartekS5/salesimport/internal/status"
	"github.com/BartekS5/salesimport/pkg/logger"
	"github.com/BartekS5/salesimport/pkg/models"
	"github.com/BartekS5/salesimport/pkg/utils"
)

var dashboardRequired = etl.NewValidator(
	models.FieldContractNumber,
	models.FieldTotalAmount,
	models.FieldSaleStartDate,
	models.FieldGroupID,
	models.FieldQuota,
	models.FieldCustomerName,
)

// dashboardRow holds the values of the required dashboard fields after the
// Cota fallback.
type dashboardRow map[string]string

func (e *Engine) dashboardValues(r *run, row map[string]string) dashboardRow {
	v := dashboardRow{
		models.FieldContractNumber: r.field(row, models.FieldContractNumber),
		models.FieldTotalAmount:    r.field(row, models.FieldTotalAmount),
		models.FieldSaleStartDate:  r.field(row, models.FieldSaleStartDate),
		models.FieldGroupID:        r.field(row, models.FieldGroupID),
		models.FieldQuota:          r.field(row, models.FieldQuota),
		models.FieldCustomerName:   r.field(row, models.FieldCustomerName),
	}
	if v[models.FieldContractNumber] != "" && v[models.FieldGroupID] != "" &&
		v[models.FieldQuota] != "" && v[models.FieldCustomerName] != "" {
		return v
	}
	raw, ok := etl.Lookup(row, etl.CotaColumn)
	if !ok {
		return v
	}
	cota, ok := etl.SplitCota(raw)
	if !ok {
		return v
	}
	fill := func(field, value string) {
		if v[field] == "" {
			v[field] = value
		}
	}
	fill(models.FieldContractNumber, cota.Contract)
	fill(models.FieldGroupID, cota.Group)
	fill(models.FieldQuota, cota.Quota)
	fill(models.FieldCustomerName, cota.Customer)
	return v
}

// ExecuteDashboard imports a contract dashboard export. Existing contract
// numbers are updated in place.
//
// Rows without a sale start date are skipped without an error, and so are
// rows without a contract number when SkipMissingContractNumber is set.
// Skipped rows do not count towards TotalRows.
func (e *Engine) ExecuteDashboard(ctx context.Context, req Request) (*models.ImportResult, error) {
	r := newRun(&req)

	values := make([]dashboardRow, len(req.Rows))
	var numbers, emails, matriculas []string
	for i, row := range req.Rows {
		values[i] = e.dashboardValues(r, row)
		numbers = append(numbers, values[i][models.FieldContractNumber])
		emails = append(emails, r.field(row, models.FieldUserEmail))
		matriculas = append(matriculas, r.field(row, models.FieldTempMatricula))
	}

	existing, err := e.contractsByNumber(ctx, numbers)
	if err != nil {
		return nil, err
	}
	users, err := e.usersByEmail(ctx, emails)
	if err != nil {
		return nil, err
	}
	owners, err := e.matriculaOwners(ctx, matriculas)
	if err != nil {
		return nil, err
	}

	res := e.resolver(&req)
	groups0, pvs0 := len(res.CreatedGroups()), len(res.CreatedPVs())
	var pending staged[*models.Contract]
	pendingIdx := make(map[string]int)
	updated := make(map[string]bool)

	for i, row := range req.Rows {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		v := values[i]
		if v[models.FieldSaleStartDate] == "" ||
			(v[models.FieldContractNumber] == "" && req.Options.SkipMissingContractNumber) {
			r.res.SkippedRows++
			continue
		}
		if missing := dashboardRequired.Missing(v); len(missing) > 0 {
			r.fail(i, errors.Errorf("Missing required fields: %s", strings.Join(missing, ", ")))
			continue
		}

		key := strings.ToLower(v[models.FieldContractNumber])
		var target *models.Contract
		switch {
		case existing[key] != nil:
			target = existing[key]
		case pendingIdx[key] > 0:
			target = pending.items[pendingIdx[key]-1]
		}

		var draft models.Contract
		if target != nil {
			draft = *target
		} else {
			now := e.now().UTC()
			draft = models.Contract{
				ContractNumber:  v[models.FieldContractNumber],
				Status:          status.Active,
				IsActive:        true,
				ImportSessionID: req.SessionID,
				CreatedAt:       now,
			}
		}

		if err := e.applyDashboard(ctx, r, res, row, v, &draft, users, owners); err != nil {
			r.fail(i, err)
			continue
		}

		switch {
		case existing[key] != nil:
			*target = draft
			if !updated[key] {
				updated[key] = true
				r.res.UpdatedContracts = append(r.res.UpdatedContracts, target)
			}
		case pendingIdx[key] > 0:
			*target = draft
			pending.touch(pendingIdx[key]-1, i)
		default:
			c := draft
			pendingIdx[key] = pending.add(&c, i) + 1
		}
		r.ok()
	}

	r.res.TotalRows = len(req.Rows) - r.res.SkippedRows
	r.res.CreatedGroups, r.res.CreatedPVs = createdSince(res, groups0, pvs0)

	e.insertContracts(ctx, r, &pending)
	if len(r.res.UpdatedContracts) > 0 {
		if err := e.store.UpdateContracts(ctx, r.res.UpdatedContracts); err != nil {
			logger.Errorf("Saving %d updated contracts failed: %v", len(r.res.UpdatedContracts), err)
			r.saveFailed(errors.Wrap(err, "update contracts"))
		}
	}

	observe("dashboard", r.res)
	logger.WithFields(map[string]interface{}{
		"upload_id": req.UploadID,
		"offset":    req.RowOffset,
	}).Infof("Dashboard page done: %d processed, %d failed, %d skipped",
		r.res.ProcessedRows, r.res.FailedRows, r.res.SkippedRows)
	return r.res, nil
}

func (e *Engine) applyDashboard(
	ctx context.Context,
	r *run,
	res *resolver.Resolver,
	row map[string]string,
	v dashboardRow,
	c *models.Contract,
	users map[string]*models.User,
	owners map[string]*models.UserMatricula,
) error {
	amount, err := utils.ParseCurrency(v[models.FieldTotalAmount])
	if err != nil {
		return errors.Errorf("invalid total amount: %s", v[models.FieldTotalAmount])
	}
	c.TotalAmount = amount

	start, err := r.parseDate(v[models.FieldSaleStartDate])
	if err != nil {
		return errors.Errorf("invalid start date: %s", v[models.FieldSaleStartDate])
	}
	c.SaleStartDate = start

	quota, err := utils.ParseOptionalInt(v[models.FieldQuota])
	if err != nil {
		return errors.Errorf("invalid quota: %s", v[models.FieldQuota])
	}
	c.Quota = quota
	c.CustomerName = v[models.FieldCustomerName]

	groupID, err := res.ResolveGroup(ctx, v[models.FieldGroupID])
	if err != nil {
		return err
	}
	if groupID == nil {
		return errors.Errorf("group not found: %s", v[models.FieldGroupID])
	}
	c.GroupID = groupID

	// Quota, start date and group come from v, so fillCommon only sees the
	// remaining optional columns.
	saved := *c
	if err := e.fillCommon(ctx, r, res, row, c, true); err != nil {
		return err
	}
	c.SaleStartDate, c.Quota, c.GroupID = saved.SaleStartDate, saved.Quota, saved.GroupID

	if s := r.field(row, models.FieldStatus); s != "" {
		c.Status = status.MapOrDefault(s)
	}
	for _, f := range []struct {
		dst   *string
		field string
	}{
		{&c.TempMatricula, models.FieldTempMatricula},
		{&c.Category, models.FieldCategory},
		{&c.PlanoVenda, models.FieldPlanoVenda},
	} {
		if s := r.field(row, f.field); s != "" {
			*f.dst = s
		}
	}

	if u := users[strings.ToLower(r.field(row, models.FieldUserEmail))]; u != nil {
		c.UserID = &u.ID
	}
	if m := owners[strings.ToLower(c.TempMatricula)]; m != nil && c.TempMatricula != "" {
		uid, mid := m.UserID, m.ID
		c.UserID = &uid
		c.MatriculaID = &mid
	}
	c.UpdatedAt = e.now().UTC()
	return nil
}

// matriculaOwners maps matricula numbers to their active owner assignment.
func (e *Engine) matriculaOwners(ctx context.Context, numbers []string) (map[string]*models.UserMatricula, error) {
	out := make(map[string]*models.UserMatricula)
	keys := distinct(numbers)
	if len(keys) == 0 {
		return out, nil
	}
	found, err := e.store.MatriculasByNumbers(ctx, keys)
	if err != nil {
		return nil, errors.Wrap(err, "prefetch matriculas")
	}
	for _, m := range found {
		if m.IsOwner && m.IsActive {
			out[strings.ToLower(m.MatriculaNumber)] = m
		}
	}
	return out, nil
}
