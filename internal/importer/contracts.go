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

var contractRequired = etl.NewValidator(models.FieldContractNumber, models.FieldUserEmail, models.FieldTotalAmount)

// ExecuteContracts imports new contracts. A contract number that already
// exists, or repeats within the rows, fails the row.
func (e *Engine) ExecuteContracts(ctx context.Context, req Request) (*models.ImportResult, error) {
	r := newRun(&req)
	r.res.TotalRows = len(req.Rows)

	var numbers, emails []string
	for _, row := range req.Rows {
		numbers = append(numbers, r.field(row, models.FieldContractNumber))
		emails = append(emails, r.field(row, models.FieldUserEmail))
	}
	existing, err := e.contractsByNumber(ctx, numbers)
	if err != nil {
		return nil, err
	}
	users, err := e.usersByEmail(ctx, emails)
	if err != nil {
		return nil, err
	}

	res := e.resolver(&req)
	groups0, pvs0 := len(res.CreatedGroups()), len(res.CreatedPVs())
	var pending staged[*models.Contract]
	seen := make(map[string]bool)

	for i, row := range req.Rows {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		c, err := e.buildContract(ctx, r, res, row, existing, users, seen)
		if err != nil {
			r.fail(i, err)
			continue
		}
		seen[strings.ToLower(c.ContractNumber)] = true
		pending.add(c, i)
		r.ok()
	}

	r.res.CreatedGroups, r.res.CreatedPVs = createdSince(res, groups0, pvs0)

	e.insertContracts(ctx, r, &pending)
	observe("contracts", r.res)
	logger.WithFields(map[string]interface{}{
		"upload_id": req.UploadID,
		"offset":    req.RowOffset,
	}).Infof("Contracts page done: %d processed, %d failed", r.res.ProcessedRows, r.res.FailedRows)
	return r.res, nil
}

func (e *Engine) buildContract(
	ctx context.Context,
	r *run,
	res *resolver.Resolver,
	row map[string]string,
	existing map[string]*models.Contract,
	users map[string]*models.User,
	seen map[string]bool,
) (*models.Contract, error) {
	values := map[string]string{
		models.FieldContractNumber: r.field(row, models.FieldContractNumber),
		models.FieldUserEmail:      r.field(row, models.FieldUserEmail),
		models.FieldTotalAmount:    r.field(row, models.FieldTotalAmount),
	}
	if missing := contractRequired.Missing(values); len(missing) > 0 {
		return nil, errors.Errorf("Missing required fields: %s", strings.Join(missing, ", "))
	}

	number := values[models.FieldContractNumber]
	key := strings.ToLower(number)
	if _, ok := existing[key]; ok {
		return nil, errors.Errorf("contract number %s already exists", number)
	}
	if seen[key] {
		return nil, errors.Errorf("duplicate contract number %s in file", number)
	}

	email := values[models.FieldUserEmail]
	user, ok := users[strings.ToLower(email)]
	if !ok {
		return nil, errors.Errorf("user not found: %s", email)
	}

	amount, err := utils.ParseCurrency(values[models.FieldTotalAmount])
	if err != nil {
		return nil, errors.Errorf("invalid total amount: %s", values[models.FieldTotalAmount])
	}

	now := e.now().UTC()
	c := &models.Contract{
		ContractNumber:  number,
		UserID:          &user.ID,
		TotalAmount:     amount,
		Status:          status.MapOrDefault(r.field(row, models.FieldStatus)),
		SaleStartDate:   now,
		IsActive:        true,
		CustomerName:    r.field(row, models.FieldCustomerName),
		TempMatricula:   r.field(row, models.FieldTempMatricula),
		Category:        r.field(row, models.FieldCategory),
		PlanoVenda:      r.field(row, models.FieldPlanoVenda),
		ImportSessionID: r.req.SessionID,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := e.fillCommon(ctx, r, res, row, c, false); err != nil {
		return nil, err
	}
	return c, nil
}

// fillCommon sets the optional fields shared by both contract flows. With
// softPV an unresolvable point of sale leaves PvID unset instead of failing.
func (e *Engine) fillCommon(
	ctx context.Context,
	r *run,
	res *resolver.Resolver,
	row map[string]string,
	c *models.Contract,
	softPV bool,
) error {
	if v := r.field(row, models.FieldSaleStartDate); v != "" {
		d, err := r.parseDate(v)
		if err != nil {
			return errors.Errorf("invalid start date: %s", v)
		}
		c.SaleStartDate = d
	}
	if v := r.field(row, models.FieldSaleEndDate); v != "" {
		if d, err := r.parseDate(v); err == nil {
			c.SaleEndDate = &d
		}
	}

	ct, err := parseContractType(r.field(row, models.FieldContractType))
	if err != nil {
		return err
	}
	if ct != nil {
		c.ContractType = ct
	}
	if v := r.field(row, models.FieldQuota); v != "" {
		q, err := utils.ParseOptionalInt(v)
		if err != nil {
			return errors.Errorf("invalid quota: %s", v)
		}
		c.Quota = q
	}
	if v := r.field(row, models.FieldVersion); v != "" {
		ver, err := utils.ParseOptionalInt(v)
		if err != nil {
			return errors.Errorf("invalid version: %s", v)
		}
		c.Version = ver
	}

	if token := r.field(row, models.FieldGroupID); token != "" {
		id, err := res.ResolveGroup(ctx, token)
		if err != nil {
			return err
		}
		if id == nil {
			return errors.Errorf("group not found: %s", token)
		}
		c.GroupID = id
	}

	token, name := r.field(row, models.FieldPvID), r.field(row, models.FieldPvName)
	if token != "" || name != "" {
		id, err := res.ResolvePV(ctx, token, name)
		switch {
		case err != nil && !softPV:
			return err
		case id == nil && !softPV:
			return errors.Errorf("point of sale not found: %s", strings.TrimSpace(token+" "+name))
		case id != nil:
			c.PvID = id
		}
	}
	return nil
}

func (e *Engine) insertContracts(ctx context.Context, r *run, pending *staged[*models.Contract]) {
	pending.keep(r.failed)
	if len(pending.items) == 0 {
		return
	}
	if err := e.store.CreateContracts(ctx, pending.items); err != nil {
		logger.Errorf("Batch insert of %d contracts failed: %v", len(pending.items), err)
		r.batchFailed(pending.origins(), err)
		return
	}
	r.res.CreatedContracts = append(r.res.CreatedContracts, pending.items...)
}

func (e *Engine) contractsByNumber(ctx context.Context, numbers []string) (map[string]*models.Contract, error) {
	out := make(map[string]*models.Contract)
	keys := distinct(numbers)
	if len(keys) == 0 {
		return out, nil
	}
	found, err := e.store.ContractsByNumbers(ctx, keys)
	if err != nil {
		return nil, errors.Wrap(err, "prefetch contracts")
	}
	for _, c := range found {
		out[strings.ToLower(c.ContractNumber)] = c
	}
	return out, nil
}

func (e *Engine) usersByEmail(ctx context.Context, emails []string) (map[string]*models.User, error) {
	out := make(map[string]*models.User)
	keys := distinct(emails)
	if len(keys) == 0 {
		return out, nil
	}
	found, err := e.store.UsersByEmails(ctx, keys)
	if err != nil {
		return nil, errors.Wrap(err, "prefetch users")
	}
	for _, u := range found {
		out[strings.ToLower(u.Email)] = u
	}
	return out, nil
}
