package importer

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/BartekS5/salesimport/internal/etl"
	"github.com/BartekS5/salesimport/internal/status"
	"github.com/BartekS5/salesimport/pkg/logger"
	"github.com/BartekS5/salesimport/pkg/models"
	"github.com/BartekS5/salesimport/pkg/utils"
)

var userRequired = etl.NewValidator(models.FieldName, models.FieldEmail)

// userRun is the lookup state of one user import.
type userRun struct {
	*run
	// byEmail holds prefetched users and users created earlier in the run.
	byEmail    map[string]*models.User
	matriculas map[string][]*models.UserMatricula
	pending    staged[*models.User]
	pendingIdx map[string]int
	updated    map[string]bool
	newMats    staged[*models.UserMatricula]
	notify     map[uuid.UUID]bool
}

// ExecuteUsers imports users by email. Existing users are updated in place.
func (e *Engine) ExecuteUsers(ctx context.Context, req Request) (*models.ImportResult, error) {
	r := newRun(&req)
	r.res.TotalRows = len(req.Rows)

	var emails, numbers []string
	for _, row := range req.Rows {
		emails = append(emails, r.field(row, models.FieldEmail), r.field(row, models.FieldParentEmail))
		numbers = append(numbers, r.field(row, models.FieldMatricula))
	}
	byEmail, err := e.usersByEmail(ctx, emails)
	if err != nil {
		return nil, err
	}
	u := &userRun{
		run:        r,
		byEmail:    byEmail,
		matriculas: make(map[string][]*models.UserMatricula),
		pendingIdx: make(map[string]int),
		updated:    make(map[string]bool),
		notify:     make(map[uuid.UUID]bool),
	}
	if keys := distinct(numbers); len(keys) > 0 {
		found, err := e.store.MatriculasByNumbers(ctx, keys)
		if err != nil {
			return nil, errors.Wrap(err, "prefetch matriculas")
		}
		for _, m := range found {
			k := strings.ToLower(m.MatriculaNumber)
			u.matriculas[k] = append(u.matriculas[k], m)
		}
	}

	for i, row := range req.Rows {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := e.buildUser(u, i, row); err != nil {
			r.fail(i, err)
			continue
		}
		r.ok()
	}

	u.pending.keep(r.failed)
	if len(u.pending.items) > 0 {
		if err := e.store.CreateUsers(ctx, u.pending.items); err != nil {
			logger.Errorf("Batch insert of %d users failed: %v", len(u.pending.items), err)
			r.batchFailed(u.pending.origins(), err)
		} else {
			r.res.CreatedUsers = append(r.res.CreatedUsers, u.pending.items...)
		}
	}

	u.newMats.keep(r.failed)
	if len(u.newMats.items) > 0 {
		if err := e.store.CreateMatriculas(ctx, u.newMats.items); err != nil {
			logger.Errorf("Batch insert of %d matriculas failed: %v", len(u.newMats.items), err)
			r.batchFailed(u.newMats.origins(), err)
		}
	}

	if len(r.res.UpdatedUsers) > 0 {
		if err := e.store.UpdateUsers(ctx, r.res.UpdatedUsers); err != nil {
			logger.Errorf("Saving %d updated users failed: %v", len(r.res.UpdatedUsers), err)
			r.saveFailed(errors.Wrap(err, "update users"))
		}
	}

	if e.notifier != nil {
		for _, created := range r.res.CreatedUsers {
			if !u.notify[created.ID] {
				continue
			}
			if err := e.notifier.UserCreated(ctx, created); err != nil {
				logger.Warnf("Notification for %s failed: %v", created.Email, err)
			}
		}
	}

	observe("users", r.res)
	logger.WithFields(map[string]interface{}{
		"upload_id": req.UploadID,
		"offset":    req.RowOffset,
	}).Infof("Users page done: %d processed, %d failed", r.res.ProcessedRows, r.res.FailedRows)
	return r.res, nil
}

func (e *Engine) buildUser(u *userRun, i int, row map[string]string) error {
	values := map[string]string{
		models.FieldName:  u.field(row, models.FieldName),
		models.FieldEmail: u.field(row, models.FieldEmail),
	}
	if missing := userRequired.Missing(values); len(missing) > 0 {
		return errors.Errorf("Missing required fields: %s", strings.Join(missing, ", "))
	}

	email := values[models.FieldEmail]
	if err := e.validate.Var(email, "email"); err != nil {
		return errors.Errorf("invalid email: %s", email)
	}
	key := strings.ToLower(email)

	name := values[models.FieldName]
	if surname := u.field(row, models.FieldSurname); surname != "" {
		name += " " + surname
	}

	var role *int
	if v := u.field(row, models.FieldRoleID); v != "" {
		n, err := utils.ParseOptionalInt(v)
		if err != nil {
			return errors.Errorf("invalid role id: %s", v)
		}
		role = n
	}

	var parentID *uuid.UUID
	if pe := u.field(row, models.FieldParentEmail); pe != "" {
		parent, ok := u.byEmail[strings.ToLower(pe)]
		if !ok {
			return errors.Errorf("parent user not found: %s", pe)
		}
		id := parent.ID
		parentID = &id
	}

	var hash string
	if pw := u.field(row, models.FieldPassword); pw != "" {
		h, err := e.hasher.Hash(pw)
		if err != nil {
			return errors.Wrap(err, "hash password")
		}
		hash = h
	}

	now := e.now().UTC()
	target, known := u.byEmail[key]
	var draft models.User
	if known {
		draft = *target
	} else {
		draft = models.User{
			ID:              uuid.New(),
			Email:           email,
			RoleID:          models.DefaultRoleID,
			IsActive:        true,
			ImportSessionID: u.req.SessionID,
			CreatedAt:       now,
		}
	}
	draft.Name = name
	draft.UpdatedAt = now
	if role != nil {
		draft.RoleID = *role
	}
	if parentID != nil && *parentID != draft.ID {
		draft.ParentUserID = parentID
	}
	if hash != "" {
		draft.PasswordHash = hash
	}

	mat, err := u.matricula(row, draft.ID, now)
	if err != nil {
		return err
	}

	idx, isPending := u.pendingIdx[key]
	switch {
	case known && isPending:
		*target = draft
		u.pending.touch(idx, i)
	case known:
		*target = draft
		if !u.updated[key] {
			u.updated[key] = true
			u.res.UpdatedUsers = append(u.res.UpdatedUsers, target)
		}
	default:
		created := draft
		u.byEmail[key] = &created
		u.pendingIdx[key] = u.pending.add(&created, i)
	}

	if mat != nil {
		k := strings.ToLower(mat.MatriculaNumber)
		u.matriculas[k] = append(u.matriculas[k], mat)
		u.newMats.add(mat, i)
	}
	if utils.ParseBool(u.field(row, models.FieldSendEmail)) {
		u.notify[draft.ID] = true
	}
	return nil
}

// matricula checks the row's matricula assignment and returns the record
// to create, if any.
func (u *userRun) matricula(row map[string]string, userID uuid.UUID, now time.Time) (*models.UserMatricula, error) {
	number := u.field(row, models.FieldMatricula)
	if number == "" {
		return nil, nil
	}
	owner := utils.ParseBool(u.field(row, models.FieldIsMatriculaOwner))

	for _, m := range u.matriculas[strings.ToLower(number)] {
		if owner && m.IsOwner && m.IsActive && m.UserID != userID {
			return nil, errors.Errorf("matricula %s already has an owner", number)
		}
	}
	for _, m := range u.matriculas[strings.ToLower(number)] {
		if m.UserID == userID {
			return nil, nil
		}
	}
	return &models.UserMatricula{
		UserID:          userID,
		MatriculaNumber: number,
		StartDate:       now,
		Status:          status.Active,
		IsOwner:         owner,
		IsActive:        true,
		ImportSessionID: u.req.SessionID,
	}, nil
}
