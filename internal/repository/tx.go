package repository

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/BartekS5/salesimport/pkg/models"
)

// sqlTx runs the undo steps inside one transaction.
type sqlTx struct {
	tx *sqlx.Tx
}

func (t *sqlTx) exec(ctx context.Context, query string, args ...interface{}) (int64, error) {
	res, err := t.tx.ExecContext(ctx, t.tx.Rebind(query), args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (t *sqlTx) exists(ctx context.Context, query string, args ...interface{}) (bool, error) {
	var n int
	if err := t.tx.GetContext(ctx, &n, t.tx.Rebind(query), args...); err != nil {
		return false, err
	}
	return n > 0, nil
}

func (t *sqlTx) DeleteContractsBySession(ctx context.Context, sessionID int64) (int64, error) {
	n, err := t.exec(ctx, "DELETE FROM contracts WHERE import_session_id = ?", sessionID)
	return n, errors.Wrap(err, "delete contracts")
}

// DeleteMatriculasBySession detaches contracts of other sessions from the
// matriculas first, so the foreign key does not block the delete.
func (t *sqlTx) DeleteMatriculasBySession(ctx context.Context, sessionID int64) (int64, error) {
	_, err := t.exec(ctx, `UPDATE contracts SET matricula_id = NULL
		WHERE matricula_id IN (SELECT id FROM user_matriculas WHERE import_session_id = ?)`, sessionID)
	if err != nil {
		return 0, errors.Wrap(err, "detach matriculas")
	}
	n, err := t.exec(ctx, "DELETE FROM user_matriculas WHERE import_session_id = ?", sessionID)
	return n, errors.Wrap(err, "delete matriculas")
}

func (t *sqlTx) UsersBySession(ctx context.Context, sessionID int64) ([]*models.User, error) {
	var out []*models.User
	err := t.tx.SelectContext(ctx, &out,
		t.tx.Rebind("SELECT "+userColumns+" FROM users WHERE import_session_id = ?"), sessionID)
	return out, errors.Wrap(err, "select session users")
}

func (t *sqlTx) UserHasDependents(ctx context.Context, id uuid.UUID) (bool, error) {
	uid := id.String()
	return t.exists(ctx, `SELECT
		(SELECT COUNT(1) FROM contracts WHERE user_id = ?) +
		(SELECT COUNT(1) FROM user_matriculas WHERE user_id = ?) +
		(SELECT COUNT(1) FROM users WHERE parent_user_id = ?)`, uid, uid, uid)
}

func (t *sqlTx) DeleteUser(ctx context.Context, id uuid.UUID) error {
	_, err := t.exec(ctx, "DELETE FROM users WHERE id = ?", id.String())
	return err
}

func (t *sqlTx) PVsBySession(ctx context.Context, sessionID int64) ([]*models.PV, error) {
	var out []*models.PV
	err := t.tx.SelectContext(ctx, &out,
		t.tx.Rebind("SELECT "+pvColumns+" FROM pvs WHERE import_session_id = ?"), sessionID)
	return out, errors.Wrap(err, "select session pvs")
}

func (t *sqlTx) PVReferenced(ctx context.Context, id int) (bool, error) {
	return t.exists(ctx, "SELECT COUNT(1) FROM contracts WHERE pv_id = ?", id)
}

func (t *sqlTx) DeletePV(ctx context.Context, id int) error {
	_, err := t.exec(ctx, "DELETE FROM pvs WHERE id = ?", id)
	return err
}

func (t *sqlTx) GroupsBySession(ctx context.Context, sessionID int64) ([]*models.Group, error) {
	var out []*models.Group
	err := t.tx.SelectContext(ctx, &out,
		t.tx.Rebind("SELECT "+groupColumns+" FROM groups WHERE import_session_id = ?"), sessionID)
	return out, errors.Wrap(err, "select session groups")
}

func (t *sqlTx) GroupReferenced(ctx context.Context, id int64) (bool, error) {
	return t.exists(ctx, "SELECT COUNT(1) FROM contracts WHERE group_id = ?", id)
}

func (t *sqlTx) DeleteGroup(ctx context.Context, id int64) error {
	_, err := t.exec(ctx, "DELETE FROM groups WHERE id = ?", id)
	return err
}

func (t *sqlTx) Commit() error {
	return t.tx.Commit()
}

func (t *sqlTx) Rollback() error {
	return t.tx.Rollback()
}
