package importer

import (
	"context"

	"github.com/go-faster/errors"

	"github.com/BartekS5/salesimport/pkg/logger"
)

// UndoResult counts what an undo removed.
type UndoResult struct {
	Contracts  int64
	Matriculas int64
	Users      int
	PVs        int
	Groups     int
}

// Undo removes everything the session created, inside one transaction.
// Users, points of sale and groups that something outside the session
// still depends on are kept. Any failure rolls the whole undo back.
func (e *Engine) Undo(ctx context.Context, sessionID int64) (_ *UndoResult, err error) {
	tx, err := e.store.Begin(ctx)
	if err != nil {
		importUndo.WithLabelValues("failed").Inc()
		return nil, errors.Wrap(err, "begin undo")
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				logger.Errorf("Undo rollback for session %d failed: %v", sessionID, rbErr)
			}
			importUndo.WithLabelValues("failed").Inc()
		}
	}()

	res := &UndoResult{}
	if res.Contracts, err = tx.DeleteContractsBySession(ctx, sessionID); err != nil {
		return nil, errors.Wrap(err, "delete contracts")
	}
	if res.Matriculas, err = tx.DeleteMatriculasBySession(ctx, sessionID); err != nil {
		return nil, errors.Wrap(err, "delete matriculas")
	}

	users, err := tx.UsersBySession(ctx, sessionID)
	if err != nil {
		return nil, errors.Wrap(err, "list session users")
	}
	for _, u := range users {
		busy, err := tx.UserHasDependents(ctx, u.ID)
		if err != nil {
			return nil, errors.Wrapf(err, "check user %s", u.Email)
		}
		if busy {
			logger.Infof("Undo keeps user %s: still referenced", u.Email)
			continue
		}
		if err := tx.DeleteUser(ctx, u.ID); err != nil {
			return nil, errors.Wrapf(err, "delete user %s", u.Email)
		}
		res.Users++
	}

	pvs, err := tx.PVsBySession(ctx, sessionID)
	if err != nil {
		return nil, errors.Wrap(err, "list session pvs")
	}
	for _, pv := range pvs {
		used, err := tx.PVReferenced(ctx, pv.ID)
		if err != nil {
			return nil, errors.Wrapf(err, "check pv %d", pv.ID)
		}
		if used {
			continue
		}
		if err := tx.DeletePV(ctx, pv.ID); err != nil {
			return nil, errors.Wrapf(err, "delete pv %d", pv.ID)
		}
		res.PVs++
	}

	groups, err := tx.GroupsBySession(ctx, sessionID)
	if err != nil {
		return nil, errors.Wrap(err, "list session groups")
	}
	for _, g := range groups {
		used, err := tx.GroupReferenced(ctx, g.ID)
		if err != nil {
			return nil, errors.Wrapf(err, "check group %d", g.ID)
		}
		if used {
			continue
		}
		if err := tx.DeleteGroup(ctx, g.ID); err != nil {
			return nil, errors.Wrapf(err, "delete group %d", g.ID)
		}
		res.Groups++
	}

	if err = tx.Commit(); err != nil {
		return nil, errors.Wrap(err, "commit undo")
	}
	importUndo.WithLabelValues("ok").Inc()
	logger.WithFields(map[string]interface{}{"session_id": sessionID}).
		Infof("Undo removed %d contracts, %d matriculas, %d users, %d pvs, %d groups",
			res.Contracts, res.Matriculas, res.Users, res.PVs, res.Groups)
	return res, nil
}
