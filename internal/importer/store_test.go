package importer

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/BartekS5/salesimport/pkg/models"
)

// memStore is an in-memory Store. Undo runs directly against it; Rollback
// restores the snapshot taken by Begin.
type memStore struct {
	contracts  []*models.Contract
	users      []*models.User
	matriculas []*models.UserMatricula
	groups     []*models.Group
	pvs        []*models.PV

	nextID int64

	failCreateContracts error
	failUpdateContracts error
	failCreateUsers     error
	failDeleteGroup     error

	committed  bool
	rolledBack bool
	snapshot   *memStore
}

func newMemStore() *memStore {
	return &memStore{nextID: 100}
}

func (m *memStore) id() int64 {
	m.nextID++
	return m.nextID
}

func (m *memStore) ContractsByNumbers(_ context.Context, numbers []string) ([]*models.Contract, error) {
	var out []*models.Contract
	for _, c := range m.contracts {
		for _, n := range numbers {
			if strings.EqualFold(c.ContractNumber, n) {
				cp := *c
				out = append(out, &cp)
			}
		}
	}
	return out, nil
}

func (m *memStore) CreateContracts(_ context.Context, contracts []*models.Contract) error {
	if m.failCreateContracts != nil {
		return m.failCreateContracts
	}
	for _, c := range contracts {
		c.ID = m.id()
		cp := *c
		m.contracts = append(m.contracts, &cp)
	}
	return nil
}

func (m *memStore) UpdateContracts(_ context.Context, contracts []*models.Contract) error {
	if m.failUpdateContracts != nil {
		return m.failUpdateContracts
	}
	for _, c := range contracts {
		for i, old := range m.contracts {
			if old.ID == c.ID {
				cp := *c
				m.contracts[i] = &cp
			}
		}
	}
	return nil
}

func (m *memStore) UsersByEmails(_ context.Context, emails []string) ([]*models.User, error) {
	var out []*models.User
	for _, u := range m.users {
		for _, e := range emails {
			if strings.EqualFold(u.Email, e) {
				cp := *u
				out = append(out, &cp)
			}
		}
	}
	return out, nil
}

func (m *memStore) CreateUsers(_ context.Context, users []*models.User) error {
	if m.failCreateUsers != nil {
		return m.failCreateUsers
	}
	for _, u := range users {
		cp := *u
		m.users = append(m.users, &cp)
	}
	return nil
}

func (m *memStore) UpdateUsers(_ context.Context, users []*models.User) error {
	for _, u := range users {
		for i, old := range m.users {
			if old.ID == u.ID {
				cp := *u
				m.users[i] = &cp
			}
		}
	}
	return nil
}

func (m *memStore) MatriculasByNumbers(_ context.Context, numbers []string) ([]*models.UserMatricula, error) {
	var out []*models.UserMatricula
	for _, mt := range m.matriculas {
		for _, n := range numbers {
			if strings.EqualFold(mt.MatriculaNumber, n) {
				cp := *mt
				out = append(out, &cp)
			}
		}
	}
	return out, nil
}

func (m *memStore) CreateMatriculas(_ context.Context, matriculas []*models.UserMatricula) error {
	for _, mt := range matriculas {
		mt.ID = m.id()
		cp := *mt
		m.matriculas = append(m.matriculas, &cp)
	}
	return nil
}

func (m *memStore) GroupByName(_ context.Context, name string) (*models.Group, error) {
	for _, g := range m.groups {
		if strings.EqualFold(g.Name, name) {
			return g, nil
		}
	}
	return nil, nil
}

func (m *memStore) GroupByID(_ context.Context, id int64) (*models.Group, error) {
	for _, g := range m.groups {
		if g.ID == id {
			return g, nil
		}
	}
	return nil, nil
}

func (m *memStore) CreateGroup(_ context.Context, g *models.Group) error {
	g.ID = m.id()
	m.groups = append(m.groups, g)
	return nil
}

func (m *memStore) PVByName(_ context.Context, name string) (*models.PV, error) {
	for _, pv := range m.pvs {
		if strings.EqualFold(pv.Name, name) {
			return pv, nil
		}
	}
	return nil, nil
}

func (m *memStore) PVByID(_ context.Context, id int) (*models.PV, error) {
	for _, pv := range m.pvs {
		if pv.ID == id {
			return pv, nil
		}
	}
	return nil, nil
}

func (m *memStore) CreatePV(_ context.Context, pv *models.PV) error {
	m.pvs = append(m.pvs, pv)
	return nil
}

func (m *memStore) Begin(context.Context) (Tx, error) {
	m.snapshot = &memStore{
		contracts:  append([]*models.Contract(nil), m.contracts...),
		users:      append([]*models.User(nil), m.users...),
		matriculas: append([]*models.UserMatricula(nil), m.matriculas...),
		groups:     append([]*models.Group(nil), m.groups...),
		pvs:        append([]*models.PV(nil), m.pvs...),
	}
	return m, nil
}

func sameSession(p *int64, id int64) bool {
	return p != nil && *p == id
}

func (m *memStore) DeleteContractsBySession(_ context.Context, sessionID int64) (int64, error) {
	var keep []*models.Contract
	var n int64
	for _, c := range m.contracts {
		if sameSession(c.ImportSessionID, sessionID) {
			n++
			continue
		}
		keep = append(keep, c)
	}
	m.contracts = keep
	return n, nil
}

func (m *memStore) DeleteMatriculasBySession(_ context.Context, sessionID int64) (int64, error) {
	var keep []*models.UserMatricula
	var n int64
	for _, mt := range m.matriculas {
		if sameSession(mt.ImportSessionID, sessionID) {
			n++
			continue
		}
		keep = append(keep, mt)
	}
	m.matriculas = keep
	return n, nil
}

func (m *memStore) UsersBySession(_ context.Context, sessionID int64) ([]*models.User, error) {
	var out []*models.User
	for _, u := range m.users {
		if sameSession(u.ImportSessionID, sessionID) {
			out = append(out, u)
		}
	}
	return out, nil
}

func (m *memStore) UserHasDependents(_ context.Context, id uuid.UUID) (bool, error) {
	for _, c := range m.contracts {
		if c.UserID != nil && *c.UserID == id {
			return true, nil
		}
	}
	for _, mt := range m.matriculas {
		if mt.UserID == id {
			return true, nil
		}
	}
	for _, u := range m.users {
		if u.ParentUserID != nil && *u.ParentUserID == id {
			return true, nil
		}
	}
	return false, nil
}

func (m *memStore) DeleteUser(_ context.Context, id uuid.UUID) error {
	var keep []*models.User
	for _, u := range m.users {
		if u.ID != id {
			keep = append(keep, u)
		}
	}
	m.users = keep
	return nil
}

func (m *memStore) PVsBySession(_ context.Context, sessionID int64) ([]*models.PV, error) {
	var out []*models.PV
	for _, pv := range m.pvs {
		if sameSession(pv.ImportSessionID, sessionID) {
			out = append(out, pv)
		}
	}
	return out, nil
}

func (m *memStore) PVReferenced(_ context.Context, id int) (bool, error) {
	for _, c := range m.contracts {
		if c.PvID != nil && *c.PvID == id {
			return true, nil
		}
	}
	return false, nil
}

func (m *memStore) DeletePV(_ context.Context, id int) error {
	var keep []*models.PV
	for _, pv := range m.pvs {
		if pv.ID != id {
			keep = append(keep, pv)
		}
	}
	m.pvs = keep
	return nil
}

func (m *memStore) GroupsBySession(_ context.Context, sessionID int64) ([]*models.Group, error) {
	var out []*models.Group
	for _, g := range m.groups {
		if sameSession(g.ImportSessionID, sessionID) {
			out = append(out, g)
		}
	}
	return out, nil
}

func (m *memStore) GroupReferenced(_ context.Context, id int64) (bool, error) {
	for _, c := range m.contracts {
		if c.GroupID != nil && *c.GroupID == id {
			return true, nil
		}
	}
	return false, nil
}

func (m *memStore) DeleteGroup(_ context.Context, id int64) error {
	if m.failDeleteGroup != nil {
		return m.failDeleteGroup
	}
	var keep []*models.Group
	for _, g := range m.groups {
		if g.ID != id {
			keep = append(keep, g)
		}
	}
	m.groups = keep
	return nil
}

func (m *memStore) Commit() error {
	m.committed = true
	m.snapshot = nil
	return nil
}

func (m *memStore) Rollback() error {
	if m.snapshot == nil {
		return errors.New("no transaction")
	}
	m.rolledBack = true
	m.contracts = m.snapshot.contracts
	m.users = m.snapshot.users
	m.matriculas = m.snapshot.matriculas
	m.groups = m.snapshot.groups
	m.pvs = m.snapshot.pvs
	m.snapshot = nil
	return nil
}

type recordingNotifier struct {
	emails []string
}

func (n *recordingNotifier) UserCreated(_ context.Context, u *models.User) error {
	n.emails = append(n.emails, u.Email)
	return nil
}

type plainHasher struct{}

func (plainHasher) Hash(p string) (string, error) { return "hashed:" + p, nil }
