package wizard

import (
	"context"
	"sort"
	"strings"

	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/BartekS5/salesimport/internal/importer"
	"github.com/BartekS5/salesimport/pkg/models"
)

type memSessions struct {
	byID   map[int64]*models.ImportSession
	nextID int64
}

func newMemSessions() *memSessions {
	return &memSessions{byID: map[int64]*models.ImportSession{}}
}

func (m *memSessions) Create(_ context.Context, s *models.ImportSession) error {
	m.nextID++
	s.ID = m.nextID
	cp := *s
	m.byID[s.ID] = &cp
	return nil
}

func (m *memSessions) Update(_ context.Context, s *models.ImportSession) error {
	cp := *s
	m.byID[s.ID] = &cp
	return nil
}

func (m *memSessions) ByUploadID(_ context.Context, uploadID string) (*models.ImportSession, error) {
	for _, s := range m.byID {
		if s.UploadID == uploadID {
			cp := *s
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memSessions) ByID(_ context.Context, id int64) (*models.ImportSession, error) {
	s, ok := m.byID[id]
	if !ok {
		return nil, nil
	}
	cp := *s
	return &cp, nil
}

func (m *memSessions) List(_ context.Context, statuses ...string) ([]*models.ImportSession, error) {
	var out []*models.ImportSession
	for _, s := range m.byID {
		for _, st := range statuses {
			if s.Status == st {
				cp := *s
				out = append(out, &cp)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

type memRows struct {
	rows    []models.ImportRow
	inserts int
	deleted []int64
}

func (m *memRows) InsertRows(_ context.Context, rows []models.ImportRow) error {
	m.inserts++
	m.rows = append(m.rows, rows...)
	return nil
}

func (m *memRows) Rows(_ context.Context, sessionID int64, offset, limit int) ([]models.ImportRow, error) {
	var all []models.ImportRow
	for _, r := range m.rows {
		if r.SessionID == sessionID {
			all = append(all, r)
		}
	}
	if offset >= len(all) {
		return nil, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], nil
}

func (m *memRows) CountRows(_ context.Context, sessionID int64) (int64, error) {
	var n int64
	for _, r := range m.rows {
		if r.SessionID == sessionID {
			n++
		}
	}
	return n, nil
}

func (m *memRows) DeleteRows(_ context.Context, sessionID int64) error {
	m.deleted = append(m.deleted, sessionID)
	kept := m.rows[:0]
	for _, r := range m.rows {
		if r.SessionID != sessionID {
			kept = append(kept, r)
		}
	}
	m.rows = kept
	return nil
}

type contacts []models.UserContact

func (c contacts) ActiveContacts(context.Context) ([]models.UserContact, error) {
	return c, nil
}

// memStore is a minimal importer.Store; its undo runs without isolation.
type memStore struct {
	contracts  []*models.Contract
	users      []*models.User
	matriculas []*models.UserMatricula
	groups     []*models.Group
	pvs        []*models.PV
	nextID     int64
}

var _ importer.Store = (*memStore)(nil)

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
	for _, c := range contracts {
		c.ID = m.id()
		cp := *c
		m.contracts = append(m.contracts, &cp)
	}
	return nil
}

func (m *memStore) UpdateContracts(_ context.Context, contracts []*models.Contract) error {
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
	for _, u := range users {
		cp := *u
		m.users = append(m.users, &cp)
	}
	return nil
}

func (m *memStore) UpdateUsers(context.Context, []*models.User) error { return nil }

func (m *memStore) MatriculasByNumbers(_ context.Context, numbers []string) ([]*models.UserMatricula, error) {
	var out []*models.UserMatricula
	for _, mat := range m.matriculas {
		for _, n := range numbers {
			if strings.EqualFold(mat.MatriculaNumber, n) {
				cp := *mat
				out = append(out, &cp)
			}
		}
	}
	return out, nil
}

func (m *memStore) CreateMatriculas(_ context.Context, matriculas []*models.UserMatricula) error {
	for _, mat := range matriculas {
		mat.ID = m.id()
		cp := *mat
		m.matriculas = append(m.matriculas, &cp)
	}
	return nil
}

func (m *memStore) GroupByName(_ context.Context, name string) (*models.Group, error) {
	for _, g := range m.groups {
		if strings.EqualFold(g.Name, name) {
			cp := *g
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memStore) GroupByID(_ context.Context, id int64) (*models.Group, error) {
	for _, g := range m.groups {
		if g.ID == id {
			cp := *g
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memStore) CreateGroup(_ context.Context, g *models.Group) error {
	g.ID = m.id()
	cp := *g
	m.groups = append(m.groups, &cp)
	return nil
}

func (m *memStore) PVByName(_ context.Context, name string) (*models.PV, error) {
	for _, p := range m.pvs {
		if strings.EqualFold(p.Name, name) {
			cp := *p
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memStore) PVByID(_ context.Context, id int) (*models.PV, error) {
	for _, p := range m.pvs {
		if p.ID == id {
			cp := *p
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memStore) CreatePV(_ context.Context, pv *models.PV) error {
	cp := *pv
	m.pvs = append(m.pvs, &cp)
	return nil
}

func (m *memStore) Begin(context.Context) (importer.Tx, error) { return m, nil }

func inSession(p *int64, id int64) bool { return p != nil && *p == id }

func (m *memStore) DeleteContractsBySession(_ context.Context, sessionID int64) (int64, error) {
	var n int64
	kept := m.contracts[:0]
	for _, c := range m.contracts {
		if inSession(c.ImportSessionID, sessionID) {
			n++
			continue
		}
		kept = append(kept, c)
	}
	m.contracts = kept
	return n, nil
}

func (m *memStore) DeleteMatriculasBySession(_ context.Context, sessionID int64) (int64, error) {
	var n int64
	kept := m.matriculas[:0]
	for _, mat := range m.matriculas {
		if inSession(mat.ImportSessionID, sessionID) {
			n++
			continue
		}
		kept = append(kept, mat)
	}
	m.matriculas = kept
	return n, nil
}

func (m *memStore) UsersBySession(_ context.Context, sessionID int64) ([]*models.User, error) {
	var out []*models.User
	for _, u := range m.users {
		if inSession(u.ImportSessionID, sessionID) {
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
	for _, mat := range m.matriculas {
		if mat.UserID == id {
			return true, nil
		}
	}
	return false, nil
}

func (m *memStore) DeleteUser(_ context.Context, id uuid.UUID) error {
	kept := m.users[:0]
	for _, u := range m.users {
		if u.ID != id {
			kept = append(kept, u)
		}
	}
	m.users = kept
	return nil
}

func (m *memStore) PVsBySession(_ context.Context, sessionID int64) ([]*models.PV, error) {
	var out []*models.PV
	for _, p := range m.pvs {
		if inSession(p.ImportSessionID, sessionID) {
			out = append(out, p)
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
	kept := m.pvs[:0]
	for _, p := range m.pvs {
		if p.ID != id {
			kept = append(kept, p)
		}
	}
	m.pvs = kept
	return nil
}

func (m *memStore) GroupsBySession(_ context.Context, sessionID int64) ([]*models.Group, error) {
	var out []*models.Group
	for _, g := range m.groups {
		if inSession(g.ImportSessionID, sessionID) {
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
	kept := m.groups[:0]
	for _, g := range m.groups {
		if g.ID != id {
			kept = append(kept, g)
		}
	}
	m.groups = kept
	return nil
}

func (m *memStore) Commit() error   { return nil }
func (m *memStore) Rollback() error { return nil }

// countingStore counts group lookups and can fail contract prefetches after
// a number of successful ones.
type countingStore struct {
	*memStore
	groupLookups             int
	contractLookups          int
	failContractLookupsAfter int
}

func (c *countingStore) GroupByName(ctx context.Context, name string) (*models.Group, error) {
	c.groupLookups++
	return c.memStore.GroupByName(ctx, name)
}

func (c *countingStore) ContractsByNumbers(ctx context.Context, numbers []string) ([]*models.Contract, error) {
	c.contractLookups++
	if c.failContractLookupsAfter > 0 && c.contractLookups > c.failContractLookupsAfter {
		return nil, errors.New("connection reset")
	}
	return c.memStore.ContractsByNumbers(ctx, numbers)
}
