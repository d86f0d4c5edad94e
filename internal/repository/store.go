// Package repository implements the importer stores on SQL Server.
package repository

import (
	"context"
	"database/sql"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/BartekS5/salesimport/internal/importer"
	"github.com/BartekS5/salesimport/pkg/models"
)

// SQL Server accepts at most 2100 parameters per statement.
const inChunk = 1000

// uniqueidentifier columns are read as strings; the driver returns the raw
// bytes in mixed-endian order otherwise.
const (
	contractColumns = `id, contract_number, CONVERT(NVARCHAR(36), user_id) AS user_id, total_amount, group_id,
		status, sale_start_date, sale_end_date, is_active, pv_id, customer_name, contract_type, quota,
		temp_matricula, matricula_id, version, category, plano_venda, import_session_id, created_at, updated_at`
	userColumns = `CONVERT(NVARCHAR(36), id) AS id, name, email, password_hash, role_id,
		CONVERT(NVARCHAR(36), parent_user_id) AS parent_user_id, is_active, import_session_id, created_at, updated_at`
	matriculaColumns = `id, CONVERT(NVARCHAR(36), user_id) AS user_id, matricula_number, start_date, status,
		is_owner, is_active, import_session_id`
	groupColumns = `id, name, description, commission, is_active, import_session_id, created_at`
	pvColumns    = `id, name, import_session_id`
)

// SQLStore is the importer.Store backed by SQL Server.
type SQLStore struct {
	db *sqlx.DB
}

var _ importer.Store = (*SQLStore)(nil)

func NewSQLStore(db *sqlx.DB) *SQLStore {
	return &SQLStore{db: db}
}

// selectIn runs query, which holds one "IN (?)", for keys in chunks.
func selectIn[T any](ctx context.Context, db *sqlx.DB, query string, keys []string) ([]T, error) {
	var out []T
	for start := 0; start < len(keys); start += inChunk {
		end := start + inChunk
		if end > len(keys) {
			end = len(keys)
		}
		q, args, err := sqlx.In(query, keys[start:end])
		if err != nil {
			return nil, err
		}
		var page []T
		if err := db.SelectContext(ctx, &page, db.Rebind(q), args...); err != nil {
			return nil, err
		}
		out = append(out, page...)
	}
	return out, nil
}

func (s *SQLStore) ContractsByNumbers(ctx context.Context, numbers []string) ([]*models.Contract, error) {
	out, err := selectIn[*models.Contract](ctx, s.db,
		"SELECT "+contractColumns+" FROM contracts WHERE contract_number IN (?)", numbers)
	return out, errors.Wrap(err, "select contracts")
}

const insertContract = `INSERT INTO contracts (contract_number, user_id, total_amount, group_id, status,
	sale_start_date, sale_end_date, is_active, pv_id, customer_name, contract_type, quota, temp_matricula,
	matricula_id, version, category, plano_venda, import_session_id, created_at, updated_at)
	OUTPUT INSERTED.id
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

// CreateContracts inserts all contracts in one transaction.
func (s *SQLStore) CreateContracts(ctx context.Context, contracts []*models.Contract) error {
	return s.inTx(ctx, func(tx *sqlx.Tx) error {
		q := tx.Rebind(insertContract)
		for _, c := range contracts {
			err := tx.QueryRowxContext(ctx, q,
				c.ContractNumber, uid(c.UserID), c.TotalAmount, c.GroupID, c.Status,
				c.SaleStartDate, c.SaleEndDate, c.IsActive, c.PvID, c.CustomerName, c.ContractType, c.Quota, c.TempMatricula,
				c.MatriculaID, c.Version, c.Category, c.PlanoVenda, c.ImportSessionID, c.CreatedAt, c.UpdatedAt,
			).Scan(&c.ID)
			if err != nil {
				return errors.Wrapf(err, "insert contract %s", c.ContractNumber)
			}
		}
		return nil
	})
}

const updateContract = `UPDATE contracts SET user_id = ?, total_amount = ?, group_id = ?, status = ?,
	sale_start_date = ?, sale_end_date = ?, pv_id = ?, customer_name = ?, contract_type = ?, quota = ?,
	temp_matricula = ?, matricula_id = ?, version = ?, category = ?, plano_venda = ?, updated_at = ?
	WHERE id = ?`

func (s *SQLStore) UpdateContracts(ctx context.Context, contracts []*models.Contract) error {
	return s.inTx(ctx, func(tx *sqlx.Tx) error {
		q := tx.Rebind(updateContract)
		for _, c := range contracts {
			_, err := tx.ExecContext(ctx, q,
				uid(c.UserID), c.TotalAmount, c.GroupID, c.Status,
				c.SaleStartDate, c.SaleEndDate, c.PvID, c.CustomerName, c.ContractType, c.Quota,
				c.TempMatricula, c.MatriculaID, c.Version, c.Category, c.PlanoVenda, c.UpdatedAt,
				c.ID,
			)
			if err != nil {
				return errors.Wrapf(err, "update contract %s", c.ContractNumber)
			}
		}
		return nil
	})
}

func (s *SQLStore) UsersByEmails(ctx context.Context, emails []string) ([]*models.User, error) {
	out, err := selectIn[*models.User](ctx, s.db,
		"SELECT "+userColumns+" FROM users WHERE email IN (?)", emails)
	return out, errors.Wrap(err, "select users")
}

const insertUser = `INSERT INTO users (id, name, email, password_hash, role_id, parent_user_id, is_active,
	import_session_id, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

// CreateUsers inserts users in order, so parents listed before their
// children satisfy the parent foreign key.
func (s *SQLStore) CreateUsers(ctx context.Context, users []*models.User) error {
	return s.inTx(ctx, func(tx *sqlx.Tx) error {
		q := tx.Rebind(insertUser)
		for _, u := range users {
			_, err := tx.ExecContext(ctx, q,
				u.ID.String(), u.Name, u.Email, u.PasswordHash, u.RoleID, uid(u.ParentUserID), u.IsActive,
				u.ImportSessionID, u.CreatedAt, u.UpdatedAt,
			)
			if err != nil {
				return errors.Wrapf(err, "insert user %s", u.Email)
			}
		}
		return nil
	})
}

const updateUser = `UPDATE users SET name = ?, password_hash = ?, role_id = ?, parent_user_id = ?, updated_at = ?
	WHERE id = ?`

func (s *SQLStore) UpdateUsers(ctx context.Context, users []*models.User) error {
	return s.inTx(ctx, func(tx *sqlx.Tx) error {
		q := tx.Rebind(updateUser)
		for _, u := range users {
			if _, err := tx.ExecContext(ctx, q, u.Name, u.PasswordHash, u.RoleID, uid(u.ParentUserID), u.UpdatedAt, u.ID.String()); err != nil {
				return errors.Wrapf(err, "update user %s", u.Email)
			}
		}
		return nil
	})
}

func (s *SQLStore) MatriculasByNumbers(ctx context.Context, numbers []string) ([]*models.UserMatricula, error) {
	out, err := selectIn[*models.UserMatricula](ctx, s.db,
		"SELECT "+matriculaColumns+" FROM user_matriculas WHERE matricula_number IN (?)", numbers)
	return out, errors.Wrap(err, "select matriculas")
}

const insertMatricula = `INSERT INTO user_matriculas (user_id, matricula_number, start_date, status, is_owner,
	is_active, import_session_id) OUTPUT INSERTED.id VALUES (?, ?, ?, ?, ?, ?, ?)`

func (s *SQLStore) CreateMatriculas(ctx context.Context, matriculas []*models.UserMatricula) error {
	return s.inTx(ctx, func(tx *sqlx.Tx) error {
		q := tx.Rebind(insertMatricula)
		for _, m := range matriculas {
			err := tx.QueryRowxContext(ctx, q,
				m.UserID.String(), m.MatriculaNumber, m.StartDate, m.Status, m.IsOwner, m.IsActive, m.ImportSessionID,
			).Scan(&m.ID)
			if err != nil {
				return errors.Wrapf(err, "insert matricula %s", m.MatriculaNumber)
			}
		}
		return nil
	})
}

// uid passes an optional user id as its string form.
func uid(id *uuid.UUID) interface{} {
	if id == nil {
		return nil
	}
	return id.String()
}

// getOne maps sql.ErrNoRows to a nil result.
func getOne[T any](ctx context.Context, db *sqlx.DB, query string, args ...interface{}) (*T, error) {
	var v T
	err := db.GetContext(ctx, &v, db.Rebind(query), args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func (s *SQLStore) GroupByName(ctx context.Context, name string) (*models.Group, error) {
	return getOne[models.Group](ctx, s.db,
		"SELECT TOP 1 "+groupColumns+" FROM groups WHERE LOWER(name) = LOWER(?) ORDER BY id", name)
}

func (s *SQLStore) GroupByID(ctx context.Context, id int64) (*models.Group, error) {
	return getOne[models.Group](ctx, s.db, "SELECT "+groupColumns+" FROM groups WHERE id = ?", id)
}

func (s *SQLStore) CreateGroup(ctx context.Context, g *models.Group) error {
	q := s.db.Rebind(`INSERT INTO groups (name, description, commission, is_active, import_session_id, created_at)
		OUTPUT INSERTED.id VALUES (?, ?, ?, ?, ?, ?)`)
	return s.db.QueryRowxContext(ctx, q,
		g.Name, g.Description, g.Commission, g.IsActive, g.ImportSessionID, g.CreatedAt,
	).Scan(&g.ID)
}

func (s *SQLStore) PVByName(ctx context.Context, name string) (*models.PV, error) {
	return getOne[models.PV](ctx, s.db,
		"SELECT TOP 1 "+pvColumns+" FROM pvs WHERE LOWER(name) = LOWER(?) ORDER BY id", name)
}

func (s *SQLStore) PVByID(ctx context.Context, id int) (*models.PV, error) {
	return getOne[models.PV](ctx, s.db, "SELECT "+pvColumns+" FROM pvs WHERE id = ?", id)
}

func (s *SQLStore) CreatePV(ctx context.Context, pv *models.PV) error {
	_, err := s.db.ExecContext(ctx, s.db.Rebind("INSERT INTO pvs (id, name, import_session_id) VALUES (?, ?, ?)"),
		pv.ID, pv.Name, pv.ImportSessionID)
	return err
}

func (s *SQLStore) Begin(ctx context.Context) (importer.Tx, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, errors.Wrap(err, "begin")
	}
	return &sqlTx{tx: tx}, nil
}

func (s *SQLStore) inTx(ctx context.Context, fn func(*sqlx.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin")
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return errors.Wrap(tx.Commit(), "commit")
}
