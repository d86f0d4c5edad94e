package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Contract struct {
	ID              int64           `db:"id"`
	ContractNumber  string          `db:"contract_number"`
	UserID          *uuid.UUID      `db:"user_id"`
	TotalAmount     decimal.Decimal `db:"total_amount"`
	GroupID         *int64          `db:"group_id"`
	Status          string          `db:"status"`
	SaleStartDate   time.Time       `db:"sale_start_date"`
	SaleEndDate     *time.Time      `db:"sale_end_date"`
	IsActive        bool            `db:"is_active"`
	PvID            *int            `db:"pv_id"`
	CustomerName    string          `db:"customer_name"`
	ContractType    *int            `db:"contract_type"`
	Quota           *int            `db:"quota"`
	TempMatricula   string          `db:"temp_matricula"`
	MatriculaID     *int64          `db:"matricula_id"`
	Version         *int            `db:"version"`
	Category        string          `db:"category"`
	PlanoVenda      string          `db:"plano_venda"`
	ImportSessionID *int64          `db:"import_session_id"`
	CreatedAt       time.Time       `db:"created_at"`
	UpdatedAt       time.Time       `db:"updated_at"`
}

// Contract types as stored in Contract.ContractType.
const (
	ContractTypeLar     = 0
	ContractTypeMotores = 1
)

type User struct {
	ID              uuid.UUID  `db:"id"`
	Name            string     `db:"name"`
	Email           string     `db:"email"`
	PasswordHash    string     `db:"password_hash"`
	RoleID          int        `db:"role_id"`
	ParentUserID    *uuid.UUID `db:"parent_user_id"`
	IsActive        bool       `db:"is_active"`
	ImportSessionID *int64     `db:"import_session_id"`
	CreatedAt       time.Time  `db:"created_at"`
	UpdatedAt       time.Time  `db:"updated_at"`
}

// DefaultRoleID is the plain user role.
const DefaultRoleID = 3

type UserMatricula struct {
	ID              int64     `db:"id"`
	UserID          uuid.UUID `db:"user_id"`
	MatriculaNumber string    `db:"matricula_number"`
	StartDate       time.Time `db:"start_date"`
	Status          string    `db:"status"`
	IsOwner         bool      `db:"is_owner"`
	IsActive        bool      `db:"is_active"`
	ImportSessionID *int64    `db:"import_session_id"`
}

type Group struct {
	ID              int64           `db:"id"`
	Name            string          `db:"name"`
	Description     string          `db:"description"`
	Commission      decimal.Decimal `db:"commission"`
	IsActive        bool            `db:"is_active"`
	ImportSessionID *int64          `db:"import_session_id"`
	CreatedAt       time.Time       `db:"created_at"`
}

// PV is a point of sale. Its ID is supplied by the source system, never generated.
type PV struct {
	ID              int    `db:"id"`
	Name            string `db:"name"`
	ImportSessionID *int64 `db:"import_session_id"`
}

// UserContact is an active user as seen by the enriched export: one entry
// per active matricula, or one with a blank Matricula for users without any.
type UserContact struct {
	Name      string `db:"name"`
	Email     string `db:"email"`
	Matricula string `db:"matricula_number"`
}
