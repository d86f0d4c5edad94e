package importer

import (
	"context"

	"github.com/google/uuid"

	"github.com/BartekS5/salesimport/internal/resolver"
	"github.com/BartekS5/salesimport/pkg/models"
)

// ContractStore finders return only the records that exist; missing keys
// are simply absent from the result.
type ContractStore interface {
	ContractsByNumbers(ctx context.Context, numbers []string) ([]*models.Contract, error)
	// CreateContracts inserts the whole batch or nothing and fills in ids.
	CreateContracts(ctx context.Context, contracts []*models.Contract) error
	UpdateContracts(ctx context.Context, contracts []*models.Contract) error
}

type UserStore interface {
	UsersByEmails(ctx context.Context, emails []string) ([]*models.User, error)
	CreateUsers(ctx context.Context, users []*models.User) error
	UpdateUsers(ctx context.Context, users []*models.User) error
}

type MatriculaStore interface {
	MatriculasByNumbers(ctx context.Context, numbers []string) ([]*models.UserMatricula, error)
	CreateMatriculas(ctx context.Context, matriculas []*models.UserMatricula) error
}

// Store is everything the execution engine needs from persistence.
type Store interface {
	ContractStore
	UserStore
	MatriculaStore
	resolver.GroupStore
	resolver.PVStore

	Begin(ctx context.Context) (Tx, error)
}

// Tx carries the operations undo runs inside one transaction.
type Tx interface {
	DeleteContractsBySession(ctx context.Context, sessionID int64) (int64, error)
	DeleteMatriculasBySession(ctx context.Context, sessionID int64) (int64, error)

	UsersBySession(ctx context.Context, sessionID int64) ([]*models.User, error)
	// UserHasDependents reports contracts, matriculas or child users
	// pointing at the user, from any session.
	UserHasDependents(ctx context.Context, id uuid.UUID) (bool, error)
	DeleteUser(ctx context.Context, id uuid.UUID) error

	PVsBySession(ctx context.Context, sessionID int64) ([]*models.PV, error)
	PVReferenced(ctx context.Context, id int) (bool, error)
	DeletePV(ctx context.Context, id int) error

	GroupsBySession(ctx context.Context, sessionID int64) ([]*models.Group, error)
	GroupReferenced(ctx context.Context, id int64) (bool, error)
	DeleteGroup(ctx context.Context, id int64) error

	Commit() error
	Rollback() error
}

// Notifier is told about users created with the SendEmail flag.
type Notifier interface {
	UserCreated(ctx context.Context, u *models.User) error
}
