package importer

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BartekS5/salesimport/pkg/models"
)

var fixedNow = time.Date(2025, 9, 1, 12, 0, 0, 0, time.UTC)

func newTestEngine(store *memStore, opts ...Option) *Engine {
	opts = append([]Option{WithClock(func() time.Time { return fixedNow }), WithPasswordHasher(plainHasher{})}, opts...)
	return New(store, opts...)
}

func sessionID(id int64) *int64 { return &id }

var contractMapping = models.FieldMapping{
	"Contrato": models.FieldContractNumber,
	"Email":    models.FieldUserEmail,
	"Valor":    models.FieldTotalAmount,
	"Grupo":    models.FieldGroupID,
}

func seedUser(store *memStore, email string) *models.User {
	u := &models.User{ID: uuid.New(), Name: email, Email: email, RoleID: models.DefaultRoleID, IsActive: true}
	store.users = append(store.users, u)
	return u
}

func containsError(errs []string, sub string) bool {
	for _, e := range errs {
		if strings.Contains(e, sub) {
			return true
		}
	}
	return false
}

func TestExecuteContracts_InvalidCurrencyFailsOnlyThatRow(t *testing.T) {
	store := newMemStore()
	seedUser(store, "ana@example.com")
	e := newTestEngine(store)

	failedBefore := testutil.ToFloat64(importRows.WithLabelValues("contracts", "failed"))

	res, err := e.ExecuteContracts(context.Background(), Request{
		SessionID: sessionID(7),
		UploadID:  "20250901120000-abcd1234",
		Mapping:   contractMapping,
		Rows: []map[string]string{
			{"Contrato": "C1", "Email": "ana@example.com", "Valor": "1.234,56", "Grupo": "Grupo A"},
			{"Contrato": "C2", "Email": "ana@example.com", "Valor": "abc", "Grupo": "Grupo A"},
			{"Contrato": "C3", "Email": "ana@example.com", "Valor": "100,00", "Grupo": "Grupo A"},
		},
		Options: Options{AllowAutoCreateGroups: true},
	})
	require.NoError(t, err)

	assert.Equal(t, 3, res.TotalRows)
	assert.Equal(t, 2, res.ProcessedRows)
	assert.Equal(t, 1, res.FailedRows)
	require.Len(t, res.Errors, 1)
	assert.Contains(t, res.Errors[0], "Row 2")
	assert.Equal(t, []string{"Grupo A"}, res.CreatedGroups)

	require.Len(t, store.contracts, 2)
	assert.True(t, decimal.RequireFromString("1234.56").Equal(store.contracts[0].TotalAmount))
	assert.True(t, decimal.RequireFromString("100").Equal(store.contracts[1].TotalAmount))
	assert.Equal(t, "active", store.contracts[0].Status)
	assert.Equal(t, 1.0, testutil.ToFloat64(importRows.WithLabelValues("contracts", "failed"))-failedBefore)
}

func TestExecuteContracts_RowFailures(t *testing.T) {
	store := newMemStore()
	seedUser(store, "ana@example.com")
	store.contracts = append(store.contracts, &models.Contract{ID: 1, ContractNumber: "OLD"})
	e := newTestEngine(store)

	res, err := e.ExecuteContracts(context.Background(), Request{
		Mapping:   contractMapping,
		RowOffset: 500,
		Rows: []map[string]string{
			{"Contrato": "OLD", "Email": "ana@example.com", "Valor": "10"},
			{"Contrato": "N1", "Email": "ana@example.com", "Valor": "10"},
			{"Contrato": "n1", "Email": "ana@example.com", "Valor": "10"},
			{"Contrato": "N2", "Email": "ghost@example.com", "Valor": "10"},
			{"Contrato": "N3", "Email": "", "Valor": ""},
			{"Contrato": "N4", "Email": "ana@example.com", "Valor": "10", "Grupo": "Nope"},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, 1, res.ProcessedRows)
	assert.Equal(t, 5, res.FailedRows)
	assert.Contains(t, res.Errors[0], "Row 501: contract number OLD already exists")
	assert.Contains(t, res.Errors[1], "Row 503: duplicate contract number n1")
	assert.Contains(t, res.Errors[2], "Row 504: user not found")
	assert.Contains(t, res.Errors[3], "Row 505: Missing required fields: UserEmail, TotalAmount")
	assert.Contains(t, res.Errors[4], "Row 506: group not found: Nope")
}

func TestExecuteContracts_BatchFailureReclassifiesRows(t *testing.T) {
	store := newMemStore()
	seedUser(store, "ana@example.com")
	store.failCreateContracts = errors.New("unique constraint")
	e := newTestEngine(store)

	res, err := e.ExecuteContracts(context.Background(), Request{
		Mapping: contractMapping,
		Rows: []map[string]string{
			{"Contrato": "C1", "Email": "ana@example.com", "Valor": "10"},
			{"Contrato": "C2", "Email": "ana@example.com", "Valor": "x"},
			{"Contrato": "C3", "Email": "ana@example.com", "Valor": "30"},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, 0, res.ProcessedRows)
	assert.Equal(t, 3, res.FailedRows)
	require.Len(t, res.Errors, 2)
	assert.Equal(t, "Batch insert failed for 2 rows: unique constraint", res.Errors[1])
	assert.Empty(t, res.CreatedContracts)
}

var dashboardMapping = models.FieldMapping{
	"Contrato":   models.FieldContractNumber,
	"Valor":      models.FieldTotalAmount,
	"Data Venda": models.FieldSaleStartDate,
	"Grupo":      models.FieldGroupID,
	"Cota N":     models.FieldQuota,
	"Cliente":    models.FieldCustomerName,
	"PV":         models.FieldPvID,
	"Matricula":  models.FieldTempMatricula,
}

func TestExecuteDashboard(t *testing.T) {
	store := newMemStore()
	owner := seedUser(store, "owner@example.com")
	store.groups = append(store.groups, &models.Group{ID: 1, Name: "Grupo A", IsActive: true})
	store.matriculas = append(store.matriculas, &models.UserMatricula{
		ID: 40, UserID: owner.ID, MatriculaNumber: "M1", IsOwner: true, IsActive: true,
	})
	store.contracts = append(store.contracts, &models.Contract{
		ID: 50, ContractNumber: "E1", TotalAmount: decimal.NewFromInt(10), Status: "late1",
	})
	e := newTestEngine(store)

	rows := []map[string]string{
		{"Contrato": "C1", "Valor": "100", "Data Venda": "2025-08-31", "Grupo": "Grupo A", "Cota N": "12", "Cliente": "Ana", "PV": "999", "Matricula": "M1"},
		{"Contrato": "C2", "Valor": "100", "Data Venda": "", "Grupo": "Grupo A", "Cota N": "1", "Cliente": "Bia"},
		{"Contrato": "E1", "Valor": "20", "Data Venda": "2025-08-31", "Grupo": "Grupo A", "Cota N": "3", "Cliente": "Caio"},
		{"Contrato": "", "Valor": "55", "Data Venda": "2025-08-31", "Grupo": "", "Cota N": "", "Cliente": "", "Cota": "G9;15;x;Maria;y;C9"},
		{"Contrato": "C1", "Valor": "150", "Data Venda": "2025-08-31", "Grupo": "Grupo A", "Cota N": "12", "Cliente": "Ana"},
		{"Contrato": "C5", "Valor": "??", "Data Venda": "2025-08-31", "Grupo": "Grupo A", "Cota N": "5", "Cliente": "Eva"},
	}

	res, err := e.ExecuteDashboard(context.Background(), Request{
		SessionID: sessionID(9),
		Mapping:   dashboardMapping,
		Rows:      rows,
		Options:   Options{AllowAutoCreateGroups: true},
	})
	require.NoError(t, err)

	assert.Equal(t, 1, res.SkippedRows)
	assert.Equal(t, 5, res.TotalRows)
	assert.Equal(t, 4, res.ProcessedRows)
	assert.Equal(t, 1, res.FailedRows)
	require.Len(t, res.Errors, 1)
	assert.Contains(t, res.Errors[0], "Row 6")
	assert.Equal(t, []string{"G9"}, res.CreatedGroups)
	assert.Empty(t, res.CreatedPVs)

	require.Len(t, res.CreatedContracts, 2)
	c1, c9 := res.CreatedContracts[0], res.CreatedContracts[1]
	assert.Equal(t, "C1", c1.ContractNumber)
	assert.True(t, decimal.NewFromInt(150).Equal(c1.TotalAmount))
	assert.Nil(t, c1.PvID)
	require.NotNil(t, c1.UserID)
	assert.Equal(t, owner.ID, *c1.UserID)
	require.NotNil(t, c1.MatriculaID)
	assert.Equal(t, int64(40), *c1.MatriculaID)

	assert.Equal(t, "C9", c9.ContractNumber)
	assert.Equal(t, "Maria", c9.CustomerName)
	require.NotNil(t, c9.Quota)
	assert.Equal(t, 15, *c9.Quota)

	require.Len(t, res.UpdatedContracts, 1)
	for _, c := range store.contracts {
		if c.ContractNumber == "E1" {
			assert.True(t, decimal.NewFromInt(20).Equal(c.TotalAmount))
			assert.Equal(t, "late1", c.Status)
			assert.Equal(t, "Caio", c.CustomerName)
		}
	}
}

func TestExecuteDashboard_MissingContractNumber(t *testing.T) {
	rows := []map[string]string{
		{"Contrato": "", "Valor": "10", "Data Venda": "2025-08-31", "Grupo": "Grupo A", "Cota N": "1", "Cliente": "Ana"},
	}

	store := newMemStore()
	store.groups = append(store.groups, &models.Group{ID: 1, Name: "Grupo A"})
	e := newTestEngine(store)

	res, err := e.ExecuteDashboard(context.Background(), Request{
		Mapping: dashboardMapping,
		Rows:    rows,
		Options: Options{SkipMissingContractNumber: true},
	})
	require.NoError(t, err)
	assert.Equal(t, 0, res.TotalRows)
	assert.Equal(t, 1, res.SkippedRows)
	assert.Empty(t, res.Errors)

	res, err = e.ExecuteDashboard(context.Background(), Request{Mapping: dashboardMapping, Rows: rows})
	require.NoError(t, err)
	assert.Equal(t, 1, res.FailedRows)
	assert.Contains(t, res.Errors[0], "Missing required fields: ContractNumber")
}

func TestExecuteDashboard_SaveFailureKeepsCounts(t *testing.T) {
	store := newMemStore()
	store.groups = append(store.groups, &models.Group{ID: 1, Name: "Grupo A"})
	store.contracts = append(store.contracts, &models.Contract{ID: 50, ContractNumber: "E1"})
	store.failUpdateContracts = errors.New("deadlock")
	e := newTestEngine(store)

	res, err := e.ExecuteDashboard(context.Background(), Request{
		Mapping: dashboardMapping,
		Rows: []map[string]string{
			{"Contrato": "E1", "Valor": "20", "Data Venda": "2025-08-31", "Grupo": "Grupo A", "Cota N": "3", "Cliente": "Caio"},
		},
	})
	require.NoError(t, err)
	require.Error(t, res.SaveError)
	assert.Equal(t, 1, res.ProcessedRows)
	assert.Equal(t, 0, res.FailedRows)
	assert.True(t, containsError(res.Errors, "Save failed"))
}

var userMapping = models.FieldMapping{
	"Nome":   models.FieldName,
	"Email":  models.FieldEmail,
	"Chefe":  models.FieldParentEmail,
	"Mat":    models.FieldMatricula,
	"Dono":   models.FieldIsMatriculaOwner,
	"Enviar": models.FieldSendEmail,
	"Senha":  models.FieldPassword,
}

func TestExecuteUsers(t *testing.T) {
	store := newMemStore()
	boss := seedUser(store, "boss@example.com")
	store.matriculas = append(store.matriculas, &models.UserMatricula{
		ID: 1, UserID: boss.ID, MatriculaNumber: "M7", IsOwner: true, IsActive: true,
	})
	notifier := &recordingNotifier{}
	e := newTestEngine(store, WithNotifier(notifier))

	res, err := e.ExecuteUsers(context.Background(), Request{
		SessionID: sessionID(3),
		Mapping:   userMapping,
		Rows: []map[string]string{
			{"Nome": "Ana", "Email": "ana@example.com", "Chefe": "boss@example.com", "Mat": "M1", "Dono": "1", "Enviar": "sim", "Senha": "s3cret"},
			{"Nome": "Bia", "Email": "bia@example.com", "Chefe": "ana@example.com"},
			{"Nome": "Caio", "Email": "not-an-email"},
			{"Nome": "Duda", "Email": "duda@example.com", "Chefe": "ghost@example.com"},
			{"Nome": "Eva", "Email": "eva@example.com", "Mat": "M7", "Dono": "1"},
			{"Nome": "Boss Renamed", "Email": "boss@example.com"},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, 6, res.TotalRows)
	assert.Equal(t, 3, res.ProcessedRows)
	assert.Equal(t, 3, res.FailedRows)
	require.Len(t, res.Errors, 3)
	assert.Contains(t, res.Errors[0], "Row 3: invalid email")
	assert.Contains(t, res.Errors[1], "Row 4: parent user not found")
	assert.Contains(t, res.Errors[2], "Row 5: matricula M7 already has an owner")

	require.Len(t, res.CreatedUsers, 2)
	ana, bia := res.CreatedUsers[0], res.CreatedUsers[1]
	assert.Equal(t, models.DefaultRoleID, ana.RoleID)
	assert.Equal(t, "hashed:s3cret", ana.PasswordHash)
	require.NotNil(t, ana.ParentUserID)
	assert.Equal(t, boss.ID, *ana.ParentUserID)
	require.NotNil(t, bia.ParentUserID)
	assert.Equal(t, ana.ID, *bia.ParentUserID)
	assert.Empty(t, bia.PasswordHash)

	require.Len(t, res.UpdatedUsers, 1)
	assert.Equal(t, "Boss Renamed", res.UpdatedUsers[0].Name)

	var m1 *models.UserMatricula
	for _, m := range store.matriculas {
		if m.MatriculaNumber == "M1" {
			m1 = m
		}
	}
	require.NotNil(t, m1)
	assert.Equal(t, ana.ID, m1.UserID)
	assert.True(t, m1.IsOwner)
	assert.Equal(t, int64(3), *m1.ImportSessionID)

	assert.Equal(t, []string{"ana@example.com"}, notifier.emails)
}

func TestExecuteUsers_BatchFailureDropsMatriculas(t *testing.T) {
	store := newMemStore()
	seedUser(store, "boss@example.com")
	store.failCreateUsers = errors.New("timeout")
	e := newTestEngine(store)

	res, err := e.ExecuteUsers(context.Background(), Request{
		Mapping: userMapping,
		Rows: []map[string]string{
			{"Nome": "Ana", "Email": "ana@example.com", "Mat": "M1", "Dono": "1"},
			{"Nome": "Bia", "Email": "bia@example.com"},
			{"Nome": "Boss", "Email": "boss@example.com"},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, 1, res.ProcessedRows)
	assert.Equal(t, 2, res.FailedRows)
	assert.True(t, containsError(res.Errors, "Batch insert failed for 2 rows: timeout"))
	assert.Empty(t, store.matriculas)
}

func importForUndo(t *testing.T, store *memStore) {
	t.Helper()
	seedUser(store, "ana@example.com")
	e := newTestEngine(store)
	res, err := e.ExecuteContracts(context.Background(), Request{
		SessionID: sessionID(7),
		Mapping:   contractMapping,
		Rows: []map[string]string{
			{"Contrato": "C1", "Email": "ana@example.com", "Valor": "10", "Grupo": "Novo"},
			{"Contrato": "C2", "Email": "ana@example.com", "Valor": "20", "Grupo": "Novo"},
		},
		Options: Options{AllowAutoCreateGroups: true},
	})
	require.NoError(t, err)
	require.Equal(t, 2, res.ProcessedRows)
	require.Len(t, store.groups, 1)
}

func TestUndo_RemovesSessionEntities(t *testing.T) {
	store := newMemStore()
	importForUndo(t, store)
	okBefore := testutil.ToFloat64(importUndo.WithLabelValues("ok"))

	res, err := newTestEngine(store).Undo(context.Background(), 7)
	require.NoError(t, err)

	assert.Equal(t, int64(2), res.Contracts)
	assert.Equal(t, 1, res.Groups)
	assert.Empty(t, store.contracts)
	assert.Empty(t, store.groups)
	assert.Len(t, store.users, 1)
	assert.True(t, store.committed)
	assert.Equal(t, 1.0, testutil.ToFloat64(importUndo.WithLabelValues("ok"))-okBefore)
}

func TestUndo_KeepsEntitiesReferencedElsewhere(t *testing.T) {
	store := newMemStore()
	importForUndo(t, store)
	groupID := store.groups[0].ID
	store.contracts = append(store.contracts, &models.Contract{ID: 999, ContractNumber: "X", GroupID: &groupID, ImportSessionID: sessionID(8)})

	user := &models.User{ID: uuid.New(), Email: "new@example.com", ImportSessionID: sessionID(7)}
	child := &models.User{ID: uuid.New(), Email: "child@example.com", ParentUserID: &user.ID}
	store.users = append(store.users, user, child)

	res, err := newTestEngine(store).Undo(context.Background(), 7)
	require.NoError(t, err)

	assert.Equal(t, 0, res.Groups)
	assert.Equal(t, 0, res.Users)
	assert.Len(t, store.contracts, 1)
	assert.Len(t, store.groups, 1)
}

func TestUndo_FailureRollsBack(t *testing.T) {
	store := newMemStore()
	importForUndo(t, store)
	store.failDeleteGroup = errors.New("lock timeout")
	failedBefore := testutil.ToFloat64(importUndo.WithLabelValues("failed"))

	_, err := newTestEngine(store).Undo(context.Background(), 7)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "lock timeout")

	assert.True(t, store.rolledBack)
	assert.False(t, store.committed)
	assert.Len(t, store.contracts, 2)
	assert.Len(t, store.groups, 1)
	assert.Equal(t, 1.0, testutil.ToFloat64(importUndo.WithLabelValues("failed"))-failedBefore)
}

func TestArgonHasher(t *testing.T) {
	h, err := argonHasher{}.Hash("s3cret")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(h, "$argon2id$v=19$m=65536,t=3,p=2$"))

	h2, err := argonHasher{}.Hash("s3cret")
	require.NoError(t, err)
	assert.NotEqual(t, h, h2)
}

func TestParseContractType(t *testing.T) {
	v, err := parseContractType("Motores")
	require.NoError(t, err)
	assert.Equal(t, models.ContractTypeMotores, *v)

	v, err = parseContractType("")
	require.NoError(t, err)
	assert.Nil(t, v)

	_, err = parseContractType("barco")
	require.EqualError(t, err, "invalid contract type: barco")
}
