package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/BartekS5/salesimport/pkg/models"
)

const sessionColumns = `id, upload_id, template_id, template_name, file_name, file_type,
	CONVERT(NVARCHAR(36), uploaded_by) AS uploaded_by, status, total_rows, processed_rows, failed_rows,
	columns_json, mappings_json, created_at, completed_at`

type sessionRow struct {
	ID            int64      `db:"id"`
	UploadID      string     `db:"upload_id"`
	TemplateID    *int       `db:"template_id"`
	TemplateName  string     `db:"template_name"`
	FileName      string     `db:"file_name"`
	FileType      string     `db:"file_type"`
	UploadedBy    uuid.UUID  `db:"uploaded_by"`
	Status        string     `db:"status"`
	TotalRows     int        `db:"total_rows"`
	ProcessedRows int        `db:"processed_rows"`
	FailedRows    int        `db:"failed_rows"`
	ColumnsJSON   string     `db:"columns_json"`
	MappingsJSON  string     `db:"mappings_json"`
	CreatedAt     time.Time  `db:"created_at"`
	CompletedAt   *time.Time `db:"completed_at"`
}

func (r *sessionRow) session() (*models.ImportSession, error) {
	s := &models.ImportSession{
		ID:            r.ID,
		UploadID:      r.UploadID,
		TemplateID:    r.TemplateID,
		TemplateName:  r.TemplateName,
		FileName:      r.FileName,
		FileType:      r.FileType,
		UploadedBy:    r.UploadedBy,
		Status:        r.Status,
		TotalRows:     r.TotalRows,
		ProcessedRows: r.ProcessedRows,
		FailedRows:    r.FailedRows,
		CreatedAt:     r.CreatedAt,
		CompletedAt:   r.CompletedAt,
	}
	if r.ColumnsJSON != "" {
		if err := json.Unmarshal([]byte(r.ColumnsJSON), &s.Columns); err != nil {
			return nil, errors.Wrapf(err, "session %s columns", r.UploadID)
		}
	}
	if r.MappingsJSON != "" {
		if err := json.Unmarshal([]byte(r.MappingsJSON), &s.Mappings); err != nil {
			return nil, errors.Wrapf(err, "session %s mappings", r.UploadID)
		}
	}
	return s, nil
}

func encodeJSON(columns []string, mappings models.FieldMapping) (string, string, error) {
	if columns == nil {
		columns = []string{}
	}
	if mappings == nil {
		mappings = models.FieldMapping{}
	}
	c, err := json.Marshal(columns)
	if err != nil {
		return "", "", err
	}
	m, err := json.Marshal(mappings)
	if err != nil {
		return "", "", err
	}
	return string(c), string(m), nil
}

// SessionStore persists import sessions.
type SessionStore struct {
	db *sqlx.DB
}

func NewSessionStore(db *sqlx.DB) *SessionStore {
	return &SessionStore{db: db}
}

// Create inserts s and sets its ID.
func (st *SessionStore) Create(ctx context.Context, s *models.ImportSession) error {
	cols, maps, err := encodeJSON(s.Columns, s.Mappings)
	if err != nil {
		return errors.Wrap(err, "encode session")
	}
	q := st.db.Rebind(`INSERT INTO import_sessions (upload_id, template_id, template_name, file_name, file_type,
		uploaded_by, status, total_rows, processed_rows, failed_rows, columns_json, mappings_json, created_at, completed_at)
		OUTPUT INSERTED.id VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	err = st.db.QueryRowxContext(ctx, q,
		s.UploadID, s.TemplateID, s.TemplateName, s.FileName, s.FileType,
		s.UploadedBy.String(), s.Status, s.TotalRows, s.ProcessedRows, s.FailedRows, cols, maps, s.CreatedAt, s.CompletedAt,
	).Scan(&s.ID)
	return errors.Wrapf(err, "insert session %s", s.UploadID)
}

// Update writes the mutable fields of s back.
func (st *SessionStore) Update(ctx context.Context, s *models.ImportSession) error {
	cols, maps, err := encodeJSON(s.Columns, s.Mappings)
	if err != nil {
		return errors.Wrap(err, "encode session")
	}
	q := st.db.Rebind(`UPDATE import_sessions SET template_id = ?, template_name = ?, status = ?, total_rows = ?,
		processed_rows = ?, failed_rows = ?, columns_json = ?, mappings_json = ?, completed_at = ?
		WHERE id = ?`)
	_, err = st.db.ExecContext(ctx, q,
		s.TemplateID, s.TemplateName, s.Status, s.TotalRows,
		s.ProcessedRows, s.FailedRows, cols, maps, s.CompletedAt,
		s.ID,
	)
	return errors.Wrapf(err, "update session %s", s.UploadID)
}

func (st *SessionStore) get(ctx context.Context, where string, arg interface{}) (*models.ImportSession, error) {
	var row sessionRow
	err := st.db.GetContext(ctx, &row, st.db.Rebind("SELECT "+sessionColumns+" FROM import_sessions WHERE "+where), arg)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "select session")
	}
	return row.session()
}

// ByUploadID returns nil when no session has that upload id.
func (st *SessionStore) ByUploadID(ctx context.Context, uploadID string) (*models.ImportSession, error) {
	return st.get(ctx, "upload_id = ?", uploadID)
}

// ByID returns nil when the session does not exist.
func (st *SessionStore) ByID(ctx context.Context, id int64) (*models.ImportSession, error) {
	return st.get(ctx, "id = ?", id)
}

// List returns the sessions in any of statuses, newest first.
func (st *SessionStore) List(ctx context.Context, statuses ...string) ([]*models.ImportSession, error) {
	query := "SELECT " + sessionColumns + " FROM import_sessions"
	var args []interface{}
	if len(statuses) > 0 {
		q, a, err := sqlx.In(query+" WHERE status IN (?)", statuses)
		if err != nil {
			return nil, err
		}
		query, args = q, a
	}
	query += " ORDER BY created_at DESC"

	var rows []sessionRow
	if err := st.db.SelectContext(ctx, &rows, st.db.Rebind(query), args...); err != nil {
		return nil, errors.Wrap(err, "select sessions")
	}
	out := make([]*models.ImportSession, 0, len(rows))
	for i := range rows {
		s, err := rows[i].session()
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

// UserDirectory lists active users for the enriched export.
type UserDirectory struct {
	db *sqlx.DB
}

func NewUserDirectory(db *sqlx.DB) *UserDirectory {
	return &UserDirectory{db: db}
}

func (d *UserDirectory) ActiveContacts(ctx context.Context) ([]models.UserContact, error) {
	var out []models.UserContact
	err := d.db.SelectContext(ctx, &out, `SELECT u.name, u.email, COALESCE(m.matricula_number, '') AS matricula_number
		FROM users u
		LEFT JOIN user_matriculas m ON m.user_id = u.id AND m.is_active = 1
		WHERE u.is_active = 1
		ORDER BY u.name`)
	if err != nil {
		return nil, errors.Wrap(err, "select active users")
	}
	for i := range out {
		out[i].Matricula = strings.TrimSpace(out[i].Matricula)
	}
	return out, nil
}
