package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Session statuses.
const (
	StatusWizardStep1         = "wizard_step1"
	StatusCompleted           = "completed"
	StatusCompletedWithErrors = "completed_with_errors"
	StatusUndone              = "undone"
)

type ImportSession struct {
	ID            int64
	UploadID      string
	TemplateID    *int
	TemplateName  string
	FileName      string
	FileType      string
	UploadedBy    uuid.UUID
	Status        string
	TotalRows     int
	ProcessedRows int
	FailedRows    int
	Columns       []string
	Mappings      FieldMapping
	CreatedAt     time.Time
	CompletedAt   *time.Time
}

// Finish records the outcome of an execution and moves the session to its
// terminal status.
func (s *ImportSession) Finish(processed, failed int, now time.Time) {
	s.ProcessedRows = processed
	s.FailedRows = failed
	s.Status = StatusCompleted
	if failed > 0 {
		s.Status = StatusCompletedWithErrors
	}
	s.CompletedAt = &now
}

// Undoable reports whether the session reached a terminal import status.
func (s *ImportSession) Undoable() bool {
	return s.Status == StatusCompleted || s.Status == StatusCompletedWithErrors
}

// ImportRow is one persisted source row. RowData holds the JSON encoded
// column -> value map exactly as parsed.
type ImportRow struct {
	SessionID int64  `bson:"sessionId"`
	RowIndex  int    `bson:"rowIndex"`
	RowData   string `bson:"rowData"`
}

// NewUploadID builds the public session identifier: a UTC timestamp plus
// the first 8 characters of a random UUID.
func NewUploadID(now time.Time) string {
	return fmt.Sprintf("%s-%s", now.UTC().Format("20060102150405"), uuid.NewString()[:8])
}
