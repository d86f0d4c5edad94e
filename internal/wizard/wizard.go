// Package wizard drives an import session through its steps: upload,
// users template, users import, enriched export, execution and undo.
package wizard

import (
	"context"
	"io"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/BartekS5/salesimport/internal/automap"
	"github.com/BartekS5/salesimport/internal/etl"
	"github.com/BartekS5/salesimport/internal/importer"
	"github.com/BartekS5/salesimport/internal/parser"
	"github.com/BartekS5/salesimport/internal/templates"
	"github.com/BartekS5/salesimport/pkg/logger"
	"github.com/BartekS5/salesimport/pkg/models"
)

var (
	ErrSessionNotFound = errors.New("import session not found")
	ErrAlreadyUndone   = errors.New("import session already undone")
	ErrNotCompleted    = errors.New("import session is not completed")
	ErrNotPending      = errors.New("import session was already executed")
	ErrTooManyRows     = errors.New("file has too many rows")
)

type SessionStore interface {
	Create(ctx context.Context, s *models.ImportSession) error
	Update(ctx context.Context, s *models.ImportSession) error
	ByUploadID(ctx context.Context, uploadID string) (*models.ImportSession, error)
	ByID(ctx context.Context, id int64) (*models.ImportSession, error)
	List(ctx context.Context, statuses ...string) ([]*models.ImportSession, error)
}

// UserDirectory is the source of known emails for the enriched export.
type UserDirectory interface {
	ActiveContacts(ctx context.Context) ([]models.UserContact, error)
}

type Options struct {
	BatchSize   int
	MaxRows     int
	PreviewRows int
	Now         func() time.Time
}

const (
	DefaultMaxRows     = 100000
	DefaultPreviewRows = 10
)

// FileInput is an uploaded file. A zero Delimiter means detect it; an
// empty Template means contractDashboard.
type FileInput struct {
	Name       string
	Reader     io.ReadSeeker
	Delimiter  rune
	Template   string
	UploadedBy uuid.UUID
}

// Preview is what Upload reports back.
type Preview struct {
	UploadID          string
	SessionID         int64
	TemplateID        int
	TemplateName      string
	EntityType        string
	FileName          string
	FileType          string
	Columns           []string
	SampleRows        []map[string]string
	TotalRows         int
	TemplateMatch     bool
	MatchMessage      string
	SuggestedMappings map[string]string
	RequiredFields    []string
	OptionalFields    []string
}

type Wizard struct {
	sessions SessionStore
	rows     etl.RowStore
	engine   *importer.Engine
	users    UserDirectory
	opts     Options
}

func New(sessions SessionStore, rows etl.RowStore, engine *importer.Engine, users UserDirectory, opts Options) *Wizard {
	if opts.BatchSize <= 0 {
		opts.BatchSize = etl.DefaultBatchSize
	}
	if opts.MaxRows <= 0 {
		opts.MaxRows = DefaultMaxRows
	}
	if opts.PreviewRows <= 0 {
		opts.PreviewRows = DefaultPreviewRows
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Wizard{
		sessions: sessions,
		rows:     rows,
		engine:   engine,
		users:    users,
		opts:     opts,
	}
}

func template(name string) (templates.Template, error) {
	if name == "" {
		name = templates.ContractDashboard
	}
	t, ok := templates.ByName(name)
	if !ok {
		return templates.Template{}, errors.Errorf("unknown template %q", name)
	}
	return t, nil
}

// Upload stores every row of the file under a new session and returns a
// preview with suggested mappings. Rows are flushed in batches, so only
// the preview rows stay in memory.
func (w *Wizard) Upload(ctx context.Context, in FileInput) (*Preview, error) {
	tpl, err := template(in.Template)
	if err != nil {
		return nil, err
	}
	fileType, err := parser.DetectFileType(in.Name, in.Reader)
	if err != nil {
		return nil, err
	}
	rr, err := parser.Open(fileType, in.Reader, in.Delimiter)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", in.Name)
	}
	defer rr.Close()

	tr := transformerFor(tpl)
	columns := rr.Columns()
	if tr != nil {
		columns = tr.Columns(columns)
	}
	now := w.opts.Now()
	session := &models.ImportSession{
		UploadID:     models.NewUploadID(now),
		TemplateID:   &tpl.ID,
		TemplateName: tpl.Name,
		FileName:     in.Name,
		FileType:     fileType,
		UploadedBy:   in.UploadedBy,
		Status:       models.StatusWizardStep1,
		Columns:      columns,
		CreatedAt:    now,
	}
	if err := w.sessions.Create(ctx, session); err != nil {
		return nil, err
	}
	log := logger.WithFields(logrus.Fields{"uploadId": session.UploadID, "sessionId": session.ID})

	sample, total, err := w.ingest(ctx, session.ID, rr, tr)
	if err != nil {
		if derr := w.rows.DeleteRows(ctx, session.ID); derr != nil {
			log.Warnf("Could not discard rows of failed upload: %v", derr)
		}
		return nil, err
	}
	session.TotalRows = total
	if err := w.sessions.Update(ctx, session); err != nil {
		return nil, err
	}
	log.Infof("Stored %d rows from %s", total, in.Name)

	suggested := automap.Suggest(session.Columns, tpl.EntityType, tpl.Fields())
	if len(tpl.DefaultMappings) > 0 {
		suggested = automap.Overlay(suggested, automap.ApplyTemplate(tpl.DefaultMappings, session.Columns))
	}
	q := tpl.Assess(suggested)
	if !q.Match {
		log.Warn(q.Message)
	}

	return &Preview{
		UploadID:          session.UploadID,
		SessionID:         session.ID,
		TemplateID:        tpl.ID,
		TemplateName:      tpl.Name,
		EntityType:        tpl.EntityType,
		FileName:          in.Name,
		FileType:          fileType,
		Columns:           session.Columns,
		SampleRows:        sample,
		TotalRows:         total,
		TemplateMatch:     q.Match,
		MatchMessage:      q.Message,
		SuggestedMappings: suggested,
		RequiredFields:    tpl.RequiredFields,
		OptionalFields:    tpl.OptionalFields,
	}, nil
}

// transformerFor returns nil for templates whose rows are stored as read.
// Only dashboard exports carry the packed Cota column.
func transformerFor(tpl templates.Template) *etl.Transformer {
	if tpl.Name != templates.ContractDashboard {
		return nil
	}
	return etl.NewTransformer()
}

func (w *Wizard) ingest(ctx context.Context, sessionID int64, rr parser.RowReader, tr *etl.Transformer) ([]map[string]string, int, error) {
	bw := etl.NewBatchWriter(w.rows, sessionID, w.opts.BatchSize)
	var sample []map[string]string
	for {
		row, err := rr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, 0, errors.Wrapf(err, "parse row %d", bw.Count()+1)
		}
		if bw.Count() >= w.opts.MaxRows {
			return nil, 0, errors.Wrapf(ErrTooManyRows, "limit is %d", w.opts.MaxRows)
		}
		if tr != nil {
			tr.AddVirtualColumns(row)
		}
		if len(sample) < w.opts.PreviewRows {
			sample = append(sample, row)
		}
		if err := bw.Write(ctx, row); err != nil {
			return nil, 0, err
		}
	}
	if err := bw.Flush(ctx); err != nil {
		return nil, 0, err
	}
	return sample, bw.Count(), nil
}

// Session returns the session with uploadID.
func (w *Wizard) Session(ctx context.Context, uploadID string) (*models.ImportSession, error) {
	s, err := w.sessions.ByUploadID(ctx, uploadID)
	if err != nil {
		return nil, err
	}
	if s == nil {
		return nil, errors.Wrap(ErrSessionNotFound, uploadID)
	}
	return s, nil
}

// History lists finished and undone sessions, newest first.
func (w *Wizard) History(ctx context.Context) ([]*models.ImportSession, error) {
	return w.sessions.List(ctx, models.StatusCompleted, models.StatusCompletedWithErrors, models.StatusUndone)
}

// Undo removes what the session created and marks it undone.
func (w *Wizard) Undo(ctx context.Context, sessionID int64) (*importer.UndoResult, error) {
	s, err := w.sessions.ByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	switch {
	case s == nil:
		return nil, errors.Wrapf(ErrSessionNotFound, "id %d", sessionID)
	case s.Status == models.StatusUndone:
		return nil, errors.Wrap(ErrAlreadyUndone, s.UploadID)
	case !s.Undoable():
		return nil, errors.Wrapf(ErrNotCompleted, "%s is %s", s.UploadID, s.Status)
	}

	res, err := w.engine.Undo(ctx, s.ID)
	if err != nil {
		return nil, err
	}
	s.Status = models.StatusUndone
	if err := w.sessions.Update(ctx, s); err != nil {
		return nil, err
	}
	logger.WithFields(logrus.Fields{"uploadId": s.UploadID, "sessionId": s.ID}).
		Infof("Undone: %d contracts, %d matriculas, %d users, %d PVs, %d groups",
			res.Contracts, res.Matriculas, res.Users, res.PVs, res.Groups)
	return res, nil
}
