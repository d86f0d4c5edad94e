package wizard

import (
	"context"
	"io"

	"github.com/go-faster/errors"
	"github.com/sirupsen/logrus"

	"github.com/BartekS5/salesimport/internal/automap"
	"github.com/BartekS5/salesimport/internal/etl"
	"github.com/BartekS5/salesimport/internal/importer"
	"github.com/BartekS5/salesimport/internal/parser"
	"github.com/BartekS5/salesimport/internal/templates"
	"github.com/BartekS5/salesimport/pkg/logger"
	"github.com/BartekS5/salesimport/pkg/models"
)

// usersMapping is the fixed mapping of the users template file.
var usersMapping = models.FieldMapping{
	"Name":            models.FieldName,
	"Email":           models.FieldEmail,
	"ParentEmail":     models.FieldParentEmail,
	"Matricula":       models.FieldMatricula,
	"Owner_Matricula": models.FieldIsMatriculaOwner,
}

type flow func(ctx context.Context, req importer.Request) (*models.ImportResult, error)

func (w *Wizard) flowFor(tpl templates.Template) flow {
	switch {
	case tpl.Name == templates.ContractDashboard:
		return w.engine.ExecuteDashboard
	case tpl.EntityType == automap.EntityUser:
		return w.engine.ExecuteUsers
	}
	return w.engine.ExecuteContracts
}

// Execute confirms mapping for a freshly uploaded session and imports its
// stored rows page by page.
func (w *Wizard) Execute(ctx context.Context, uploadID string, mapping models.FieldMapping, opts importer.Options) (*models.ImportResult, error) {
	s, err := w.Session(ctx, uploadID)
	if err != nil {
		return nil, err
	}
	if s.Status != models.StatusWizardStep1 {
		return nil, errors.Wrapf(ErrNotPending, "%s is %s", s.UploadID, s.Status)
	}
	tpl, err := template(s.TemplateName)
	if err != nil {
		return nil, err
	}
	log := logger.WithFields(logrus.Fields{"uploadId": s.UploadID, "sessionId": s.ID, "template": tpl.Name})

	run := w.flowFor(tpl)
	shared := w.engine.NewResolver(&s.ID, s.UploadID, opts)
	res := &models.ImportResult{}
	loader := etl.LoaderFunc(func(ctx context.Context, offset int, rows []map[string]string) error {
		page, err := run(ctx, importer.Request{
			SessionID: &s.ID,
			UploadID:  s.UploadID,
			Rows:      rows,
			Mapping:   mapping,
			RowOffset: offset,
			Options:   opts,
			Resolver:  shared,
		})
		if err != nil {
			return err
		}
		res.Merge(page)
		return nil
	})
	p := etl.NewPipeline(&etl.SessionExtractor{Store: w.rows, SessionID: s.ID}, loader, w.opts.BatchSize)
	_, runErr := p.Run(ctx)

	s.Mappings = mapping
	s.TotalRows = res.TotalRows
	if runErr != nil {
		return nil, w.abort(ctx, s, res, runErr)
	}
	w.finish(s, res)
	if err := w.sessions.Update(ctx, s); err != nil {
		return nil, err
	}
	log.Infof("Import finished: %d processed, %d failed, %d skipped", res.ProcessedRows, res.FailedRows, res.SkippedRows)
	return res, nil
}

func (w *Wizard) finish(s *models.ImportSession, res *models.ImportResult) {
	s.Finish(res.ProcessedRows, res.FailedRows, w.opts.Now())
	if res.SaveError != nil {
		s.Status = models.StatusCompletedWithErrors
	}
}

// abort records what the pages committed before cause stopped the run, so
// the session can be undone and is not executed a second time. It returns
// cause.
func (w *Wizard) abort(ctx context.Context, s *models.ImportSession, res *models.ImportResult, cause error) error {
	s.Finish(res.ProcessedRows, res.FailedRows, w.opts.Now())
	s.Status = models.StatusCompletedWithErrors
	log := logger.WithFields(logrus.Fields{"uploadId": s.UploadID, "sessionId": s.ID})
	if err := w.sessions.Update(context.WithoutCancel(ctx), s); err != nil {
		log.Errorf("Could not record stopped import: %v", err)
	}
	log.Errorf("Import stopped after %d processed rows: %v", res.ProcessedRows, cause)
	return cause
}

// ImportUsers runs the user flow over an enriched users file and records
// the outcome on the original session.
func (w *Wizard) ImportUsers(ctx context.Context, uploadID string, in FileInput) (*models.ImportResult, error) {
	s, err := w.Session(ctx, uploadID)
	if err != nil {
		return nil, err
	}
	if s.Status == models.StatusUndone {
		return nil, errors.Wrap(ErrAlreadyUndone, s.UploadID)
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

	if tpl, ok := templates.ByName(templates.Users); ok {
		s.TemplateID = &tpl.ID
		s.TemplateName = tpl.Name
	}
	res := &models.ImportResult{}
	page := make([]map[string]string, 0, w.opts.BatchSize)
	offset := 0
	flush := func() error {
		if len(page) == 0 {
			return nil
		}
		r, err := w.engine.ExecuteUsers(ctx, importer.Request{
			SessionID: &s.ID,
			UploadID:  s.UploadID,
			Rows:      page,
			Mapping:   usersMapping,
			RowOffset: offset,
		})
		if err != nil {
			return errors.Wrapf(err, "import users at row %d", offset+1)
		}
		res.Merge(r)
		offset += len(page)
		page = make([]map[string]string, 0, w.opts.BatchSize)
		return nil
	}
	for {
		row, err := rr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, w.abort(ctx, s, res, errors.Wrapf(err, "parse row %d", offset+len(page)+1))
		}
		page = append(page, row)
		if len(page) >= w.opts.BatchSize {
			if err := flush(); err != nil {
				return nil, w.abort(ctx, s, res, err)
			}
		}
	}
	if err := flush(); err != nil {
		return nil, w.abort(ctx, s, res, err)
	}

	w.finish(s, res)
	if err := w.sessions.Update(ctx, s); err != nil {
		return nil, err
	}
	logger.WithFields(logrus.Fields{"uploadId": s.UploadID, "sessionId": s.ID}).
		Infof("Users import finished: %d processed, %d failed", res.ProcessedRows, res.FailedRows)
	return res, nil
}
