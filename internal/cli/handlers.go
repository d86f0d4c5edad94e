package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/BartekS5/salesimport/internal/config"
	"github.com/BartekS5/salesimport/internal/etl"
	"github.com/BartekS5/salesimport/internal/importer"
	"github.com/BartekS5/salesimport/internal/repository"
	"github.com/BartekS5/salesimport/internal/wizard"
	"github.com/BartekS5/salesimport/pkg/database"
	"github.com/BartekS5/salesimport/pkg/logger"
	"github.com/BartekS5/salesimport/pkg/models"
)

func initLogger(cfg *config.Config) error {
	return logger.InitLogger(cfg.LogFile, cfg.LogLevel)
}

// app holds the connections one command needs.
type app struct {
	cfg         *config.Config
	sqlDB       *sqlx.DB
	mongoClient *mongo.Client
	wizard      *wizard.Wizard
	user        uuid.UUID
}

func openApp(ctx context.Context, opts *RootOptions) (*app, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, err
	}
	if err := initLogger(cfg); err != nil {
		return nil, err
	}

	a := &app{cfg: cfg}
	if opts.User != "" {
		if a.user, err = uuid.Parse(opts.User); err != nil {
			return nil, errors.Wrapf(err, "invalid user id %q", opts.User)
		}
	}
	batchSize := cfg.BatchSize
	if opts.BatchSize > 0 {
		batchSize = opts.BatchSize
	}

	a.sqlDB, err = database.ConnectSQL(cfg.SQLConnString)
	if err != nil {
		return nil, err
	}
	a.mongoClient, err = database.ConnectMongo(cfg.MongoConnString)
	if err != nil {
		a.sqlDB.Close()
		return nil, err
	}

	rows := etl.NewMongoRowStore(a.mongoClient, cfg.MongoDatabase, cfg.MongoRowsCollection)
	if err := rows.EnsureIndexes(ctx); err != nil {
		a.Close()
		return nil, err
	}
	engine := importer.New(repository.NewSQLStore(a.sqlDB), importer.WithNotifier(logNotifier{}))
	a.wizard = wizard.New(
		repository.NewSessionStore(a.sqlDB),
		rows,
		engine,
		repository.NewUserDirectory(a.sqlDB),
		wizard.Options{
			BatchSize:   batchSize,
			MaxRows:     cfg.MaxRows,
			PreviewRows: cfg.PreviewRows,
		},
	)
	return a, nil
}

func (a *app) Close() {
	exportMetrics(context.Background(), a.cfg, prometheus.DefaultGatherer)
	if a.mongoClient != nil {
		if err := a.mongoClient.Disconnect(context.Background()); err != nil {
			logger.Warnf("MongoDB disconnect: %v", err)
		}
	}
	if a.sqlDB != nil {
		a.sqlDB.Close()
	}
}

// exportMetrics hands the counters of this run to the configured sinks.
// Failures are logged; the command's own outcome stands.
func exportMetrics(ctx context.Context, cfg *config.Config, g prometheus.Gatherer) {
	if cfg == nil {
		return
	}
	if cfg.MetricsTextfile != "" {
		if err := importer.WriteMetrics(cfg.MetricsTextfile, g); err != nil {
			logger.Warnf("Metrics export: %v", err)
		}
	}
	if cfg.MetricsPushgateway != "" {
		ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		if err := importer.PushMetrics(ctx, cfg.MetricsPushgateway, cfg.MetricsJob, g); err != nil {
			logger.Warnf("Metrics push: %v", err)
		}
	}
}

// logNotifier stands in for the mail service, which lives outside this tool.
type logNotifier struct{}

func (logNotifier) UserCreated(_ context.Context, u *models.User) error {
	logger.Infof("User %s created, welcome email requested", u.Email)
	return nil
}

func parseDelimiter(s string) (rune, error) {
	switch s {
	case "":
		return 0, nil
	case ",", ";":
		return rune(s[0]), nil
	case "tab", `\t`:
		return '\t', nil
	}
	return 0, errors.Errorf("unsupported delimiter %q", s)
}

func openInput(path, delimiter string, user uuid.UUID) (wizard.FileInput, func() error, error) {
	d, err := parseDelimiter(delimiter)
	if err != nil {
		return wizard.FileInput{}, nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return wizard.FileInput{}, nil, errors.Wrap(err, "open input file")
	}
	return wizard.FileInput{
		Name:       path,
		Reader:     f,
		Delimiter:  d,
		UploadedBy: user,
	}, f.Close, nil
}

// createOutput returns stdout for an empty path.
func createOutput(path string, stdout io.Writer) (io.Writer, func() error, error) {
	if path == "" || path == "-" {
		return stdout, func() error { return nil }, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, errors.Wrap(err, "create output file")
	}
	return f, f.Close, nil
}

func writeJSON(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return errors.Wrapf(os.WriteFile(path, data, 0o644), "write %s", path)
}

func printPreview(w io.Writer, p *wizard.Preview) {
	fmt.Fprintf(w, "Upload:    %s (session %d)\n", p.UploadID, p.SessionID)
	fmt.Fprintf(w, "File:      %s [%s], %d rows\n", p.FileName, p.FileType, p.TotalRows)
	fmt.Fprintf(w, "Template:  %s (%s)\n", p.TemplateName, p.EntityType)
	if !p.TemplateMatch {
		fmt.Fprintf(w, "WARNING:   %s\n", p.MatchMessage)
	}
	fmt.Fprintln(w, "Suggested mappings:")
	for _, col := range p.Columns {
		if target, ok := p.SuggestedMappings[col]; ok {
			fmt.Fprintf(w, "  %-30s -> %s\n", col, target)
		}
	}
}

func printResult(w io.Writer, res *models.ImportResult) {
	fmt.Fprintf(w, "Rows: %d total, %d processed, %d failed, %d skipped\n",
		res.TotalRows, res.ProcessedRows, res.FailedRows, res.SkippedRows)
	fmt.Fprintf(w, "Contracts: %d created, %d updated. Users: %d created, %d updated\n",
		len(res.CreatedContracts), len(res.UpdatedContracts), len(res.CreatedUsers), len(res.UpdatedUsers))
	if len(res.CreatedGroups) > 0 {
		fmt.Fprintf(w, "Created groups: %v\n", res.CreatedGroups)
	}
	if len(res.CreatedPVs) > 0 {
		fmt.Fprintf(w, "Created points of sale: %v\n", res.CreatedPVs)
	}
	if res.SaveError != nil {
		fmt.Fprintf(w, "Save error: %v\n", res.SaveError)
	}
	for _, e := range res.Errors {
		fmt.Fprintf(w, "  %s\n", e)
	}
}

func printHistory(w io.Writer, sessions []*models.ImportSession) {
	for _, s := range sessions {
		completed := "-"
		if s.CompletedAt != nil {
			completed = s.CompletedAt.Format("2006-01-02 15:04")
		}
		fmt.Fprintf(w, "%-6d %-26s %-22s %-18s %6d/%-6d %s %s\n",
			s.ID, s.UploadID, s.Status, s.TemplateName, s.ProcessedRows, s.FailedRows, completed, s.FileName)
	}
}

// sessionID accepts either the numeric id or the upload id.
func sessionID(ctx context.Context, w *wizard.Wizard, arg string) (int64, error) {
	if id, err := strconv.ParseInt(arg, 10, 64); err == nil {
		return id, nil
	}
	s, err := w.Session(ctx, arg)
	if err != nil {
		return 0, err
	}
	return s.ID, nil
}
