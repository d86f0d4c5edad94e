package wizard

import (
	"context"
	"encoding/csv"
	"io"
	"sort"
	"strings"

	"github.com/go-faster/errors"

	"github.com/BartekS5/salesimport/internal/etl"
	"github.com/BartekS5/salesimport/internal/status"
	"github.com/BartekS5/salesimport/pkg/utils"
)

// Excel needs the BOM to read the exports as UTF-8.
const bom = "\uFEFF"

const (
	exportDateLayout = "01/02/2006"
	emailColumn      = "Email"
	statusColumn     = "Status"
)

var (
	nameColumns       = []string{"Comissionado", "Name", "Nome", "Vendedor", "Usuário"}
	matriculaColumns  = []string{"Matrícula", "Matricula", "Mat", "ID"}
	conferenciaColumn = []string{"Conferência", "Conferencia"}
	emailColumns      = []string{emailColumn, "E-mail"}
	usersTemplateHead = []string{"Name", "Email", "ParentEmail", "Matricula", "Owner_Matricula"}
)

// firstValue returns the first non-blank value among columns.
func firstValue(row map[string]string, columns ...string) string {
	for _, c := range columns {
		if v, ok := etl.Lookup(row, c); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

func findColumn(columns []string, names ...string) (string, bool) {
	for _, n := range names {
		for _, c := range columns {
			if strings.EqualFold(c, n) {
				return c, true
			}
		}
	}
	return "", false
}

func newCSV(out io.Writer) (*csv.Writer, error) {
	if _, err := io.WriteString(out, bom); err != nil {
		return nil, err
	}
	return csv.NewWriter(out), nil
}

func (w *Wizard) replay(ctx context.Context, sessionID int64, fn etl.LoaderFunc) error {
	_, err := etl.NewPipeline(&etl.SessionExtractor{Store: w.rows, SessionID: sessionID}, fn, w.opts.BatchSize).Run(ctx)
	return err
}

type person struct {
	name      string
	matricula string
}

// UsersTemplate writes a CSV with one line per distinct (name, matricula)
// pair found in the session rows, ready to be filled with emails.
func (w *Wizard) UsersTemplate(ctx context.Context, uploadID string, out io.Writer) (int, error) {
	s, err := w.Session(ctx, uploadID)
	if err != nil {
		return 0, err
	}

	seen := make(map[person]struct{})
	err = w.replay(ctx, s.ID, func(_ context.Context, _ int, rows []map[string]string) error {
		for _, row := range rows {
			p := person{name: firstValue(row, nameColumns...), matricula: firstValue(row, matriculaColumns...)}
			if p.name != "" && p.matricula != "" {
				seen[p] = struct{}{}
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	people := make([]person, 0, len(seen))
	for p := range seen {
		people = append(people, p)
	}
	sort.Slice(people, func(i, j int) bool {
		if people[i].name != people[j].name {
			return people[i].name < people[j].name
		}
		return people[i].matricula < people[j].matricula
	})

	cw, err := newCSV(out)
	if err != nil {
		return 0, err
	}
	_ = cw.Write(usersTemplateHead)
	for _, p := range people {
		_ = cw.Write([]string{p.name, "", "", p.matricula, "1"})
	}
	cw.Flush()
	return len(people), errors.Wrap(cw.Error(), "write users template")
}

type emailIndex struct {
	byMatricula map[string]string
	byName      map[string]string
}

func (w *Wizard) emailIndex(ctx context.Context) (*emailIndex, error) {
	contacts, err := w.users.ActiveContacts(ctx)
	if err != nil {
		return nil, err
	}
	idx := &emailIndex{byMatricula: map[string]string{}, byName: map[string]string{}}
	for _, c := range contacts {
		if m := strings.ToLower(strings.TrimSpace(c.Matricula)); m != "" {
			idx.byMatricula[m] = c.Email
		}
		n := strings.ToLower(strings.TrimSpace(c.Name))
		if _, ok := idx.byName[n]; !ok && n != "" {
			idx.byName[n] = c.Email
		}
	}
	return idx, nil
}

// email prefers the matricula match over the name match.
func (idx *emailIndex) email(row map[string]string) string {
	if m := strings.ToLower(firstValue(row, matriculaColumns...)); m != "" {
		if e, ok := idx.byMatricula[m]; ok {
			return e
		}
	}
	if n := strings.ToLower(firstValue(row, nameColumns...)); n != "" {
		return idx.byName[n]
	}
	return ""
}

func isDateColumn(col string) bool {
	c := strings.ToLower(col)
	return strings.Contains(c, "data") || strings.Contains(c, "dt")
}

func reformatDate(v string) string {
	if strings.TrimSpace(v) == "" {
		return v
	}
	t, err := utils.ParseDate(v)
	if err != nil {
		return v
	}
	return t.Format(exportDateLayout)
}

// ExportEnriched streams the session rows back out as CSV with an Email
// column filled from the known users. An existing Email column is reused and
// keeps its value when no user matches. The Conferência column, when
// present, overrides Status, and date columns are written as MM/DD/YYYY.
func (w *Wizard) ExportEnriched(ctx context.Context, uploadID string, out io.Writer) (int, error) {
	s, err := w.Session(ctx, uploadID)
	if err != nil {
		return 0, err
	}
	idx, err := w.emailIndex(ctx)
	if err != nil {
		return 0, err
	}

	columns := make([]string, 0, len(s.Columns)+2)
	for _, c := range s.Columns {
		if !strings.HasPrefix(strings.ToLower(c), "cota.") {
			columns = append(columns, c)
		}
	}
	confCol, hasConf := findColumn(columns, conferenciaColumn...)
	statusCol, hasStatus := findColumn(columns, statusColumn)
	if hasConf && !hasStatus {
		statusCol = statusColumn
		columns = append(columns, statusCol)
	}
	emailCol, hasEmail := findColumn(columns, emailColumns...)
	if !hasEmail {
		emailCol = emailColumn
		columns = append(columns, emailCol)
	}
	header := columns

	cw, err := newCSV(out)
	if err != nil {
		return 0, err
	}
	if err := cw.Write(header); err != nil {
		return 0, errors.Wrap(err, "write header")
	}

	written := 0
	record := make([]string, len(header))
	err = w.replay(ctx, s.ID, func(_ context.Context, offset int, rows []map[string]string) error {
		for _, row := range rows {
			if hasConf {
				row[statusCol] = status.MapOrDefault(row[confCol])
			}
			if e := idx.email(row); e != "" || !hasEmail {
				row[emailCol] = e
			}
			for i, c := range columns {
				v := row[c]
				if isDateColumn(c) {
					v = reformatDate(v)
				}
				record[i] = v
			}
			if err := cw.Write(record); err != nil {
				return err
			}
			written++
		}
		cw.Flush()
		return errors.Wrapf(cw.Error(), "write rows from %d", offset)
	})
	if err != nil {
		return written, err
	}
	return written, nil
}
