// Package importer turns mapped source rows into contracts and users and
// persists them in bulk.
package importer

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-playground/validator/v10"

	"github.com/BartekS5/salesimport/internal/etl"
	"github.com/BartekS5/salesimport/internal/resolver"
	"github.com/BartekS5/salesimport/pkg/models"
	"github.com/BartekS5/salesimport/pkg/utils"
)

// Options are the per-import switches chosen by the caller.
type Options struct {
	// DateFormat is a hint such as "DD/MM/YYYY" tried before the fixed layouts.
	DateFormat                string
	SkipMissingContractNumber bool
	AllowAutoCreateGroups     bool
	AllowAutoCreatePVs        bool
}

// Request is one page of rows to execute.
type Request struct {
	SessionID *int64
	UploadID  string
	Rows      []map[string]string
	Mapping   models.FieldMapping
	// RowOffset is the index of Rows[0] within the whole file, so row
	// numbers in errors stay global across pages.
	RowOffset int
	Options   Options
	// Resolver is shared by every page of one execution so lookups and
	// auto-creates happen once per token. A fresh one is built when nil.
	Resolver *resolver.Resolver
}

type Engine struct {
	store    Store
	notifier Notifier
	hasher   PasswordHasher
	now      func() time.Time
	validate *validator.Validate
}

type Option func(*Engine)

func WithNotifier(n Notifier) Option {
	return func(e *Engine) { e.notifier = n }
}

func WithPasswordHasher(h PasswordHasher) Option {
	return func(e *Engine) { e.hasher = h }
}

func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func New(store Store, opts ...Option) *Engine {
	e := &Engine{
		store:    store,
		hasher:   argonHasher{},
		now:      time.Now,
		validate: validator.New(),
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// NewResolver builds the group and point-of-sale resolver for one
// execution over the engine's store.
func (e *Engine) NewResolver(sessionID *int64, uploadID string, opts Options) *resolver.Resolver {
	return resolver.New(e.store, e.store, resolver.Options{
		SessionID:             sessionID,
		UploadID:              uploadID,
		AllowAutoCreateGroups: opts.AllowAutoCreateGroups,
		AllowAutoCreatePVs:    opts.AllowAutoCreatePVs,
		Now:                   e.now,
	})
}

func (e *Engine) resolver(req *Request) *resolver.Resolver {
	if req.Resolver != nil {
		return req.Resolver
	}
	return e.NewResolver(req.SessionID, req.UploadID, req.Options)
}

// createdSince reports the names a resolver created after the given counts,
// so pages sharing one resolver do not report the same entity twice.
func createdSince(res *resolver.Resolver, groups, pvs int) ([]string, []string) {
	return res.CreatedGroups()[groups:], res.CreatedPVs()[pvs:]
}

type rowError struct {
	Row int
	Err error
}

func (e *rowError) Error() string {
	return fmt.Sprintf("Row %d: %v", e.Row, e.Err)
}

func (e *rowError) Unwrap() error { return e.Err }

// run accumulates the outcome of one execution call.
type run struct {
	req     *Request
	res     *models.ImportResult
	reverse map[string]string
	layouts []string
	failed  map[int]bool
}

func newRun(req *Request) *run {
	r := &run{
		req:     req,
		res:     &models.ImportResult{},
		reverse: req.Mapping.Reverse(),
		failed:  make(map[int]bool),
	}
	if req.Options.DateFormat != "" {
		r.layouts = []string{utils.LayoutFromPattern(req.Options.DateFormat)}
	}
	return r
}

// field returns the trimmed value of a target field, or "" when the field
// is not mapped or the column is absent.
func (r *run) field(row map[string]string, target string) string {
	src, ok := r.reverse[target]
	if !ok {
		return ""
	}
	v, ok := row[src]
	if !ok {
		v, _ = etl.Lookup(row, src)
	}
	return strings.TrimSpace(v)
}

func (r *run) mapped(target string) bool {
	_, ok := r.reverse[target]
	return ok
}

func (r *run) ok() {
	r.res.ProcessedRows++
}

func (r *run) fail(i int, err error) {
	re := &rowError{Row: r.req.RowOffset + i + 1, Err: err}
	r.res.FailedRows++
	r.failed[i] = true
	r.res.Errors = append(r.res.Errors, re.Error())
}

// reclassify moves rows counted as processed to failed after a batch
// failure. Rows already failed are left alone.
func (r *run) reclassify(rows []int) int {
	n := 0
	for _, i := range rows {
		if r.failed[i] {
			continue
		}
		r.failed[i] = true
		r.res.ProcessedRows--
		r.res.FailedRows++
		n++
	}
	return n
}

func (r *run) batchFailed(rows []int, err error) {
	n := r.reclassify(rows)
	r.res.Errors = append(r.res.Errors, fmt.Sprintf("Batch insert failed for %d rows: %v", n, err))
}

func (r *run) saveFailed(err error) {
	if r.res.SaveError == nil {
		r.res.SaveError = err
	}
	r.res.Errors = append(r.res.Errors, fmt.Sprintf("Save failed: %v", err))
}

func (r *run) parseDate(s string) (time.Time, error) {
	return utils.ParseDate(s, r.layouts...)
}

// staged collects new records together with the rows that contributed to
// each of them.
type staged[T any] struct {
	items []T
	rows  [][]int
}

func (s *staged[T]) add(item T, row int) int {
	s.items = append(s.items, item)
	s.rows = append(s.rows, []int{row})
	return len(s.items) - 1
}

func (s *staged[T]) touch(idx, row int) {
	s.rows[idx] = append(s.rows[idx], row)
}

// origins returns the distinct contributing rows.
func (s *staged[T]) origins() []int {
	seen := make(map[int]bool)
	var out []int
	for _, rows := range s.rows {
		for _, i := range rows {
			if !seen[i] {
				seen[i] = true
				out = append(out, i)
			}
		}
	}
	return out
}

// keep drops the items whose rows all failed.
func (s *staged[T]) keep(failed map[int]bool) {
	var items []T
	var rows [][]int
	for i, it := range s.items {
		alive := false
		for _, r := range s.rows[i] {
			if !failed[r] {
				alive = true
				break
			}
		}
		if alive {
			items = append(items, it)
			rows = append(rows, s.rows[i])
		}
	}
	s.items, s.rows = items, rows
}

func distinct(values []string) []string {
	seen := make(map[string]bool, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" || seen[strings.ToLower(v)] {
			continue
		}
		seen[strings.ToLower(v)] = true
		out = append(out, v)
	}
	return out
}

func parseContractType(s string) (*int, error) {
	if s == "" {
		return nil, nil
	}
	switch strings.ToLower(s) {
	case "lar":
		v := models.ContractTypeLar
		return &v, nil
	case "motores":
		v := models.ContractTypeMotores
		return &v, nil
	}
	v, err := utils.ParseOptionalInt(s)
	if err != nil {
		return nil, errors.Errorf("invalid contract type: %s", s)
	}
	return v, nil
}
