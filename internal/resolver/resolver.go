// Package resolver turns the group and point-of-sale references found in
// import rows into database ids, creating the entities when allowed.
//
// A Resolver memoizes every token it sees, misses included, and lives for
// exactly one execution call. It is not safe for concurrent use.
package resolver

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/BartekS5/salesimport/pkg/logger"
	"github.com/BartekS5/salesimport/pkg/models"
)

// GroupStore finders return (nil, nil) when nothing matches.
type GroupStore interface {
	GroupByName(ctx context.Context, name string) (*models.Group, error)
	GroupByID(ctx context.Context, id int64) (*models.Group, error)
	CreateGroup(ctx context.Context, g *models.Group) error
}

// PVStore finders return (nil, nil) when nothing matches.
type PVStore interface {
	PVByName(ctx context.Context, name string) (*models.PV, error)
	PVByID(ctx context.Context, id int) (*models.PV, error)
	CreatePV(ctx context.Context, pv *models.PV) error
}

type Options struct {
	SessionID             *int64
	UploadID              string
	AllowAutoCreateGroups bool
	AllowAutoCreatePVs    bool
	Now                   func() time.Time
}

// CreateError reports a failed auto-create. It is returned once per token;
// later lookups of the same token see a plain miss.
type CreateError struct {
	Kind  string
	Token string
	Err   error
}

func (e *CreateError) Error() string {
	return fmt.Sprintf("could not create %s %q: %v", e.Kind, e.Token, e.Err)
}

func (e *CreateError) Unwrap() error { return e.Err }

type Resolver struct {
	groups GroupStore
	pvs    PVStore
	opts   Options

	groupCache map[string]*int64
	pvCache    map[string]*int

	createdGroups []string
	createdPVs    []string
}

func New(groups GroupStore, pvs PVStore, opts Options) *Resolver {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Resolver{
		groups:     groups,
		pvs:        pvs,
		opts:       opts,
		groupCache: make(map[string]*int64),
		pvCache:    make(map[string]*int),
	}
}

// CreatedGroups lists the names of groups created by this resolver.
func (r *Resolver) CreatedGroups() []string { return append([]string(nil), r.createdGroups...) }

// CreatedPVs lists the names of points of sale created by this resolver.
func (r *Resolver) CreatedPVs() []string { return append([]string(nil), r.createdPVs...) }

func cacheKey(token string) string {
	return strings.ToLower(strings.TrimSpace(token))
}

// ResolveGroup returns the id of the group named or numbered token.
// A nil id with a nil error means the group does not exist.
func (r *Resolver) ResolveGroup(ctx context.Context, token string) (*int64, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, nil
	}
	key := cacheKey(token)
	if id, ok := r.groupCache[key]; ok {
		return id, nil
	}

	g, err := r.groups.GroupByName(ctx, token)
	if err != nil {
		return nil, errors.Wrapf(err, "lookup group %q", token)
	}
	if g == nil {
		if n, perr := strconv.ParseInt(token, 10, 64); perr == nil {
			g, err = r.groups.GroupByID(ctx, n)
			if err != nil {
				return nil, errors.Wrapf(err, "lookup group %d", n)
			}
		}
	}
	if g != nil {
		id := g.ID
		r.groupCache[key] = &id
		return &id, nil
	}

	if !r.opts.AllowAutoCreateGroups {
		r.groupCache[key] = nil
		return nil, nil
	}

	g = &models.Group{
		Name:            token,
		Description:     fmt.Sprintf("Auto-created by import %s", r.opts.UploadID),
		Commission:      decimal.Zero,
		IsActive:        true,
		ImportSessionID: r.opts.SessionID,
		CreatedAt:       r.opts.Now().UTC(),
	}
	if err := r.groups.CreateGroup(ctx, g); err != nil {
		r.groupCache[key] = nil
		return nil, &CreateError{Kind: "group", Token: token, Err: err}
	}

	logger.WithFields(map[string]interface{}{"group": g.Name, "id": g.ID}).Info("auto-created group")
	id := g.ID
	r.groupCache[key] = &id
	r.createdGroups = appendOnce(r.createdGroups, g.Name)
	return &id, nil
}

// ResolvePV returns the id of the point of sale named or numbered token.
// name is used as display name when the PV has to be created; when token is
// blank, name is used as the token.
func (r *Resolver) ResolvePV(ctx context.Context, token, name string) (*int, error) {
	token = strings.TrimSpace(token)
	name = strings.TrimSpace(name)
	if token == "" {
		token = name
	}
	if token == "" {
		return nil, nil
	}
	key := cacheKey(token)
	if id, ok := r.pvCache[key]; ok {
		return id, nil
	}

	pv, err := r.pvs.PVByName(ctx, token)
	if err != nil {
		return nil, errors.Wrapf(err, "lookup point of sale %q", token)
	}
	n, perr := strconv.Atoi(token)
	numeric := perr == nil
	if pv == nil && numeric {
		pv, err = r.pvs.PVByID(ctx, n)
		if err != nil {
			return nil, errors.Wrapf(err, "lookup point of sale %d", n)
		}
	}
	if pv != nil {
		id := pv.ID
		r.pvCache[key] = &id
		return &id, nil
	}

	if !r.opts.AllowAutoCreatePVs || !numeric {
		r.pvCache[key] = nil
		return nil, nil
	}

	if name == "" || name == token {
		name = fmt.Sprintf("PV %d", n)
	}
	pv = &models.PV{ID: n, Name: name, ImportSessionID: r.opts.SessionID}
	if err := r.pvs.CreatePV(ctx, pv); err != nil {
		r.pvCache[key] = nil
		return nil, &CreateError{Kind: "point of sale", Token: token, Err: err}
	}

	logger.WithFields(map[string]interface{}{"pv": pv.Name, "id": pv.ID}).Info("auto-created point of sale")
	id := pv.ID
	r.pvCache[key] = &id
	r.createdPVs = appendOnce(r.createdPVs, pv.Name)
	return &id, nil
}

func appendOnce(list []string, v string) []string {
	for _, s := range list {
		if s == v {
			return list
		}
	}
	return append(list, v)
}
