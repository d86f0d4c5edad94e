package resolver

import (
	"context"
	"strings"
	"testing"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BartekS5/salesimport/pkg/models"
)

type fakeStore struct {
	groups    []*models.Group
	pvs       []*models.PV
	nextGroup int64

	groupLookups int
	groupCreates int
	pvCreates    int
	failCreate   bool
}

func (f *fakeStore) GroupByName(_ context.Context, name string) (*models.Group, error) {
	f.groupLookups++
	for _, g := range f.groups {
		if strings.EqualFold(g.Name, name) {
			return g, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) GroupByID(_ context.Context, id int64) (*models.Group, error) {
	for _, g := range f.groups {
		if g.ID == id {
			return g, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) CreateGroup(_ context.Context, g *models.Group) error {
	f.groupCreates++
	if f.failCreate {
		return errors.New("unique constraint")
	}
	f.nextGroup++
	g.ID = 100 + f.nextGroup
	f.groups = append(f.groups, g)
	return nil
}

func (f *fakeStore) PVByName(_ context.Context, name string) (*models.PV, error) {
	for _, p := range f.pvs {
		if strings.EqualFold(p.Name, name) {
			return p, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) PVByID(_ context.Context, id int) (*models.PV, error) {
	for _, p := range f.pvs {
		if p.ID == id {
			return p, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) CreatePV(_ context.Context, pv *models.PV) error {
	f.pvCreates++
	if f.failCreate {
		return errors.New("duplicate key")
	}
	f.pvs = append(f.pvs, pv)
	return nil
}

func TestResolveGroupByNameThenID(t *testing.T) {
	store := &fakeStore{groups: []*models.Group{{ID: 7, Name: "North"}, {ID: 12, Name: "South"}}}
	r := New(store, store, Options{})
	ctx := context.Background()

	id, err := r.ResolveGroup(ctx, " north ")
	require.NoError(t, err)
	require.NotNil(t, id)
	assert.Equal(t, int64(7), *id)

	id, err = r.ResolveGroup(ctx, "12")
	require.NoError(t, err)
	require.NotNil(t, id)
	assert.Equal(t, int64(12), *id)
}

func TestResolveGroupMissWithoutAutoCreateIsCached(t *testing.T) {
	store := &fakeStore{}
	r := New(store, store, Options{})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		id, err := r.ResolveGroup(ctx, "Ghost")
		require.NoError(t, err)
		assert.Nil(t, id)
	}
	assert.Equal(t, 1, store.groupLookups)
	assert.Zero(t, store.groupCreates)
}

func TestResolveGroupAutoCreate(t *testing.T) {
	sid := int64(9)
	store := &fakeStore{}
	r := New(store, store, Options{SessionID: &sid, UploadID: "up-1", AllowAutoCreateGroups: true})
	ctx := context.Background()

	first, err := r.ResolveGroup(ctx, "12153")
	require.NoError(t, err)
	second, err := r.ResolveGroup(ctx, "12153")
	require.NoError(t, err)

	require.NotNil(t, first)
	assert.Equal(t, *first, *second)
	assert.Equal(t, 1, store.groupCreates)
	assert.Equal(t, []string{"12153"}, r.CreatedGroups())

	g := store.groups[0]
	assert.True(t, g.Commission.IsZero())
	assert.Equal(t, &sid, g.ImportSessionID)
	assert.Contains(t, g.Description, "up-1")
}

func TestResolveGroupCreateFailureIsAttemptedOnce(t *testing.T) {
	store := &fakeStore{failCreate: true}
	r := New(store, store, Options{AllowAutoCreateGroups: true})
	ctx := context.Background()

	_, err := r.ResolveGroup(ctx, "Broken")
	var ce *CreateError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, "group", ce.Kind)

	id, err := r.ResolveGroup(ctx, "broken")
	require.NoError(t, err)
	assert.Nil(t, id)
	assert.Equal(t, 1, store.groupCreates)
	assert.Empty(t, r.CreatedGroups())
}

func TestResolvePVUsesTokenAsPrimaryKey(t *testing.T) {
	store := &fakeStore{}
	r := New(store, store, Options{AllowAutoCreatePVs: true})
	ctx := context.Background()

	id, err := r.ResolvePV(ctx, "12345", "Loja Centro")
	require.NoError(t, err)
	require.NotNil(t, id)
	assert.Equal(t, 12345, *id)
	assert.Equal(t, []string{"Loja Centro"}, r.CreatedPVs())

	id, err = r.ResolvePV(ctx, "777", "")
	require.NoError(t, err)
	require.NotNil(t, id)
	assert.Equal(t, "PV 777", store.pvs[1].Name)
	assert.Equal(t, 2, store.pvCreates)
}

func TestResolvePVNonNumericNeverCreated(t *testing.T) {
	store := &fakeStore{}
	r := New(store, store, Options{AllowAutoCreatePVs: true})

	id, err := r.ResolvePV(context.Background(), "Loja", "")
	require.NoError(t, err)
	assert.Nil(t, id)
	assert.Zero(t, store.pvCreates)
}

func TestResolvePVDisabled(t *testing.T) {
	store := &fakeStore{pvs: []*models.PV{{ID: 5, Name: "Five"}}}
	r := New(store, store, Options{})
	ctx := context.Background()

	id, err := r.ResolvePV(ctx, "5", "")
	require.NoError(t, err)
	require.NotNil(t, id)
	assert.Equal(t, 5, *id)

	id, err = r.ResolvePV(ctx, "54321", "New")
	require.NoError(t, err)
	assert.Nil(t, id)
	assert.Zero(t, store.pvCreates)
}
