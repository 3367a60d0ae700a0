package registrar

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gql2sql/internal/dsl"
	"gql2sql/internal/metrics"
	"gql2sql/internal/schema"
	"gql2sql/internal/typemap"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

var relations = []schema.Relation{
	{
		Name: "PhotoToUser", Kind: schema.ForeignKey,
		Source: "Photo", Target: "User", Field: "owner", Column: "owner_id", Inverse: "photos",
	},
	{
		Name: "UserPhotos", Kind: schema.ManyToMany,
		Source: "User", Target: "Photo", Field: "likes", Inverse: "likedBy",
		Junction: &schema.Junction{Table: "user_photo", SourceColumn: "user_id", TargetColumn: "photo_id"},
	},
	{
		Name: "AlbumToPhoto", Kind: schema.ForeignKey,
		Source: "Photo", Target: "Album", Field: "album", Column: "album_id",
	},
}

func TestPlan(t *testing.T) {
	regs := Plan(relations)
	assert.Equal(t, []Registration{
		{OwnerTable: "photo", Name: "owner", Kind: Object, Relation: "PhotoToUser", Column: "owner_id"},
		{OwnerTable: "user", Name: "photos", Kind: Array, Relation: "PhotoToUser", Column: "owner_id", RemoteTable: "photo", Reverse: true},
		{OwnerTable: "user", Name: "likes", Kind: Array, Relation: "UserPhotos", Column: "user_id", RemoteTable: "user_photo"},
		{OwnerTable: "photo", Name: "likedBy", Kind: Array, Relation: "UserPhotos", Column: "photo_id", RemoteTable: "user_photo", Reverse: true},
		{OwnerTable: "photo", Name: "album", Kind: Object, Relation: "AlbumToPhoto", Column: "album_id"},
	}, regs)

	keys := map[string]bool{}
	for _, r := range regs {
		require.False(t, keys[r.Key()], "duplicate key %s", r.Key())
		keys[r.Key()] = true
	}
}

func TestPlanKeysStayUniqueForReverseNames(t *testing.T) {
	types, err := typemap.Default("postgres")
	require.NoError(t, err)
	tr, err := schema.NewTranslator(types)
	require.NoError(t, err)

	entities := []*dsl.Entity{
		{Name: "User", Fields: []dsl.Field{{Name: "id", Type: "ID", IsID: true}}},
		{Name: "Photo", Fields: []dsl.Field{
			{Name: "id", Type: "ID", IsID: true},
			{Name: "owner", RefTarget: "User", RelationName: "PhotoOwner"},
			{Name: "editor", RefTarget: "User", RelationName: "PhotoEditor"},
		}},
	}
	snap, err := schema.Build(entities, tr, schema.Options{ReverseForOneSided: true})
	require.NoError(t, err)

	keys := map[string]bool{}
	var reverse []string
	for _, r := range Plan(snap.Relations) {
		require.False(t, keys[r.Key()], "duplicate key %s", r.Key())
		keys[r.Key()] = true
		if r.Reverse {
			reverse = append(reverse, r.Name)
		}
	}
	assert.Equal(t, []string{"photos", "photos_by_editor"}, reverse)
}

func TestTables(t *testing.T) {
	snap := &schema.Snapshot{
		Tables:    []schema.TableDefinition{{Name: "user"}, {Name: "photo"}},
		Relations: relations,
	}
	assert.Equal(t, []string{"user", "photo", "user_photo"}, Tables(snap))
}

type fake struct {
	prepared []string
	calls    []string
	fail     map[string]error
	prepErr  error
}

func (f *fake) Name() string { return "fake" }

func (f *fake) Prepare(_ context.Context, tables []string) error {
	f.prepared = tables
	return f.prepErr
}

func (f *fake) Register(_ context.Context, reg Registration) error {
	f.calls = append(f.calls, reg.Key())
	return f.fail[reg.Key()]
}

func TestRunnerCollectsFailures(t *testing.T) {
	boom := errors.New("boom")
	f := &fake{fail: map[string]error{"user.photos/array": boom}}
	m := metrics.New()

	failures, err := Runner{Registrar: f, Logger: quiet, Metrics: m}.Run(context.Background(), []string{"user", "photo"}, Plan(relations))
	require.NoError(t, err)
	assert.Equal(t, []string{"user", "photo"}, f.prepared)
	assert.Len(t, f.calls, 5, "a failure does not stop the run")

	require.Len(t, failures, 1)
	assert.Equal(t, "photos", failures[0].Registration.Name)
	assert.ErrorIs(t, failures, boom)
	assert.Contains(t, failures.Error(), "1 registration(s) failed: user.photos/array: boom")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Registrations.WithLabelValues("fake", "array", metrics.Error)))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Registrations.WithLabelValues("fake", "object", metrics.OK)))
}

func TestRunnerPrepareError(t *testing.T) {
	f := &fake{prepErr: errors.New("unreachable")}
	failures, err := Runner{Registrar: f, Logger: quiet}.Run(context.Background(), nil, Plan(relations))
	require.Error(t, err)
	assert.Nil(t, failures)
	assert.Empty(t, f.calls)
}

func TestNew(t *testing.T) {
	r, err := New(Config{}, nil, quiet)
	require.NoError(t, err)
	assert.Equal(t, FlavorNone, r.Name())

	r, err = New(Config{Flavor: "Hasura", Schema: "app", Hasura: HasuraConfig{Endpoint: "http://hasura:8080/"}}, nil, quiet)
	require.NoError(t, err)
	h, ok := r.(*Hasura)
	require.True(t, ok)
	assert.Equal(t, "app", h.cfg.Schema)
	assert.Equal(t, "http://hasura:8080", h.cfg.Endpoint)

	_, err = New(Config{Flavor: "hasura"}, nil, quiet)
	assert.True(t, schema.IsConfigError(err))

	_, err = New(Config{Flavor: "postgraphile"}, nil, quiet)
	assert.True(t, schema.IsConfigError(err))

	_, err = New(Config{Flavor: "prisma"}, nil, quiet)
	assert.True(t, schema.IsConfigError(err))
}
