package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nvr-ai/go-mot/images"
	"github.com/nvr-ai/go-mot/tracking"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "tracks.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestOpen_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tracks.db")
	ctx := context.Background()

	s, err := Open(ctx, path)
	require.NoError(t, err)
	_, err = s.BeginRun(ctx, "first", tracking.DefaultConfig())
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = Open(ctx, path)
	require.NoError(t, err)
	defer s.Close()

	runs, err := s.Runs(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "first", runs[0].Name)
	assert.Equal(t, path, s.Path())
}

func TestOpen_SchemaMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tracks.db")
	ctx := context.Background()

	s, err := Open(ctx, path)
	require.NoError(t, err)
	_, err = s.db.ExecContext(ctx, "UPDATE schema_version SET version = 99")
	require.NoError(t, err)
	require.NoError(t, s.Close())

	_, err = Open(ctx, path)
	require.ErrorIs(t, err, ErrSchemaMismatch)
}

func TestRun_WriteFrameAndTracks(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	cfg := tracking.DefaultConfig()
	cfg.MaxAge = 9
	run, err := s.BeginRun(ctx, "clip.jsonl", cfg)
	require.NoError(t, err)

	first := tracking.TrackedBbox{
		ID:              1,
		Box:             images.BboxXyxy{X0: 0.1, Y0: 0.2, X1: 0.3, Y1: 0.4, Confidence: 0.9},
		FreshlyObserved: true,
	}
	second := tracking.TrackedBbox{
		ID:       1,
		Box:      images.BboxXyxy{X0: 0.12, Y0: 0.2, X1: 0.32, Y1: 0.4, Confidence: 0.9},
		Velocity: tracking.Velocity{U: 0.02},
	}
	other := tracking.TrackedBbox{
		ID:              2,
		Box:             images.BboxXyxy{X0: 0.6, Y0: 0.6, X1: 0.7, Y1: 0.9, Confidence: 0.5},
		FreshlyObserved: true,
	}

	require.NoError(t, run.WriteFrame(ctx, 1, []tracking.TrackedBbox{first, other}))
	require.NoError(t, run.WriteFrame(ctx, 2, []tracking.TrackedBbox{second}))
	require.NoError(t, run.WriteFrame(ctx, 3, nil))

	got, err := s.Tracks(ctx, run.ID, 1)
	require.NoError(t, err)
	want := []Observation{
		{Frame: 1, TrackedBbox: first},
		{Frame: 2, TrackedBbox: second},
	}
	assert.Empty(t, cmp.Diff(want, got))

	none, err := s.Tracks(ctx, run.ID, 42)
	require.NoError(t, err)
	assert.Empty(t, none)

	runs, err := s.Runs(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, run.ID, runs[0].ID)
	assert.Equal(t, cfg, runs[0].Config)
	assert.Equal(t, 2, runs[0].Frames)
	assert.Equal(t, 2, runs[0].Tracks)
	assert.False(t, runs[0].CreatedAt.IsZero())
}

func TestRuns_AreIsolated(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	a, err := s.BeginRun(ctx, "a", tracking.DefaultConfig())
	require.NoError(t, err)
	b, err := s.BeginRun(ctx, "b", tracking.DefaultConfig())
	require.NoError(t, err)
	assert.NotEqual(t, a.ID, b.ID)

	track := tracking.TrackedBbox{ID: 1, Box: images.BboxXyxy{X1: 0.1, Y1: 0.1, Confidence: 0.8}, FreshlyObserved: true}
	require.NoError(t, a.WriteFrame(ctx, 1, []tracking.TrackedBbox{track}))

	got, err := s.Tracks(ctx, b.ID, 1)
	require.NoError(t, err)
	assert.Empty(t, got)

	runs, err := s.Runs(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "a", runs[0].Name)
	assert.Equal(t, 1, runs[0].Frames)
	assert.Zero(t, runs[1].Frames)
}

func TestTracks_UnknownRun(t *testing.T) {
	s := openTestStore(t)

	_, err := s.Tracks(context.Background(), uuid.New(), 1)
	require.ErrorIs(t, err, ErrRunNotFound)
}
