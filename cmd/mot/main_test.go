package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nvr-ai/go-mot/store"
	"github.com/nvr-ai/go-mot/tracking"
	"github.com/nvr-ai/go-mot/util"
)

func runCLI(t *testing.T, args []string, stdin string) (string, string, error) {
	t.Helper()

	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)

	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func decodeFrames(t *testing.T, out string) []util.FrameTracks {
	t.Helper()
	var frames []util.FrameTracks
	scanner := bufio.NewScanner(strings.NewReader(out))
	for scanner.Scan() {
		var f util.FrameTracks
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &f), scanner.Text())
		frames = append(frames, f)
	}
	require.NoError(t, scanner.Err())
	return frames
}

const stillObject = `{"frame":1,"detections":[{"x0":0.1,"y0":0.1,"x1":0.3,"y1":0.3,"confidence":0.9}]}
{"frame":2,"detections":[{"x0":0.1,"y0":0.1,"x1":0.3,"y1":0.3,"confidence":0.9}]}

{"frame":3,"detections":[{"x0":0.1,"y0":0.1,"x1":0.3,"y1":0.3,"confidence":0.9}]}
`

func TestVersion(t *testing.T) {
	out, _, err := runCLI(t, []string{"version"}, "")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "mot "), out)
}

func TestConfigCommands(t *testing.T) {
	out, _, err := runCLI(t, []string{"config", "init"}, "")
	require.NoError(t, err)
	assert.Contains(t, out, "[tracker]")
	assert.Contains(t, out, "max_age = 5")

	path := writeFile(t, "mot.toml", "[tracker]\nmax_age = 9\n")
	out, _, err = runCLI(t, []string{"--config", path, "config", "show"}, "")
	require.NoError(t, err)
	assert.Contains(t, out, "max_age = 9")
}

func TestInvalidConfig(t *testing.T) {
	path := writeFile(t, "mot.toml", "[tracker]\nmax_age = -1\n")
	_, _, err := runCLI(t, []string{"--config", path, "config", "show"}, "")
	require.Error(t, err)

	_, _, err = runCLI(t, []string{"--log-level", "loud", "config", "show"}, "")
	require.Error(t, err)
}

func TestReplay(t *testing.T) {
	input := writeFile(t, "detections.jsonl", stillObject)

	out, _, err := runCLI(t, []string{"replay", input}, "")
	require.NoError(t, err)

	frames := decodeFrames(t, out)
	require.Len(t, frames, 3)
	for i, f := range frames {
		assert.Equal(t, i+1, f.Frame)
		require.Len(t, f.Tracks, 1)
		assert.Equal(t, 1, f.Tracks[0].ID)
		assert.True(t, f.Tracks[0].FreshlyObserved)
		assert.InDelta(t, 0.9, f.Tracks[0].Box.Confidence, 1e-12)
	}
}

func TestReplay_Stdin(t *testing.T) {
	outPath := filepath.Join(t.TempDir(), "tracks.jsonl")

	stdout, _, err := runCLI(t, []string{"replay", "-", "--output", outPath}, stillObject)
	require.NoError(t, err)
	assert.Empty(t, stdout)

	data, err := os.ReadFile(outPath)
	require.NoError(t, err)
	assert.Len(t, decodeFrames(t, string(data)), 3)
}

func TestReplay_Reset(t *testing.T) {
	input := writeFile(t, "detections.jsonl",
		`{"frame":1,"detections":[{"x0":0.1,"y0":0.1,"x1":0.3,"y1":0.3,"confidence":0.9}]}
{"frame":2,"detections":[{"x0":0.6,"y0":0.6,"x1":0.8,"y1":0.8,"confidence":0.9}]}
{"frame":1,"reset":true,"detections":[{"x0":0.6,"y0":0.6,"x1":0.8,"y1":0.8,"confidence":0.9}]}
`)

	out, _, err := runCLI(t, []string{"replay", input}, "")
	require.NoError(t, err)

	frames := decodeFrames(t, out)
	require.Len(t, frames, 3)
	assert.Equal(t, []int{1, 2, 1}, []int{frames[0].Frame, frames[1].Frame, frames[2].Frame})

	// Before the reset the second box is a new identity; after it the
	// counters restart.
	var second []int
	for _, tr := range frames[1].Tracks {
		second = append(second, tr.ID)
	}
	assert.Contains(t, second, 2)
	require.Len(t, frames[2].Tracks, 1)
	assert.Equal(t, 1, frames[2].Tracks[0].ID)
}

func TestReplay_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{name: "not json", input: "frame 1\n"},
		{name: "confidence out of range", input: `{"frame":1,"detections":[{"x0":0,"y0":0,"x1":1,"y1":1,"confidence":1.5}]}` + "\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := runCLI(t, []string{"replay", "-"}, tt.input)
			require.Error(t, err)
			assert.ErrorIs(t, err, util.ErrMalformedRecord)
		})
	}

	_, _, err := runCLI(t, []string{"replay", filepath.Join(t.TempDir(), "missing.jsonl")}, "")
	require.Error(t, err)
}

func TestReplay_Directory(t *testing.T) {
	dir := t.TempDir()
	frames := map[string]string{
		"frame-1.json":  `{"detections":[{"x0":0.1,"y0":0.1,"x1":0.3,"y1":0.3,"confidence":0.9}]}`,
		"frame-2.json":  `{"detections":[{"x0":0.1,"y0":0.1,"x1":0.3,"y1":0.3,"confidence":0.9}]}`,
		"frame-10.json": `{"detections":[]}`,
	}
	for name, content := range frames {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}

	out, _, err := runCLI(t, []string{"replay", dir}, "")
	require.NoError(t, err)

	got := decodeFrames(t, out)
	require.Len(t, got, 3)
	require.Len(t, got[1].Tracks, 1)
	assert.True(t, got[1].Tracks[0].FreshlyObserved)
	require.Len(t, got[2].Tracks, 1)
	assert.False(t, got[2].Tracks[0].FreshlyObserved, "the empty third frame coasts")
}

func TestReplay_DegenerateDetections(t *testing.T) {
	db := filepath.Join(t.TempDir(), "tracks.db")
	input := `{"frame":1,"detections":[{"x0":0.1,"y0":0.5,"x1":0.3,"y1":0.5,"confidence":0.9},{"x0":0.6,"y0":0.6,"x1":0.8,"y1":0.8,"confidence":0.9}]}
{"frame":2,"detections":[{"x0":0.4,"y0":0.1,"x1":0.4,"y1":0.3,"confidence":0.9}]}
`

	out, _, err := runCLI(t, []string{"replay", "-", "--db", db}, input)
	require.NoError(t, err)

	frames := decodeFrames(t, out)
	require.Len(t, frames, 2)
	require.Len(t, frames[0].Tracks, 1)
	assert.Equal(t, 2, frames[0].Tracks[0].ID)
	require.Len(t, frames[1].Tracks, 1)
	assert.Equal(t, 2, frames[1].Tracks[0].ID)
}

func TestReplay_RecordsRun(t *testing.T) {
	input := writeFile(t, "parking.jsonl", stillObject)
	db := filepath.Join(t.TempDir(), "tracks.db")

	_, _, err := runCLI(t, []string{"replay", input, "--db", db, "--name", "parking"}, "")
	require.NoError(t, err)

	st, err := store.Open(context.Background(), db)
	require.NoError(t, err)
	runs, err := st.Runs(context.Background())
	require.NoError(t, err)
	require.NoError(t, st.Close())

	require.Len(t, runs, 1)
	assert.Equal(t, "parking", runs[0].Name)
	assert.Equal(t, 3, runs[0].Frames)
	assert.Equal(t, 1, runs[0].Tracks)
	assert.Equal(t, tracking.DefaultConfig(), runs[0].Config)

	out, _, err := runCLI(t, []string{"runs", "--db", db}, "")
	require.NoError(t, err)
	assert.Contains(t, out, runs[0].ID.String())
	assert.Contains(t, out, "parking")

	out, _, err = runCLI(t, []string{"runs", "track", runs[0].ID.String(), "1", "--db", db}, "")
	require.NoError(t, err)
	assert.Contains(t, out, "observed")
	assert.Contains(t, out, "0.900")

	_, _, err = runCLI(t, []string{"runs", "track", runs[0].ID.String(), "7", "--db", db}, "")
	require.Error(t, err)

	_, _, err = runCLI(t, []string{"runs", "track", "not-a-uuid", "1", "--db", db}, "")
	require.Error(t, err)
}

func TestRuns_RequiresDatabase(t *testing.T) {
	_, _, err := runCLI(t, []string{"runs"}, "")
	require.Error(t, err)
}

func TestBench(t *testing.T) {
	save := t.TempDir()

	out, _, err := runCLI(t, []string{
		"bench", "--scenario", "clean", "--frames", "20", "--format", "csv", "--save", save,
	}, "")
	require.NoError(t, err)
	assert.Contains(t, out, "Scenario")
	assert.Contains(t, out, "clean")
	assert.NotContains(t, out, "crowded")

	entries, err := os.ReadDir(save)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestBench_Errors(t *testing.T) {
	_, _, err := runCLI(t, []string{"bench", "--scenario", "nope", "--frames", "5"}, "")
	require.Error(t, err)

	_, _, err = runCLI(t, []string{"bench", "--format", "xml"}, "")
	require.Error(t, err)
}

type failingSink struct{ err error }

func (s failingSink) WriteFrame(context.Context, int, []tracking.TrackedBbox) error { return s.err }

type brokenWriter struct{}

func (brokenWriter) Write([]byte) (int, error) { return 0, assert.AnError }

func TestReplayLoop_WriteErrorNamesFrameOnce(t *testing.T) {
	tracker := tracking.New(tracking.DefaultConfig())
	_, err := replay(context.Background(), util.NewRecordReader(strings.NewReader(stillObject)), tracker,
		util.NewTrackWriter(brokenWriter{}))
	require.ErrorIs(t, err, assert.AnError)
	assert.Equal(t, 1, strings.Count(err.Error(), "write frame 1"), err.Error())
}

func TestReplayLoop(t *testing.T) {
	tracker := tracking.New(tracking.DefaultConfig())

	stats, err := replay(context.Background(), util.NewRecordReader(strings.NewReader(stillObject)), tracker)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Frames)
	assert.Equal(t, 1, stats.Sequences)
	assert.Equal(t, 3, stats.Detections)
	assert.Equal(t, 3, stats.Emitted)

	tracker.Reset()
	_, err = replay(context.Background(), util.NewRecordReader(strings.NewReader(stillObject)), tracker,
		failingSink{err: assert.AnError})
	require.ErrorIs(t, err, assert.AnError)

	tracker.Reset()
	records, err := util.ReadRecords(strings.NewReader(stillObject))
	require.NoError(t, err)
	stats, err = replay(context.Background(), util.NewRecordSlice(records), tracker)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Frames)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = replay(ctx, util.NewRecordReader(strings.NewReader(stillObject)), tracker)
	require.ErrorIs(t, err, context.Canceled)
}
