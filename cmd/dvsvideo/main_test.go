package main

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/dvsvideo/internal/config"
	"github.com/banshee-data/dvsvideo/internal/fsutil"
	"github.com/banshee-data/dvsvideo/internal/rundb"
)

func parse(t *testing.T, args ...string) (*flag.FlagSet, *cliFlags) {
	t.Helper()
	fs := flag.NewFlagSet("dvsvideo", flag.ContinueOnError)
	f := registerFlags(fs)
	require.NoError(t, fs.Parse(args))
	return fs, f
}

func noEnv() (*config.RenderConfig, error) { return &config.RenderConfig{}, nil }

func TestFlagDefaults(t *testing.T) {
	t.Parallel()
	_, f := parse(t)

	assert.Equal(t, config.DefaultInputFile, *f.file)
	assert.Equal(t, config.DefaultDecayRate, *f.decayRate)
	assert.Equal(t, config.DefaultFrameRate, *f.frameRate)
	assert.Equal(t, config.DefaultMedianBlur, *f.medianBlur)
	assert.Equal(t, config.DefaultOutput, *f.output)
	assert.Equal(t, config.DefaultFrameWidth, *f.frameWidth)
	assert.Empty(t, *f.profile)
	assert.Empty(t, *f.dbPath)
	assert.False(t, *f.listRuns)
	assert.False(t, *f.version)
}

func TestOverrides_OnlyExplicitFlags(t *testing.T) {
	t.Parallel()
	fs, f := parse(t, "-framerate", "30", "-output", "clip01")
	o := f.overrides(fs)

	require.NotNil(t, o.FrameRate)
	assert.Equal(t, 30, *o.FrameRate)
	require.NotNil(t, o.Output)
	assert.Equal(t, "clip01", *o.Output)
	assert.Nil(t, o.DecayRate)
	assert.Nil(t, o.InputFile)
	assert.Nil(t, o.MedianBlur)
}

func TestLoadConfig_Precedence(t *testing.T) {
	t.Parallel()
	fsys := fsutil.NewMemoryFileSystem()
	fsys.AddFile("profile.yaml", []byte("decay_rate: 0.3\nframerate: 24\nmedianblur: 3\n"))

	fromEnv := func() (*config.RenderConfig, error) {
		rate := 48
		return &config.RenderConfig{FrameRate: &rate}, nil
	}
	fs, f := parse(t, "-config", "profile.yaml", "-medianblur", "7")

	cfg, err := loadConfig(fsys, fs, f, fromEnv)
	require.NoError(t, err)
	assert.Equal(t, 0.3, cfg.GetDecayRate(), "profile beats defaults")
	assert.Equal(t, 48, cfg.GetFrameRate(), "environment beats profile")
	assert.Equal(t, 7, cfg.GetMedianBlur(), "flags beat everything")
	assert.Equal(t, config.DefaultOutput, cfg.GetOutput())
}

func TestLoadConfig_Invalid(t *testing.T) {
	t.Parallel()
	cases := [][]string{
		{"-decay-rate", "0"},
		{"-framerate", "121"},
		{"-framerate", "0"},
		{"-medianblur", "4"},
		{"-medianblur", "15"},
		{"-output", "abc"},
	}
	for _, args := range cases {
		fs, f := parse(t, args...)
		_, err := loadConfig(fsutil.NewMemoryFileSystem(), fs, f, noEnv)
		assert.True(t, errors.Is(err, config.ErrInvalidConfig), "args %v: %v", args, err)
	}
}

func TestLoadConfig_PropagatesErrors(t *testing.T) {
	t.Parallel()
	fs, f := parse(t, "-config", "missing.json")
	_, err := loadConfig(fsutil.NewMemoryFileSystem(), fs, f, noEnv)
	assert.Error(t, err)

	fs, f = parse(t)
	_, err = loadConfig(fsutil.NewMemoryFileSystem(), fs, f, func() (*config.RenderConfig, error) {
		return nil, errors.New("parse env: bad")
	})
	assert.ErrorContains(t, err, "parse env")
}

func TestPrintConfig(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	printConfig(&buf, config.Defaults())
	out := buf.String()
	assert.Contains(t, out, "File Name:   large.csv")
	assert.Contains(t, out, "Decay Rate:  0.15")
	assert.Contains(t, out, "Frame Rate:  60")
	assert.Contains(t, out, "Median Blur: 5")
	assert.Contains(t, out, "result.avi (600x450)")
}

func TestListRuns_RequiresDB(t *testing.T) {
	t.Parallel()
	assert.Error(t, listRuns(&bytes.Buffer{}, ""))
}

func writeEvents(t *testing.T, path string) {
	t.Helper()
	var b strings.Builder
	b.WriteString("timeStamp,xAddr,yAddr,polarity(0=OFF 1=ON)\n")
	for i := 0; i < 200; i++ {
		fmt.Fprintf(&b, "%d,%d,%d,%d\n", i*500, i%346, (i*7)%260, i%2)
	}
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0o644))
}

func TestRun_EndToEnd(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	input := filepath.Join(dir, "events.csv")
	writeEvents(t, input)
	dbPath := filepath.Join(dir, "runs.db")
	reportDir := filepath.Join(dir, "reports")

	fs, f := parse(t,
		"-file", input,
		"-output", filepath.Join(dir, "heatmap"),
		"-frame-width", "120",
		"-medianblur", "3",
		"-workers", "2",
		"-db", dbPath,
		"-report-dir", reportDir,
	)
	var out bytes.Buffer
	require.NoError(t, run(context.Background(), fsutil.OSFileSystem{}, fs, f, &out))

	data, err := os.ReadFile(filepath.Join(dir, "heatmap.avi"))
	require.NoError(t, err)
	assert.Equal(t, "RIFF", string(data[:4]))
	assert.Contains(t, out.String(), "Time to read file:")
	assert.Contains(t, out.String(), "Time to write file:")
	assert.Contains(t, out.String(), "Report:")
	assert.Contains(t, out.String(), "Lit pixels:  mean")

	db, err := rundb.Open(dbPath)
	require.NoError(t, err)
	recs, err := db.ListRuns(0)
	require.NoError(t, err)
	require.NoError(t, db.Close())
	require.Len(t, recs, 1)
	assert.Equal(t, rundb.StatusCompleted, recs[0].Status)
	assert.Equal(t, int64(200), recs[0].Events)
	// Events span 99.5ms; at 60fps boundaries fall every 16.666ms.
	assert.Equal(t, 5, recs[0].Frames)

	entries, err := os.ReadDir(filepath.Join(reportDir, recs[0].RunID))
	require.NoError(t, err)
	assert.Len(t, entries, 3)

	var listing bytes.Buffer
	require.NoError(t, listRuns(&listing, dbPath))
	assert.Contains(t, listing.String(), recs[0].RunID)
	assert.Contains(t, listing.String(), "completed")
}

func TestRun_FailedRunIsRecorded(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	input := filepath.Join(dir, "events.csv")
	// Timestamps go backwards on the third row.
	require.NoError(t, os.WriteFile(input, []byte(
		"timeStamp,xAddr,yAddr,polarity(0=OFF 1=ON)\n10,1,1,1\n40000,2,2,1\n20,3,3,0\n"), 0o644))
	dbPath := filepath.Join(dir, "runs.db")

	fs, f := parse(t, "-file", input, "-output", filepath.Join(dir, "broken"), "-frame-width", "64", "-db", dbPath)
	err := run(context.Background(), fsutil.OSFileSystem{}, fs, f, &bytes.Buffer{})
	require.Error(t, err)

	db, err := rundb.Open(dbPath)
	require.NoError(t, err)
	defer db.Close()
	recs, err := db.ListRuns(0)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, rundb.StatusFailed, recs[0].Status)
	assert.NotEmpty(t, recs[0].Error)
}

func TestRun_MissingInput(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	fs, f := parse(t, "-file", filepath.Join(dir, "nope.csv"), "-output", filepath.Join(dir, "clip"))
	err := run(context.Background(), fsutil.OSFileSystem{}, fs, f, &bytes.Buffer{})
	assert.ErrorContains(t, err, "open input")
}
