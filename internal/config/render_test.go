package config

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/dvsvideo/internal/fsutil"
)

func TestDefaults(t *testing.T) {
	t.Parallel()
	cfg := Defaults()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "large.csv", cfg.GetInputFile())
	assert.Equal(t, 0.15, cfg.GetDecayRate())
	assert.Equal(t, 60, cfg.GetFrameRate())
	assert.Equal(t, 5, cfg.GetMedianBlur())
	assert.Equal(t, "result", cfg.GetOutput())
	assert.Equal(t, 5*time.Second, cfg.GetProgressInterval())

	w, h := cfg.OutputSize()
	assert.Equal(t, 600, w)
	assert.Equal(t, 450, h)
}

func TestGettersOnEmptyConfig(t *testing.T) {
	t.Parallel()
	var cfg RenderConfig
	require.NoError(t, cfg.Validate(), "nil fields fall back to valid defaults")
	assert.Equal(t, DefaultSensorWidth, cfg.GetSensorWidth())
	assert.True(t, cfg.GetMirrorX())
	assert.Empty(t, cfg.GetDBPath())
	assert.Empty(t, cfg.GetReportDir())
}

func TestValidate(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name  string
		field string
		set   func(c *RenderConfig)
	}{
		{"decay zero", "decay_rate", func(c *RenderConfig) { c.DecayRate = ptrFloat64(0) }},
		{"decay one", "decay_rate", func(c *RenderConfig) { c.DecayRate = ptrFloat64(1) }},
		{"decay negative", "decay_rate", func(c *RenderConfig) { c.DecayRate = ptrFloat64(-0.1) }},
		{"framerate zero", "framerate", func(c *RenderConfig) { c.FrameRate = ptrInt(0) }},
		{"framerate too high", "framerate", func(c *RenderConfig) { c.FrameRate = ptrInt(121) }},
		{"blur even", "medianblur", func(c *RenderConfig) { c.MedianBlur = ptrInt(4) }},
		{"blur zero", "medianblur", func(c *RenderConfig) { c.MedianBlur = ptrInt(0) }},
		{"blur too large", "medianblur", func(c *RenderConfig) { c.MedianBlur = ptrInt(15) }},
		{"output short", "output", func(c *RenderConfig) { c.Output = ptrString("out") }},
		{"frame width zero", "frame_width", func(c *RenderConfig) { c.FrameWidth = ptrInt(0) }},
		{"frame width tiny", "frame_width", func(c *RenderConfig) { c.FrameWidth = ptrInt(1) }},
		{"quality", "jpeg_quality", func(c *RenderConfig) { c.JPEGQuality = ptrInt(101) }},
		{"workers", "workers", func(c *RenderConfig) { c.Workers = ptrInt(-1) }},
		{"sensor", "sensor_height", func(c *RenderConfig) { c.SensorHeight = ptrInt(0) }},
		{"progress", "progress_interval", func(c *RenderConfig) { c.ProgressInterval = ptrString("soon") }},
		{"no input", "file", func(c *RenderConfig) { c.InputFile = ptrString("") }},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := Defaults()
			tt.set(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidConfig))
			var ve *ValidationError
			require.True(t, errors.As(err, &ve))
			assert.Equal(t, tt.field, ve.Field)
		})
	}
}

func TestValidate_Boundaries(t *testing.T) {
	t.Parallel()
	cfg := Defaults()
	cfg.FrameRate = ptrInt(120)
	cfg.MedianBlur = ptrInt(13)
	cfg.Output = ptrString("clip1")
	cfg.ProgressInterval = ptrString("0s")
	assert.NoError(t, cfg.Validate())

	cfg.MedianBlur = ptrInt(1)
	cfg.FrameRate = ptrInt(1)
	assert.NoError(t, cfg.Validate())
}

func TestLoadFile_JSON(t *testing.T) {
	t.Parallel()
	fsys := fsutil.NewMemoryFileSystem()
	fsys.AddFile("profiles/fast.json", []byte(`{"decay_rate": 0.3, "framerate": 30, "mirror_x": false}`))

	cfg, err := LoadFile(fsys, "profiles/fast.json")
	require.NoError(t, err)
	assert.Equal(t, 0.3, cfg.GetDecayRate())
	assert.Equal(t, 30, cfg.GetFrameRate())
	assert.False(t, cfg.GetMirrorX())
	assert.Nil(t, cfg.MedianBlur, "omitted fields stay nil")
}

func TestLoadFile_YAML(t *testing.T) {
	t.Parallel()
	fsys := fsutil.NewMemoryFileSystem()
	fsys.AddFile("p.yaml", []byte("medianblur: 7\noutput: night_run\nprogress_interval: 1s\n"))
	fsys.AddFile("empty.yml", nil)

	cfg, err := LoadFile(fsys, "p.yaml")
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.GetMedianBlur())
	assert.Equal(t, "night_run", cfg.GetOutput())
	assert.Equal(t, time.Second, cfg.GetProgressInterval())

	cfg, err = LoadFile(fsys, "empty.yml")
	require.NoError(t, err)
	assert.Equal(t, RenderConfig{}, *cfg)
}

func TestLoadFile_Errors(t *testing.T) {
	t.Parallel()
	fsys := fsutil.NewMemoryFileSystem()
	fsys.AddFile("bad.json", []byte(`{"decay_rate": "fast"}`))
	fsys.AddFile("unknown.json", []byte(`{"decay": 0.2}`))
	fsys.AddFile("unknown.yaml", []byte("decay: 0.2\n"))
	fsys.AddFile("big.json", []byte(strings.Repeat(" ", maxProfileSize+1)))
	fsys.AddFile("profile.toml", []byte(`decay_rate = 0.2`))

	for _, name := range []string{"bad.json", "unknown.json", "unknown.yaml", "big.json", "profile.toml", "missing.json"} {
		_, err := LoadFile(fsys, name)
		assert.Error(t, err, name)
	}
}

func TestParseEnv(t *testing.T) {
	t.Parallel()
	cfg, err := parseEnv(env.Options{Environment: map[string]string{
		"DVSVIDEO_DECAY_RATE": "0.25",
		"DVSVIDEO_WORKERS":    "3",
		"DVSVIDEO_MIRROR_Y":   "false",
		"DVSVIDEO_REPORT_DIR": "reports",
	}})
	require.NoError(t, err)
	assert.Equal(t, 0.25, cfg.GetDecayRate())
	assert.Equal(t, 3, cfg.GetWorkers())
	assert.False(t, cfg.GetMirrorY())
	assert.Equal(t, "reports", cfg.GetReportDir())
	assert.Nil(t, cfg.FrameRate, "unset variables stay nil")

	_, err = parseEnv(env.Options{Environment: map[string]string{"DVSVIDEO_FRAMERATE": "sixty"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse env:")
}

func TestMerge_Precedence(t *testing.T) {
	t.Parallel()
	cfg := Defaults()
	profile := &RenderConfig{DecayRate: ptrFloat64(0.3), FrameRate: ptrInt(30)}
	fromEnv := &RenderConfig{FrameRate: ptrInt(24)}

	cfg.Merge(profile)
	cfg.Merge(fromEnv)
	cfg.Merge(nil)

	assert.Equal(t, 0.3, cfg.GetDecayRate())
	assert.Equal(t, 24, cfg.GetFrameRate())
	assert.Equal(t, DefaultMedianBlur, cfg.GetMedianBlur())

	*profile.DecayRate = 0.9
	assert.Equal(t, 0.3, cfg.GetDecayRate(), "merge copies values")
}
