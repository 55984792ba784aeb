package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/banshee-data/dvsvideo/internal/fsutil"
)

// Defaults for every RenderConfig field.
const (
	DefaultInputFile        = "large.csv"
	DefaultDecayRate        = 0.15
	DefaultFrameRate        = 60
	DefaultMedianBlur       = 5
	DefaultOutput           = "result"
	DefaultFrameWidth       = 600
	DefaultWorkers          = 0 // 0 = two per CPU
	DefaultSensorWidth      = 346
	DefaultSensorHeight     = 260
	DefaultMirrorX          = true
	DefaultMirrorY          = true
	DefaultJPEGQuality      = 95
	DefaultProgressInterval = "5s"

	MaxFrameRate    = 120
	MaxMedianBlur   = 13
	MaxFrameWidth   = 7680
	MinOutputLength = 5

	maxProfileSize = 1 * 1024 * 1024 // 1MB
)

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

// ValidationError names the offending field.
type ValidationError struct {
	Field  string
	Value  any
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s=%v: %s", e.Field, e.Value, e.Reason)
}

func invalid(field string, value any, reason string) error {
	return fmt.Errorf("%w: %w", ErrInvalidConfig, &ValidationError{Field: field, Value: value, Reason: reason})
}

// RenderConfig holds every knob of a render. Nil fields fall back to the
// defaults above through the Get* accessors, so partial profiles are safe.
// The same schema is read from JSON or YAML profiles and DVSVIDEO_*
// environment variables.
type RenderConfig struct {
	// Input / output
	InputFile *string `json:"file,omitempty" yaml:"file,omitempty" env:"DVSVIDEO_FILE"`
	Output    *string `json:"output,omitempty" yaml:"output,omitempty" env:"DVSVIDEO_OUTPUT"` // base name, ".avi" is appended

	// Rendering
	DecayRate   *float64 `json:"decay_rate,omitempty" yaml:"decay_rate,omitempty" env:"DVSVIDEO_DECAY_RATE"`
	FrameRate   *int     `json:"framerate,omitempty" yaml:"framerate,omitempty" env:"DVSVIDEO_FRAMERATE"`
	MedianBlur  *int     `json:"medianblur,omitempty" yaml:"medianblur,omitempty" env:"DVSVIDEO_MEDIANBLUR"`
	FrameWidth  *int     `json:"frame_width,omitempty" yaml:"frame_width,omitempty" env:"DVSVIDEO_FRAME_WIDTH"`
	JPEGQuality *int     `json:"jpeg_quality,omitempty" yaml:"jpeg_quality,omitempty" env:"DVSVIDEO_JPEG_QUALITY"`
	Workers     *int     `json:"workers,omitempty" yaml:"workers,omitempty" env:"DVSVIDEO_WORKERS"`

	// Sensor geometry
	SensorWidth  *int  `json:"sensor_width,omitempty" yaml:"sensor_width,omitempty" env:"DVSVIDEO_SENSOR_WIDTH"`
	SensorHeight *int  `json:"sensor_height,omitempty" yaml:"sensor_height,omitempty" env:"DVSVIDEO_SENSOR_HEIGHT"`
	MirrorX      *bool `json:"mirror_x,omitempty" yaml:"mirror_x,omitempty" env:"DVSVIDEO_MIRROR_X"`
	MirrorY      *bool `json:"mirror_y,omitempty" yaml:"mirror_y,omitempty" env:"DVSVIDEO_MIRROR_Y"`

	// Bookkeeping
	ProgressInterval *string `json:"progress_interval,omitempty" yaml:"progress_interval,omitempty" env:"DVSVIDEO_PROGRESS_INTERVAL"` // duration string like "5s"
	DBPath           *string `json:"db,omitempty" yaml:"db,omitempty" env:"DVSVIDEO_DB"`
	ReportDir        *string `json:"report_dir,omitempty" yaml:"report_dir,omitempty" env:"DVSVIDEO_REPORT_DIR"`
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrBool(v bool) *bool          { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }

// Defaults returns a RenderConfig with every field set.
func Defaults() *RenderConfig {
	return &RenderConfig{
		InputFile:        ptrString(DefaultInputFile),
		Output:           ptrString(DefaultOutput),
		DecayRate:        ptrFloat64(DefaultDecayRate),
		FrameRate:        ptrInt(DefaultFrameRate),
		MedianBlur:       ptrInt(DefaultMedianBlur),
		FrameWidth:       ptrInt(DefaultFrameWidth),
		JPEGQuality:      ptrInt(DefaultJPEGQuality),
		Workers:          ptrInt(DefaultWorkers),
		SensorWidth:      ptrInt(DefaultSensorWidth),
		SensorHeight:     ptrInt(DefaultSensorHeight),
		MirrorX:          ptrBool(DefaultMirrorX),
		MirrorY:          ptrBool(DefaultMirrorY),
		ProgressInterval: ptrString(DefaultProgressInterval),
		DBPath:           ptrString(""),
		ReportDir:        ptrString(""),
	}
}

// LoadFile reads a profile. The extension selects the format: .json, or
// .yaml / .yml. Fields omitted from the file stay nil.
func LoadFile(fsys fsutil.FileSystem, path string) (*RenderConfig, error) {
	cleanPath := filepath.Clean(path)
	ext := strings.ToLower(filepath.Ext(cleanPath))
	if ext != ".json" && ext != ".yaml" && ext != ".yml" {
		return nil, fmt.Errorf("config file must be .json, .yaml or .yml, got %q", ext)
	}

	info, err := fsys.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if info.Size() > maxProfileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), maxProfileSize)
	}
	data, err := fsys.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &RenderConfig{}
	switch ext {
	case ".json":
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config JSON: %w", err)
		}
	default:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("failed to parse config YAML: %w", err)
		}
	}
	return cfg, nil
}

// FromEnv reads DVSVIDEO_* variables. Unset variables leave fields nil.
func FromEnv() (*RenderConfig, error) {
	return parseEnv(env.Options{})
}

func parseEnv(opts env.Options) (*RenderConfig, error) {
	cfg := &RenderConfig{}
	if err := env.ParseWithOptions(cfg, opts); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

// Merge copies every non-nil field of o over c.
func (c *RenderConfig) Merge(o *RenderConfig) {
	if o == nil {
		return
	}
	mergePtr(&c.InputFile, o.InputFile)
	mergePtr(&c.Output, o.Output)
	mergePtr(&c.DecayRate, o.DecayRate)
	mergePtr(&c.FrameRate, o.FrameRate)
	mergePtr(&c.MedianBlur, o.MedianBlur)
	mergePtr(&c.FrameWidth, o.FrameWidth)
	mergePtr(&c.JPEGQuality, o.JPEGQuality)
	mergePtr(&c.Workers, o.Workers)
	mergePtr(&c.SensorWidth, o.SensorWidth)
	mergePtr(&c.SensorHeight, o.SensorHeight)
	mergePtr(&c.MirrorX, o.MirrorX)
	mergePtr(&c.MirrorY, o.MirrorY)
	mergePtr(&c.ProgressInterval, o.ProgressInterval)
	mergePtr(&c.DBPath, o.DBPath)
	mergePtr(&c.ReportDir, o.ReportDir)
}

func mergePtr[T any](dst **T, src *T) {
	if src != nil {
		v := *src
		*dst = &v
	}
}

// Validate checks the effective values, defaults included.
func (c *RenderConfig) Validate() error {
	if c.GetInputFile() == "" {
		return invalid("file", "", "input file is required")
	}
	if r := c.GetDecayRate(); !(r > 0 && r < 1) {
		return invalid("decay_rate", r, "must be in (0, 1)")
	}
	if r := c.GetFrameRate(); r <= 0 || r > MaxFrameRate {
		return invalid("framerate", r, fmt.Sprintf("must be in [1, %d]", MaxFrameRate))
	}
	if k := c.GetMedianBlur(); k < 1 || k > MaxMedianBlur || k%2 == 0 {
		return invalid("medianblur", k, fmt.Sprintf("must be odd and in [1, %d]", MaxMedianBlur))
	}
	if o := c.GetOutput(); len(o) < MinOutputLength {
		return invalid("output", o, fmt.Sprintf("must be at least %d characters", MinOutputLength))
	}
	if w := c.GetFrameWidth(); w <= 0 || w > MaxFrameWidth {
		return invalid("frame_width", w, fmt.Sprintf("must be in [1, %d]", MaxFrameWidth))
	}
	if q := c.GetJPEGQuality(); q < 1 || q > 100 {
		return invalid("jpeg_quality", q, "must be in [1, 100]")
	}
	if n := c.GetWorkers(); n < 0 {
		return invalid("workers", n, "must be non-negative (0 selects automatically)")
	}
	if w := c.GetSensorWidth(); w <= 0 {
		return invalid("sensor_width", w, "must be positive")
	}
	if h := c.GetSensorHeight(); h <= 0 {
		return invalid("sensor_height", h, "must be positive")
	}
	if _, h := c.OutputSize(); h <= 0 {
		return invalid("frame_width", c.GetFrameWidth(), "too small for the sensor aspect ratio")
	}
	if c.ProgressInterval != nil && *c.ProgressInterval != "" {
		d, err := time.ParseDuration(*c.ProgressInterval)
		if err != nil {
			return invalid("progress_interval", *c.ProgressInterval, err.Error())
		}
		if d < 0 {
			return invalid("progress_interval", d, "must not be negative")
		}
	}
	return nil
}

// OutputSize returns the encoded frame size: the configured width and a
// height that keeps the sensor aspect ratio.
func (c *RenderConfig) OutputSize() (int, int) {
	w := c.GetFrameWidth()
	return w, w * c.GetSensorHeight() / c.GetSensorWidth()
}

// GetInputFile returns the file value or the default.
func (c *RenderConfig) GetInputFile() string {
	if c.InputFile == nil {
		return DefaultInputFile
	}
	return *c.InputFile
}

// GetOutput returns the output value or the default.
func (c *RenderConfig) GetOutput() string {
	if c.Output == nil {
		return DefaultOutput
	}
	return *c.Output
}

// GetDecayRate returns the decay_rate value or the default.
func (c *RenderConfig) GetDecayRate() float64 {
	if c.DecayRate == nil {
		return DefaultDecayRate
	}
	return *c.DecayRate
}

// GetFrameRate returns the framerate value or the default.
func (c *RenderConfig) GetFrameRate() int {
	if c.FrameRate == nil {
		return DefaultFrameRate
	}
	return *c.FrameRate
}

// GetMedianBlur returns the medianblur value or the default.
func (c *RenderConfig) GetMedianBlur() int {
	if c.MedianBlur == nil {
		return DefaultMedianBlur
	}
	return *c.MedianBlur
}

// GetFrameWidth returns the frame_width value or the default.
func (c *RenderConfig) GetFrameWidth() int {
	if c.FrameWidth == nil {
		return DefaultFrameWidth
	}
	return *c.FrameWidth
}

// GetJPEGQuality returns the jpeg_quality value or the default.
func (c *RenderConfig) GetJPEGQuality() int {
	if c.JPEGQuality == nil {
		return DefaultJPEGQuality
	}
	return *c.JPEGQuality
}

// GetWorkers returns the workers value or the default.
func (c *RenderConfig) GetWorkers() int {
	if c.Workers == nil {
		return DefaultWorkers
	}
	return *c.Workers
}

func (c *RenderConfig) GetSensorWidth() int {
	if c.SensorWidth == nil {
		return DefaultSensorWidth
	}
	return *c.SensorWidth
}

func (c *RenderConfig) GetSensorHeight() int {
	if c.SensorHeight == nil {
		return DefaultSensorHeight
	}
	return *c.SensorHeight
}

func (c *RenderConfig) GetMirrorX() bool {
	if c.MirrorX == nil {
		return DefaultMirrorX
	}
	return *c.MirrorX
}

func (c *RenderConfig) GetMirrorY() bool {
	if c.MirrorY == nil {
		return DefaultMirrorY
	}
	return *c.MirrorY
}

// GetProgressInterval parses and returns the ProgressInterval as a
// time.Duration. Zero disables progress logging.
func (c *RenderConfig) GetProgressInterval() time.Duration {
	if c.ProgressInterval == nil || *c.ProgressInterval == "" {
		d, _ := time.ParseDuration(DefaultProgressInterval)
		return d
	}
	d, err := time.ParseDuration(*c.ProgressInterval)
	if err != nil {
		d, _ = time.ParseDuration(DefaultProgressInterval) // default on parse error
	}
	return d
}

// GetDBPath returns the run history database path; empty disables it.
func (c *RenderConfig) GetDBPath() string {
	if c.DBPath == nil {
		return ""
	}
	return *c.DBPath
}

// GetReportDir returns the report directory; empty disables reports.
func (c *RenderConfig) GetReportDir() string {
	if c.ReportDir == nil {
		return ""
	}
	return *c.ReportDir
}
