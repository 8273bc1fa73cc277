// Package config loads the TOML configuration of the tracker tools.
package config

import (
	"io"
	"os"

	"github.com/pelletier/go-toml/v2"
	"github.com/pkg/errors"

	"github.com/nvr-ai/go-mot/controller"
	"github.com/nvr-ai/go-mot/models"
	"github.com/nvr-ai/go-mot/models/postprocess"
	"github.com/nvr-ai/go-mot/tracking"
)

// ErrInvalid marks configuration values that fail validation.
var ErrInvalid = errors.New("invalid configuration")

// Config is the file configuration. Every field is optional; missing values
// keep their defaults.
type Config struct {
	Tracker    tracking.Config `toml:"tracker"`
	NMS        NMS             `toml:"nms"`
	Detections Detections      `toml:"detections"`
	Logging    Logging         `toml:"logging"`
	Store      Store           `toml:"store"`
}

// Detections selects which detector classes reach the tracker.
type Detections struct {
	// Family is the label convention of the detector: coco, yolo or voc.
	Family string `toml:"family"`
	// Classes are the labels to keep. Empty keeps every class.
	Classes []string `toml:"classes,omitempty"`
}

// NMS controls suppression of detector results ahead of tracking.
type NMS struct {
	Enabled      bool    `toml:"enabled"`
	Greedy       bool    `toml:"greedy"`
	IoUThreshold float32 `toml:"iou_threshold"`
	ClassAware   bool    `toml:"class_aware"`
	NumWorkers   int     `toml:"num_workers"`
}

// Logging selects the log level and output format.
type Logging struct {
	// Level is one of debug, info, warn, error.
	Level string `toml:"level"`
	// Format is auto, text or json.
	Format string `toml:"format"`
}

// Store configures track persistence.
type Store struct {
	// Path is the SQLite database file. Empty disables persistence.
	Path string `toml:"path"`
}

// Default returns the built-in configuration.
func Default() Config {
	nms := postprocess.DefaultNMSConfig()
	return Config{
		Tracker: tracking.DefaultConfig(),
		NMS: NMS{
			Enabled:      false,
			Greedy:       nms.Greedy,
			IoUThreshold: nms.IoUThreshold,
			ClassAware:   nms.ClassAware,
			NumWorkers:   nms.NumWorkers,
		},
		Detections: Detections{
			Family: string(models.FamilyYOLO),
		},
		Logging: Logging{
			Level:  "info",
			Format: "auto",
		},
	}
}

// Load reads a configuration file over the defaults and validates it.
//
// Arguments:
//   - path: The TOML file. Empty returns the defaults.
//
// Returns:
//   - *Config: The merged configuration.
//   - error: An error if the file cannot be read or parsed, or ErrInvalid
//     when a value is out of range.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return &cfg, nil
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open config")
	}
	defer file.Close()

	if err := Decode(file, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Decode parses TOML from r into cfg and validates the result. Unknown keys
// are rejected.
func Decode(r io.Reader, cfg *Config) error {
	decoder := toml.NewDecoder(r)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(cfg); err != nil {
		return errors.Wrap(err, "parse config")
	}
	return cfg.Validate()
}

// Write encodes the configuration as TOML.
func (c *Config) Write(w io.Writer) error {
	return errors.Wrap(toml.NewEncoder(w).Encode(c), "encode config")
}

// TrackerConfig returns the tracker parameters.
func (c *Config) TrackerConfig() tracking.Config {
	return c.Tracker
}

// NMSConfig returns the suppression settings, or nil when NMS is disabled.
func (c *Config) NMSConfig() *postprocess.NMSConfig {
	if !c.NMS.Enabled {
		return nil
	}
	return &postprocess.NMSConfig{
		Greedy:       c.NMS.Greedy,
		IoUThreshold: c.NMS.IoUThreshold,
		ClassAware:   c.NMS.ClassAware,
		NumWorkers:   c.NMS.NumWorkers,
	}
}

// ClassFilter resolves the configured labels to detector class indices.
//
// Returns:
//   - []int: The class indices, nil when every class is kept.
//   - error: An error if the family or a label is unknown.
func (c *Config) ClassFilter() ([]int, error) {
	set, err := models.Classes(models.Family(c.Detections.Family))
	if err != nil {
		return nil, err
	}
	if len(c.Detections.Classes) == 0 {
		return nil, nil
	}
	return set.Indices(c.Detections.Classes...)
}

// ControllerOptions builds the pipeline options for one stream. Sink and
// logger are left for the caller.
func (c *Config) ControllerOptions() (controller.Options, error) {
	classes, err := c.ClassFilter()
	if err != nil {
		return controller.Options{}, err
	}
	return controller.Options{
		Tracker: c.TrackerConfig(),
		NMS:     c.NMSConfig(),
		Classes: classes,
	}, nil
}
