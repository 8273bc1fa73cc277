package config

import (
	"slices"

	"github.com/pkg/errors"
)

var (
	logLevels  = []string{"debug", "info", "warn", "error"}
	logFormats = []string{"auto", "text", "json"}
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateTracker(); err != nil {
		return err
	}
	if err := c.validateNMS(); err != nil {
		return err
	}
	if _, err := c.ClassFilter(); err != nil {
		return errors.Wrapf(ErrInvalid, "detections: %v", err)
	}
	return c.validateLogging()
}

func (c *Config) validateTracker() error {
	t := c.Tracker
	counts := []struct {
		name  string
		value int
	}{
		{"tracker.max_age", t.MaxAge},
		{"tracker.num_initial_frame", t.NumInitialFrame},
		{"tracker.min_frame_sustained", t.MinFrameSustained},
	}
	for _, v := range counts {
		if v.value < 0 {
			return errors.Wrapf(ErrInvalid, "%s must be non-negative, got %d", v.name, v.value)
		}
	}

	ratios := []struct {
		name  string
		value float64
	}{
		{"tracker.iou_threshold_high", t.IoUThresholdHigh},
		{"tracker.iou_threshold_low", t.IoUThresholdLow},
		{"tracker.confidence_threshold", t.ConfidenceThreshold},
	}
	for _, v := range ratios {
		if !(v.value >= 0 && v.value <= 1) {
			return errors.Wrapf(ErrInvalid, "%s must be between 0 and 1, got %v", v.name, v.value)
		}
	}
	return nil
}

func (c *Config) validateNMS() error {
	if !c.NMS.Enabled {
		return nil
	}
	if c.NMS.IoUThreshold < 0 || c.NMS.IoUThreshold > 1 {
		return errors.Wrapf(ErrInvalid, "nms.iou_threshold must be between 0 and 1, got %v", c.NMS.IoUThreshold)
	}
	if c.NMS.NumWorkers < 0 {
		return errors.Wrapf(ErrInvalid, "nms.num_workers must be non-negative, got %d", c.NMS.NumWorkers)
	}
	return nil
}

func (c *Config) validateLogging() error {
	if !slices.Contains(logLevels, c.Logging.Level) {
		return errors.Wrapf(ErrInvalid, "logging.level must be one of %v, got %q", logLevels, c.Logging.Level)
	}
	if !slices.Contains(logFormats, c.Logging.Format) {
		return errors.Wrapf(ErrInvalid, "logging.format must be one of %v, got %q", logFormats, c.Logging.Format)
	}
	return nil
}
