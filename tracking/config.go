package tracking

// Config holds the association and lifecycle parameters of a Tracker.
//
// Values are not validated here; callers are responsible for sensible
// settings (non-negative ages, thresholds in [0,1]). The config package
// validates file-based configuration before it reaches the tracker.
type Config struct {
	// MaxAge is the number of consecutive unmatched frames a track survives.
	// A track whose dropped count exceeds MaxAge is removed.
	MaxAge int `json:"max_age" toml:"max_age"`

	// NumInitialFrame is the bootstrap window: during frames 1..NumInitialFrame
	// every matched track is visible and low-confidence detections may spawn
	// tracks.
	NumInitialFrame int `json:"num_initial_frame" toml:"num_initial_frame"`

	// MinFrameSustained is the matched streak after which a track becomes
	// visible outside the bootstrap window.
	MinFrameSustained int `json:"min_frame_sustained" toml:"min_frame_sustained"`

	// IoUThresholdHigh is the minimum IoU of a first-stage match.
	IoUThresholdHigh float64 `json:"iou_threshold_high" toml:"iou_threshold_high"`

	// IoUThresholdLow is the minimum IoU of a second-stage match.
	IoUThresholdLow float64 `json:"iou_threshold_low" toml:"iou_threshold_low"`

	// ConfidenceThreshold splits detections into high (>=) and low (<) sets.
	ConfidenceThreshold float64 `json:"confidence_threshold" toml:"confidence_threshold"`

	// SortMode treats every detection as high confidence, reducing the
	// tracker to single-stage SORT association.
	SortMode bool `json:"sort_mode" toml:"sort_mode"`
}

// DefaultConfig returns the default tracker parameters.
//
// Returns:
//   - Config: MaxAge 5, NumInitialFrame 3, MinFrameSustained 3, both IoU
//     thresholds 0.3, ConfidenceThreshold 0.35, SortMode off.
func DefaultConfig() Config {
	return Config{
		MaxAge:              5,
		NumInitialFrame:     3,
		MinFrameSustained:   3,
		IoUThresholdHigh:    0.3,
		IoUThresholdLow:     0.3,
		ConfidenceThreshold: 0.35,
		SortMode:            false,
	}
}
