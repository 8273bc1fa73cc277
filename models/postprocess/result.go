// Package postprocess - Detector output handling ahead of the tracker.
package postprocess

import (
	"slices"

	"github.com/nvr-ai/go-mot/images"
)

// Result represents a single detection result.
type Result struct {
	// The bounding box of the result, in pixels.
	Box images.Rect
	// The confidence score of the result.
	Score float32
	// The predicted class index of the result.
	Class int
}

// SortByScore orders results by descending score, keeping the detector order
// between equal scores. The slice is sorted in place.
func SortByScore(results []Result) {
	slices.SortStableFunc(results, func(a, b Result) int {
		switch {
		case a.Score > b.Score:
			return -1
		case a.Score < b.Score:
			return 1
		}
		return 0
	})
}

// ToDetections converts pixel-space detector results into tracker input on
// the unit image plane.
//
// Arguments:
//   - results: Detector results for one frame.
//   - width: Frame width in pixels.
//   - height: Frame height in pixels.
//   - classes: Class indices to keep. Empty keeps every class.
//
// Returns:
//   - []images.BboxXyxy: Normalized boxes in result order, with scores clamped
//     to [0,1].
func ToDetections(results []Result, width, height int, classes ...int) []images.BboxXyxy {
	detections := make([]images.BboxXyxy, 0, len(results))
	for _, r := range results {
		if len(classes) > 0 && !slices.Contains(classes, r.Class) {
			continue
		}
		detections = append(detections, images.Normalize(r.Box, width, height, r.Score))
	}
	return detections
}
