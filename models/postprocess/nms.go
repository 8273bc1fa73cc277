// Package postprocess - provides Non-Maximum Suppression for detection results.
package postprocess

import (
	"sync"

	"github.com/nvr-ai/go-mot/images"
)

// NMSConfig defines parameters for Non-Maximum Suppression.
type NMSConfig struct {
	Greedy       bool    // If true, use greedy NMS.
	IoUThreshold float32 // Overlap threshold for suppression.
	ClassAware   bool    // If true, suppress only within same class.
	NumWorkers   int     // Number of goroutines for parallel IoU computation.
}

// DefaultNMSConfig returns greedy, class-agnostic suppression at IoU 0.45.
func DefaultNMSConfig() NMSConfig {
	return NMSConfig{
		Greedy:       true,
		IoUThreshold: 0.45,
		NumWorkers:   4,
	}
}

// Suppress sorts detections by score and applies the NMS variant selected by
// config.
//
// Arguments:
//   - detections: Detections of one frame in any order. The slice is reordered.
//   - config: NMS configuration.
//
// Returns:
//   - Filtered slice of detections, highest score first.
func Suppress(detections []Result, config *NMSConfig) []Result {
	SortByScore(detections)
	if config.Greedy || config.NumWorkers <= 1 {
		return ApplyGreedyNMS(detections, config)
	}
	return ApplyNMS(detections, config)
}

// suppresses reports whether anchor suppresses other under config.
func suppresses(anchor, other Result, config *NMSConfig) bool {
	if config.ClassAware && anchor.Class != other.Class {
		return false
	}
	return images.CalculateIoU(anchor.Box, other.Box) > config.IoUThreshold
}

// ApplyNMS filters overlapping detections using Non-Maximum Suppression.
//
// The IoU tests against each kept anchor are spread over config.NumWorkers
// goroutines. Each worker owns a disjoint stripe of candidates, so the
// suppression flags are written without locking.
//
// Arguments:
//   - detections: Sorted slice of detections (highest score first).
//
// - config: NMS configuration. If true, suppress only within same class. If false, suppress all
// overlapping detections.
//
// Returns:
//   - Filtered slice of detections. If no detections are provided, returns nil.
func ApplyNMS(detections []Result, config *NMSConfig) []Result {
	n := len(detections)
	if n == 0 {
		return nil
	}

	workers := max(config.NumWorkers, 1)
	used := make([]bool, n)
	filtered := make([]Result, 0, n)

	for i := 0; i < n; i++ {
		if used[i] {
			continue
		}
		anchor := detections[i]
		filtered = append(filtered, anchor)
		used[i] = true

		var wg sync.WaitGroup
		for w := 0; w < workers; w++ {
			wg.Add(1)
			go func(offset int) {
				defer wg.Done()
				for j := i + 1 + offset; j < n; j += workers {
					if !used[j] && suppresses(anchor, detections[j], config) {
						used[j] = true
					}
				}
			}(w)
		}
		wg.Wait()
	}

	return filtered
}

// ApplyGreedyNMS performs standard greedy Non-Maximum Suppression.
//
// Arguments:
//   - detections: Slice of detections sorted by descending confidence.
//   - config: NMS configuration; IoUThreshold is the overlap above which boxes are suppressed.
//
// Returns:
//   - Filtered slice of detections.
func ApplyGreedyNMS(detections []Result, config *NMSConfig) []Result {
	n := len(detections)
	if n == 0 {
		return nil
	}

	filtered := make([]Result, 0, n)
	used := make([]bool, n)

	for i := 0; i < n; i++ {
		if used[i] {
			continue
		}

		anchor := detections[i]
		filtered = append(filtered, anchor)
		used[i] = true

		for j := i + 1; j < n; j++ {
			if used[j] {
				continue
			}

			// Suppress if IoU exceeds threshold
			if suppresses(anchor, detections[j], config) {
				used[j] = true
			}
		}
	}

	return filtered
}
