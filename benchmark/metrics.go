// Package benchmark - Synthetic tracking scenarios, accuracy metrics and reports.
package benchmark

import (
	"slices"
	"time"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/nvr-ai/go-mot/assignment"
	"github.com/nvr-ai/go-mot/images"
	"github.com/nvr-ai/go-mot/tracking"
)

// matchIoU is the overlap at which an emitted track covers a target.
const matchIoU = 0.5

// PerformanceMetrics captures detailed performance data
type PerformanceMetrics struct {
	Scenario        Scenario        `json:"scenario"`
	Timestamp       time.Time       `json:"timestamp"`
	TotalDuration   time.Duration   `json:"total_duration"`
	FramesPerSecond float64         `json:"frames_per_second"`
	Latency         LatencyMetrics  `json:"latency"`
	Tracking        TrackingMetrics `json:"tracking"`
	MemoryStats     MemoryMetrics   `json:"memory_stats"`
	DetectionCount  int             `json:"detection_count"`
}

// LatencyMetrics summarizes per-frame tracker latency.
type LatencyMetrics struct {
	Mean time.Duration `json:"mean"`
	P95  time.Duration `json:"p95"`
	Max  time.Duration `json:"max"`
}

// TrackingMetrics measures identity quality against the ground truth.
type TrackingMetrics struct {
	Frames int `json:"frames"`
	// IDSwitches counts frames where a target is covered by a different
	// identity than the one that last covered it.
	IDSwitches int `json:"id_switches"`
	// Fragmentations counts coverage gaps: a target covered, then uncovered,
	// then covered again.
	Fragmentations int `json:"fragmentations"`
	// Coverage is the fraction of target-frames covered by a freshly
	// observed track.
	Coverage float64 `json:"coverage"`
	// DistinctIDs is the number of identities ever emitted.
	DistinctIDs int `json:"distinct_ids"`
	// Coasted counts emitted boxes that were pure predictions.
	Coasted int `json:"coasted"`
}

// MemoryMetrics captures memory usage statistics
type MemoryMetrics struct {
	AllocBytes      uint64 `json:"alloc_bytes"`
	TotalAllocBytes uint64 `json:"total_alloc_bytes"`
	SysBytes        uint64 `json:"sys_bytes"`
	NumGC           uint32 `json:"num_gc"`
	HeapAllocBytes  uint64 `json:"heap_alloc_bytes"`
	HeapSysBytes    uint64 `json:"heap_sys_bytes"`
}

// Evaluator accumulates tracking metrics frame by frame.
type Evaluator struct {
	frames    int
	covered   int
	present   int
	coasted   int
	switches  int
	fragments int
	ids       map[int]struct{}

	// Per target: identity that last covered it (0 for none yet), and
	// whether it was covered in the previous frame.
	lastID      []int
	wasCovered  []bool
	everCovered []bool
}

// NewEvaluator creates an evaluator for a scenario with the given number of
// targets.
func NewEvaluator(targets int) *Evaluator {
	return &Evaluator{
		ids:         make(map[int]struct{}),
		lastID:      make([]int, targets),
		wasCovered:  make([]bool, targets),
		everCovered: make([]bool, targets),
	}
}

// Add scores the tracks emitted for one frame against its ground truth.
// Freshly observed tracks are matched one-to-one to targets by IoU.
func (e *Evaluator) Add(truth []images.BboxXyxy, tracks []tracking.TrackedBbox) {
	e.frames++
	e.present += len(truth)

	var fresh []tracking.TrackedBbox
	for _, t := range tracks {
		e.ids[t.ID] = struct{}{}
		if t.FreshlyObserved {
			fresh = append(fresh, t)
		} else {
			e.coasted++
		}
	}

	coveredBy := make([]int, len(truth))
	if len(truth) > 0 && len(fresh) > 0 {
		iou := mat.NewDense(len(truth), len(fresh), nil)
		for i, b := range truth {
			for j, t := range fresh {
				iou.Set(i, j, images.IoU(b, t.Box))
			}
		}
		for _, p := range assignment.Match(iou, matchIoU) {
			coveredBy[p.Row] = fresh[p.Col].ID
		}
	}

	for i, id := range coveredBy {
		if id == 0 {
			e.wasCovered[i] = false
			continue
		}
		e.covered++
		if e.lastID[i] != 0 && e.lastID[i] != id {
			e.switches++
		}
		if e.everCovered[i] && !e.wasCovered[i] {
			e.fragments++
		}
		e.lastID[i] = id
		e.wasCovered[i] = true
		e.everCovered[i] = true
	}
}

// Metrics returns the accumulated metrics.
func (e *Evaluator) Metrics() TrackingMetrics {
	m := TrackingMetrics{
		Frames:         e.frames,
		IDSwitches:     e.switches,
		Fragmentations: e.fragments,
		DistinctIDs:    len(e.ids),
		Coasted:        e.coasted,
	}
	if e.present > 0 {
		m.Coverage = float64(e.covered) / float64(e.present)
	}
	return m
}

// Latencies summarizes per-frame durations.
func Latencies(durations []time.Duration) LatencyMetrics {
	if len(durations) == 0 {
		return LatencyMetrics{}
	}

	values := make([]float64, len(durations))
	for i, d := range durations {
		values[i] = float64(d)
	}
	slices.Sort(values)

	return LatencyMetrics{
		Mean: time.Duration(stat.Mean(values, nil)),
		P95:  time.Duration(stat.Quantile(0.95, stat.Empirical, values, nil)),
		Max:  time.Duration(values[len(values)-1]),
	}
}
