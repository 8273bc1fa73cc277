// Package controller - Scene density summary over the tracks of a frame.
package controller

import (
	"math"
	"slices"

	"gonum.org/v1/gonum/stat"

	"github.com/nvr-ai/go-mot/images"
	"github.com/nvr-ai/go-mot/tracking"
)

// DensityMetrics summarizes how crowded a frame is, measured on the tracks
// the tracker emitted for it. Sizes and distances are on the unit plane.
type DensityMetrics struct {
	// TotalObjects is the number of emitted tracks.
	TotalObjects int `json:"total_objects"`

	// Coasting is the number of tracks emitted from prediction only.
	Coasting int `json:"coasting"`

	// SmallObjects is the count of boxes below the small object area.
	SmallObjects int `json:"small_objects"`

	// LargeObjects is the count of boxes above the large object area.
	LargeObjects int `json:"large_objects"`

	// AverageObjectSize is the mean box area.
	AverageObjectSize float64 `json:"average_object_size"`

	// ObjectSizeVariance measures the spread in box areas.
	ObjectSizeVariance float64 `json:"object_size_variance"`

	// ClusteringCoefficient is the fraction of box pairs whose centers lie
	// within the clustering radius.
	ClusteringCoefficient float64 `json:"clustering_coefficient"`

	// OverlapRatio is the fraction of boxes overlapping at least one other.
	OverlapRatio float64 `json:"overlap_ratio"`

	// CenterOfMass is the mean box center.
	CenterOfMass images.BboxUvsr `json:"center_of_mass"`

	ConfidenceDistribution ConfidenceStats `json:"confidence_distribution"`
}

// ConfidenceStats provides statistical analysis of track confidence scores.
type ConfidenceStats struct {
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	StdDev float64 `json:"std_dev"`
}

// DensityConfig contains the thresholds of the density summary.
type DensityConfig struct {
	// SmallObjectArea is the area below which a box counts as small.
	SmallObjectArea float64 `json:"small_object_area"`
	// LargeObjectArea is the area above which a box counts as large.
	LargeObjectArea float64 `json:"large_object_area"`
	// ClusteringRadius is the center distance under which two boxes cluster.
	ClusteringRadius float64 `json:"clustering_radius"`
	// OverlapThreshold is the IoU at which two boxes overlap.
	OverlapThreshold float64 `json:"overlap_threshold"`
}

// DefaultDensityConfig returns thresholds suited to person tracking.
func DefaultDensityConfig() DensityConfig {
	return DensityConfig{
		SmallObjectArea:  0.001,
		LargeObjectArea:  0.05,
		ClusteringRadius: 0.1,
		OverlapThreshold: 0.3,
	}
}

// DensityEstimator computes DensityMetrics for emitted tracks.
type DensityEstimator struct {
	config DensityConfig
}

// NewDensityEstimator creates a density estimator. A zero config selects
// DefaultDensityConfig.
func NewDensityEstimator(config DensityConfig) *DensityEstimator {
	if config == (DensityConfig{}) {
		config = DefaultDensityConfig()
	}
	return &DensityEstimator{config: config}
}

// Config returns the estimator thresholds.
func (d *DensityEstimator) Config() DensityConfig {
	return d.config
}

// Estimate summarizes the tracks of one frame.
//
// Arguments:
//   - tracks: Tracks emitted by the tracker for the frame.
//
// Returns:
//   - DensityMetrics: The summary. Every field is zero for an empty frame.
func (d *DensityEstimator) Estimate(tracks []tracking.TrackedBbox) DensityMetrics {
	metrics := DensityMetrics{TotalObjects: len(tracks)}
	if len(tracks) == 0 {
		return metrics
	}

	d.sizeMetrics(tracks, &metrics)
	confidenceMetrics(tracks, &metrics)
	d.spatialMetrics(tracks, &metrics)
	return metrics
}

// Score folds the metrics into one complexity number: confidence-weighted
// object count plus bonuses for small, clustered and overlapping objects.
func (m DensityMetrics) Score() int {
	score := m.ConfidenceDistribution.Mean * float64(m.TotalObjects)
	score += float64(m.SmallObjects) * 1.5
	score += m.ClusteringCoefficient * 2
	score += m.OverlapRatio * 3
	return int(math.Round(score))
}

func (d *DensityEstimator) sizeMetrics(tracks []tracking.TrackedBbox, metrics *DensityMetrics) {
	areas := make([]float64, len(tracks))
	for i, t := range tracks {
		area := t.Box.Area()
		areas[i] = area
		if area < d.config.SmallObjectArea {
			metrics.SmallObjects++
		}
		if area > d.config.LargeObjectArea {
			metrics.LargeObjects++
		}
		if !t.FreshlyObserved {
			metrics.Coasting++
		}
	}
	metrics.AverageObjectSize, metrics.ObjectSizeVariance = stat.PopMeanVariance(areas, nil)
}

func confidenceMetrics(tracks []tracking.TrackedBbox, metrics *DensityMetrics) {
	confidences := make([]float64, len(tracks))
	for i, t := range tracks {
		confidences[i] = t.Box.Confidence
	}
	slices.Sort(confidences)

	stats := &metrics.ConfidenceDistribution
	stats.Mean, stats.StdDev = stat.PopMeanStdDev(confidences, nil)
	stats.Min = confidences[0]
	stats.Max = confidences[len(confidences)-1]

	n := len(confidences)
	if n%2 == 0 {
		stats.Median = (confidences[n/2-1] + confidences[n/2]) / 2
	} else {
		stats.Median = confidences[n/2]
	}
}

func (d *DensityEstimator) spatialMetrics(tracks []tracking.TrackedBbox, metrics *DensityMetrics) {
	centers := make([]images.BboxUvsr, len(tracks))
	for i, t := range tracks {
		centers[i] = images.ToCenterForm(t.Box)
		metrics.CenterOfMass.U += centers[i].U / float64(len(tracks))
		metrics.CenterOfMass.V += centers[i].V / float64(len(tracks))
	}

	if len(tracks) < 2 {
		return
	}

	overlapping := make([]bool, len(tracks))
	pairs, clustered := 0, 0
	for i := range tracks {
		for j := i + 1; j < len(tracks); j++ {
			pairs++
			if math.Hypot(centers[i].U-centers[j].U, centers[i].V-centers[j].V) <= d.config.ClusteringRadius {
				clustered++
			}
			if images.IoU(tracks[i].Box, tracks[j].Box) >= d.config.OverlapThreshold {
				overlapping[i] = true
				overlapping[j] = true
			}
		}
	}

	metrics.ClusteringCoefficient = float64(clustered) / float64(pairs)

	count := 0
	for _, o := range overlapping {
		if o {
			count++
		}
	}
	metrics.OverlapRatio = float64(count) / float64(len(tracks))
}
