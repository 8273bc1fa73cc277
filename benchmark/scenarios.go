package benchmark

import (
	"math/rand/v2"

	"github.com/nvr-ai/go-mot/images"
	"github.com/nvr-ai/go-mot/tracking"
)

// Scenario describes a synthetic detection sequence and the tracker
// parameters it is replayed with.
type Scenario struct {
	Name string `json:"name"`
	// Frames is the sequence length.
	Frames int `json:"frames"`
	// Objects is the number of ground-truth targets.
	Objects int `json:"objects"`
	// Speed is the maximum per-frame displacement of a target center.
	Speed float64 `json:"speed"`
	// Jitter is the maximum localization noise added to each box edge.
	Jitter float64 `json:"jitter"`
	// DropoutRate is the probability that a target is not detected in a frame.
	DropoutRate float64 `json:"dropout_rate"`
	// LowConfidenceRate is the probability that a detection scores below the
	// tracker's confidence threshold.
	LowConfidenceRate float64 `json:"low_confidence_rate"`
	// ClutterRate is the expected number of false positives per frame.
	ClutterRate float64 `json:"clutter_rate"`
	// Seed makes the sequence reproducible.
	Seed uint64 `json:"seed"`
	// Tracker holds the tracker parameters.
	Tracker tracking.Config `json:"tracker"`
}

// ScenarioBuilder helps build test scenarios with fluent API
type ScenarioBuilder struct {
	scenario Scenario
}

// NewScenarioBuilder creates a new scenario builder
func NewScenarioBuilder(name string) *ScenarioBuilder {
	return &ScenarioBuilder{
		scenario: Scenario{
			Name:    name,
			Frames:  300,
			Objects: 5,
			Speed:   0.01,
			Seed:    1,
			Tracker: tracking.DefaultConfig(),
		},
	}
}

// WithFrames sets the sequence length
func (sb *ScenarioBuilder) WithFrames(frames int) *ScenarioBuilder {
	sb.scenario.Frames = frames
	return sb
}

// WithObjects sets the number of targets
func (sb *ScenarioBuilder) WithObjects(objects int) *ScenarioBuilder {
	sb.scenario.Objects = objects
	return sb
}

// WithMotion sets the target speed and the localization noise
func (sb *ScenarioBuilder) WithMotion(speed, jitter float64) *ScenarioBuilder {
	sb.scenario.Speed = speed
	sb.scenario.Jitter = jitter
	return sb
}

// WithDropout sets the missed-detection probability
func (sb *ScenarioBuilder) WithDropout(rate float64) *ScenarioBuilder {
	sb.scenario.DropoutRate = rate
	return sb
}

// WithLowConfidence sets the probability of a weak detection
func (sb *ScenarioBuilder) WithLowConfidence(rate float64) *ScenarioBuilder {
	sb.scenario.LowConfidenceRate = rate
	return sb
}

// WithClutter sets the expected false positives per frame
func (sb *ScenarioBuilder) WithClutter(rate float64) *ScenarioBuilder {
	sb.scenario.ClutterRate = rate
	return sb
}

// WithSeed sets the random seed
func (sb *ScenarioBuilder) WithSeed(seed uint64) *ScenarioBuilder {
	sb.scenario.Seed = seed
	return sb
}

// WithTracker sets the tracker parameters
func (sb *ScenarioBuilder) WithTracker(cfg tracking.Config) *ScenarioBuilder {
	sb.scenario.Tracker = cfg
	return sb
}

// Build returns the configured test scenario
func (sb *ScenarioBuilder) Build() Scenario {
	return sb.scenario
}

// DefaultScenarios returns the standard scenario set: a clean sequence, one
// with missed detections, one with weak detections, a crowded one with
// clutter, and the weak-detection sequence in single-stage SORT mode.
func DefaultScenarios() []Scenario {
	sortMode := tracking.DefaultConfig()
	sortMode.SortMode = true

	return []Scenario{
		NewScenarioBuilder("clean").Build(),
		NewScenarioBuilder("dropout").WithDropout(0.2).Build(),
		NewScenarioBuilder("low-confidence").WithLowConfidence(0.4).WithMotion(0.01, 0.003).Build(),
		NewScenarioBuilder("crowded").WithObjects(30).WithMotion(0.008, 0.003).WithClutter(2).WithDropout(0.05).Build(),
		NewScenarioBuilder("low-confidence-sort").WithLowConfidence(0.4).WithMotion(0.01, 0.003).WithTracker(sortMode).Build(),
	}
}

// Frame is one generated frame: the detections handed to the tracker and
// the ground truth they came from.
type Frame struct {
	Detections []images.BboxXyxy
	// Truth holds the exact box of every target, indexed by target.
	Truth []images.BboxXyxy
}

type target struct {
	box    images.BboxXyxy
	du, dv float64
}

// Generate produces the scenario's frames. The same scenario always yields
// the same sequence.
func Generate(s Scenario) []Frame {
	rng := rand.New(rand.NewPCG(s.Seed, uint64(s.Objects)<<32|uint64(s.Frames)))

	targets := make([]target, s.Objects)
	for i := range targets {
		w := 0.04 + rng.Float64()*0.06
		h := w * (1.5 + rng.Float64())
		x := rng.Float64() * (1 - w)
		y := rng.Float64() * (1 - h)
		targets[i] = target{
			box: images.BboxXyxy{X0: x, Y0: y, X1: x + w, Y1: y + h},
			du:  (rng.Float64()*2 - 1) * s.Speed,
			dv:  (rng.Float64()*2 - 1) * s.Speed,
		}
	}

	frames := make([]Frame, s.Frames)
	for f := range frames {
		frame := Frame{Truth: make([]images.BboxXyxy, len(targets))}
		for i := range targets {
			t := &targets[i]
			if f > 0 {
				t.advance()
			}
			frame.Truth[i] = t.box

			if rng.Float64() < s.DropoutRate {
				continue
			}
			frame.Detections = append(frame.Detections, observe(rng, t.box, s))
		}

		// Poisson-like clutter: whole units plus a fractional chance.
		clutter := int(s.ClutterRate)
		if rng.Float64() < s.ClutterRate-float64(clutter) {
			clutter++
		}
		for range clutter {
			x := rng.Float64() * 0.95
			y := rng.Float64() * 0.95
			frame.Detections = append(frame.Detections, images.BboxXyxy{
				X0: x, Y0: y, X1: x + 0.03, Y1: y + 0.05,
				Confidence: 0.05 + rng.Float64()*0.3,
			})
		}

		rng.Shuffle(len(frame.Detections), func(i, j int) {
			frame.Detections[i], frame.Detections[j] = frame.Detections[j], frame.Detections[i]
		})
		frames[f] = frame
	}
	return frames
}

// advance moves the target one frame, bouncing off the plane edges.
func (t *target) advance() {
	b := &t.box
	if b.X0+t.du < 0 || b.X1+t.du > 1 {
		t.du = -t.du
	}
	if b.Y0+t.dv < 0 || b.Y1+t.dv > 1 {
		t.dv = -t.dv
	}
	b.X0 += t.du
	b.X1 += t.du
	b.Y0 += t.dv
	b.Y1 += t.dv
}

func observe(rng *rand.Rand, truth images.BboxXyxy, s Scenario) images.BboxXyxy {
	noise := func() float64 { return (rng.Float64()*2 - 1) * s.Jitter }

	confidence := s.Tracker.ConfidenceThreshold + rng.Float64()*(1-s.Tracker.ConfidenceThreshold)
	if rng.Float64() < s.LowConfidenceRate {
		confidence = 0.05 + rng.Float64()*max(s.Tracker.ConfidenceThreshold-0.06, 0)
	}

	return images.BboxXyxy{
		X0:         truth.X0 + noise(),
		Y0:         truth.Y0 + noise(),
		X1:         truth.X1 + noise(),
		Y1:         truth.Y1 + noise(),
		Confidence: confidence,
	}
}
