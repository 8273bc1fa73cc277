// Package tracking implements an online multi-object tracker for per-frame
// detections on the unit image plane.
//
// Each identity is a Kalman-filtered Track. Every frame the Tracker predicts
// all tracks, matches high-confidence detections against every track and then
// low-confidence detections against the tracks left over (ByteTrack-style
// two-stage association), spawns tracks for unmatched detections, retires
// stale tracks and emits the visible ones.
//
// A Tracker is single-threaded: Process runs one frame to completion and must
// not be called concurrently. Use one Tracker per independent stream.
package tracking

import (
	"log/slog"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/nvr-ai/go-mot/assignment"
	"github.com/nvr-ai/go-mot/images"
)

// Velocity is a per-frame displacement of a box center on the unit plane.
type Velocity struct {
	U float64 `json:"u"`
	V float64 `json:"v"`
}

// TrackedBbox is one track emitted for a frame.
type TrackedBbox struct {
	// ID is the track identity. IDs start at 1 and are never reused before
	// Reset.
	ID int `json:"id"`
	// Box is the body box clamped to the unit plane. Its Confidence is the
	// confidence of the last matched detection.
	Box images.BboxXyxy `json:"box"`
	// Velocity is the estimated center displacement per frame.
	Velocity Velocity `json:"velocity"`
	// FreshlyObserved is true when a detection matched the track this frame
	// and false when the box is a pure prediction (coasting).
	FreshlyObserved bool `json:"freshly_observed"`
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithLogger sets the logger used for debug-level lifecycle events.
func WithLogger(logger *slog.Logger) Option {
	return func(t *Tracker) {
		if logger != nil {
			t.logger = logger
		}
	}
}

// Tracker owns the live tracks of one stream and runs the per-frame
// association state machine.
type Tracker struct {
	cfg    Config
	logger *slog.Logger

	tracks []*Track
	frame  int
	nextID int
}

// New creates a Tracker with the given parameters.
//
// Arguments:
//   - cfg: Tracker parameters, typically DefaultConfig() with overrides.
//   - opts: Optional settings such as WithLogger.
//
// Returns:
//   - *Tracker: A tracker at frame 0 whose first identity will be 1.
func New(cfg Config, opts ...Option) *Tracker {
	t := &Tracker{
		cfg:    cfg,
		logger: slog.New(slog.DiscardHandler),
		nextID: 1,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Configure replaces the tracker parameters. Live tracks are kept.
func (t *Tracker) Configure(cfg Config) {
	t.cfg = cfg
}

// Config returns the current parameters.
func (t *Tracker) Config() Config {
	return t.cfg
}

// Frame returns the number of frames processed since the last Reset.
func (t *Tracker) Frame() int {
	return t.frame
}

// Len returns the number of live tracks, visible or not.
func (t *Tracker) Len() int {
	return len(t.tracks)
}

// Reset drops every track and restarts frame and identity counters, for a
// new sequence unrelated to the previous one.
func (t *Tracker) Reset() {
	t.tracks = nil
	t.frame = 0
	t.nextID = 1
}

// Process advances the tracker by one frame.
//
// Arguments:
//   - detections: Boxes on the unit plane with confidences in [0,1].
//
// Returns:
//   - []TrackedBbox: Tracks matched and visible this frame (FreshlyObserved),
//     followed by previously visible tracks coasting on their prediction.
func (t *Tracker) Process(detections []images.BboxXyxy) []TrackedBbox {
	t.frame++
	t.predict()

	high, low := t.partition(detections)

	// Stage 1: high-confidence detections against every track.
	highMatches, unmatchedHigh := associate(high, t.tracks, t.cfg.IoUThresholdHigh)
	for _, m := range highMatches {
		d := high[m.Row]
		t.tracks[m.Col].Update(images.ToCenterForm(d), d.Confidence)
	}

	live := make([]*Track, 0, len(t.tracks))
	var remained []*Track
	for _, tr := range t.tracks {
		if tr.Updated() {
			live = append(live, tr)
		} else {
			remained = append(remained, tr)
		}
	}

	// Stage 2: low-confidence detections against the tracks stage 1 missed.
	lowMatches, unmatchedLow := associate(low, remained, t.cfg.IoUThresholdLow)
	for _, m := range lowMatches {
		d := low[m.Row]
		remained[m.Col].Update(images.ToCenterForm(d), d.Confidence)
	}

	t.tracks = append(live, remained...)
	t.retire()

	for _, i := range unmatchedHigh {
		t.spawn(high[i])
	}
	if t.frame <= t.cfg.NumInitialFrame {
		for _, i := range unmatchedLow {
			t.spawn(low[i])
		}
	}

	out := t.emit()
	t.logger.Debug("frame processed",
		slog.Int("frame", t.frame),
		slog.Int("detections_high", len(high)),
		slog.Int("detections_low", len(low)),
		slog.Int("matched_high", len(highMatches)),
		slog.Int("matched_low", len(lowMatches)),
		slog.Int("tracks", len(t.tracks)),
		slog.Int("emitted", len(out)),
	)
	return out
}

// predict advances every track and drops those whose decoded box is NaN.
func (t *Tracker) predict() {
	kept := t.tracks[:0]
	for _, tr := range t.tracks {
		tr.Predict()
		if images.ToCornerForm(tr.Box()).HasNaN() {
			t.logger.Debug("dropping degenerate track", slog.Int("id", tr.id), slog.Int("frame", t.frame))
			continue
		}
		kept = append(kept, tr)
	}
	clear(t.tracks[len(kept):])
	t.tracks = kept
}

func (t *Tracker) partition(detections []images.BboxXyxy) (high, low []images.BboxXyxy) {
	if t.cfg.SortMode {
		return detections, nil
	}
	for _, d := range detections {
		if d.Confidence >= t.cfg.ConfidenceThreshold {
			high = append(high, d)
		} else {
			low = append(low, d)
		}
	}
	return high, low
}

// retire removes tracks that stayed unmatched for more than MaxAge frames.
func (t *Tracker) retire() {
	kept := t.tracks[:0]
	for _, tr := range t.tracks {
		if tr.framesDropped > t.cfg.MaxAge {
			t.logger.Debug("retiring track", slog.Int("id", tr.id), slog.Int("frame", t.frame))
			continue
		}
		kept = append(kept, tr)
	}
	clear(t.tracks[len(kept):])
	t.tracks = kept
}

func (t *Tracker) spawn(d images.BboxXyxy) {
	tr := newTrack(t.nextID, images.ToCenterForm(d), d.Confidence)
	t.nextID++
	t.tracks = append(t.tracks, tr)
	t.logger.Debug("spawned track",
		slog.Int("id", tr.id),
		slog.Int("frame", t.frame),
		slog.Float64("confidence", d.Confidence),
	)
}

// emit collects the visible tracks of the current frame: matched tracks that
// pass the visibility test first, then coasting tracks that were visible at
// some earlier frame. Tracks whose box decodes to NaN are never emitted; the
// next predict removes them.
func (t *Tracker) emit() []TrackedBbox {
	var out []TrackedBbox
	for _, tr := range t.tracks {
		if tr.matchedVisible(t.frame, t.cfg.NumInitialFrame, t.cfg.MinFrameSustained) {
			out = appendFinite(out, tr.output(true))
		}
	}
	for _, tr := range t.tracks {
		if tr.framesDropped > 0 && tr.framesDropped <= t.cfg.MaxAge && tr.visibleSoFar {
			out = appendFinite(out, tr.output(false))
		}
	}
	return out
}

func appendFinite(out []TrackedBbox, b TrackedBbox) []TrackedBbox {
	if b.Box.HasNaN() || math.IsNaN(b.Velocity.U) || math.IsNaN(b.Velocity.V) {
		return out
	}
	return append(out, b)
}

func (tr *Track) output(fresh bool) TrackedBbox {
	return TrackedBbox{
		ID:              tr.id,
		Box:             tr.cornerBox(),
		Velocity:        tr.Velocity(),
		FreshlyObserved: fresh,
	}
}

// associate matches detections (rows) to tracks (columns) by IoU and returns
// the accepted pairs and the indices of unmatched detections in order.
func associate(detections []images.BboxXyxy, tracks []*Track, threshold float64) ([]assignment.Pair, []int) {
	var pairs []assignment.Pair
	if len(detections) > 0 && len(tracks) > 0 {
		pairs = assignment.Match(IoUMatrix(detections, tracks), threshold)
	}

	matched := make([]bool, len(detections))
	for _, p := range pairs {
		matched[p.Row] = true
	}
	var unmatched []int
	for i, ok := range matched {
		if !ok {
			unmatched = append(unmatched, i)
		}
	}
	return pairs, unmatched
}

// IoUMatrix builds the detection×track IoU matrix against the tracks'
// predicted boxes, clamped to the unit plane. Both slices must be non-empty.
func IoUMatrix(detections []images.BboxXyxy, tracks []*Track) *mat.Dense {
	boxes := make([]images.BboxXyxy, len(tracks))
	for j, tr := range tracks {
		boxes[j] = tr.cornerBox()
	}

	m := mat.NewDense(len(detections), len(tracks), nil)
	for i, d := range detections {
		for j, b := range boxes {
			m.Set(i, j, images.IoU(b, d))
		}
	}
	return m
}
