package tracking

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/nvr-ai/go-mot/images"
)

// Track is one tracked identity: a Kalman motion model plus the bookkeeping
// that decides when the identity is shown and when it is retired.
type Track struct {
	id         int
	filter     kalman
	confidence float64

	// framesDropped counts consecutive predictions without a matching
	// detection. It is 0 right after an update.
	framesDropped int
	// framesSustained counts consecutive frames with a match.
	framesSustained int

	// revealed is set the first time the track passes the visibility test
	// and is never cleared.
	revealed     bool
	visibleSoFar bool
}

func newTrack(id int, box images.BboxUvsr, confidence float64) *Track {
	return &Track{
		id:         id,
		filter:     newKalman(box.U, box.V, box.S, box.R),
		confidence: confidence,
	}
}

// ID returns the identity assigned at creation.
func (t *Track) ID() int { return t.id }

// Confidence returns the confidence of the last matched detection.
func (t *Track) Confidence() float64 { return t.confidence }

// FramesDropped returns the number of consecutive unmatched frames.
func (t *Track) FramesDropped() int { return t.framesDropped }

// FramesSustained returns the number of consecutive matched frames.
func (t *Track) FramesSustained() int { return t.framesSustained }

// Updated reports whether the track was matched since its last prediction.
func (t *Track) Updated() bool { return t.framesDropped == 0 }

// VisibleSoFar reports whether the track has ever been emitted as visible.
func (t *Track) VisibleSoFar() bool { return t.visibleSoFar }

// Box returns the current state estimate in center form.
func (t *Track) Box() images.BboxUvsr {
	x := t.filter.x
	return images.BboxUvsr{U: x.AtVec(0), V: x.AtVec(1), S: x.AtVec(2), R: x.AtVec(3)}
}

// Velocity returns the estimated per-frame center displacement (du, dv).
func (t *Track) Velocity() Velocity {
	return Velocity{U: t.filter.x.AtVec(4), V: t.filter.x.AtVec(5)}
}

// Speed returns the magnitude of the center velocity, ignoring scale.
func (t *Track) Speed() float64 {
	v := t.Velocity()
	return math.Hypot(v.U, v.V)
}

// cornerBox decodes the state into a corner-format box clamped to the unit
// plane, carrying the track confidence. NaN coordinates survive clamping.
func (t *Track) cornerBox() images.BboxXyxy {
	b := images.ToCornerForm(t.Box()).Clamped()
	b.Confidence = t.confidence
	return b
}

// Predict advances the motion model one frame and ages the track. A track
// that was already unmatched before this call loses its matched streak.
func (t *Track) Predict() {
	t.filter.predict()

	if t.framesDropped > 0 {
		t.framesSustained = 0
	}
	t.framesDropped++
}

// Update corrects the motion model with a matched detection.
func (t *Track) Update(box images.BboxUvsr, confidence float64) {
	t.framesDropped = 0
	t.framesSustained++
	t.confidence = confidence

	t.filter.update(mat.NewVecDense(measDim, []float64{box.U, box.V, box.S, box.R}))
}

// matchedVisible evaluates the per-frame visibility test for a track that
// was matched this frame. A passing track is revealed permanently.
//
// Arguments:
//   - frame: The current frame number (1-based).
//   - numInitialFrame: Length of the bootstrap window.
//   - minFrameSustained: Matched streak required outside the window.
//
// Returns:
//   - bool: Whether the track is shown as freshly observed.
func (t *Track) matchedVisible(frame, numInitialFrame, minFrameSustained int) bool {
	if t.framesDropped > 0 {
		return false
	}
	if t.revealed || t.framesSustained >= minFrameSustained || frame <= numInitialFrame {
		t.revealed = true
		t.visibleSoFar = true
		return true
	}
	return false
}
