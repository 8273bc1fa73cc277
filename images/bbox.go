package images

import (
	"fmt"
	"math"
)

// BboxXyxy is a corner-format box on the unit image plane.
//
// X0,Y0 is the top-left corner and X1,Y1 the bottom-right corner, both
// normalized to [0,1]. Confidence is the detector score in [0,1].
type BboxXyxy struct {
	X0         float64 `json:"x0"`
	Y0         float64 `json:"y0"`
	X1         float64 `json:"x1"`
	Y1         float64 `json:"y1"`
	Confidence float64 `json:"confidence"`
}

// BboxUvsr is the center form of a box used by the motion model.
//
// U,V is the center, S the area (width*height) and R the aspect ratio
// (width/height). Valid geometry has S > 0 and R > 0.
type BboxUvsr struct {
	U, V float64
	S, R float64
}

// Width returns the horizontal extent of the box.
func (b BboxXyxy) Width() float64 {
	return b.X1 - b.X0
}

// Height returns the vertical extent of the box.
func (b BboxXyxy) Height() float64 {
	return b.Y1 - b.Y0
}

// Area returns Width*Height. It is negative for inverted boxes.
func (b BboxXyxy) Area() float64 {
	return b.Width() * b.Height()
}

// HasNaN reports whether any coordinate is NaN.
func (b BboxXyxy) HasNaN() bool {
	return math.IsNaN(b.X0) || math.IsNaN(b.Y0) || math.IsNaN(b.X1) || math.IsNaN(b.Y1)
}

// Clamped returns the box with every coordinate clamped to the unit plane.
// Confidence is left untouched.
func (b BboxXyxy) Clamped() BboxXyxy {
	return BboxXyxy{
		X0:         Clamp(b.X0, 0, 1),
		Y0:         Clamp(b.Y0, 0, 1),
		X1:         Clamp(b.X1, 0, 1),
		Y1:         Clamp(b.Y1, 0, 1),
		Confidence: b.Confidence,
	}
}

func (b BboxXyxy) String() string {
	return fmt.Sprintf("(%.4f, %.4f), (%.4f, %.4f) conf=%.3f", b.X0, b.Y0, b.X1, b.Y1, b.Confidence)
}

// ToCenterForm converts a corner-format box to center form.
//
// Arguments:
//   - b: The corner-format box.
//
// Returns:
//   - BboxUvsr: u,v is the box center, s = w*h and r = w/h.
//
// A zero-height box yields an infinite or NaN ratio. Callers that care about
// degeneracy check the inverse transform instead.
func ToCenterForm(b BboxXyxy) BboxUvsr {
	w := b.X1 - b.X0
	h := b.Y1 - b.Y0
	return BboxUvsr{
		U: b.X0 + w/2,
		V: b.Y0 + h/2,
		S: w * h,
		R: w / h,
	}
}

// ToCornerForm converts a center-form box back to corner format.
//
// Arguments:
//   - c: The center-form box.
//
// Returns:
//   - BboxXyxy: the box centered at (u, v) with w = sqrt(s*r) and h = s/w.
//     Confidence is zero.
//
// Non-positive s or r produce NaN or Inf coordinates. This is not an error:
// the tracker uses NaN to detect and drop numerically degenerate tracks.
func ToCornerForm(c BboxUvsr) BboxXyxy {
	w := math.Sqrt(c.S * c.R)
	h := c.S / w
	return BboxXyxy{
		X0: c.U - w/2,
		Y0: c.V - h/2,
		X1: c.U + w/2,
		Y1: c.V + h/2,
	}
}

// IoU returns the intersection over union of two corner-format boxes.
//
// The result is in [0,1] for boxes with positive area. When the union is not
// positive (both boxes degenerate) the result is 0 rather than NaN, so that
// IoU matrices stay finite.
func IoU(a, b BboxXyxy) float64 {
	ix0 := math.Max(a.X0, b.X0)
	iy0 := math.Max(a.Y0, b.Y0)
	ix1 := math.Min(a.X1, b.X1)
	iy1 := math.Min(a.Y1, b.Y1)

	inter := math.Max(0, ix1-ix0) * math.Max(0, iy1-iy0)
	union := a.Area() + b.Area() - inter
	if union <= 0 || math.IsNaN(union) {
		return 0
	}
	return inter / union
}

// Clamp limits value to the closed interval [lo, hi]. NaN is returned as is.
func Clamp(value, lo, hi float64) float64 {
	if value < lo {
		return lo
	}
	if value > hi {
		return hi
	}
	return value
}
