// Package images - Box geometry shared by the detector boundary and the tracker.
package images

import "github.com/chewxy/math32"

// Rect is a lightweight pixel-space bounding box as produced by detectors.
type Rect struct {
	// X2,Y2 are exclusive (like image.Rectangle).
	X1, Y1, X2, Y2 int
}

// Width returns the horizontal extent of the rectangle in pixels.
func (r Rect) Width() int {
	return r.X2 - r.X1
}

// Height returns the vertical extent of the rectangle in pixels.
func (r Rect) Height() int {
	return r.Y2 - r.Y1
}

// CalculateIoU returns the Intersection over Union of two pixel rectangles.
//
//	IoU = Area of Intersection / Area of Union
//
// Non-overlapping or touching rectangles return 0.
//
// Arguments:
//   - r: The first rectangle.
//   - o: The other rectangle to compare against.
//
// Returns:
//   - float32: A value between 0.0 and 1.0 representing the IoU score.
func CalculateIoU(r, o Rect) float32 {
	ix1 := max(r.X1, o.X1)
	iy1 := max(r.Y1, o.Y1)
	ix2 := min(r.X2, o.X2)
	iy2 := min(r.Y2, o.Y2)

	interW := ix2 - ix1
	interH := iy2 - iy1
	if interW <= 0 || interH <= 0 {
		return 0.0
	}
	interArea := interW * interH

	// Union(A, B) = Area(A) + Area(B) - Intersection(A, B)
	areaR := (r.X2 - r.X1) * (r.Y2 - r.Y1)
	areaO := (o.X2 - o.X1) * (o.Y2 - o.Y1)
	unionArea := areaR + areaO - interArea

	return float32(interArea) / float32(unionArea)
}

// Normalize maps a pixel rectangle onto the unit image plane.
//
// Coordinates are divided by the frame dimensions and clamped to [0,1], so
// detector boxes that spill over the frame edge stay on the plane.
//
// Arguments:
//   - r: The pixel rectangle.
//   - width: Frame width in pixels.
//   - height: Frame height in pixels.
//   - confidence: Detector score attached to the result.
//
// Returns:
//   - BboxXyxy: the normalized box. A zero-sized frame yields a zero box.
func Normalize(r Rect, width, height int, confidence float32) BboxXyxy {
	if width <= 0 || height <= 0 {
		return BboxXyxy{Confidence: float64(confidence)}
	}
	fw := float32(width)
	fh := float32(height)
	norm := func(v int, size float32) float64 {
		return float64(math32.Max(0, math32.Min(1, float32(v)/size)))
	}
	return BboxXyxy{
		X0:         norm(r.X1, fw),
		Y0:         norm(r.Y1, fh),
		X1:         norm(r.X2, fw),
		Y1:         norm(r.Y2, fh),
		Confidence: float64(math32.Max(0, math32.Min(1, confidence))),
	}
}

// Denormalize maps a unit-plane box back to pixel space, rounding outward so
// the pixel rectangle covers the whole box.
func Denormalize(b BboxXyxy, width, height int) Rect {
	fw := float32(width)
	fh := float32(height)
	return Rect{
		X1: int(math32.Floor(float32(b.X0) * fw)),
		Y1: int(math32.Floor(float32(b.Y0) * fh)),
		X2: int(math32.Ceil(float32(b.X1) * fw)),
		Y2: int(math32.Ceil(float32(b.Y1) * fh)),
	}
}
