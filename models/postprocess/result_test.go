package postprocess

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToDetections(t *testing.T) {
	results := []Result{
		{Box: rect(64, 48, 192, 240), Score: 0.8, Class: 0},
		{Box: rect(600, 400, 700, 500), Score: 1.2, Class: 2},
		{Box: rect(0, 0, 32, 32), Score: 0.4, Class: 0},
	}

	t.Run("all classes", func(t *testing.T) {
		detections := ToDetections(results, 640, 480)
		require.Len(t, detections, 3)

		assert.InDelta(t, 0.1, detections[0].X0, 1e-6)
		assert.InDelta(t, 0.1, detections[0].Y0, 1e-6)
		assert.InDelta(t, 0.3, detections[0].X1, 1e-6)
		assert.InDelta(t, 0.5, detections[0].Y1, 1e-6)
		assert.InDelta(t, 0.8, detections[0].Confidence, 1e-6)

		// Spilling boxes and scores are clamped.
		assert.InDelta(t, 1.0, detections[1].X1, 1e-6)
		assert.InDelta(t, 1.0, detections[1].Y1, 1e-6)
		assert.InDelta(t, 1.0, detections[1].Confidence, 1e-6)
	})

	t.Run("class filter", func(t *testing.T) {
		detections := ToDetections(results, 640, 480, 0)
		require.Len(t, detections, 2)
		assert.InDelta(t, 0.4, detections[1].Confidence, 1e-6)
	})

	t.Run("empty", func(t *testing.T) {
		assert.Empty(t, ToDetections(nil, 640, 480))
	})
}
