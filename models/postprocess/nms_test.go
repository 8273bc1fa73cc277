package postprocess

import (
	"fmt"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nvr-ai/go-mot/images"
)

func rect(x1, y1, x2, y2 int) images.Rect {
	return images.Rect{X1: x1, Y1: y1, X2: x2, Y2: y2}
}

func TestApplyGreedyNMS(t *testing.T) {
	tests := []struct {
		name       string
		detections []Result
		config     NMSConfig
		expected   []Result
	}{
		{
			name:     "empty",
			config:   NMSConfig{IoUThreshold: 0.5},
			expected: nil,
		},
		{
			name: "overlapping boxes collapse to the best",
			detections: []Result{
				{Box: rect(0, 0, 100, 100), Score: 0.9},
				{Box: rect(5, 5, 105, 105), Score: 0.8},
				{Box: rect(300, 300, 400, 400), Score: 0.7},
			},
			config: NMSConfig{IoUThreshold: 0.5},
			expected: []Result{
				{Box: rect(0, 0, 100, 100), Score: 0.9},
				{Box: rect(300, 300, 400, 400), Score: 0.7},
			},
		},
		{
			name: "class aware keeps other classes",
			detections: []Result{
				{Box: rect(0, 0, 100, 100), Score: 0.9, Class: 0},
				{Box: rect(5, 5, 105, 105), Score: 0.8, Class: 1},
				{Box: rect(5, 5, 105, 105), Score: 0.7, Class: 0},
			},
			config: NMSConfig{IoUThreshold: 0.5, ClassAware: true},
			expected: []Result{
				{Box: rect(0, 0, 100, 100), Score: 0.9, Class: 0},
				{Box: rect(5, 5, 105, 105), Score: 0.8, Class: 1},
			},
		},
		{
			name: "overlap at threshold is kept",
			detections: []Result{
				{Box: rect(0, 0, 100, 100), Score: 0.9},
				{Box: rect(0, 0, 100, 50), Score: 0.8},
			},
			config: NMSConfig{IoUThreshold: 0.5},
			expected: []Result{
				{Box: rect(0, 0, 100, 100), Score: 0.9},
				{Box: rect(0, 0, 100, 50), Score: 0.8},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ApplyGreedyNMS(tt.detections, &tt.config))
		})
	}
}

func TestApplyNMS_MatchesGreedy(t *testing.T) {
	rng := rand.New(rand.NewPCG(11, 13))

	for trial := 0; trial < 50; trial++ {
		n := 1 + rng.IntN(40)
		detections := make([]Result, n)
		for i := range detections {
			x := rng.IntN(500)
			y := rng.IntN(500)
			detections[i] = Result{
				Box:   rect(x, y, x+20+rng.IntN(80), y+20+rng.IntN(80)),
				Score: rng.Float32(),
				Class: rng.IntN(3),
			}
		}
		SortByScore(detections)

		for _, classAware := range []bool{false, true} {
			config := NMSConfig{IoUThreshold: 0.4, ClassAware: classAware, NumWorkers: 4}
			require.Equal(t,
				ApplyGreedyNMS(detections, &config),
				ApplyNMS(detections, &config),
				"trial %d class aware %v", trial, classAware)
		}
	}
}

func TestSuppress_SortsFirst(t *testing.T) {
	detections := []Result{
		{Box: rect(5, 5, 105, 105), Score: 0.6},
		{Box: rect(0, 0, 100, 100), Score: 0.9},
	}
	config := DefaultNMSConfig()

	out := Suppress(detections, &config)

	require.Len(t, out, 1)
	assert.Equal(t, float32(0.9), out[0].Score)
}

func TestSortByScore_Stable(t *testing.T) {
	results := []Result{
		{Score: 0.5, Class: 1},
		{Score: 0.9, Class: 2},
		{Score: 0.5, Class: 3},
	}

	SortByScore(results)

	assert.Equal(t, []int{2, 1, 3}, []int{results[0].Class, results[1].Class, results[2].Class})
}

func BenchmarkNMS(b *testing.B) {
	rng := rand.New(rand.NewPCG(1, 2))
	detections := make([]Result, 300)
	for i := range detections {
		x := rng.IntN(1800)
		y := rng.IntN(1000)
		detections[i] = Result{Box: rect(x, y, x+60, y+120), Score: rng.Float32()}
	}
	SortByScore(detections)

	for _, greedy := range []bool{true, false} {
		config := NMSConfig{Greedy: greedy, IoUThreshold: 0.45, NumWorkers: 4}
		b.Run(fmt.Sprintf("greedy=%v", greedy), func(b *testing.B) {
			for b.Loop() {
				Suppress(detections, &config)
			}
		})
	}
}
