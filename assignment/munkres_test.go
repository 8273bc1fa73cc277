package assignment

import (
	"fmt"
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func totalCost(cost mat.Matrix, pairs []Pair) float64 {
	var sum float64
	for _, p := range pairs {
		sum += cost.At(p.Row, p.Col)
	}
	return sum
}

// bruteForce enumerates every injective mapping of the shorter dimension
// into the longer one and returns the minimum total cost.
func bruteForce(cost mat.Matrix) float64 {
	r, c := cost.Dims()
	transposed := r > c
	short, long := r, c
	if transposed {
		short, long = c, r
	}
	at := func(i, j int) float64 {
		if transposed {
			return cost.At(j, i)
		}
		return cost.At(i, j)
	}

	best := math.Inf(1)
	used := make([]bool, long)
	var walk func(i int, acc float64)
	walk = func(i int, acc float64) {
		if i == short {
			best = math.Min(best, acc)
			return
		}
		for j := 0; j < long; j++ {
			if used[j] {
				continue
			}
			used[j] = true
			walk(i+1, acc+at(i, j))
			used[j] = false
		}
	}
	walk(0, 0)
	return best
}

func requireValidAssignment(t *testing.T, cost mat.Matrix, pairs []Pair) {
	t.Helper()
	r, c := cost.Dims()
	require.Len(t, pairs, min(r, c))

	rows := map[int]bool{}
	cols := map[int]bool{}
	for i, p := range pairs {
		require.False(t, rows[p.Row], "row %d used twice", p.Row)
		require.False(t, cols[p.Col], "col %d used twice", p.Col)
		rows[p.Row] = true
		cols[p.Col] = true
		if i > 0 {
			require.Less(t, pairs[i-1].Row, p.Row, "pairs must be ordered by row")
		}
	}
}

func TestSolve_Empty(t *testing.T) {
	assert.Nil(t, Solve(&mat.Dense{}))
}

func TestSolve_SingleElement(t *testing.T) {
	pairs := Solve(mat.NewDense(1, 1, []float64{5}))
	assert.Equal(t, []Pair{{Row: 0, Col: 0}}, pairs)
}

func TestSolve_SquareOptimal(t *testing.T) {
	//   [1 2 3]     Optimal: row0→col0 (1), row1→col1 (4), row2→col2 (5) = 10
	//   [4 4 6]
	//   [9 8 5]
	cost := mat.NewDense(3, 3, []float64{
		1, 2, 3,
		4, 4, 6,
		9, 8, 5,
	})

	pairs := Solve(cost)
	requireValidAssignment(t, cost, pairs)
	assert.InDelta(t, 10.0, totalCost(cost, pairs), 1e-9)
}

func TestSolve_Rectangular(t *testing.T) {
	tests := []struct {
		name     string
		rows     int
		cols     int
		data     []float64
		expected []Pair
	}{
		{
			name: "more rows than columns",
			rows: 3, cols: 2,
			data: []float64{
				1, 10,
				10, 1,
				5, 5,
			},
			expected: []Pair{{0, 0}, {1, 1}},
		},
		{
			name: "more columns than rows",
			rows: 2, cols: 3,
			data: []float64{
				10, 1, 5,
				5, 10, 1,
			},
			expected: []Pair{{0, 1}, {1, 2}},
		},
		{
			name: "single row",
			rows: 1, cols: 4,
			data:     []float64{3, 2, 7, 2.5},
			expected: []Pair{{0, 1}},
		},
		{
			name: "single column",
			rows: 4, cols: 1,
			data:     []float64{3, 2, 7, 1},
			expected: []Pair{{3, 0}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cost := mat.NewDense(tt.rows, tt.cols, tt.data)
			pairs := Solve(cost)
			requireValidAssignment(t, cost, pairs)
			assert.Equal(t, tt.expected, pairs)
		})
	}
}

func TestSolve_DoesNotMutateInput(t *testing.T) {
	data := []float64{4, 1, 3, 2, 0, 5, 3, 2, 2}
	cost := mat.NewDense(3, 3, append([]float64(nil), data...))

	Solve(cost)
	assert.Equal(t, data, cost.RawMatrix().Data)
}

func TestSolve_NonFinite(t *testing.T) {
	cost := mat.NewDense(2, 2, []float64{
		math.NaN(), 1,
		2, math.Inf(1),
	})

	pairs := Solve(cost)
	assert.Equal(t, []Pair{{0, 1}, {1, 0}}, pairs)
}

func TestSolve_Ties(t *testing.T) {
	cost := mat.NewDense(3, 3, []float64{
		1, 1, 1,
		1, 1, 1,
		1, 1, 1,
	})

	pairs := Solve(cost)
	requireValidAssignment(t, cost, pairs)
	assert.InDelta(t, 3.0, totalCost(cost, pairs), 1e-9)
}

// TestSolve_BruteForce checks optimality against exhaustive search on small
// random matrices, including negated IoU-like costs.
func TestSolve_BruteForce(t *testing.T) {
	rng := rand.New(rand.NewPCG(42, 1024))

	for trial := 0; trial < 500; trial++ {
		r := 1 + rng.IntN(6)
		c := 1 + rng.IntN(6)
		data := make([]float64, r*c)
		for i := range data {
			switch trial % 3 {
			case 0:
				data[i] = rng.Float64() * 100
			case 1:
				data[i] = -rng.Float64()
			default:
				// Coarse integers produce many ties.
				data[i] = float64(rng.IntN(4))
			}
		}
		cost := mat.NewDense(r, c, data)

		pairs := Solve(cost)
		requireValidAssignment(t, cost, pairs)
		require.InDelta(t, bruteForce(cost), totalCost(cost, pairs), 1e-9,
			"trial %d: suboptimal assignment %v for\n%v", trial, pairs, mat.Formatted(cost))
	}
}

func BenchmarkSolve(b *testing.B) {
	for _, n := range []int{4, 16, 64} {
		rng := rand.New(rand.NewPCG(uint64(n), 7))
		data := make([]float64, n*n)
		for i := range data {
			data[i] = -rng.Float64()
		}
		cost := mat.NewDense(n, n, data)

		b.Run(fmt.Sprintf("%dx%d", n, n), func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				Solve(cost)
			}
		})
	}
}
