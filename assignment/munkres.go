// Package assignment solves the rectangular minimum-cost assignment problem
// with the Munkres (Hungarian) algorithm.
//
// The solver is used by the tracker to pair detections with predicted tracks
// but has no knowledge of either: it operates on a dense cost matrix only.
package assignment

import (
	"cmp"
	"math"
	"slices"

	"gonum.org/v1/gonum/mat"
)

const (
	// zeroTolerance is the absolute tolerance under which a reduced cost is
	// treated as a zero.
	zeroTolerance = 1e-12
	// forbiddenCost stands in for +Inf and NaN entries.
	forbiddenCost = 1e18
)

// Pair is one (row, column) element of an assignment.
type Pair struct {
	Row int
	Col int
}

// reduced is the working copy of the cost matrix. rows <= cols always holds;
// taller inputs are transposed before solving.
type reduced struct {
	rows, cols int
	cost       []float64 // row-major
}

func (m *reduced) at(r, c int) float64 {
	return m.cost[r*m.cols+c]
}

func (m *reduced) isZero(r, c int) bool {
	return math.Abs(m.cost[r*m.cols+c]) < zeroTolerance
}

// marks holds the star/prime markers and line covers. It never aliases the
// cost buffer.
type marks struct {
	starInRow  []int // column of the starred zero in each row, -1 if none
	starInCol  []int // row of the starred zero in each column, -1 if none
	primeInRow []int // column of the primed zero in each row, -1 if none
	rowCovered []bool
	colCovered []bool
}

func newMarks(rows, cols int) *marks {
	mk := &marks{
		starInRow:  make([]int, rows),
		starInCol:  make([]int, cols),
		primeInRow: make([]int, rows),
		rowCovered: make([]bool, rows),
		colCovered: make([]bool, cols),
	}
	fill(mk.starInRow, -1)
	fill(mk.starInCol, -1)
	fill(mk.primeInRow, -1)
	return mk
}

// Solve returns a minimum-cost assignment for the cost matrix.
//
// The matrix may be rectangular; exactly min(rows, cols) pairs are returned,
// each row and each column used at most once. Pairs are ordered by row.
// NaN and +Inf costs are read as forbiddenCost, -Inf as -forbiddenCost.
//
// Arguments:
//   - cost: An R×C cost matrix (minimization).
//
// Returns:
//   - []Pair: The optimal assignment, nil for an empty matrix.
func Solve(cost mat.Matrix) []Pair {
	r, c := cost.Dims()
	if r == 0 || c == 0 {
		return nil
	}

	transposed := r > c
	m := load(cost, transposed)
	mk := newMarks(m.rows, m.cols)

	reduceRows(m)
	starZeros(m, mk)
	for !coverStarredColumns(mk, m.rows) {
		row, col := primeUncoveredZero(m, mk)
		augment(mk, row, col)
	}

	pairs := make([]Pair, 0, m.rows)
	for row, col := range mk.starInRow {
		if col < 0 {
			continue
		}
		if transposed {
			pairs = append(pairs, Pair{Row: col, Col: row})
		} else {
			pairs = append(pairs, Pair{Row: row, Col: col})
		}
	}
	if transposed {
		slices.SortFunc(pairs, func(a, b Pair) int { return cmp.Compare(a.Row, b.Row) })
	}
	return pairs
}

// load copies cost into a fresh row-major buffer, transposing it when the
// input has more rows than columns.
func load(cost mat.Matrix, transpose bool) *reduced {
	r, c := cost.Dims()
	if transpose {
		m := &reduced{rows: c, cols: r, cost: make([]float64, r*c)}
		for i := 0; i < r; i++ {
			for j := 0; j < c; j++ {
				m.cost[j*r+i] = finite(cost.At(i, j))
			}
		}
		return m
	}
	m := &reduced{rows: r, cols: c, cost: make([]float64, r*c)}
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			m.cost[i*c+j] = finite(cost.At(i, j))
		}
	}
	return m
}

func finite(v float64) float64 {
	switch {
	case math.IsNaN(v), math.IsInf(v, 1):
		return forbiddenCost
	case math.IsInf(v, -1):
		return -forbiddenCost
	}
	return v
}

// reduceRows subtracts each row's minimum from that row.
func reduceRows(m *reduced) {
	for r := 0; r < m.rows; r++ {
		row := m.cost[r*m.cols : (r+1)*m.cols]
		lo := row[0]
		for _, v := range row[1:] {
			if v < lo {
				lo = v
			}
		}
		for c := range row {
			row[c] -= lo
		}
	}
}

// starZeros greedily stars the first zero in each row whose column has no
// star yet.
func starZeros(m *reduced, mk *marks) {
	for r := 0; r < m.rows; r++ {
		for c := 0; c < m.cols; c++ {
			if mk.starInCol[c] >= 0 || !m.isZero(r, c) {
				continue
			}
			mk.starInRow[r] = c
			mk.starInCol[c] = r
			break
		}
	}
}

// coverStarredColumns clears all covers, covers every column holding a star
// and reports whether the assignment is complete.
func coverStarredColumns(mk *marks, want int) bool {
	fill(mk.rowCovered, false)
	covered := 0
	for c, r := range mk.starInCol {
		mk.colCovered[c] = r >= 0
		if r >= 0 {
			covered++
		}
	}
	return covered >= want
}

// primeUncoveredZero primes uncovered zeros until it finds one with no star
// in its row, adjusting the matrix whenever no uncovered zero is left. It
// returns the position of that prime, the seed of the augmenting path.
func primeUncoveredZero(m *reduced, mk *marks) (int, int) {
	for {
		row, col, ok := findUncoveredZero(m, mk)
		if !ok {
			adjust(m, mk)
			continue
		}

		mk.primeInRow[row] = col
		starCol := mk.starInRow[row]
		if starCol < 0 {
			return row, col
		}
		mk.rowCovered[row] = true
		mk.colCovered[starCol] = false
	}
}

func findUncoveredZero(m *reduced, mk *marks) (int, int, bool) {
	for c := 0; c < m.cols; c++ {
		if mk.colCovered[c] {
			continue
		}
		for r := 0; r < m.rows; r++ {
			if !mk.rowCovered[r] && m.isZero(r, c) {
				return r, c, true
			}
		}
	}
	return -1, -1, false
}

// adjust adds the smallest uncovered value to every covered row and
// subtracts it from every uncovered column. This creates a new uncovered zero
// without disturbing starred or primed zeros.
func adjust(m *reduced, mk *marks) {
	lo := math.Inf(1)
	for r := 0; r < m.rows; r++ {
		if mk.rowCovered[r] {
			continue
		}
		for c := 0; c < m.cols; c++ {
			if !mk.colCovered[c] && m.at(r, c) < lo {
				lo = m.at(r, c)
			}
		}
	}

	for r := 0; r < m.rows; r++ {
		for c := 0; c < m.cols; c++ {
			i := r*m.cols + c
			if mk.rowCovered[r] {
				m.cost[i] += lo
			}
			if !mk.colCovered[c] {
				m.cost[i] -= lo
			}
		}
	}
}

// augment walks the alternating path of primes and stars starting at the
// primed zero (row, col), stars every prime on it, unstars every star on it
// and erases the remaining primes.
func augment(mk *marks, row, col int) {
	type cell struct{ r, c int }
	path := []cell{{row, col}}
	for {
		starRow := mk.starInCol[path[len(path)-1].c]
		if starRow < 0 {
			break
		}
		c := path[len(path)-1].c
		path = append(path, cell{starRow, c})
		path = append(path, cell{starRow, mk.primeInRow[starRow]})
	}

	// Odd positions are stars: release them first so the primes can claim
	// their columns.
	for i := 1; i < len(path); i += 2 {
		p := path[i]
		mk.starInRow[p.r] = -1
		mk.starInCol[p.c] = -1
	}
	for i := 0; i < len(path); i += 2 {
		p := path[i]
		mk.starInRow[p.r] = p.c
		mk.starInCol[p.c] = p.r
	}

	fill(mk.primeInRow, -1)
}

func fill[T any](s []T, v T) {
	for i := range s {
		s[i] = v
	}
}
