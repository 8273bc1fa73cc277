package assignment

import "gonum.org/v1/gonum/mat"

// Indicator thresholds a similarity matrix into a 0/1 matrix: an element is 1
// when its similarity is at least threshold.
func Indicator(similarity mat.Matrix, threshold float64) *mat.Dense {
	r, c := similarity.Dims()
	if r == 0 || c == 0 {
		return &mat.Dense{}
	}
	flags := mat.NewDense(r, c, nil)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			if similarity.At(i, j) >= threshold {
				flags.Set(i, j, 1)
			}
		}
	}
	return flags
}

// UniqueMatches returns the above-threshold elements of a similarity matrix
// when they already form an assignment, that is when no row and no column
// holds more than one of them. The second result is false otherwise, and the
// caller must run the full solver.
func UniqueMatches(similarity mat.Matrix, threshold float64) ([]Pair, bool) {
	flags := Indicator(similarity, threshold)
	r, c := flags.Dims()

	colSums := make([]float64, c)
	var pairs []Pair
	for i := 0; i < r; i++ {
		row := flags.RawRowView(i)
		var rowSum float64
		for j, v := range row {
			rowSum += v
			colSums[j] += v
			if v == 1 {
				pairs = append(pairs, Pair{Row: i, Col: j})
			}
		}
		if rowSum > 1 {
			return nil, false
		}
	}
	for _, s := range colSums {
		if s > 1 {
			return nil, false
		}
	}
	return pairs, true
}

// Match pairs rows with columns of a similarity matrix (higher is better).
//
// When the thresholded matrix is already a unique assignment it is taken
// directly. Otherwise the similarity is negated into a cost, solved with
// Solve, and pairs whose similarity falls below threshold are dropped.
//
// Arguments:
//   - similarity: An R×C similarity matrix, e.g. detection×track IoU.
//   - threshold: Minimum similarity of an accepted pair.
//
// Returns:
//   - []Pair: Accepted pairs ordered by row. Nil when either dimension is zero.
func Match(similarity mat.Matrix, threshold float64) []Pair {
	r, c := similarity.Dims()
	if r == 0 || c == 0 {
		return nil
	}

	if pairs, ok := UniqueMatches(similarity, threshold); ok {
		return pairs
	}

	var cost mat.Dense
	cost.Scale(-1, similarity)

	solved := Solve(&cost)
	pairs := solved[:0]
	for _, p := range solved {
		if similarity.At(p.Row, p.Col) >= threshold {
			pairs = append(pairs, p)
		}
	}
	return pairs
}
