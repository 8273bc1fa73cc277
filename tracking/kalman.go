package tracking

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

const (
	stateDim = 7 // [u, v, s, r, du, dv, ds]
	measDim  = 4 // [u, v, s, r]
)

// Model matrices shared by every track. They are never written after init.
var (
	// transition is the constant-velocity, constant-aspect-ratio model.
	transition = mat.NewDense(stateDim, stateDim, []float64{
		1, 0, 0, 0, 1, 0, 0,
		0, 1, 0, 0, 0, 1, 0,
		0, 0, 1, 0, 0, 0, 1,
		0, 0, 0, 1, 0, 0, 0,
		0, 0, 0, 0, 1, 0, 0,
		0, 0, 0, 0, 0, 1, 0,
		0, 0, 0, 0, 0, 0, 1,
	})

	// observation extracts [u, v, s, r] from the state.
	observation = mat.NewDense(measDim, stateDim, []float64{
		1, 0, 0, 0, 0, 0, 0,
		0, 1, 0, 0, 0, 0, 0,
		0, 0, 1, 0, 0, 0, 0,
		0, 0, 0, 1, 0, 0, 0,
	})

	measurementNoise = mat.NewDiagDense(measDim, []float64{1, 1, 10, 10})

	processNoise = mat.NewDiagDense(stateDim, []float64{1, 1, 1, 1, 0.01, 0.01, 0.0001})

	initialCovariance = []float64{10, 10, 10, 10, 10000, 10000, 10000}

	identity7 = mat.NewDiagDense(stateDim, []float64{1, 1, 1, 1, 1, 1, 1})
)

// kalman holds one track's state estimate and its error covariance.
type kalman struct {
	x *mat.VecDense // state, stateDim
	p *mat.Dense    // covariance, stateDim×stateDim
}

func newKalman(u, v, s, r float64) kalman {
	p := mat.NewDense(stateDim, stateDim, nil)
	for i, d := range initialCovariance {
		p.Set(i, i, d)
	}
	return kalman{
		x: mat.NewVecDense(stateDim, []float64{u, v, s, r, 0, 0, 0}),
		p: p,
	}
}

// predict advances the state one frame: x = F·x, P = F·P·Fᵗ + Q.
//
// A scale velocity that would drive the area to zero or below is cleared
// first; a negative area cannot be converted back to a box.
func (k *kalman) predict() {
	if k.x.AtVec(6)+k.x.AtVec(2) <= 0 {
		k.x.SetVec(6, 0)
	}

	var x mat.VecDense
	x.MulVec(transition, k.x)
	k.x = &x

	var fp, fpft mat.Dense
	fp.Mul(transition, k.p)
	fpft.Mul(&fp, transition.T())

	var p mat.Dense
	p.Add(&fpft, processNoise)
	k.p = &p
}

// update corrects the state with an observation z = [u, v, s, r].
//
// The innovation covariance R + H·P·Hᵗ is inverted through its SVD so that a
// near-singular covariance degrades the gain instead of blowing it up.
func (k *kalman) update(z *mat.VecDense) {
	var hx, e mat.VecDense
	hx.MulVec(observation, k.x)
	e.SubVec(z, &hx)

	var hp, hpht, s mat.Dense
	hp.Mul(observation, k.p)
	hpht.Mul(&hp, observation.T())
	s.Add(measurementNoise, &hpht)

	var pht, gain mat.Dense
	pht.Mul(k.p, observation.T())
	gain.Mul(&pht, pseudoInverse(&s))

	var ke, x mat.VecDense
	ke.MulVec(&gain, &e)
	x.AddVec(k.x, &ke)
	k.x = &x

	var kh, ikh, p mat.Dense
	kh.Mul(&gain, observation)
	ikh.Sub(identity7, &kh)
	p.Mul(&ikh, k.p)
	k.p = &p
}

// pseudoInverse returns the Moore-Penrose inverse of a square matrix computed
// from its singular value decomposition. Singular values below
// n·σmax·ε are treated as zero. If the factorization fails (for example on
// NaN input) the zero matrix is returned, which leaves the state unchanged.
func pseudoInverse(a mat.Matrix) *mat.Dense {
	r, c := a.Dims()

	var svd mat.SVD
	if !svd.Factorize(a, mat.SVDThin) {
		return mat.NewDense(c, r, nil)
	}

	values := svd.Values(nil)
	tol := float64(max(r, c)) * values[0] * eps
	inv := make([]float64, len(values))
	for i, sv := range values {
		if sv > tol {
			inv[i] = 1 / sv
		}
	}

	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)

	var vs, out mat.Dense
	vs.Mul(&v, mat.NewDiagDense(len(inv), inv))
	out.Mul(&vs, u.T())
	return &out
}

// eps is the float64 machine epsilon.
var eps = math.Nextafter(1, 2) - 1
