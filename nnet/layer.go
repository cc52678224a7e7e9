// Package nnet provides the neural building blocks shared by the HMM
// alignment core and the mixture-density alignment path: fully-connected
// layers, the autoregressive prenet, an LSTM memory cell and the per-state
// parameter prediction network.
package nnet

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas64"
)

// Linear is a fully-connected layer computing y = x·Wᵀ + b.
// W is [Out × In] row-major, B is [Out].
type Linear struct {
	W   []float64
	B   []float64
	In  int
	Out int
}

// NewLinear creates a layer with Xavier-initialized weights and zero bias.
// rng may be nil, in which case the shared math/rand source is used.
func NewLinear(in, out int, rng *rand.Rand) *Linear {
	l := &Linear{
		W:   make([]float64, out*in),
		B:   make([]float64, out),
		In:  in,
		Out: out,
	}
	xavierInit(l.W, in, out, rng)
	return l
}

func xavierInit(w []float64, fanIn, fanOut int, rng *rand.Rand) {
	scale := math.Sqrt(2.0 / float64(fanIn+fanOut))
	for i := range w {
		w[i] = normFloat64(rng) * scale
	}
}

func normFloat64(rng *rand.Rand) float64 {
	if rng == nil {
		return rand.NormFloat64()
	}
	return rng.NormFloat64()
}

// Forward computes dst = x·Wᵀ + b for rows row-vectors of length In.
// x is flat [rows × In] row-major, dst flat [rows × Out].
func (l *Linear) Forward(x []float64, rows int, dst []float64) {
	a := blas64.General{Rows: rows, Cols: l.In, Stride: l.In, Data: x}
	w := blas64.General{Rows: l.Out, Cols: l.In, Stride: l.In, Data: l.W}
	c := blas64.General{Rows: rows, Cols: l.Out, Stride: l.Out, Data: dst}
	blas64.Gemm(blas.NoTrans, blas.Trans, 1, a, w, 0, c)
	for i := 0; i < rows; i++ {
		off := i * l.Out
		for j, bj := range l.B {
			dst[off+j] += bj
		}
	}
}

// ForwardVec computes dst = W·x + b for a single input vector.
func (l *Linear) ForwardVec(x, dst []float64) {
	w := blas64.General{Rows: l.Out, Cols: l.In, Stride: l.In, Data: l.W}
	xv := blas64.Vector{N: l.In, Inc: 1, Data: x}
	dv := blas64.Vector{N: l.Out, Inc: 1, Data: dst}
	blas64.Gemv(blas.NoTrans, 1, w, xv, 0, dv)
	for j, bj := range l.B {
		dst[j] += bj
	}
}

// ZeroWeights sets all weights to zero, leaving the bias untouched.
// Used for flat-start initialization of output layers.
func (l *Linear) ZeroWeights() {
	for i := range l.W {
		l.W[i] = 0
	}
}

// reluInPlace applies max(0, v) elementwise.
func reluInPlace(z []float64) {
	for i, v := range z {
		if v < 0 {
			z[i] = 0
		}
	}
}
