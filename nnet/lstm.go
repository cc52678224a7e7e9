package nnet

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas64"
)

// LSTMCell is a single-step LSTM memory cell. Weight rows are stacked in
// gate order input, forget, cell, output; WX is [4H × In], WH is [4H × H].
type LSTMCell struct {
	WX     []float64
	WH     []float64
	BX     []float64 // [4H]
	BH     []float64 // [4H]
	In     int
	Hidden int
}

// NewLSTMCell creates a cell with uniform(-k, k) initialization, k = 1/sqrt(H).
func NewLSTMCell(in, hidden int, rng *rand.Rand) *LSTMCell {
	c := &LSTMCell{
		WX:     make([]float64, 4*hidden*in),
		WH:     make([]float64, 4*hidden*hidden),
		BX:     make([]float64, 4*hidden),
		BH:     make([]float64, 4*hidden),
		In:     in,
		Hidden: hidden,
	}
	k := 1.0 / math.Sqrt(float64(hidden))
	uniformInit(c.WX, k, rng)
	uniformInit(c.WH, k, rng)
	uniformInit(c.BX, k, rng)
	uniformInit(c.BH, k, rng)
	return c
}

func uniformInit(w []float64, k float64, rng *rand.Rand) {
	for i := range w {
		var u float64
		if rng == nil {
			u = rand.Float64()
		} else {
			u = rng.Float64()
		}
		w[i] = (2*u - 1) * k
	}
}

// StepBatch advances the cell one timestep for a batch.
// x is flat [batch × In]; h and c are flat [batch × Hidden], updated in place.
func (l *LSTMCell) StepBatch(x, h, c []float64, batch int) {
	hd := l.Hidden
	gates := make([]float64, batch*4*hd)

	xg := blas64.General{Rows: batch, Cols: l.In, Stride: l.In, Data: x}
	hg := blas64.General{Rows: batch, Cols: hd, Stride: hd, Data: h}
	wx := blas64.General{Rows: 4 * hd, Cols: l.In, Stride: l.In, Data: l.WX}
	wh := blas64.General{Rows: 4 * hd, Cols: hd, Stride: hd, Data: l.WH}
	gg := blas64.General{Rows: batch, Cols: 4 * hd, Stride: 4 * hd, Data: gates}

	blas64.Gemm(blas.NoTrans, blas.Trans, 1, xg, wx, 0, gg)
	blas64.Gemm(blas.NoTrans, blas.Trans, 1, hg, wh, 1, gg)

	for b := 0; b < batch; b++ {
		goff := b * 4 * hd
		hoff := b * hd
		for j := 0; j < hd; j++ {
			i := sigmoid(gates[goff+j] + l.BX[j] + l.BH[j])
			f := sigmoid(gates[goff+hd+j] + l.BX[hd+j] + l.BH[hd+j])
			g := math.Tanh(gates[goff+2*hd+j] + l.BX[2*hd+j] + l.BH[2*hd+j])
			o := sigmoid(gates[goff+3*hd+j] + l.BX[3*hd+j] + l.BH[3*hd+j])

			cNew := f*c[hoff+j] + i*g
			c[hoff+j] = cNew
			h[hoff+j] = o * math.Tanh(cNew)
		}
	}
}

func sigmoid(x float64) float64 {
	if x >= 0 {
		return 1.0 / (1.0 + math.Exp(-x))
	}
	e := math.Exp(x)
	return e / (1.0 + e)
}
