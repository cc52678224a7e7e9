package nnet

import (
	"fmt"
	"math"
	"math/rand"
)

// Prenet types. The original prenet keeps inverted dropout active, the
// batch-norm variant trades dropout for normalization with running stats.
const (
	PrenetOriginal = "original"
	PrenetBN       = "bn"
)

// batchNormEps is the epsilon for numerical stability in batch normalization.
const batchNormEps = 1e-5

// BatchNorm holds inference-time batch normalization parameters for one layer.
type BatchNorm struct {
	Gamma       []float64 // learnable scale [Dim]
	Beta        []float64 // learnable shift [Dim]
	RunningMean []float64 // EMA mean [Dim]
	RunningVar  []float64 // EMA variance [Dim]
	Dim         int
}

// NewBatchNorm creates identity batch-norm parameters (gamma=1, var=1).
func NewBatchNorm(dim int) *BatchNorm {
	bn := &BatchNorm{
		Gamma:       make([]float64, dim),
		Beta:        make([]float64, dim),
		RunningMean: make([]float64, dim),
		RunningVar:  make([]float64, dim),
		Dim:         dim,
	}
	for i := 0; i < dim; i++ {
		bn.Gamma[i] = 1.0
		bn.RunningVar[i] = 1.0
	}
	return bn
}

// apply normalizes z (flat rows×Dim) in place using running statistics,
// fusing scale and shift per feature.
func (bn *BatchNorm) apply(z []float64, rows int) {
	cols := bn.Dim
	scale := make([]float64, cols)
	shift := make([]float64, cols)
	for j := 0; j < cols; j++ {
		invStd := 1.0 / math.Sqrt(bn.RunningVar[j]+batchNormEps)
		scale[j] = bn.Gamma[j] * invStd
		shift[j] = bn.Beta[j] - bn.Gamma[j]*invStd*bn.RunningMean[j]
	}
	for i := 0; i < rows; i++ {
		off := i * cols
		for j := 0; j < cols; j++ {
			z[off+j] = z[off+j]*scale[j] + shift[j]
		}
	}
}

// Prenet is the small feed-forward network applied to the autoregressive
// frame window before the memory cell. Two hidden layers, ReLU activations.
// With the original type, inverted dropout runs during training and, when
// DropoutAtInference is set, during sampling as well.
type Prenet struct {
	Layers             []*Linear
	BN                 []*BatchNorm // non-nil only for the bn type
	Type               string
	Dropout            float64
	DropoutAtInference bool
}

// NewPrenet builds a prenet of the given type mapping in → dim → dim.
func NewPrenet(prenetType string, in, dim int, dropout float64, dropoutAtInference bool, rng *rand.Rand) (*Prenet, error) {
	if prenetType != PrenetOriginal && prenetType != PrenetBN {
		return nil, fmt.Errorf("unknown prenet type %q", prenetType)
	}
	p := &Prenet{
		Layers:             []*Linear{NewLinear(in, dim, rng), NewLinear(dim, dim, rng)},
		Type:               prenetType,
		Dropout:            dropout,
		DropoutAtInference: dropoutAtInference,
	}
	if prenetType == PrenetBN {
		p.BN = []*BatchNorm{NewBatchNorm(dim), NewBatchNorm(dim)}
	}
	return p, nil
}

// OutDim returns the output feature dimension.
func (p *Prenet) OutDim() int {
	return p.Layers[len(p.Layers)-1].Out
}

// Forward runs rows input vectors (flat [rows × In]) through the prenet and
// returns a fresh flat [rows × OutDim] activation slice. rng is consulted
// only when dropout is active for this pass.
func (p *Prenet) Forward(x []float64, rows int, training bool, rng *rand.Rand) []float64 {
	act := x
	for i, layer := range p.Layers {
		out := make([]float64, rows*layer.Out)
		layer.Forward(act, rows, out)
		if p.BN != nil {
			p.BN[i].apply(out, rows)
		}
		reluInPlace(out)
		if p.Type == PrenetOriginal && p.Dropout > 0 && (training || p.DropoutAtInference) {
			applyDropout(out, p.Dropout, rng)
		}
		act = out
	}
	return act
}

// applyDropout applies inverted dropout in place.
func applyDropout(z []float64, rate float64, rng *rand.Rand) {
	keep := 1.0 - rate
	inv := 1.0 / keep
	for i := range z {
		var u float64
		if rng == nil {
			u = rand.Float64()
		} else {
			u = rng.Float64()
		}
		if u < rate {
			z[i] = 0
		} else {
			z[i] *= inv
		}
	}
}
