package hmm

import (
	"math"
	"math/rand"

	"github.com/ieee0824/tts-go/internal/mathutil"
)

const logTwoPi = 1.8378770664093453 // log(2π)

// EmissionModel scores observations against per-state diagonal Gaussians.
// It carries no learned state; the parameters arrive fresh every timestep
// from the output net.
type EmissionModel struct{}

// LogLikelihood computes, for each batch item and state, the log density of
// the observation under that state's Gaussian, summed across feature
// dimensions. States at or beyond stateLens[b] contribute exactly zero; the
// transition step is responsible for masking them to log-zero.
//
//	x:       (batch × frameChannels) observation at the current timestep
//	means:   [batch][numStates][frameChannels]
//	stds:    [batch][numStates][frameChannels]
//	stateLens: per-item valid state counts
//
// Returns a (batch × numStates) matrix.
func (EmissionModel) LogLikelihood(x mathutil.Mat, means, stds [][][]float64, stateLens []int) mathutil.Mat {
	batch := len(x)
	numStates := 0
	if batch > 0 {
		numStates = len(means[0])
	}
	out := mathutil.NewMat(batch, numStates)
	for b := 0; b < batch; b++ {
		for j := 0; j < stateLens[b]; j++ {
			mean := means[b][j]
			std := stds[b][j]
			ll := 0.0
			for d, xd := range x[b] {
				z := (xd - mean[d]) / std[d]
				ll += -0.5*z*z - math.Log(std[d]) - 0.5*logTwoPi
			}
			out[b][j] = ll
		}
	}
	return out
}

// Sample draws one observation from a per-dimension Gaussian. A temperature
// of zero returns the mean; otherwise the standard deviations are scaled by
// the temperature before the draw. rng may be nil for the shared source.
func (EmissionModel) Sample(mean, std []float64, temp float64, rng *rand.Rand) []float64 {
	out := make([]float64, len(mean))
	if temp <= 0 {
		copy(out, mean)
		return out
	}
	for d := range mean {
		var z float64
		if rng == nil {
			z = rand.NormFloat64()
		} else {
			z = rng.NormFloat64()
		}
		out[d] = mean[d] + std[d]*temp*z
	}
	return out
}
