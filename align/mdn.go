// Package align implements the mixture-density alignment path used by the
// feed-forward duration-based architecture: Gaussian alignment potentials
// between encoder and decoder timesteps, the monotonic alignment search that
// extracts the best no-skip path, and the conversions between hard paths,
// per-character durations and attention matrices.
package align

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/ieee0824/tts-go/internal/mathutil"
	"github.com/ieee0824/tts-go/nnet"
)

// MDNNet predicts per-encoder-position Gaussian parameters (mean and
// log-std per feature) used as alignment potentials. A 1x1 convolution over
// the time axis is a per-position linear layer, so that is how it is built.
type MDNNet struct {
	FC1 *nnet.Linear // hidden → hidden
	FC2 *nnet.Linear // hidden → 2*outChannels

	Hidden      int
	OutChannels int
}

// NewMDNNet builds the mixture-density head. hidden is the encoder channel
// count, outChannels the target feature dimensionality.
func NewMDNNet(hidden, outChannels int, rng *rand.Rand) (*MDNNet, error) {
	if hidden <= 0 || outChannels <= 0 {
		return nil, fmt.Errorf("mdn dims must be positive, got hidden=%d out=%d", hidden, outChannels)
	}
	return &MDNNet{
		FC1:         nnet.NewLinear(hidden, hidden, rng),
		FC2:         nnet.NewLinear(hidden, 2*outChannels, rng),
		Hidden:      hidden,
		OutChannels: outChannels,
	}, nil
}

// Predict maps encoder hidden vectors (encLen × Hidden) to per-position
// Gaussian parameters: mu and logSigma, each (encLen × OutChannels).
func (n *MDNNet) Predict(enc mathutil.Mat) (mu, logSigma mathutil.Mat) {
	rows := len(enc)
	in := mathutil.Flatten(enc)

	hid := make([]float64, rows*n.Hidden)
	n.FC1.Forward(in, rows, hid)
	for i, v := range hid {
		if v < 0 {
			hid[i] = 0
		}
	}
	out := make([]float64, rows*2*n.OutChannels)
	n.FC2.Forward(hid, rows, out)

	mu = mathutil.NewMat(rows, n.OutChannels)
	logSigma = mathutil.NewMat(rows, n.OutChannels)
	for i := 0; i < rows; i++ {
		row := out[i*2*n.OutChannels : (i+1)*2*n.OutChannels]
		copy(mu[i], row[:n.OutChannels])
		copy(logSigma[i], row[n.OutChannels:])
	}
	return mu, logSigma
}

// LogProbMatrix computes the (encLen × decLen) Gaussian alignment
// potentials between predicted per-position parameters and target frames:
//
//	logp[i][t] = -0.5·mean_d((y[t][d]-mu[i][d])² / exp(2·ls[i][d])) - 0.5·mean_d(ls[i][d])
//
// y is (decLen × OutChannels).
func LogProbMatrix(mu, logSigma, y mathutil.Mat) (mathutil.Mat, error) {
	encLen := len(mu)
	decLen := len(y)
	if encLen == 0 || decLen == 0 {
		return nil, fmt.Errorf("empty inputs: encLen=%d decLen=%d", encLen, decLen)
	}
	d := len(mu[0])
	if len(logSigma) != encLen || len(y[0]) != d {
		return nil, fmt.Errorf("shape mismatch: mu %dx%d, logSigma %d rows, y dim %d",
			encLen, d, len(logSigma), len(y[0]))
	}

	logp := mathutil.NewMat(encLen, decLen)
	invD := 1.0 / float64(d)
	for i := 0; i < encLen; i++ {
		lsMean := 0.0
		invVar := make([]float64, d)
		for k := 0; k < d; k++ {
			lsMean += logSigma[i][k]
			invVar[k] = math.Exp(-2 * logSigma[i][k])
		}
		lsMean *= invD
		for t := 0; t < decLen; t++ {
			acc := 0.0
			for k := 0; k < d; k++ {
				diff := y[t][k] - mu[i][k]
				acc += diff * diff * invVar[k]
			}
			logp[i][t] = -0.5*acc*invD - 0.5*lsMean
		}
	}
	return logp, nil
}
