package hmm

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ieee0824/tts-go/internal/mathutil"
)

// testConfig returns a small configuration for closed-form checks. The
// flat-start initialization zeroes the output layer weights, so every state
// predicts exactly the flat-start mean, std and transition probability.
func testConfig(frameChannels, arOrder int) Config {
	return Config{
		FrameChannels:           frameChannels,
		AROrder:                 arOrder,
		EncoderDim:              4,
		PrenetType:              "original",
		PrenetDim:               8,
		PrenetDropout:           0,
		MemoryRNNDim:            6,
		ParameterNetwork:        []int{8},
		FlatStart:               FlatStartParams{Mean: 0, Std: 1, TransitionP: 0.3},
		StdFloor:                0.001,
		SamplingTemp:            0,
		DeterministicTransition: true,
		DurationThreshold:       0.5,
		MaxSamplingTime:         100,
	}
}

func newTestModel(t *testing.T, cfg Config, seed int64) *NeuralHMM {
	t.Helper()
	m, err := New(cfg, WithRand(rand.New(rand.NewSource(seed))))
	require.NoError(t, err)
	return m
}

// padEnc builds padded encoder outputs: [batch][numStates][encoderDim].
func padEnc(batch, numStates, dim int) [][][]float64 {
	enc := make([][][]float64, batch)
	for b := range enc {
		enc[b] = make([][]float64, numStates)
		for j := range enc[b] {
			enc[b][j] = make([]float64, dim)
			for d := range enc[b][j] {
				enc[b][j][d] = float64(j) * 0.1
			}
		}
	}
	return enc
}

func constMels(batch, T, dim int, val float64) [][][]float64 {
	mels := make([][][]float64, batch)
	for b := range mels {
		mels[b] = make([][]float64, T)
		for t := range mels[b] {
			mels[b][t] = make([]float64, dim)
			for d := range mels[b][t] {
				mels[b][t][d] = val
			}
		}
	}
	return mels
}

func TestForwardSingleStepClosedForm(t *testing.T) {
	// One item, one frame, one valid state: the log probability must equal
	// the single Gaussian log likelihood plus the absorption term.
	cfg := testConfig(2, 1)
	m := newTestModel(t, cfg, 1)

	enc := padEnc(1, 1, cfg.EncoderDim)
	mels := [][][]float64{{{0.7, -0.4}}}

	logProbs, diag, err := m.Forward(enc, []int{1}, mels, []int{1}, ForwardOptions{})
	require.NoError(t, err)
	require.Len(t, logProbs, 1)

	mean := []float64{cfg.FlatStart.Mean, cfg.FlatStart.Mean}
	std := []float64{cfg.FlatStart.Std, cfg.FlatStart.Std}
	want := gaussLL(mels[0][0], mean, std) + mathutil.LogClamped(cfg.FlatStart.TransitionP)
	assert.InDelta(t, want, logProbs[0], 1e-9)

	// With a single state the scaled alpha is certainty.
	assert.InDelta(t, 0.0, diag.LogAlphaScaled[0][0][0], 1e-12)
}

func TestForwardEndToEndFixedWeights(t *testing.T) {
	// Scenario: batch 1, encoder length 3, 3 states, target length 4,
	// ar_order 1, 2 feature channels, all-ones target, flat-start weights.
	cfg := testConfig(2, 1)
	m := newTestModel(t, cfg, 2)

	enc := padEnc(1, 3, cfg.EncoderDim)
	mels := constMels(1, 4, 2, 1.0)

	logProbs, diag, err := m.Forward(enc, []int{3}, mels, []int{4}, ForwardOptions{})
	require.NoError(t, err)

	assert.False(t, math.IsNaN(logProbs[0]))
	assert.False(t, math.IsInf(logProbs[0], 0))
	assert.Greater(t, logProbs[0], mathutil.LogZero/2)

	// The absorption gather targets the last valid state, index 2, and with
	// target length ≥ encoder length it must hold probability mass.
	lastAlpha := diag.LogAlphaScaled[3][0]
	assert.Greater(t, lastAlpha[2], mathutil.LogZero/2)
}

func TestForwardMaskingInvariant(t *testing.T) {
	cfg := testConfig(2, 2)
	m := newTestModel(t, cfg, 3)

	enc := padEnc(2, 3, cfg.EncoderDim)
	mels := constMels(2, 6, 2, 0.5)
	melLens := []int{6, 3}

	_, diag, err := m.Forward(enc, []int{3, 2}, mels, melLens, ForwardOptions{})
	require.NoError(t, err)

	for b, ln := range melLens {
		for tt := ln; tt < 6; tt++ {
			assert.Zero(t, diag.LogC[b][tt], "logC item %d t %d", b, tt)
			for j := 0; j < 3; j++ {
				assert.Zero(t, diag.LogAlphaScaled[tt][b][j], "alpha item %d t %d state %d", b, tt, j)
			}
		}
		for tt := 0; tt < ln; tt++ {
			assert.NotZero(t, diag.LogC[b][tt], "valid logC must survive masking, item %d t %d", b, tt)
		}
	}
}

func TestForwardScaledAlphaNormalized(t *testing.T) {
	cfg := testConfig(2, 1)
	m := newTestModel(t, cfg, 4)

	enc := padEnc(1, 3, cfg.EncoderDim)
	mels := constMels(1, 5, 2, 0.2)

	_, diag, err := m.Forward(enc, []int{3}, mels, []int{5}, ForwardOptions{})
	require.NoError(t, err)

	// Each valid scaled row is a normalized distribution: logsumexp == 0.
	for tt := 0; tt < 5; tt++ {
		sum := 0.0
		for j := 0; j < 3; j++ {
			sum += math.Exp(diag.LogAlphaScaled[tt][0][j])
		}
		assert.InDelta(t, 1.0, sum, 1e-9, "t=%d", tt)
	}
}

func TestForwardStabilityClampMatchesUnclamped(t *testing.T) {
	cfg := testConfig(2, 1)
	m := newTestModel(t, cfg, 5)

	enc := padEnc(1, 2, cfg.EncoderDim)
	mels := constMels(1, 4, 2, 1.0)

	plain, _, err := m.Forward(enc, []int{2}, mels, []int{4}, ForwardOptions{})
	require.NoError(t, err)
	clamped, _, err := m.Forward(enc, []int{2}, mels, []int{4}, ForwardOptions{StabilityClamp: true})
	require.NoError(t, err)

	// On a healthy batch the clamp only lifts the padded log-zero entries,
	// which are negligible in the log-sum-exp.
	assert.InDelta(t, plain[0], clamped[0], 1e-9)
}

func TestForwardRetainParameters(t *testing.T) {
	cfg := testConfig(2, 1)
	m := newTestModel(t, cfg, 6)

	enc := padEnc(1, 2, cfg.EncoderDim)
	mels := constMels(1, 3, 2, 0.0)

	_, diag, err := m.Forward(enc, []int{2}, mels, []int{3}, ForwardOptions{RetainParameters: true})
	require.NoError(t, err)
	require.Len(t, diag.Means, 3)
	assert.InDelta(t, cfg.FlatStart.Mean, diag.Means[0][0][0][0], 1e-12)

	_, diag, err = m.Forward(enc, []int{2}, mels, []int{3}, ForwardOptions{})
	require.NoError(t, err)
	assert.Nil(t, diag.Means)
}

func TestForwardShapeErrors(t *testing.T) {
	cfg := testConfig(2, 1)
	m := newTestModel(t, cfg, 7)

	enc := padEnc(1, 2, cfg.EncoderDim)
	mels := constMels(1, 3, 2, 0)

	_, _, err := m.Forward(enc, []int{2}, mels, []int{9}, ForwardOptions{})
	require.Error(t, err)

	_, _, err = m.Forward(enc, []int{5}, mels, []int{3}, ForwardOptions{})
	require.Error(t, err)

	_, _, err = m.Forward(enc, []int{2, 2}, mels, []int{3}, ForwardOptions{})
	require.Error(t, err)
}
