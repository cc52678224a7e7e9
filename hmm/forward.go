package hmm

import (
	"fmt"

	"gonum.org/v1/gonum/floats"

	"github.com/ieee0824/tts-go/internal/mathutil"
)

// ForwardOptions control one call of the forward algorithm.
type ForwardOptions struct {
	// Training enables prenet dropout.
	Training bool
	// RetainParameters stores per-timestep predicted means in the
	// diagnostics. Off, the engine keeps only what the recursion needs and
	// parameters can be recomputed on demand (OutputNet.Predict is pure);
	// this is the memory/recompute trade-off policy.
	RetainParameters bool
	// StabilityClamp floors the absorption-state terms before the final
	// log-sum-exp. Opt-in: reduced-precision callers that would otherwise
	// underflow to NaN can enable it.
	StabilityClamp bool
}

// Diagnostics exposes the forward variables for plotting and testing.
// All tensors are time-major: index [t] yields a (batch × numStates) or
// (batch) slice for that timestep. Entries at timesteps at or beyond an
// item's valid length are zeroed.
type Diagnostics struct {
	// LogAlphaScaled[t] is the scaled forward variable after timestep t.
	LogAlphaScaled []mathutil.Mat
	// TransitionLogits[t] is the raw transition vector at timestep t.
	TransitionLogits []mathutil.Mat
	// LogC is the (batch × T) per-timestep scaling constant.
	LogC mathutil.Mat
	// Means[t] is retained only when ForwardOptions.RetainParameters is set.
	Means [][][][]float64
}

// stepState threads the sequential recursion state through the timestep
// loop: the memory-cell hidden/cell pair and the previous scaled alpha row.
type stepState struct {
	h, c      []float64    // flat (batch × memoryDim)
	prevAlpha mathutil.Mat // (batch × numStates), scaled
}

// Forward runs the scaled log-space forward algorithm over a batch and
// returns the per-item sequence log-probability, the training loss surrogate
// (callers negate it for a minimization criterion).
//
//	encOut:  [batch][numStates][encoderDim] encoder outputs, state-major
//	encLens: per-item valid state counts
//	mels:    [batch][T][frameChannels] target frames, teacher forcing
//	melLens: per-item valid frame counts
//
// A degenerate batch item with no valid path yields a log-probability near
// mathutil.LogZero rather than an error; the caller sees it in the loss.
func (m *NeuralHMM) Forward(encOut [][][]float64, encLens []int, mels [][][]float64, melLens []int, opts ForwardOptions) ([]float64, *Diagnostics, error) {
	batch := len(encOut)
	if batch == 0 || len(encLens) != batch || len(mels) != batch || len(melLens) != batch {
		return nil, nil, fmt.Errorf("batch size mismatch: enc=%d encLens=%d mels=%d melLens=%d",
			len(encOut), len(encLens), len(mels), len(melLens))
	}
	numStates := len(encOut[0])
	tMax := 0
	for b := 0; b < batch; b++ {
		if len(encOut[b]) != numStates {
			return nil, nil, fmt.Errorf("item %d: encoder outputs not padded to %d states", b, numStates)
		}
		if encLens[b] <= 0 || encLens[b] > numStates {
			return nil, nil, fmt.Errorf("item %d: encoder length %d out of range (1..%d)", b, encLens[b], numStates)
		}
		if melLens[b] <= 0 || melLens[b] > len(mels[b]) {
			return nil, nil, fmt.Errorf("item %d: mel length %d out of range (1..%d)", b, melLens[b], len(mels[b]))
		}
		if melLens[b] > tMax {
			tMax = melLens[b]
		}
	}

	diag := &Diagnostics{
		LogAlphaScaled:   make([]mathutil.Mat, tMax),
		TransitionLogits: make([]mathutil.Mat, tMax),
		LogC:             mathutil.NewMat(batch, tMax),
	}

	st := stepState{
		h: make([]float64, batch*m.cfg.MemoryRNNDim),
		c: make([]float64, batch*m.cfg.MemoryRNNDim),
	}

	d := m.cfg.FrameChannels
	arWindow := make([]float64, batch*m.cfg.AROrder*d)

	for t := 0; t < tMax; t++ {
		m.fillARWindow(arWindow, mels, t)

		prenetOut := m.Prenet.Forward(arWindow, batch, opts.Training, m.rng)
		m.Memory.StepBatch(prenetOut, st.h, st.c, batch)

		means, stds, logits := m.Output.Predict(st.h, encOut, batch, numStates)

		frame := frameAt(mels, melLens, t, d)
		emis := m.emission.LogLikelihood(frame, means, stds, encLens)

		var raw mathutil.Mat
		if t == 0 {
			// Certainty of starting in state 0.
			raw = mathutil.NewMatFill(batch, numStates, mathutil.LogZero)
			for b := 0; b < batch; b++ {
				raw[b][0] = emis[b][0]
			}
		} else {
			trans := m.transition.Forward(st.prevAlpha, logits, encLens)
			raw = trans
			for b := 0; b < batch; b++ {
				for j := 0; j < encLens[b]; j++ {
					raw[b][j] += emis[b][j]
				}
			}
		}

		alpha := mathutil.NewMat(batch, numStates)
		for b := 0; b < batch; b++ {
			lc := floats.LogSumExp(raw[b])
			diag.LogC[b][t] = lc
			for j := 0; j < numStates; j++ {
				alpha[b][j] = raw[b][j] - lc
			}
		}

		diag.LogAlphaScaled[t] = alpha
		diag.TransitionLogits[t] = logits
		if opts.RetainParameters {
			diag.Means = append(diag.Means, means)
		}
		st.prevAlpha = alpha
	}

	m.maskLengths(diag, melLens, tMax)

	logProbs := make([]float64, batch)
	for b := 0; b < batch; b++ {
		sumLogC := 0.0
		for t := 0; t < melLens[b]; t++ {
			sumLogC += diag.LogC[b][t]
		}
		logProbs[b] = sumLogC + m.absorptionScalingFactor(diag, b, melLens[b], encLens[b], numStates, opts.StabilityClamp)
	}
	return logProbs, diag, nil
}

// fillARWindow builds the flattened autoregressive input window at timestep
// t: the last AROrder target frames, zero go-token padded for t < AROrder.
func (m *NeuralHMM) fillARWindow(dst []float64, mels [][][]float64, t int) {
	d := m.cfg.FrameChannels
	order := m.cfg.AROrder
	for b := range mels {
		base := b * order * d
		for k := 0; k < order; k++ {
			src := t - order + k
			seg := dst[base+k*d : base+(k+1)*d]
			if src < 0 || src >= len(mels[b]) {
				mathutil.FillVec(seg, 0)
			} else {
				copy(seg, mels[b][src])
			}
		}
	}
}

// frameAt gathers the observation frame at timestep t for every item,
// zero-padded past an item's valid length (those rows are masked later).
func frameAt(mels [][][]float64, melLens []int, t, d int) mathutil.Mat {
	frame := mathutil.NewMat(len(mels), d)
	for b := range mels {
		if t < melLens[b] {
			copy(frame[b], mels[b][t])
		}
	}
	return frame
}

// maskLengths zeroes forward variables at timesteps past each item's valid
// length so padding never contributes to the loss.
func (m *NeuralHMM) maskLengths(diag *Diagnostics, melLens []int, tMax int) {
	for b, ln := range melLens {
		for t := ln; t < tMax; t++ {
			diag.LogC[b][t] = 0
			mathutil.FillVec(diag.LogAlphaScaled[t][b], 0)
		}
	}
}

// absorptionScalingFactor computes the final per-item scaling correction:
// the log probability that, at the item's last valid frame, mass transitions
// out of the final valid hidden state. An all log-zero row (no mass ever
// reached the final state) propagates as a log-zero result.
func (m *NeuralHMM) absorptionScalingFactor(diag *Diagnostics, b, melLen, encLen, numStates int, clamp bool) float64 {
	tLast := melLen - 1
	lastAlpha := diag.LogAlphaScaled[tLast][b]
	lastLogits := diag.TransitionLogits[tLast][b]

	final := mathutil.NewVecFill(numStates, mathutil.LogZero)
	j := encLen - 1
	final[j] = lastAlpha[j] + mathutil.LogClamped(mathutil.Sigmoid(lastLogits[j]))
	if clamp {
		for i := range final {
			if final[i] < minLogValue {
				final[i] = minLogValue
			}
		}
	}
	return floats.LogSumExp(final)
}

// minLogValue is the floor applied by the opt-in stability clamp.
const minLogValue = -1e15
