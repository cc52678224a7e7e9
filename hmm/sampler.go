package hmm

import (
	"fmt"
	"math/rand"

	"github.com/ieee0824/tts-go/internal/mathutil"
)

// SampleOptions control one sampling run. Build with DefaultSampleOptions to
// inherit the model configuration, then override fields as needed.
type SampleOptions struct {
	// Temperature scales the emission standard deviations; 0 emits means.
	Temperature float64
	// PredictMeans forces deterministic emission regardless of temperature.
	PredictMeans bool
	// Deterministic switches state advancement from stochastic draws to the
	// running stay-probability quantile rule.
	Deterministic bool
	// QuantileThreshold is the advance threshold for deterministic mode.
	QuantileThreshold float64
	// MaxSteps is the absolute cap on emitted frames. Zero means uncapped:
	// with a degenerate always-stay transition model sampling then never
	// terminates, so callers should keep a cap in place.
	MaxSteps int
}

// DefaultSampleOptions returns options populated from the model config.
func (m *NeuralHMM) DefaultSampleOptions() SampleOptions {
	return SampleOptions{
		Temperature:       m.cfg.SamplingTemp,
		Deterministic:     m.cfg.DeterministicTransition,
		QuantileThreshold: m.cfg.DurationThreshold,
		MaxSteps:          m.cfg.MaxSamplingTime,
	}
}

// StepParams is a per-timestep diagnostic snapshot of the sampler.
type StepParams struct {
	State       int
	Mean        []float64
	Std         []float64
	TransitionP float64
}

// SampleResult is the output of one sampling run.
type SampleResult struct {
	// Frames holds the emitted feature vectors, one row per timestep.
	Frames mathutil.Mat
	// States lists the hidden-state indices visited: the initial state 0
	// plus one entry per emitted frame. The final entry equals the state
	// count when the walk reached the absorption state rather than the cap.
	States []int
	// Params holds per-timestep parameter snapshots for plotting.
	Params []StepParams
}

// Sample walks the forward-algorithm state machine one timestep at a time
// for a single sequence, emitting frames and sampling discrete transitions.
// encOut is (numStates × encoderDim) for exactly one sequence.
func (m *NeuralHMM) Sample(encOut mathutil.Mat, opts SampleOptions) (*SampleResult, error) {
	numStates := len(encOut)
	if numStates == 0 {
		return nil, fmt.Errorf("empty encoder output")
	}
	for j, row := range encOut {
		if len(row) != m.cfg.EncoderDim {
			return nil, fmt.Errorf("state %d: encoder dim %d, model expects %d", j, len(row), m.cfg.EncoderDim)
		}
	}

	d := m.cfg.FrameChannels
	order := m.cfg.AROrder
	arWindow := make([]float64, order*d) // zero go tokens
	h := make([]float64, m.cfg.MemoryRNNDim)
	c := make([]float64, m.cfg.MemoryRNNDim)

	res := &SampleResult{States: []int{0}}
	z := 0
	quantile := 1.0

	for step := 0; ; step++ {
		prenetOut := m.Prenet.Forward(arWindow, 1, false, m.rng)
		m.Memory.StepBatch(prenetOut, h, c, 1)

		mean, std, logit := m.Output.PredictSingle(h, encOut[z])
		transitionP := mathutil.Sigmoid(logit)
		stayingP := mathutil.Sigmoid(-logit)
		res.Params = append(res.Params, StepParams{
			State:       z,
			Mean:        mean,
			Std:         std,
			TransitionP: transitionP,
		})

		var x []float64
		if opts.PredictMeans {
			x = append([]float64(nil), mean...)
		} else {
			x = m.emission.Sample(mean, std, opts.Temperature, m.rng)
		}
		res.Frames = append(res.Frames, x)

		// Slide the autoregressive window by one frame.
		copy(arWindow, arWindow[d:])
		copy(arWindow[(order-1)*d:], x)

		var advance bool
		if opts.Deterministic {
			quantile *= stayingP
			advance = quantile < opts.QuantileThreshold
		} else {
			advance = m.uniform() < transitionP
		}
		if advance {
			z++
			quantile = 1.0
		}
		res.States = append(res.States, z)

		if z == numStates {
			break
		}
		if opts.MaxSteps > 0 && step == opts.MaxSteps-1 {
			break
		}
	}
	return res, nil
}

func (m *NeuralHMM) uniform() float64 {
	if m.rng == nil {
		return rand.Float64()
	}
	return m.rng.Float64()
}
