package hmm

import (
	"encoding/gob"
	"fmt"
	"io"
	"math/rand"

	"github.com/ieee0824/tts-go/nnet"
)

// NeuralHMM bundles the long-lived learned components: the autoregressive
// prenet, the LSTM memory cell and the parameter-prediction output net.
// All per-sequence state is allocated fresh inside Forward and Sample, so a
// model value is safe for concurrent read-only use once constructed.
type NeuralHMM struct {
	Prenet *nnet.Prenet
	Memory *nnet.LSTMCell
	Output *nnet.OutputNet

	cfg        Config
	emission   EmissionModel
	transition TransitionModel
	rng        *rand.Rand
}

// Option configures a NeuralHMM at construction.
type Option func(*NeuralHMM)

// WithRand sets the random source used for weight initialization, prenet
// dropout and stochastic sampling. nil falls back to the shared source.
func WithRand(rng *rand.Rand) Option {
	return func(m *NeuralHMM) {
		m.rng = rng
	}
}

// New constructs a flat-start initialized model. Configuration errors are
// fatal here and never deferred to the first Forward call.
func New(cfg Config, opts ...Option) (*NeuralHMM, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("hmm config: %w", err)
	}
	m := &NeuralHMM{cfg: cfg}
	for _, opt := range opts {
		opt(m)
	}

	prenet, err := nnet.NewPrenet(cfg.PrenetType, cfg.FrameChannels*cfg.AROrder, cfg.PrenetDim,
		cfg.PrenetDropout, cfg.PrenetDropoutAtInference, m.rng)
	if err != nil {
		return nil, fmt.Errorf("hmm prenet: %w", err)
	}
	m.Prenet = prenet
	m.Memory = nnet.NewLSTMCell(cfg.PrenetDim, cfg.MemoryRNNDim, m.rng)
	m.Output = nnet.NewOutputNet(cfg.EncoderDim, cfg.MemoryRNNDim, cfg.FrameChannels,
		cfg.ParameterNetwork, cfg.StdFloor, m.rng)
	m.Output.FlatStart(cfg.FlatStart.Mean, cfg.FlatStart.Std, cfg.FlatStart.TransitionP)
	return m, nil
}

// Config returns a copy of the model configuration.
func (m *NeuralHMM) Config() Config {
	return m.cfg
}

// --- Serialization ---

// Serialized format V1. Nested nnet types have exported fields, so gob
// handles them without per-layer envelopes.
type serializedModelV1 struct {
	Version int // = 1
	Config  Config
	Prenet  *nnet.Prenet
	Memory  *nnet.LSTMCell
	Output  *nnet.OutputNet
}

// Save serializes the model weights and configuration using gob encoding.
func (m *NeuralHMM) Save(w io.Writer) error {
	sd := serializedModelV1{
		Version: 1,
		Config:  m.cfg,
		Prenet:  m.Prenet,
		Memory:  m.Memory,
		Output:  m.Output,
	}
	return gob.NewEncoder(w).Encode(sd)
}

// Load deserializes a model previously written by Save.
func Load(r io.Reader, opts ...Option) (*NeuralHMM, error) {
	var sd serializedModelV1
	if err := gob.NewDecoder(r).Decode(&sd); err != nil {
		return nil, fmt.Errorf("decode model: %w", err)
	}
	if sd.Version != 1 {
		return nil, fmt.Errorf("unsupported model version %d", sd.Version)
	}
	if err := sd.Config.Validate(); err != nil {
		return nil, fmt.Errorf("loaded model config: %w", err)
	}
	m := &NeuralHMM{
		Prenet: sd.Prenet,
		Memory: sd.Memory,
		Output: sd.Output,
		cfg:    sd.Config,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}
