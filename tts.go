// Package tts is the top-level facade over the attention-free alignment
// core: the neural HMM path (forward-algorithm likelihood for training,
// sequential sampling for inference) and the mixture-density monotonic
// alignment path (duration extraction for a parallel decoder).
package tts

import (
	"fmt"
	"math/rand"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/ieee0824/tts-go/align"
	"github.com/ieee0824/tts-go/hmm"
)

// Config is the model configuration file layout.
type Config struct {
	HMM hmm.Config `yaml:"hmm"`
	MDN struct {
		Hidden      int `yaml:"hidden"`
		OutChannels int `yaml:"out_channels"`
	} `yaml:"mdn"`
	LengthScale float64 `yaml:"length_scale"`
}

// DefaultConfig returns a configuration matching the reference recipe.
func DefaultConfig() Config {
	cfg := Config{
		HMM:         hmm.DefaultConfig(),
		LengthScale: 1.0,
	}
	cfg.MDN.Hidden = cfg.HMM.EncoderDim
	cfg.MDN.OutChannels = cfg.HMM.FrameChannels
	return cfg
}

// LoadConfig reads a YAML configuration file over the defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.HMM.Validate(); err != nil {
		return cfg, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// Aligner bundles both alignment paths behind one object.
type Aligner struct {
	HMM *hmm.NeuralHMM
	MDN *align.MDNNet

	cfg Config
	rng *rand.Rand
}

// Option configures an Aligner.
type Option func(*Aligner)

// WithRand sets the random source used for initialization and sampling.
func WithRand(rng *rand.Rand) Option {
	return func(a *Aligner) {
		a.rng = rng
	}
}

// NewAligner constructs both paths from one configuration.
func NewAligner(cfg Config, opts ...Option) (*Aligner, error) {
	a := &Aligner{cfg: cfg}
	for _, opt := range opts {
		opt(a)
	}

	var err error
	a.HMM, err = hmm.New(cfg.HMM, hmm.WithRand(a.rng))
	if err != nil {
		return nil, err
	}
	a.MDN, err = align.NewMDNNet(cfg.MDN.Hidden, cfg.MDN.OutChannels, a.rng)
	if err != nil {
		return nil, fmt.Errorf("mdn: %w", err)
	}
	return a, nil
}

// NewAlignerFromModel wraps a pre-loaded neural HMM (e.g. from hmm.Load).
func NewAlignerFromModel(m *hmm.NeuralHMM, opts ...Option) *Aligner {
	a := &Aligner{HMM: m, cfg: DefaultConfig()}
	a.cfg.HMM = m.Config()
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Config returns a copy of the aligner configuration.
func (a *Aligner) Config() Config {
	return a.cfg
}

// LogProb scores a batch through the HMM forward algorithm. The returned
// values are per-item sequence log probabilities; negate for an NLL loss.
func (a *Aligner) LogProb(encOut [][][]float64, encLens []int, mels [][][]float64, melLens []int) ([]float64, *hmm.Diagnostics, error) {
	return a.HMM.Forward(encOut, encLens, mels, melLens, hmm.ForwardOptions{Training: true})
}

// Sample synthesizes one feature sequence from encoder outputs with the
// configured sampling behavior.
func (a *Aligner) Sample(encOut [][]float64) (*hmm.SampleResult, error) {
	return a.HMM.Sample(encOut, a.HMM.DefaultSampleOptions())
}

// Durations extracts per-character frame counts for one sequence via the
// mixture-density monotonic alignment path.
func (a *Aligner) Durations(encHidden, mels [][]float64) ([]int, error) {
	if a.MDN == nil {
		return nil, fmt.Errorf("aligner has no mdn head")
	}
	mu, logSigma := a.MDN.Predict(encHidden)
	durs, _, err := align.ComputeAlignPath(mu, logSigma, mels, len(encHidden), len(mels))
	return durs, err
}

// ExpandToFrames broadcasts encoder features to frame resolution using the
// given durations, ready for a parallel decoder.
func (a *Aligner) ExpandToFrames(encHidden [][]float64, durs []int) ([][]float64, error) {
	decLen := 0
	for _, d := range durs {
		decLen += d
	}
	attn := align.GeneratePath(durs, decLen)
	return align.ExpandEncoderOutputs(encHidden, attn)
}
