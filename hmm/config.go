// Package hmm implements the autoregressive left-to-right no-skip neural
// hidden Markov model used for attention-free speech synthesis: a scaled
// log-space forward algorithm over neural per-state Gaussians for training,
// and a sequential state-machine sampler for inference.
package hmm

import (
	"fmt"

	"github.com/ieee0824/tts-go/nnet"
)

// FlatStartParams are the initial output-net predictions before training.
// Every state starts with the same Gaussian and transition probability so
// that the forward algorithm begins from an uninformative alignment.
type FlatStartParams struct {
	Mean        float64 `yaml:"mean"`
	Std         float64 `yaml:"std"`
	TransitionP float64 `yaml:"transition_p"`
}

// Config holds the model hyperparameters. It is consumed at construction
// and never mutated afterwards.
type Config struct {
	FrameChannels int `yaml:"frame_channels"` // feature vector dimensionality
	AROrder       int `yaml:"ar_order"`       // autoregressive frame window
	EncoderDim    int `yaml:"encoder_dim"`

	PrenetType               string  `yaml:"prenet_type"` // "original" or "bn"
	PrenetDim                int     `yaml:"prenet_dim"`
	PrenetDropout            float64 `yaml:"prenet_dropout"`
	PrenetDropoutAtInference bool    `yaml:"prenet_dropout_at_inference"`

	MemoryRNNDim     int   `yaml:"memory_rnn_dim"`
	ParameterNetwork []int `yaml:"parameter_network"` // hidden layer sizes

	FlatStart FlatStartParams `yaml:"flat_start_params"`
	StdFloor  float64         `yaml:"std_floor"`

	// Sampling behavior.
	SamplingTemp            float64 `yaml:"sampling_temp"`
	DeterministicTransition bool    `yaml:"deterministic_transition"`
	DurationThreshold       float64 `yaml:"duration_threshold"` // quantile threshold
	MaxSamplingTime         int     `yaml:"max_sampling_time"`
}

// DefaultConfig returns the hyperparameters used by the reference recipe.
func DefaultConfig() Config {
	return Config{
		FrameChannels:           80,
		AROrder:                 1,
		EncoderDim:              512,
		PrenetType:              nnet.PrenetOriginal,
		PrenetDim:               256,
		PrenetDropout:           0.5,
		MemoryRNNDim:            1024,
		ParameterNetwork:        []int{1024},
		FlatStart:               FlatStartParams{Mean: 0, Std: 1, TransitionP: 0.14},
		StdFloor:                0.001,
		SamplingTemp:            0.667,
		DeterministicTransition: true,
		DurationThreshold:       0.55,
		MaxSamplingTime:         1000,
	}
}

// Validate reports the first invalid field. An invalid configuration is a
// construction-time error, never recovered at runtime.
func (c Config) Validate() error {
	if c.AROrder <= 0 {
		return fmt.Errorf("ar_order must be greater than 0, got %d", c.AROrder)
	}
	if c.FrameChannels <= 0 {
		return fmt.Errorf("frame_channels must be positive, got %d", c.FrameChannels)
	}
	if c.EncoderDim <= 0 {
		return fmt.Errorf("encoder_dim must be positive, got %d", c.EncoderDim)
	}
	if c.PrenetDim <= 0 {
		return fmt.Errorf("prenet_dim must be positive, got %d", c.PrenetDim)
	}
	if c.PrenetType != nnet.PrenetOriginal && c.PrenetType != nnet.PrenetBN {
		return fmt.Errorf("unknown prenet_type %q", c.PrenetType)
	}
	if c.PrenetDropout < 0 || c.PrenetDropout >= 1 {
		return fmt.Errorf("prenet_dropout must be in [0, 1), got %v", c.PrenetDropout)
	}
	if c.MemoryRNNDim <= 0 {
		return fmt.Errorf("memory_rnn_dim must be positive, got %d", c.MemoryRNNDim)
	}
	for i, sz := range c.ParameterNetwork {
		if sz <= 0 {
			return fmt.Errorf("parameter_network[%d] must be positive, got %d", i, sz)
		}
	}
	if c.StdFloor <= 0 {
		return fmt.Errorf("std_floor must be positive, got %v", c.StdFloor)
	}
	if c.FlatStart.Std <= 0 {
		return fmt.Errorf("flat_start std must be positive, got %v", c.FlatStart.Std)
	}
	if c.FlatStart.TransitionP <= 0 || c.FlatStart.TransitionP >= 1 {
		return fmt.Errorf("flat_start transition_p must be in (0, 1), got %v", c.FlatStart.TransitionP)
	}
	if c.DurationThreshold <= 0 || c.DurationThreshold >= 1 {
		return fmt.Errorf("duration_threshold must be in (0, 1), got %v", c.DurationThreshold)
	}
	return nil
}
