package tts

import (
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func smallConfig() Config {
	cfg := DefaultConfig()
	cfg.HMM.FrameChannels = 2
	cfg.HMM.AROrder = 1
	cfg.HMM.EncoderDim = 4
	cfg.HMM.PrenetDim = 8
	cfg.HMM.PrenetDropout = 0
	cfg.HMM.MemoryRNNDim = 6
	cfg.HMM.ParameterNetwork = []int{8}
	cfg.MDN.Hidden = 4
	cfg.MDN.OutChannels = 2
	return cfg
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "model.yaml")
	data := []byte(`
hmm:
  frame_channels: 20
  ar_order: 2
  prenet_type: bn
mdn:
  hidden: 64
  out_channels: 20
length_scale: 1.25
`)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 20, cfg.HMM.FrameChannels)
	assert.Equal(t, 2, cfg.HMM.AROrder)
	assert.Equal(t, "bn", cfg.HMM.PrenetType)
	assert.Equal(t, 64, cfg.MDN.Hidden)
	assert.Equal(t, 1.25, cfg.LengthScale)
	// Untouched fields keep the defaults.
	assert.Equal(t, DefaultConfig().HMM.MemoryRNNDim, cfg.HMM.MemoryRNNDim)
}

func TestLoadConfigRejectsInvalid(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("hmm:\n  ar_order: 0\n"), 0o644))
	_, err := LoadConfig(path)
	require.Error(t, err)
}

func TestAlignerEndToEnd(t *testing.T) {
	cfg := smallConfig()
	a, err := NewAligner(cfg, WithRand(rand.New(rand.NewSource(40))))
	require.NoError(t, err)

	// HMM path: likelihood then sampling.
	enc := make([][][]float64, 1)
	enc[0] = make([][]float64, 3)
	for j := range enc[0] {
		enc[0][j] = make([]float64, 4)
	}
	mels := [][][]float64{{{1, 1}, {1, 1}, {1, 1}, {1, 1}}}

	logProbs, diag, err := a.LogProb(enc, []int{3}, mels, []int{4})
	require.NoError(t, err)
	require.Len(t, logProbs, 1)
	require.NotNil(t, diag)

	res, err := a.Sample(enc[0])
	require.NoError(t, err)
	assert.NotEmpty(t, res.Frames)

	// MDN path: durations then expansion.
	encHidden := [][]float64{{1, 0, 0, 0}, {0, 1, 0, 0}}
	frames := [][]float64{{0.1, 0.2}, {0.3, 0.4}, {0.5, 0.6}}
	durs, err := a.Durations(encHidden, frames)
	require.NoError(t, err)
	sum := 0
	for _, d := range durs {
		sum += d
	}
	assert.Equal(t, 3, sum)

	expanded, err := a.ExpandToFrames(encHidden, durs)
	require.NoError(t, err)
	assert.Len(t, expanded, 3)
}
