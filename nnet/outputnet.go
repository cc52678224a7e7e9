package nnet

import (
	"math/rand"

	"github.com/ieee0824/tts-go/internal/mathutil"
)

// OutputNet predicts per-state emission parameters and transition logits
// from the memory-cell hidden state and one encoder output vector.
// For each (item, state) pair the input is [encoder_j ; h] and the output
// splits into mean [D], raw std [D] and one transition logit.
//
// Predict is a pure function of its inputs; callers may recompute rather
// than retain its results to bound memory.
type OutputNet struct {
	Hidden []*Linear // ReLU hidden layers
	Out    *Linear   // → 2*FrameChannels + 1

	EncoderDim    int
	MemoryDim     int
	FrameChannels int
	StdFloor      float64
}

// NewOutputNet builds the parameter network. hiddenSizes lists the widths of
// the intermediate layers; it may be empty for a single linear projection.
func NewOutputNet(encoderDim, memoryDim, frameChannels int, hiddenSizes []int, stdFloor float64, rng *rand.Rand) *OutputNet {
	n := &OutputNet{
		EncoderDim:    encoderDim,
		MemoryDim:     memoryDim,
		FrameChannels: frameChannels,
		StdFloor:      stdFloor,
	}
	prev := encoderDim + memoryDim
	for _, sz := range hiddenSizes {
		n.Hidden = append(n.Hidden, NewLinear(prev, sz, rng))
		prev = sz
	}
	n.Out = NewLinear(prev, 2*frameChannels+1, rng)
	return n
}

// FlatStart zeroes the output layer weights and sets its bias so that every
// state initially predicts the given mean, standard deviation and transition
// probability regardless of input.
func (n *OutputNet) FlatStart(mean, std, transitionP float64) {
	n.Out.ZeroWeights()
	d := n.FrameChannels
	for i := 0; i < d; i++ {
		n.Out.B[i] = mean
		n.Out.B[d+i] = mathutil.SoftplusInv(std)
	}
	n.Out.B[2*d] = mathutil.Logit(transitionP)
}

// Predict computes per-state Gaussian parameters and transition logits for a
// batch. h is flat [batch × MemoryDim], enc is [batch][numStates][EncoderDim].
// Returns means and stds as [batch][numStates][FrameChannels] and the
// transition logits as a (batch × numStates) matrix.
func (n *OutputNet) Predict(h []float64, enc [][][]float64, batch, numStates int) (means, stds [][][]float64, logits mathutil.Mat) {
	inDim := n.EncoderDim + n.MemoryDim
	rows := batch * numStates
	in := make([]float64, rows*inDim)
	for b := 0; b < batch; b++ {
		hRow := h[b*n.MemoryDim : (b+1)*n.MemoryDim]
		for j := 0; j < numStates; j++ {
			off := (b*numStates + j) * inDim
			copy(in[off:off+n.EncoderDim], enc[b][j])
			copy(in[off+n.EncoderDim:off+inDim], hRow)
		}
	}

	out := n.forwardRows(in, rows)

	d := n.FrameChannels
	outDim := 2*d + 1
	means = make([][][]float64, batch)
	stds = make([][][]float64, batch)
	logits = mathutil.NewMat(batch, numStates)
	for b := 0; b < batch; b++ {
		means[b] = make([][]float64, numStates)
		stds[b] = make([][]float64, numStates)
		for j := 0; j < numStates; j++ {
			row := out[(b*numStates+j)*outDim : (b*numStates+j+1)*outDim]
			mean := make([]float64, d)
			std := make([]float64, d)
			copy(mean, row[:d])
			for i := 0; i < d; i++ {
				std[i] = n.floorStd(mathutil.Softplus(row[d+i]))
			}
			means[b][j] = mean
			stds[b][j] = std
			logits[b][j] = row[2*d]
		}
	}
	return means, stds, logits
}

// PredictSingle computes parameters for one (hidden state, encoder vector)
// pair, the sampler's per-step path.
func (n *OutputNet) PredictSingle(h, encVec []float64) (mean, std []float64, logit float64) {
	inDim := n.EncoderDim + n.MemoryDim
	in := make([]float64, inDim)
	copy(in[:n.EncoderDim], encVec)
	copy(in[n.EncoderDim:], h)

	out := n.forwardRows(in, 1)

	d := n.FrameChannels
	mean = make([]float64, d)
	std = make([]float64, d)
	copy(mean, out[:d])
	for i := 0; i < d; i++ {
		std[i] = n.floorStd(mathutil.Softplus(out[d+i]))
	}
	return mean, std, out[2*d]
}

func (n *OutputNet) forwardRows(in []float64, rows int) []float64 {
	act := in
	for _, layer := range n.Hidden {
		out := make([]float64, rows*layer.Out)
		layer.Forward(act, rows, out)
		reluInPlace(out)
		act = out
	}
	out := make([]float64, rows*n.Out.Out)
	n.Out.Forward(act, rows, out)
	return out
}

func (n *OutputNet) floorStd(s float64) float64 {
	if s < n.StdFloor {
		return n.StdFloor
	}
	return s
}
