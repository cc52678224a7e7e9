package align

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas64"
	"gonum.org/v1/gonum/floats"

	"github.com/ieee0824/tts-go/internal/mathutil"
)

// MaximumPath finds the monotonic no-skip character-to-frame alignment
// maximizing the total log probability over the valid (encLen × decLen)
// region of logP, by dynamic programming with backtrace. The returned
// binary path matrix has the same shape as logP; exactly one encoder row is
// set per valid decoder column, row indices are non-decreasing over time,
// the path starts at row 0 and ends at row encLen-1.
func MaximumPath(logP mathutil.Mat, encLen, decLen int) (mathutil.Mat, error) {
	if encLen <= 0 || decLen <= 0 {
		return nil, fmt.Errorf("invalid lengths: encLen=%d decLen=%d", encLen, decLen)
	}
	if encLen > len(logP) || decLen > len(logP[0]) {
		return nil, fmt.Errorf("lengths %dx%d exceed potential matrix %dx%d",
			encLen, decLen, len(logP), len(logP[0]))
	}
	if encLen > decLen {
		return nil, fmt.Errorf("no monotonic no-skip path: %d characters need at least %d frames, have %d",
			encLen, encLen, decLen)
	}

	// value[i][t] = best cumulative score of any monotonic path ending at
	// character i, frame t. Only indices reachable from (0,0) and able to
	// reach (encLen-1, decLen-1) are filled.
	value := mathutil.NewMatFill(encLen, decLen, mathutil.LogZero)
	for t := 0; t < decLen; t++ {
		lo := encLen + t - decLen
		if lo < 0 {
			lo = 0
		}
		hi := t
		if hi > encLen-1 {
			hi = encLen - 1
		}
		for i := lo; i <= hi; i++ {
			// Stay on character i, or advance from i-1.
			vCur := mathutil.LogZero
			if t > 0 && i <= t-1 {
				vCur = value[i][t-1]
			}
			vPrev := mathutil.LogZero
			if i == 0 {
				if t == 0 {
					vPrev = 0
				}
			} else if t > 0 {
				vPrev = value[i-1][t-1]
			}
			value[i][t] = math.Max(vCur, vPrev) + logP[i][t]
		}
	}

	path := mathutil.NewMat(len(logP), len(logP[0]))
	idx := encLen - 1
	for t := decLen - 1; t >= 0; t-- {
		path[idx][t] = 1
		if idx > 0 && (idx == t || value[idx][t-1] < value[idx-1][t-1]) {
			idx--
		}
	}
	return path, nil
}

// DurationsFromPath converts a hard alignment into per-character frame
// counts. The counts sum to the number of aligned decoder frames.
func DurationsFromPath(path mathutil.Mat, encLen int) []int {
	durs := make([]int, encLen)
	for i := 0; i < encLen; i++ {
		durs[i] = int(math.Round(floats.Sum(path[i])))
	}
	return durs
}

// GeneratePath converts per-character durations back into a binary
// attention matrix of shape (len(durs) × decLen):
//
//	durations [1, 3, 2, 1] →  [[1 0 0 0 0 0 0]
//	                           [0 1 1 1 0 0 0]
//	                           [0 0 0 0 1 1 0]
//	                           [0 0 0 0 0 0 1]]
func GeneratePath(durs []int, decLen int) mathutil.Mat {
	attn := mathutil.NewMat(len(durs), decLen)
	pos := 0
	for i, d := range durs {
		for k := 0; k < d && pos < decLen; k++ {
			attn[i][pos] = 1
			pos++
		}
	}
	return attn
}

// ExpandEncoderOutputs broadcasts encoder features to decoder-length
// resolution through an attention matrix: out = attnᵀ · enc, giving one
// encoder vector per decoder frame.
//
//	enc:  (encLen × channels)
//	attn: (encLen × decLen)
//
// Returns (decLen × channels).
func ExpandEncoderOutputs(enc, attn mathutil.Mat) (mathutil.Mat, error) {
	if len(enc) == 0 || len(attn) == 0 {
		return nil, fmt.Errorf("empty inputs")
	}
	if len(enc) != len(attn) {
		return nil, fmt.Errorf("encoder rows %d != attention rows %d", len(enc), len(attn))
	}
	encLen := len(enc)
	channels := len(enc[0])
	decLen := len(attn[0])

	a := blas64.General{Rows: encLen, Cols: decLen, Stride: decLen, Data: mathutil.Flatten(attn)}
	e := blas64.General{Rows: encLen, Cols: channels, Stride: channels, Data: mathutil.Flatten(enc)}
	outData := make([]float64, decLen*channels)
	c := blas64.General{Rows: decLen, Cols: channels, Stride: channels, Data: outData}
	blas64.Gemm(blas.Trans, blas.NoTrans, 1, a, e, 0, c)

	out := make(mathutil.Mat, decLen)
	for t := 0; t < decLen; t++ {
		out[t] = outData[t*channels : (t+1)*channels]
	}
	return out, nil
}

// ComputeAlignPath runs the full alignment extraction: potentials from the
// predicted parameters, maximum path search, then duration counts. Returns
// the durations and the potential matrix for diagnostics.
func ComputeAlignPath(mu, logSigma, y mathutil.Mat, encLen, decLen int) ([]int, mathutil.Mat, error) {
	logP, err := LogProbMatrix(mu, logSigma, y)
	if err != nil {
		return nil, nil, err
	}
	path, err := MaximumPath(logP, encLen, decLen)
	if err != nil {
		return nil, logP, err
	}
	return DurationsFromPath(path, encLen), logP, nil
}

// FormatDurations converts predicted log durations to integer frame counts:
// (exp(x)-1) scaled by lengthScale, floored at one frame, rounded.
// lengthScale below one slows speech down, above one speeds it up.
func FormatDurations(logDur []float64, lengthScale float64) []int {
	out := make([]int, len(logDur))
	for i, x := range logDur {
		d := (math.Exp(x) - 1) * lengthScale
		if d < 1 {
			d = 1
		}
		out[i] = int(math.Round(d))
	}
	return out
}
