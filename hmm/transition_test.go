package hmm

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ieee0824/tts-go/internal/mathutil"
)

func TestTransitionCombinesStayAndAdvance(t *testing.T) {
	var tm TransitionModel
	// Normalized previous distribution over 3 states.
	prev := mathutil.Mat{{math.Log(0.5), math.Log(0.3), math.Log(0.2)}}
	logits := mathutil.Mat{{0.4, -0.2, 1.3}}

	out := tm.Forward(prev, logits, []int{3})

	for j := 0; j < 3; j++ {
		stay := prev[0][j] + mathutil.LogClamped(mathutil.Sigmoid(-logits[0][j]))
		want := stay
		if j > 0 {
			advance := prev[0][j-1] + mathutil.LogClamped(mathutil.Sigmoid(logits[0][j-1]))
			want = mathutil.LogAdd(stay, advance)
		}
		assert.InDelta(t, want, out[0][j], 1e-12, "state %d", j)
		// A valid log probability.
		assert.LessOrEqual(t, out[0][j], 0.0, "state %d", j)
	}

	// State 0 has no advance contribution: it must equal the stay term alone.
	assert.InDelta(t, prev[0][0]+mathutil.LogClamped(mathutil.Sigmoid(-logits[0][0])), out[0][0], 1e-12)
}

func TestTransitionAdvanceIntoStateZeroIsLogZero(t *testing.T) {
	var tm TransitionModel
	// All previous mass in state 0 with certainty.
	prev := mathutil.Mat{{0, mathutil.LogZero}}
	// Huge logit: everything wants to advance.
	logits := mathutil.Mat{{50, 50}}

	out := tm.Forward(prev, logits, []int{2})

	// Mass advanced into state 1; state 0 keeps only the clamped stay floor,
	// never an advance contribution.
	assert.InDelta(t, math.Log(mathutil.LogClampEps), out[0][0], 1e-9)
	assert.InDelta(t, 0.0, out[0][1], 1e-3)
}

func TestTransitionMasksStatesBeyondLength(t *testing.T) {
	var tm TransitionModel
	prev := mathutil.Mat{
		{math.Log(0.5), math.Log(0.5), mathutil.LogZero, mathutil.LogZero},
		{math.Log(0.25), math.Log(0.25), math.Log(0.25), math.Log(0.25)},
	}
	logits := mathutil.NewMat(2, 4)

	out := tm.Forward(prev, logits, []int{2, 4})

	assert.Equal(t, mathutil.LogZero, out[0][2])
	assert.Equal(t, mathutil.LogZero, out[0][3])
	for j := 0; j < 4; j++ {
		assert.Less(t, out[1][j], 0.0)
		assert.Greater(t, out[1][j], -30.0)
	}
}
