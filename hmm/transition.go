package hmm

import (
	"github.com/ieee0824/tts-go/internal/mathutil"
)

// TransitionModel combines the previous timestep's scaled state
// log-probabilities with per-state transition logits. Like EmissionModel it
// is stateless; sigmoid(logit) is the probability of advancing to the next
// state, sigmoid(-logit) the probability of staying.
type TransitionModel struct{}

// Forward returns, for each batch item, the (batch × numStates) log
// probability of being in each state after one transition step:
//
//	out[j] = logaddexp(prev[j] + log p_stay[j], prev[j-1] + log p_advance[j-1])
//
// No state can be entered by advancing into state 0, so that contribution is
// log-zero. States at or beyond stateLens[b] are forced to log-zero so they
// never contribute to the loss.
func (TransitionModel) Forward(prevLogAlpha, logits mathutil.Mat, stateLens []int) mathutil.Mat {
	batch := len(prevLogAlpha)
	numStates := 0
	if batch > 0 {
		numStates = len(prevLogAlpha[0])
	}
	out := mathutil.NewMatFill(batch, numStates, mathutil.LogZero)
	for b := 0; b < batch; b++ {
		for j := 0; j < stateLens[b]; j++ {
			stay := prevLogAlpha[b][j] + mathutil.LogClamped(mathutil.Sigmoid(-logits[b][j]))
			advance := mathutil.LogZero
			if j > 0 {
				advance = prevLogAlpha[b][j-1] + mathutil.LogClamped(mathutil.Sigmoid(logits[b][j-1]))
			}
			out[b][j] = mathutil.LogAdd(stay, advance)
		}
	}
	return out
}
