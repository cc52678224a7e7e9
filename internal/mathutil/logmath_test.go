package mathutil

import (
	"math"
	"testing"
)

func approxEqual(a, b, tol float64) bool {
	return math.Abs(a-b) < tol
}

func TestLogAdd(t *testing.T) {
	// log(exp(log(2)) + exp(log(3))) = log(5)
	got := LogAdd(math.Log(2), math.Log(3))
	if !approxEqual(got, math.Log(5), 1e-12) {
		t.Errorf("LogAdd(log2, log3) = %v, want %v", got, math.Log(5))
	}

	// Adding LogZero is identity
	if got := LogAdd(LogZero, math.Log(7)); !approxEqual(got, math.Log(7), 1e-12) {
		t.Errorf("LogAdd(LogZero, log7) = %v", got)
	}
	if got := LogAdd(math.Log(7), LogZero); !approxEqual(got, math.Log(7), 1e-12) {
		t.Errorf("LogAdd(log7, LogZero) = %v", got)
	}

	// Large magnitude gap: smaller operand is negligible
	if got := LogAdd(0, -100); got != 0 {
		t.Errorf("LogAdd(0, -100) = %v, want 0", got)
	}
}

func TestSigmoid(t *testing.T) {
	if got := Sigmoid(0); !approxEqual(got, 0.5, 1e-15) {
		t.Errorf("Sigmoid(0) = %v", got)
	}
	// Symmetry: sigmoid(x) + sigmoid(-x) == 1
	for _, x := range []float64{-5, -0.3, 0.7, 12} {
		if s := Sigmoid(x) + Sigmoid(-x); !approxEqual(s, 1.0, 1e-12) {
			t.Errorf("Sigmoid(%v)+Sigmoid(-%v) = %v, want 1", x, x, s)
		}
	}
	// No NaN at extreme logits
	if got := Sigmoid(-1000); got != 0 {
		t.Errorf("Sigmoid(-1000) = %v, want underflow to 0", got)
	}
}

func TestLogClamped(t *testing.T) {
	if got := LogClamped(0.5); !approxEqual(got, math.Log(0.5), 1e-12) {
		t.Errorf("LogClamped(0.5) = %v", got)
	}
	// Values below the floor are clamped, never -Inf
	if got := LogClamped(0); got != math.Log(LogClampEps) {
		t.Errorf("LogClamped(0) = %v, want %v", got, math.Log(LogClampEps))
	}
}

func TestSoftplusRoundTrip(t *testing.T) {
	for _, y := range []float64{0.1, 1.0, 2.5, 40.0} {
		if got := Softplus(SoftplusInv(y)); !approxEqual(got, y, 1e-9) {
			t.Errorf("Softplus(SoftplusInv(%v)) = %v", y, got)
		}
	}
}

func TestLogit(t *testing.T) {
	for _, p := range []float64{0.1, 0.5, 0.93} {
		if got := Sigmoid(Logit(p)); !approxEqual(got, p, 1e-12) {
			t.Errorf("Sigmoid(Logit(%v)) = %v", p, got)
		}
	}
}
