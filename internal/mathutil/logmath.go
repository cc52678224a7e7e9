package mathutil

import "math"

// LogZero represents log(0), used as negative infinity in log-domain arithmetic.
// Kept finite so that sums of masked terms stay well-defined in float64.
const LogZero = -1e30

// LogAdd returns log(exp(a) + exp(b)) in a numerically stable way.
// Uses threshold-based early exit to skip expensive exp/log1p when the
// smaller value contributes less than float64 precision (exp(-36) ≈ 2.3e-16).
func LogAdd(a, b float64) float64 {
	if a > b {
		if b == LogZero {
			return a
		}
		d := b - a
		if d < -36.0 {
			return a
		}
		return a + math.Log1p(math.Exp(d))
	}
	if a == LogZero {
		return b
	}
	d := a - b
	if d < -36.0 {
		return b
	}
	return b + math.Log1p(math.Exp(d))
}

// LogClampEps is the probability floor applied before taking logs of
// transition probabilities. A sigmoid output can underflow to 0 for very
// negative logits; clamping keeps the log finite.
const LogClampEps = 1e-4

// LogClamped returns log(max(p, LogClampEps)).
func LogClamped(p float64) float64 {
	if p < LogClampEps {
		p = LogClampEps
	}
	return math.Log(p)
}

// Sigmoid returns 1/(1+exp(-x)), evaluated in the numerically safe branch.
func Sigmoid(x float64) float64 {
	if x >= 0 {
		return 1.0 / (1.0 + math.Exp(-x))
	}
	e := math.Exp(x)
	return e / (1.0 + e)
}

// Softplus returns log(1+exp(x)) without overflow for large x.
func Softplus(x float64) float64 {
	if x > 36.0 {
		return x
	}
	return math.Log1p(math.Exp(x))
}

// SoftplusInv returns the x such that Softplus(x) == y, for y > 0.
func SoftplusInv(y float64) float64 {
	if y > 36.0 {
		return y
	}
	return math.Log(math.Expm1(y))
}

// Logit returns log(p/(1-p)) for p in (0, 1).
func Logit(p float64) float64 {
	return math.Log(p) - math.Log1p(-p)
}
