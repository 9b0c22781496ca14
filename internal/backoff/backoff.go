package backoff

import (
	"math"
	"math/rand"
	"time"
)

type Policy string

const (
	Fixed       Policy = "fixed"
	Linear      Policy = "linear"
	Exponential Policy = "exponential"
	EqualJitter Policy = "exp_equal_jitter"
	FullJitter  Policy = "exp_full_jitter"
)

const defaultMinStep = time.Second

// Delay returns the wait before retry number attempt (0-based).
// Non-positive base falls back to one second; max below base is raised to base.
func Delay(policy Policy, base, max time.Duration, attempt int, rng *rand.Rand) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	if base <= 0 {
		base = defaultMinStep
	}
	if max < base {
		max = base
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(1))
	}

	capped := func(d float64) time.Duration {
		if d >= float64(max) || math.IsInf(d, 1) {
			return max
		}
		return time.Duration(d)
	}
	exp := capped(float64(base) * math.Pow(2, float64(attempt)))

	switch policy {
	case Fixed:
		return base
	case Linear:
		n := attempt
		if n < 1 {
			n = 1
		}
		return capped(float64(base) * float64(n))
	case Exponential:
		return exp
	case EqualJitter:
		half := exp / 2
		return half + time.Duration(rng.Int63n(int64(exp-half)+1))
	default:
		return time.Duration(rng.Int63n(int64(exp) + 1))
	}
}
