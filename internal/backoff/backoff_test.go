package backoff

import (
	"math/rand"
	"testing"
	"time"
)

func TestDelayFixed(t *testing.T) {
	tests := []struct {
		name    string
		base    time.Duration
		max     time.Duration
		attempt int
		want    time.Duration
	}{
		{"base 5s max 10s", 5 * time.Second, 10 * time.Second, 0, 5 * time.Second},
		{"many attempts", 5 * time.Second, 10 * time.Second, 100, 5 * time.Second},
		{"zero base defaults to 1s", 0, 10 * time.Second, 0, time.Second},
		{"negative base defaults to 1s", -time.Second, 10 * time.Second, 0, time.Second},
		{"max below base", 5 * time.Second, time.Second, 0, 5 * time.Second},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Delay(Fixed, tt.base, tt.max, tt.attempt, nil); got != tt.want {
				t.Errorf("Delay = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDelayLinear(t *testing.T) {
	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{-1, 2 * time.Second},
		{0, 2 * time.Second},
		{1, 2 * time.Second},
		{3, 6 * time.Second},
		{10, 15 * time.Second},
	}
	for _, tt := range tests {
		if got := Delay(Linear, 2*time.Second, 15*time.Second, tt.attempt, nil); got != tt.want {
			t.Errorf("attempt %d: Delay = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestDelayExponential(t *testing.T) {
	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, time.Second},
		{1, 2 * time.Second},
		{4, 16 * time.Second},
		{6, time.Minute},
		{5000, time.Minute},
	}
	for _, tt := range tests {
		if got := Delay(Exponential, time.Second, time.Minute, tt.attempt, nil); got != tt.want {
			t.Errorf("attempt %d: Delay = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestDelayJitterBounds(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for attempt := 0; attempt < 12; attempt++ {
		exp := Delay(Exponential, time.Second, 30*time.Second, attempt, nil)

		full := Delay(FullJitter, time.Second, 30*time.Second, attempt, rng)
		if full < 0 || full > exp {
			t.Errorf("full jitter attempt %d: %v outside [0, %v]", attempt, full, exp)
		}
		equal := Delay(EqualJitter, time.Second, 30*time.Second, attempt, rng)
		if equal < exp/2 || equal > exp {
			t.Errorf("equal jitter attempt %d: %v outside [%v, %v]", attempt, equal, exp/2, exp)
		}
	}
}

func TestDelayDeterministicWithSeed(t *testing.T) {
	a := Delay(FullJitter, time.Second, time.Minute, 5, rand.New(rand.NewSource(7)))
	b := Delay(FullJitter, time.Second, time.Minute, 5, rand.New(rand.NewSource(7)))
	if a != b {
		t.Fatalf("expected identical delays for identical seeds, got %v and %v", a, b)
	}
}
