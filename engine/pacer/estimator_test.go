package pacer

import (
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func maxOf(samples []time.Duration) time.Duration {
	var m time.Duration
	for i, s := range samples {
		if i == 0 || s > m {
			m = s
		}
	}
	return m
}

func TestEstimatorWorstCaseIsRingMaximum(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("worst case equals the maximum stored observation after every insert", prop.ForAll(
		func(observations []int64, floorMicros int) bool {
			e := NewSleepPrecisionEstimator(time.Duration(floorMicros) * time.Microsecond)
			if e.WorstCase() != maxOf(e.Samples()) {
				return false
			}
			for _, o := range observations {
				e.Observe(time.Duration(o) * time.Microsecond)
				samples := e.Samples()
				if e.WorstCase() != maxOf(samples) {
					return false
				}
				for _, s := range samples {
					if s > MaxSleepObservation || s > e.WorstCase() {
						return false
					}
				}
			}
			return len(e.Samples()) <= SleepTimeSlots
		},
		gen.SliceOfN(400, gen.Int64Range(0, 8000)),
		gen.IntRange(0, 2000),
	))

	properties.TestingRun(t)
}

func TestEstimatorForgetsOldWorstCase(t *testing.T) {
	e := NewSleepPrecisionEstimator(0)
	e.Observe(3 * time.Millisecond)
	for i := 0; i < SleepTimeSlots-2; i++ {
		e.Observe(time.Millisecond)
	}
	if e.WorstCase() != 3*time.Millisecond {
		t.Fatalf("worst case = %v before wrap", e.WorstCase())
	}
	// evicts the 1ms seed, then the 3ms spike
	e.Observe(time.Millisecond)
	e.Observe(time.Millisecond)
	if e.WorstCase() != time.Millisecond {
		t.Fatalf("worst case = %v, want 1ms once the spike left the window", e.WorstCase())
	}
}

func TestEstimatorDropsBelowSeedAfterWrap(t *testing.T) {
	e := NewSleepPrecisionEstimator(0)
	for i := 0; i < SleepTimeSlots; i++ {
		e.Observe(200 * time.Microsecond)
	}
	if e.WorstCase() != 200*time.Microsecond {
		t.Fatalf("worst case = %v, want 200µs", e.WorstCase())
	}
}
