package pacer

import (
	"time"

	"github.com/spaghettifunk/metronome/engine/containers"
	"github.com/spaghettifunk/metronome/engine/math"
)

const (
	// SleepTimeSlots is the number of recent sleep observations kept.
	SleepTimeSlots = 128
	// MaxSleepObservation caps a single observation so one scheduler hiccup
	// cannot push the pacer into spinning for a whole frame.
	MaxSleepObservation = 4 * time.Millisecond
	initialSleepPrecision = time.Millisecond
)

// SleepPrecisionEstimator tracks how long a 1ms sleep really takes on this
// machine. WorstCase always equals the largest stored observation.
type SleepPrecisionEstimator struct {
	samples   *containers.Ring[time.Duration]
	worstCase time.Duration
	floor     time.Duration
}

// NewSleepPrecisionEstimator returns an estimator seeded with a single 1ms
// observation. Observations below floor are raised to it.
func NewSleepPrecisionEstimator(floor time.Duration) *SleepPrecisionEstimator {
	floor = math.Clamp(floor, 0, MaxSleepObservation)
	e := &SleepPrecisionEstimator{
		samples: containers.NewRing[time.Duration](SleepTimeSlots),
		floor:   floor,
	}
	e.samples.Push(math.Clamp(initialSleepPrecision, floor, MaxSleepObservation))
	e.worstCase = e.samples.Max()
	return e
}

// Observe records the measured length of one sleep.
func (e *SleepPrecisionEstimator) Observe(slept time.Duration) {
	slept = math.Clamp(slept, e.floor, MaxSleepObservation)

	evicted, wrapped := e.samples.Push(slept)
	switch {
	case slept >= e.worstCase:
		e.worstCase = slept
	case wrapped && evicted == e.worstCase:
		// the old maximum just left the window
		e.worstCase = e.samples.Max()
	}
}

func (e *SleepPrecisionEstimator) WorstCase() time.Duration {
	return e.worstCase
}

// Samples returns a copy of the stored observations, oldest first.
func (e *SleepPrecisionEstimator) Samples() []time.Duration {
	out := make([]time.Duration, e.samples.Len())
	for i := range out {
		out[i] = e.samples.At(i)
	}
	return out
}
