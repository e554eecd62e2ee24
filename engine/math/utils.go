package math

import "golang.org/x/exp/constraints"

// Clamp limits f to [low, high].
func Clamp[T constraints.Ordered](f, low, high T) T {
	if f < low {
		return low
	}
	if f > high {
		return high
	}
	return f
}

// PCM16 converts a float sample in [-1, 1] to a signed 16-bit sample.
// Values outside the range saturate.
func PCM16[T constraints.Float](s T) int16 {
	return int16(Clamp(s, -1, 1) * 32767)
}
