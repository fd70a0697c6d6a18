package common

import (
	"cmp"
	"math"
)

// / Clamps the value to the specified range.
// / @param[in]		value			The value to clamp.
// / @param[in]		minInclusive	The minimum permitted return value.
// / @param[in]		maxInclusive	The maximum permitted return value.
// / @return The value, clamped to the specified range.
func Clamp[T cmp.Ordered](value, minInclusive, maxInclusive T) T {
	if value < minInclusive {
		return minInclusive
	}
	if value > maxInclusive {
		return maxInclusive
	}
	return value
}

// Lerp returns a + (b-a)*t. Equal endpoints give back a exactly for any t.
func Lerp[T float32 | float64](a, b, t T) T {
	return a + (b-a)*t
}

// LerpVec4 interpolates each component with Lerp.
func LerpVec4(a, b Vec4, t float32) Vec4 {
	return Vec4{
		Lerp(a[0], b[0], t),
		Lerp(a[1], b[1], t),
		Lerp(a[2], b[2], t),
		Lerp(a[3], b[3], t),
	}
}

// FloorMod is the always non-negative remainder of a / b, b > 0.
func FloorMod(a, b int) int {
	m := a % b
	if m < 0 {
		m += b
	}
	return m
}

func Floor32(v float32) float32 {
	return float32(math.Floor(float64(v)))
}

func IsFinite(v float32) bool {
	return !math.IsInf(float64(v), 0) && !math.IsNaN(float64(v))
}
