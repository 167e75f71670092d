package input

import "math"

// Deadzone suppresses axis values whose magnitude is below dz, and rescales
// the remaining range [dz, 1] linearly back onto [0, 1] so the full output
// range stays reachable. The mapping is continuous and monotonic in |x|.
//
// dz outside [0, 1) is treated as 0 (no deadzone).
func Deadzone(x, dz float64) float64 {
	if dz <= 0 || dz >= 1 {
		return clampUnit(x)
	}
	mag := math.Abs(x)
	if mag < dz {
		return 0
	}
	scaled := (mag - dz) / (1 - dz)
	if scaled > 1 {
		scaled = 1
	}
	return math.Copysign(scaled, x)
}

func clampUnit(x float64) float64 {
	if x > 1 {
		return 1
	}
	if x < -1 {
		return -1
	}
	return x
}
