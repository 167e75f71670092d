// Package drive consumes control frames on the vehicle side and maps them
// onto actuator commands (ESC pulse widths and servo angles).
package drive

// ESC pulse width range in microseconds. The ESC treats pulses inside the
// deadband as neutral, so commanded motion starts just outside it.
const (
	PulseMin     = 1000 // full reverse
	PulseNeutral = 1500 // stop
	PulseMax     = 2000 // full forward
	deadbandLow  = 1485
	deadbandHigh = 1515
	deadbandGap  = 5 // margin past the deadband before motion starts
)

// Servo calibration: the usable fraction of the servo's travel, as percent
// of full range. Values outside this window can bind the steering linkage.
const (
	servoSafeMinPercent = 10.0
	servoSafeMaxPercent = 90.0
	AngleCenter         = 90
)

// inputDeadzone is the threshold below which an axis command is treated as
// centered. The pilot-side poller usually applies its own deadzone first;
// this one protects the hardware from drift on a raw feed.
const inputDeadzone = 0.05

// ThrottlePulse maps a unit throttle command (positive = forward) to an ESC
// pulse width in microseconds. Commands inside the deadzone map to neutral;
// the rest of the range scales linearly from just outside the ESC deadband
// to the corresponding extreme. Input is clamped to [-1, 1].
func ThrottlePulse(v float64) int {
	v = clamp(v)
	if v > -inputDeadzone && v < inputDeadzone {
		return PulseNeutral
	}
	if v > 0 {
		lo := deadbandHigh + deadbandGap
		return lo + int(float64(PulseMax-lo)*v)
	}
	hi := deadbandLow - deadbandGap
	return hi - int(float64(hi-PulseMin)*(-v))
}

// SteeringAngle maps a unit steering command (-1 = full left) to a servo
// angle in degrees, confined to the calibrated safe travel window. Centered
// commands map to exactly AngleCenter. Input is clamped to [-1, 1].
func SteeringAngle(v float64) int {
	v = clamp(v)
	if v > -inputDeadzone && v < inputDeadzone {
		return AngleCenter
	}

	// -1..1 onto 100..0 percent, then into the safe window, then degrees.
	userPercent := (1.0 - v) * 50.0
	safePercent := servoSafeMinPercent + (userPercent/100.0)*(servoSafeMaxPercent-servoSafeMinPercent)
	angle := int(safePercent * 1.8)

	if angle < 0 {
		angle = 0
	}
	if angle > 180 {
		angle = 180
	}
	return angle
}

func clamp(v float64) float64 {
	if v > 1 {
		return 1
	}
	if v < -1 {
		return -1
	}
	return v
}
