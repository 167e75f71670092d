// Package control defines the fixed-size control frame carried over the
// data channel, and its binary codec.
package control

// FrameSize is the exact wire size of every control frame:
// Seq(4) + Timestamp(4) + Throttle(2) + Steering(2) + Buttons(2) + Flags(1) + reserved(1).
const FrameSize = 16

// axisScale converts the unit axis range [-1, 1] to the wire fixed-point
// range [-1000, 1000].
const axisScale = 1000

// Flag bits carried in the Flags field.
const (
	FlagEmergencyStop uint8 = 1 << 0 // drop throttle to neutral immediately
	FlagHeadlights    uint8 = 1 << 1
	FlagHorn          uint8 = 1 << 2
)

// Frame is one control sample produced by the input poller. Throttle and
// Steering are unit values in [-1, 1]; values outside the range are clamped
// by Encode. Seq and Timestamp wrap mod 2^32.
type Frame struct {
	Seq       uint32 // monotonically increasing sample counter
	Timestamp uint32 // milliseconds, producer clock
	Throttle  float64
	Steering  float64
	Buttons   uint16 // lowest 16 buttons, bit i = button i pressed
	Flags     uint8
}
