package control

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Encode serializes a Frame into exactly FrameSize bytes (big-endian).
// Throttle and steering are clamped to [-1, 1] before fixed-point scaling,
// so Encode never fails.
func Encode(f Frame) []byte {
	buf := make([]byte, FrameSize)
	binary.BigEndian.PutUint32(buf[0:4], f.Seq)
	binary.BigEndian.PutUint32(buf[4:8], f.Timestamp)
	binary.BigEndian.PutUint16(buf[8:10], uint16(quantizeAxis(f.Throttle)))
	binary.BigEndian.PutUint16(buf[10:12], uint16(quantizeAxis(f.Steering)))
	binary.BigEndian.PutUint16(buf[12:14], f.Buttons)
	buf[14] = f.Flags
	buf[15] = 0 // reserved
	return buf
}

// Decode deserializes a control frame. The input must be exactly FrameSize
// bytes; anything else is a malformed frame.
func Decode(data []byte) (Frame, error) {
	if len(data) != FrameSize {
		return Frame{}, fmt.Errorf("control frame must be %d bytes, got %d", FrameSize, len(data))
	}
	return Frame{
		Seq:       binary.BigEndian.Uint32(data[0:4]),
		Timestamp: binary.BigEndian.Uint32(data[4:8]),
		Throttle:  float64(int16(binary.BigEndian.Uint16(data[8:10]))) / axisScale,
		Steering:  float64(int16(binary.BigEndian.Uint16(data[10:12]))) / axisScale,
		Buttons:   binary.BigEndian.Uint16(data[12:14]),
		Flags:     data[14],
	}, nil
}

// quantizeAxis clamps a unit axis value to [-1, 1] and scales it to the
// signed fixed-point wire range [-1000, 1000].
func quantizeAxis(v float64) int16 {
	if v > 1 {
		v = 1
	}
	if v < -1 {
		v = -1
	}
	return int16(math.Round(v * axisScale))
}
