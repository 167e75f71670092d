// Package input turns a sampled axis/button source into a stream of
// encoded control frames at a bounded poll rate.
package input

import "math"

// State is one raw sample from an input device: unit axis values in [-1, 1]
// and a bitmask of the lowest 16 buttons.
type State struct {
	Axes    []float64
	Buttons uint16
}

// Source produces input samples on demand. Gamepad hardware lives behind
// this interface; the poller never talks to a device directly.
type Source interface {
	Sample() (State, error)
}

// SyntheticSource is a deterministic stand-in source that sweeps both axes
// sinusoidally. It exists so a link can be exercised end to end without any
// input hardware attached.
type SyntheticSource struct {
	t float64
}

// Sample advances the sweep and returns the next sample. Axis 0 is a slow
// throttle sine, axis 1 a faster steering sine.
func (s *SyntheticSource) Sample() (State, error) {
	s.t += 1.0 / 60
	return State{
		Axes: []float64{
			0.5 * math.Sin(s.t/2),
			math.Sin(s.t),
		},
	}, nil
}
