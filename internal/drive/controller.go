package drive

import (
	"sync"

	"github.com/snowball-labs/teleop/internal/control"
	"github.com/snowball-labs/teleop/internal/util"
)

// Actuator is the hardware boundary: something that can hold an ESC pulse
// width and a steering servo angle. GPIO/I2C backends implement this
// elsewhere; LogActuator ships for bring-up without hardware.
type Actuator interface {
	SetThrottlePulse(us int) error
	SetSteeringAngle(deg int) error
}

// LogActuator writes commands to the debug log instead of hardware.
type LogActuator struct{}

func (LogActuator) SetThrottlePulse(us int) error {
	util.LogDebug("actuator: throttle pulse %d us", us)
	return nil
}

func (LogActuator) SetSteeringAngle(deg int) error {
	util.LogDebug("actuator: steering angle %d deg", deg)
	return nil
}

// Controller applies incoming control frames to an actuator. It tracks the
// last applied values and guards against stale (out-of-order) frames.
type Controller struct {
	mu       sync.Mutex
	actuator Actuator

	throttle float64
	steering float64
	lastSeq  uint32
	hasSeq   bool
}

// NewController returns a Controller centered at neutral.
func NewController(a Actuator) *Controller {
	return &Controller{actuator: a}
}

// Ack is the single-byte acknowledgment returned to the pilot for every
// applied frame.
var Ack = []byte{0x00}

// HandleFrame decodes and applies one frame from the data channel. Stale
// frames (sequence at or behind the last applied one, wrap-aware) are
// dropped silently — the link is unreliable-friendly by design. The
// returned ack is nil when the frame was dropped.
func (c *Controller) HandleFrame(data []byte) ([]byte, error) {
	frame, err := control.Decode(data)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.hasSeq && int32(frame.Seq-c.lastSeq) <= 0 {
		return nil, nil
	}
	c.lastSeq = frame.Seq
	c.hasSeq = true

	if frame.Flags&control.FlagEmergencyStop != 0 {
		c.stopLocked()
		return Ack, nil
	}

	c.throttle = clamp(frame.Throttle)
	c.steering = clamp(frame.Steering)
	if err := c.applyLocked(); err != nil {
		return nil, err
	}
	return Ack, nil
}

// Stop forces throttle to neutral and centers the steering. Safe to call at
// any time, including concurrently with HandleFrame.
func (c *Controller) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopLocked()
}

// Current returns the last applied throttle and steering values.
func (c *Controller) Current() (throttle, steering float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.throttle, c.steering
}

func (c *Controller) applyLocked() error {
	if err := c.actuator.SetThrottlePulse(ThrottlePulse(c.throttle)); err != nil {
		return err
	}
	return c.actuator.SetSteeringAngle(SteeringAngle(c.steering))
}

func (c *Controller) stopLocked() {
	c.throttle = 0
	c.steering = 0
	if err := c.actuator.SetThrottlePulse(PulseNeutral); err != nil {
		util.LogError("stop: throttle neutral failed: %v", err)
	}
	if err := c.actuator.SetSteeringAngle(AngleCenter); err != nil {
		util.LogError("stop: steering center failed: %v", err)
	}
}
