// Teleop — pilot/vehicle CLI entry point.
//
// One binary serves both ends of a teleoperation link. "drive" is the pilot:
// it samples an input device and streams 16-byte control frames over a
// WebRTC data channel. "vehicle" is the remote end: it applies incoming
// frames to the throttle and steering actuators. The two meet through the
// rendezvous relay and talk directly from then on.
package main

func main() {
	Execute()
}
