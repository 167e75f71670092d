// Package config holds the CLI configuration types.
package config

// Relay stores the parameters of the rendezvous relay server.
type Relay struct {
	Addr string // listen address, e.g. ":8080"
}

// Client stores the parameters shared by the pilot and vehicle commands,
// gathered from CLI flags.
type Client struct {
	BaseURL      string // relay base URL, e.g. "wss://relay.example.com"
	Room         string // rendezvous room id
	ChannelLabel string // control data channel label
	Media        bool   // publish local audio/video tracks

	// Pilot-only input shaping.
	PollRate       int     // input samples per second
	Deadzone       float64 // axis deadzone in [0,1)
	ThrottleAxis   int     // input axis index for throttle
	SteeringAxis   int     // input axis index for steering
	InvertThrottle bool
	InvertSteering bool
}
