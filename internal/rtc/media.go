package rtc

import (
	"fmt"

	"github.com/pion/webrtc/v4"

	"github.com/snowball-labs/teleop/internal/session"
)

var _ session.LocalMedia = (*Media)(nil)

// Media publishes the local track set on a peer. The tracks are static
// sample tracks; capture hardware pushes samples into them elsewhere —
// rendering and capture are outside this module.
type Media struct {
	peer    *Peer
	video   *webrtc.TrackLocalStaticSample
	audio   *webrtc.TrackLocalStaticSample
	senders []*webrtc.RTPSender
}

// NewMedia prepares a video+audio track pair for the given peer. Nothing
// touches the connection until Acquire.
func NewMedia(peer *Peer) *Media {
	return &Media{peer: peer}
}

// Acquire creates the tracks and adds them to the peer connection. Adding
// tracks marks the connection as needing negotiation; the session handles
// the resulting offer.
func (m *Media) Acquire() error {
	video, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP8}, "video", "teleop")
	if err != nil {
		return fmt.Errorf("create video track: %w", err)
	}
	audio, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus}, "audio", "teleop")
	if err != nil {
		return fmt.Errorf("create audio track: %w", err)
	}

	for _, track := range []*webrtc.TrackLocalStaticSample{video, audio} {
		sender, err := m.peer.pc.AddTrack(track)
		if err != nil {
			return fmt.Errorf("add %s track: %w", track.Kind(), err)
		}
		m.senders = append(m.senders, sender)
	}

	m.video = video
	m.audio = audio
	return nil
}

// Release removes the published tracks from the connection.
func (m *Media) Release() error {
	for _, sender := range m.senders {
		if err := m.peer.pc.RemoveTrack(sender); err != nil {
			return err
		}
	}
	m.senders = nil
	m.video = nil
	m.audio = nil
	return nil
}

// VideoTrack exposes the video track for a capture pipeline to feed.
func (m *Media) VideoTrack() *webrtc.TrackLocalStaticSample { return m.video }

// AudioTrack exposes the audio track for a capture pipeline to feed.
func (m *Media) AudioTrack() *webrtc.TrackLocalStaticSample { return m.audio }
