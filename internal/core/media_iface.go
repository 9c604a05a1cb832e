package core

import (
	"context"
	"time"

	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"

	"github.com/dkeye/Interview/internal/domain"
)

type MediaConnection interface {
	// Start configures internal callbacks and binds the connection lifetime to ctx.
	Start(ctx context.Context) error
	// Close should stop all underlying media resources.
	Close()
	IsClosed() bool
	// AddICECandidate applies a remote ICE candidate.
	AddICECandidate(webrtc.ICECandidateInit) error
	ApplyAnswer(webrtc.SessionDescription) error
	CreateAndSetOffer() (*webrtc.SessionDescription, error)
	// OnICECandidate sets a callback for newly gathered local ICE candidates.
	OnICECandidate(func(webrtc.ICECandidateInit))
	// OnTrack sets a callback that will be invoked when a new remote track arrives.
	OnTrack(func(ctx context.Context, track *webrtc.TrackRemote, receiver *webrtc.RTPReceiver))
	// AddLocalTrack attaches a locally captured track to the underlying PeerConnection.
	AddLocalTrack(track webrtc.TrackLocal) (*webrtc.RTPSender, error)
	// OnClosed sets a callback for cleanup media session.
	OnClosed(func())
}

// LocalTrack is a camera or microphone capture owned by the connector
// until Stop. Stop is safe to call more than once.
type LocalTrack interface {
	Kind() domain.TrackKind
	Track() webrtc.TrackLocal
	SetEnabled(enabled bool)
	Enabled() bool
	Stop()
}

// CaptureOptions carries capture preferences for a microphone stream.
type CaptureOptions struct {
	EchoCancellation bool
	NoiseSuppression bool
	SampleRate       int
	// ChunkPeriod is the requested chunk delivery interval; zero means the
	// device default.
	ChunkPeriod time.Duration
}

// AudioStream is one recording cycle's microphone stream, independent of
// the room's published track. Must be closed on every exit from the cycle.
type AudioStream interface {
	// MimeType reports the negotiated container format.
	MimeType() string
	// Read returns the next audio chunk, blocking until data or ctx end.
	Read(ctx context.Context) ([]byte, error)
	Close()
}

// MediaDevices acquires local capture devices. Camera and microphone fail
// independently; a failure wraps ErrDevice.
type MediaDevices interface {
	OpenCamera(ctx context.Context) (LocalTrack, error)
	OpenMicrophone(ctx context.Context) (LocalTrack, error)
	// OpenRecordingStream acquires a dedicated microphone stream for one
	// recording cycle, picking the first supported format from preferred.
	OpenRecordingStream(ctx context.Context, opts CaptureOptions, preferred []string) (AudioStream, error)
}

// RemoteSink consumes packets of one remote track: the display surface for
// video, the playback surface for audio.
type RemoteSink interface {
	WriteRTP(pkt *rtp.Packet) error
	Close() error
}

// SinkFactory creates a fresh sink per subscribed remote track.
type SinkFactory interface {
	NewSink(kind domain.TrackKind) (RemoteSink, error)
}

// RoomEventKind tags room-level signaling events.
type RoomEventKind string

const (
	EventParticipantJoined RoomEventKind = "participant_joined"
	EventParticipantLeft   RoomEventKind = "participant_left"
	EventRoomDisconnected  RoomEventKind = "room_disconnected"
)

// RoomEvent is one room-level notification from the signaling channel.
type RoomEvent struct {
	Kind        RoomEventKind
	Participant string
}

// SignalClient is the room signaling transport, the dialing side.
// Owned by the connector; the connector must Close() it.
type SignalClient interface {
	Dial(ctx context.Context) error
	Join(token domain.RoomToken, room domain.RoomName) error
	SendOffer(sdp string) error
	SendCandidate(ci webrtc.ICECandidateInit) error
	OnAnswer(func(sdp string))
	OnCandidate(func(ci webrtc.ICECandidateInit))
	OnEvent(func(ev RoomEvent))
	Close()
}

// RoomConnector joins and leaves the media room. Connect degrades rather
// than fails: device and room errors leave a media-less session behind.
type RoomConnector interface {
	Connect(ctx context.Context, token domain.RoomToken, room domain.RoomName)
	// Disconnect releases every locally owned track, detaches every remote
	// sink and leaves the room. Idempotent.
	Disconnect()
	ToggleMute() bool
	ToggleVideo() bool
	// OnStatusChange reports connection status and camera availability.
	OnStatusChange(func(status domain.ConnectionStatus, cameraAvailable bool))
}
