// Package room joins the interview media room and owns every local media
// resource until Disconnect.
package room

import (
	"context"
	"sync"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Interview/internal/adapters/rtc"
	"github.com/dkeye/Interview/internal/adapters/signal"
	"github.com/dkeye/Interview/internal/core"
	"github.com/dkeye/Interview/internal/domain"
)

// Connector connects the session to its media room. Device and room
// failures degrade the session (audio-only, video-only or media-less)
// instead of aborting it: the question/answer flow must survive without
// anyone on camera.
type Connector struct {
	sid     domain.SessionID
	devices core.MediaDevices
	sinks   core.SinkFactory

	// Injection points, overridable in tests.
	NewSignal     func() core.SignalClient
	NewConnection func(sid domain.SessionID) (core.MediaConnection, error)

	mu              sync.Mutex
	conn            core.MediaConnection
	sig             core.SignalClient
	localVideo      core.LocalTrack
	localAudio      core.LocalTrack
	remote          map[domain.TrackKind]*attachment
	muted           bool
	videoOff        bool
	cameraAvailable bool
	disconnected    bool
	cancel          context.CancelFunc

	onStatus func(status domain.ConnectionStatus, cameraAvailable bool)
}

// attachment is one subscribed remote track bound to its sink.
type attachment struct {
	sink   core.RemoteSink
	cancel context.CancelFunc
}

func NewConnector(sid domain.SessionID, devices core.MediaDevices, sinks core.SinkFactory, signalURL string, stunServers []string) *Connector {
	return &Connector{
		sid:     sid,
		devices: devices,
		sinks:   sinks,
		remote:  make(map[domain.TrackKind]*attachment),
		NewSignal: func() core.SignalClient {
			return signal.NewWSClient(signalURL)
		},
		NewConnection: func(sid domain.SessionID) (core.MediaConnection, error) {
			return rtc.NewWebRTCConnection(rtc.DefaultWebRTCConfig(stunServers), sid)
		},
	}
}

func (c *Connector) OnStatusChange(fn func(domain.ConnectionStatus, bool)) {
	c.onStatus = fn
}

// Connect acquires local devices, joins the room and subscribes room
// events. It never fails the session: every error is logged and leaves a
// degraded but working interview behind.
func (c *Connector) Connect(ctx context.Context, token domain.RoomToken, roomName domain.RoomName) {
	c.reportStatus(domain.StatusConnecting)

	ctx, cancel := context.WithCancel(ctx)
	c.mu.Lock()
	c.cancel = cancel
	c.mu.Unlock()

	c.acquireLocalTracks(ctx)

	sig := c.NewSignal()
	if err := sig.Dial(ctx); err != nil {
		log.Error().Err(err).Str("module", "room").Str("sid", string(c.sid)).Msg("signal dial failed, continuing media-less")
		c.reportStatus(domain.StatusDisconnected)
		return
	}

	conn, err := c.NewConnection(c.sid)
	if err != nil {
		log.Error().Err(err).Str("module", "room").Str("sid", string(c.sid)).Msg("peer connection failed, continuing media-less")
		sig.Close()
		c.reportStatus(domain.StatusDisconnected)
		return
	}

	c.mu.Lock()
	if c.disconnected {
		// Teardown won the race; it snapshotted nil resources, so release
		// everything acquired here before bailing out.
		video, audio := c.localVideo, c.localAudio
		c.localVideo, c.localAudio = nil, nil
		c.mu.Unlock()
		conn.Close()
		sig.Close()
		if video != nil {
			video.Stop()
		}
		if audio != nil {
			audio.Stop()
		}
		c.reportStatus(domain.StatusDisconnected)
		log.Info().Str("module", "room").Str("sid", string(c.sid)).Msg("connect aborted, already disconnected")
		return
	}
	c.sig = sig
	c.conn = conn
	localVideo, localAudio := c.localVideo, c.localAudio
	c.mu.Unlock()

	sig.OnAnswer(func(sdp string) {
		if err := conn.ApplyAnswer(webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: sdp}); err != nil {
			log.Error().Err(err).Str("module", "room").Msg("apply answer")
			return
		}
		c.reportStatus(domain.StatusConnected)
	})
	sig.OnCandidate(func(ci webrtc.ICECandidateInit) {
		if err := conn.AddICECandidate(ci); err != nil {
			log.Error().Err(err).Str("module", "room").Msg("add ice candidate")
		}
	})
	sig.OnEvent(c.handleRoomEvent)

	conn.OnICECandidate(func(ci webrtc.ICECandidateInit) {
		if err := sig.SendCandidate(ci); err != nil {
			log.Error().Err(err).Str("module", "room").Msg("send candidate")
		}
	})
	conn.OnTrack(c.handleRemoteTrack)
	conn.OnClosed(func() {
		c.reportStatus(domain.StatusDisconnected)
	})

	if err := conn.Start(ctx); err != nil {
		log.Error().Err(err).Str("module", "room").Msg("media start failed, continuing media-less")
		conn.Close()
		sig.Close()
		c.reportStatus(domain.StatusDisconnected)
		return
	}

	// Publish whatever local tracks were obtained.
	for _, lt := range []core.LocalTrack{localVideo, localAudio} {
		if lt == nil {
			continue
		}
		if _, err := conn.AddLocalTrack(lt.Track()); err != nil {
			log.Error().Err(err).Str("module", "room").Str("kind", string(lt.Kind())).Msg("publish local track")
		}
	}

	if err := sig.Join(token, roomName); err != nil {
		log.Error().Err(err).Str("module", "room").Msg("join send failed")
	}
	offer, err := conn.CreateAndSetOffer()
	if err != nil {
		log.Error().Err(err).Str("module", "room").Msg("create offer failed, continuing media-less")
		c.reportStatus(domain.StatusDisconnected)
		return
	}
	if err := sig.SendOffer(offer.SDP); err != nil {
		log.Error().Err(err).Str("module", "room").Msg("send offer failed")
		c.reportStatus(domain.StatusDisconnected)
	}
}

// acquireLocalTracks tries camera and microphone independently. Each
// failure degrades; cameraAvailable reflects the video outcome only.
func (c *Connector) acquireLocalTracks(ctx context.Context) {
	video, err := c.devices.OpenCamera(ctx)
	if err != nil {
		log.Warn().Err(err).Str("module", "room").Msg("could not access camera")
	}
	audio, err := c.devices.OpenMicrophone(ctx)
	if err != nil {
		log.Warn().Err(err).Str("module", "room").Msg("could not access microphone")
	}

	c.mu.Lock()
	if c.disconnected {
		c.mu.Unlock()
		if video != nil {
			video.Stop()
		}
		if audio != nil {
			audio.Stop()
		}
		return
	}
	c.localVideo = video
	c.localAudio = audio
	c.cameraAvailable = video != nil
	c.mu.Unlock()
}

// handleRemoteTrack attaches a subscribed remote track to its surface and
// drains it until unsubscribe or teardown. Remote tracks are weak
// references: detach and release, never own.
func (c *Connector) handleRemoteTrack(ctx context.Context, track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
	var kind domain.TrackKind
	switch track.Kind() {
	case webrtc.RTPCodecTypeVideo:
		kind = domain.TrackVideo
	case webrtc.RTPCodecTypeAudio:
		kind = domain.TrackAudio
	default:
		log.Warn().Str("module", "room").Str("kind", track.Kind().String()).Msg("ignoring unknown track kind")
		return
	}

	sink, err := c.sinks.NewSink(kind)
	if err != nil {
		log.Error().Err(err).Str("module", "room").Str("kind", string(kind)).Msg("attach sink")
		return
	}

	drainCtx, cancel := context.WithCancel(ctx)
	att := &attachment{sink: sink, cancel: cancel}
	c.mu.Lock()
	if prev, ok := c.remote[kind]; ok {
		prev.detach(kind)
	}
	c.remote[kind] = att
	c.mu.Unlock()

	log.Info().Str("module", "room").Str("sid", string(c.sid)).Str("kind", string(kind)).Msg("remote track attached")
	go c.drain(drainCtx, kind, att, track, sink)
}

// drain forwards RTP packets from the remote track to its sink, the same
// loop shape as an SFU relay reader.
func (c *Connector) drain(ctx context.Context, kind domain.TrackKind, att *attachment, track *webrtc.TrackRemote, sink core.RemoteSink) {
	defer c.detachRemote(kind, att)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		pkt, _, err := track.ReadRTP()
		if err != nil {
			log.Debug().Err(err).Str("module", "room").Str("kind", string(kind)).Msg("remote track ended")
			return
		}
		if err := sink.WriteRTP(pkt); err != nil {
			log.Error().Err(err).Str("module", "room").Str("kind", string(kind)).Msg("sink write")
			return
		}
	}
}

// detachRemote releases att only while it is still the current attachment
// for kind. A drain ending after its track was superseded must not touch
// the replacement.
func (c *Connector) detachRemote(kind domain.TrackKind, att *attachment) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if cur, ok := c.remote[kind]; ok && cur == att {
		cur.detach(kind)
		delete(c.remote, kind)
	}
}

func (a *attachment) detach(kind domain.TrackKind) {
	a.cancel()
	if err := a.sink.Close(); err != nil {
		log.Error().Err(err).Str("module", "room").Str("kind", string(kind)).Msg("sink close")
	}
}

func (c *Connector) handleRoomEvent(ev core.RoomEvent) {
	switch ev.Kind {
	case core.EventParticipantJoined:
		log.Info().Str("module", "room").Str("participant", ev.Participant).Msg("participant joined")
	case core.EventParticipantLeft:
		log.Info().Str("module", "room").Str("participant", ev.Participant).Msg("participant left")
	case core.EventRoomDisconnected:
		log.Info().Str("module", "room").Str("sid", string(c.sid)).Msg("room disconnected")
		c.reportStatus(domain.StatusDisconnected)
	}
}

// Disconnect leaves the room, stops every locally owned track and
// detaches every remote sink. Safe to call multiple times.
func (c *Connector) Disconnect() {
	c.mu.Lock()
	if c.disconnected {
		c.mu.Unlock()
		return
	}
	c.disconnected = true
	cancel := c.cancel
	conn, sig := c.conn, c.sig
	video, audio := c.localVideo, c.localAudio
	remote := c.remote
	c.remote = make(map[domain.TrackKind]*attachment)
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	for kind, att := range remote {
		att.detach(kind)
	}
	if video != nil {
		video.Stop()
	}
	if audio != nil {
		audio.Stop()
	}
	if conn != nil {
		conn.Close()
	}
	if sig != nil {
		sig.Close()
	}
	c.reportStatus(domain.StatusDisconnected)
	log.Info().Str("module", "room").Str("sid", string(c.sid)).Msg("disconnected")
}

// ToggleMute flips the existing local audio track without recreating it.
// Returns the new muted state.
func (c *Connector) ToggleMute() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.localAudio == nil {
		return c.muted
	}
	c.muted = !c.muted
	c.localAudio.SetEnabled(!c.muted)
	return c.muted
}

// ToggleVideo flips the existing local video track. Returns the new
// video-off state.
func (c *Connector) ToggleVideo() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.localVideo == nil {
		return c.videoOff
	}
	c.videoOff = !c.videoOff
	c.localVideo.SetEnabled(!c.videoOff)
	return c.videoOff
}

func (c *Connector) reportStatus(status domain.ConnectionStatus) {
	c.mu.Lock()
	camera := c.cameraAvailable
	fn := c.onStatus
	c.mu.Unlock()
	if fn != nil {
		fn(status, camera)
	}
}
