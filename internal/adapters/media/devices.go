// Package media acquires local capture devices from configured feed sources.
package media

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media"
	"github.com/pion/webrtc/v4/pkg/media/ivfreader"
	"github.com/pion/webrtc/v4/pkg/media/oggreader"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Interview/internal/core"
	"github.com/dkeye/Interview/internal/domain"
)

const oggPageDuration = 20 * time.Millisecond

// FeedDevices opens camera and microphone capture from container feeds
// (IVF for video, Ogg/Opus for audio). Both acquisitions fail
// independently; an absent or unreadable feed behaves like a missing or
// denied device.
type FeedDevices struct {
	CameraPath     string
	MicrophonePath string
}

func (d FeedDevices) OpenCamera(ctx context.Context) (core.LocalTrack, error) {
	f, err := os.Open(d.CameraPath)
	if err != nil {
		return nil, fmt.Errorf("%w: camera: %w", core.ErrDevice, err)
	}
	ivf, header, err := ivfreader.NewWith(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: camera feed: %w", core.ErrDevice, err)
	}
	track, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP8}, "video", "camera")
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: camera track: %w", core.ErrDevice, err)
	}

	lt := newLocalTrack(domain.TrackVideo, track, f)
	frameDuration := time.Millisecond * time.Duration(
		(float32(header.TimebaseNumerator)/float32(header.TimebaseDenominator))*1000)
	if frameDuration <= 0 {
		frameDuration = 33 * time.Millisecond
	}
	go lt.pump(frameDuration, func() ([]byte, error) {
		frame, _, err := ivf.ParseNextFrame()
		return frame, err
	})
	return lt, nil
}

func (d FeedDevices) OpenMicrophone(ctx context.Context) (core.LocalTrack, error) {
	f, err := os.Open(d.MicrophonePath)
	if err != nil {
		return nil, fmt.Errorf("%w: microphone: %w", core.ErrDevice, err)
	}
	ogg, _, err := oggreader.NewWith(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: microphone feed: %w", core.ErrDevice, err)
	}
	track, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus}, "audio", "microphone")
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: microphone track: %w", core.ErrDevice, err)
	}

	lt := newLocalTrack(domain.TrackAudio, track, f)
	go lt.pump(oggPageDuration, func() ([]byte, error) {
		page, _, err := ogg.ParseNextPage()
		return page, err
	})
	return lt, nil
}

// localTrack pairs a published sample track with its feed lifecycle.
type localTrack struct {
	kind  domain.TrackKind
	track *webrtc.TrackLocalStaticSample
	src   *os.File

	mu       sync.Mutex
	enabled  bool
	stopped  bool
	stopOnce sync.Once
	done     chan struct{}
}

func newLocalTrack(kind domain.TrackKind, track *webrtc.TrackLocalStaticSample, src *os.File) *localTrack {
	return &localTrack{
		kind:    kind,
		track:   track,
		src:     src,
		enabled: true,
		done:    make(chan struct{}),
	}
}

func (t *localTrack) Kind() domain.TrackKind   { return t.kind }
func (t *localTrack) Track() webrtc.TrackLocal { return t.track }

func (t *localTrack) SetEnabled(enabled bool) {
	t.mu.Lock()
	t.enabled = enabled
	t.mu.Unlock()
	log.Info().Str("module", "media").Str("kind", string(t.kind)).Bool("enabled", enabled).Msg("local track toggled")
}

func (t *localTrack) Enabled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.enabled
}

func (t *localTrack) Stop() {
	t.stopOnce.Do(func() {
		t.mu.Lock()
		t.stopped = true
		t.mu.Unlock()
		close(t.done)
		if err := t.src.Close(); err != nil {
			log.Error().Err(err).Str("module", "media").Str("kind", string(t.kind)).Msg("feed close error")
		}
		log.Info().Str("module", "media").Str("kind", string(t.kind)).Msg("local track stopped")
	})
}

// pump paces feed frames onto the published track. Disabled tracks keep
// the clock running but publish nothing, like a muted device.
func (t *localTrack) pump(interval time.Duration, next func() ([]byte, error)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-t.done:
			return
		case <-ticker.C:
			if !t.Enabled() {
				continue
			}
			data, err := next()
			if err != nil {
				log.Debug().Err(err).Str("module", "media").Str("kind", string(t.kind)).Msg("feed drained")
				return
			}
			if err := t.track.WriteSample(media.Sample{Data: data, Duration: interval}); err != nil {
				log.Error().Err(err).Str("module", "media").Str("kind", string(t.kind)).Msg("write sample")
				return
			}
		}
	}
}
