package media

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/pion/webrtc/v4/pkg/media/oggreader"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Interview/internal/core"
)

// Container formats the microphone feed can deliver natively.
var supportedFormats = []string{"audio/ogg;codecs=opus", "audio/ogg"}

// pickFormat returns the first preferred format the device supports, else
// the device default.
func pickFormat(preferred []string) string {
	for _, want := range preferred {
		for _, have := range supportedFormats {
			if want == have {
				return have
			}
		}
	}
	return supportedFormats[0]
}

// OpenRecordingStream acquires a dedicated microphone stream for one
// recording cycle, independent of the track published to the room.
func (d FeedDevices) OpenRecordingStream(ctx context.Context, opts core.CaptureOptions, preferred []string) (core.AudioStream, error) {
	f, err := os.Open(d.MicrophonePath)
	if err != nil {
		return nil, fmt.Errorf("%w: recording stream: %w", core.ErrDevice, err)
	}
	ogg, _, err := oggreader.NewWith(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: recording feed: %w", core.ErrDevice, err)
	}

	mime := pickFormat(preferred)
	period := opts.ChunkPeriod
	if period <= 0 {
		period = oggPageDuration
	}
	log.Info().
		Str("module", "media").
		Str("mime", mime).
		Dur("chunk_period", period).
		Bool("echo_cancellation", opts.EchoCancellation).
		Bool("noise_suppression", opts.NoiseSuppression).
		Msg("recording stream open")

	return &recordingStream{mime: mime, src: f, ogg: ogg, period: period}, nil
}

type recordingStream struct {
	mime   string
	src    *os.File
	ogg    *oggreader.OggReader
	period time.Duration

	closeOnce sync.Once
}

func (s *recordingStream) MimeType() string { return s.mime }

// Read delivers the next audio page at feed pace. io.EOF marks a drained
// feed; after Close, reads fail with fs.ErrClosed.
func (s *recordingStream) Read(ctx context.Context) ([]byte, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(s.period):
	}
	page, _, err := s.ogg.ParseNextPage()
	if err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("%w: read: %w", core.ErrDevice, err)
	}
	return page, nil
}

func (s *recordingStream) Close() {
	s.closeOnce.Do(func() {
		if err := s.src.Close(); err != nil {
			log.Error().Err(err).Str("module", "media").Msg("recording stream close")
		} else {
			log.Info().Str("module", "media").Msg("recording stream released")
		}
	})
}
