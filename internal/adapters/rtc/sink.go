package rtc

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/pion/webrtc/v4/pkg/media/ivfwriter"
	"github.com/pion/webrtc/v4/pkg/media/oggwriter"

	"github.com/dkeye/Interview/internal/core"
	"github.com/dkeye/Interview/internal/domain"
)

const (
	playbackSampleRate = 48000
	playbackChannels   = 2
)

// FileSinkFactory materializes display/playback surfaces as container files
// under Dir: IVF for remote video, Ogg for remote audio.
type FileSinkFactory struct {
	Dir string
}

func (f FileSinkFactory) NewSink(kind domain.TrackKind) (core.RemoteSink, error) {
	if err := os.MkdirAll(f.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("sink dir: %w", err)
	}
	switch kind {
	case domain.TrackVideo:
		name := filepath.Join(f.Dir, fmt.Sprintf("remote-%s.ivf", uuid.NewString()))
		w, err := ivfwriter.New(name)
		if err != nil {
			return nil, fmt.Errorf("ivf sink: %w", err)
		}
		return w, nil
	case domain.TrackAudio:
		name := filepath.Join(f.Dir, fmt.Sprintf("remote-%s.ogg", uuid.NewString()))
		w, err := oggwriter.New(name, playbackSampleRate, playbackChannels)
		if err != nil {
			return nil, fmt.Errorf("ogg sink: %w", err)
		}
		return w, nil
	default:
		return nil, fmt.Errorf("unknown track kind %q", kind)
	}
}
