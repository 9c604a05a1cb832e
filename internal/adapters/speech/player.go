package speech

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Interview/internal/core"
)

const (
	playChunkSize     = 4096
	playChunkInterval = 20 * time.Millisecond
)

// Gate pauses and resumes playback between chunks.
type Gate struct {
	mu   sync.Mutex
	open chan struct{}
}

func NewGate() *Gate {
	g := &Gate{open: make(chan struct{})}
	close(g.open)
	return g
}

func (g *Gate) Set(paused bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	select {
	case <-g.open:
		if paused {
			g.open = make(chan struct{})
		}
	default:
		if !paused {
			close(g.open)
		}
	}
}

// Wait blocks while the gate is paused.
func (g *Gate) Wait(ctx context.Context) error {
	g.mu.Lock()
	open := g.open
	g.mu.Unlock()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-open:
		return nil
	}
}

// WriterPlayer paces a clip onto the playback surface in near-realtime
// chunks. The surface is opened per utterance and always closed.
type WriterPlayer struct {
	Open func() (io.WriteCloser, error)
	Gate *Gate
}

func (p *WriterPlayer) Play(ctx context.Context, clip core.Clip) error {
	out, err := p.Open()
	if err != nil {
		return err
	}
	defer func() {
		if err := out.Close(); err != nil {
			log.Error().Err(err).Str("module", "speech").Msg("playback close")
		}
	}()

	ticker := time.NewTicker(playChunkInterval)
	defer ticker.Stop()

	audio := clip.Audio
	for len(audio) > 0 {
		if p.Gate != nil {
			if err := p.Gate.Wait(ctx); err != nil {
				return err
			}
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
		n := playChunkSize
		if n > len(audio) {
			n = len(audio)
		}
		if _, err := out.Write(audio[:n]); err != nil {
			return err
		}
		audio = audio[n:]
	}
	return nil
}
