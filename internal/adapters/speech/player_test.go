package speech

import (
	"bytes"
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dkeye/Interview/internal/core"
)

type memSurface struct {
	mu     sync.Mutex
	buf    bytes.Buffer
	closed bool
}

func (m *memSurface) Write(p []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.buf.Write(p)
}

func (m *memSurface) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *memSurface) written() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.buf.Len()
}

func (m *memSurface) isClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

func TestWriterPlayerWritesWholeClipAndCloses(t *testing.T) {
	surface := &memSurface{}
	p := &WriterPlayer{Open: func() (io.WriteCloser, error) { return surface, nil }}

	audio := bytes.Repeat([]byte{0xAB}, playChunkSize+100)
	err := p.Play(context.Background(), core.Clip{Audio: audio, MimeType: "audio/ogg"})
	require.NoError(t, err)
	require.Equal(t, len(audio), surface.written())
	require.True(t, surface.isClosed())
}

func TestWriterPlayerCancelClosesSurface(t *testing.T) {
	surface := &memSurface{}
	p := &WriterPlayer{Open: func() (io.WriteCloser, error) { return surface, nil }}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := p.Play(ctx, core.Clip{Audio: bytes.Repeat([]byte{1}, playChunkSize*4)})
	require.ErrorIs(t, err, context.Canceled)
	require.True(t, surface.isClosed())
}

func TestGatePausesPlaybackBetweenChunks(t *testing.T) {
	surface := &memSurface{}
	gate := NewGate()
	gate.Set(true)
	p := &WriterPlayer{Open: func() (io.WriteCloser, error) { return surface, nil }, Gate: gate}

	done := make(chan error, 1)
	go func() {
		done <- p.Play(context.Background(), core.Clip{Audio: bytes.Repeat([]byte{1}, playChunkSize)})
	}()

	// Nothing flows while paused.
	time.Sleep(3 * playChunkInterval)
	require.Zero(t, surface.written())

	gate.Set(false)
	require.NoError(t, <-done)
	require.Equal(t, playChunkSize, surface.written())
}

func TestGateSetIsIdempotent(t *testing.T) {
	gate := NewGate()
	gate.Set(false)
	gate.Set(true)
	gate.Set(true)
	gate.Set(false)
	require.NoError(t, gate.Wait(context.Background()))
}
