package record

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dkeye/Interview/internal/core"
	"github.com/dkeye/Interview/internal/domain"
)

// scriptedStream yields the scripted chunks then blocks until the
// capture context ends, like a live microphone that ran out of feed.
type scriptedStream struct {
	mu     sync.Mutex
	chunks [][]byte
	drain  bool // report io.EOF after the last chunk instead of blocking
	closed bool
}

func (s *scriptedStream) MimeType() string { return "audio/ogg;codecs=opus" }

func (s *scriptedStream) Read(ctx context.Context) ([]byte, error) {
	s.mu.Lock()
	if len(s.chunks) > 0 {
		chunk := s.chunks[0]
		s.chunks = s.chunks[1:]
		s.mu.Unlock()
		return chunk, nil
	}
	drain := s.drain
	s.mu.Unlock()
	if drain {
		return nil, io.EOF
	}
	<-ctx.Done()
	return nil, ctx.Err()
}

func (s *scriptedStream) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
}

func (s *scriptedStream) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

type fakeDevices struct {
	stream  *scriptedStream
	openErr error
	opens   int
}

func (f *fakeDevices) OpenCamera(ctx context.Context) (core.LocalTrack, error) {
	return nil, io.ErrUnexpectedEOF
}

func (f *fakeDevices) OpenMicrophone(ctx context.Context) (core.LocalTrack, error) {
	return nil, io.ErrUnexpectedEOF
}

func (f *fakeDevices) OpenRecordingStream(ctx context.Context, opts core.CaptureOptions, preferred []string) (core.AudioStream, error) {
	f.opens++
	if f.openErr != nil {
		return nil, f.openErr
	}
	return f.stream, nil
}

type uploadService struct {
	mu            sync.Mutex
	uploads       []int
	payloads      [][]byte
	mimes         []string
	transcription string
	uploadErr     error
}

func (s *uploadService) FetchDescriptor(ctx context.Context, id domain.SessionID) (*domain.Descriptor, error) {
	return nil, io.ErrUnexpectedEOF
}

func (s *uploadService) Status(ctx context.Context, id domain.SessionID) (core.StatusResult, error) {
	return core.StatusResult{}, io.ErrUnexpectedEOF
}

func (s *uploadService) NextQuestion(ctx context.Context, id domain.SessionID) (core.NextQuestionResult, error) {
	return core.NextQuestionResult{}, io.ErrUnexpectedEOF
}

func (s *uploadService) RecordResponse(ctx context.Context, id domain.SessionID, questionIndex int, audio []byte, mimeType string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.uploads = append(s.uploads, questionIndex)
	s.payloads = append(s.payloads, audio)
	s.mimes = append(s.mimes, mimeType)
	if s.uploadErr != nil {
		return "", s.uploadErr
	}
	return s.transcription, nil
}

func (s *uploadService) Complete(ctx context.Context, id domain.SessionID) error { return nil }

func (s *uploadService) uploadCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.uploads)
}

type finished struct {
	res core.RecordingResult
	err error
}

func collectFinished(p *Pipeline) chan finished {
	ch := make(chan finished, 4)
	p.OnFinished(func(res core.RecordingResult, err error) {
		ch <- finished{res, err}
	})
	return ch
}

func TestStopUploadsCapturedAudio(t *testing.T) {
	stream := &scriptedStream{chunks: [][]byte{[]byte("abc"), []byte("def")}}
	devices := &fakeDevices{stream: stream}
	service := &uploadService{transcription: "the answer"}
	p := NewPipeline(devices, service, "s1", time.Minute, 0, nil)
	done := collectFinished(p)

	require.NoError(t, p.Start(context.Background(), 2))
	require.True(t, p.Active())

	// Let both chunks through before stopping.
	require.Eventually(t, func() bool {
		stream.mu.Lock()
		defer stream.mu.Unlock()
		return len(stream.chunks) == 0
	}, time.Second, time.Millisecond)
	p.Stop()

	got := <-done
	require.NoError(t, got.err)
	require.Equal(t, 2, got.res.QuestionIndex)
	require.Equal(t, "the answer", got.res.Transcription)
	require.Equal(t, 6, got.res.Bytes)
	require.Equal(t, [][]byte{[]byte("abcdef")}, service.payloads)
	require.Equal(t, []string{"audio/ogg;codecs=opus"}, service.mimes)
	require.True(t, stream.isClosed())
	require.False(t, p.Active())
}

func TestEmptyCaptureReportsErrorWithoutUpload(t *testing.T) {
	stream := &scriptedStream{}
	devices := &fakeDevices{stream: stream}
	service := &uploadService{}
	p := NewPipeline(devices, service, "s1", time.Minute, 0, nil)
	done := collectFinished(p)

	require.NoError(t, p.Start(context.Background(), 0))
	p.Stop()

	got := <-done
	require.ErrorIs(t, got.err, core.ErrEmptyRecording)
	require.Zero(t, service.uploadCount())
	require.True(t, stream.isClosed())
}

func TestUploadFailureSurfacesError(t *testing.T) {
	stream := &scriptedStream{chunks: [][]byte{[]byte("abc")}}
	devices := &fakeDevices{stream: stream}
	service := &uploadService{uploadErr: core.ErrUpload}
	p := NewPipeline(devices, service, "s1", time.Minute, 0, nil)
	done := collectFinished(p)

	require.NoError(t, p.Start(context.Background(), 1))
	require.Eventually(t, func() bool {
		stream.mu.Lock()
		defer stream.mu.Unlock()
		return len(stream.chunks) == 0
	}, time.Second, time.Millisecond)
	p.Stop()

	got := <-done
	require.ErrorIs(t, got.err, core.ErrUpload)
	require.Equal(t, 1, got.res.QuestionIndex)
	require.True(t, stream.isClosed())
}

func TestCaptureAutoStopsAtCap(t *testing.T) {
	stream := &scriptedStream{chunks: [][]byte{[]byte("abc")}}
	devices := &fakeDevices{stream: stream}
	service := &uploadService{transcription: "t"}
	p := NewPipeline(devices, service, "s1", 30*time.Millisecond, 0, nil)
	done := collectFinished(p)

	require.NoError(t, p.Start(context.Background(), 0))

	// Nobody calls Stop; the cap ends the cycle on its own.
	got := <-done
	require.NoError(t, got.err)
	require.Equal(t, 3, got.res.Bytes)
	require.True(t, stream.isClosed())
	require.False(t, p.Active())
}

func TestDrainedFeedWaitsForStop(t *testing.T) {
	stream := &scriptedStream{chunks: [][]byte{[]byte("abc")}, drain: true}
	devices := &fakeDevices{stream: stream}
	service := &uploadService{transcription: "t"}
	p := NewPipeline(devices, service, "s1", time.Minute, 0, nil)
	done := collectFinished(p)

	require.NoError(t, p.Start(context.Background(), 0))

	// The feed hit its end but the cycle holds the audio until Stop.
	time.Sleep(20 * time.Millisecond)
	require.True(t, p.Active())
	p.Stop()

	got := <-done
	require.NoError(t, got.err)
	require.Equal(t, 3, got.res.Bytes)
}

func TestStartSupersedesActiveCycle(t *testing.T) {
	stream := &scriptedStream{chunks: [][]byte{[]byte("first")}}
	devices := &fakeDevices{stream: stream}
	service := &uploadService{transcription: "t"}
	p := NewPipeline(devices, service, "s1", time.Minute, 0, nil)
	done := collectFinished(p)

	require.NoError(t, p.Start(context.Background(), 0))
	require.Eventually(t, func() bool {
		stream.mu.Lock()
		defer stream.mu.Unlock()
		return len(stream.chunks) == 0
	}, time.Second, time.Millisecond)

	second := &scriptedStream{chunks: [][]byte{[]byte("second")}}
	devices.stream = second
	require.NoError(t, p.Start(context.Background(), 1))
	require.Eventually(t, func() bool {
		second.mu.Lock()
		defer second.mu.Unlock()
		return len(second.chunks) == 0
	}, time.Second, time.Millisecond)
	p.Stop()

	got := <-done
	require.NoError(t, got.err)
	// Only the superseding cycle reports; the first is discarded unsent.
	require.Equal(t, 1, got.res.QuestionIndex)
	require.Equal(t, [][]byte{[]byte("second")}, service.payloads)
	require.True(t, stream.isClosed())
	select {
	case extra := <-done:
		t.Fatalf("unexpected extra report: %+v", extra)
	case <-time.After(50 * time.Millisecond):
	}
}

// slowDevices opens a fresh stream per call after a delay, widening the
// window between the supersede check and cycle publication.
type slowDevices struct {
	mu      sync.Mutex
	delay   time.Duration
	streams []*scriptedStream
}

func (d *slowDevices) OpenCamera(ctx context.Context) (core.LocalTrack, error) {
	return nil, io.ErrUnexpectedEOF
}

func (d *slowDevices) OpenMicrophone(ctx context.Context) (core.LocalTrack, error) {
	return nil, io.ErrUnexpectedEOF
}

func (d *slowDevices) OpenRecordingStream(ctx context.Context, opts core.CaptureOptions, preferred []string) (core.AudioStream, error) {
	time.Sleep(d.delay)
	s := &scriptedStream{chunks: [][]byte{[]byte("x")}}
	d.mu.Lock()
	d.streams = append(d.streams, s)
	d.mu.Unlock()
	return s, nil
}

func (d *slowDevices) opened() []*scriptedStream {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]*scriptedStream, len(d.streams))
	copy(out, d.streams)
	return out
}

func TestConcurrentStartsLeaveOneActiveCycle(t *testing.T) {
	devices := &slowDevices{delay: 20 * time.Millisecond}
	service := &uploadService{transcription: "t"}
	p := NewPipeline(devices, service, "s1", time.Minute, 0, nil)
	done := collectFinished(p)

	barrier := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			<-barrier
			if err := p.Start(context.Background(), idx); err != nil {
				t.Error(err)
			}
		}(i)
	}
	close(barrier)
	wg.Wait()

	// The loser superseded the winner: two streams were opened, the first
	// is already discarded and closed.
	streams := devices.opened()
	require.Len(t, streams, 2)
	require.True(t, streams[0].isClosed())
	require.True(t, p.Active())

	require.Eventually(t, func() bool {
		s := streams[1]
		s.mu.Lock()
		defer s.mu.Unlock()
		return len(s.chunks) == 0
	}, time.Second, time.Millisecond)
	p.Stop()

	got := <-done
	require.NoError(t, got.err)
	require.Equal(t, 1, service.uploadCount())
	select {
	case extra := <-done:
		t.Fatalf("unexpected extra report: %+v", extra)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestStartFailsWhenDeviceUnavailable(t *testing.T) {
	devices := &fakeDevices{openErr: core.ErrDevice}
	p := NewPipeline(devices, &uploadService{}, "s1", time.Minute, 0, nil)

	err := p.Start(context.Background(), 0)
	require.ErrorIs(t, err, core.ErrDevice)
	require.False(t, p.Active())
}
