// Package record captures bounded audio answers and uploads them for
// transcription.
package record

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Interview/internal/core"
	"github.com/dkeye/Interview/internal/domain"
)

const captureSampleRate = 16000

// Pipeline runs one recording cycle at a time: acquire a dedicated
// microphone stream, accumulate chunks, auto-stop at the cap, assemble and
// upload. The stream is released on every exit from a cycle, including
// upload failure.
type Pipeline struct {
	devices     core.MediaDevices
	service     core.SessionService
	sessionID   domain.SessionID
	maxLen      time.Duration
	chunkPeriod time.Duration
	preferred   []string

	// startMu serializes Start calls so supersede-and-publish is atomic;
	// without it two racing starts can both see no active cycle and both
	// acquire a stream.
	startMu sync.Mutex

	mu         sync.Mutex
	cycle      *cycle
	onFinished func(core.RecordingResult, error)
	onState    func(recording bool)
}

// cycle owns its capture buffer; buffers are never shared across cycles.
type cycle struct {
	questionIndex int
	stream        core.AudioStream
	cancel        context.CancelFunc
	done          chan struct{}
	buf           [][]byte
	discarded     bool
}

func NewPipeline(devices core.MediaDevices, service core.SessionService, sessionID domain.SessionID, maxLen, chunkPeriod time.Duration, preferredFormats []string) *Pipeline {
	return &Pipeline{
		devices:     devices,
		service:     service,
		sessionID:   sessionID,
		maxLen:      maxLen,
		chunkPeriod: chunkPeriod,
		preferred:   preferredFormats,
	}
}

func (p *Pipeline) OnFinished(fn func(core.RecordingResult, error)) {
	p.mu.Lock()
	p.onFinished = fn
	p.mu.Unlock()
}

func (p *Pipeline) OnStateChange(fn func(bool)) {
	p.mu.Lock()
	p.onState = fn
	p.mu.Unlock()
}

func (p *Pipeline) Active() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cycle != nil
}

// Start begins a capture cycle for questionIndex. An active cycle is
// superseded: cancelled and discarded, never uploaded. Concurrent Start
// calls are serialized; exactly one cycle survives.
func (p *Pipeline) Start(ctx context.Context, questionIndex int) error {
	p.startMu.Lock()
	defer p.startMu.Unlock()

	p.mu.Lock()
	prev := p.cycle
	p.mu.Unlock()
	if prev != nil {
		p.mu.Lock()
		prev.discarded = true
		p.mu.Unlock()
		prev.cancel()
		<-prev.done
		log.Warn().Str("module", "record").Int("question", prev.questionIndex).Msg("recording superseded")
	}

	opts := core.CaptureOptions{
		EchoCancellation: true,
		NoiseSuppression: true,
		SampleRate:       captureSampleRate,
		ChunkPeriod:      p.chunkPeriod,
	}
	stream, err := p.devices.OpenRecordingStream(ctx, opts, p.preferred)
	if err != nil {
		return fmt.Errorf("start recording: %w", err)
	}

	// The cap bounds device hold time even when nobody calls Stop.
	captureCtx, cancel := context.WithTimeout(ctx, p.maxLen)
	c := &cycle{
		questionIndex: questionIndex,
		stream:        stream,
		cancel:        cancel,
		done:          make(chan struct{}),
	}
	p.mu.Lock()
	p.cycle = c
	p.mu.Unlock()
	p.setRecording(true)

	log.Info().Str("module", "record").Int("question", questionIndex).Str("mime", stream.MimeType()).Msg("recording started")
	go p.run(ctx, captureCtx, c)
	return nil
}

// Stop ends the active cycle; assembly and upload continue in the cycle's
// goroutine and report through OnFinished.
func (p *Pipeline) Stop() {
	p.mu.Lock()
	c := p.cycle
	p.mu.Unlock()
	if c == nil {
		return
	}
	c.cancel()
}

// run captures until stop, cap or feed end, then finishes the cycle.
// parent outlives the capture context so the upload can still complete
// after a manual stop.
func (p *Pipeline) run(parent, captureCtx context.Context, c *cycle) {
	defer close(c.done)

	var captureErr error
loop:
	for {
		select {
		case <-captureCtx.Done():
			break loop
		default:
		}
		chunk, err := c.stream.Read(captureCtx)
		if err != nil {
			if errors.Is(err, io.EOF) {
				// Feed drained; hold what we have until stop or cap.
				<-captureCtx.Done()
				break loop
			}
			if captureCtx.Err() != nil {
				break loop
			}
			captureErr = err
			break loop
		}
		if len(chunk) > 0 {
			c.buf = append(c.buf, chunk)
		}
	}
	if errors.Is(captureCtx.Err(), context.DeadlineExceeded) {
		log.Info().Str("module", "record").Int("question", c.questionIndex).Msg("auto-stopped recording at cap")
	}

	mime := c.stream.MimeType()
	c.stream.Close()

	p.mu.Lock()
	if p.cycle == c {
		p.cycle = nil
	}
	discarded := c.discarded
	p.mu.Unlock()
	p.setRecording(false)

	if discarded {
		return
	}
	if captureErr != nil {
		p.finish(core.RecordingResult{QuestionIndex: c.questionIndex}, captureErr)
		return
	}

	payload := assemble(c.buf)
	if len(payload) == 0 {
		log.Error().Str("module", "record").Int("question", c.questionIndex).Msg("no audio data recorded")
		p.finish(core.RecordingResult{QuestionIndex: c.questionIndex}, core.ErrEmptyRecording)
		return
	}

	transcription, err := p.service.RecordResponse(parent, p.sessionID, c.questionIndex, payload, mime)
	if err != nil {
		log.Error().Err(err).Str("module", "record").Int("question", c.questionIndex).Msg("upload failed")
		p.finish(core.RecordingResult{QuestionIndex: c.questionIndex, Bytes: len(payload)}, err)
		return
	}
	log.Info().
		Str("module", "record").
		Int("question", c.questionIndex).
		Int("bytes", len(payload)).
		Msg("response uploaded")
	p.finish(core.RecordingResult{
		QuestionIndex: c.questionIndex,
		Transcription: transcription,
		Bytes:         len(payload),
	}, nil)
}

func assemble(buf [][]byte) []byte {
	var n int
	for _, b := range buf {
		n += len(b)
	}
	out := make([]byte, 0, n)
	for _, b := range buf {
		out = append(out, b...)
	}
	return out
}

func (p *Pipeline) finish(res core.RecordingResult, err error) {
	p.mu.Lock()
	fn := p.onFinished
	p.mu.Unlock()
	if fn != nil {
		fn(res, err)
	}
}

func (p *Pipeline) setRecording(recording bool) {
	p.mu.Lock()
	fn := p.onState
	p.mu.Unlock()
	if fn != nil {
		fn(recording)
	}
}
