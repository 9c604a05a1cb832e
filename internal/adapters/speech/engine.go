// Package speech delivers interview questions as synthesized audio.
package speech

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Interview/internal/core"
)

// Engine keeps exactly one utterance in flight. Speak supersedes the
// current utterance (cancel-then-start); there is no queue, the most
// recent question always wins.
type Engine struct {
	synth     core.Synthesizer
	player    core.Player
	preferred []string
	gate      *Gate

	mu       sync.Mutex
	voice    *core.Voice
	current  *utterance
	speaking bool
	onState  func(speaking bool)
}

type utterance struct {
	id     string
	cancel context.CancelFunc
	done   chan struct{}
}

func NewEngine(synth core.Synthesizer, player core.Player, preferredVoices []string, gate *Gate) *Engine {
	return &Engine{
		synth:     synth,
		player:    player,
		preferred: preferredVoices,
		gate:      gate,
	}
}

func (e *Engine) OnStateChange(fn func(bool)) {
	e.mu.Lock()
	e.onState = fn
	e.mu.Unlock()
}

func (e *Engine) Speaking() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.speaking
}

// SetMuted pauses or resumes playback without cancelling the utterance.
func (e *Engine) SetMuted(muted bool) {
	e.gate.Set(muted)
	log.Info().Str("module", "speech").Bool("muted", muted).Msg("playback gate")
}

// Speak cancels any in-flight utterance, then starts a new one for text.
func (e *Engine) Speak(text string) {
	if text == "" {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	u := &utterance{id: uuid.NewString(), cancel: cancel, done: make(chan struct{})}

	e.mu.Lock()
	prev := e.current
	e.current = u
	e.mu.Unlock()

	if prev != nil {
		prev.cancel()
		<-prev.done
	}
	go e.run(ctx, u, text)
}

// Cancel stops the in-flight utterance immediately. No-op when idle.
func (e *Engine) Cancel() {
	e.mu.Lock()
	cur := e.current
	e.current = nil
	e.mu.Unlock()
	if cur != nil {
		cur.cancel()
		<-cur.done
	}
}

func (e *Engine) run(ctx context.Context, u *utterance, text string) {
	defer close(u.done)
	defer u.cancel()

	voice, err := e.ensureVoice(ctx)
	if err != nil {
		log.Warn().Err(err).Str("module", "speech").Msg("cannot speak yet")
		return
	}

	e.setSpeaking(true)
	defer e.setSpeaking(false)

	log.Info().Str("module", "speech").Str("utterance", u.id).Str("voice", voice.Name).Msg("speaking")

	clip, err := e.synth.Synthesize(ctx, text, voice)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		log.Error().Err(err).Str("module", "speech").Str("utterance", u.id).Msg("synthesis failed")
		return
	}
	if err := e.player.Play(ctx, clip); err != nil && !errors.Is(err, context.Canceled) {
		log.Error().Err(err).Str("module", "speech").Str("utterance", u.id).Msg("playback failed")
		return
	}
	log.Debug().Str("module", "speech").Str("utterance", u.id).Msg("utterance finished")
}

// ensureVoice pins a voice on first success. Voice lists may load
// asynchronously, so an empty list is retried on the next Speak; once a
// voice is selected it is static for the session.
func (e *Engine) ensureVoice(ctx context.Context) (core.Voice, error) {
	e.mu.Lock()
	if e.voice != nil {
		v := *e.voice
		e.mu.Unlock()
		return v, nil
	}
	e.mu.Unlock()

	voices, err := e.synth.Voices(ctx)
	if err != nil {
		return core.Voice{}, err
	}
	if len(voices) == 0 {
		return core.Voice{}, core.ErrNoVoice
	}

	chosen := voices[0]
	for _, name := range e.preferred {
		for _, v := range voices {
			if v.Name == name {
				chosen = v
				break
			}
		}
		if chosen.Name == name {
			break
		}
	}

	e.mu.Lock()
	e.voice = &chosen
	e.mu.Unlock()
	log.Info().Str("module", "speech").Str("voice", chosen.Name).Msg("voice selected")
	return chosen, nil
}

func (e *Engine) setSpeaking(speaking bool) {
	e.mu.Lock()
	if e.speaking == speaking {
		e.mu.Unlock()
		return
	}
	e.speaking = speaking
	fn := e.onState
	e.mu.Unlock()
	if fn != nil {
		fn(speaking)
	}
}
