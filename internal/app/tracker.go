package app

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Interview/internal/core"
	"github.com/dkeye/Interview/internal/domain"
)

// Tracker reconciles local question state with the authoritative server
// state. Question advancement can originate outside this client, so the
// loop adopts what the server reports instead of trusting local state.
type Tracker struct {
	service   core.SessionService
	sessionID domain.SessionID
	interval  time.Duration
	state     *SessionState
	speech    core.SpeechEngine

	onCompleted func(reason domain.EndReason)

	stop     chan struct{}
	stopOnce sync.Once
}

func NewTracker(service core.SessionService, sessionID domain.SessionID, interval time.Duration, state *SessionState, speech core.SpeechEngine, onCompleted func(domain.EndReason)) *Tracker {
	return &Tracker{
		service:     service,
		sessionID:   sessionID,
		interval:    interval,
		state:       state,
		speech:      speech,
		onCompleted: onCompleted,
		stop:        make(chan struct{}),
	}
}

func (t *Tracker) Start(ctx context.Context) {
	go t.loop(ctx)
}

// Stop clears the poll timer. Idempotent; no tick runs after Stop returns
// from the loop's perspective.
func (t *Tracker) Stop() {
	t.stopOnce.Do(func() { close(t.stop) })
}

func (t *Tracker) loop(ctx context.Context) {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.stop:
			return
		case <-ticker.C:
			if !t.tick(ctx) {
				return
			}
		}
	}
}

// tick polls once. Returns false when the tracker should stop.
func (t *Tracker) tick(ctx context.Context) bool {
	res, err := t.service.Status(ctx, t.sessionID)
	if err != nil {
		// Transient poll failures are retried silently on the next tick.
		log.Debug().Err(err).Str("module", "app.tracker").Msg("status poll failed")
		return true
	}

	if res.Status == core.InterviewCompleted {
		log.Info().Str("module", "app.tracker").Msg("server reports session completed")
		t.Stop()
		t.onCompleted(domain.EndServerCompleted)
		return false
	}

	snap := t.state.Snapshot()
	if res.CurrentQuestionIndex == snap.CurrentQuestionIndex {
		return true
	}

	// A partial payload without the question list carries nothing to adopt;
	// skip the tick rather than misread it as past-the-end.
	if len(res.Questions) == 0 {
		log.Debug().Str("module", "app.tracker").Int("index", res.CurrentQuestionIndex).Msg("status payload missing questions, skipping")
		return true
	}

	if res.CurrentQuestionIndex >= len(res.Questions) {
		t.state.SetHasMore(false)
		log.Info().Str("module", "app.tracker").Int("index", res.CurrentQuestionIndex).Msg("server advanced past last question")
		t.Stop()
		t.onCompleted(domain.EndQuestionsDone)
		return false
	}

	text := res.Questions[res.CurrentQuestionIndex]
	hasMore := res.CurrentQuestionIndex+1 < len(res.Questions)
	if !t.state.AdvanceTo(res.CurrentQuestionIndex, text, hasMore) {
		return true
	}
	log.Info().
		Str("module", "app.tracker").
		Int("index", res.CurrentQuestionIndex).
		Msg("adopted server question index")
	if !t.speech.Speaking() {
		t.speech.Speak(text)
	}
	return true
}
