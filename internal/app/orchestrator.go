// Package app coordinates the interview session lifecycle.
package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Interview/internal/core"
	"github.com/dkeye/Interview/internal/domain"
)

const completeTimeout = 5 * time.Second

// Orchestrator sequences startup, question advancement and teardown of
// every session resource: the media room, the speech engine, the capture
// pipeline and the progress tracker.
type Orchestrator struct {
	service   core.SessionService
	connector core.RoomConnector
	speech    core.SpeechEngine
	recorder  core.Recorder
	state     *SessionState
	sessionID domain.SessionID

	pollInterval time.Duration

	mu      sync.Mutex
	desc    *domain.Descriptor
	tracker *Tracker
	cancel  context.CancelFunc

	terminateOnce sync.Once
}

func NewOrchestrator(service core.SessionService, connector core.RoomConnector, speech core.SpeechEngine, recorder core.Recorder, state *SessionState, sessionID domain.SessionID, pollInterval time.Duration) *Orchestrator {
	return &Orchestrator{
		service:      service,
		connector:    connector,
		speech:       speech,
		recorder:     recorder,
		state:        state,
		sessionID:    sessionID,
		pollInterval: pollInterval,
	}
}

func (o *Orchestrator) State() *SessionState { return o.state }

// Run initializes the session: fetch the descriptor, seed state, start
// the room connection and the progress tracker, speak the first question.
// On descriptor failure nothing is started and the session is terminal.
func (o *Orchestrator) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	o.mu.Lock()
	o.cancel = cancel
	o.mu.Unlock()

	desc, err := o.service.FetchDescriptor(ctx, o.sessionID)
	if err != nil {
		log.Error().Err(err).Str("module", "app").Str("session", string(o.sessionID)).Msg("initialization failed")
		o.state.SetFailed("Failed to initialize interview room. Please try again.")
		cancel()
		return err
	}

	o.state.Seed(desc)

	o.connector.OnStatusChange(o.state.SetConnection)
	o.speech.OnStateChange(o.state.SetSpeaking)
	o.recorder.OnStateChange(o.state.SetRecording)
	o.recorder.OnFinished(func(res core.RecordingResult, err error) {
		o.handleRecordingFinished(ctx, res, err)
	})

	tracker := NewTracker(o.service, o.sessionID, o.pollInterval, o.state, o.speech, func(reason domain.EndReason) {
		o.Terminate(reason)
	})

	o.mu.Lock()
	o.desc = desc
	o.tracker = tracker
	o.mu.Unlock()

	go o.connector.Connect(ctx, desc.RoomToken, desc.RoomName)
	tracker.Start(ctx)

	if q := desc.Question(desc.StartingIndex); q != "" {
		o.speech.Speak(q)
	}
	log.Info().
		Str("module", "app").
		Str("session", string(o.sessionID)).
		Int("questions", len(desc.Questions)).
		Int("starting_index", desc.StartingIndex).
		Msg("session initialized")
	return nil
}

// NextQuestion advances the interview. While speech is in flight the
// action is overloaded as Stop: it cancels the utterance and advances
// nothing.
func (o *Orchestrator) NextQuestion(ctx context.Context) error {
	if o.speech.Speaking() {
		o.speech.Cancel()
		return nil
	}

	o.state.SetNextLoading(true)
	defer o.state.SetNextLoading(false)

	res, err := o.service.NextQuestion(ctx, o.sessionID)
	if err != nil {
		log.Error().Err(err).Str("module", "app").Msg("next question request failed")
		o.state.SetNotice("Failed to move to next question. Please try again.")
		return err
	}

	if !res.HasMore {
		o.state.SetHasMore(false)
		o.speech.Cancel()
		o.Terminate(domain.EndQuestionsDone)
		return nil
	}

	if o.state.AdvanceTo(res.CurrentQuestionIndex, res.Question, res.HasMore) {
		o.speech.Speak(res.Question)
	}
	return nil
}

// StartRecording begins a capture cycle for the current question.
func (o *Orchestrator) StartRecording(ctx context.Context) error {
	idx := o.state.Snapshot().CurrentQuestionIndex
	if err := o.recorder.Start(ctx, idx); err != nil {
		log.Error().Err(err).Str("module", "app").Msg("could not start recording")
		o.state.SetNotice("Could not start recording. Please check microphone permissions.")
		return err
	}
	return nil
}

func (o *Orchestrator) StopRecording() {
	o.recorder.Stop()
}

// handleRecordingFinished reacts to the end of a capture cycle. A
// successful upload is the explicit advance trigger; every failure keeps
// the current question so the user can retry.
func (o *Orchestrator) handleRecordingFinished(ctx context.Context, res core.RecordingResult, err error) {
	switch {
	case err == nil:
		o.state.SetTranscription(res.Transcription)
		if err := o.NextQuestion(ctx); err != nil {
			log.Error().Err(err).Str("module", "app").Msg("advance after upload failed")
		}
	case errors.Is(err, core.ErrEmptyRecording):
		o.state.SetNotice("No audio was recorded. Please try again.")
	case errors.Is(err, core.ErrUpload):
		o.state.SetNotice("Failed to upload recording. Please try again.")
	case errors.Is(err, context.Canceled):
		// superseded or shutdown, nothing to report
	default:
		o.state.SetNotice(fmt.Sprintf("Recording failed: %v. Please try again.", err))
	}
}

func (o *Orchestrator) ToggleMute() {
	muted := o.connector.ToggleMute()
	o.speech.SetMuted(muted)
	o.state.SetMuted(muted)
}

func (o *Orchestrator) ToggleVideo() {
	o.state.SetVideoOff(o.connector.ToggleVideo())
}

// Terminate tears down every acquired resource and always lands on the
// completed state. Safe to invoke from racing triggers; only the first
// call performs teardown.
func (o *Orchestrator) Terminate(reason domain.EndReason) {
	o.terminateOnce.Do(func() {
		log.Info().Str("module", "app").Str("session", string(o.sessionID)).Str("reason", string(reason)).Msg("terminating session")

		o.mu.Lock()
		tracker := o.tracker
		cancel := o.cancel
		o.mu.Unlock()

		// Each step is guarded on its own; one failure never blocks the rest.
		if tracker != nil {
			tracker.Stop()
		}
		o.connector.Disconnect()
		o.recorder.Stop()
		o.speech.Cancel()

		ctx, done := context.WithTimeout(context.Background(), completeTimeout)
		defer done()
		if err := o.service.Complete(ctx, o.sessionID); err != nil {
			// Best-effort notification; the exit screen is reached anyway.
			log.Error().Err(err).Str("module", "app").Msg("completion notification failed")
		}

		if cancel != nil {
			cancel()
		}
		o.state.SetCompleted(reason)
		log.Info().Str("module", "app").Str("session", string(o.sessionID)).Msg("session terminated")
	})
}
