package app

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Interview/internal/domain"
)

// Snapshot is a read-only view of the session for the control surface.
type Snapshot struct {
	Phase                domain.Phase            `json:"phase"`
	EndReason            domain.EndReason        `json:"end_reason,omitempty"`
	ConnectionStatus     domain.ConnectionStatus `json:"connection_status"`
	CameraAvailable      bool                    `json:"camera_available"`
	CurrentQuestionIndex int                     `json:"current_question_index"`
	CurrentQuestionText  string                  `json:"current_question_text"`
	HasMoreQuestions     bool                    `json:"has_more_questions"`
	Speaking             bool                    `json:"speaking"`
	Recording            bool                    `json:"recording"`
	NextLoading          bool                    `json:"next_loading"`
	Muted                bool                    `json:"muted"`
	VideoOff             bool                    `json:"video_off"`
	Transcription        string                  `json:"transcription,omitempty"`
	Notice               string                  `json:"notice,omitempty"`
}

// SessionState holds the mutable session state. Each field group has a
// single writer; the question fields are shared between the explicit
// advance path and the poll reconciler and protected by the monotonic
// index rule in AdvanceTo.
type SessionState struct {
	mu        sync.Mutex
	snap      Snapshot
	observers []chan Snapshot
}

func NewSessionState() *SessionState {
	return &SessionState{
		snap: Snapshot{
			Phase:            domain.PhaseInitializing,
			ConnectionStatus: domain.StatusConnecting,
		},
	}
}

func (s *SessionState) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap
}

// Subscribe registers a state change channel. Slow observers drop updates
// instead of blocking writers.
func (s *SessionState) Subscribe() chan Snapshot {
	ch := make(chan Snapshot, 8)
	s.mu.Lock()
	s.observers = append(s.observers, ch)
	s.mu.Unlock()
	return ch
}

func (s *SessionState) Unsubscribe(ch chan Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, o := range s.observers {
		if o == ch {
			s.observers = append(s.observers[:i], s.observers[i+1:]...)
			return
		}
	}
}

// Seed applies the descriptor once at initialization.
func (s *SessionState) Seed(d *domain.Descriptor) {
	s.update(func(snap *Snapshot) {
		snap.Phase = domain.PhaseInProgress
		snap.CurrentQuestionIndex = d.StartingIndex
		snap.CurrentQuestionText = d.Question(d.StartingIndex)
		snap.HasMoreQuestions = d.HasMore(d.StartingIndex)
	})
}

// AdvanceTo adopts a question index and text under the last-writer-wins
// rule keyed by monotonic index: a decrease is a stale update and is
// dropped. Reports whether the update was applied.
func (s *SessionState) AdvanceTo(index int, text string, hasMore bool) bool {
	applied := false
	s.update(func(snap *Snapshot) {
		if index < snap.CurrentQuestionIndex {
			log.Debug().
				Str("module", "app.state").
				Int("current", snap.CurrentQuestionIndex).
				Int("stale", index).
				Msg("dropping stale question update")
			return
		}
		if index == snap.CurrentQuestionIndex && snap.CurrentQuestionText != "" {
			return
		}
		snap.CurrentQuestionIndex = index
		snap.CurrentQuestionText = text
		snap.HasMoreQuestions = hasMore
		applied = true
	})
	return applied
}

func (s *SessionState) SetConnection(status domain.ConnectionStatus, cameraAvailable bool) {
	s.update(func(snap *Snapshot) {
		snap.ConnectionStatus = status
		snap.CameraAvailable = cameraAvailable
	})
}

func (s *SessionState) SetSpeaking(speaking bool) {
	s.update(func(snap *Snapshot) { snap.Speaking = speaking })
}

func (s *SessionState) SetRecording(recording bool) {
	s.update(func(snap *Snapshot) { snap.Recording = recording })
}

func (s *SessionState) SetNextLoading(loading bool) {
	s.update(func(snap *Snapshot) { snap.NextLoading = loading })
}

func (s *SessionState) SetMuted(muted bool) {
	s.update(func(snap *Snapshot) { snap.Muted = muted })
}

func (s *SessionState) SetVideoOff(off bool) {
	s.update(func(snap *Snapshot) { snap.VideoOff = off })
}

func (s *SessionState) SetHasMore(hasMore bool) {
	s.update(func(snap *Snapshot) { snap.HasMoreQuestions = hasMore })
}

func (s *SessionState) SetTranscription(text string) {
	s.update(func(snap *Snapshot) { snap.Transcription = text })
}

// SetNotice records transient user-visible feedback.
func (s *SessionState) SetNotice(notice string) {
	s.update(func(snap *Snapshot) { snap.Notice = notice })
}

func (s *SessionState) SetFailed(notice string) {
	s.update(func(snap *Snapshot) {
		snap.Phase = domain.PhaseFailed
		snap.Notice = notice
	})
}

func (s *SessionState) SetCompleted(reason domain.EndReason) {
	s.update(func(snap *Snapshot) {
		snap.Phase = domain.PhaseCompleted
		snap.EndReason = reason
		snap.Speaking = false
		snap.Recording = false
		snap.ConnectionStatus = domain.StatusDisconnected
	})
}

func (s *SessionState) update(mutate func(*Snapshot)) {
	s.mu.Lock()
	before := s.snap
	mutate(&s.snap)
	changed := s.snap != before
	snap := s.snap
	observers := s.observers
	s.mu.Unlock()

	if !changed {
		return
	}
	for _, ch := range observers {
		select {
		case ch <- snap:
		default:
		}
	}
}
