package core

import "context"

// Voice is one synthetic voice offered by the synthesizer.
type Voice struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Language string `json:"language"`
}

// Clip is one synthesized utterance ready for playback.
type Clip struct {
	Audio    []byte
	MimeType string
}

// Synthesizer converts question text to audio. Voice lists may load
// asynchronously, so Voices can legitimately return an empty list early on.
type Synthesizer interface {
	Voices(ctx context.Context) ([]Voice, error)
	Synthesize(ctx context.Context, text string, voice Voice) (Clip, error)
}

// Player renders a clip to the playback surface. Play blocks until the clip
// finishes or ctx is cancelled.
type Player interface {
	Play(ctx context.Context, clip Clip) error
}

// SpeechEngine delivers questions as speech. At most one utterance is in
// flight; Speak supersedes any current one (cancel-then-start, no queue).
type SpeechEngine interface {
	Speak(text string)
	Cancel()
	Speaking() bool
	// SetMuted pauses/resumes playback of the current and following
	// utterances without cancelling them.
	SetMuted(muted bool)
	// OnStateChange observes idle<->speaking transitions.
	OnStateChange(func(speaking bool))
}
