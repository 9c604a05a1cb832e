package core

import "context"

// RecordingResult reports one finished capture cycle.
type RecordingResult struct {
	QuestionIndex int
	Transcription string
	Bytes         int
}

// Recorder runs bounded audio capture cycles and uploads the result.
// One cycle at a time; starting a new cycle supersedes an active one.
type Recorder interface {
	// Start begins a capture cycle for the given question. Device failures
	// wrap ErrDevice and are fatal to this attempt only.
	Start(ctx context.Context, questionIndex int) error
	// Stop ends the active cycle and triggers assembly + upload. The
	// outcome arrives via the OnFinished callback. No-op when idle.
	Stop()
	Active() bool
	// OnFinished observes the end of every cycle: a result on success, an
	// error (ErrEmptyRecording, ErrUpload, ErrDevice) otherwise.
	OnFinished(func(res RecordingResult, err error))
	// OnStateChange observes recording on/off transitions.
	OnStateChange(func(recording bool))
}
