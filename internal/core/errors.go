package core

import "errors"

// Failure classes shared across adapters. Callers branch with errors.Is;
// adapters wrap these with the concrete cause.
var (
	// ErrInitialization: descriptor fetch failed, fatal, nothing starts.
	ErrInitialization = errors.New("initialization failed")
	// ErrDevice: camera/microphone unavailable or denied. Non-fatal for the
	// room connection, fatal for a single recording attempt.
	ErrDevice = errors.New("media device unavailable")
	// ErrSpeech: synthesis failed or was interrupted. Non-fatal.
	ErrSpeech = errors.New("speech delivery failed")
	// ErrNoVoice: no synthetic voice available yet.
	ErrNoVoice = errors.New("no voice available")
	// ErrUpload: recorded response did not reach the server. No auto-advance.
	ErrUpload = errors.New("response upload failed")
	// ErrEmptyRecording: a cycle captured zero bytes. Never uploaded.
	ErrEmptyRecording = errors.New("recording captured no audio")
)
