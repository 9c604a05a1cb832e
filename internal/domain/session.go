package domain

// Phase is the coarse lifecycle of one interview session.
type Phase string

const (
	PhaseInitializing Phase = "initializing"
	PhaseInProgress   Phase = "in_progress"
	PhaseCompleted    Phase = "completed"
	PhaseFailed       Phase = "failed"
)

// ConnectionStatus describes the media room link.
type ConnectionStatus string

const (
	StatusConnecting   ConnectionStatus = "connecting"
	StatusConnected    ConnectionStatus = "connected"
	StatusDisconnected ConnectionStatus = "disconnected"
)

// TrackKind is an explicit tag for media tracks; no duck-typing on kind.
type TrackKind string

const (
	TrackVideo TrackKind = "video"
	TrackAudio TrackKind = "audio"
)

// EndReason records which trigger started the teardown.
type EndReason string

const (
	EndUserRequested    EndReason = "user_requested"
	EndQuestionsDone    EndReason = "questions_done"
	EndServerCompleted  EndReason = "server_completed"
	EndClientShutdown   EndReason = "client_shutdown"
	EndInitializeFailed EndReason = "initialize_failed"
)
