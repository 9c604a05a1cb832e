package core

import (
	"context"

	"github.com/dkeye/Interview/internal/domain"
)

// InterviewStatus is the authoritative server-side session status.
type InterviewStatus string

const (
	InterviewInProgress InterviewStatus = "in_progress"
	InterviewCompleted  InterviewStatus = "completed"
)

// StatusResult is produced on each poll tick. Transient.
type StatusResult struct {
	Status               InterviewStatus
	CurrentQuestionIndex int
	Questions            []string
}

// NextQuestionResult is the server's answer to an explicit advance request.
type NextQuestionResult struct {
	HasMore              bool
	CurrentQuestionIndex int
	Question             string
}

// SessionService is the external session collaborator.
// Owned by the adapter; every call suspends on network I/O.
type SessionService interface {
	// FetchDescriptor gets the immutable session descriptor. A failure here
	// is fatal to the session (ErrInitialization).
	FetchDescriptor(ctx context.Context, id domain.SessionID) (*domain.Descriptor, error)
	// Status polls authoritative state. Transient failures are the caller's
	// problem to ignore.
	Status(ctx context.Context, id domain.SessionID) (StatusResult, error)
	// NextQuestion asks the server to advance.
	NextQuestion(ctx context.Context, id domain.SessionID) (NextQuestionResult, error)
	// RecordResponse uploads one captured answer and returns the
	// transcription. Failures wrap ErrUpload.
	RecordResponse(ctx context.Context, id domain.SessionID, questionIndex int, audio []byte, mimeType string) (string, error)
	// Complete notifies the server the session ended. Best-effort.
	Complete(ctx context.Context, id domain.SessionID) error
}
