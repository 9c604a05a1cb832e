// Package domain contains entity without logic, just meta-data
package domain

import "errors"

type (
	SessionID string
	RoomName  string
	RoomToken string
)

var (
	ErrEmptySessionID  = errors.New("session id empty")
	ErrEmptyRoomToken  = errors.New("room token empty")
	ErrIndexOutOfRange = errors.New("starting question index out of range")
)

// Descriptor is the immutable session descriptor fetched once at startup.
type Descriptor struct {
	SessionID     SessionID
	RoomToken     RoomToken
	RoomName      RoomName
	Questions     []string
	StartingIndex int
	// Role and Topic are informational, may be empty.
	Role  string
	Topic string
}

// NewDescriptor avoids raw literals in adapters and keeps construction obvious.
func NewDescriptor(id SessionID, token RoomToken, room RoomName, questions []string, startingIndex int) (*Descriptor, error) {
	if id == "" {
		return nil, ErrEmptySessionID
	}
	if token == "" {
		return nil, ErrEmptyRoomToken
	}
	if startingIndex < 0 || (len(questions) > 0 && startingIndex >= len(questions)) {
		return nil, ErrIndexOutOfRange
	}
	qs := make([]string, len(questions))
	copy(qs, questions)
	return &Descriptor{
		SessionID:     id,
		RoomToken:     token,
		RoomName:      room,
		Questions:     qs,
		StartingIndex: startingIndex,
	}, nil
}

// Question returns the question at index i, or "" if i is out of range.
func (d *Descriptor) Question(i int) string {
	if i < 0 || i >= len(d.Questions) {
		return ""
	}
	return d.Questions[i]
}

// HasMore reports whether a question exists after index i.
func (d *Descriptor) HasMore(i int) bool {
	return i+1 < len(d.Questions)
}
