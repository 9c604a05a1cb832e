package domain

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewDescriptorValidates(t *testing.T) {
	_, err := NewDescriptor("", "tok", "room", []string{"Q1"}, 0)
	require.ErrorIs(t, err, ErrEmptySessionID)

	_, err = NewDescriptor("s1", "", "room", []string{"Q1"}, 0)
	require.ErrorIs(t, err, ErrEmptyRoomToken)

	_, err = NewDescriptor("s1", "tok", "room", []string{"Q1"}, 1)
	require.ErrorIs(t, err, ErrIndexOutOfRange)

	_, err = NewDescriptor("s1", "tok", "room", []string{"Q1"}, -1)
	require.ErrorIs(t, err, ErrIndexOutOfRange)

	d, err := NewDescriptor("s1", "tok", "room", []string{"Q1", "Q2"}, 1)
	require.NoError(t, err)
	require.Equal(t, SessionID("s1"), d.SessionID)
	require.Equal(t, 1, d.StartingIndex)
}

func TestDescriptorCopiesQuestions(t *testing.T) {
	qs := []string{"Q1", "Q2"}
	d, err := NewDescriptor("s1", "tok", "room", qs, 0)
	require.NoError(t, err)

	qs[0] = "mutated"
	require.Equal(t, "Q1", d.Question(0))
}

func TestQuestionAndHasMore(t *testing.T) {
	d, err := NewDescriptor("s1", "tok", "room", []string{"Q1", "Q2"}, 0)
	require.NoError(t, err)

	require.Equal(t, "Q1", d.Question(0))
	require.Equal(t, "Q2", d.Question(1))
	require.Equal(t, "", d.Question(2))
	require.Equal(t, "", d.Question(-1))

	require.True(t, d.HasMore(0))
	require.False(t, d.HasMore(1))
	require.False(t, d.HasMore(5))
}
