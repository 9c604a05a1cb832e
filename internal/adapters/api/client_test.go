package api

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dkeye/Interview/internal/core"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, time.Second)
}

func TestFetchDescriptor(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodGet, r.Method)
		require.Equal(t, "/interview/abc", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]any{
			"token":                  "tok",
			"room_name":              "interview-abc",
			"questions":              []string{"Q1", "Q2"},
			"current_question_index": 1,
			"role":                   "Backend Engineer",
		})
	})

	d, err := c.FetchDescriptor(context.Background(), "abc")
	require.NoError(t, err)
	require.Equal(t, "tok", string(d.RoomToken))
	require.Equal(t, "interview-abc", string(d.RoomName))
	require.Equal(t, []string{"Q1", "Q2"}, d.Questions)
	require.Equal(t, 1, d.StartingIndex)
	require.Equal(t, "Backend Engineer", d.Role)
}

func TestFetchDescriptorWrapsFailures(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "session not found", http.StatusNotFound)
	})

	_, err := c.FetchDescriptor(context.Background(), "abc")
	require.ErrorIs(t, err, core.ErrInitialization)
	require.Contains(t, err.Error(), "session not found")
}

func TestFetchDescriptorRejectsInvalidPayload(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		// Missing token.
		json.NewEncoder(w).Encode(map[string]any{"room_name": "r", "questions": []string{"Q1"}})
	})

	_, err := c.FetchDescriptor(context.Background(), "abc")
	require.ErrorIs(t, err, core.ErrInitialization)
}

func TestStatus(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/interview-status/abc", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]any{
			"status":                 "completed",
			"current_question_index": 3,
			"questions":              []string{"Q1", "Q2", "Q3"},
		})
	})

	res, err := c.Status(context.Background(), "abc")
	require.NoError(t, err)
	require.Equal(t, core.InterviewCompleted, res.Status)
	require.Equal(t, 3, res.CurrentQuestionIndex)
	require.Len(t, res.Questions, 3)
}

func TestNextQuestion(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/interview/abc/next-question", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]any{
			"has_more_questions":     true,
			"current_question_index": 1,
			"question":               "Q2",
		})
	})

	res, err := c.NextQuestion(context.Background(), "abc")
	require.NoError(t, err)
	require.True(t, res.HasMore)
	require.Equal(t, 1, res.CurrentQuestionIndex)
	require.Equal(t, "Q2", res.Question)
}

func TestRecordResponseEncodesAudioAsDataURL(t *testing.T) {
	audio := []byte{0x4f, 0x67, 0x67, 0x53}
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/interview/abc/record-response", r.URL.Path)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req struct {
			QuestionIndex int    `json:"question_index"`
			AudioBlob     string `json:"audio_blob"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, 2, req.QuestionIndex)
		want := "data:audio/ogg;codecs=opus;base64," + base64.StdEncoding.EncodeToString(audio)
		require.Equal(t, want, req.AudioBlob)

		json.NewEncoder(w).Encode(map[string]any{"transcription": "my answer"})
	})

	transcription, err := c.RecordResponse(context.Background(), "abc", 2, audio, "audio/ogg;codecs=opus")
	require.NoError(t, err)
	require.Equal(t, "my answer", transcription)
}

func TestRecordResponseWrapsUploadFailure(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "storage unavailable", http.StatusBadGateway)
	})

	_, err := c.RecordResponse(context.Background(), "abc", 0, []byte("x"), "audio/wav")
	require.ErrorIs(t, err, core.ErrUpload)
}

func TestComplete(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/interview/abc/complete", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]any{"email_sent": true})
	})

	require.NoError(t, c.Complete(context.Background(), "abc"))
}

func TestCompleteSurfacesServerError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})

	err := c.Complete(context.Background(), "abc")
	require.Error(t, err)
	require.Contains(t, err.Error(), "status 500")
}
