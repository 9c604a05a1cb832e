// Package api is the HTTP client for the external session service.
package api

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Interview/internal/core"
	"github.com/dkeye/Interview/internal/domain"
)

type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

type descriptorPayload struct {
	Token                string   `json:"token"`
	RoomName             string   `json:"room_name"`
	Questions            []string `json:"questions"`
	CurrentQuestionIndex int      `json:"current_question_index"`
	Role                 string   `json:"role,omitempty"`
	Topic                string   `json:"topic,omitempty"`
}

func (c *Client) FetchDescriptor(ctx context.Context, id domain.SessionID) (*domain.Descriptor, error) {
	var p descriptorPayload
	if err := c.get(ctx, fmt.Sprintf("/interview/%s", id), &p); err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrInitialization, err)
	}
	d, err := domain.NewDescriptor(id, domain.RoomToken(p.Token), domain.RoomName(p.RoomName), p.Questions, p.CurrentQuestionIndex)
	if err != nil {
		return nil, fmt.Errorf("%w: bad descriptor: %w", core.ErrInitialization, err)
	}
	d.Role = p.Role
	d.Topic = p.Topic
	return d, nil
}

func (c *Client) Status(ctx context.Context, id domain.SessionID) (core.StatusResult, error) {
	var p struct {
		Status               string   `json:"status"`
		CurrentQuestionIndex int      `json:"current_question_index"`
		Questions            []string `json:"questions"`
	}
	if err := c.get(ctx, fmt.Sprintf("/interview-status/%s", id), &p); err != nil {
		return core.StatusResult{}, err
	}
	return core.StatusResult{
		Status:               core.InterviewStatus(p.Status),
		CurrentQuestionIndex: p.CurrentQuestionIndex,
		Questions:            p.Questions,
	}, nil
}

func (c *Client) NextQuestion(ctx context.Context, id domain.SessionID) (core.NextQuestionResult, error) {
	var p struct {
		HasMoreQuestions     bool   `json:"has_more_questions"`
		CurrentQuestionIndex int    `json:"current_question_index"`
		Question             string `json:"question"`
	}
	if err := c.post(ctx, fmt.Sprintf("/interview/%s/next-question", id), nil, &p); err != nil {
		return core.NextQuestionResult{}, err
	}
	return core.NextQuestionResult{
		HasMore:              p.HasMoreQuestions,
		CurrentQuestionIndex: p.CurrentQuestionIndex,
		Question:             p.Question,
	}, nil
}

func (c *Client) RecordResponse(ctx context.Context, id domain.SessionID, questionIndex int, audio []byte, mimeType string) (string, error) {
	req := struct {
		QuestionIndex int    `json:"question_index"`
		AudioBlob     string `json:"audio_blob"`
	}{
		QuestionIndex: questionIndex,
		AudioBlob:     fmt.Sprintf("data:%s;base64,%s", mimeType, base64.StdEncoding.EncodeToString(audio)),
	}
	var p struct {
		Transcription string `json:"transcription"`
	}
	if err := c.post(ctx, fmt.Sprintf("/interview/%s/record-response", id), req, &p); err != nil {
		return "", fmt.Errorf("%w: %w", core.ErrUpload, err)
	}
	return p.Transcription, nil
}

func (c *Client) Complete(ctx context.Context, id domain.SessionID) error {
	var p struct {
		EmailSent bool `json:"email_sent"`
	}
	if err := c.post(ctx, fmt.Sprintf("/interview/%s/complete", id), nil, &p); err != nil {
		return err
	}
	log.Info().Str("module", "api").Str("session", string(id)).Bool("email_sent", p.EmailSent).Msg("session completed")
	return nil
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) post(ctx context.Context, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s %s: status %d: %s", req.Method, req.URL.Path, resp.StatusCode, bytes.TrimSpace(b))
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
