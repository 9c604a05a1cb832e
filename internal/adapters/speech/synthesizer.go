package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dkeye/Interview/internal/core"
)

// HTTPSynthesizer talks to an external text-to-speech service.
type HTTPSynthesizer struct {
	baseURL string
	http    *http.Client
}

func NewHTTPSynthesizer(baseURL string, timeout time.Duration) *HTTPSynthesizer {
	return &HTTPSynthesizer{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

func (s *HTTPSynthesizer) Voices(ctx context.Context) ([]core.Voice, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/voices", nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrSpeech, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("%w: voices: status %d", core.ErrSpeech, resp.StatusCode)
	}
	var p struct {
		Voices []core.Voice `json:"voices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
		return nil, fmt.Errorf("%w: voices: %w", core.ErrSpeech, err)
	}
	return p.Voices, nil
}

func (s *HTTPSynthesizer) Synthesize(ctx context.Context, text string, voice core.Voice) (core.Clip, error) {
	body, err := json.Marshal(struct {
		Text    string  `json:"text"`
		VoiceID string  `json:"voice_id"`
		Rate    float64 `json:"rate"`
	}{Text: text, VoiceID: voice.ID, Rate: 0.9})
	if err != nil {
		return core.Clip{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/synthesize", bytes.NewReader(body))
	if err != nil {
		return core.Clip{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.http.Do(req)
	if err != nil {
		return core.Clip{}, fmt.Errorf("%w: %w", core.ErrSpeech, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return core.Clip{}, fmt.Errorf("%w: synthesize: status %d", core.ErrSpeech, resp.StatusCode)
	}
	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return core.Clip{}, fmt.Errorf("%w: synthesize: %w", core.ErrSpeech, err)
	}
	mime := resp.Header.Get("Content-Type")
	if mime == "" {
		mime = "audio/ogg"
	}
	return core.Clip{Audio: audio, MimeType: mime}, nil
}
