package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ent0n29/callassist/internal/reliability"
)

const maxResponseBytes = 1 << 20

// WhisperClient posts WAV audio to a whisper-server style endpoint.
type WhisperClient struct {
	httpClient *http.Client
}

func NewWhisperClient(timeout time.Duration) *WhisperClient {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &WhisperClient{httpClient: &http.Client{Timeout: timeout}}
}

type whisperResponse struct {
	Text *string `json:"text"`
}

// Transcribe returns the recognized text. A body that is not the expected
// JSON object is taken as the text itself.
func (c *WhisperClient) Transcribe(ctx context.Context, endpoint string, wav []byte) (string, error) {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return "", fmt.Errorf("transcription endpoint not configured")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(wav))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "audio/wav")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if reliability.IsTimeout(err) {
			return "", fmt.Errorf("transcription timed out: %w", err)
		}
		return "", fmt.Errorf("transcription request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return "", fmt.Errorf("read transcription response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("transcription endpoint returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var parsed whisperResponse
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.Text != nil {
		return strings.TrimSpace(*parsed.Text), nil
	}
	return strings.TrimSpace(string(body)), nil
}
