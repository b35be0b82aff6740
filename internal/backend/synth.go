package backend

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// ErrNoAudioURL is returned when the synthesis response carries no URL.
var ErrNoAudioURL = errors.New("synthesis response has no audio url")

type synthesisRequest struct {
	Text      string `json:"text"`
	MessageID string `json:"messageId"`
}

type synthesisResponse struct {
	URL      string `json:"url"`
	AudioURL string `json:"audioUrl"`
}

// Synthesize asks the backend to voice plainText for messageID and returns
// an absolute audio URL.
func (c *Client) Synthesize(ctx context.Context, plainText, messageID string) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("synthesis rate limit: %w", err)
	}

	start := time.Now()
	var out synthesisResponse
	if err := c.do(ctx, http.MethodPost, c.synthPath, synthesisRequest{Text: plainText, MessageID: messageID}, &out); err != nil {
		return "", err
	}

	ref := out.URL
	if ref == "" {
		ref = out.AudioURL
	}
	if ref == "" {
		return "", ErrNoAudioURL
	}

	u, err := c.resolve(ref)
	if err != nil {
		return "", err
	}
	c.logger.Debug("Voice synthesized", "message", messageID, "chars", len(plainText), "duration", time.Since(start))
	return u, nil
}

// Name identifies the engine in logs and metrics.
func (c *Client) Name() string { return "backend" }
