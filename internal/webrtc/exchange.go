package webrtc

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
)

// SDPExchanger posts a local offer to the realtime provider and returns its answer.
type SDPExchanger interface {
	Exchange(ctx context.Context, model, token, offer string) (string, error)
}

// Exchanger is the HTTP SDP exchange with the realtime provider.
type Exchanger struct {
	endpoint string
	http     *http.Client
}

// NewExchanger creates an exchanger for the provider endpoint, e.g.
// https://api.openai.com/v1/realtime.
func NewExchanger(endpoint string) *Exchanger {
	return &Exchanger{
		endpoint: strings.TrimRight(endpoint, "/"),
		http:     &http.Client{},
	}
}

// Exchange POSTs the raw offer as application/sdp, authenticated with the ephemeral
// token, and returns the raw answer body.
func (e *Exchanger) Exchange(ctx context.Context, model, token, offer string) (string, error) {
	u, err := url.Parse(e.endpoint)
	if err != nil {
		return "", fmt.Errorf("parse realtime url: %w", err)
	}
	if model != "" {
		q := u.Query()
		q.Set("model", model)
		u.RawQuery = q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), strings.NewReader(offer))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/sdp")
	req.Header.Set("Authorization", "Bearer "+token)

	log.Printf("[webrtc] POST %s (offer %d bytes)", u.Redacted(), len(offer))

	resp, err := e.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("sdp exchange: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read answer: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("sdp exchange: http %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if len(strings.TrimSpace(string(body))) == 0 {
		return "", fmt.Errorf("sdp exchange: empty answer")
	}

	log.Printf("[webrtc] received answer (%d bytes)", len(body))
	return string(body), nil
}
