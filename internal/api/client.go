package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"

	"formvoice/native/internal/domain"
)

const (
	sessionPath             = "/api/session"
	conversationSavePath    = "/api/conversation/"
	conversationAnalyzePath = "/api/conversation/analyze"
)

// HTTPError is a non-2xx backend response.
type HTTPError struct {
	Status  int
	Message string
	Body    string
}

func (e *HTTPError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("http %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("http %d: %s", e.Status, e.Body)
}

type errorBody struct {
	Error string `json:"error"`
}

// Client talks to the interview backend: credentials, transcript save and analysis.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates an API client for the backend at baseURL.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{},
	}
}

// FetchCredential asks the backend to mint an ephemeral realtime session.
func (c *Client) FetchCredential(ctx context.Context, req domain.CredentialRequest) (*domain.Credential, error) {
	var cred domain.Credential
	if err := c.postJSON(ctx, sessionPath, req, &cred); err != nil {
		return nil, fmt.Errorf("fetch credential: %w", err)
	}
	if strings.TrimSpace(cred.ClientSecret.Value) == "" {
		return nil, domain.ErrMissingCredential
	}
	log.Printf("[api] credential issued: session=%s model=%s", cred.ID, cred.Model)
	return &cred, nil
}

// SaveTranscript persists a finished transcript. Assessment transcripts go to the
// assessment's own endpoint.
func (c *Client) SaveTranscript(ctx context.Context, req domain.SaveRequest) (*domain.SaveResult, error) {
	path := conversationSavePath
	if req.AssessmentID != "" {
		path = "/assessment/" + url.PathEscape(req.AssessmentID) + "/save/"
	}

	var res domain.SaveResult
	if err := c.postJSON(ctx, path, req, &res); err != nil {
		return nil, fmt.Errorf("save transcript: %w", err)
	}
	log.Printf("[api] transcript saved: session=%s messages=%d", req.SessionID, len(req.Messages))
	return &res, nil
}

// AnalyzeTranscript requests structured answer extraction for a saved session.
func (c *Client) AnalyzeTranscript(ctx context.Context, req domain.AnalyzeRequest) (*domain.AnalyzeResult, error) {
	path := conversationAnalyzePath
	if req.AssessmentID != "" {
		path = "/assessment/" + url.PathEscape(req.AssessmentID) + "/analyze/"
	}

	var res domain.AnalyzeResult
	if err := c.postJSON(ctx, path, req, &res); err != nil {
		return nil, fmt.Errorf("analyze transcript: %w", err)
	}
	log.Printf("[api] analysis complete: session=%s fields=%d", req.SessionID, len(res.Extracted()))
	return &res, nil
}

func (c *Client) postJSON(ctx context.Context, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create http request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("X-Request-ID", uuid.NewString())

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		httpErr := &HTTPError{Status: resp.StatusCode, Body: string(respBody)}
		var eb errorBody
		if json.Unmarshal(respBody, &eb) == nil {
			httpErr.Message = eb.Error
		}
		return httpErr
	}

	if out == nil || len(bytes.TrimSpace(respBody)) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}
	return nil
}
