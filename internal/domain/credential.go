package domain

import (
	"encoding/json"
	"strconv"
	"strings"
)

// CredentialRequest is sent to the backend to mint an ephemeral realtime credential.
type CredentialRequest struct {
	AssessmentMode bool     `json:"assessment_mode,omitempty"`
	Qualification  string   `json:"qualification,omitempty"`
	Experience     string   `json:"experience,omitempty"`
	Questions      []string `json:"questions,omitempty"`
	InterviewID    string   `json:"interview_id,omitempty"`
}

// Credential holds the session descriptor and ephemeral bearer returned by the backend.
type Credential struct {
	ID           string       `json:"id"`
	Model        string       `json:"model"`
	ClientSecret ClientSecret `json:"client_secret"`
}

// ClientSecret is the short-lived token authorizing the SDP exchange.
type ClientSecret struct {
	Value     string `json:"value"`
	ExpiresAt int64  `json:"expires_at"`
}

// SaveRequest is the transcript persistence payload.
type SaveRequest struct {
	SessionID      string         `json:"session_id"`
	Messages       []ExportedTurn `json:"messages"`
	InterviewID    string         `json:"interview_id,omitempty"`
	AssessmentID   string         `json:"-"`
	VerifiedFields VerifiedFields `json:"verified_fields,omitempty"`
}

// SaveResult is the backend acknowledgment for a saved transcript.
type SaveResult struct {
	ConversationID any    `json:"conversation_id,omitempty"`
	AssessmentID   string `json:"assessment_id,omitempty"`
	CreatedAt      string `json:"created_at,omitempty"`
}

// AnalyzeRequest asks the backend to extract structured answers for a saved session.
type AnalyzeRequest struct {
	SessionID      string            `json:"session_id"`
	AssessmentID   string            `json:"-"`
	VerifiedFields VerifiedFields    `json:"verified_fields,omitempty"`
	QAMapping      map[string]string `json:"qa_mapping,omitempty"`
}

// AnalyzeResult carries the extracted answers.
type AnalyzeResult struct {
	SessionID    string            `json:"session_id,omitempty"`
	UserResponse AnswerMap `json:"user_response,omitempty"`
	Answers      AnswerMap `json:"answers,omitempty"`
}

// AnswerMap holds extracted answers as strings. The extractor's output is free-form
// JSON, so numbers and booleans are formatted, nested values are kept as compact JSON
// and nulls are dropped.
type AnswerMap map[string]string

// UnmarshalJSON accepts any JSON object.
func (m *AnswerMap) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw == nil {
		*m = nil
		return nil
	}
	out := make(AnswerMap, len(raw))
	for k, v := range raw {
		switch val := v.(type) {
		case nil:
		case string:
			out[k] = strings.TrimSpace(val)
		case float64:
			out[k] = strconv.FormatFloat(val, 'f', -1, 64)
		case bool:
			out[k] = strconv.FormatBool(val)
		default:
			b, err := json.Marshal(val)
			if err != nil {
				return err
			}
			out[k] = string(b)
		}
	}
	*m = out
	return nil
}

// Extracted returns whichever answer map the backend populated.
func (r *AnalyzeResult) Extracted() map[string]string {
	if r == nil {
		return nil
	}
	if len(r.UserResponse) > 0 {
		return r.UserResponse
	}
	return r.Answers
}
