// Package realtime decodes side-channel events from the realtime provider and
// drives the transcript and tool-call state they imply.
package realtime

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// EventType is the "type" tag of an inbound side-channel message.
type EventType string

const (
	TypeSessionCreated       EventType = "session.created"
	TypeInputTranscriptDone  EventType = "conversation.item.input_audio_transcription.completed"
	TypeResponseCreated      EventType = "response.created"
	TypeAudioTranscriptDelta EventType = "response.audio_transcript.delta"
	TypeAudioTranscriptDone  EventType = "response.audio_transcript.done"
	TypeFunctionCallArgsDone EventType = "response.function_call_arguments.done"
	TypeError                EventType = "error"
)

// ErrNotJSON is returned for payloads that are not a JSON object.
var ErrNotJSON = errors.New("side-channel payload is not a JSON object")

// Event is one decoded inbound message.
type Event interface {
	Type() EventType
}

type SessionCreated struct {
	Session struct {
		ID    string `json:"id"`
		Model string `json:"model"`
	} `json:"session"`
}

type InputTranscriptDone struct {
	ItemID     string `json:"item_id"`
	Transcript string `json:"transcript"`
}

type ResponseCreated struct {
	Response struct {
		ID string `json:"id"`
	} `json:"response"`
}

type AudioTranscriptDelta struct {
	ResponseID string `json:"response_id"`
	ItemID     string `json:"item_id"`
	Delta      string `json:"delta"`
}

type AudioTranscriptDone struct {
	ResponseID string `json:"response_id"`
	ItemID     string `json:"item_id"`
	Transcript string `json:"transcript"`
}

type FunctionCallArgsDone struct {
	CallID    string `json:"call_id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// ProviderError is an "error" event reported by the provider.
type ProviderError struct {
	Error struct {
		Type    string `json:"type"`
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Unknown is any event type the interpreter does not act on.
type Unknown struct {
	Tag string
}

func (SessionCreated) Type() EventType { return TypeSessionCreated }
func (InputTranscriptDone) Type() EventType { return TypeInputTranscriptDone }
func (ResponseCreated) Type() EventType { return TypeResponseCreated }
func (AudioTranscriptDelta) Type() EventType { return TypeAudioTranscriptDelta }
func (AudioTranscriptDone) Type() EventType { return TypeAudioTranscriptDone }
func (FunctionCallArgsDone) Type() EventType { return TypeFunctionCallArgsDone }
func (ProviderError) Type() EventType { return TypeError }
func (u Unknown) Type() EventType { return EventType(u.Tag) }

// Decode parses one side-channel message into its typed variant.
func Decode(data []byte) (Event, error) {
	var envelope struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, ErrNotJSON
	}
	tag := strings.TrimSpace(envelope.Type)

	switch EventType(tag) {
	case TypeSessionCreated:
		return decodeAs[SessionCreated](data, tag)
	case TypeInputTranscriptDone:
		return decodeAs[InputTranscriptDone](data, tag)
	case TypeResponseCreated:
		return decodeAs[ResponseCreated](data, tag)
	case TypeAudioTranscriptDelta:
		return decodeAs[AudioTranscriptDelta](data, tag)
	case TypeAudioTranscriptDone:
		return decodeAs[AudioTranscriptDone](data, tag)
	case TypeFunctionCallArgsDone:
		return decodeAs[FunctionCallArgsDone](data, tag)
	case TypeError:
		return decodeAs[ProviderError](data, tag)
	default:
		return Unknown{Tag: tag}, nil
	}
}

func decodeAs[T Event](data []byte, tag string) (Event, error) {
	var ev T
	if err := json.Unmarshal(data, &ev); err != nil {
		return nil, fmt.Errorf("invalid %s event: %w", tag, err)
	}
	return ev, nil
}
