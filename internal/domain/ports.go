package domain

import (
	"context"
	"time"
)

// CredentialFetcher obtains an ephemeral realtime credential from the backend.
type CredentialFetcher interface {
	FetchCredential(ctx context.Context, req CredentialRequest) (*Credential, error)
}

// TranscriptPersister stores a finished transcript and requests its analysis.
type TranscriptPersister interface {
	SaveTranscript(ctx context.Context, req SaveRequest) (*SaveResult, error)
	AnalyzeTranscript(ctx context.Context, req AnalyzeRequest) (*AnalyzeResult, error)
}

// Sender writes one JSON message to the side-channel.
type Sender interface {
	Send(msg any) error
}

// PeerHandler receives transport events for one session.
type PeerHandler interface {
	OnChannelOpen()
	OnChannelMessage(data []byte)
	OnChannelClose()
	OnConnectionState(state string)
}

// Peer manages local media, the WebRTC transport and its side-channel.
type Peer interface {
	AcquireMedia(ctx context.Context) error
	Open() error
	Negotiate(ctx context.Context, cred *Credential) error
	Send(msg any) error
	ChannelOpen() bool
	Close() error
}

// GestureSource delivers the next user interaction to one-shot subscribers.
type GestureSource interface {
	OnNextGesture(fn func())
}

// Commands are the user actions a UI can trigger.
type Commands interface {
	StartSession(ctx context.Context) error
	StopSession(ctx context.Context) error
	ConfirmVerification(callID string, fields map[string]string) error
	SkipVerification() error
	Interact()
}

// ArchiveRecord is the local journal entry for a stopped session.
type ArchiveRecord struct {
	SessionID     string
	Model         string
	Mode          string
	StartedAt     time.Time
	StoppedAt     time.Time
	Turns         []ExportedTurn
	Verified      VerifiedFields
	SaveStatus    string
	AnalyzeStatus string
	Extracted     map[string]string
}

// Archive keeps a local journal of stopped sessions.
type Archive interface {
	Record(ctx context.Context, rec ArchiveRecord) error
}
