// Package transcript keeps the ordered log of conversation turns for one session.
package transcript

import (
	"strings"
	"time"

	"formvoice/native/internal/domain"
)

// isoLayout matches the millisecond UTC form the backend stores.
const isoLayout = "2006-01-02T15:04:05.000Z"

// streamState tracks the assistant turn belonging to the current response.
type streamState int

const (
	streamIdle  streamState = iota // no response in progress
	streamFresh                    // response.created seen, no text yet
	streamOpen                     // text has been merged into the turn
)

// Store is an insertion-ordered, append/merge-only transcript.
type Store struct {
	turns   []domain.Turn
	stream  streamState
	current int // index of the in-progress assistant turn, -1 when none
	now     func() time.Time
}

// NewStore creates an empty transcript.
func NewStore() *Store {
	return &Store{current: -1, now: time.Now}
}

// Append adds a finalized turn. Whitespace-only text is ignored.
func (s *Store) Append(role domain.Role, text string) bool {
	text = strings.TrimSpace(text)
	if text == "" {
		return false
	}
	s.turns = append(s.turns, domain.Turn{Role: role, Content: text, Timestamp: s.now()})
	return true
}

// BeginAssistant opens an empty in-progress assistant turn for a new response.
// A previous response left open is finalized first, or dropped if it never got text.
func (s *Store) BeginAssistant() {
	if s.current >= 0 {
		if strings.TrimSpace(s.turns[s.current].Content) == "" {
			s.remove(s.current)
		} else {
			s.turns[s.current].Streaming = false
		}
	}
	s.turns = append(s.turns, domain.Turn{Role: domain.RoleAssistant, Timestamp: s.now(), Streaming: true})
	s.current = len(s.turns) - 1
	s.stream = streamFresh
}

// UpdateStreaming replaces the in-progress assistant content with text.
// Never creates a second turn for the same response.
func (s *Store) UpdateStreaming(text string) {
	if strings.TrimSpace(text) == "" {
		return
	}

	switch s.stream {
	case streamFresh:
		s.stream = streamOpen
	case streamOpen:
		if s.current < 0 {
			s.current = s.nearestStreamingAssistant()
		}
	default:
		s.current = s.nearestStreamingAssistant()
		s.stream = streamOpen
	}

	if s.current < 0 {
		s.turns = append(s.turns, domain.Turn{Role: domain.RoleAssistant, Streaming: true})
		s.current = len(s.turns) - 1
	}
	s.turns[s.current].Content = text
	s.turns[s.current].Timestamp = s.now()
}

// FinalizeStreaming closes the current response with text. An empty result removes the
// in-progress turn. Without an in-progress turn a one-shot finalized turn is appended.
func (s *Store) FinalizeStreaming(text string) (domain.Turn, bool) {
	text = strings.TrimSpace(text)
	defer s.resetStream()

	if s.current < 0 {
		if !s.Append(domain.RoleAssistant, text) {
			return domain.Turn{}, false
		}
		return s.turns[len(s.turns)-1], true
	}

	if text == "" {
		s.remove(s.current)
		return domain.Turn{}, false
	}
	t := &s.turns[s.current]
	t.Content = text
	t.Timestamp = s.now()
	t.Streaming = false
	return *t, true
}

// DiscardEmptyStreaming drops the in-progress turn if it has no content.
func (s *Store) DiscardEmptyStreaming() bool {
	if s.current < 0 || strings.TrimSpace(s.turns[s.current].Content) != "" {
		return false
	}
	s.remove(s.current)
	s.resetStream()
	return true
}

// InProgress returns the current streaming assistant turn, if any.
func (s *Store) InProgress() (domain.Turn, bool) {
	if s.current < 0 {
		return domain.Turn{}, false
	}
	return s.turns[s.current], true
}

// Turns returns a snapshot of every turn, including an in-progress one.
func (s *Store) Turns() []domain.Turn {
	out := make([]domain.Turn, len(s.turns))
	copy(out, s.turns)
	return out
}

// Len counts all turns.
func (s *Store) Len() int {
	return len(s.turns)
}

// Export returns the non-empty turns in insertion order with ISO timestamps.
func (s *Store) Export() []domain.ExportedTurn {
	out := make([]domain.ExportedTurn, 0, len(s.turns))
	for _, t := range s.turns {
		content := strings.TrimSpace(t.Content)
		if content == "" {
			continue
		}
		out = append(out, domain.ExportedTurn{
			Role:      string(t.Role),
			Content:   content,
			Timestamp: t.Timestamp.UTC().Format(isoLayout),
		})
	}
	return out
}

func (s *Store) nearestStreamingAssistant() int {
	for i := len(s.turns) - 1; i >= 0; i-- {
		if s.turns[i].Role == domain.RoleAssistant {
			if s.turns[i].Streaming {
				return i
			}
			return -1
		}
	}
	return -1
}

func (s *Store) remove(i int) {
	s.turns = append(s.turns[:i], s.turns[i+1:]...)
	if s.current == i {
		s.current = -1
	} else if s.current > i {
		s.current--
	}
}

func (s *Store) resetStream() {
	s.current = -1
	s.stream = streamIdle
}
