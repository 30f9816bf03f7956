package transcript

import (
	"strconv"
	"strings"
)

// QuestionTracker attributes each finalized user utterance to the next unanswered
// assessment question by position. It does not correlate with what the assistant asked.
type QuestionTracker struct {
	questions []string
	next      int
	answers   map[string]string
}

// NewQuestionTracker tracks answers for the given ordered questions.
func NewQuestionTracker(questions []string) *QuestionTracker {
	return &QuestionTracker{
		questions: questions,
		answers:   make(map[string]string, len(questions)),
	}
}

// Attribute records text as the answer to the next unanswered question.
// It returns the question key, or "" once every question has an answer.
func (q *QuestionTracker) Attribute(text string) string {
	text = strings.TrimSpace(text)
	if text == "" || q.next >= len(q.questions) {
		return ""
	}
	q.next++
	key := "q" + strconv.Itoa(q.next)
	q.answers[key] = text
	return key
}

// Answers returns a copy of the question-key to answer map.
func (q *QuestionTracker) Answers() map[string]string {
	if len(q.answers) == 0 {
		return nil
	}
	out := make(map[string]string, len(q.answers))
	for k, v := range q.answers {
		out[k] = v
	}
	return out
}
