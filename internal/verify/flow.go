// Package verify implements the human-in-the-loop verification sub-flow that answers
// the provider's verify tool call.
package verify

import (
	"fmt"
	"log"
	"strings"

	"formvoice/native/internal/config"
	"formvoice/native/internal/domain"
	"formvoice/native/internal/realtime"
	"formvoice/native/internal/transcript"
)

// State of the sub-flow.
type State int

const (
	StateIdle State = iota
	StatePrompted
	StateResolved
)

func (s State) String() string {
	switch s {
	case StatePrompted:
		return "prompted"
	case StateResolved:
		return "resolved"
	default:
		return "idle"
	}
}

// Flow holds at most one outstanding verify invocation and the last confirmed fields.
// It is not safe for concurrent use.
type Flow struct {
	fields    []config.Field
	send      domain.Sender
	store     *transcript.Store
	presenter domain.Presenter
	onChange  func()

	state     State
	pending   *domain.ToolInvocation
	confirmed domain.VerifiedFields
}

// NewFlow creates a verification flow over the configured fields.
func NewFlow(fields []config.Field, send domain.Sender, store *transcript.Store, presenter domain.Presenter) *Flow {
	return &Flow{
		fields:    fields,
		send:      send,
		store:     store,
		presenter: presenter,
	}
}

// OnTranscriptChange registers a callback for turns the flow appends.
func (f *Flow) OnTranscriptChange(fn func()) {
	f.onChange = fn
}

// Prompt makes inv the outstanding invocation and opens the form, pre-filled from the
// call arguments with previously confirmed values as fallback.
func (f *Flow) Prompt(inv domain.ToolInvocation) {
	if f.pending != nil {
		log.Printf("[verify] call %s superseded by %s", f.pending.CallID, inv.CallID)
	}
	f.pending = &inv
	f.state = StatePrompted

	form := domain.VerificationForm{CallID: inv.CallID}
	for _, field := range f.fields {
		value := strings.TrimSpace(inv.Arguments[field.Key])
		if value == "" {
			value = f.confirmed[field.Key]
		}
		form.Fields = append(form.Fields, domain.FormField{
			Key:      field.Key,
			Label:    field.Label,
			Value:    value,
			Required: field.IsRequired(),
		})
	}
	f.presenter.ShowVerification(form)
}

// Confirm resolves the prompt with the user's inputs. callID, when set, must name the
// outstanding invocation; otherwise the call is a no-op. All-empty inputs are rejected
// and leave the prompt open.
func (f *Flow) Confirm(callID string, inputs map[string]string) error {
	if callID != "" && (f.pending == nil || f.pending.CallID != callID) {
		log.Printf("[verify] ignoring confirmation for stale call %s", callID)
		return domain.ErrStaleInvocation
	}

	verified := f.normalize(inputs)
	if len(verified) == 0 {
		f.presenter.Toast(domain.ToastWarning, "Fill in at least one field before confirming.")
		return domain.ErrEmptyVerification
	}

	f.confirmed = verified
	f.state = StateResolved
	f.presenter.HideVerification()

	pending := f.pending
	f.pending = nil

	if pending != nil && pending.CallID != "" {
		log.Printf("[verify] confirmed call %s with %d field(s)", pending.CallID, len(verified))
		f.presenter.Toast(domain.ToastSuccess, "Details confirmed.")
		return f.reply(pending.CallID, realtime.ToolResult{Status: realtime.StatusVerified, Data: verified})
	}

	text := f.summarize(verified)
	log.Printf("[verify] no outstanding call; sending confirmation as a user message")
	f.presenter.Toast(domain.ToastSuccess, "Details confirmed.")
	if f.store.Append(domain.RoleUser, text) && f.onChange != nil {
		f.onChange()
	}
	if err := f.send.Send(realtime.UserMessage(text)); err != nil {
		return fmt.Errorf("send confirmation message: %w", err)
	}
	if err := f.send.Send(realtime.ResponseCreate()); err != nil {
		return fmt.Errorf("resume response: %w", err)
	}
	return nil
}

// Skip closes the form and, if a call is outstanding, reports it as skipped.
func (f *Flow) Skip() error {
	f.presenter.HideVerification()
	f.state = StateResolved

	pending := f.pending
	f.pending = nil
	if pending == nil || pending.CallID == "" {
		return nil
	}
	log.Printf("[verify] skipped call %s", pending.CallID)
	return f.reply(pending.CallID, realtime.ToolResult{Status: realtime.StatusSkipped})
}

// Verified returns the last confirmed fields.
func (f *Flow) Verified() domain.VerifiedFields {
	return f.confirmed.Clone()
}

// Pending returns the outstanding invocation, if any.
func (f *Flow) Pending() (domain.ToolInvocation, bool) {
	if f.pending == nil {
		return domain.ToolInvocation{}, false
	}
	return *f.pending, true
}

// State reports the sub-flow state.
func (f *Flow) State() State {
	return f.state
}

func (f *Flow) reply(callID string, result realtime.ToolResult) error {
	msg, err := realtime.FunctionCallOutput(callID, result)
	if err != nil {
		return err
	}
	if err := f.send.Send(msg); err != nil {
		return fmt.Errorf("send tool result: %w", err)
	}
	if err := f.send.Send(realtime.ResponseCreate()); err != nil {
		return fmt.Errorf("resume response: %w", err)
	}
	return nil
}

func (f *Flow) normalize(inputs map[string]string) domain.VerifiedFields {
	out := make(domain.VerifiedFields)
	if len(f.fields) == 0 {
		for k, v := range inputs {
			if v = strings.TrimSpace(v); v != "" {
				out[strings.TrimSpace(k)] = v
			}
		}
		return out
	}
	for _, field := range f.fields {
		if v := strings.TrimSpace(inputs[field.Key]); v != "" {
			out[field.Key] = v
		}
	}
	return out
}

func (f *Flow) summarize(v domain.VerifiedFields) string {
	var parts []string
	for _, field := range f.fields {
		if val, ok := v[field.Key]; ok {
			parts = append(parts, field.Label+": "+val)
		}
	}
	if len(parts) == 0 {
		for k, val := range v {
			parts = append(parts, k+": "+val)
		}
	}
	return "I confirm my details. " + strings.Join(parts, "; ") + "."
}
