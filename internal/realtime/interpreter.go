package realtime

import (
	"encoding/json"
	"log"
	"sort"
	"strconv"
	"strings"

	"formvoice/native/internal/domain"
	"formvoice/native/internal/transcript"
)

// Verifier opens the verification sub-flow for a tool call.
type Verifier interface {
	Prompt(inv domain.ToolInvocation)
}

// ArgsValidator checks tool-call arguments against the tool's parameter schema.
type ArgsValidator interface {
	ValidateArgs(args map[string]any) error
}

// Options configures an Interpreter.
type Options struct {
	ToolName     string
	VerifyPrompt string
	// SessionTools, when set, are registered with session.update before the first response.
	SessionTools []any
	Validator    ArgsValidator

	OnSession    func(id, model string)
	OnUserTurn   func(text string)
	OnTranscript func()
}

// Interpreter applies side-channel events, in arrival order, to the transcript and
// the verification sub-flow. It is not safe for concurrent use.
type Interpreter struct {
	store    *transcript.Store
	send     domain.Sender
	verifier Verifier
	opts     Options

	greeted bool
	acc     strings.Builder
}

// NewInterpreter wires an interpreter to its transcript, side-channel and verifier.
func NewInterpreter(store *transcript.Store, send domain.Sender, verifier Verifier, opts Options) *Interpreter {
	return &Interpreter{
		store:    store,
		send:     send,
		verifier: verifier,
		opts:     opts,
	}
}

// Handle decodes and applies one raw side-channel message. Malformed input is logged
// and dropped.
func (in *Interpreter) Handle(data []byte) {
	ev, err := Decode(data)
	if err != nil {
		log.Printf("[realtime] dropping message: %v", err)
		return
	}
	in.Dispatch(ev)
}

// Dispatch applies one decoded event.
func (in *Interpreter) Dispatch(ev Event) {
	switch e := ev.(type) {
	case SessionCreated:
		in.onSessionCreated(e)
	case InputTranscriptDone:
		in.onUserTranscript(e)
	case ResponseCreated:
		in.acc.Reset()
		in.store.BeginAssistant()
		in.changed()
	case AudioTranscriptDelta:
		in.onDelta(e)
	case AudioTranscriptDone:
		in.onDone(e)
	case FunctionCallArgsDone:
		in.onFunctionCall(e)
	case ProviderError:
		log.Printf("[realtime] provider error: type=%s code=%s msg=%s", e.Error.Type, e.Error.Code, e.Error.Message)
	case Unknown:
		log.Printf("[realtime] unhandled event: %s", e.Tag)
	default:
		log.Printf("[realtime] unhandled event: %s", ev.Type())
	}
}

func (in *Interpreter) onSessionCreated(e SessionCreated) {
	if in.greeted {
		log.Printf("[realtime] duplicate session.created ignored")
		return
	}
	in.greeted = true
	log.Printf("[realtime] session created: id=%s model=%s", e.Session.ID, e.Session.Model)

	if in.opts.OnSession != nil {
		in.opts.OnSession(e.Session.ID, e.Session.Model)
	}
	if len(in.opts.SessionTools) > 0 {
		in.sendOrLog(RegisterTools(in.opts.SessionTools...))
	}
	in.sendOrLog(ResponseCreate())
}

func (in *Interpreter) onUserTranscript(e InputTranscriptDone) {
	text := strings.TrimSpace(e.Transcript)
	if !in.store.Append(domain.RoleUser, text) {
		return
	}
	if in.opts.OnUserTurn != nil {
		in.opts.OnUserTurn(text)
	}
	in.changed()
}

func (in *Interpreter) onDelta(e AudioTranscriptDelta) {
	in.acc.WriteString(e.Delta)
	text := in.acc.String()
	if strings.TrimSpace(text) == "" {
		return
	}
	in.store.UpdateStreaming(text)
	in.changed()
}

func (in *Interpreter) onDone(e AudioTranscriptDone) {
	text := e.Transcript
	if strings.TrimSpace(text) == "" {
		text = in.acc.String()
	}
	in.acc.Reset()
	in.store.FinalizeStreaming(text)
	in.changed()
}

func (in *Interpreter) onFunctionCall(e FunctionCallArgsDone) {
	if in.store.DiscardEmptyStreaming() {
		in.acc.Reset()
		in.changed()
	}

	fields, doc, err := parseArguments(e.Arguments)
	if err != nil {
		log.Printf("[realtime] %s: unparseable arguments: %v", e.Name, err)
	}

	if e.Name != in.opts.ToolName {
		log.Printf("[realtime] ignoring tool call %s (call_id=%s)", e.Name, e.CallID)
		return
	}
	if in.opts.Validator != nil && doc != nil {
		if err := in.opts.Validator.ValidateArgs(doc); err != nil {
			log.Printf("[realtime] %s arguments do not match schema: %v", e.Name, err)
		}
	}
	if e.CallID == "" {
		log.Printf("[realtime] %s call arrived without call_id", e.Name)
	}

	inv := domain.ToolInvocation{CallID: e.CallID, Name: e.Name, Arguments: fields}
	log.Printf("[realtime] verification requested: call_id=%s fields=%s", e.CallID, strings.Join(sortedKeys(fields), ","))

	if in.store.Append(domain.RoleAssistant, in.opts.VerifyPrompt) {
		in.changed()
	}
	if in.verifier != nil {
		in.verifier.Prompt(inv)
	}
}

func (in *Interpreter) sendOrLog(msg any) {
	if err := in.send.Send(msg); err != nil {
		log.Printf("[realtime] send error: %v", err)
	}
}

func (in *Interpreter) changed() {
	if in.opts.OnTranscript != nil {
		in.opts.OnTranscript()
	}
}

// parseArguments flattens a JSON object into field strings. The raw document is
// returned for schema validation.
func parseArguments(raw string) (map[string]string, map[string]any, error) {
	fields := make(map[string]string)
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fields, nil, nil
	}

	var doc map[string]any
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return fields, nil, err
	}
	for k, v := range doc {
		switch val := v.(type) {
		case nil:
		case string:
			fields[k] = strings.TrimSpace(val)
		case float64:
			fields[k] = strconv.FormatFloat(val, 'f', -1, 64)
		case bool:
			fields[k] = strconv.FormatBool(val)
		default:
			b, _ := json.Marshal(val)
			fields[k] = string(b)
		}
	}
	return fields, doc, nil
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
