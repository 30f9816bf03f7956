// Package session implements the lifecycle controller that ties the peer, the event
// interpreter, the transcript and the verification sub-flow to one realtime session.
package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"formvoice/native/internal/config"
	"formvoice/native/internal/domain"
	"formvoice/native/internal/realtime"
	"formvoice/native/internal/transcript"
	"formvoice/native/internal/verify"
)

// Persistence outcomes recorded in the archive.
const (
	statusSaved    = "saved"
	statusAnalyzed = "analyzed"
	statusFailed   = "failed"
	statusSkipped  = "skipped"
	statusEmpty    = "empty"
)

// PeerFactory creates the transport for one session, reporting to handler.
type PeerFactory func(handler domain.PeerHandler) domain.Peer

// Options configures a Controller.
type Options struct {
	Profile *config.Profile
	// Tool validates verify arguments; registered with the provider when the profile asks.
	Tool    *verify.Tool
	Archive domain.Archive
	// OnInteract is called for every user interaction.
	OnInteract func()
}

// StopResult summarizes a stop-and-persist.
type StopResult struct {
	SessionID     string
	Turns         int
	SaveStatus    string
	AnalyzeStatus string
	Extracted     map[string]string
}

// Controller owns the one session that may exist at a time. It implements
// domain.Commands.
type Controller struct {
	credentials domain.CredentialFetcher
	persister   domain.TranscriptPersister
	newPeer     PeerFactory
	presenter   domain.Presenter
	opts        Options
	now         func() time.Time

	mu        sync.Mutex
	state     State
	gen       uint64
	session   domain.Session
	credID    string
	peer      domain.Peer
	store     *transcript.Store
	interp    *realtime.Interpreter
	flow      *verify.Flow
	questions *transcript.QuestionTracker
}

// New creates an idle controller.
func New(credentials domain.CredentialFetcher, persister domain.TranscriptPersister, newPeer PeerFactory, presenter domain.Presenter, opts Options) *Controller {
	if opts.Profile == nil {
		opts.Profile = config.DefaultProfile()
	}
	return &Controller{
		credentials: credentials,
		persister:   persister,
		newPeer:     newPeer,
		presenter:   presenter,
		opts:        opts,
		now:         time.Now,
		state:       StateIdle,
	}
}

// State returns the lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Session returns a snapshot of the current session.
func (c *Controller) Session() domain.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

// StartSession runs the start sequence: local media, transport, credential and the
// SDP handshake. The session becomes active when the events channel opens. Any
// failure releases everything acquired and returns the controller to idle.
func (c *Controller) StartSession(ctx context.Context) error {
	c.mu.Lock()
	if c.state != StateIdle {
		c.mu.Unlock()
		return domain.ErrSessionBusy
	}
	c.gen++
	gen := c.gen
	peer := c.newPeer(&subscription{c: c, gen: gen})
	c.begin(peer)
	c.mu.Unlock()

	if err := c.setup(ctx, gen, peer); err != nil {
		c.abort(gen, err)
		return err
	}
	log.Printf("[session] handshake complete, waiting for data channel")
	return nil
}

// begin creates the per-session state. Caller holds c.mu.
func (c *Controller) begin(peer domain.Peer) {
	profile := c.opts.Profile
	store := transcript.NewStore()
	flow := verify.NewFlow(profile.Verification.Fields, peer, store, c.presenter)
	flow.OnTranscriptChange(c.transcriptChanged)

	var questions *transcript.QuestionTracker
	if profile.AssessmentMode {
		questions = transcript.NewQuestionTracker(profile.Questions)
	}

	opts := realtime.Options{
		ToolName:     profile.Verification.Tool,
		VerifyPrompt: profile.Verification.Prompt,
		OnSession:    c.sessionCreated,
		OnTranscript: c.transcriptChanged,
	}
	if c.opts.Tool != nil {
		opts.Validator = c.opts.Tool
		if profile.Verification.RegisterTools {
			opts.SessionTools = []any{c.opts.Tool.Definition()}
		}
	}
	if questions != nil {
		opts.OnUserTurn = func(text string) {
			if key := questions.Attribute(text); key != "" {
				log.Printf("[session] user answer attributed to %s", key)
			}
		}
	}

	c.peer = peer
	c.store = store
	c.flow = flow
	c.questions = questions
	c.interp = realtime.NewInterpreter(store, peer, flow, opts)
	c.credID = ""
	c.session = domain.Session{StartedAt: c.now()}
	c.setState(StateStarting)
}

func (c *Controller) setup(ctx context.Context, gen uint64, peer domain.Peer) error {
	c.presenter.Status("Requesting microphone access...")
	if err := peer.AcquireMedia(ctx); err != nil {
		return &domain.SetupError{Stage: "media", Err: err}
	}

	if err := peer.Open(); err != nil {
		return &domain.SetupError{Stage: "transport", Err: err}
	}

	c.presenter.Status("Requesting session credential...")
	cred, err := c.credentials.FetchCredential(ctx, c.opts.Profile.CredentialRequest())
	if err != nil {
		return &domain.SetupError{Stage: "credential", Err: err}
	}
	c.mu.Lock()
	if gen == c.gen {
		c.credID = cred.ID
		c.session.Model = cred.Model
	}
	c.mu.Unlock()

	c.presenter.Status("Connecting to the interviewer...")
	if err := peer.Negotiate(ctx, cred); err != nil {
		var setup *domain.SetupError
		if errors.As(err, &setup) {
			return err
		}
		return &domain.SetupError{Stage: "exchange", Err: err}
	}
	return nil
}

// abort tears down a session that failed to start. Only the first abort for a
// generation has any effect.
func (c *Controller) abort(gen uint64, cause error) {
	c.mu.Lock()
	if gen != c.gen || c.state != StateStarting {
		c.mu.Unlock()
		return
	}
	c.gen++
	peer := c.peer
	c.reset()
	c.mu.Unlock()

	log.Printf("[session] start failed: %v", cause)
	if err := peer.Close(); err != nil {
		log.Printf("[session] release after failed start: %v", err)
	}
	c.presenter.HideVerification()
	c.presenter.Status("Failed to start: " + cause.Error())
	c.presenter.Toast(domain.ToastError, "Could not start the session.")
}

// StopSession tears the session down and persists its transcript. The returned error
// is a *domain.PersistError when save or analysis failed; the controller is idle
// afterwards either way.
func (c *Controller) StopSession(ctx context.Context) error {
	_, err := c.Stop(ctx)
	return err
}

// Stop is StopSession with a summary of what was persisted.
func (c *Controller) Stop(ctx context.Context) (StopResult, error) {
	c.mu.Lock()
	if !c.state.CanStop() {
		c.mu.Unlock()
		return StopResult{}, domain.ErrStopUnavailable
	}
	c.gen++
	c.setState(StateStopping)
	peer, store, flow, questions := c.peer, c.store, c.flow, c.questions
	sess := c.session
	sessionID := c.sessionIDLocked()
	c.mu.Unlock()

	c.presenter.Status("Ending session...")
	c.teardown(peer)

	turns := store.Export()
	verified := flow.Verified()
	res := StopResult{SessionID: sessionID, Turns: len(turns)}

	var persistErr error
	if len(turns) == 0 {
		log.Printf("[session] transcript empty, skipping save")
		res.SaveStatus, res.AnalyzeStatus = statusEmpty, statusSkipped
		c.presenter.Status("Session ended.")
		c.presenter.Toast(domain.ToastInfo, "Nothing to save: the transcript is empty.")
	} else {
		var answers map[string]string
		if questions != nil {
			answers = questions.Answers()
		}
		res, persistErr = c.persist(ctx, res, turns, verified, answers)
	}

	c.record(ctx, sess, res, turns, verified)

	c.mu.Lock()
	c.reset()
	c.session.Saved = res.SaveStatus == statusSaved
	c.mu.Unlock()
	return res, persistErr
}

// teardown runs each stop step independently.
func (c *Controller) teardown(peer domain.Peer) {
	if peer.ChannelOpen() {
		if err := peer.Send(realtime.ResponseCancel()); err != nil {
			log.Printf("[session] disconnect notice: %v", err)
		}
	}
	if err := peer.Close(); err != nil {
		log.Printf("[session] teardown: %v", err)
	}
	c.presenter.HideVerification()
}

func (c *Controller) persist(ctx context.Context, res StopResult, turns []domain.ExportedTurn, verified domain.VerifiedFields, answers map[string]string) (StopResult, error) {
	profile := c.opts.Profile
	assessmentID := ""
	if profile.AssessmentMode {
		assessmentID = profile.AssessmentID
	}

	c.presenter.Status("Saving transcript...")
	_, err := c.persister.SaveTranscript(ctx, domain.SaveRequest{
		SessionID:      res.SessionID,
		Messages:       turns,
		InterviewID:    profile.InterviewID,
		AssessmentID:   assessmentID,
		VerifiedFields: verified,
	})
	if err != nil {
		log.Printf("[session] save failed: %v", err)
		res.SaveStatus, res.AnalyzeStatus = statusFailed, statusSkipped
		c.presenter.Status("Saving the transcript failed.")
		c.presenter.Toast(domain.ToastError, "Failed to save the transcript.")
		return res, &domain.PersistError{Phase: "save", Err: err}
	}
	res.SaveStatus = statusSaved
	log.Printf("[session] transcript saved: session=%s turns=%d", res.SessionID, len(turns))

	c.presenter.Status("Analyzing transcript...")
	analysis, err := c.persister.AnalyzeTranscript(ctx, domain.AnalyzeRequest{
		SessionID:      res.SessionID,
		AssessmentID:   assessmentID,
		VerifiedFields: verified,
		QAMapping:      answers,
	})
	if err != nil {
		log.Printf("[session] analysis failed: %v", err)
		res.AnalyzeStatus = statusFailed
		c.presenter.Status("Transcript saved; analysis failed.")
		c.presenter.Toast(domain.ToastWarning, "Transcript saved, but analysis failed.")
		return res, &domain.PersistError{Phase: "analyze", Err: err}
	}
	res.AnalyzeStatus = statusAnalyzed
	res.Extracted = analysis.Extracted()

	c.presenter.Status("Transcript saved and analyzed.")
	c.presenter.Toast(domain.ToastSuccess, fmt.Sprintf("Saved %d turns and extracted %d answers.", len(turns), len(res.Extracted)))
	return res, nil
}

func (c *Controller) record(ctx context.Context, sess domain.Session, res StopResult, turns []domain.ExportedTurn, verified domain.VerifiedFields) {
	if c.opts.Archive == nil {
		return
	}
	mode := "interview"
	if c.opts.Profile.AssessmentMode {
		mode = "assessment"
	}
	rec := domain.ArchiveRecord{
		SessionID:     res.SessionID,
		Model:         sess.Model,
		Mode:          mode,
		StartedAt:     sess.StartedAt,
		StoppedAt:     c.now(),
		Turns:         turns,
		Verified:      verified,
		SaveStatus:    res.SaveStatus,
		AnalyzeStatus: res.AnalyzeStatus,
		Extracted:     res.Extracted,
	}
	if err := c.opts.Archive.Record(ctx, rec); err != nil {
		log.Printf("[session] archive: %v", err)
	}
}

// ConfirmVerification resolves the verification prompt with the user's inputs.
func (c *Controller) ConfirmVerification(callID string, fields map[string]string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateActive || c.flow == nil {
		return domain.ErrStaleInvocation
	}
	return c.flow.Confirm(callID, fields)
}

// SkipVerification closes the verification prompt without confirming.
func (c *Controller) SkipVerification() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateActive || c.flow == nil {
		c.presenter.HideVerification()
		return nil
	}
	return c.flow.Skip()
}

// Interact reports a user interaction.
func (c *Controller) Interact() {
	if c.opts.OnInteract != nil {
		c.opts.OnInteract()
	}
}

func (c *Controller) channelOpened(gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen || c.state != StateStarting {
		return
	}
	log.Printf("[session] data channel open, session active")
	c.setState(StateActive)
	c.presenter.Status("Connected. The interviewer will speak first.")
	c.presenter.Toast(domain.ToastSuccess, "Session started.")
}

func (c *Controller) message(gen uint64, data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen || c.interp == nil {
		return
	}
	c.interp.Handle(data)
}

func (c *Controller) channelClosed(gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen || c.state != StateActive {
		return
	}
	log.Printf("[session] data channel closed by remote")
	c.presenter.Status("Connection closed. Stop the session to save the transcript.")
	c.presenter.Toast(domain.ToastWarning, "The connection was closed.")
}

func (c *Controller) connectionState(gen uint64, state string) {
	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		return
	}
	current := c.state
	c.mu.Unlock()

	switch state {
	case "failed", "disconnected":
		log.Printf("[session] connection %s", state)
		if current == StateStarting && state == "failed" {
			c.abort(gen, &domain.SetupError{Stage: "transport", Err: errors.New("connection failed")})
			return
		}
		if current == StateActive {
			c.presenter.Status("Connection " + state + ". Stop the session to save the transcript.")
			c.presenter.Toast(domain.ToastWarning, "Connection "+state+".")
		}
	}
}

// sessionCreated is called by the interpreter under c.mu.
func (c *Controller) sessionCreated(id, model string) {
	if id != "" {
		c.session.ID = id
	}
	if model != "" {
		c.session.Model = model
	}
}

// transcriptChanged is called under c.mu.
func (c *Controller) transcriptChanged() {
	if c.store != nil {
		c.presenter.TranscriptChanged(c.store.Turns())
	}
}

// sessionIDLocked prefers the provider's id, then the credential's.
func (c *Controller) sessionIDLocked() string {
	switch {
	case c.session.ID != "":
		return c.session.ID
	case c.credID != "":
		return c.credID
	default:
		return uuid.NewString()
	}
}

func (c *Controller) setState(s State) {
	c.state = s
	c.session.State = string(s)
	log.Printf("[session] state: %s", s)
	c.presenter.StateChanged(string(s), s.CanStop())
}

func (c *Controller) reset() {
	c.peer = nil
	c.store = nil
	c.interp = nil
	c.flow = nil
	c.questions = nil
	c.setState(StateIdle)
}
