package webrtc

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	pion "github.com/pion/webrtc/v4"

	"formvoice/native/internal/domain"
)

// answerer plays the realtime provider: it answers the POSTed offer with a pion peer
// that greets on the events channel and records what it receives.
type answerer struct {
	t *testing.T

	mu       sync.Mutex
	auth     string
	model    string
	ctype    string
	peers    []*pion.PeerConnection
	received chan string
}

func newAnswerer(t *testing.T) (*answerer, *httptest.Server) {
	a := &answerer{t: t, received: make(chan string, 16)}
	srv := httptest.NewServer(http.HandlerFunc(a.serveHTTP))
	t.Cleanup(func() {
		srv.Close()
		a.mu.Lock()
		defer a.mu.Unlock()
		for _, pc := range a.peers {
			pc.Close()
		}
	})
	return a, srv
}

func (a *answerer) serveHTTP(w http.ResponseWriter, r *http.Request) {
	offer, _ := io.ReadAll(r.Body)

	a.mu.Lock()
	a.auth = r.Header.Get("Authorization")
	a.model = r.URL.Query().Get("model")
	a.ctype = r.Header.Get("Content-Type")
	a.mu.Unlock()

	pc, err := pion.NewPeerConnection(pion.Configuration{})
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	a.mu.Lock()
	a.peers = append(a.peers, pc)
	a.mu.Unlock()

	pc.OnDataChannel(func(dc *pion.DataChannel) {
		dc.OnOpen(func() {
			dc.SendText(`{"type":"session.created","session":{"id":"sess_loop","model":"gpt-test"}}`)
		})
		dc.OnMessage(func(msg pion.DataChannelMessage) {
			a.received <- string(msg.Data)
		})
	})

	if err := pc.SetRemoteDescription(pion.SessionDescription{Type: pion.SDPTypeOffer, SDP: string(offer)}); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	answer, err := pc.CreateAnswer(nil)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	gathered := pion.GatheringCompletePromise(pc)
	if err := pc.SetLocalDescription(answer); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	<-gathered

	w.Header().Set("Content-Type", "application/sdp")
	w.WriteHeader(http.StatusCreated)
	io.WriteString(w, pc.LocalDescription().SDP)
}

// mockHandler records transport callbacks.
type mockHandler struct {
	opened   chan struct{}
	once     sync.Once
	messages chan string

	mu     sync.Mutex
	closed int
	states []string
}

func newMockHandler() *mockHandler {
	return &mockHandler{opened: make(chan struct{}), messages: make(chan string, 16)}
}

func (m *mockHandler) OnChannelOpen()               { m.once.Do(func() { close(m.opened) }) }
func (m *mockHandler) OnChannelMessage(data []byte) { m.messages <- string(data) }
func (m *mockHandler) OnChannelClose() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed++
}
func (m *mockHandler) OnConnectionState(state string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states = append(m.states, state)
}

func TestPeer_Loopback(t *testing.T) {
	a, srv := newAnswerer(t)
	handler := newMockHandler()
	peer := NewPeer(handler, NewExchanger(srv.URL+"/v1/realtime"), Options{
		AudioInput:    "silence",
		AudioOutput:   "none",
		GatherTimeout: 2 * time.Second,
		SDPPolicy:     PolicyVerbatim,
	})
	defer peer.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := peer.AcquireMedia(ctx); err != nil {
		t.Fatalf("AcquireMedia() error = %v", err)
	}
	if err := peer.Open(); err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if err := peer.Send(map[string]string{"type": "response.create"}); !errors.Is(err, domain.ErrChannelUnavailable) {
		t.Errorf("Send() before open err = %v", err)
	}

	cred := &domain.Credential{Model: "gpt-test", ClientSecret: domain.ClientSecret{Value: "ek_test"}}
	if err := peer.Negotiate(ctx, cred); err != nil {
		t.Fatalf("Negotiate() error = %v", err)
	}

	a.mu.Lock()
	if a.auth != "Bearer ek_test" || a.model != "gpt-test" || a.ctype != "application/sdp" {
		t.Errorf("exchange request: auth=%q model=%q type=%q", a.auth, a.model, a.ctype)
	}
	a.mu.Unlock()

	select {
	case <-handler.opened:
	case <-ctx.Done():
		t.Fatal("data channel never opened")
	}
	if !peer.ChannelOpen() {
		t.Error("ChannelOpen() = false after open")
	}

	select {
	case msg := <-handler.messages:
		if msg != `{"type":"session.created","session":{"id":"sess_loop","model":"gpt-test"}}` {
			t.Errorf("message = %s", msg)
		}
	case <-ctx.Done():
		t.Fatal("no message from provider")
	}

	if err := peer.Send(map[string]string{"type": "response.create"}); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	select {
	case got := <-a.received:
		if got != `{"type":"response.create"}` {
			t.Errorf("provider received %s", got)
		}
	case <-ctx.Done():
		t.Fatal("provider received nothing")
	}

	if err := peer.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if peer.ChannelOpen() {
		t.Error("ChannelOpen() = true after Close")
	}
	if err := peer.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
}

// replyingHandler answers the first provider message from inside the message callback,
// which may run before OnOpen has been delivered.
type replyingHandler struct {
	*mockHandler
	peer    *Peer
	sendErr chan error
}

func (h *replyingHandler) OnChannelMessage(data []byte) {
	select {
	case h.sendErr <- h.peer.Send(map[string]string{"type": "response.create"}):
	default:
	}
}

func TestPeer_SendFromFirstMessage(t *testing.T) {
	a, srv := newAnswerer(t)
	handler := &replyingHandler{mockHandler: newMockHandler(), sendErr: make(chan error, 1)}
	peer := NewPeer(handler, NewExchanger(srv.URL), Options{
		AudioInput:    "silence",
		AudioOutput:   "none",
		GatherTimeout: 2 * time.Second,
	})
	handler.peer = peer
	defer peer.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := peer.AcquireMedia(ctx); err != nil {
		t.Fatalf("AcquireMedia() error = %v", err)
	}
	if err := peer.Open(); err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	cred := &domain.Credential{Model: "gpt-test", ClientSecret: domain.ClientSecret{Value: "ek_test"}}
	if err := peer.Negotiate(ctx, cred); err != nil {
		t.Fatalf("Negotiate() error = %v", err)
	}

	select {
	case err := <-handler.sendErr:
		if err != nil {
			t.Fatalf("Send() from message callback error = %v", err)
		}
	case <-ctx.Done():
		t.Fatal("no message from provider")
	}
	select {
	case got := <-a.received:
		if got != `{"type":"response.create"}` {
			t.Errorf("provider received %s", got)
		}
	case <-ctx.Done():
		t.Fatal("provider received nothing")
	}
}

func TestPeer_ExchangeFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"invalid ephemeral key"}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	peer := NewPeer(newMockHandler(), NewExchanger(srv.URL), Options{
		AudioInput:    "silence",
		AudioOutput:   "none",
		GatherTimeout: 500 * time.Millisecond,
	})
	defer peer.Close()

	if err := peer.Open(); err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	err := peer.Negotiate(context.Background(), &domain.Credential{Model: "m", ClientSecret: domain.ClientSecret{Value: "bad"}})
	var setup *domain.SetupError
	if !errors.As(err, &setup) || setup.Stage != "exchange" {
		t.Fatalf("err = %v, want exchange SetupError", err)
	}
}

func TestPeer_NegotiateBeforeOpen(t *testing.T) {
	peer := NewPeer(newMockHandler(), NewExchanger("http://127.0.0.1:1"), Options{AudioOutput: "none"})
	err := peer.Negotiate(context.Background(), &domain.Credential{})
	var setup *domain.SetupError
	if !errors.As(err, &setup) || setup.Stage != "offer" {
		t.Errorf("err = %v", err)
	}
}

func TestPeer_AcquireMediaFailure(t *testing.T) {
	peer := NewPeer(newMockHandler(), nil, Options{AudioInput: "file:/no/such/input.ogg", AudioOutput: "none"})
	if err := peer.AcquireMedia(context.Background()); err == nil {
		t.Error("expected error for missing input")
	}
	if err := peer.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}

func TestExchanger_SendsOffer(t *testing.T) {
	var gotBody, gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
		gotQuery = r.URL.RawQuery
		io.WriteString(w, "v=0\r\n")
	}))
	defer srv.Close()

	answer, err := NewExchanger(srv.URL+"/").Exchange(context.Background(), "gpt-realtime", "tok", "offer-sdp")
	if err != nil {
		t.Fatalf("Exchange() error = %v", err)
	}
	if answer != "v=0\r\n" || gotBody != "offer-sdp" || gotQuery != "model=gpt-realtime" {
		t.Errorf("answer=%q body=%q query=%q", answer, gotBody, gotQuery)
	}
}

func TestExchanger_NoClientDeadline(t *testing.T) {
	if d := NewExchanger("http://localhost").http.Timeout; d != 0 {
		t.Errorf("client timeout = %s, want none beyond the request context", d)
	}
}
