package webrtc

import (
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/pion/interceptor"
	"github.com/pion/rtp"
)

type mockSink struct {
	mu      sync.Mutex
	packets int
	closed  bool
}

func (m *mockSink) WriteRTP(*rtp.Packet) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.packets++
	return nil
}

func (m *mockSink) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *mockSink) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.packets
}

// chanTrack yields packets from a channel until it is closed.
type chanTrack struct {
	ch chan *rtp.Packet
}

func (c *chanTrack) ReadRTP() (*rtp.Packet, interceptor.Attributes, error) {
	pkt, ok := <-c.ch
	if !ok {
		return nil, nil, io.EOF
	}
	return pkt, nil, nil
}

type mockGestures struct {
	fns []func()
}

func (m *mockGestures) OnNextGesture(fn func()) { m.fns = append(m.fns, fn) }

func (m *mockGestures) fire() {
	fns := m.fns
	m.fns = nil
	for _, fn := range fns {
		fn()
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func TestPlayer_AttachOnce(t *testing.T) {
	sink := &mockSink{}
	opened := 0
	p := newPlayer(func() (Sink, error) { opened++; return sink, nil }, false, nil)

	first := &chanTrack{ch: make(chan *rtp.Packet, 4)}
	second := &chanTrack{ch: make(chan *rtp.Packet)}
	if !p.Attach(first) {
		t.Fatal("first Attach() = false")
	}
	if p.Attach(second) {
		t.Error("second Attach() = true, want ignored")
	}
	if opened != 1 || !p.Playing() {
		t.Errorf("opened=%d playing=%v", opened, p.Playing())
	}

	first.ch <- &rtp.Packet{}
	first.ch <- &rtp.Packet{}
	waitFor(t, func() bool { return sink.count() == 2 })

	close(first.ch)
	close(second.ch)
	if err := p.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if !sink.closed || p.Playing() {
		t.Error("expected sink closed")
	}
}

func TestPlayer_GestureUnblocksOnce(t *testing.T) {
	sink := &mockSink{}
	gestures := &mockGestures{}
	p := newPlayer(func() (Sink, error) { return sink, nil }, true, gestures)

	track := &chanTrack{ch: make(chan *rtp.Packet, 1)}
	defer close(track.ch)
	p.Attach(track)

	if p.Playing() {
		t.Fatal("playing before any interaction")
	}
	if len(gestures.fns) != 1 {
		t.Fatalf("gesture subscriptions = %d, want 1", len(gestures.fns))
	}

	gestures.fire()
	if !p.Playing() {
		t.Error("expected playback after interaction")
	}
	if len(gestures.fns) != 0 {
		t.Error("retry must not resubscribe")
	}
}

func TestPlayer_OpenFailureNotRetried(t *testing.T) {
	gestures := &mockGestures{}
	p := newPlayer(func() (Sink, error) { return nil, errors.New("no audio device") }, false, gestures)

	track := &chanTrack{ch: make(chan *rtp.Packet)}
	defer close(track.ch)
	p.Attach(track)

	if p.Playing() || len(gestures.fns) != 0 {
		t.Errorf("playing=%v subscriptions=%d", p.Playing(), len(gestures.fns))
	}
}

func TestOpenSink_Specs(t *testing.T) {
	if _, err := OpenSink("none"); err != nil {
		t.Errorf("none: %v", err)
	}
	if _, err := OpenSink("speaker"); err == nil {
		t.Error("expected error for unknown output")
	}

	path := t.TempDir() + "/out.ogg"
	s, err := OpenSink("file:" + path)
	if err != nil {
		t.Fatalf("file: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}
