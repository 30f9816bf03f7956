package webrtc

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/exec"
	"strings"
	"sync"

	"github.com/pion/interceptor"
	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4/pkg/media/oggwriter"

	"formvoice/native/internal/domain"
)

// Sink consumes inbound Opus RTP.
type Sink interface {
	WriteRTP(pkt *rtp.Packet) error
	Close() error
}

// RTPReader is the read side of a remote track.
type RTPReader interface {
	ReadRTP() (*rtp.Packet, interceptor.Attributes, error)
}

// OpenSink opens the output named by spec: "ffplay", "file:<path.ogg>" or "none".
func OpenSink(spec string) (Sink, error) {
	kind, arg, _ := strings.Cut(spec, ":")
	switch kind {
	case "none", "":
		return discardSink{}, nil
	case "file":
		if arg == "" {
			return nil, errors.New("file output needs a path")
		}
		w, err := oggwriter.New(arg, opusClockRate, 2)
		if err != nil {
			return nil, fmt.Errorf("create ogg file: %w", err)
		}
		return w, nil
	case "ffplay":
		return openFFplay()
	default:
		return nil, fmt.Errorf("unknown audio output %q", spec)
	}
}

type discardSink struct{}

func (discardSink) WriteRTP(*rtp.Packet) error { return nil }
func (discardSink) Close() error               { return nil }

// ffplaySink pipes an Ogg/Opus stream into ffplay.
type ffplaySink struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	writer *oggwriter.OggWriter
}

func openFFplay() (*ffplaySink, error) {
	if _, err := exec.LookPath("ffplay"); err != nil {
		return nil, fmt.Errorf("ffplay not found: %w", err)
	}
	cmd := exec.Command("ffplay", "-nodisp", "-autoexit", "-loglevel", "error", "-f", "ogg", "-i", "pipe:0")
	cmd.Stderr = os.Stderr
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("ffplay stdin: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start ffplay: %w", err)
	}
	w, err := oggwriter.NewWith(stdin, opusClockRate, 2)
	if err != nil {
		stdin.Close()
		cmd.Process.Kill()
		cmd.Wait()
		return nil, fmt.Errorf("ogg stream: %w", err)
	}
	log.Printf("[playback] ffplay started (pid %d)", cmd.Process.Pid)
	return &ffplaySink{cmd: cmd, stdin: stdin, writer: w}, nil
}

func (s *ffplaySink) WriteRTP(pkt *rtp.Packet) error {
	return s.writer.WriteRTP(pkt)
}

func (s *ffplaySink) Close() error {
	s.writer.Close()
	s.stdin.Close()
	if err := s.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return err
	}
	s.cmd.Wait()
	return nil
}

// Player attaches the first remote audio track to a sink. When interaction is required
// before playback, the sink opens on the next user gesture.
type Player struct {
	open     func() (Sink, error)
	gestures domain.GestureSource

	mu       sync.Mutex
	allowed  bool
	attached bool
	closed   bool
	sink     Sink
}

// NewPlayer creates a player for the output spec accepted by OpenSink.
func NewPlayer(output string, requireGesture bool, gestures domain.GestureSource) *Player {
	return newPlayer(func() (Sink, error) { return OpenSink(output) }, requireGesture, gestures)
}

func newPlayer(open func() (Sink, error), requireGesture bool, gestures domain.GestureSource) *Player {
	return &Player{
		open:     open,
		gestures: gestures,
		allowed:  !requireGesture,
	}
}

// Attach starts playing track. Only the first track is attached; later calls return false.
func (p *Player) Attach(track RTPReader) bool {
	p.mu.Lock()
	if p.attached || p.closed {
		p.mu.Unlock()
		log.Printf("[playback] remote audio already attached, ignoring track")
		return false
	}
	p.attached = true
	p.mu.Unlock()

	go p.drain(track)
	p.play()
	return true
}

// Playing reports whether a sink is open.
func (p *Player) Playing() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sink != nil
}

// Close stops playback and detaches the sink.
func (p *Player) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	if p.sink == nil {
		return nil
	}
	err := p.sink.Close()
	p.sink = nil
	return err
}

func (p *Player) play() {
	err := p.resume()
	if err == nil {
		return
	}
	if !errors.Is(err, domain.ErrAutoplayBlocked) || p.gestures == nil {
		log.Printf("[playback] %v", err)
		return
	}

	log.Printf("[playback] autoplay blocked, waiting for user interaction")
	p.gestures.OnNextGesture(func() {
		p.mu.Lock()
		p.allowed = true
		p.mu.Unlock()
		if err := p.resume(); err != nil {
			log.Printf("[playback] retry failed: %v", err)
		}
	})
}

func (p *Player) resume() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed || p.sink != nil {
		return nil
	}
	if !p.allowed {
		return domain.ErrAutoplayBlocked
	}
	sink, err := p.open()
	if err != nil {
		return fmt.Errorf("open sink: %w", err)
	}
	p.sink = sink
	log.Printf("[playback] playing remote audio")
	return nil
}

// drain reads the track for its lifetime; packets arriving while no sink is open are
// dropped.
func (p *Player) drain(track RTPReader) {
	for {
		pkt, _, err := track.ReadRTP()
		if err != nil {
			log.Printf("[playback] remote track ended: %v", err)
			return
		}

		p.mu.Lock()
		if p.sink != nil {
			if err := p.sink.WriteRTP(pkt); err != nil {
				log.Printf("[playback] sink write error, detaching: %v", err)
				p.sink.Close()
				p.sink = nil
			}
		}
		p.mu.Unlock()
	}
}
