package webrtc

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/pion/webrtc/v4/pkg/media"
	"github.com/pion/webrtc/v4/pkg/media/oggreader"
)

const (
	opusFrameDuration = 20 * time.Millisecond
	opusClockRate     = 48000
)

// opusSilence is a single 20ms Opus silence frame.
var opusSilence = []byte{0xf8, 0xff, 0xfe}

// SampleWriter accepts encoded audio samples, as TrackLocalStaticSample does.
type SampleWriter interface {
	WriteSample(s media.Sample) error
}

// Capture is an acquired local audio input.
type Capture interface {
	// Pump writes samples to w until ctx is done or the input ends.
	Pump(ctx context.Context, w SampleWriter) error
	Close() error
}

// OpenCapture acquires the input named by spec:
//
//	silence                  Opus silence frames
//	file:<path.ogg>          an Ogg/Opus file, paced in real time
//	ffmpeg:<format>:<device> a live device encoded by ffmpeg
//
// The ffmpeg input runs a denoise filter; echo cancellation is expected from the
// device itself (e.g. a PulseAudio echo-cancel source).
func OpenCapture(ctx context.Context, spec string) (Capture, error) {
	kind, arg, _ := strings.Cut(spec, ":")
	switch kind {
	case "silence":
		return silenceCapture{}, nil
	case "file":
		if arg == "" {
			return nil, errors.New("file capture needs a path")
		}
		f, err := os.Open(arg)
		if err != nil {
			return nil, fmt.Errorf("open capture file: %w", err)
		}
		c, err := newOggCapture(f, f, true)
		if err != nil {
			return nil, err
		}
		return c, nil
	case "ffmpeg":
		return openFFmpegCapture(ctx, arg)
	default:
		return nil, fmt.Errorf("unknown audio input %q", spec)
	}
}

type silenceCapture struct{}

func (silenceCapture) Pump(ctx context.Context, w SampleWriter) error {
	ticker := time.NewTicker(opusFrameDuration)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := w.WriteSample(media.Sample{Data: opusSilence, Duration: opusFrameDuration}); err != nil {
				return err
			}
		}
	}
}

func (silenceCapture) Close() error { return nil }

// oggCapture streams Opus pages from an Ogg container.
type oggCapture struct {
	reader *oggreader.OggReader
	closer io.Closer
	paced  bool
	wait   func() error
}

func newOggCapture(r io.Reader, c io.Closer, paced bool) (*oggCapture, error) {
	reader, header, err := oggreader.NewWith(r)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("read ogg header: %w", err)
	}
	log.Printf("[media] capture opened: %d channel(s) at %d Hz", header.Channels, header.SampleRate)
	return &oggCapture{reader: reader, closer: c, paced: paced}, nil
}

func (c *oggCapture) Pump(ctx context.Context, w SampleWriter) error {
	var ticker *time.Ticker
	if c.paced {
		ticker = time.NewTicker(opusFrameDuration)
		defer ticker.Stop()
	}

	var lastGranule uint64
	for {
		if ticker != nil {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
			}
		} else if ctx.Err() != nil {
			return nil
		}

		page, header, err := c.reader.ParseNextPage()
		if errors.Is(err, io.EOF) {
			log.Printf("[media] capture input ended")
			return nil
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("read ogg page: %w", err)
		}

		if isOpusHeader(page) {
			continue
		}

		samples := header.GranulePosition - lastGranule
		lastGranule = header.GranulePosition
		duration := time.Duration(float64(samples) / opusClockRate * float64(time.Second))
		if err := w.WriteSample(media.Sample{Data: page, Duration: duration}); err != nil {
			return err
		}
	}
}

// isOpusHeader matches the OpusHead and OpusTags pages that precede the audio.
func isOpusHeader(page []byte) bool {
	return bytes.HasPrefix(page, []byte("OpusHead")) || bytes.HasPrefix(page, []byte("OpusTags"))
}

func (c *oggCapture) Close() error {
	err := c.closer.Close()
	if c.wait != nil {
		c.wait()
	}
	return err
}

// openFFmpegCapture starts ffmpeg reading <format>:<device> and encoding Opus in 20ms
// Ogg pages on stdout.
func openFFmpegCapture(ctx context.Context, arg string) (Capture, error) {
	format, device, ok := strings.Cut(arg, ":")
	if !ok || format == "" || device == "" {
		return nil, fmt.Errorf("ffmpeg capture needs <format>:<device>, got %q", arg)
	}
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		return nil, fmt.Errorf("ffmpeg not found: %w", err)
	}

	cmd := exec.CommandContext(ctx, "ffmpeg",
		"-hide_banner", "-loglevel", "error",
		"-f", format, "-i", device,
		"-af", "highpass=f=80,afftdn",
		"-ac", "2", "-ar", "48000",
		"-c:a", "libopus", "-application", "voip",
		"-page_duration", "20000",
		"-f", "ogg", "pipe:1",
	)
	cmd.Stderr = os.Stderr
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("ffmpeg stdout: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start ffmpeg: %w", err)
	}
	log.Printf("[media] ffmpeg capture started: %s %s (pid %d)", format, device, cmd.Process.Pid)

	c, err := newOggCapture(stdout, processCloser{cmd}, false)
	if err != nil {
		cmd.Wait()
		return nil, fmt.Errorf("device %s: %w", device, err)
	}
	c.wait = cmd.Wait
	return c, nil
}

// processCloser stops a capture subprocess.
type processCloser struct {
	cmd *exec.Cmd
}

func (p processCloser) Close() error {
	if p.cmd.Process == nil {
		return nil
	}
	if err := p.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return err
	}
	return nil
}
