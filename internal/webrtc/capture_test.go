package webrtc

import (
	"bytes"
	"context"
	"sync"
	"testing"
	"time"

	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4/pkg/media"
	"github.com/pion/webrtc/v4/pkg/media/oggwriter"
)

type recordingWriter struct {
	mu      sync.Mutex
	samples []media.Sample
}

func (r *recordingWriter) WriteSample(s media.Sample) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.samples = append(r.samples, s)
	return nil
}

func (r *recordingWriter) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.samples)
}

func TestOpenCapture_Silence(t *testing.T) {
	c, err := OpenCapture(context.Background(), "silence")
	if err != nil {
		t.Fatalf("OpenCapture() error = %v", err)
	}
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Millisecond)
	defer cancel()
	w := &recordingWriter{}
	if err := c.Pump(ctx, w); err != nil {
		t.Fatalf("Pump() error = %v", err)
	}
	if w.len() == 0 {
		t.Fatal("no samples written")
	}
	if w.samples[0].Duration != opusFrameDuration {
		t.Errorf("duration = %s", w.samples[0].Duration)
	}
}

func TestOpenCapture_File(t *testing.T) {
	path := t.TempDir() + "/in.ogg"
	ow, err := oggwriter.New(path, opusClockRate, 2)
	if err != nil {
		t.Fatalf("oggwriter.New() error = %v", err)
	}
	for i := 0; i < 3; i++ {
		pkt := &rtp.Packet{
			Header:  rtp.Header{SequenceNumber: uint16(i), Timestamp: uint32(i * 960)},
			Payload: opusSilence,
		}
		if err := ow.WriteRTP(pkt); err != nil {
			t.Fatalf("WriteRTP() error = %v", err)
		}
	}
	if err := ow.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	c, err := OpenCapture(context.Background(), "file:"+path)
	if err != nil {
		t.Fatalf("OpenCapture() error = %v", err)
	}
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	w := &recordingWriter{}
	if err := c.Pump(ctx, w); err != nil {
		t.Fatalf("Pump() error = %v", err)
	}
	if w.len() != 3 {
		t.Fatalf("samples = %d, want 3", w.len())
	}
	for i, s := range w.samples {
		if !bytes.Equal(s.Data, opusSilence) {
			t.Errorf("sample %d = %q, want an audio frame", i, s.Data)
		}
	}
}

func TestOpenCapture_BadSpecs(t *testing.T) {
	for _, spec := range []string{"microphone", "file:", "file:/does/not/exist.ogg", "ffmpeg:pulse"} {
		if _, err := OpenCapture(context.Background(), spec); err == nil {
			t.Errorf("OpenCapture(%q) expected error", spec)
		}
	}
}

func TestIsOpusHeader(t *testing.T) {
	tests := []struct {
		page []byte
		want bool
	}{
		{[]byte("OpusHead\x01\x02"), true},
		{[]byte("OpusTags\x08\x00"), true},
		{opusSilence, false},
		{nil, false},
	}
	for _, tt := range tests {
		if got := isOpusHeader(tt.page); got != tt.want {
			t.Errorf("isOpusHeader(%q) = %v, want %v", tt.page, got, tt.want)
		}
	}
}
