package webrtc

import (
	"strings"
	"testing"
	"time"
)

const answerWithTCP = "v=0\r\n" +
	"o=- 4611731400430051336 2 IN IP4 127.0.0.1\r\n" +
	"s=-\r\n" +
	"t=0 0\r\n" +
	"a=group:BUNDLE 0 1\r\n" +
	"a=ice-options:trickle renomination\r\n" +
	"m=audio 9 UDP/TLS/RTP/SAVPF 111\r\n" +
	"c=IN IP4 0.0.0.0\r\n" +
	"a=mid:0\r\n" +
	"a=ice-ufrag:abcd\r\n" +
	"a=ice-pwd:abcdefghijklmnopqrstuvwx\r\n" +
	"a=ice-options:x-google-custom\r\n" +
	"a=candidate:1 1 udp 2130706431 203.0.113.5 3478 typ host\r\n" +
	"a=candidate:2 1 TCP 1518280447 203.0.113.5 443 typ host tcptype passive\r\n" +
	"a=rtpmap:111 opus/48000/2\r\n" +
	"a=sendrecv\r\n" +
	"m=application 9 UDP/DTLS/SCTP webrtc-datachannel\r\n" +
	"c=IN IP4 0.0.0.0\r\n" +
	"a=mid:1\r\n" +
	"a=sctp-port:5000\r\n"

func TestSanitizeAnswer_Verbatim(t *testing.T) {
	got, err := SanitizeAnswer(answerWithTCP, PolicyVerbatim)
	if err != nil {
		t.Fatalf("SanitizeAnswer() error = %v", err)
	}
	if got != answerWithTCP {
		t.Error("verbatim policy changed the answer")
	}
}

func TestSanitizeAnswer_Strip(t *testing.T) {
	got, err := SanitizeAnswer(answerWithTCP, PolicyStrip)
	if err != nil {
		t.Fatalf("SanitizeAnswer() error = %v", err)
	}

	if strings.Contains(got, "TCP 1518280447") {
		t.Error("tcp candidate not stripped")
	}
	if !strings.Contains(got, "a=candidate:1 1 udp 2130706431 203.0.113.5 3478 typ host") {
		t.Error("udp candidate dropped")
	}
	if strings.Contains(got, "renomination") || strings.Contains(got, "x-google-custom") {
		t.Errorf("non-standard ice-options kept:\n%s", got)
	}
	if !strings.Contains(got, "a=ice-options:trickle") {
		t.Error("standard ice-option dropped")
	}
	if !strings.Contains(got, "a=rtpmap:111 opus/48000/2") || !strings.Contains(got, "a=sctp-port:5000") {
		t.Error("unrelated attributes lost")
	}
}

func TestSanitizeAnswer_StripRejectsGarbage(t *testing.T) {
	if _, err := SanitizeAnswer("not an sdp", PolicyStrip); err == nil {
		t.Error("expected parse error")
	}
}

func TestIsTCPCandidate(t *testing.T) {
	tests := []struct {
		value string
		want  bool
	}{
		{"2 1 tcp 1518280447 10.0.0.1 9 typ host tcptype active", true},
		{"2 1 TCP 1518280447 10.0.0.1 9 typ host", true},
		{"1 1 udp 2130706431 10.0.0.1 3478 typ host", false},
		{"short", false},
	}
	for _, tt := range tests {
		if got := isTCPCandidate(tt.value); got != tt.want {
			t.Errorf("isTCPCandidate(%q) = %v, want %v", tt.value, got, tt.want)
		}
	}
}

func TestAwaitGathering(t *testing.T) {
	done := make(chan struct{})
	close(done)
	if !AwaitGathering(done, time.Second) {
		t.Error("expected completion when gathering already finished")
	}

	start := time.Now()
	if AwaitGathering(make(chan struct{}), 30*time.Millisecond) {
		t.Error("expected timeout")
	}
	if elapsed := time.Since(start); elapsed < 30*time.Millisecond {
		t.Errorf("returned after %s, before the timeout", elapsed)
	}
}
