package webrtc

import (
	"fmt"
	"log"
	"strings"

	"github.com/pion/sdp/v3"
)

// Answer sanitization policies.
const (
	PolicyVerbatim = "verbatim"
	PolicyStrip    = "strip"
)

// ice-options tokens kept by the strip policy.
var standardICEOptions = map[string]bool{
	"trickle": true,
	"ice2":    true,
}

// SanitizeAnswer applies policy to a remote session description. PolicyStrip drops TCP
// candidates and non-standard ice-options tokens at session and media level; any other
// policy returns raw unchanged.
func SanitizeAnswer(raw, policy string) (string, error) {
	if policy != PolicyStrip {
		return raw, nil
	}

	var desc sdp.SessionDescription
	if err := desc.Unmarshal([]byte(raw)); err != nil {
		return "", fmt.Errorf("parse answer: %w", err)
	}

	dropped := 0
	desc.Attributes, dropped = stripAttributes(desc.Attributes, dropped)
	for _, md := range desc.MediaDescriptions {
		md.Attributes, dropped = stripAttributes(md.Attributes, dropped)
	}

	out, err := desc.Marshal()
	if err != nil {
		return "", fmt.Errorf("marshal answer: %w", err)
	}
	if dropped > 0 {
		log.Printf("[webrtc] stripped %d incompatible answer attribute(s)", dropped)
	}
	return string(out), nil
}

func stripAttributes(attrs []sdp.Attribute, dropped int) ([]sdp.Attribute, int) {
	kept := attrs[:0]
	for _, a := range attrs {
		switch a.Key {
		case "candidate":
			if isTCPCandidate(a.Value) {
				dropped++
				continue
			}
		case "ice-options":
			value := filterICEOptions(a.Value)
			if value != a.Value {
				dropped++
			}
			if value == "" {
				continue
			}
			a.Value = value
		}
		kept = append(kept, a)
	}
	return kept, dropped
}

// isTCPCandidate reports whether a candidate value ("foundation component transport ...")
// uses TCP transport.
func isTCPCandidate(value string) bool {
	fields := strings.Fields(value)
	return len(fields) > 2 && strings.EqualFold(fields[2], "tcp")
}

func filterICEOptions(value string) string {
	var kept []string
	for _, tok := range strings.Fields(value) {
		if standardICEOptions[strings.ToLower(tok)] {
			kept = append(kept, tok)
		}
	}
	return strings.Join(kept, " ")
}
