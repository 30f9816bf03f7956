package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	defaultBackendURL    = "http://localhost:8000"
	defaultRealtimeURL   = "https://api.openai.com/v1/realtime"
	defaultGatherTimeout = 3 * time.Second
	defaultAudioInput    = "ffmpeg:pulse:default"
	defaultAudioOutput   = "ffplay"
)

// Config holds the application configuration.
type Config struct {
	BackendURL     string
	RealtimeURL    string
	GatherTimeout  time.Duration
	SDPPolicy      string
	AudioInput     string
	AudioOutput    string
	RequireGesture bool
	UIListen       string
	ArchivePath    string

	Profile *Profile
}

// Load reads configuration from a .env file (if present) and environment variables,
// then applies the interview profile at profilePath (built-in defaults when empty).
// Environment variables take precedence over .env values.
func Load(profilePath string) (*Config, error) {
	// godotenv.Load does not overwrite existing env vars
	_ = godotenv.Load()

	cfg := &Config{
		BackendURL:    strings.TrimRight(envOr("VOICECALL_BACKEND_URL", defaultBackendURL), "/"),
		RealtimeURL:   envOr("VOICECALL_REALTIME_URL", defaultRealtimeURL),
		GatherTimeout: defaultGatherTimeout,
		SDPPolicy:     strings.ToLower(envOr("VOICECALL_SDP_POLICY", "verbatim")),
		AudioInput:    envOr("VOICECALL_AUDIO_INPUT", defaultAudioInput),
		AudioOutput:   envOr("VOICECALL_AUDIO_OUTPUT", defaultAudioOutput),
		UIListen:      os.Getenv("VOICECALL_UI_LISTEN"),
		ArchivePath:   os.Getenv("VOICECALL_ARCHIVE"),
	}

	if raw := os.Getenv("VOICECALL_GATHER_TIMEOUT"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d <= 0 {
			return nil, fmt.Errorf("VOICECALL_GATHER_TIMEOUT must be a positive duration, got %q", raw)
		}
		cfg.GatherTimeout = d
	}

	switch cfg.SDPPolicy {
	case "verbatim", "strip":
	default:
		return nil, fmt.Errorf("VOICECALL_SDP_POLICY must be verbatim or strip, got %q", cfg.SDPPolicy)
	}

	if raw := os.Getenv("VOICECALL_REQUIRE_GESTURE"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, fmt.Errorf("VOICECALL_REQUIRE_GESTURE: %w", err)
		}
		cfg.RequireGesture = v
	}

	profile, err := LoadProfile(profilePath)
	if err != nil {
		return nil, err
	}
	if id := os.Getenv("VOICECALL_INTERVIEW_ID"); id != "" {
		profile.InterviewID = id
	}
	if id := os.Getenv("VOICECALL_ASSESSMENT_ID"); id != "" {
		profile.AssessmentID = id
	}
	if profile.AssessmentMode && profile.AssessmentID == "" {
		return nil, fmt.Errorf("assessment mode requires an assessment id (profile assessment_id or VOICECALL_ASSESSMENT_ID)")
	}
	cfg.Profile = profile

	return cfg, nil
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}
