package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"formvoice/native/internal/domain"
)

const (
	DefaultToolName     = "verify_information"
	DefaultVerifyPrompt = "Please take a moment to verify your details in the form that just opened."
)

// Field is one verification field offered to the candidate.
type Field struct {
	Key         string `yaml:"key"`
	Label       string `yaml:"label"`
	Description string `yaml:"description"`
	Required    *bool  `yaml:"required"`
}

// IsRequired defaults to true when the profile omits the flag.
func (f Field) IsRequired() bool {
	return f.Required == nil || *f.Required
}

// Verification configures the verify tool and its form.
type Verification struct {
	Tool          string  `yaml:"tool"`
	Prompt        string  `yaml:"prompt"`
	RegisterTools bool    `yaml:"register_tools"`
	Fields        []Field `yaml:"fields"`
}

// Profile describes one interview run.
type Profile struct {
	InterviewID    string       `yaml:"interview_id"`
	AssessmentMode bool         `yaml:"assessment_mode"`
	AssessmentID   string       `yaml:"assessment_id"`
	Qualification  string       `yaml:"qualification"`
	Experience     string       `yaml:"experience"`
	Questions      []string     `yaml:"questions"`
	Verification   Verification `yaml:"verification"`
}

// DefaultProfile returns the built-in name/qualification/experience profile.
func DefaultProfile() *Profile {
	p := &Profile{}
	p.applyDefaults()
	return p
}

// LoadProfile parses a YAML profile; an empty path yields DefaultProfile.
func LoadProfile(path string) (*Profile, error) {
	if path == "" {
		return DefaultProfile(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read profile: %w", err)
	}

	var p Profile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parse profile %s: %w", path, err)
	}
	if err := p.validate(); err != nil {
		return nil, fmt.Errorf("profile %s: %w", path, err)
	}
	p.applyDefaults()
	return &p, nil
}

func (p *Profile) validate() error {
	seen := make(map[string]bool)
	for i, f := range p.Verification.Fields {
		key := strings.TrimSpace(f.Key)
		if key == "" {
			return fmt.Errorf("verification.fields[%d].key is required", i)
		}
		if seen[key] {
			return fmt.Errorf("duplicate verification field %q", key)
		}
		seen[key] = true
	}
	return nil
}

func (p *Profile) applyDefaults() {
	if p.Verification.Tool == "" {
		p.Verification.Tool = DefaultToolName
	}
	if p.Verification.Prompt == "" {
		p.Verification.Prompt = DefaultVerifyPrompt
	}
	if len(p.Verification.Fields) == 0 {
		p.Verification.Fields = []Field{
			{Key: "name", Label: "Full name", Description: "Candidate's full name"},
			{Key: "qualification", Label: "Highest qualification", Description: "Degree, specialization and graduation year"},
			{Key: "experience", Label: "Years of experience", Description: "Total years of relevant experience"},
		}
	}
	for i := range p.Verification.Fields {
		f := &p.Verification.Fields[i]
		f.Key = strings.TrimSpace(f.Key)
		if f.Label == "" {
			f.Label = f.Key
		}
	}
	questions := p.Questions[:0]
	for _, q := range p.Questions {
		if q = strings.TrimSpace(q); q != "" {
			questions = append(questions, q)
		}
	}
	p.Questions = questions
}

// CredentialRequest builds the backend request for this profile.
func (p *Profile) CredentialRequest() domain.CredentialRequest {
	return domain.CredentialRequest{
		AssessmentMode: p.AssessmentMode,
		Qualification:  p.Qualification,
		Experience:     p.Experience,
		Questions:      append([]string(nil), p.Questions...),
		InterviewID:    p.InterviewID,
	}
}

// FieldKeys returns the configured verification keys in order.
func (p *Profile) FieldKeys() []string {
	keys := make([]string, 0, len(p.Verification.Fields))
	for _, f := range p.Verification.Fields {
		keys = append(keys, f.Key)
	}
	return keys
}
