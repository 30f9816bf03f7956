package archive

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"formvoice/native/internal/domain"
)

func openTemp(t *testing.T) *Archive {
	t.Helper()
	a, err := Open(context.Background(), filepath.Join(t.TempDir(), "sessions.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { a.Close() })
	return a
}

func TestArchive_RecordAndList(t *testing.T) {
	a := openTemp(t)
	ctx := context.Background()
	base := time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)

	first := domain.ArchiveRecord{
		SessionID:     "sess_1",
		Model:         "gpt-realtime",
		Mode:          "interview",
		StartedAt:     base,
		StoppedAt:     base.Add(5 * time.Minute),
		Turns:         []domain.ExportedTurn{{Role: "assistant", Content: "Hello", Timestamp: base.Format(time.RFC3339)}},
		Verified:      domain.VerifiedFields{"name": "Ada"},
		SaveStatus:    "saved",
		AnalyzeStatus: "analyzed",
		Extracted:     map[string]string{"Q1": "three years"},
	}
	second := domain.ArchiveRecord{
		SessionID:     "sess_2",
		Model:         "gpt-realtime",
		Mode:          "assessment",
		StartedAt:     base.Add(time.Hour),
		StoppedAt:     base.Add(time.Hour + time.Minute),
		SaveStatus:    "saved",
		AnalyzeStatus: "failed",
	}
	for _, rec := range []domain.ArchiveRecord{first, second} {
		if err := a.Record(ctx, rec); err != nil {
			t.Fatalf("Record(%s) error = %v", rec.SessionID, err)
		}
	}

	entries, err := a.List(ctx, 0)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
	if entries[0].SessionID != "sess_2" {
		t.Errorf("newest first: got %s", entries[0].SessionID)
	}

	got := entries[1]
	if !got.StoppedAt.Equal(first.StoppedAt) || got.Mode != "interview" || got.AnalyzeStatus != "analyzed" {
		t.Errorf("entry = %+v", got)
	}
	if len(got.Turns) != 1 || got.Turns[0].Content != "Hello" {
		t.Errorf("turns = %+v", got.Turns)
	}
	if got.Verified["name"] != "Ada" || got.Extracted["Q1"] != "three years" {
		t.Errorf("verified = %v, extracted = %v", got.Verified, got.Extracted)
	}
	if entries[0].Turns == nil || len(entries[0].Turns) != 0 {
		t.Errorf("empty turns = %#v", entries[0].Turns)
	}
}

func TestArchive_ListLimit(t *testing.T) {
	a := openTemp(t)
	ctx := context.Background()
	base := time.Now()

	for i := 0; i < 3; i++ {
		rec := domain.ArchiveRecord{SessionID: string(rune('a' + i)), StartedAt: base, StoppedAt: base.Add(time.Duration(i) * time.Second)}
		if err := a.Record(ctx, rec); err != nil {
			t.Fatalf("Record() error = %v", err)
		}
	}

	entries, err := a.List(ctx, 2)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(entries) != 2 || entries[0].SessionID != "c" || entries[1].SessionID != "b" {
		t.Errorf("entries = %+v", entries)
	}
}

func TestArchive_ReopenKeepsEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sessions.db")
	ctx := context.Background()

	a, err := Open(ctx, path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if err := a.Record(ctx, domain.ArchiveRecord{SessionID: "sess_1", StartedAt: time.Now(), StoppedAt: time.Now()}); err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	a.Close()

	b, err := Open(ctx, path)
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	defer b.Close()
	entries, err := b.List(ctx, 10)
	if err != nil || len(entries) != 1 {
		t.Fatalf("List() = %v, %v", entries, err)
	}
}
