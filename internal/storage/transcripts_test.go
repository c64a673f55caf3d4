package storage

import (
	"testing"
	"time"
)

func sampleFragments() []Fragment {
	now := time.Now().Format(time.RFC3339)
	return []Fragment{
		{Text: "Bot: hello", Timestamp: now},
		{Text: "Bot: how can I help", Timestamp: now},
	}
}

func TestSaveAndGetTranscript(t *testing.T) {
	dir := t.TempDir()

	uid, err := SaveTranscript(dir, "client-1", sampleFragments())
	if err != nil {
		t.Fatalf("SaveTranscript error: %v", err)
	}

	fragments, err := GetTranscript(dir, "client-1", uid)
	if err != nil {
		t.Fatalf("GetTranscript error: %v", err)
	}
	if len(fragments) != 2 {
		t.Fatalf("fragments=%d, want 2", len(fragments))
	}
	if fragments[0].Text != "Bot: hello" {
		t.Fatalf("fragments[0]=%q, want %q", fragments[0].Text, "Bot: hello")
	}
}

func TestSaveTranscriptRejectsEmpty(t *testing.T) {
	if _, err := SaveTranscript(t.TempDir(), "client-1", nil); err == nil {
		t.Fatal("SaveTranscript(empty) error=nil, want non-nil")
	}
}

func TestSaveTranscriptRejectsUnsafeClientUID(t *testing.T) {
	if _, err := SaveTranscript(t.TempDir(), "../escape", sampleFragments()); err == nil {
		t.Fatal("SaveTranscript(unsafe uid) error=nil, want non-nil")
	}
}

func TestListTranscriptsNewestFirst(t *testing.T) {
	dir := t.TempDir()

	old := []Fragment{{Text: "old", Timestamp: "2024-01-01T00:00:00Z"}}
	recent := []Fragment{{Text: "recent", Timestamp: "2025-01-01T00:00:00Z"}}
	if _, err := SaveTranscript(dir, "client-1", old); err != nil {
		t.Fatalf("SaveTranscript error: %v", err)
	}
	if _, err := SaveTranscript(dir, "client-1", recent); err != nil {
		t.Fatalf("SaveTranscript error: %v", err)
	}

	list := ListTranscripts(dir, "client-1")
	if len(list) != 2 {
		t.Fatalf("transcripts=%d, want 2", len(list))
	}
	if list[0].Timestamp < list[1].Timestamp {
		t.Fatalf("list not newest-first: %v", list)
	}
}

func TestDeleteTranscript(t *testing.T) {
	dir := t.TempDir()
	uid, err := SaveTranscript(dir, "client-1", sampleFragments())
	if err != nil {
		t.Fatalf("SaveTranscript error: %v", err)
	}

	if !DeleteTranscript(dir, "client-1", uid) {
		t.Fatal("DeleteTranscript=false, want true")
	}
	if DeleteTranscript(dir, "client-1", uid) {
		t.Fatal("DeleteTranscript=true for missing transcript, want false")
	}
}
