package live

import "testing"

func TestTranscriptLogKeepsArrivalOrder(t *testing.T) {
	log := NewTranscriptLog(4)
	log.Append("one")
	log.Append("two")
	log.Append("three")

	entries := log.Entries()
	want := []string{"one", "two", "three"}
	if len(entries) != len(want) {
		t.Fatalf("entries=%d, want %d", len(entries), len(want))
	}
	for i := range want {
		if entries[i] != want[i] {
			t.Fatalf("entries[%d]=%q, want %q", i, entries[i], want[i])
		}
	}
}

func TestTranscriptLogBounded(t *testing.T) {
	log := NewTranscriptLog(2)
	log.Append("a")
	log.Append("b")
	log.Append("c")

	entries := log.Entries()
	if len(entries) != 2 {
		t.Fatalf("entries=%d, want 2", len(entries))
	}
	if entries[0] != "b" || entries[1] != "c" {
		t.Fatalf("entries=%v, want [b c]", entries)
	}
}

func TestTranscriptLogReset(t *testing.T) {
	log := NewTranscriptLog(4)
	log.Append("x")
	log.Reset()
	if got := len(log.Entries()); got != 0 {
		t.Fatalf("entries=%d after reset, want 0", got)
	}
}
