package live

import "sync"

// TranscriptLog keeps the most recent spoken-output fragments in arrival
// order. Older entries fall off once the limit is reached.
type TranscriptLog struct {
	mu      sync.Mutex
	limit   int
	entries []string
}

// NewTranscriptLog creates a log bounded to limit entries.
func NewTranscriptLog(limit int) *TranscriptLog {
	if limit <= 0 {
		limit = 4
	}
	return &TranscriptLog{limit: limit}
}

// Append adds a fragment, evicting the oldest entries beyond the bound.
func (l *TranscriptLog) Append(text string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, text)
	if overflow := len(l.entries) - l.limit; overflow > 0 {
		l.entries = append(l.entries[:0], l.entries[overflow:]...)
	}
}

// Entries returns a copy of the current fragments, oldest first.
func (l *TranscriptLog) Entries() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, len(l.entries))
	copy(out, l.entries)
	return out
}

// Reset clears the log.
func (l *TranscriptLog) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = l.entries[:0]
}
