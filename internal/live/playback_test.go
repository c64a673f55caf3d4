package live

import (
	"math"
	"sync"
	"testing"

	"go.uber.org/zap"

	"github.com/hiet-studio/companion-server/pkg/audio"
)

type fakeClock struct {
	mu  sync.Mutex
	now float64
}

func (c *fakeClock) Now() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) advance(seconds float64) {
	c.mu.Lock()
	c.now += seconds
	c.mu.Unlock()
}

type fakeSource struct {
	stopped bool
}

func (s *fakeSource) Stop() { s.stopped = true }

type fakeSink struct {
	mu      sync.Mutex
	chunks  []PlaybackChunk
	sources []*fakeSource
}

func (f *fakeSink) Play(chunk PlaybackChunk) (Source, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	source := &fakeSource{}
	f.chunks = append(f.chunks, chunk)
	f.sources = append(f.sources, source)
	return source, nil
}

func pcmChunk(t *testing.T, samples int) []byte {
	t.Helper()
	block := make([]float32, samples)
	for i := range block {
		block[i] = 0.1
	}
	return audio.EncodeFloat32PCM16(block)
}

func TestSchedulerGaplessConcatenation(t *testing.T) {
	clock := &fakeClock{}
	sink := &fakeSink{}
	sched := NewScheduler(clock, sink, 24000, zap.NewNop())

	// Three 100ms chunks arriving with jitter while the scheduler keeps up.
	chunk := pcmChunk(t, 2400)
	for i := 0; i < 3; i++ {
		if err := sched.Enqueue(chunk); err != nil {
			t.Fatalf("Enqueue %d error: %v", i, err)
		}
		clock.advance(0.03)
	}

	if len(sink.chunks) != 3 {
		t.Fatalf("scheduled chunks=%d, want 3", len(sink.chunks))
	}
	for i := 1; i < len(sink.chunks); i++ {
		prev := sink.chunks[i-1]
		got := sink.chunks[i].StartAt
		want := prev.StartAt + prev.Duration
		if math.Abs(got-want) > 1e-9 {
			t.Fatalf("chunk %d StartAt=%f, want %f", i, got, want)
		}
	}
	if math.Abs(sink.chunks[0].Duration-0.1) > 1e-9 {
		t.Fatalf("chunk duration=%f, want 0.1", sink.chunks[0].Duration)
	}
}

func TestSchedulerStartsNoEarlierThanNow(t *testing.T) {
	clock := &fakeClock{}
	sink := &fakeSink{}
	sched := NewScheduler(clock, sink, 24000, zap.NewNop())

	if err := sched.Enqueue(pcmChunk(t, 2400)); err != nil {
		t.Fatalf("Enqueue error: %v", err)
	}
	// Let the queue drain past its end, then enqueue again.
	clock.advance(1.0)
	if err := sched.Enqueue(pcmChunk(t, 2400)); err != nil {
		t.Fatalf("Enqueue error: %v", err)
	}

	if got := sink.chunks[1].StartAt; math.Abs(got-1.0) > 1e-9 {
		t.Fatalf("late chunk StartAt=%f, want 1.0", got)
	}
	if got := sched.NextStart(); math.Abs(got-1.1) > 1e-9 {
		t.Fatalf("NextStart=%f, want 1.1", got)
	}
}

func TestSchedulerInterruptClearsState(t *testing.T) {
	clock := &fakeClock{}
	sink := &fakeSink{}
	sched := NewScheduler(clock, sink, 24000, zap.NewNop())

	for i := 0; i < 4; i++ {
		if err := sched.Enqueue(pcmChunk(t, 2400)); err != nil {
			t.Fatalf("Enqueue error: %v", err)
		}
	}
	if got := sched.ActiveCount(); got != 4 {
		t.Fatalf("ActiveCount=%d, want 4", got)
	}

	sched.Interrupt()

	if got := sched.ActiveCount(); got != 0 {
		t.Fatalf("ActiveCount=%d after interrupt, want 0", got)
	}
	if got := sched.NextStart(); got != 0 {
		t.Fatalf("NextStart=%f after interrupt, want 0", got)
	}
	for i, source := range sink.sources {
		if !source.stopped {
			t.Fatalf("source %d not stopped by interrupt", i)
		}
	}
}

func TestSchedulerNaturalCompletionSelfRemoves(t *testing.T) {
	clock := &fakeClock{}
	sink := &fakeSink{}
	sched := NewScheduler(clock, sink, 24000, zap.NewNop())

	if err := sched.Enqueue(pcmChunk(t, 2400)); err != nil {
		t.Fatalf("Enqueue error: %v", err)
	}
	sched.Finished(sink.sources[0])

	if got := sched.ActiveCount(); got != 0 {
		t.Fatalf("ActiveCount=%d after completion, want 0", got)
	}
	if sink.sources[0].stopped {
		t.Fatal("naturally completed source was stopped")
	}
}

func TestSchedulerDropsMalformedChunk(t *testing.T) {
	clock := &fakeClock{}
	sink := &fakeSink{}
	sched := NewScheduler(clock, sink, 24000, zap.NewNop())

	if err := sched.Enqueue([]byte{0x01}); err == nil {
		t.Fatal("Enqueue(short payload) error=nil, want CodecError")
	}
	if len(sink.chunks) != 0 {
		t.Fatalf("scheduled chunks=%d for malformed payload, want 0", len(sink.chunks))
	}
	if got := sched.NextStart(); got != 0 {
		t.Fatalf("NextStart=%f after drop, want 0", got)
	}
}
