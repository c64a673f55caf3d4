package live

import (
	"bytes"
	"context"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/hiet-studio/companion-server/pkg/audio"
)

type frameCollector struct {
	mu     sync.Mutex
	frames [][]byte
}

// send copies the frame: the pipeline reuses the buffer after the call.
func (c *frameCollector) send(_ context.Context, pcm []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frames = append(c.frames, append([]byte(nil), pcm...))
	return nil
}

func (c *frameCollector) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.frames)
}

func (c *frameCollector) waitFor(t *testing.T, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if c.count() >= want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("frames=%d before deadline, want >= %d", c.count(), want)
}

func TestCaptureEmitsFixedSizeFrames(t *testing.T) {
	collector := &frameCollector{}
	levels := make(chan float64, 16)
	pipeline := NewCapturePipeline(
		CaptureConfig{SampleRate: 16000, BlockSize: 4096},
		collector.send,
		func(level float64) { levels <- level },
		zap.NewNop(),
	)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	pipeline.Start(ctx)
	defer pipeline.Stop()

	// Two and a half blocks: exactly two frames should come out.
	samples := make([]float32, 4096*2+2048)
	for i := range samples {
		samples[i] = 0.2
	}
	if err := pipeline.PushSamples(samples, 16000); err != nil {
		t.Fatalf("PushSamples error: %v", err)
	}

	collector.waitFor(t, 2)
	if got := collector.count(); got != 2 {
		t.Fatalf("frames=%d, want 2", got)
	}
	collector.mu.Lock()
	first := collector.frames[0]
	second := collector.frames[1]
	collector.mu.Unlock()
	if len(first) != 4096*2 {
		t.Fatalf("frame bytes=%d, want %d", len(first), 4096*2)
	}
	want := audio.EncodeFloat32PCM16(samples[:4096])
	if !bytes.Equal(first, want) {
		t.Fatal("first frame does not match encoded input block")
	}
	if !bytes.Equal(second, want) {
		t.Fatal("second frame does not match encoded input block")
	}

	select {
	case level := <-levels:
		if level <= 0 {
			t.Fatalf("level=%f, want > 0", level)
		}
	default:
		t.Fatal("no level update emitted")
	}
}

func TestCapturePushDoesNotBlockWithoutSender(t *testing.T) {
	collector := &frameCollector{}
	pipeline := NewCapturePipeline(
		CaptureConfig{SampleRate: 16000, BlockSize: 256, QueueSize: 2},
		collector.send,
		nil,
		zap.NewNop(),
	)
	// Sender never started: the queue fills, then drops oldest. Push must
	// still return promptly.
	done := make(chan struct{})
	go func() {
		samples := make([]float32, 256)
		for i := 0; i < 50; i++ {
			_ = pipeline.PushSamples(samples, 16000)
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("PushSamples blocked on a full queue")
	}
	pipeline.Stop()
}

func TestCaptureStopIdempotent(t *testing.T) {
	pipeline := NewCapturePipeline(CaptureConfig{}, (&frameCollector{}).send, nil, zap.NewNop())
	pipeline.Start(context.Background())
	pipeline.Stop()
	pipeline.Stop()

	if err := pipeline.PushSamples(make([]float32, 4096), 16000); err != nil {
		t.Fatalf("PushSamples after stop error: %v", err)
	}
}
