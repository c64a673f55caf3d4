package live

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hiet-studio/companion-server/pkg/audio"
)

// Clock provides the playback timeline position in seconds.
type Clock interface {
	Now() float64
}

// WallClock measures seconds elapsed since its creation.
type WallClock struct {
	start time.Time
}

// NewWallClock creates a clock anchored at the current instant.
func NewWallClock() *WallClock {
	return &WallClock{start: time.Now()}
}

// Now returns seconds since the clock was created.
func (c *WallClock) Now() float64 {
	return time.Since(c.start).Seconds()
}

// PlaybackChunk is a decoded inbound audio buffer with its scheduled slot.
type PlaybackChunk struct {
	Samples    []float32
	SampleRate int
	StartAt    float64
	Duration   float64
}

// Source is the output handle of a scheduled chunk. Stop cancels playback
// before natural completion.
type Source interface {
	Stop()
}

// Sink renders scheduled chunks. Implementations call Scheduler.Finished when
// a source completes naturally.
type Sink interface {
	Play(chunk PlaybackChunk) (Source, error)
}

// Scheduler turns discrete inbound audio chunks into gapless output and
// supports mid-stream interruption.
type Scheduler struct {
	clock      Clock
	sink       Sink
	sampleRate int
	logger     *zap.Logger

	mu        sync.Mutex
	nextStart float64
	active    map[Source]struct{}
}

// NewScheduler creates a scheduler for mono PCM at the given output rate.
func NewScheduler(clock Clock, sink Sink, sampleRate int, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		clock:      clock,
		sink:       sink,
		sampleRate: sampleRate,
		logger:     logger,
		active:     make(map[Source]struct{}),
	}
}

// Enqueue decodes one inbound PCM16LE chunk and schedules it to start no
// earlier than both "now" and the end of the queued audio. A malformed chunk
// is dropped; the session stays usable.
func (s *Scheduler) Enqueue(pcm []byte) error {
	channels, err := audio.DecodePCM16Float32(pcm, 1)
	if err != nil {
		s.logger.Warn("dropping malformed playback chunk", zap.Error(err))
		return fmt.Errorf("decode playback chunk: %w", err)
	}
	samples := channels[0]
	duration := float64(len(samples)) / float64(s.sampleRate)

	s.mu.Lock()
	defer s.mu.Unlock()

	startAt := s.nextStart
	if now := s.clock.Now(); now > startAt {
		startAt = now
	}
	chunk := PlaybackChunk{
		Samples:    samples,
		SampleRate: s.sampleRate,
		StartAt:    startAt,
		Duration:   duration,
	}
	source, err := s.sink.Play(chunk)
	if err != nil {
		s.logger.Warn("playback sink rejected chunk", zap.Error(err))
		return err
	}
	s.active[source] = struct{}{}
	s.nextStart = startAt + duration
	return nil
}

// Finished removes a naturally completed source from the active set.
func (s *Scheduler) Finished(source Source) {
	s.mu.Lock()
	delete(s.active, source)
	s.mu.Unlock()
}

// Interrupt stops every active source, clears the set and rewinds the
// timeline so the next chunk starts immediately. This is the barge-in path.
func (s *Scheduler) Interrupt() {
	s.mu.Lock()
	stopped := make([]Source, 0, len(s.active))
	for source := range s.active {
		stopped = append(stopped, source)
	}
	s.active = make(map[Source]struct{})
	s.nextStart = 0
	s.mu.Unlock()

	for _, source := range stopped {
		source.Stop()
	}
	if len(stopped) > 0 {
		s.logger.Debug("playback interrupted", zap.Int("stopped_sources", len(stopped)))
	}
}

// ActiveCount returns the number of scheduled-but-unfinished sources.
func (s *Scheduler) ActiveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.active)
}

// NextStart returns the timeline position where the next chunk would begin.
func (s *Scheduler) NextStart() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nextStart
}
