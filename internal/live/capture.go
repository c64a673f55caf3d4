package live

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/hiet-studio/companion-server/pkg/audio"
)

// CaptureConfig sizes the mic processing pipeline.
type CaptureConfig struct {
	// SampleRate is the engine input rate the transport expects.
	SampleRate int
	// BlockSize is the number of samples per encoded frame.
	BlockSize int
	// QueueSize bounds the outbound frame queue. Oldest frames are dropped
	// when the transport cannot keep up.
	QueueSize int
}

// CapturePipeline re-blocks pushed mic samples into fixed-size PCM frames,
// tracks a smoothed amplitude level, and hands frames to the transport
// without blocking the push path. Frame buffers are pooled: send must not
// retain its argument past the call.
type CapturePipeline struct {
	cfg     CaptureConfig
	send    func(ctx context.Context, pcm []byte) error
	onLevel func(level float64)
	logger  *zap.Logger

	mu        sync.Mutex
	buf       []float32
	meter     audio.LevelMeter
	resampler *audio.StreamResampler
	inRate    int
	opus      *audio.OpusDecoder
	opusRate  int
	opusCh    int

	queue   chan []byte
	done    chan struct{}
	started bool
	stopped bool
}

// NewCapturePipeline creates a pipeline delivering frames through send.
func NewCapturePipeline(cfg CaptureConfig, send func(ctx context.Context, pcm []byte) error, onLevel func(level float64), logger *zap.Logger) *CapturePipeline {
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 16000
	}
	if cfg.BlockSize <= 0 {
		cfg.BlockSize = 4096
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 256
	}
	return &CapturePipeline{
		cfg:     cfg,
		send:    send,
		onLevel: onLevel,
		logger:  logger,
		queue:   make(chan []byte, cfg.QueueSize),
		done:    make(chan struct{}),
	}
}

// Start launches the sender loop. Frames queued before Start are delivered
// once it runs.
func (p *CapturePipeline) Start(ctx context.Context) {
	p.mu.Lock()
	if p.started || p.stopped {
		p.mu.Unlock()
		return
	}
	p.started = true
	p.mu.Unlock()

	go p.senderLoop(ctx)
}

func (p *CapturePipeline) senderLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-p.done:
			return
		case frame := <-p.queue:
			if err := p.send(ctx, frame); err != nil {
				p.logger.Warn("mic frame send failed", zap.Error(err))
			}
			audio.ReleaseBytes(frame)
		}
	}
}

// PushSamples feeds normalized mono mic samples at the given rate. Input not
// at the engine rate is resampled before blocking. The call never waits on
// the transport.
func (p *CapturePipeline) PushSamples(samples []float32, sampleRate int) error {
	if len(samples) == 0 {
		return nil
	}
	if sampleRate <= 0 {
		sampleRate = p.cfg.SampleRate
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped {
		return nil
	}

	if sampleRate == p.cfg.SampleRate {
		p.buf = append(p.buf, samples...)
		p.emitBlocksLocked()
		return nil
	}

	if p.resampler == nil || p.inRate != sampleRate {
		if p.resampler != nil {
			p.resampler.Close()
		}
		r, err := audio.NewStreamResampler(sampleRate, p.cfg.SampleRate)
		if err != nil {
			return fmt.Errorf("create mic resampler: %w", err)
		}
		p.resampler = r
		p.inRate = sampleRate
	}
	if err := p.resampler.Append(samples); err != nil {
		return fmt.Errorf("resample mic samples: %w", err)
	}
	for {
		block, ok := p.resampler.PopBlock(p.cfg.BlockSize)
		if !ok {
			break
		}
		p.buf = append(p.buf, block...)
		audio.ReleaseFloat32(block)
	}
	p.emitBlocksLocked()
	return nil
}

// PushOpus decodes one opus mic frame and feeds the result through the
// sample path. Multi-channel frames are downmixed to mono.
func (p *CapturePipeline) PushOpus(frame []byte, sampleRate, channels int) error {
	p.mu.Lock()
	if p.opus == nil || p.opusRate != sampleRate || p.opusCh != channels {
		dec, err := audio.NewOpusDecoder(sampleRate, channels)
		if err != nil {
			p.mu.Unlock()
			return fmt.Errorf("create opus decoder: %w", err)
		}
		p.opus = dec
		p.opusRate = sampleRate
		p.opusCh = channels
	}
	dec := p.opus
	p.mu.Unlock()

	samples, err := dec.Decode(frame)
	if err != nil {
		return fmt.Errorf("decode opus mic frame: %w", err)
	}
	if channels > 1 {
		samples = downmixMono(samples, channels)
	}
	return p.PushSamples(samples, sampleRate)
}

// emitBlocksLocked drains full blocks from the buffer: level update, PCM16
// encode, fire-and-forget enqueue. Caller holds p.mu.
func (p *CapturePipeline) emitBlocksLocked() {
	for len(p.buf) >= p.cfg.BlockSize {
		block := p.buf[:p.cfg.BlockSize]
		level := p.meter.Update(block)
		if p.onLevel != nil {
			p.onLevel(level)
		}
		ints := audio.Float32SliceToInt16SliceInto(audio.AcquireInt16(p.cfg.BlockSize), block)
		frame := audio.Int16SliceToBytesInto(audio.AcquireBytes(p.cfg.BlockSize*2), ints)
		audio.ReleaseInt16(ints)
		p.buf = p.buf[p.cfg.BlockSize:]
		p.enqueue(frame)
	}
}

// enqueue adds a frame to the outbound queue, dropping the oldest frame when
// the transport has fallen behind. Capture cadence is never blocked.
func (p *CapturePipeline) enqueue(frame []byte) {
	for {
		select {
		case p.queue <- frame:
			return
		default:
		}
		select {
		case dropped := <-p.queue:
			p.logger.Warn("mic frame queue full, dropping oldest", zap.Int("bytes", len(dropped)))
			audio.ReleaseBytes(dropped)
		default:
		}
	}
}

// Level returns the current smoothed amplitude on a 0-100 scale.
func (p *CapturePipeline) Level() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.meter.Level()
}

// Stop halts the sender loop and releases codec state. Idempotent.
func (p *CapturePipeline) Stop() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	if p.resampler != nil {
		p.resampler.Close()
		p.resampler = nil
	}
	p.buf = nil
	p.meter.Reset()
	p.mu.Unlock()
	close(p.done)
}

func downmixMono(interleaved []float32, channels int) []float32 {
	frames := len(interleaved) / channels
	out := make([]float32, frames)
	for frame := 0; frame < frames; frame++ {
		sum := float32(0)
		for ch := 0; ch < channels; ch++ {
			sum += interleaved[frame*channels+ch]
		}
		out[frame] = sum / float32(channels)
	}
	return out
}
