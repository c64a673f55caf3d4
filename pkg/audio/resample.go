package audio

import (
	"errors"
	"sync"

	resampler "github.com/godeps/go-audio-soxr"
)

type soxrKey struct {
	inRate  int
	outRate int
	quality resampler.QualityPreset
}

var soxrPools sync.Map

func getSoxrPool(key soxrKey) *sync.Pool {
	if pool, ok := soxrPools.Load(key); ok {
		return pool.(*sync.Pool)
	}
	pool := &sync.Pool{}
	actual, _ := soxrPools.LoadOrStore(key, pool)
	return actual.(*sync.Pool)
}

func acquireSoxrResampler(inRate, outRate int, quality resampler.QualityPreset) (*resampler.SimpleResamplerFloat32, error) {
	key := soxrKey{inRate: inRate, outRate: outRate, quality: quality}
	pool := getSoxrPool(key)
	if v := pool.Get(); v != nil {
		if r, ok := v.(*resampler.SimpleResamplerFloat32); ok && r != nil {
			return r, nil
		}
	}
	return resampler.NewEngineFloat32(float64(inRate), float64(outRate), quality)
}

func releaseSoxrResampler(inRate, outRate int, quality resampler.QualityPreset, r *resampler.SimpleResamplerFloat32) {
	if r == nil {
		return
	}
	r.Reset()
	key := soxrKey{inRate: inRate, outRate: outRate, quality: quality}
	getSoxrPool(key).Put(r)
}

// StreamResampler keeps resampling state across mic sample pushes so that
// arbitrary-rate input can be re-blocked at the engine rate.
type StreamResampler struct {
	inRate  int
	outRate int
	quality resampler.QualityPreset
	r       *resampler.SimpleResamplerFloat32
	outBuf  []float32
}

// NewStreamResampler creates a streaming resampler for continuous audio.
func NewStreamResampler(inRate, outRate int) (*StreamResampler, error) {
	if inRate <= 0 || outRate <= 0 {
		return nil, errors.New("resampler rates must be positive")
	}
	r, err := acquireSoxrResampler(inRate, outRate, resampler.QualityHigh)
	if err != nil {
		return nil, err
	}
	return &StreamResampler{
		inRate:  inRate,
		outRate: outRate,
		quality: resampler.QualityHigh,
		r:       r,
	}, nil
}

// Append pushes normalized samples through the resampler.
func (s *StreamResampler) Append(samples []float32) error {
	if s == nil || s.r == nil {
		return errors.New("resampler is closed")
	}
	if len(samples) == 0 {
		return nil
	}
	out, err := s.r.Process(samples)
	if err != nil {
		return err
	}
	if len(out) > 0 {
		s.outBuf = append(s.outBuf, out...)
	}
	return nil
}

// PopBlock returns a fixed-size block of resampled output if enough samples
// have accumulated.
func (s *StreamResampler) PopBlock(blockSize int) ([]float32, bool) {
	if s == nil || blockSize <= 0 || len(s.outBuf) < blockSize {
		return nil, false
	}
	block := AcquireFloat32(blockSize)
	copy(block, s.outBuf[:blockSize])
	s.outBuf = s.outBuf[blockSize:]
	return block, true
}

// Flush drains the internal soxr state into the output buffer.
func (s *StreamResampler) Flush() error {
	if s == nil || s.r == nil {
		return nil
	}
	out, err := s.r.Flush()
	if err != nil {
		return err
	}
	if len(out) > 0 {
		s.outBuf = append(s.outBuf, out...)
	}
	return nil
}

// Close releases the underlying soxr engine back to the pool.
func (s *StreamResampler) Close() {
	if s == nil {
		return
	}
	if s.r != nil {
		releaseSoxrResampler(s.inRate, s.outRate, s.quality, s.r)
		s.r = nil
	}
	s.outBuf = nil
}
