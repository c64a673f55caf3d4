package audio

import (
	"errors"

	godepsopus "github.com/godeps/opus"
)

const opusMaxFrameDurationMs = 120

// OpusDecoder unwraps opus-compressed mic frames into normalized samples.
type OpusDecoder struct {
	dec        *godepsopus.Decoder
	sampleRate int
	channels   int
}

// NewOpusDecoder creates a decoder for the given stream parameters.
func NewOpusDecoder(sampleRate, channels int) (*OpusDecoder, error) {
	if sampleRate <= 0 || channels <= 0 {
		return nil, errors.New("opus decoder needs positive rate and channels")
	}
	dec, err := godepsopus.NewDecoder(sampleRate, channels)
	if err != nil {
		return nil, err
	}
	return &OpusDecoder{dec: dec, sampleRate: sampleRate, channels: channels}, nil
}

// Decode expands one opus frame into normalized float samples, interleaved
// when the stream is multi-channel.
func (d *OpusDecoder) Decode(frame []byte) ([]float32, error) {
	if d == nil || d.dec == nil {
		return nil, errors.New("opus decoder is not initialized")
	}
	if len(frame) == 0 {
		return nil, errors.New("empty opus frame")
	}
	maxSamples := d.sampleRate * opusMaxFrameDurationMs / 1000
	pcm := AcquireInt16(maxSamples * d.channels)
	defer ReleaseInt16(pcm)

	decoded, err := d.dec.Decode(frame, pcm)
	if err != nil {
		return nil, err
	}
	if decoded <= 0 {
		return nil, nil
	}
	out := make([]float32, 0, decoded*d.channels)
	out = Int16SliceToFloat32Into(out, pcm[:decoded*d.channels])
	return out, nil
}
