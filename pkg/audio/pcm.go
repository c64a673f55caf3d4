package audio

import (
	"encoding/binary"
	"fmt"
)

// CodecError reports a malformed PCM payload.
type CodecError struct {
	Reason   string
	Bytes    int
	Channels int
}

func (e *CodecError) Error() string {
	return fmt.Sprintf("pcm codec: %s (bytes=%d channels=%d)", e.Reason, e.Bytes, e.Channels)
}

// EncodeFloat32PCM16 converts normalized float samples to little-endian
// 16-bit signed PCM. Input outside [-1, 1] is clamped.
func EncodeFloat32PCM16(samples []float32) []byte {
	if len(samples) == 0 {
		return nil
	}
	out := make([]byte, len(samples)*2)
	for i, sample := range samples {
		value := float64(sample) * 32768.0
		if value > 32767 {
			value = 32767
		}
		if value < -32768 {
			value = -32768
		}
		binary.LittleEndian.PutUint16(out[i*2:], uint16(int16(value)))
	}
	return out
}

// DecodePCM16Float32 converts little-endian 16-bit PCM bytes into per-channel
// float samples in [-1, 1]. A trailing incomplete frame is truncated; payloads
// shorter than a single frame fail.
func DecodePCM16Float32(data []byte, channels int) ([][]float32, error) {
	if channels <= 0 {
		return nil, &CodecError{Reason: "invalid channel count", Bytes: len(data), Channels: channels}
	}
	frameBytes := 2 * channels
	if len(data) < frameBytes {
		return nil, &CodecError{Reason: "payload shorter than one frame", Bytes: len(data), Channels: channels}
	}
	frames := len(data) / frameBytes

	out := make([][]float32, channels)
	for ch := range out {
		out[ch] = make([]float32, frames)
	}
	for frame := 0; frame < frames; frame++ {
		for ch := 0; ch < channels; ch++ {
			offset := (frame*channels + ch) * 2
			sample := int16(binary.LittleEndian.Uint16(data[offset : offset+2]))
			out[ch][frame] = float32(sample) / 32768.0
		}
	}
	return out, nil
}

// Float32SliceToInt16SliceInto fills dst with float32 converted to int16 and returns the slice.
func Float32SliceToInt16SliceInto(dst []int16, samples []float32) []int16 {
	if cap(dst) < len(samples) {
		dst = make([]int16, len(samples))
	} else {
		dst = dst[:len(samples)]
	}
	for i, sample := range samples {
		value := float64(sample) * 32768.0
		if value > 32767 {
			value = 32767
		}
		if value < -32768 {
			value = -32768
		}
		dst[i] = int16(value)
	}
	return dst
}

// Int16SliceToFloat32Into fills dst with int16 converted to float32 and returns the slice.
func Int16SliceToFloat32Into(dst []float32, samples []int16) []float32 {
	if cap(dst) < len(samples) {
		dst = make([]float32, len(samples))
	} else {
		dst = dst[:len(samples)]
	}
	for i, sample := range samples {
		dst[i] = float32(sample) / 32768.0
	}
	return dst
}

// Int16SliceToBytesInto converts int16 samples to little-endian bytes.
func Int16SliceToBytesInto(dst []byte, samples []int16) []byte {
	needed := len(samples) * 2
	if cap(dst) < needed {
		dst = make([]byte, needed)
	} else {
		dst = dst[:needed]
	}
	for i, sample := range samples {
		binary.LittleEndian.PutUint16(dst[i*2:], uint16(sample))
	}
	return dst
}
