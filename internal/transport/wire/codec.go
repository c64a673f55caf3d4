package wire

import (
	"encoding/binary"
	"errors"
)

// Binary framing for mic audio on the browser websocket. JSON base64 framing
// roughly doubles the audio payload size, so clients that can speak binary
// send framed PCM (or opus) instead.

const (
	// FormatRaw frames carry a bare audio payload with no header.
	FormatRaw = 1
	// FormatHeadered frames carry a 4-byte header: kind, flags, uint16
	// big-endian payload size.
	FormatHeadered = 2

	headerSize = 4

	kindAudio = 0
	kindCmd   = 1
)

// PayloadKind describes the decoded payload category.
type PayloadKind int

const (
	// PayloadKindAudio indicates audio bytes.
	PayloadKindAudio PayloadKind = iota
	// PayloadKindCommand indicates JSON command bytes.
	PayloadKindCommand
)

// NormalizeFormat returns a supported framing format.
func NormalizeFormat(format int) int {
	if format == FormatHeadered {
		return FormatHeadered
	}
	return FormatRaw
}

// Decode parses one binary frame according to the negotiated format.
func Decode(format int, frame []byte) ([]byte, PayloadKind, error) {
	if NormalizeFormat(format) == FormatRaw {
		return frame, PayloadKindAudio, nil
	}
	if len(frame) < headerSize {
		return nil, PayloadKindAudio, errors.New("wire frame too short")
	}
	kind := frame[0]
	payloadSize := binary.BigEndian.Uint16(frame[2:4])
	if int(payloadSize) > len(frame)-headerSize {
		return nil, PayloadKindAudio, errors.New("wire frame invalid payload size")
	}
	payload := frame[headerSize : headerSize+int(payloadSize)]
	switch kind {
	case kindAudio:
		return payload, PayloadKindAudio, nil
	case kindCmd:
		return payload, PayloadKindCommand, nil
	default:
		return nil, PayloadKindAudio, errors.New("wire frame unsupported payload kind")
	}
}

// Pack creates one binary audio frame according to the negotiated format.
func Pack(format int, payload []byte) []byte {
	if NormalizeFormat(format) == FormatRaw {
		return payload
	}
	head := make([]byte, headerSize)
	head[0] = kindAudio
	head[1] = 0
	binary.BigEndian.PutUint16(head[2:4], uint16(len(payload)))
	return append(head, payload...)
}
