package wire

import (
	"encoding/binary"
	"testing"
)

func TestPackDecodeHeaderedAudio(t *testing.T) {
	payload := []byte{0x01, 0x02, 0x03, 0x04}
	frame := Pack(FormatHeadered, payload)

	got, kind, err := Decode(FormatHeadered, frame)
	if err != nil {
		t.Fatalf("Decode returned error: %v", err)
	}
	if kind != PayloadKindAudio {
		t.Fatalf("Decode kind=%v, want %v", kind, PayloadKindAudio)
	}
	if string(got) != string(payload) {
		t.Fatalf("Decode payload=%v, want %v", got, payload)
	}
}

func TestPackDecodeRawPassthrough(t *testing.T) {
	payload := []byte{0x09, 0x08, 0x07}
	frame := Pack(FormatRaw, payload)

	got, kind, err := Decode(FormatRaw, frame)
	if err != nil {
		t.Fatalf("Decode returned error: %v", err)
	}
	if kind != PayloadKindAudio {
		t.Fatalf("Decode kind=%v, want %v", kind, PayloadKindAudio)
	}
	if string(got) != string(payload) {
		t.Fatalf("Decode payload=%v, want %v", got, payload)
	}
}

func TestDecodeHeaderedCommandPayload(t *testing.T) {
	payload := []byte(`{"type":"stop-live"}`)
	frame := make([]byte, headerSize+len(payload))
	frame[0] = kindCmd
	binary.BigEndian.PutUint16(frame[2:4], uint16(len(payload)))
	copy(frame[headerSize:], payload)

	got, kind, err := Decode(FormatHeadered, frame)
	if err != nil {
		t.Fatalf("Decode(cmd) returned error: %v", err)
	}
	if kind != PayloadKindCommand {
		t.Fatalf("Decode(cmd) kind=%v, want %v", kind, PayloadKindCommand)
	}
	if string(got) != string(payload) {
		t.Fatalf("Decode(cmd) payload=%q, want %q", string(got), string(payload))
	}
}

func TestDecodeHeaderedInvalidPayloadSize(t *testing.T) {
	frame := make([]byte, headerSize)
	frame[0] = kindAudio
	binary.BigEndian.PutUint16(frame[2:4], 10)

	if _, _, err := Decode(FormatHeadered, frame); err == nil {
		t.Fatal("Decode error=nil, want non-nil")
	}
}

func TestNormalizeFormat(t *testing.T) {
	if got := NormalizeFormat(99); got != FormatRaw {
		t.Fatalf("NormalizeFormat(99)=%d, want %d", got, FormatRaw)
	}
	if got := NormalizeFormat(FormatHeadered); got != FormatHeadered {
		t.Fatalf("NormalizeFormat(headered)=%d, want %d", got, FormatHeadered)
	}
}
