package audio

import (
	"math"
	"testing"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	samples := []float32{0, 0.25, -0.25, 0.5, -0.5, 0.999, -0.999, 1, -1}
	encoded := EncodeFloat32PCM16(samples)
	if got, want := len(encoded), len(samples)*2; got != want {
		t.Fatalf("encoded bytes=%d, want %d", got, want)
	}

	channels, err := DecodePCM16Float32(encoded, 1)
	if err != nil {
		t.Fatalf("DecodePCM16Float32 error: %v", err)
	}
	if len(channels) != 1 {
		t.Fatalf("channels=%d, want 1", len(channels))
	}
	const tolerance = 1.0 / 32768.0
	for i, original := range samples {
		if diff := math.Abs(float64(channels[0][i] - original)); diff > tolerance {
			t.Fatalf("sample %d: decoded=%f original=%f diff=%f", i, channels[0][i], original, diff)
		}
	}
}

func TestEncodeClampsOutOfRange(t *testing.T) {
	encoded := EncodeFloat32PCM16([]float32{2.0, -2.0})
	channels, err := DecodePCM16Float32(encoded, 1)
	if err != nil {
		t.Fatalf("DecodePCM16Float32 error: %v", err)
	}
	if channels[0][0] < 0.99 {
		t.Fatalf("clamped positive sample=%f, want near 1", channels[0][0])
	}
	if channels[0][1] > -0.99 {
		t.Fatalf("clamped negative sample=%f, want near -1", channels[0][1])
	}
}

func TestDecodeDeinterleavesChannels(t *testing.T) {
	interleaved := []int16{100, -100, 200, -200, 300, -300}
	data := Int16SliceToBytesInto(nil, interleaved)

	channels, err := DecodePCM16Float32(data, 2)
	if err != nil {
		t.Fatalf("DecodePCM16Float32 error: %v", err)
	}
	if len(channels) != 2 || len(channels[0]) != 3 {
		t.Fatalf("shape=%dx%d, want 2x3", len(channels), len(channels[0]))
	}
	if channels[0][1] != float32(200)/32768.0 {
		t.Fatalf("left[1]=%f, want %f", channels[0][1], float32(200)/32768.0)
	}
	if channels[1][2] != float32(-300)/32768.0 {
		t.Fatalf("right[2]=%f, want %f", channels[1][2], float32(-300)/32768.0)
	}
}

func TestDecodeTruncatesTrailingPartialFrame(t *testing.T) {
	data := []byte{0x00, 0x01, 0x00, 0x02, 0xFF}
	channels, err := DecodePCM16Float32(data, 1)
	if err != nil {
		t.Fatalf("DecodePCM16Float32 error: %v", err)
	}
	if got := len(channels[0]); got != 2 {
		t.Fatalf("frames=%d, want 2", got)
	}
}

func TestDecodeRejectsShortPayload(t *testing.T) {
	if _, err := DecodePCM16Float32([]byte{0x01}, 1); err == nil {
		t.Fatal("DecodePCM16Float32 error=nil for short payload, want CodecError")
	}
	if _, err := DecodePCM16Float32([]byte{0x01, 0x02}, 0); err == nil {
		t.Fatal("DecodePCM16Float32 error=nil for zero channels, want CodecError")
	}
}

func TestLevelMeterSmoothing(t *testing.T) {
	meter := &LevelMeter{}

	loud := make([]float32, 128)
	for i := range loud {
		loud[i] = 0.5
	}
	first := meter.Update(loud)
	want := 0.5 * 100 * levelWeightNew
	if math.Abs(first-want) > 1e-9 {
		t.Fatalf("first level=%f, want %f", first, want)
	}

	second := meter.Update(loud)
	if second <= first {
		t.Fatalf("second level=%f, want > %f", second, first)
	}

	meter.Reset()
	if meter.Level() != 0 {
		t.Fatalf("level after reset=%f, want 0", meter.Level())
	}
}

func TestRMSFloat32(t *testing.T) {
	if got := RMSFloat32(nil); got != 0 {
		t.Fatalf("RMS(nil)=%f, want 0", got)
	}
	block := []float32{0.5, -0.5, 0.5, -0.5}
	if got := RMSFloat32(block); math.Abs(got-0.5) > 1e-9 {
		t.Fatalf("RMS=%f, want 0.5", got)
	}
}
