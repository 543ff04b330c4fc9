package audioio

import (
	"bytes"
	"testing"
)

func TestEncodeWAVHeader(t *testing.T) {
	samples := make([]int16, 1600) // 100ms at 16kHz
	data, err := EncodeWAV(samples, 16000)
	if err != nil {
		t.Fatalf("EncodeWAV failed: %v", err)
	}

	if len(data) != 44+len(samples)*2 {
		t.Errorf("expected %d bytes, got %d", 44+len(samples)*2, len(data))
	}
	if !bytes.Equal(data[0:4], []byte("RIFF")) {
		t.Errorf("expected RIFF chunk ID, got %q", data[0:4])
	}
	if !bytes.Equal(data[8:12], []byte("WAVE")) {
		t.Errorf("expected WAVE format, got %q", data[8:12])
	}
	if !bytes.Equal(data[36:40], []byte("data")) {
		t.Errorf("expected data subchunk ID, got %q", data[36:40])
	}
}

func TestEncodeWAVEmpty(t *testing.T) {
	if _, err := EncodeWAV(nil, 16000); err == nil {
		t.Error("expected error for empty samples")
	}
	if _, err := EncodeWAV([]int16{1, 2, 3}, 0); err == nil {
		t.Error("expected error for zero sample rate")
	}
}

func TestDecodeWAVRoundTrip(t *testing.T) {
	original := []int16{0, 100, -100, 32767, -32768, 42}
	data, err := EncodeWAV(original, 24000)
	if err != nil {
		t.Fatalf("EncodeWAV failed: %v", err)
	}

	decoded, rate, err := DecodeWAV(data)
	if err != nil {
		t.Fatalf("DecodeWAV failed: %v", err)
	}
	if rate != 24000 {
		t.Errorf("expected sample rate 24000, got %d", rate)
	}
	if len(decoded) != len(original) {
		t.Fatalf("expected %d samples, got %d", len(original), len(decoded))
	}
	for i := range original {
		if decoded[i] != original[i] {
			t.Errorf("sample %d: expected %d, got %d", i, original[i], decoded[i])
		}
	}
}

func TestDecodeWAVInvalid(t *testing.T) {
	if _, _, err := DecodeWAV([]byte("too short")); err == nil {
		t.Error("expected error for truncated data")
	}

	garbage := make([]byte, 64)
	copy(garbage, "NOTAWAVFILE")
	if _, _, err := DecodeWAV(garbage); err == nil {
		t.Error("expected error for non-WAV data")
	}
}
