package framing

import (
	"bytes"
	"testing"
)

func TestEncodeFrameRoundTrip(t *testing.T) {
	wire, err := EncodeFrame([]byte{0x99}, []byte{0x01, 0x02, 0x03})
	if err != nil {
		t.Fatalf("EncodeFrame: %v", err)
	}
	if !bytes.Equal(wire, []byte{0x99, 0x03, 0x01, 0x02, 0x03}) {
		t.Fatalf("wire = %v, want [99 03 01 02 03]", wire)
	}

	f := mustHeader(t, Bytes(0x99))
	frames := f.OnChunk(wire)
	if len(frames) != 1 || !bytes.Equal(frames[0], wire) {
		t.Errorf("decoded %v, want the encoded frame back", frames)
	}
}

func TestEncodeFrameEmptyPayload(t *testing.T) {
	wire, err := EncodeFrame([]byte{0x99}, nil)
	if err != nil {
		t.Fatalf("EncodeFrame: %v", err)
	}
	if !bytes.Equal(wire, []byte{0x99, 0x00}) {
		t.Errorf("wire = %v, want [99 00]", wire)
	}
}

func TestEncodeFramePayloadTooLong(t *testing.T) {
	if _, err := EncodeFrame([]byte{0x99}, make([]byte, 256)); err == nil {
		t.Error("expected error for 256-byte payload, got nil")
	}
}

func TestAppendTerminatedRoundTrip(t *testing.T) {
	term := []byte{0x0D, 0x0A}
	wire := AppendTerminated(nil, []byte("AB"), term)
	wire = AppendTerminated(wire, []byte("CD"), term)

	f := mustTerminator(t, Bytes(0x0D, 0x0A))
	frames := f.OnChunk(wire)
	if len(frames) != 2 {
		t.Fatalf("expected 2 frames, got %d", len(frames))
	}
	if string(frames[0]) != "AB" || string(frames[1]) != "CD" {
		t.Errorf("frames = %q, %q, want AB, CD", frames[0], frames[1])
	}
}

func TestDecodeText(t *testing.T) {
	got := DecodeText([]byte{0x48, 0x69, 0xB0})
	if got != "Hi°" {
		t.Errorf("DecodeText = %q, want %q", got, "Hi°")
	}
}

func TestEncodeTextInverse(t *testing.T) {
	b, err := EncodeText("Hi°")
	if err != nil {
		t.Fatalf("EncodeText: %v", err)
	}
	if !bytes.Equal(b, []byte{0x48, 0x69, 0xB0}) {
		t.Errorf("EncodeText = %v, want [48 69 B0]", b)
	}
}

func TestEncodeTextRejectsWideRunes(t *testing.T) {
	if _, err := EncodeText("price €5"); err == nil {
		t.Error("expected error for rune above 0xFF, got nil")
	}
}
