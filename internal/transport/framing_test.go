package transport

import (
	"bytes"
	"errors"
	"testing"
)

func TestEncodeFrame_PrefixPadding(t *testing.T) {
	payload := []byte(`{"a":1}`)
	framed, err := EncodeFrame(payload)
	if err != nil {
		t.Fatalf("EncodeFrame() error = %v", err)
	}
	if got := string(framed[:4]); got != "   7" {
		t.Errorf("prefix = %q, want %q", got, "   7")
	}
	if !bytes.Equal(framed[4:], payload) {
		t.Errorf("payload = %q, want %q", framed[4:], payload)
	}
}

func TestEncodeFrame_FourDigitLength(t *testing.T) {
	payload := bytes.Repeat([]byte("x"), 1234)
	framed, err := EncodeFrame(payload)
	if err != nil {
		t.Fatalf("EncodeFrame() error = %v", err)
	}
	if got := string(framed[:4]); got != "1234" {
		t.Errorf("prefix = %q, want %q", got, "1234")
	}
	if len(framed) != 4+1234 {
		t.Errorf("len(framed) = %d, want %d", len(framed), 4+1234)
	}
}

func TestEncodeFrame_TooLarge(t *testing.T) {
	_, err := EncodeFrame(bytes.Repeat([]byte("x"), 10000))
	if !errors.Is(err, ErrPayloadTooLarge) {
		t.Errorf("EncodeFrame() error = %v, want ErrPayloadTooLarge", err)
	}
}
