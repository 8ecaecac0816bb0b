package encrypt

import (
	"bytes"
	"io"
	"testing"
)

func TestWriterRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	w, err := NewWriter(&buf, "correct-horse-battery-staple")
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}

	plaintext := []byte("the archive contents go here")
	if _, err := w.Write(plaintext); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := w.Finish(); err != nil {
		t.Fatalf("Finish: %v", err)
	}

	r, err := NewReader(bytes.NewReader(buf.Bytes()), "correct-horse-battery-staple")
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}
	got, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("read plaintext: %v", err)
	}
	if !bytes.Equal(got, plaintext) {
		t.Errorf("round-trip mismatch: got %q, want %q", got, plaintext)
	}
}

func TestReaderRejectsWrongPassphrase(t *testing.T) {
	var buf bytes.Buffer
	w, err := NewWriter(&buf, "right-passphrase")
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	if _, err := w.Write([]byte("secret")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := w.Finish(); err != nil {
		t.Fatalf("Finish: %v", err)
	}

	r, err := NewReader(bytes.NewReader(buf.Bytes()), "wrong-passphrase")
	if err != nil {
		// Some age implementations fail at open time already.
		return
	}
	if _, err := io.ReadAll(r); err == nil {
		t.Errorf("expected decryption failure with wrong passphrase")
	}
}
