// Package encrypt wraps a byte sink with a passphrase-keyed age
// envelope: a scrypt recipient stanza wraps a per-file data key, and
// the payload is chunked ChaCha20-Poly1305 over the wrapped writer.
// filippo.io/age already implements exactly this.
package encrypt

import (
	"fmt"
	"io"

	"filippo.io/age"
)

// Writer is an io.WriteCloser that encrypts everything written to it.
type Writer struct {
	aw io.WriteCloser
}

// NewWriter builds a fresh age.ScryptRecipient (new random salt on
// every call, so every run is rekeyed) and wraps dst.
func NewWriter(dst io.Writer, passphrase string) (*Writer, error) {
	recipient, err := age.NewScryptRecipient(passphrase)
	if err != nil {
		return nil, fmt.Errorf("encrypt: build recipient: %w", err)
	}

	aw, err := age.Encrypt(dst, recipient)
	if err != nil {
		return nil, fmt.Errorf("encrypt: open envelope: %w", err)
	}

	return &Writer{aw: aw}, nil
}

// Write implements io.Writer.
func (w *Writer) Write(p []byte) (int, error) {
	return w.aw.Write(p)
}

// Finish closes the age envelope, flushing the final authenticated
// chunk.
func (w *Writer) Finish() error {
	if err := w.aw.Close(); err != nil {
		return fmt.Errorf("encrypt: finish: %w", err)
	}
	return nil
}

// NewReader opens an age envelope for reading, given the same
// passphrase used to encrypt it. Used only by the round-trip test
// suite; restore/decrypt tooling proper is out of scope.
func NewReader(src io.Reader, passphrase string) (io.Reader, error) {
	identity, err := age.NewScryptIdentity(passphrase)
	if err != nil {
		return nil, fmt.Errorf("encrypt: build identity: %w", err)
	}

	r, err := age.Decrypt(src, identity)
	if err != nil {
		return nil, fmt.Errorf("encrypt: open envelope: %w", err)
	}
	return r, nil
}
