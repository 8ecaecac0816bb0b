// Package archive frames a stream of ArchiveEntry values into a POSIX
// tape archive, using the standard library's archive/tar encoder —
// ustar with automatic pax extended headers for overflowing fields is
// exactly what archive/tar already does, and no third-party tar
// encoder appears anywhere in the example pack.
package archive

import (
	"archive/tar"
	"fmt"
	"io"

	vaultcron "github.com/vaultcron/vaultcron/lib"
)

// Writer wraps a downstream byte sink with tar framing. It does not
// buffer entry bodies; WriteEntry streams directly from entry.Data.
type Writer struct {
	tw   *tar.Writer
	seen map[string]struct{}
}

// NewWriter returns a Writer that frames entries onto w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{
		tw:   tar.NewWriter(w),
		seen: make(map[string]struct{}),
	}
}

// WriteEntry writes one header+body+padding record. Rejects a second
// entry with the same LogicalPath within this archive.
func (w *Writer) WriteEntry(e vaultcron.ArchiveEntry) error {
	if !vaultcron.ValidLogicalPath(e.LogicalPath) {
		return fmt.Errorf("archive: invalid logical path %q", e.LogicalPath)
	}
	if _, dup := w.seen[e.LogicalPath]; dup {
		return fmt.Errorf("%w: %s", vaultcron.ErrDuplicatePath, e.LogicalPath)
	}
	w.seen[e.LogicalPath] = struct{}{}

	hdr := &tar.Header{
		Name:     e.LogicalPath,
		Size:     e.Size,
		Mode:     e.Mode,
		ModTime:  secondsToTime(e.ModTime),
		Typeflag: tar.TypeReg,
	}
	if hdr.Mode == 0 {
		hdr.Mode = 0o644
	}

	if err := w.tw.WriteHeader(hdr); err != nil {
		return fmt.Errorf("archive: write header for %s: %w", e.LogicalPath, err)
	}

	n, err := io.Copy(w.tw, e.Data)
	if err != nil {
		return fmt.Errorf("archive: stream body for %s: %w", e.LogicalPath, err)
	}
	if n != e.Size {
		return fmt.Errorf("archive: %s: wrote %d bytes, header declared %d", e.LogicalPath, n, e.Size)
	}

	return nil
}

// Finish writes the two trailing zero blocks that close a tar stream.
func (w *Writer) Finish() error {
	if err := w.tw.Close(); err != nil {
		return fmt.Errorf("archive: finish: %w", err)
	}
	return nil
}
