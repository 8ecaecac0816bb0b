package vaultcron

import (
	"io"
	"path"
	"strings"
)

// ArchiveEntry is one logical file streamed into the archive writer by a
// source reader. Size must be known up front and equal the number of
// bytes Data yields: archive.Writer writes it into the tar header before
// streaming the body and rejects an entry whose body length differs, so
// entries of unknown length are not supported.
type ArchiveEntry struct {
	LogicalPath string
	Size        int64
	ModTime     int64 // seconds since epoch, UTC
	Mode        int64 // unix permission bits
	Data        io.ReadCloser
}

// ValidLogicalPath reports whether p is a well-formed archive path:
// non-empty, relative, forward-slash separated, no ".." segments.
func ValidLogicalPath(p string) bool {
	if p == "" || path.IsAbs(p) {
		return false
	}
	if strings.Contains(p, "\\") {
		return false
	}
	for _, seg := range strings.Split(p, "/") {
		if seg == ".." {
			return false
		}
	}
	return true
}
