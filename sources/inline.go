package sources

import (
	"bytes"
	"io"
	"time"

	"github.com/vaultcron/vaultcron/config"
	vaultcron "github.com/vaultcron/vaultcron/lib"
)

// inlineSource emits exactly one entry from a base64-decoded literal
// embedded directly in the config. The decode already happened once
// in config.Validate, so this type only has to wrap the result in an
// ArchiveEntry.
type inlineSource struct {
	cfg  config.SourceDescriptor
	done bool
}

func newInlineSource(cfg config.SourceDescriptor) (Source, error) {
	return &inlineSource{cfg: cfg}, nil
}

func (s *inlineSource) Next() (vaultcron.ArchiveEntry, error, bool) {
	if s.done {
		return vaultcron.ArchiveEntry{}, nil, false
	}
	s.done = true

	data := s.cfg.Decoded()
	return vaultcron.ArchiveEntry{
		LogicalPath: s.cfg.DstPath,
		Size:        int64(len(data)),
		ModTime:     time.Now().Unix(),
		Mode:        0o644,
		Data:        io.NopCloser(bytes.NewReader(data)),
	}, nil, true
}
