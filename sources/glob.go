package sources

import (
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/sirupsen/logrus"

	"github.com/vaultcron/vaultcron/config"
	vaultcron "github.com/vaultcron/vaultcron/lib"
)

var globLog = logrus.WithFields(logrus.Fields{"source": "glob"})

// globSource walks src_dir and emits every regular file whose path
// relative to src_dir matches at least one of the configured patterns
// (doublestar syntax: "**", "*", "?", "[...]"). Entries are emitted in
// lexicographic order of their logical path so archive contents are
// deterministic across runs.
type globSource struct {
	cfg     config.SourceDescriptor
	entries []globEntry
	skipped []error
	i       int
	built   bool
}

type globEntry struct {
	logicalPath string
	fullPath    string
	size        int64
	modTime     int64
}

func newGlobSource(cfg config.SourceDescriptor) (Source, error) {
	return &globSource{cfg: cfg}, nil
}

func (s *globSource) Next() (vaultcron.ArchiveEntry, error, bool) {
	if !s.built {
		if err := s.build(); err != nil {
			s.built = true
			return vaultcron.ArchiveEntry{}, err, true
		}
	}

	for len(s.skipped) > 0 {
		err := s.skipped[0]
		s.skipped = s.skipped[1:]
		return vaultcron.ArchiveEntry{}, err, true
	}

	if s.i >= len(s.entries) {
		return vaultcron.ArchiveEntry{}, nil, false
	}
	e := s.entries[s.i]
	s.i++

	f, err := os.Open(e.fullPath)
	if err != nil {
		return vaultcron.ArchiveEntry{}, &vaultcron.EntrySkipped{Path: e.logicalPath, Reason: err}, true
	}

	return vaultcron.ArchiveEntry{
		LogicalPath: e.logicalPath,
		Size:        e.size,
		ModTime:     e.modTime,
		Mode:        0o644,
		Data:        f,
	}, nil, true
}

// build walks the source tree once, matching every regular file
// against the configured patterns, and sorts the matches so iteration
// order is deterministic regardless of the filesystem's own ordering.
func (s *globSource) build() error {
	s.built = true

	root := s.cfg.SrcDir
	if _, err := os.Stat(root); err != nil {
		return fmt.Errorf("%w: %s: %v", vaultcron.ErrSourceUnavailable, root, err)
	}

	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			s.skipped = append(s.skipped, &vaultcron.EntrySkipped{Path: p, Reason: err})
			return nil
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			s.skipped = append(s.skipped, &vaultcron.EntrySkipped{Path: p, Reason: err})
			return nil
		}
		if info.Mode()&fs.ModeSymlink != 0 {
			// Symlinks are followed for regular files but not directories;
			// d.Info() above is Lstat-based and never reports the target.
			resolved, err := os.Stat(p)
			if err != nil {
				s.skipped = append(s.skipped, &vaultcron.EntrySkipped{Path: p, Reason: err})
				return nil
			}
			if resolved.IsDir() {
				return nil
			}
			info = resolved
		}
		if !info.Mode().IsRegular() {
			return nil
		}

		rel, err := filepath.Rel(root, p)
		if err != nil {
			s.skipped = append(s.skipped, &vaultcron.EntrySkipped{Path: p, Reason: err})
			return nil
		}
		rel = filepath.ToSlash(rel)

		matched := false
		for _, pattern := range s.cfg.Patterns {
			ok, err := doublestar.Match(pattern, rel)
			if err != nil {
				return fmt.Errorf("glob: bad pattern %q: %w", pattern, err)
			}
			if ok {
				matched = true
				break
			}
		}
		if !matched {
			return nil
		}

		logical := rel
		if s.cfg.DstPrefix != "" {
			logical = path.Join(s.cfg.DstPrefix, rel)
		}
		if !vaultcron.ValidLogicalPath(logical) {
			s.skipped = append(s.skipped, &vaultcron.EntrySkipped{Path: logical, Reason: fmt.Errorf("invalid logical path")})
			return nil
		}

		s.entries = append(s.entries, globEntry{
			logicalPath: logical,
			fullPath:    p,
			size:        info.Size(),
			modTime:     info.ModTime().Unix(),
		})
		return nil
	})
	if err != nil {
		return err
	}

	sort.Slice(s.entries, func(i, j int) bool {
		return s.entries[i].logicalPath < s.entries[j].logicalPath
	})

	globLog.WithFields(logrus.Fields{"src_dir": root, "matched": len(s.entries)}).Info("glob scan complete")
	return nil
}
