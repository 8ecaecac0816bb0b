// Package sources implements the Source readers: given a source
// descriptor, produce a lazy, finite, non-restartable sequence of
// ArchiveEntry values. The factory-by-Type-tag shape mirrors uback's
// sources.New dispatcher; the "zfs"/"btrfs"/"mariabackup"/
// "command"/"proxy" variants it offered existed for uback's
// incremental-snapshot and remote-proxy features, which this daemon
// does not support, so only "sqlite", "glob", and "inline" survive
// here.
package sources

import (
	"errors"
	"fmt"

	"github.com/vaultcron/vaultcron/config"
	vaultcron "github.com/vaultcron/vaultcron/lib"
)

// Source produces archive entries for one configured file block. Next
// returns (entry, nil, true) for each entry in order, a non-fatal
// *vaultcron.EntrySkipped via the error slot without stopping
// iteration, or (zero, nil, false) at end of sequence. Implementations
// are single-threaded and must be drained exactly once.
type Source interface {
	Next() (vaultcron.ArchiveEntry, error, bool)
}

// New builds the concrete Source for a descriptor, dispatching on
// cfg.Type exactly as uback's sources.New does on
// options.String["Type"].
func New(cfg config.SourceDescriptor, outDir string) (Source, error) {
	switch cfg.Type {
	case "sqlite":
		return newSqliteSource(cfg, outDir)
	case "glob":
		return newGlobSource(cfg)
	case "inline":
		return newInlineSource(cfg)
	default:
		return nil, fmt.Errorf("sources: unknown type %q", cfg.Type)
	}
}

// Drain pulls every entry from src and calls fn for each. A returned
// *vaultcron.EntrySkipped error is handed to onSkip and iteration
// continues with the next entry. An ErrSourceUnavailable/
// ErrSnapshotFailed from the source as a whole is fatal only to this
// source: it is handed to onSkip and iteration stops there, letting
// the caller move on to the next configured source. Any other error
// aborts immediately.
func Drain(src Source, fn func(vaultcron.ArchiveEntry) error, onSkip func(error)) error {
	for {
		entry, err, ok := src.Next()
		if !ok {
			return nil
		}
		if err != nil {
			var skipped *vaultcron.EntrySkipped
			if isEntrySkipped(err, &skipped) {
				onSkip(err)
				continue
			}
			if errors.Is(err, vaultcron.ErrSourceUnavailable) || errors.Is(err, vaultcron.ErrSnapshotFailed) {
				onSkip(err)
				return nil
			}
			return err
		}
		if err := fn(entry); err != nil {
			return err
		}
	}
}

func isEntrySkipped(err error, out **vaultcron.EntrySkipped) bool {
	if skipped, ok := err.(*vaultcron.EntrySkipped); ok {
		*out = skipped
		return true
	}
	return false
}
