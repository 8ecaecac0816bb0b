package sources

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"

	"github.com/vaultcron/vaultcron/config"
	vaultcron "github.com/vaultcron/vaultcron/lib"
)

var sqliteLog = logrus.WithFields(logrus.Fields{"source": "sqlite"})

// sqliteSource snapshots a live SQLite database using the engine's
// own online-backup facility, driven through mattn/go-sqlite3's
// binding to sqlite3_backup_init/step/finish. The snapshot is written
// to a temp file on the same filesystem as the output directory so
// the pipeline can stream it without holding the source's locks.
type sqliteSource struct {
	cfg     config.SourceDescriptor
	outDir  string
	done    bool
	emitted bool
}

func newSqliteSource(cfg config.SourceDescriptor, outDir string) (Source, error) {
	return &sqliteSource{cfg: cfg, outDir: outDir}, nil
}

// Next produces exactly one entry: the snapshot of the configured
// database, streamed from the temp copy.
func (s *sqliteSource) Next() (vaultcron.ArchiveEntry, error, bool) {
	if s.done {
		return vaultcron.ArchiveEntry{}, nil, false
	}
	s.done = true

	entry, err := s.snapshot()
	if err != nil {
		return vaultcron.ArchiveEntry{}, err, true
	}
	return entry, nil, true
}

func (s *sqliteSource) snapshot() (vaultcron.ArchiveEntry, error) {
	if _, err := os.Stat(s.cfg.SrcPath); err != nil {
		return vaultcron.ArchiveEntry{}, fmt.Errorf("%w: %s: %v", vaultcron.ErrSourceUnavailable, s.cfg.SrcPath, err)
	}

	tmp, err := os.CreateTemp(s.outDir, ".vaultcron-sqlite-*")
	if err != nil {
		return vaultcron.ArchiveEntry{}, fmt.Errorf("%w: create temp file: %v", vaultcron.ErrSnapshotFailed, err)
	}
	tmpPath := tmp.Name()
	tmp.Close()
	os.Remove(tmpPath) // sqlite3 wants to create the destination file itself

	sqliteLog.WithFields(logrus.Fields{"src": s.cfg.SrcPath, "dst": s.cfg.DstPath}).Info("starting sqlite backup")

	if err := runBackup(s.cfg.SrcPath, tmpPath); err != nil {
		os.Remove(tmpPath)
		return vaultcron.ArchiveEntry{}, fmt.Errorf("%w: %v", vaultcron.ErrSnapshotFailed, err)
	}

	info, err := os.Stat(tmpPath)
	if err != nil {
		os.Remove(tmpPath)
		return vaultcron.ArchiveEntry{}, fmt.Errorf("%w: stat snapshot: %v", vaultcron.ErrSnapshotFailed, err)
	}

	f, err := os.Open(tmpPath)
	if err != nil {
		os.Remove(tmpPath)
		return vaultcron.ArchiveEntry{}, fmt.Errorf("%w: open snapshot: %v", vaultcron.ErrSnapshotFailed, err)
	}

	return vaultcron.ArchiveEntry{
		LogicalPath: s.cfg.DstPath,
		Size:        info.Size(),
		ModTime:     info.ModTime().Unix(),
		Mode:        0o644,
		Data:        &removeOnCloseFile{File: f, path: tmpPath},
	}, nil
}

// backupRetryDelay is how long a step waits before retrying after the
// source database is momentarily locked by a concurrent writer.
const backupRetryDelay = 10 * time.Millisecond

// isBusyOrLocked reports whether err is SQLite's busy or locked
// status, the transient condition a concurrent writer produces and
// that the backup API is meant to be retried through rather than
// treated as failure.
func isBusyOrLocked(err error) bool {
	sqliteErr, ok := err.(sqlite3.Error)
	if !ok {
		return false
	}
	return sqliteErr.Code == sqlite3.ErrBusy || sqliteErr.Code == sqlite3.ErrLocked
}

// runBackup drives sqlite3_backup_init/step/finish between src
// (opened read-only) and a fresh database file at dstPath. Retrying
// on a transient busy/locked step is what lets a writer keep the
// source database open for the duration of the snapshot.
func runBackup(src, dstPath string) error {
	srcDB, err := sql.Open("sqlite3", "file:"+src+"?mode=ro&immutable=0")
	if err != nil {
		return fmt.Errorf("open source: %w", err)
	}
	defer srcDB.Close()

	dstDB, err := sql.Open("sqlite3", dstPath)
	if err != nil {
		return fmt.Errorf("open destination: %w", err)
	}
	defer dstDB.Close()

	srcConn, err := srcDB.Conn(context.Background())
	if err != nil {
		return fmt.Errorf("%w: %v", vaultcron.ErrSourceUnavailable, err)
	}
	defer srcConn.Close()

	dstConn, err := dstDB.Conn(context.Background())
	if err != nil {
		return fmt.Errorf("acquire destination conn: %w", err)
	}
	defer dstConn.Close()

	var backupErr error
	err = dstConn.Raw(func(dstDriverConn interface{}) error {
		dstSQLite, ok := dstDriverConn.(*sqlite3.SQLiteConn)
		if !ok {
			return fmt.Errorf("destination driver is not sqlite3")
		}
		return srcConn.Raw(func(srcDriverConn interface{}) error {
			srcSQLite, ok := srcDriverConn.(*sqlite3.SQLiteConn)
			if !ok {
				return fmt.Errorf("source driver is not sqlite3")
			}

			backup, err := dstSQLite.Backup("main", srcSQLite, "main")
			if err != nil {
				backupErr = err
				return nil
			}
			defer backup.Finish()

			for {
				done, err := backup.Step(-1)
				if err != nil {
					if isBusyOrLocked(err) {
						time.Sleep(backupRetryDelay)
						continue
					}
					backupErr = err
					return nil
				}
				if done {
					break
				}
			}
			return nil
		})
	})
	if err != nil {
		return err
	}
	return backupErr
}

// removeOnCloseFile deletes the temp snapshot file once the archive
// writer has finished streaming it.
type removeOnCloseFile struct {
	*os.File
	path string
}

func (f *removeOnCloseFile) Close() error {
	err := f.File.Close()
	os.Remove(f.path)
	return err
}

var _ io.ReadCloser = (*removeOnCloseFile)(nil)
