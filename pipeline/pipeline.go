// Package pipeline orchestrates one run of the backup daemon: read
// every configured source, frame the entries into a tar stream,
// compress it, encrypt it, and land it atomically in the output
// directory. It composes archive, compress, encrypt, and sources
// exactly the way the container package layers writers, generalized
// from uback's fixed x25519+secretstream pipeline to a tar+xz+age one.
package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/vaultcron/vaultcron/archive"
	"github.com/vaultcron/vaultcron/compress"
	"github.com/vaultcron/vaultcron/config"
	"github.com/vaultcron/vaultcron/encrypt"
	vaultcron "github.com/vaultcron/vaultcron/lib"
	"github.com/vaultcron/vaultcron/sources"
)

var log = logrus.WithField("component", "pipeline")

// Run executes one backup: it is the sole producer of new archive
// files, and either produces exactly one complete file or leaves the
// output directory exactly as it found it.
func Run(cfg config.Config, clk Clock) (vaultcron.RunReport, error) {
	report := vaultcron.RunReport{StartedAt: clk.Now()}

	filename, err := nextFilename(cfg.OutDir, cfg.ArchiveBaseName, report.StartedAt)
	if err != nil {
		report.FatalError = err
		report.FinishedAt = clk.Now()
		return report, err
	}
	report.ArchiveFilename = filename

	tempPath := filepath.Join(cfg.OutDir, vaultcron.TempFilename(filename))
	finalPath := filepath.Join(cfg.OutDir, filename)

	log.WithField("archive", filename).Info("starting backup run")

	if err := runOnce(cfg, tempPath, &report); err != nil {
		os.Remove(tempPath)
		report.FatalError = err
		report.FinishedAt = clk.Now()
		log.WithError(err).Error("backup run aborted")
		return report, err
	}

	if err := os.Rename(tempPath, finalPath); err != nil {
		os.Remove(tempPath)
		wrapped := fmt.Errorf("pipeline: rename into place: %w", err)
		report.FatalError = wrapped
		report.FinishedAt = clk.Now()
		return report, wrapped
	}

	if info, err := os.Stat(finalPath); err == nil {
		report.BytesWritten = info.Size()
	}
	report.FinishedAt = clk.Now()

	log.WithFields(logrus.Fields{
		"archive": filename,
		"bytes":   report.BytesWritten,
		"entries": report.EntriesWritten,
	}).Info("backup run complete")

	return report, nil
}

// runOnce streams every configured source through the archive,
// compress, and encrypt stages into the temp file at tempPath.
func runOnce(cfg config.Config, tempPath string, report *vaultcron.RunReport) error {
	f, err := os.OpenFile(tempPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return fmt.Errorf("pipeline: create temp file: %w", err)
	}
	defer f.Close()

	encWriter, err := encrypt.NewWriter(f, cfg.Encryptor.Passphrase)
	if err != nil {
		return fmt.Errorf("pipeline: %w", err)
	}

	compWriter, err := compress.NewWriter(encWriter, cfg.Compressor.LevelOrDefault(), cfg.Compressor.ThreadOrDefault())
	if err != nil {
		return fmt.Errorf("pipeline: %w", err)
	}

	archWriter := archive.NewWriter(compWriter)

	for i := range cfg.Files {
		if err := runSource(cfg.Files[i], cfg.OutDir, archWriter, report); err != nil {
			return err
		}
	}

	if err := archWriter.Finish(); err != nil {
		return err
	}
	if err := compWriter.Finish(); err != nil {
		return err
	}
	if err := encWriter.Finish(); err != nil {
		return err
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("pipeline: fsync: %w", err)
	}
	return nil
}

// runSource drains one configured source into archWriter. A source
// that is entirely unavailable or fails to snapshot is recorded as a
// non-fatal error on report and does not stop the run: the remaining
// sources still get archived and Run still produces a (partial) file.
func runSource(desc config.SourceDescriptor, outDir string, archWriter *archive.Writer, report *vaultcron.RunReport) error {
	src, err := sources.New(desc, outDir)
	if err != nil {
		return fmt.Errorf("pipeline: build source: %w", err)
	}

	return sources.Drain(src, func(entry vaultcron.ArchiveEntry) error {
		defer entry.Data.Close()
		if err := archWriter.WriteEntry(entry); err != nil {
			return err
		}
		report.EntriesWritten++
		return nil
	}, func(err error) {
		report.NonFatalErrors = append(report.NonFatalErrors, err)
		log.WithError(err).Warn("entry skipped")
	})
}

// nextFilename picks the first unused sub-second disambiguation
// counter for ts, so two runs that land in the same second still get
// distinct names via the filename grammar's "_NNNN" segment.
func nextFilename(outDir, base string, ts time.Time) (string, error) {
	for seq := 0; seq < 10000; seq++ {
		name := vaultcron.FormatFilename(base, ts, seq)
		_, err := os.Stat(filepath.Join(outDir, name))
		if os.IsNotExist(err) {
			return name, nil
		} else if err != nil {
			return "", fmt.Errorf("pipeline: probe filename: %w", err)
		}
	}
	return "", fmt.Errorf("pipeline: exhausted disambiguation counter for %s", ts)
}
