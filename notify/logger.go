package notify

import (
	"github.com/sirupsen/logrus"

	vaultcron "github.com/vaultcron/vaultcron/lib"
)

// Logger is the always-on notifier: every run outcome is logged
// regardless of what's configured under `notifications`.
type Logger struct{}

// Notify writes a structured log line summarizing the run.
func (Logger) Notify(report vaultcron.RunReport) error {
	fields := logrus.Fields{
		"archive":       report.ArchiveFilename,
		"bytes_written": report.BytesWritten,
		"entries":       report.EntriesWritten,
		"duration":      report.FinishedAt.Sub(report.StartedAt).String(),
		"non_fatal":     len(report.NonFatalErrors),
	}

	switch {
	case report.FatalError != nil:
		logrus.WithFields(fields).WithError(report.FatalError).Error("backup run failed")
	case report.Partial():
		logrus.WithFields(fields).Warn("backup run completed with errors")
	default:
		logrus.WithFields(fields).Info("backup run completed")
	}
	return nil
}
