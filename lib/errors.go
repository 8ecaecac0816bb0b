// Package vaultcron holds the types and error taxonomy shared by every
// stage of the backup pipeline: archive entries, run reports, backup
// artifacts, and the filename grammar that ties them together.
package vaultcron

import "errors"

// Config-time errors. Fatal at startup.
var (
	ErrMissingKey       = errors.New("config: missing required key")
	ErrInvalidCron      = errors.New("config: invalid cron expression")
	ErrInvalidBase64    = errors.New("config: invalid base64 content")
	ErrUnknownVariant   = errors.New("config: unknown variant tag")
	ErrOutDirUnwritable = errors.New("config: output directory does not exist or is not writable")
)

// Source-level errors.
var (
	ErrSourceUnavailable = errors.New("source: unavailable")
	ErrSnapshotFailed    = errors.New("source: snapshot failed")
)

// EntrySkipped is a non-fatal per-entry error raised by the Glob source
// when a file cannot be read; the walk continues past it.
type EntrySkipped struct {
	Path   string
	Reason error
}

func (e *EntrySkipped) Error() string {
	return "entry skipped: " + e.Path + ": " + e.Reason.Error()
}

func (e *EntrySkipped) Unwrap() error { return e.Reason }

// Pipeline-level errors. Fatal to the run in progress.
var (
	ErrDuplicatePath = errors.New("pipeline: duplicate logical path")
)
