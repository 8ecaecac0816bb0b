package vaultcron

import (
	"fmt"
	"path"
	"regexp"
	"strconv"
	"time"
)

// TimestampFormat is the Go reference layout for the timestamp segment
// of the output filename grammar:
// <base>.<YYYY>-<MM>-<DD>T<HH>h<MM>m<SS>s_<NNNN>.tar.xz.age
const TimestampFormat = "2006-01-02T15h04m05s"

// Extension is the fixed suffix every archive produced by this daemon
// carries: tar framing, xz compression, age encryption, in that order.
const Extension = ".tar.xz.age"

var filenameRe = regexp.MustCompile(`^(.+)\.(\d{4}-\d{2}-\d{2}T\d{2}h\d{2}m\d{2}s)_(\d{4})\.tar\.xz\.age$`)

// BackupArtifact is a single archive file found in the output
// directory. CreatedAt is parsed from the filename alone — filesystem
// mtime is never trusted.
type BackupArtifact struct {
	Filename  string
	CreatedAt time.Time
	SizeBytes int64
}

// FormatFilename builds the final archive filename for a run started at
// ts with sub-second disambiguation counter seq.
func FormatFilename(base string, ts time.Time, seq int) string {
	return fmt.Sprintf("%s.%s_%04d%s", base, ts.UTC().Format(TimestampFormat), seq, Extension)
}

// TempFilename returns the partial/in-progress name for a final
// filename, written in the same directory so the final rename is
// atomic.
func TempFilename(final string) string {
	return "." + final + ".partial"
}

// ParseFilename recovers the UTC creation time embedded in a filename
// produced by FormatFilename for the given archive_base_name. It
// returns ok=false for any name that does not match the grammar
// exactly — such files are neither kept nor deleted by the retention
// engine.
func ParseFilename(base, filename string) (t time.Time, ok bool) {
	m := filenameRe.FindStringSubmatch(filename)
	if m == nil || m[1] != base {
		return time.Time{}, false
	}
	parsed, err := time.ParseInLocation(TimestampFormat, m[2], time.UTC)
	if err != nil {
		return time.Time{}, false
	}
	return parsed, true
}

// ParseSeq extracts the sub-second disambiguation counter from a
// filename produced by FormatFilename. Used only for monotonicity
// tests; the retention engine never needs it.
func ParseSeq(base, filename string) (int, bool) {
	m := filenameRe.FindStringSubmatch(filename)
	if m == nil || m[1] != base {
		return 0, false
	}
	n, err := strconv.Atoi(m[3])
	if err != nil {
		return 0, false
	}
	return n, true
}

// IsArchiveFilename reports whether name looks like one of ours — used
// to scope what the daemon considers "its" files: it owns only files
// whose names match the archive pattern.
func IsArchiveFilename(base, name string) bool {
	_, ok := ParseFilename(base, path.Base(name))
	return ok
}

// RunReport is returned by pipeline.Run and consumed by the notifier.
type RunReport struct {
	StartedAt       time.Time
	FinishedAt      time.Time
	BytesWritten    int64
	EntriesWritten  int
	ArchiveFilename string
	NonFatalErrors  []error
	FatalError      error
}

// Partial reports whether the run completed with at least one
// non-fatal error but otherwise produced a final archive.
func (r RunReport) Partial() bool {
	return r.FatalError == nil && len(r.NonFatalErrors) > 0
}

// Success reports whether the run produced a final archive with no
// errors of any kind.
func (r RunReport) Success() bool {
	return r.FatalError == nil && len(r.NonFatalErrors) == 0
}
