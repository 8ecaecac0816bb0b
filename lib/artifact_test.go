package vaultcron

import (
	"testing"
	"time"
)

func TestFormatParseFilenameRoundTrip(t *testing.T) {
	ts := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	name := FormatFilename("nightly", ts, 7)

	want := "nightly.2025-01-02T03h04m05s_0007.tar.xz.age"
	if name != want {
		t.Fatalf("FormatFilename: got %q, want %q", name, want)
	}

	got, ok := ParseFilename("nightly", name)
	if !ok {
		t.Fatalf("ParseFilename: expected ok=true for %q", name)
	}
	if !got.Equal(ts) {
		t.Errorf("ParseFilename: got %v, want %v", got, ts)
	}

	seq, ok := ParseSeq("nightly", name)
	if !ok || seq != 7 {
		t.Errorf("ParseSeq: got (%d, %v), want (7, true)", seq, ok)
	}
}

func TestParseFilenameRejectsWrongBase(t *testing.T) {
	name := FormatFilename("nightly", time.Now(), 0)
	if _, ok := ParseFilename("weekly", name); ok {
		t.Errorf("ParseFilename: expected ok=false for mismatched base")
	}
}

func TestParseFilenameRejectsGarbage(t *testing.T) {
	for _, name := range []string{
		"nightly.tar.xz.age",
		"nightly.2025-01-02_0007.tar.xz.age",
		"random-file.txt",
		"",
	} {
		if _, ok := ParseFilename("nightly", name); ok {
			t.Errorf("ParseFilename(%q): expected ok=false", name)
		}
	}
}

func TestIsArchiveFilename(t *testing.T) {
	name := FormatFilename("nightly", time.Now(), 0)
	if !IsArchiveFilename("nightly", name) {
		t.Errorf("IsArchiveFilename: expected true for %q", name)
	}
	if IsArchiveFilename("nightly", ".hidden-file") {
		t.Errorf("IsArchiveFilename: expected false for unrelated file")
	}
}

func TestTempFilename(t *testing.T) {
	final := "nightly.2025-01-02T03h04m05s_0000.tar.xz.age"
	got := TempFilename(final)
	want := "." + final + ".partial"
	if got != want {
		t.Errorf("TempFilename: got %q, want %q", got, want)
	}
}

func TestRunReportPartialAndSuccess(t *testing.T) {
	ok := RunReport{}
	if !ok.Success() || ok.Partial() {
		t.Errorf("empty report should be Success and not Partial")
	}

	partial := RunReport{NonFatalErrors: []error{errBoom}}
	if partial.Success() || !partial.Partial() {
		t.Errorf("report with only non-fatal errors should be Partial, not Success")
	}

	failed := RunReport{FatalError: errBoom}
	if failed.Success() || failed.Partial() {
		t.Errorf("report with a fatal error should be neither Success nor Partial")
	}
}

var errBoom = &EntrySkipped{Path: "x", Reason: errPlaceholder{}}

type errPlaceholder struct{}

func (errPlaceholder) Error() string { return "boom" }
