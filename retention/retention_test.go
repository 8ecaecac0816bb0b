package retention

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/vaultcron/vaultcron/config"
	vaultcron "github.com/vaultcron/vaultcron/lib"
)

func dur(d time.Duration) *time.Duration { return &d }

func artifactAt(base string, now time.Time, ago time.Duration) vaultcron.BackupArtifact {
	ts := now.Add(-ago)
	name := vaultcron.FormatFilename(base, ts, 0)
	return vaultcron.BackupArtifact{Filename: name, CreatedAt: ts}
}

// TestDecideGFS exercises a grandfather-father-son retention spread: a
// spread of artifacts under default=7d/daily=30d/monthly=12mo/
// yearly=5y, min_keep=1. The oldest artifact sits outside every
// bucket's TTL (including yearly) and is the only one deleted.
func TestDecideGFS(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	base := "nightly"

	artifacts := []vaultcron.BackupArtifact{
		artifactAt(base, now, 0),
		artifactAt(base, now, 2*24*time.Hour),
		artifactAt(base, now, 35*24*time.Hour),
		artifactAt(base, now, 400*24*time.Hour),
		artifactAt(base, now, 6*365*24*time.Hour),
	}

	policy := Policy{
		DefaultTTL: 7 * 24 * time.Hour,
		DailyTTL:   dur(30 * 24 * time.Hour),
		MonthlyTTL: dur(12 * 30 * 24 * time.Hour), // 12 months at 30d/month, approximated
		YearlyTTL:  dur(5 * 365 * 24 * time.Hour),
		MinKeep:    1,
	}

	keep, del := Decide(artifacts, policy, now)
	if len(keep) != 4 || len(del) != 1 {
		t.Fatalf("Decide: got keep=%d del=%d, want keep=4 del=1", len(keep), len(del))
	}
	if del[0].Filename != artifacts[4].Filename {
		t.Errorf("Decide: expected the 6-year-old artifact to be deleted, got %s", del[0].Filename)
	}

	minKeepAll := policy
	minKeepAll.MinKeep = 10
	keepAll, delAll := Decide(artifacts, minKeepAll, now)
	if len(keepAll) != 5 || len(delAll) != 0 {
		t.Fatalf("Decide with min_keep=10: got keep=%d del=%d, want keep=5 del=0", len(keepAll), len(delAll))
	}
}

func TestDecideEmptyIsNoop(t *testing.T) {
	keep, del := Decide(nil, Policy{DefaultTTL: time.Hour, MinKeep: 1}, time.Now())
	if keep != nil || del != nil {
		t.Errorf("Decide(nil): expected nil, nil, got %v, %v", keep, del)
	}
}

func TestDecideFutureTimestampIsKept(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	future := vaultcron.BackupArtifact{
		Filename:  vaultcron.FormatFilename("nightly", now.Add(time.Hour), 0),
		CreatedAt: now.Add(time.Hour),
	}
	keep, del := Decide([]vaultcron.BackupArtifact{future}, Policy{DefaultTTL: time.Minute, MinKeep: 0}, now)
	if len(keep) != 1 || len(del) != 0 {
		t.Errorf("future-timestamped artifact should be kept via the default rule, got keep=%d del=%d", len(keep), len(del))
	}
}

func TestSweepIdempotent(t *testing.T) {
	dir := t.TempDir()
	base := "nightly"
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

	for _, ago := range []time.Duration{0, 2 * 24 * time.Hour, 400 * 24 * time.Hour} {
		ts := now.Add(-ago)
		name := vaultcron.FormatFilename(base, ts, 0)
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644); err != nil {
			t.Fatalf("write artifact: %v", err)
		}
	}

	policy := Policy{DefaultTTL: 7 * 24 * time.Hour, MinKeep: 1}

	_, deleted1, errs1 := Sweep(dir, base, policy, now)
	if len(errs1) != 0 {
		t.Fatalf("first sweep: unexpected errors: %v", errs1)
	}
	if len(deleted1) != 1 {
		t.Fatalf("first sweep: got %d deletions, want 1", len(deleted1))
	}

	_, deleted2, errs2 := Sweep(dir, base, policy, now)
	if len(errs2) != 0 {
		t.Fatalf("second sweep: unexpected errors: %v", errs2)
	}
	if len(deleted2) != 0 {
		t.Errorf("second sweep should be a no-op, got %d deletions", len(deleted2))
	}
}

func TestListArtifactsIgnoresUnparseableNames(t *testing.T) {
	dir := t.TempDir()
	base := "nightly"
	good := vaultcron.FormatFilename(base, time.Now(), 0)
	for _, name := range []string{good, "readme.txt", ".nightly.partial"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}

	artifacts, err := ListArtifacts(dir, base)
	if err != nil {
		t.Fatalf("ListArtifacts: %v", err)
	}
	if len(artifacts) != 1 || artifacts[0].Filename != good {
		t.Errorf("ListArtifacts: got %v, want only %q", artifacts, good)
	}
}

func TestFromConfigDefaultsMinKeep(t *testing.T) {
	p, err := FromConfig(config.RetentionConfig{DefaultRetention: "7days"})
	if err != nil {
		t.Fatalf("FromConfig: %v", err)
	}
	if p.MinKeep != 3 {
		t.Errorf("MinKeep default: got %d, want 3", p.MinKeep)
	}
}
