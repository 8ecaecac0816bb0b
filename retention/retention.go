// Package retention implements a grandfather-father-son retention
// engine: given the archive files currently in the output directory
// and a RetentionPolicy, decide which ones may be deleted.
package retention

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/vaultcron/vaultcron/config"
	vaultcron "github.com/vaultcron/vaultcron/lib"
)

// Policy is a RetentionPolicy: a default TTL applied to everything,
// three optional bucket TTLs, and a safety floor.
type Policy struct {
	DefaultTTL time.Duration
	DailyTTL   *time.Duration
	MonthlyTTL *time.Duration
	YearlyTTL  *time.Duration
	MinKeep    int
}

// FromConfig builds a Policy from the parsed configuration document.
func FromConfig(c config.RetentionConfig) (Policy, error) {
	def, err := config.ParseRetentionDuration(c.DefaultRetention)
	if err != nil {
		return Policy{}, err
	}

	p := Policy{DefaultTTL: def, MinKeep: 3}
	if c.MinBackups != nil {
		p.MinKeep = *c.MinBackups
	}

	for _, pair := range []struct {
		raw string
		dst **time.Duration
	}{
		{c.DailyRetention, &p.DailyTTL},
		{c.MonthlyRetention, &p.MonthlyTTL},
		{c.YearlyRetention, &p.YearlyTTL},
	} {
		if pair.raw == "" {
			continue
		}
		d, err := config.ParseRetentionDuration(pair.raw)
		if err != nil {
			return Policy{}, err
		}
		*pair.dst = &d
	}

	return p, nil
}

// ListArtifacts lists the archive files in dir that match the
// <base>.*.tar.xz.age filename pattern. Files whose name does not
// parse to a valid timestamp are silently omitted — they are not
// ours to manage.
func ListArtifacts(dir, base string) ([]vaultcron.BackupArtifact, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("list artifacts: %w", err)
	}

	var artifacts []vaultcron.BackupArtifact
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ts, ok := vaultcron.ParseFilename(base, e.Name())
		if !ok {
			continue
		}
		info, err := e.Info()
		var size int64
		if err == nil {
			size = info.Size()
		}
		artifacts = append(artifacts, vaultcron.BackupArtifact{
			Filename:  e.Name(),
			CreatedAt: ts,
			SizeBytes: size,
		})
	}
	return artifacts, nil
}

// Decide applies the policy to artifacts and returns the keep and
// delete sets via a set-union of every bucket rule's keep set.
func Decide(artifacts []vaultcron.BackupArtifact, policy Policy, now time.Time) (keep, del []vaultcron.BackupArtifact) {
	if len(artifacts) == 0 {
		return nil, nil
	}

	sorted := append([]vaultcron.BackupArtifact(nil), artifacts...)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].CreatedAt.Equal(sorted[j].CreatedAt) {
			return sorted[i].Filename > sorted[j].Filename
		}
		return sorted[i].CreatedAt.After(sorted[j].CreatedAt)
	})

	keptIdx := make(map[int]bool)

	// 1. Safety floor: the min_keep newest artifacts, unconditionally.
	for i := 0; i < len(sorted) && i < policy.MinKeep; i++ {
		keptIdx[i] = true
	}

	// 2. Default rule: keep everything within default_ttl of now.
	for i, a := range sorted {
		if now.Sub(a.CreatedAt) <= policy.DefaultTTL {
			keptIdx[i] = true
		}
	}

	// 3. Bucket rules, applied independently.
	applyBucket(sorted, keptIdx, now, policy.DailyTTL, dayKey)
	applyBucket(sorted, keptIdx, now, policy.MonthlyTTL, monthKey)
	applyBucket(sorted, keptIdx, now, policy.YearlyTTL, yearKey)

	for i, a := range sorted {
		if keptIdx[i] {
			keep = append(keep, a)
		} else {
			del = append(del, a)
		}
	}
	return keep, del
}

// applyBucket keeps, within each calendar bucket produced by keyFn,
// the representative with the latest CreatedAt (ties broken by the
// lexicographically greatest filename) — but only if that
// representative is within ttl of now.
func applyBucket(sorted []vaultcron.BackupArtifact, keptIdx map[int]bool, now time.Time, ttl *time.Duration, keyFn func(time.Time) string) {
	if ttl == nil {
		return
	}

	type rep struct {
		idx int
		a   vaultcron.BackupArtifact
	}
	buckets := make(map[string]rep)
	for i, a := range sorted {
		k := keyFn(a.CreatedAt)
		cur, ok := buckets[k]
		if !ok {
			buckets[k] = rep{idx: i, a: a}
			continue
		}
		if a.CreatedAt.After(cur.a.CreatedAt) ||
			(a.CreatedAt.Equal(cur.a.CreatedAt) && a.Filename > cur.a.Filename) {
			buckets[k] = rep{idx: i, a: a}
		}
	}

	for _, r := range buckets {
		if now.Sub(r.a.CreatedAt) <= *ttl {
			keptIdx[r.idx] = true
		}
	}
}

func dayKey(t time.Time) string   { return t.UTC().Format("2006-01-02") }
func monthKey(t time.Time) string { return t.UTC().Format("2006-01") }
func yearKey(t time.Time) string  { return t.UTC().Format("2006") }

// Sweep lists the directory once, decides the keep/delete split, and
// removes the delete set. Deletion failures are non-fatal and
// collected for the caller to fold into the run report.
func Sweep(dir, base string, policy Policy, now time.Time) (kept, deleted []vaultcron.BackupArtifact, errs []error) {
	artifacts, err := ListArtifacts(dir, base)
	if err != nil {
		return nil, nil, []error{err}
	}

	keep, del := Decide(artifacts, policy, now)
	for _, a := range del {
		if err := os.Remove(filepath.Join(dir, a.Filename)); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, fmt.Errorf("delete %s: %w", a.Filename, err))
			keep = append(keep, a)
			continue
		}
		deleted = append(deleted, a)
	}
	kept = keep
	return kept, deleted, errs
}
