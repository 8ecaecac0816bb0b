package pipeline

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
)

// ReapPartials removes leftover ".*.partial" temp files in outDir on
// startup: a crash mid-run leaves one behind, and since it never got
// renamed into place it was never counted as a finished archive. The
// daemon owns only files matching the archive pattern; a partial is
// neither that pattern nor a source input.
func ReapPartials(outDir, base string) error {
	entries, err := os.ReadDir(outDir)
	if err != nil {
		return err
	}

	prefix := "." + base + "."
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !strings.HasPrefix(name, prefix) || !strings.HasSuffix(name, ".partial") {
			continue
		}
		full := filepath.Join(outDir, name)
		if err := os.Remove(full); err != nil {
			logrus.WithError(err).WithField("file", full).Warn("failed to reap partial file")
			continue
		}
		logrus.WithField("file", full).Info("reaped leftover partial file")
	}
	return nil
}
