package sources

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/vaultcron/vaultcron/config"
	vaultcron "github.com/vaultcron/vaultcron/lib"
)

// TestInlineBlob checks that content_b64 "SGVsbG8=" decodes to
// "Hello" at dst "hi.txt". Decoding only happens
// through config.Load's validation pass, so the fixture round-trips
// through a real config document rather than poking the unexported
// decoded field directly.
func TestInlineBlob(t *testing.T) {
	outDir := t.TempDir()
	body := `
cron: "0 3 * * *"
archive_base_name: nightly
out_dir: ` + outDir + `
files:
  - type: inline
    dst_path: hi.txt
    content_b64: SGVsbG8=
compressor:
  type: xz
encryptor:
  type: age
  secret_type: passphrase
  passphrase: x
retention:
  default_retention: 7days
`
	path := filepath.Join(outDir, "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	src, err := New(cfg.Files[0], outDir)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	var entries []vaultcron.ArchiveEntry
	err = Drain(src, func(e vaultcron.ArchiveEntry) error {
		entries = append(entries, e)
		return nil
	}, func(err error) { t.Errorf("unexpected skip: %v", err) })
	if err != nil {
		t.Fatalf("Drain: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(entries))
	}

	data, err := io.ReadAll(entries[0].Data)
	entries[0].Data.Close()
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	if string(data) != "Hello" {
		t.Errorf("got %q, want %q", data, "Hello")
	}
	if entries[0].LogicalPath != "hi.txt" {
		t.Errorf("got logical path %q, want hi.txt", entries[0].LogicalPath)
	}
	if entries[0].Size != int64(len("Hello")) {
		t.Errorf("got size %d, want %d", entries[0].Size, len("Hello"))
	}
}
