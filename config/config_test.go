package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, dir, body string) string {
	t.Helper()
	p := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return p
}

func minimalConfig(outDir string) string {
	return `
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
  passphrase: correct-horse-battery-staple
retention:
  default_retention: 7days
`
}

func TestLoadValidConfig(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, minimalConfig(dir))

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: unexpected error: %v", err)
	}
	if cfg.Compressor.LevelOrDefault() != 6 {
		t.Errorf("default level: got %d, want 6", cfg.Compressor.LevelOrDefault())
	}
	if cfg.Compressor.ThreadOrDefault() != 1 {
		t.Errorf("default thread: got %d, want 1", cfg.Compressor.ThreadOrDefault())
	}
	if len(cfg.Files) != 1 || string(cfg.Files[0].Decoded()) != "Hello" {
		t.Errorf("inline decode: got %q", cfg.Files[0].Decoded())
	}
}

func TestLoadRejectsMissingCron(t *testing.T) {
	dir := t.TempDir()
	body := `
archive_base_name: nightly
out_dir: ` + dir + `
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
	path := writeConfig(t, dir, body)
	if _, err := Load(path); err == nil {
		t.Fatalf("Load: expected error for missing cron")
	}
}

func TestLoadRejectsUnwritableOutDir(t *testing.T) {
	dir := t.TempDir()
	body := minimalConfig(filepath.Join(dir, "does-not-exist"))
	path := writeConfig(t, dir, body)
	if _, err := Load(path); err == nil {
		t.Fatalf("Load: expected error for nonexistent out_dir")
	}
}

func TestLoadRejectsInvalidBase64(t *testing.T) {
	dir := t.TempDir()
	body := `
cron: "0 3 * * *"
archive_base_name: nightly
out_dir: ` + dir + `
files:
  - type: inline
    dst_path: hi.txt
    content_b64: "not-valid-base64!!"
compressor:
  type: xz
encryptor:
  type: age
  secret_type: passphrase
  passphrase: x
retention:
  default_retention: 7days
`
	path := writeConfig(t, dir, body)
	if _, err := Load(path); err == nil {
		t.Fatalf("Load: expected error for invalid base64")
	}
}

func TestLoadRejectsUnknownField(t *testing.T) {
	dir := t.TempDir()
	body := minimalConfig(dir) + "bogus_key: true\n"
	path := writeConfig(t, dir, body)
	if _, err := Load(path); err == nil {
		t.Fatalf("Load: expected error for unknown top-level key")
	}
}

func TestParseRetentionDuration(t *testing.T) {
	cases := []struct {
		in      string
		wantErr bool
	}{
		{"7days", false},
		{"3months", false},
		{"1years", false},
		{"7weeks", true},
		{"abc", true},
	}
	for _, c := range cases {
		_, err := ParseRetentionDuration(c.in)
		if (err != nil) != c.wantErr {
			t.Errorf("ParseRetentionDuration(%q): err=%v, wantErr=%v", c.in, err, c.wantErr)
		}
	}
}

func TestNotifierPortDefaults(t *testing.T) {
	ssl := NotifierConfig{SMTPMode: "Ssl"}
	if ssl.PortOrDefault() != 465 {
		t.Errorf("Ssl default port: got %d, want 465", ssl.PortOrDefault())
	}
	starttls := NotifierConfig{SMTPMode: "StartTls"}
	if starttls.PortOrDefault() != 587 {
		t.Errorf("StartTls default port: got %d, want 587", starttls.PortOrDefault())
	}
	port := 2525
	custom := NotifierConfig{SMTPMode: "StartTls", Port: &port}
	if custom.PortOrDefault() != 2525 {
		t.Errorf("custom port: got %d, want 2525", custom.PortOrDefault())
	}
}
