// Package config parses and validates the single YAML document the
// daemon reads at startup. Nothing here is reused across a run; a
// Config is loaded once and handed to the pipeline by value.
package config

import (
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	vaultcron "github.com/vaultcron/vaultcron/lib"
)

// SourceDescriptor is the tagged-variant source configuration. Type
// discriminates which of the other fields apply, the same pattern
// bt-go's config.VaultConfig uses for its backends.
type SourceDescriptor struct {
	Type string `yaml:"type"`

	// Sqlite
	SrcPath string `yaml:"src_path,omitempty"`
	DstPath string `yaml:"dst_path,omitempty"`

	// Glob
	SrcDir    string   `yaml:"src_dir,omitempty"`
	DstPrefix string   `yaml:"dst_prefix,omitempty"`
	Patterns  []string `yaml:"patterns,omitempty"`

	// InlineBlob
	ContentB64 string `yaml:"content_b64,omitempty"`

	// decoded is filled by Validate() for InlineBlob sources so the
	// ConfigError from invalid base64 fires before the pipeline
	// starts.
	decoded []byte
}

// Decoded returns the base64-decoded payload of an InlineBlob
// descriptor. Only valid after Config.Validate has run.
func (s SourceDescriptor) Decoded() []byte { return s.decoded }

// CompressorConfig is the `compressor` key.
type CompressorConfig struct {
	Type   string `yaml:"type"`
	Level  *int   `yaml:"level,omitempty"`
	Thread *int   `yaml:"thread,omitempty"`
}

// LevelOrDefault returns the configured level, defaulting to 6, the
// XZ format's own default.
func (c CompressorConfig) LevelOrDefault() int {
	if c.Level != nil {
		return *c.Level
	}
	return 6
}

// ThreadOrDefault returns the configured worker count, defaulting to
// 1 (single-stream encoder).
func (c CompressorConfig) ThreadOrDefault() int {
	if c.Thread != nil {
		return *c.Thread
	}
	return 1
}

// EncryptorConfig is the §6 `encryptor` key. Only the age/passphrase
// variant is specified.
type EncryptorConfig struct {
	Type       string `yaml:"type"`
	SecretType string `yaml:"secret_type"`
	Passphrase string `yaml:"passphrase"`
}

// RetentionConfig is the §6 `retention` key; durations are strings of
// the form "<int><unit>" with units in {days, months, years}.
type RetentionConfig struct {
	DefaultRetention string `yaml:"default_retention"`
	DailyRetention   string `yaml:"daily_retention,omitempty"`
	MonthlyRetention string `yaml:"monthly_retention,omitempty"`
	YearlyRetention  string `yaml:"yearly_retention,omitempty"`
	MinBackups       *int   `yaml:"min_backups,omitempty"`
}

// NotifierConfig is one entry of the §6 `notifications` list.
type NotifierConfig struct {
	Type     string   `yaml:"type"`
	Host     string   `yaml:"host,omitempty"`
	Port     *int     `yaml:"port,omitempty"`
	SMTPMode string   `yaml:"smtp_mode,omitempty"`
	From     string   `yaml:"from,omitempty"`
	To       []string `yaml:"to,omitempty"`
	Username string   `yaml:"username,omitempty"`
	Password string   `yaml:"password,omitempty"`
}

// PortOrDefault returns the configured SMTP port, defaulting to 465
// for implicit TLS ("Ssl") and 587 for STARTTLS ("StartTls").
func (n NotifierConfig) PortOrDefault() int {
	if n.Port != nil {
		return *n.Port
	}
	if n.SMTPMode == "Ssl" {
		return 465
	}
	return 587
}

// Config is the root of the §6 document.
type Config struct {
	Cron            string             `yaml:"cron"`
	ArchiveBaseName string             `yaml:"archive_base_name"`
	OutDir          string             `yaml:"out_dir"`
	Files           []SourceDescriptor `yaml:"files"`
	Compressor      CompressorConfig   `yaml:"compressor"`
	Encryptor       EncryptorConfig    `yaml:"encryptor"`
	Retention       RetentionConfig    `yaml:"retention"`
	Notifications   []NotifierConfig   `yaml:"notifications,omitempty"`
}

// Load reads and parses the YAML document at path and validates it.
func Load(path string) (Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return Config{}, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	var cfg Config
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("validate config %s: %w", path, err)
	}

	return cfg, nil
}

// Validate enforces the required-key, range, and cross-field
// constraints on a loaded Config. It also performs the one-time
// base64 decode for InlineBlob sources.
func (c *Config) Validate() error {
	if c.Cron == "" {
		return fmt.Errorf("%w: cron", vaultcron.ErrMissingKey)
	}
	if c.ArchiveBaseName == "" {
		return fmt.Errorf("%w: archive_base_name", vaultcron.ErrMissingKey)
	}
	if strings.ContainsAny(c.ArchiveBaseName, "/\x00") {
		return fmt.Errorf("invalid archive_base_name: must not contain '/' or NUL")
	}
	if c.OutDir == "" {
		return fmt.Errorf("%w: out_dir", vaultcron.ErrMissingKey)
	}

	info, err := os.Stat(c.OutDir)
	if err != nil || !info.IsDir() {
		return fmt.Errorf("%w: %s", vaultcron.ErrOutDirUnwritable, c.OutDir)
	}
	probe := filepath.Join(c.OutDir, ".vaultcron-write-probe")
	if f, err := os.Create(probe); err != nil {
		return fmt.Errorf("%w: %s: %v", vaultcron.ErrOutDirUnwritable, c.OutDir, err)
	} else {
		f.Close()
		os.Remove(probe)
	}

	if len(c.Files) == 0 {
		return fmt.Errorf("%w: files", vaultcron.ErrMissingKey)
	}
	for i := range c.Files {
		if err := c.Files[i].validate(); err != nil {
			return fmt.Errorf("files[%d]: %w", i, err)
		}
	}

	if c.Compressor.Type != "xz" {
		return fmt.Errorf("%w: compressor.type %q", vaultcron.ErrUnknownVariant, c.Compressor.Type)
	}
	if lvl := c.Compressor.LevelOrDefault(); lvl < 0 || lvl > 9 {
		return fmt.Errorf("compressor.level out of range: %d", lvl)
	}
	if thr := c.Compressor.ThreadOrDefault(); thr < 1 {
		return fmt.Errorf("compressor.thread must be >= 1: %d", thr)
	}

	if c.Encryptor.Type != "age" || c.Encryptor.SecretType != "passphrase" {
		return fmt.Errorf("%w: encryptor", vaultcron.ErrUnknownVariant)
	}
	if c.Encryptor.Passphrase == "" {
		return fmt.Errorf("%w: encryptor.passphrase", vaultcron.ErrMissingKey)
	}

	if c.Retention.DefaultRetention == "" {
		return fmt.Errorf("%w: retention.default_retention", vaultcron.ErrMissingKey)
	}
	if _, err := ParseRetentionDuration(c.Retention.DefaultRetention); err != nil {
		return fmt.Errorf("retention.default_retention: %w", err)
	}
	for _, field := range []string{c.Retention.DailyRetention, c.Retention.MonthlyRetention, c.Retention.YearlyRetention} {
		if field == "" {
			continue
		}
		if _, err := ParseRetentionDuration(field); err != nil {
			return fmt.Errorf("retention: %w", err)
		}
	}
	if c.Retention.MinBackups != nil && *c.Retention.MinBackups < 0 {
		return fmt.Errorf("retention.min_backups must be >= 0")
	}

	for i, n := range c.Notifications {
		if n.Type != "smtp" {
			return fmt.Errorf("notifications[%d]: %w: %q", i, vaultcron.ErrUnknownVariant, n.Type)
		}
		if n.Host == "" || n.From == "" || len(n.To) == 0 {
			return fmt.Errorf("notifications[%d]: %w: host/from/to", i, vaultcron.ErrMissingKey)
		}
		if n.SMTPMode != "Ssl" && n.SMTPMode != "StartTls" {
			return fmt.Errorf("notifications[%d]: invalid smtp_mode %q", i, n.SMTPMode)
		}
		if n.Port != nil && (*n.Port < 1 || *n.Port > 65535) {
			return fmt.Errorf("notifications[%d]: port out of range: %d", i, *n.Port)
		}
	}

	return nil
}

func (s *SourceDescriptor) validate() error {
	switch s.Type {
	case "sqlite":
		if s.SrcPath == "" || s.DstPath == "" {
			return fmt.Errorf("%w: src_path/dst_path", vaultcron.ErrMissingKey)
		}
		if !vaultcron.ValidLogicalPath(s.DstPath) {
			return fmt.Errorf("invalid dst_path: %s", s.DstPath)
		}
	case "glob":
		if s.SrcDir == "" || len(s.Patterns) == 0 {
			return fmt.Errorf("%w: src_dir/patterns", vaultcron.ErrMissingKey)
		}
	case "inline":
		if s.DstPath == "" {
			return fmt.Errorf("%w: dst_path", vaultcron.ErrMissingKey)
		}
		if !vaultcron.ValidLogicalPath(s.DstPath) {
			return fmt.Errorf("invalid dst_path: %s", s.DstPath)
		}
		decoded, err := base64.StdEncoding.DecodeString(s.ContentB64)
		if err != nil {
			return fmt.Errorf("%w: %v", vaultcron.ErrInvalidBase64, err)
		}
		s.decoded = decoded
	default:
		return fmt.Errorf("%w: files.type %q", vaultcron.ErrUnknownVariant, s.Type)
	}
	return nil
}

// ParseRetentionDuration parses "<int><unit>" with unit in
// {days, months, years} into a time.Duration. Months and years are
// approximated as 30 and 365 days respectively.
func ParseRetentionDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	for _, unit := range []struct {
		suffix string
		days   int
	}{
		{"years", 365},
		{"months", 30},
		{"days", 1},
	} {
		if strings.HasSuffix(s, unit.suffix) {
			n, err := strconv.Atoi(strings.TrimSuffix(s, unit.suffix))
			if err != nil {
				return 0, fmt.Errorf("invalid duration %q: %w", s, err)
			}
			return time.Duration(n) * time.Duration(unit.days) * 24 * time.Hour, nil
		}
	}
	return 0, fmt.Errorf("invalid duration %q: must end in days, months, or years", s)
}
