package notify

import (
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/vaultcron/vaultcron/config"
	vaultcron "github.com/vaultcron/vaultcron/lib"
)

// SMTP delivers run reports as plain-text email, supporting two
// transport modes: "Ssl" (implicit TLS, dial straight into a TLS
// handshake) and "StartTls" (plaintext connect, then upgrade).
// Grounded on cartographus's delivery.EmailChannel, which wires the
// same net/smtp calls for its STARTTLS path; the pack carries no
// third-party SMTP client.
type SMTP struct {
	cfg     config.NotifierConfig
	timeout time.Duration
}

// NewSMTP builds a Notifier from one `notifications` entry.
func NewSMTP(cfg config.NotifierConfig) *SMTP {
	return &SMTP{cfg: cfg, timeout: 30 * time.Second}
}

// Notify sends one email describing the run, addressed to every
// configured recipient.
func (s *SMTP) Notify(report vaultcron.RunReport) error {
	subject, body := s.compose(report)
	msg := s.buildMessage(subject, body)

	client, err := s.dial()
	if err != nil {
		return fmt.Errorf("notify/smtp: dial: %w", err)
	}
	defer client.Close()

	if s.cfg.Username != "" {
		auth := smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("notify/smtp: auth: %w", err)
		}
	}

	if err := client.Mail(s.cfg.From); err != nil {
		return fmt.Errorf("notify/smtp: mail from: %w", err)
	}
	for _, to := range s.cfg.To {
		if err := client.Rcpt(to); err != nil {
			return fmt.Errorf("notify/smtp: rcpt to %s: %w", to, err)
		}
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("notify/smtp: data: %w", err)
	}
	if _, err := w.Write([]byte(msg)); err != nil {
		return fmt.Errorf("notify/smtp: write body: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("notify/smtp: close body: %w", err)
	}

	return client.Quit()
}

func (s *SMTP) dial() (*smtp.Client, error) {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.PortOrDefault())

	if s.cfg.SMTPMode == "Ssl" {
		conn, err := tls.DialWithDialer(&net.Dialer{Timeout: s.timeout}, "tcp", addr, &tls.Config{
			ServerName: s.cfg.Host,
			MinVersion: tls.VersionTLS12,
		})
		if err != nil {
			return nil, err
		}
		return smtp.NewClient(conn, s.cfg.Host)
	}

	conn, err := net.DialTimeout("tcp", addr, s.timeout)
	if err != nil {
		return nil, err
	}
	client, err := smtp.NewClient(conn, s.cfg.Host)
	if err != nil {
		return nil, err
	}
	if err := client.StartTLS(&tls.Config{ServerName: s.cfg.Host, MinVersion: tls.VersionTLS12}); err != nil {
		client.Close()
		return nil, err
	}
	return client, nil
}

func (s *SMTP) compose(report vaultcron.RunReport) (subject, body string) {
	switch {
	case report.FatalError != nil:
		subject = fmt.Sprintf("[vaultcron] backup FAILED: %s", report.ArchiveFilename)
	case report.Partial():
		subject = fmt.Sprintf("[vaultcron] backup completed with warnings: %s", report.ArchiveFilename)
	default:
		subject = fmt.Sprintf("[vaultcron] backup OK: %s", report.ArchiveFilename)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "archive:  %s\n", report.ArchiveFilename)
	fmt.Fprintf(&b, "started:  %s\n", report.StartedAt.Format(time.RFC3339))
	fmt.Fprintf(&b, "finished: %s\n", report.FinishedAt.Format(time.RFC3339))
	fmt.Fprintf(&b, "duration: %s\n", report.FinishedAt.Sub(report.StartedAt))
	fmt.Fprintf(&b, "size:     %s (%d bytes)\n", humanize.Bytes(uint64(report.BytesWritten)), report.BytesWritten)
	fmt.Fprintf(&b, "entries:  %d\n", report.EntriesWritten)

	if report.FatalError != nil {
		fmt.Fprintf(&b, "\nfatal error: %v\n", report.FatalError)
	}
	if len(report.NonFatalErrors) > 0 {
		fmt.Fprintf(&b, "\n%d non-fatal error(s):\n", len(report.NonFatalErrors))
		for _, e := range report.NonFatalErrors {
			fmt.Fprintf(&b, "  - %v\n", e)
		}
	}

	return subject, b.String()
}

func (s *SMTP) buildMessage(subject, body string) string {
	var msg strings.Builder
	fmt.Fprintf(&msg, "From: %s\r\n", s.cfg.From)
	fmt.Fprintf(&msg, "To: %s\r\n", strings.Join(s.cfg.To, ", "))
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	msg.WriteString("\r\n")
	msg.WriteString(body)
	return msg.String()
}
