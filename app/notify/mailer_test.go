package notify

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/wneessen/go-mail"
)

func TestLoadMailConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mail.json")
	content := `{
  "username": "bot@example.com",
  "password": "secret",
  "smtp_server": "smtp.example.com",
  "receivers": ["a@example.com", "b@example.com"]
}`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	config, err := LoadMailConfig(path)
	if err != nil {
		t.Fatal(err)
	}

	if config.Username != "bot@example.com" || config.SMTPServer != "smtp.example.com" {
		t.Errorf("Unexpected config: %+v", config)
	}
	if config.SMTPPort != 587 {
		t.Errorf("Expected default port 587, got %d", config.SMTPPort)
	}
	if len(config.Receivers) != 2 {
		t.Errorf("Expected 2 receivers, got %d", len(config.Receivers))
	}
}

func TestLoadMailConfigMissing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config", "mail.json")

	_, err := LoadMailConfig(path)
	if !errors.Is(err, ErrMailConfigMissing) {
		t.Fatalf("Expected ErrMailConfigMissing, got %v", err)
	}
	if !strings.Contains(err.Error(), path) || !strings.Contains(err.Error(), "smtp_server") {
		t.Errorf("Expected setup instructions in error, got: %v", err)
	}
}

func TestLoadMailConfigInvalid(t *testing.T) {
	tests := map[string]string{
		"bad json":     `{"username":`,
		"no server":    `{"username": "a@example.com", "receivers": ["b@example.com"]}`,
		"no receivers": `{"username": "a@example.com", "smtp_server": "smtp.example.com"}`,
	}

	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "mail.json")
			if err := os.WriteFile(path, []byte(content), 0600); err != nil {
				t.Fatal(err)
			}
			if _, err := LoadMailConfig(path); err == nil {
				t.Error("Expected error")
			}
		})
	}
}

func TestMailerSendDigest(t *testing.T) {
	config := MailConfig{
		Username:   "bot@example.com",
		SMTPServer: "smtp.example.com",
		SMTPPort:   587,
		Receivers:  []string{"a@example.com", "b@example.com"},
	}

	var sent *mail.Msg
	mailer := NewMailer(config)
	mailer.send = func(c MailConfig, msg *mail.Msg) error {
		sent = msg
		return nil
	}

	err := mailer.SendDigest(Digest{
		Source: "nhk",
		Label:  "NHK News",
		Date:   "2024-05-01",
		Articles: []DigestArticle{
			{Title: "地震のニュース", Link: "https://www3.nhk.or.jp/news/1.html", Published: "2024-05-01 09:00:00"},
			{Title: "Second", Link: "https://www3.nhk.or.jp/news/2.html"},
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	if sent == nil {
		t.Fatal("Expected message to be sent")
	}

	if subject := sent.GetGenHeader(mail.HeaderSubject); len(subject) != 1 || subject[0] != "[nhk] 2 articles (2024-05-01)" {
		t.Errorf("Unexpected subject: %v", subject)
	}

	recipients, err := sent.GetRecipients()
	if err != nil {
		t.Fatal(err)
	}
	if len(recipients) != 2 || recipients[0] != "a@example.com" || recipients[1] != "b@example.com" {
		t.Errorf("Unexpected recipients: %v", recipients)
	}

	var buf bytes.Buffer
	if _, err := sent.WriteTo(&buf); err != nil {
		t.Fatal(err)
	}
	msg := buf.String()
	for _, want := range []string{
		"bot@example.com",
		"text/plain",
		"NHK News: 2 articles harvested on 2024-05-01.",
		"1. 地震のニュース",
		"https://www3.nhk.or.jp/news/1.html",
		"2024-05-01 09:00:00",
		"2. Second",
	} {
		if !strings.Contains(msg, want) {
			t.Errorf("Expected message to contain %q, got:\n%s", want, msg)
		}
	}
}

func TestMailerRejectsInvalidSender(t *testing.T) {
	mailer := NewMailer(MailConfig{Username: "not an address", Receivers: []string{"a@example.com"}})
	mailer.send = func(c MailConfig, msg *mail.Msg) error {
		t.Error("Expected no send for an invalid sender")
		return nil
	}

	if err := mailer.SendDigest(Digest{Source: "nhk"}); err == nil {
		t.Error("Expected error for invalid sender")
	}
}

func TestMailerSendDigestError(t *testing.T) {
	mailer := NewMailer(MailConfig{Username: "bot@example.com", Receivers: []string{"a@example.com"}})
	mailer.send = func(c MailConfig, msg *mail.Msg) error {
		return errors.New("connection refused")
	}

	err := mailer.SendDigest(Digest{Source: "wsj"})
	if err == nil || !strings.Contains(err.Error(), "connection refused") {
		t.Errorf("Expected wrapped send error, got %v", err)
	}
}

func TestRenderDigestSubject(t *testing.T) {
	subject, _, err := renderDigest(Digest{Source: "reddit", Date: "2024-05-01", Articles: make([]DigestArticle, 3)})
	if err != nil {
		t.Fatal(err)
	}
	if subject != "[reddit] 3 articles (2024-05-01)" {
		t.Errorf("Unexpected subject: %q", subject)
	}
}
