package notify

import (
	"bytes"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"text/template"
	"time"

	"github.com/wneessen/go-mail"
)

//go:embed "templates"
var templateFS embed.FS

const setupInstructions = `mail config not found at %s

Create it with the SMTP account used to send digests:

  {
    "username": "sender@example.com",
    "password": "app-password",
    "smtp_server": "smtp.example.com",
    "smtp_port": 587,
    "receivers": ["you@example.com"]
  }

or point --mail-config (MAIL_CONFIG) at an existing file.`

var ErrMailConfigMissing = errors.New("mail config missing")

type MailConfig struct {
	Username   string   `json:"username"`
	Password   string   `json:"password"`
	SMTPServer string   `json:"smtp_server"`
	SMTPPort   int      `json:"smtp_port"`
	Receivers  []string `json:"receivers"`
}

// LoadMailConfig reads the JSON credentials file. A missing file yields an
// error carrying setup instructions for the user.
func LoadMailConfig(path string) (*MailConfig, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: "+setupInstructions, ErrMailConfigMissing, path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read mail config: %w", err)
	}

	var config MailConfig
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse mail config: %w", err)
	}

	if config.SMTPPort == 0 {
		config.SMTPPort = 587
	}

	if config.Username == "" || config.SMTPServer == "" {
		return nil, fmt.Errorf("mail config %s: username and smtp_server are required", path)
	}
	if len(config.Receivers) == 0 {
		return nil, fmt.Errorf("mail config %s: at least one receiver is required", path)
	}

	return &config, nil
}

type DigestArticle struct {
	Title     string
	Link      string
	Published string
}

type Digest struct {
	Source   string
	Label    string
	Date     string
	Articles []DigestArticle
}

type sendFunc func(config MailConfig, msg *mail.Msg) error

type Mailer struct {
	config MailConfig
	send   sendFunc
}

func NewMailer(config MailConfig) *Mailer {
	return &Mailer{
		config: config,
		send:   sendSMTP,
	}
}

// SendDigest renders the digest template and sends it to every receiver in
// a single SMTP session. There is no retry.
func (m *Mailer) SendDigest(digest Digest) error {
	subject, body, err := renderDigest(digest)
	if err != nil {
		return err
	}

	msg, err := buildMessage(m.config.Username, m.config.Receivers, subject, body)
	if err != nil {
		return err
	}

	start := time.Now()
	if err := m.send(m.config, msg); err != nil {
		return fmt.Errorf("failed to send mail: %w", err)
	}

	slog.Info("Digest mailed",
		"feed", digest.Source,
		"receivers", len(m.config.Receivers),
		"articles", len(digest.Articles),
		"duration", time.Since(start))

	return nil
}

func renderDigest(digest Digest) (string, string, error) {
	funcs := template.FuncMap{
		"inc": func(i int) int { return i + 1 },
	}

	tmpl, err := template.New("email").Funcs(funcs).ParseFS(templateFS, "templates/digest.tmpl")
	if err != nil {
		return "", "", fmt.Errorf("failed to parse mail template: %w", err)
	}

	subject := new(bytes.Buffer)
	if err := tmpl.ExecuteTemplate(subject, "subject", digest); err != nil {
		return "", "", fmt.Errorf("failed to render subject: %w", err)
	}

	plainBody := new(bytes.Buffer)
	if err := tmpl.ExecuteTemplate(plainBody, "plainBody", digest); err != nil {
		return "", "", fmt.Errorf("failed to render body: %w", err)
	}

	return strings.TrimSpace(subject.String()), plainBody.String(), nil
}

func buildMessage(from string, to []string, subject, body string) (*mail.Msg, error) {
	msg := mail.NewMsg(mail.WithEncoding(mail.NoEncoding))

	if err := msg.From(from); err != nil {
		return nil, fmt.Errorf("invalid sender %s: %w", from, err)
	}
	if err := msg.To(to...); err != nil {
		return nil, fmt.Errorf("invalid receivers: %w", err)
	}

	msg.Subject(subject)
	msg.SetBodyString(mail.TypeTextPlain, body)

	return msg, nil
}

// sendSMTP delivers msg in one STARTTLS session with PLAIN auth.
func sendSMTP(config MailConfig, msg *mail.Msg) error {
	client, err := mail.NewClient(config.SMTPServer,
		mail.WithPort(config.SMTPPort),
		mail.WithTLSPolicy(mail.TLSMandatory),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(config.Username),
		mail.WithPassword(config.Password),
	)
	if err != nil {
		return fmt.Errorf("failed to create mail client: %w", err)
	}

	if err := client.DialAndSend(msg); err != nil {
		return fmt.Errorf("failed to deliver via %s: %w", config.SMTPServer, err)
	}

	return nil
}
