package mailer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/smtp"
	"strings"
	"text/template"
	"time"

	"github.com/google/uuid"
)

var (
	loginTmpl = template.Must(template.New("login").Parse(
		`Hola {{.Name}},

Tu código de verificación es: {{.Code}}

Caduca en {{.Minutes}} minutos. Si no intentaste iniciar sesión, ignora este mensaje.
`))
	resetTmpl = template.Must(template.New("reset").Parse(
		`Hola {{.Name}},

Un administrador solicitó restablecer tu contraseña. Usa este enlace antes de {{.Expires}}:

{{.Link}}
`))
)

// Message is a rendered email.
type Message struct {
	To      string
	Subject string
	Body    string
}

func loginMessage(to, name, code string, ttl time.Duration) (Message, error) {
	var buf bytes.Buffer
	err := loginTmpl.Execute(&buf, map[string]any{
		"Name":    name,
		"Code":    code,
		"Minutes": int(ttl.Round(time.Minute).Minutes()),
	})
	return Message{To: to, Subject: "Tu código de acceso", Body: buf.String()}, err
}

func resetMessage(to, name, link string, expiresAt time.Time) (Message, error) {
	var buf bytes.Buffer
	err := resetTmpl.Execute(&buf, map[string]any{
		"Name":    name,
		"Link":    link,
		"Expires": expiresAt.UTC().Format("2006-01-02 15:04 UTC"),
	})
	return Message{To: to, Subject: "Restablecer contraseña", Body: buf.String()}, err
}

// LogMailer prints every message instead of sending it. It exposes codes
// in the log and must not be used in production.
type LogMailer struct {
	Logger *log.Logger
}

func (m LogMailer) logger() *log.Logger {
	if m.Logger == nil {
		return log.Default()
	}
	return m.Logger
}

func (m LogMailer) SendLoginCode(_ context.Context, to, name, code string, ttl time.Duration) error {
	msg, err := loginMessage(to, name, code, ttl)
	if err != nil {
		return err
	}
	m.logger().Printf("mailer: to=%s subject=%q\n%s", msg.To, msg.Subject, msg.Body)
	return nil
}

func (m LogMailer) SendPasswordReset(_ context.Context, to, name, link string, expiresAt time.Time) error {
	msg, err := resetMessage(to, name, link, expiresAt)
	if err != nil {
		return err
	}
	m.logger().Printf("mailer: to=%s subject=%q\n%s", msg.To, msg.Subject, msg.Body)
	return nil
}

// SMTPConfig configures SMTPMailer. Username empty disables AUTH.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// SMTPMailer sends through net/smtp. The context bounds the whole
// exchange.
type SMTPMailer struct {
	cfg  SMTPConfig
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func NewSMTPMailer(cfg SMTPConfig) (*SMTPMailer, error) {
	if cfg.Host == "" || cfg.From == "" {
		return nil, errors.New("mailer: host and from are required")
	}
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	return &SMTPMailer{cfg: cfg, send: smtp.SendMail}, nil
}

func (m *SMTPMailer) SendLoginCode(ctx context.Context, to, name, code string, ttl time.Duration) error {
	msg, err := loginMessage(to, name, code, ttl)
	if err != nil {
		return err
	}
	return m.deliver(ctx, msg)
}

func (m *SMTPMailer) SendPasswordReset(ctx context.Context, to, name, link string, expiresAt time.Time) error {
	msg, err := resetMessage(to, name, link, expiresAt)
	if err != nil {
		return err
	}
	return m.deliver(ctx, msg)
}

func (m *SMTPMailer) deliver(ctx context.Context, msg Message) error {
	if strings.ContainsAny(msg.To, "\r\n") {
		return errors.New("mailer: invalid recipient")
	}
	raw := m.render(msg)

	var auth smtp.Auth
	if m.cfg.Username != "" {
		auth = smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
	}
	addr := net.JoinHostPort(m.cfg.Host, fmt.Sprint(m.cfg.Port))

	done := make(chan error, 1)
	go func() {
		done <- m.send(addr, auth, m.cfg.From, []string{msg.To}, raw)
	}()
	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("mailer: send to %s: %w", msg.To, err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *SMTPMailer) render(msg Message) []byte {
	var b bytes.Buffer
	fmt.Fprintf(&b, "From: %s\r\n", m.cfg.From)
	fmt.Fprintf(&b, "To: %s\r\n", msg.To)
	fmt.Fprintf(&b, "Subject: %s\r\n", msg.Subject)
	fmt.Fprintf(&b, "Message-ID: <%s@%s>\r\n", uuid.NewString(), m.cfg.Host)
	fmt.Fprintf(&b, "Date: %s\r\n", time.Now().Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n\r\n")
	b.WriteString(strings.ReplaceAll(msg.Body, "\n", "\r\n"))
	return b.Bytes()
}
