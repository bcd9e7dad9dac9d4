package infra

import (
	"crypto/tls"
	"fmt"
	"net/smtp"
	"sync"
	"time"

	"restopos/internal/config"

	"github.com/jordan-wright/email"
)

const mailTimeout = 20 * time.Second

// Mailer sends receipts through a pool of SMTP connections shared by the
// receipt workers. The pool is dialled on first use.
type Mailer struct {
	host     string
	addr     string
	from     string
	auth     smtp.Auth
	poolSize int

	mu   sync.Mutex
	pool *email.Pool
}

func NewMailer(cfg *config.Config) *Mailer {
	m := &Mailer{
		host:     cfg.SMTPHost,
		addr:     fmt.Sprintf("%s:%d", cfg.SMTPHost, cfg.SMTPPort),
		from:     fmt.Sprintf("%s <%s>", cfg.RestaurantName, cfg.SMTPUser),
		poolSize: cfg.WorkerPoolSize,
	}
	if cfg.SMTPUser != "" {
		m.auth = smtp.PlainAuth("", cfg.SMTPUser, cfg.SMTPPassword, cfg.SMTPHost)
	}
	if m.poolSize < 1 {
		m.poolSize = 1
	}
	return m
}

// Enabled is false when no SMTP host is configured; receipts are then only
// rendered.
func (m *Mailer) Enabled() bool { return m.host != "" }

// SendReceipt mails the rendered receipt PDF to the customer.
func (m *Mailer) SendReceipt(to, subject, body, pdfPath string) error {
	e := email.NewEmail()
	e.From = m.from
	e.To = []string{to}
	e.Subject = subject
	e.Text = []byte(body)
	if pdfPath != "" {
		if _, err := e.AttachFile(pdfPath); err != nil {
			return fmt.Errorf("mailer: attach PDF: %w", err)
		}
	}

	pool, err := m.connPool()
	if err != nil {
		return err
	}
	if err := pool.Send(e, mailTimeout); err != nil {
		return fmt.Errorf("mailer: send to %s: %w", to, err)
	}
	return nil
}

func (m *Mailer) connPool() (*email.Pool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.pool != nil {
		return m.pool, nil
	}
	// STARTTLS is used when the server offers it.
	pool, err := email.NewPool(m.addr, m.poolSize, m.auth, &tls.Config{ServerName: m.host})
	if err != nil {
		return nil, fmt.Errorf("mailer: dial %s: %w", m.addr, err)
	}
	m.pool = pool
	return pool, nil
}

// Close releases the pooled connections.
func (m *Mailer) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.pool != nil {
		m.pool.Close()
		m.pool = nil
	}
}
