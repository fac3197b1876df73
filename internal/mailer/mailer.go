// Package mailer sends transactional email. Delivery is best-effort: callers
// dispatch and move on, failures are only logged.
package mailer

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"autorepair-shop-server/internal/config"

	"github.com/wneessen/go-mail"
)

// Message is one outgoing HTML email.
type Message struct {
	To      string
	Subject string
	HTML    string
}

// Sender delivers a message synchronously.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// SMTPSender delivers through an SMTP relay.
type SMTPSender struct {
	client   *mail.Client
	from     string
	fromName string
}

// NewSMTPSender builds a sender from the SMTP settings.
func NewSMTPSender(cfg config.MailerConfig) (*SMTPSender, error) {
	opts := []mail.Option{
		mail.WithPort(cfg.Port),
		mail.WithTLSPortPolicy(mail.TLSOpportunistic),
		mail.WithTimeout(15 * time.Second),
	}
	if cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.Username),
			mail.WithPassword(cfg.Password),
		)
	}
	client, err := mail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("could not initialize smtp client: %w", err)
	}
	return &SMTPSender{client: client, from: cfg.From, fromName: cfg.FromName}, nil
}

func (s *SMTPSender) Send(ctx context.Context, m Message) error {
	msg := mail.NewMsg()
	if err := msg.FromFormat(s.fromName, s.from); err != nil {
		return fmt.Errorf("set from address: %w", err)
	}
	if err := msg.To(m.To); err != nil {
		return fmt.Errorf("set to address: %w", err)
	}
	msg.Subject(m.Subject)
	msg.SetBodyString(mail.TypeTextHTML, m.HTML)
	return s.client.DialAndSendWithContext(ctx, msg)
}

// LogSender is used when no SMTP host is configured; it only logs.
type LogSender struct {
	Logger *slog.Logger
}

func (s LogSender) Send(_ context.Context, m Message) error {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("email not sent, smtp disabled", slog.String("to", m.To), slog.String("subject", m.Subject))
	return nil
}

// Notifier sends messages in the background and waits for them on shutdown.
type Notifier struct {
	sender  Sender
	logger  *slog.Logger
	timeout time.Duration
	admin   string
	wg      sync.WaitGroup
}

// NewNotifier wraps sender. adminEmail receives staff notifications; empty disables them.
func NewNotifier(sender Sender, logger *slog.Logger, adminEmail string) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{sender: sender, logger: logger, timeout: 30 * time.Second, admin: adminEmail}
}

// Dispatch sends msg without blocking the caller. Failures are logged at WARN.
func (n *Notifier) Dispatch(msg Message) {
	if n == nil || n.sender == nil || msg.To == "" {
		return
	}
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), n.timeout)
		defer cancel()
		if err := n.sender.Send(ctx, msg); err != nil {
			n.logger.Warn("email delivery failed",
				slog.String("to", msg.To),
				slog.String("subject", msg.Subject),
				slog.String("error", err.Error()),
			)
		}
	}()
}

// SendNow delivers synchronously and reports the error. Used by the reminder job,
// which only stamps reminders that actually went out.
func (n *Notifier) SendNow(ctx context.Context, msg Message) error {
	if n == nil || n.sender == nil {
		return fmt.Errorf("mailer not configured")
	}
	return n.sender.Send(ctx, msg)
}

// NotifyAdmin dispatches msg to the configured admin address.
func (n *Notifier) NotifyAdmin(msg Message) {
	if n == nil || n.admin == "" {
		return
	}
	msg.To = n.admin
	n.Dispatch(msg)
}

// Wait blocks until every dispatched message has finished.
func (n *Notifier) Wait() {
	if n != nil {
		n.wg.Wait()
	}
}
