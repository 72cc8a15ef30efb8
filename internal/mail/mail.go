package mail

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/vasiliy-maslov/boutique-api/internal/config"
	gomail "github.com/wneessen/go-mail"
)

// ErrDelivery wraps every failure of the outgoing mail provider.
var ErrDelivery = errors.New("mail delivery failed")

// Message is a single HTML email.
type Message struct {
	To      string
	ReplyTo string
	Subject string
	HTML    string
}

type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// SMTPSender delivers messages through an authenticated SMTP relay.
type SMTPSender struct {
	client *gomail.Client
	from   string
}

func NewSMTPSender(cfg config.SMTPConfig) (*SMTPSender, error) {
	client, err := gomail.NewClient(cfg.Host,
		gomail.WithPort(cfg.Port),
		gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
		gomail.WithUsername(cfg.Username),
		gomail.WithPassword(cfg.Password),
		gomail.WithTLSPortPolicy(gomail.TLSMandatory),
	)
	if err != nil {
		return nil, fmt.Errorf("mail: failed to create smtp client: %w", err)
	}

	return &SMTPSender{client: client, from: cfg.From}, nil
}

func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	m := gomail.NewMsg()
	if err := m.From(s.from); err != nil {
		return fmt.Errorf("%w: invalid sender %q: %v", ErrDelivery, s.from, err)
	}
	if err := m.To(msg.To); err != nil {
		return fmt.Errorf("%w: invalid recipient %q: %v", ErrDelivery, msg.To, err)
	}
	if msg.ReplyTo != "" {
		if err := m.ReplyTo(msg.ReplyTo); err != nil {
			return fmt.Errorf("%w: invalid reply-to %q: %v", ErrDelivery, msg.ReplyTo, err)
		}
	}
	m.Subject(msg.Subject)
	m.SetBodyString(gomail.TypeTextHTML, msg.HTML)

	if err := s.client.DialAndSendWithContext(ctx, m); err != nil {
		log.Error().Err(err).Str("to", msg.To).Msg("mail: failed to send message")
		return fmt.Errorf("%w: %v", ErrDelivery, err)
	}

	log.Info().Str("to", msg.To).Str("subject", msg.Subject).Msg("mail: message sent")
	return nil
}

// LogSender only logs messages. It stands in for SMTP in development.
type LogSender struct{}

func (LogSender) Send(_ context.Context, msg Message) error {
	log.Info().
		Str("to", msg.To).
		Str("reply_to", msg.ReplyTo).
		Str("subject", msg.Subject).
		Msg("mail: smtp not configured, message logged only")
	return nil
}
