package contact

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/vasiliy-maslov/boutique-api/internal/mail"
)

var ErrMissingFields = errors.New("all fields are required")

type Message struct {
	Name    string
	Email   string
	Subject string
	Message string
}

type Mailer interface {
	Send(ctx context.Context, msg mail.Message) error
}

type Service interface {
	Send(ctx context.Context, msg Message) error
}

type service struct {
	mailer Mailer
	inbox  string
}

// NewService returns a contact form service delivering to inbox.
func NewService(mailer Mailer, inbox string) Service {
	return &service{mailer: mailer, inbox: inbox}
}

var contactTemplate = template.Must(template.New("contact").Parse(`<h3>New Contact Form Submission</h3>
<p><strong>Name:</strong> {{.Name}}</p>
<p><strong>Email:</strong> {{.Email}}</p>
<p><strong>Subject:</strong> {{.Subject}}</p>
<p><strong>Message:</strong></p>
<p>{{.Message}}</p>
`))

func (s *service) Send(ctx context.Context, msg Message) error {
	msg = Message{
		Name:    strings.TrimSpace(msg.Name),
		Email:   strings.TrimSpace(msg.Email),
		Subject: strings.TrimSpace(msg.Subject),
		Message: strings.TrimSpace(msg.Message),
	}
	if msg.Name == "" || msg.Email == "" || msg.Subject == "" || msg.Message == "" {
		return ErrMissingFields
	}

	var body bytes.Buffer
	if err := contactTemplate.Execute(&body, msg); err != nil {
		return fmt.Errorf("service: failed to render contact email: %w", err)
	}

	err := s.mailer.Send(ctx, mail.Message{
		To:      s.inbox,
		ReplyTo: msg.Email,
		Subject: fmt.Sprintf("New Contact from %s: %s", msg.Name, msg.Subject),
		HTML:    body.String(),
	})
	if err != nil {
		log.Error().Err(err).Str("from", msg.Email).Msg("service: failed to forward contact message")
		return fmt.Errorf("service: failed to forward contact message: %w", err)
	}

	log.Info().Str("from", msg.Email).Msg("service: contact message forwarded")
	return nil
}
