package mail

import (
	"context"

	sc "github.com/ateliertech/portal/internal/server/config"
	"github.com/google/uuid"
	gomail "github.com/wneessen/go-mail"
)

// SMTPMailer delivers over plain SMTP (MailHog in development).
type SMTPMailer struct {
	config *sc.Config
}

func NewSMTPMailer(config *sc.Config) *SMTPMailer {
	return &SMTPMailer{config: config}
}

func (m *SMTPMailer) Send(ctx context.Context, to, subject, html string) Result {
	opts := []gomail.Option{
		gomail.WithPort(m.config.SMTPPort),
		gomail.WithTLSPolicy(gomail.TLSOpportunistic),
	}
	if m.config.SMTPUser != "" {
		opts = append(opts,
			gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
			gomail.WithUsername(m.config.SMTPUser),
			gomail.WithPassword(m.config.SMTPPassword),
		)
	}

	client, err := gomail.NewClient(m.config.SMTPHost, opts...)
	if err != nil {
		return Result{Err: err}
	}

	messageID := uuid.NewString()

	msg := gomail.NewMsg()
	if err := msg.From(m.config.MailFrom); err != nil {
		return Result{Err: err}
	}
	if err := msg.To(to); err != nil {
		return Result{Err: err}
	}
	msg.SetMessageIDWithValue(messageID)
	msg.Subject(subject)
	msg.SetBodyString(gomail.TypeTextHTML, html)

	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return Result{Err: err}
	}

	return Result{Success: true, MessageID: messageID}
}
