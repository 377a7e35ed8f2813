// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package mailer delivers voting codes by email.
package mailer

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"codeberg.org/oliverandrich/votemail/internal/config"
	"codeberg.org/oliverandrich/votemail/internal/i18n"
	"codeberg.org/oliverandrich/votemail/internal/templates"
	"github.com/a-h/templ"
	"github.com/wneessen/go-mail"
	"golang.org/x/text/language"
)

// Notification is one voting code addressed to one recipient.
type Notification struct {
	To   string
	Code string
}

// Sender delivers notifications.
type Sender interface {
	Send(ctx context.Context, n Notification) error
}

// SMTPSender sends notifications through an SMTP server.
type SMTPSender struct {
	smtp   *config.SMTPConfig
	mail   *config.MailConfig
	locale language.Tag
}

// NewSMTPSender creates a sender from the SMTP and mail settings.
func NewSMTPSender(smtp *config.SMTPConfig, mailCfg *config.MailConfig) (*SMTPSender, error) {
	if smtp.Host == "" {
		return nil, errors.New("SMTP host is required")
	}
	if mailCfg.FromAddress == "" {
		return nil, errors.New("mail from address is required")
	}
	if mailCfg.VotingURL == "" {
		return nil, errors.New("voting URL is required")
	}

	return &SMTPSender{
		smtp:   smtp,
		mail:   mailCfg,
		locale: i18n.MatchLanguage(mailCfg.Locale),
	}, nil
}

// VotingLink returns the voting page link that pre-fills code.
func VotingLink(votingURL, code string) string {
	return fmt.Sprintf("%s?code=%s", votingURL, url.QueryEscape(code))
}

// Compose builds the message for n: translated subject, plain text body
// and an HTML alternative.
func (s *SMTPSender) Compose(ctx context.Context, n Notification) (*mail.Msg, error) {
	ctx = i18n.WithLocale(ctx, s.locale)
	link := VotingLink(s.mail.VotingURL, n.Code)

	msg := mail.NewMsg()

	if s.mail.FromName != "" {
		if err := msg.FromFormat(s.mail.FromName, s.mail.FromAddress); err != nil {
			return nil, fmt.Errorf("setting from address: %w", err)
		}
	} else {
		if err := msg.From(s.mail.FromAddress); err != nil {
			return nil, fmt.Errorf("setting from address: %w", err)
		}
	}

	if err := msg.To(n.To); err != nil {
		return nil, fmt.Errorf("setting to address: %w", err)
	}

	msg.Subject(i18n.T(ctx, "email_subject"))
	msg.SetBodyString(mail.TypeTextPlain, i18n.TData(ctx, "email_text", map[string]any{
		"Code":      n.Code,
		"VotingURL": link,
		"Support":   s.mail.SupportAddress,
	}))

	buf := templ.GetBuffer()
	defer templ.ReleaseBuffer(buf)
	err := templates.VotingEmail(templates.VotingEmailData{
		Code:           n.Code,
		VotingURL:      link,
		SupportAddress: s.mail.SupportAddress,
	}).Render(ctx, buf)
	if err != nil {
		return nil, fmt.Errorf("rendering email: %w", err)
	}
	msg.AddAlternativeString(mail.TypeTextHTML, buf.String())

	return msg, nil
}

// Send delivers n over a fresh SMTP connection.
func (s *SMTPSender) Send(ctx context.Context, n Notification) error {
	msg, err := s.Compose(ctx, n)
	if err != nil {
		return err
	}

	client, err := mail.NewClient(s.smtp.Host, s.clientOptions()...)
	if err != nil {
		return fmt.Errorf("creating mail client: %w", err)
	}

	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("sending email: %w", err)
	}

	return nil
}

func (s *SMTPSender) clientOptions() []mail.Option {
	opts := []mail.Option{
		mail.WithPort(s.smtp.Port),
	}

	if s.smtp.Timeout > 0 {
		opts = append(opts, mail.WithTimeout(s.smtp.Timeout))
	}

	// Implicit TLS (SSL) on 465, STARTTLS otherwise
	if s.smtp.TLS {
		opts = append(opts, mail.WithTLSPolicy(mail.TLSMandatory))
		if s.smtp.Port == 465 {
			opts = append(opts, mail.WithSSL())
		}
	} else {
		opts = append(opts, mail.WithTLSPolicy(mail.NoTLS))
	}

	if s.smtp.Username != "" && s.smtp.Password != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(s.smtp.Username),
			mail.WithPassword(s.smtp.Password),
		)
	}

	return opts
}
