// Copyright (c) 2026 Identra. All rights reserved.
// Author: dev@identra.io

/*
Package mailer provides outbound transactional email delivery.

It owns the SMTP transport and the message templates for the two mails the
platform sends: email verification and password reset.

Architecture:

  - Sender: a narrow interface so services can be tested with a fake.
  - SMTPSender: the production implementation over net/smtp (STARTTLS on 587).
  - NoopSender: used when SMTP is not configured (development environments).

Delivery is always invoked fire-and-forget by the service layer, so a slow or
failing mail server never delays an API response.
*/
package mailer

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/smtp"
	"strings"
	"time"
)

// Sender delivers a single plain-text email.
type Sender interface {
	Send(ctx context.Context, to, subject, body string) error
}

// # SMTP Implementation

// SMTPSender delivers mail over SMTP with STARTTLS negotiation handled by
// the standard library (suitable for ports 25 and 587).
type SMTPSender struct {
	host     string
	port     string
	username string
	password string
	from     string
	fromName string
	logger   *slog.Logger
}

// NewSMTPSender creates a production SMTP sender. fromName is the display
// name shown next to the from address; it may be empty.
func NewSMTPSender(host, port, username, password, from, fromName string, logger *slog.Logger) *SMTPSender {
	return &SMTPSender{
		host:     host,
		port:     port,
		username: username,
		password: password,
		from:     from,
		fromName: fromName,
		logger:   logger,
	}
}

// Send composes and delivers one message. The context deadline bounds the
// whole dial-and-deliver sequence.
func (sender *SMTPSender) Send(ctx context.Context, to, subject, body string) error {
	address := net.JoinHostPort(sender.host, sender.port)
	message := buildMessage(fromHeader(sender.from, sender.fromName), to, subject, body)

	var auth smtp.Auth
	if sender.username != "" {
		auth = smtp.PlainAuth("", sender.username, sender.password, sender.host)
	}

	// smtp.SendMail has no context support, so run it in a goroutine and
	// abandon it if the deadline fires first.
	done := make(chan error, 1)
	go func() {
		done <- smtp.SendMail(address, auth, sender.from, []string{to}, message)
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("mailer: smtp delivery failed: %w", err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("mailer: smtp delivery aborted: %w", ctx.Err())
	}
}

// # Development Implementation

// NoopSender logs the mail instead of sending it. Used when SMTP_HOST is unset.
type NoopSender struct {
	logger *slog.Logger
}

// NewNoopSender creates a sender that only logs.
func NewNoopSender(logger *slog.Logger) *NoopSender {
	return &NoopSender{logger: logger}
}

// Send logs the message headers and returns nil.
func (sender *NoopSender) Send(ctx context.Context, to, subject, body string) error {
	sender.logger.InfoContext(ctx, "mail_skipped_no_smtp",
		slog.String("to", to),
		slog.String("subject", subject),
	)
	return nil
}

// # Message Templates

// VerificationMail builds the subject and body for an email verification mail.
func VerificationMail(frontendURL, token string) (subject, body string) {
	link := fmt.Sprintf("%s/verify-email?token=%s", strings.TrimRight(frontendURL, "/"), token)
	subject = "Verify your Identra account"
	body = fmt.Sprintf(
		"Welcome to Identra!\r\n\r\n"+
			"Please confirm your email address by opening the link below:\r\n\r\n"+
			"%s\r\n\r\n"+
			"The link expires in 24 hours. If you did not create an account, you can ignore this mail.\r\n",
		link,
	)
	return subject, body
}

// ResetMail builds the subject and body for a password reset mail.
func ResetMail(frontendURL, token string) (subject, body string) {
	link := fmt.Sprintf("%s/reset-password?token=%s", strings.TrimRight(frontendURL, "/"), token)
	subject = "Reset your Identra password"
	body = fmt.Sprintf(
		"A password reset was requested for your account.\r\n\r\n"+
			"Open the link below to choose a new password:\r\n\r\n"+
			"%s\r\n\r\n"+
			"The link expires in 1 hour. If you did not request a reset, you can ignore this mail.\r\n",
		link,
	)
	return subject, body
}

// fromHeader formats the From header value. The envelope sender stays the
// bare address; only the header carries the display name.
func fromHeader(address, name string) string {
	if name == "" {
		return address
	}
	return fmt.Sprintf("%q <%s>", name, address)
}

// buildMessage composes a minimal RFC 5322 message.
func buildMessage(from, to, subject, body string) []byte {
	var builder strings.Builder
	builder.WriteString("From: " + from + "\r\n")
	builder.WriteString("To: " + to + "\r\n")
	builder.WriteString("Subject: " + subject + "\r\n")
	builder.WriteString("Date: " + time.Now().UTC().Format(time.RFC1123Z) + "\r\n")
	builder.WriteString("MIME-Version: 1.0\r\n")
	builder.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	builder.WriteString("\r\n")
	builder.WriteString(body)
	return []byte(builder.String())
}
