package email

import (
	"context"
	"fmt"
	"io"
	"time"

	"gopkg.in/gomail.v2"
)

const (
	otpSubject    = "Your ticket retrieval code"
	ticketSubject = "Your appointment QR code"
	qrFilename    = "qrcode.png"
)

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

type sender interface {
	DialAndSend(m ...*gomail.Message) error
}

type SMTPService struct {
	from   string
	dialer sender
}

func NewSMTPService(cfg SMTPConfig) *SMTPService {
	return &SMTPService{
		from:   cfg.From,
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
	}
}

func (s *SMTPService) SendOTP(ctx context.Context, to, otp string, ttl time.Duration) error {
	return s.send(ctx, otpMessage(s.from, to, otp, ttl))
}

func (s *SMTPService) SendTicket(ctx context.Context, to string, qrPNG []byte) error {
	return s.send(ctx, ticketMessage(s.from, to, qrPNG))
}

func (s *SMTPService) send(ctx context.Context, m *gomail.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}

func otpMessage(from, to, otp string, ttl time.Duration) *gomail.Message {
	m := gomail.NewMessage()
	m.SetHeader("From", from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", otpSubject)
	m.SetBody("text/plain", fmt.Sprintf(
		"Your OTP to retrieve your appointment ticket is %s. It expires in %d minutes.",
		otp, int(ttl.Minutes()),
	))
	return m
}

func ticketMessage(from, to string, qrPNG []byte) *gomail.Message {
	m := gomail.NewMessage()
	m.SetHeader("From", from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", ticketSubject)
	m.SetBody("text/plain", "Download the attached QR code and show it at the clinic.")
	m.Attach(qrFilename,
		gomail.SetHeader(map[string][]string{"Content-Type": {"image/png"}}),
		gomail.SetCopyFunc(func(w io.Writer) error {
			_, err := w.Write(qrPNG)
			return err
		}),
	)
	return m
}
