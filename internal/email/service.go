// Package email delivers retrieval OTPs and ticket QR codes.
package email

import (
	"context"
	"time"

	"github.com/jwalitptl/queue-api/pkg/logger"
)

type Service interface {
	SendOTP(ctx context.Context, to, otp string, ttl time.Duration) error
	// SendTicket mails the ticket QR code as a PNG attachment.
	SendTicket(ctx context.Context, to string, qrPNG []byte) error
}

// LogService only logs; it is used when SMTP is not configured.
type LogService struct {
	logger *logger.Logger
}

func NewLogService(log *logger.Logger) *LogService {
	if log == nil {
		log = logger.Nop()
	}
	return &LogService{logger: log}
}

func (s *LogService) SendOTP(ctx context.Context, to, otp string, ttl time.Duration) error {
	s.logger.Debug("smtp disabled, otp not sent", "to", to, "ttl", ttl.String())
	return ctx.Err()
}

func (s *LogService) SendTicket(ctx context.Context, to string, qrPNG []byte) error {
	s.logger.Debug("smtp disabled, ticket not sent", "to", to, "bytes", len(qrPNG))
	return ctx.Err()
}
