package notifications

import (
	"context"
	"fmt"

	"github.com/karimfahmy/nilecart-backend/pkg/logger"
)

// Message is one customer-facing notification ready for delivery.
type Message struct {
	To      string
	Subject string
	Body    string
}

// Sender delivers composed messages. Implementations decide the transport;
// the consumer does not care whether it is email, SMS or a log line.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// LogSender writes messages to the structured log. It is the default wiring
// until a real mail provider is attached.
type LogSender struct {
	logg *logger.Logger
}

func NewLogSender(logg *logger.Logger) (*LogSender, error) {
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &LogSender{logg: logg}, nil
}

func (s *LogSender) Send(ctx context.Context, msg Message) error {
	logCtx := s.logg.WithFields(ctx, map[string]any{
		"to":      msg.To,
		"subject": msg.Subject,
	})
	s.logg.Info(logCtx, "notification dispatched")
	return nil
}
