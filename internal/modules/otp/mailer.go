package otp

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// DevConsoleMailer writes codes to the log instead of sending them.
// Never enable it in production.
type DevConsoleMailer struct {
	enabled bool
	log     *zap.Logger
}

func NewDevConsoleMailer(enabled bool, log *zap.Logger) *DevConsoleMailer {
	if log == nil {
		log = zap.NewNop()
	}
	return &DevConsoleMailer{enabled: enabled, log: log}
}

func (m *DevConsoleMailer) SendCode(_ context.Context, identifier, code string, expiresIn time.Duration) error {
	if m.enabled {
		m.log.Info("[DEV-EMAIL] one-time code",
			zap.String("identifier", identifier),
			zap.String("code", code),
			zap.Duration("expires_in", expiresIn))
	}
	return nil
}
