package devlog

import (
	"context"

	"pet-medical-access/internal/platform/logger"
)

// Sender es el canal de entrega de modo dev: loguea el código en vez de
// enviarlo. Solo para entornos sin gateway configurado; en producción el
// código jamás debería tocar los logs.
type Sender struct {
	Log logger.Logger
}

func New(log logger.Logger) *Sender {
	return &Sender{Log: log}
}

func (s *Sender) SendCode(ctx context.Context, recipientContact, code string) error {
	if s.Log != nil {
		s.Log.Info("dev otp delivery", map[string]any{
			"recipient": recipientContact,
			"code":      code,
		})
	}
	return nil
}
