package otp

import "time"

// Purpose ata cada código a un flujo concreto; un código emitido para un
// propósito no puede canjearse en otro.
type Purpose string

const (
	PurposePetAccess Purpose = "PET_ACCESS"
)

// OTP es un código numérico de un solo uso, con expiración corta.
// IsUsed solo transiciona false -> true, y exactamente una vez.
type OTP struct {
	ID      string
	Code    string
	Purpose Purpose

	// RecipientContact es a quién se entrega el código (el dueño de la mascota).
	// El solicitante del acceso nunca lo ve.
	RecipientContact string

	ExpiresAt time.Time
	IsUsed    bool

	CreatedAt time.Time
	UsedAt    *time.Time
}
