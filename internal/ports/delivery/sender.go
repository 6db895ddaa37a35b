package delivery

import "context"

// Sender entrega un código OTP al dueño por un canal externo (SMS/email).
// Best-effort: el workflow lo usa fire-and-forget y un fallo no revierte
// la emisión del código.
type Sender interface {
	SendCode(ctx context.Context, recipientContact, code string) error
}
