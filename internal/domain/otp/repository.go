package otp

import (
	"context"
	"time"
)

type Repository interface {
	Create(ctx context.Context, o OTP) error

	// Consume marca como usado el código que coincida con (code, purpose) y que
	// siga sin usar y sin expirar a la hora dada. La implementación debe ser un
	// compare-and-swap atómico sobre IsUsed: ante dos canjes concurrentes del
	// mismo código, exactamente uno gana y el otro recibe error.
	Consume(ctx context.Context, code string, purpose Purpose, now time.Time) (OTP, error)
}
