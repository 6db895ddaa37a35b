package grants

import (
	"context"
	"time"
)

type Repository interface {
	Create(ctx context.Context, g Grant) error
	Update(ctx context.Context, g Grant) error
	GetByID(ctx context.Context, id string) (Grant, error)
	ListByPet(ctx context.Context, petID string) ([]Grant, error)

	// ListActiveByPetClinic filtra por status=active; la vigencia real contra
	// el reloj la re-evalúa quien consume (el motor de permisos).
	ListActiveByPetClinic(ctx context.Context, petID, clinicID string) ([]Grant, error)

	// MarkExpired pasa a expired los grants active con expires_at <= now,
	// hasta limit filas. Devuelve cuántos mutó.
	MarkExpired(ctx context.Context, now time.Time, limit int) (int, error)
}
