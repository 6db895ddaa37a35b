package records

import (
	"context"
	"time"
)

type Repository interface {
	Create(ctx context.Context, rec Record) error
	Update(ctx context.Context, rec Record) error
	GetByID(ctx context.Context, id string) (Record, error)
	ListByPet(ctx context.Context, petID string, filter ListFilter) ([]Record, error)

	// HasAnyAtClinic es una sonda de existencia (LIMIT 1), no una base de
	// autorización completa; la consume el motor de permisos.
	HasAnyAtClinic(ctx context.Context, petID, clinicID string) (bool, error)
}

type ListFilter struct {
	Kinds []Kind
	From  *time.Time
	To    *time.Time
	Query string
	Limit int
}
