package records

import (
	"context"
	"errors"
	"strings"
	"time"

	"pet-medical-access/internal/domain/permissions"
	"pet-medical-access/internal/domain/pets"

	"github.com/google/uuid"
)

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrForbidden    = errors.New("forbidden")
	ErrNotFound     = errors.New("not found")
)

// PetLookup evita importar el service de pets (rompe ciclos).
type PetLookup interface {
	GetByID(ctx context.Context, id string) (pets.Pet, error)
}

// Service antepone el motor de permisos a todo read/write. Una decisión en
// false se traduce a ErrForbidden uniforme, sin revelar cuál regla falló.
type Service struct {
	repo   Repository
	pets   PetLookup
	engine *permissions.Engine
	now    func() time.Time
}

func NewService(repo Repository, petLookup PetLookup, engine *permissions.Engine) *Service {
	return &Service{
		repo:   repo,
		pets:   petLookup,
		engine: engine,
		now:    time.Now,
	}
}

type CreateInput struct {
	Kind       Kind
	Title      string
	Notes      string
	OccurredAt time.Time
	Details    Details
}

func (s *Service) Create(ctx context.Context, actor permissions.Actor, petID string, in CreateInput) (Record, error) {
	petID = strings.TrimSpace(petID)
	if petID == "" || in.Kind == "" {
		return Record{}, ErrInvalidInput
	}
	if in.OccurredAt.IsZero() {
		return Record{}, ErrInvalidInput
	}

	pet, err := s.pets.GetByID(ctx, petID)
	if err != nil {
		return Record{}, ErrNotFound
	}

	var (
		allowed bool
		role    string
	)
	switch in.Kind {
	case KindPrescription:
		allowed = s.engine.CanCreatePrescriptions(ctx, actor, pet)
		role = string(permissions.RoleDoctor)
	case KindLabTest:
		allowed = s.engine.CanOrderLabTests(ctx, actor, pet)
		role = string(permissions.RoleDoctor)
	case KindVaccination:
		allowed = s.engine.CanCreateVaccinations(ctx, actor, pet)
		role = string(permissions.RoleDoctor)
	case KindMedicalRecord, KindAllergy:
		allowed, role = s.engine.CanCreateRecords(ctx, actor, pet)
	default:
		return Record{}, ErrInvalidInput
	}
	if !allowed {
		return Record{}, ErrForbidden
	}

	clinicID := ""
	if role == string(permissions.RoleDoctor) {
		clinicID = s.engine.AttributedClinic(ctx, actor, pet)
	}

	now := s.now()
	rec := Record{
		ID:              uuid.NewString(),
		PetID:           petID,
		Kind:            in.Kind,
		Title:           strings.TrimSpace(in.Title),
		Notes:           strings.TrimSpace(in.Notes),
		Details:         in.Details,
		OccurredAt:      in.OccurredAt,
		RecordedAt:      now,
		CreatedByUserID: actor.ID,
		CreatedByRole:   role,
		ClinicID:        clinicID,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := s.repo.Create(ctx, rec); err != nil {
		return Record{}, err
	}
	return rec, nil
}

func (s *Service) GetByID(ctx context.Context, actor permissions.Actor, recordID string) (Record, error) {
	recordID = strings.TrimSpace(recordID)
	if recordID == "" {
		return Record{}, ErrInvalidInput
	}

	rec, err := s.repo.GetByID(ctx, recordID)
	if err != nil {
		return Record{}, ErrNotFound
	}

	pet, err := s.pets.GetByID(ctx, rec.PetID)
	if err != nil {
		return Record{}, ErrNotFound
	}
	if !s.engine.CanRead(ctx, actor, pet) {
		return Record{}, ErrForbidden
	}
	return rec, nil
}

func (s *Service) ListByPet(ctx context.Context, actor permissions.Actor, petID string, filter ListFilter) ([]Record, error) {
	petID = strings.TrimSpace(petID)
	if petID == "" {
		return nil, ErrInvalidInput
	}

	pet, err := s.pets.GetByID(ctx, petID)
	if err != nil {
		return nil, ErrNotFound
	}
	if !s.engine.CanRead(ctx, actor, pet) {
		return nil, ErrForbidden
	}
	return s.repo.ListByPet(ctx, petID, filter)
}

type AmendInput struct {
	Title   *string
	Notes   *string
	Details *Details
}

// Amend corrige una entrada existente. Los derechos de corrección salen de
// CanUpdateRecord: dueño para entradas de dueño/familia, el mismo doctor con
// grant vigente para entradas de doctor.
func (s *Service) Amend(ctx context.Context, actor permissions.Actor, recordID string, in AmendInput) (Record, error) {
	recordID = strings.TrimSpace(recordID)
	if recordID == "" {
		return Record{}, ErrInvalidInput
	}

	rec, err := s.repo.GetByID(ctx, recordID)
	if err != nil {
		return Record{}, ErrNotFound
	}

	pet, err := s.pets.GetByID(ctx, rec.PetID)
	if err != nil {
		return Record{}, ErrNotFound
	}

	if !s.engine.CanUpdateRecord(ctx, actor, pet, rec.CreatedByRole, rec.CreatedByUserID) {
		return Record{}, ErrForbidden
	}

	if in.Title != nil {
		rec.Title = strings.TrimSpace(*in.Title)
	}
	if in.Notes != nil {
		rec.Notes = strings.TrimSpace(*in.Notes)
	}
	if in.Details != nil {
		rec.Details = *in.Details
	}
	rec.UpdatedAt = s.now()

	if err := s.repo.Update(ctx, rec); err != nil {
		return Record{}, err
	}
	return rec, nil
}
