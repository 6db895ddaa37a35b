package grants

import (
	"context"
	"errors"
	"strings"
	"time"

	"pet-medical-access/internal/domain/otp"
	"pet-medical-access/internal/platform/logger"
	"pet-medical-access/internal/ports/delivery"

	"github.com/google/uuid"
)

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrForbidden    = errors.New("forbidden")
	ErrNotFound     = errors.New("not found")

	// ErrInvalidOrExpired es la misma señal opaca del store de OTPs.
	ErrInvalidOrExpired = otp.ErrInvalidOrExpired
)

const defaultSweepBatch = 100

// PetOwnerLookup evita importar el paquete pets (rompe ciclos).
type PetOwnerLookup interface {
	OwnerOf(ctx context.Context, petID string) (string, error)
}

type Service struct {
	repo      Repository
	otps      *otp.Service
	petOwners PetOwnerLookup
	sender    delivery.Sender
	log       logger.Logger
	now       func() time.Time
}

func NewService(repo Repository, otps *otp.Service, petOwners PetOwnerLookup, sender delivery.Sender, log logger.Logger) *Service {
	return &Service{
		repo:      repo,
		otps:      otps,
		petOwners: petOwners,
		sender:    sender,
		log:       log,
		now:       time.Now,
	}
}

// OTPHandle es lo único que ve el solicitante: id y expiración del código.
// El código en sí viaja solo hacia el dueño por el canal de delivery.
type OTPHandle struct {
	OTPID     string
	ExpiresAt time.Time
}

// RequestAccess arranca el flujo: una clínica/doctor pide acceso a la mascota,
// se emite un OTP dirigido al dueño. El envío es fire-and-forget: un fallo de
// delivery se loguea pero no revierte la emisión.
func (s *Service) RequestAccess(ctx context.Context, petID, requesterUserID string) (OTPHandle, error) {
	petID = strings.TrimSpace(petID)
	requesterUserID = strings.TrimSpace(requesterUserID)

	if petID == "" || requesterUserID == "" {
		return OTPHandle{}, ErrInvalidInput
	}

	ownerID, err := s.petOwners.OwnerOf(ctx, petID)
	if err != nil || strings.TrimSpace(ownerID) == "" {
		return OTPHandle{}, ErrNotFound
	}

	o, err := s.otps.Issue(ctx, otp.PurposePetAccess, ownerID)
	if err != nil {
		return OTPHandle{}, err
	}

	go s.deliverCode(ownerID, o.Code)

	return OTPHandle{OTPID: o.ID, ExpiresAt: o.ExpiresAt}, nil
}

type GrantInput struct {
	PetID         string
	OwnerUserID   string
	ClinicID      string
	DoctorID      string // opcional: vacío = clinic-wide
	Code          string
	DurationHours int
}

// GrantAccess es el único write-path que crea un Grant: el dueño canjea el
// código y nace un acceso activo acotado en el tiempo. El canje es un CAS
// atómico sobre is_used (ver otp.Repository), así que dos canjes concurrentes
// del mismo código producen exactamente un grant.
func (s *Service) GrantAccess(ctx context.Context, in GrantInput) (Grant, error) {
	petID := strings.TrimSpace(in.PetID)
	ownerUserID := strings.TrimSpace(in.OwnerUserID)
	clinicID := strings.TrimSpace(in.ClinicID)
	doctorID := strings.TrimSpace(in.DoctorID)
	code := strings.TrimSpace(in.Code)

	if petID == "" || ownerUserID == "" || clinicID == "" || code == "" {
		return Grant{}, ErrInvalidInput
	}
	if in.DurationHours <= 0 {
		return Grant{}, ErrInvalidInput
	}

	trueOwner, err := s.petOwners.OwnerOf(ctx, petID)
	if err != nil || strings.TrimSpace(trueOwner) == "" {
		return Grant{}, ErrNotFound
	}
	if trueOwner != ownerUserID {
		return Grant{}, ErrForbidden
	}

	o, err := s.otps.Redeem(ctx, code, otp.PurposePetAccess)
	if err != nil {
		return Grant{}, ErrInvalidOrExpired
	}

	now := s.now()
	g := Grant{
		ID:          uuid.NewString(),
		PetID:       petID,
		ClinicID:    clinicID,
		DoctorID:    doctorID,
		OwnerUserID: ownerUserID,
		OTPID:       o.ID,
		Status:      StatusActive,
		GrantedAt:   now,
		ExpiresAt:   now.Add(time.Duration(in.DurationHours) * time.Hour),
		UpdatedAt:   now,
	}

	if err := s.repo.Create(ctx, g); err != nil {
		return Grant{}, err
	}
	return g, nil
}

// RevokeAccess: revoked es terminal y la revocación es idempotente. Revocar
// un grant ya expirado también "funciona": queda revoked, el acceso sigue negado.
func (s *Service) RevokeAccess(ctx context.Context, grantID, ownerUserID string) (Grant, error) {
	grantID = strings.TrimSpace(grantID)
	ownerUserID = strings.TrimSpace(ownerUserID)

	if grantID == "" || ownerUserID == "" {
		return Grant{}, ErrInvalidInput
	}

	g, err := s.repo.GetByID(ctx, grantID)
	if err != nil {
		return Grant{}, ErrNotFound
	}

	if g.OwnerUserID != ownerUserID {
		return Grant{}, ErrForbidden
	}

	// Idempotente
	if g.Status == StatusRevoked {
		return g, nil
	}

	now := s.now()
	g.Status = StatusRevoked
	g.UpdatedAt = now
	g.RevokedAt = &now

	if err := s.repo.Update(ctx, g); err != nil {
		return Grant{}, err
	}
	return g, nil
}

// SweepExpired es limpieza contable, no un control de seguridad: las lecturas
// re-chequean el reloj por su cuenta (LiveAt), así que la frecuencia del sweep
// no afecta la corrección.
func (s *Service) SweepExpired(ctx context.Context, batchSize int) (int, error) {
	if batchSize <= 0 {
		batchSize = defaultSweepBatch
	}
	return s.repo.MarkExpired(ctx, s.now(), batchSize)
}

func (s *Service) GetByID(ctx context.Context, grantID string) (Grant, error) {
	grantID = strings.TrimSpace(grantID)
	if grantID == "" {
		return Grant{}, ErrInvalidInput
	}
	g, err := s.repo.GetByID(ctx, grantID)
	if err != nil {
		return Grant{}, ErrNotFound
	}
	return g, nil
}

func (s *Service) ListByPet(ctx context.Context, petID string) ([]Grant, error) {
	petID = strings.TrimSpace(petID)
	if petID == "" {
		return nil, ErrInvalidInput
	}
	return s.repo.ListByPet(ctx, petID)
}

func (s *Service) deliverCode(recipientContact, code string) {
	if s.sender == nil {
		return
	}

	// El delivery no está en el camino crítico de RequestAccess; corre con su
	// propio timeout y solo deja registro si falla.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.sender.SendCode(ctx, recipientContact, code); err != nil && s.log != nil {
		s.log.Warn("otp delivery failed", map[string]any{
			"recipient": recipientContact,
			"error":     err.Error(),
		})
	}
}
