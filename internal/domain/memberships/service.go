package memberships

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrForbidden    = errors.New("forbidden")
	ErrNotFound     = errors.New("not found")
	ErrBadState     = errors.New("invalid state")
)

type Service struct {
	repo Repository
	now  func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{
		repo: repo,
		now:  time.Now,
	}
}

type InviteInput struct {
	FamilyOwnerID string
	MemberUserID  string
	AccessLevel   AccessLevel
}

// Invite crea (o reutiliza) la invitación del dueño hacia un familiar.
// Si ya existe una membresía no-removida para el par (owner, member),
// actualizamos su access level en lugar de duplicar.
func (s *Service) Invite(ctx context.Context, in InviteInput) (FamilyMembership, error) {
	ownerID := strings.TrimSpace(in.FamilyOwnerID)
	memberID := strings.TrimSpace(in.MemberUserID)

	if ownerID == "" || memberID == "" {
		return FamilyMembership{}, ErrInvalidInput
	}
	if ownerID == memberID {
		return FamilyMembership{}, ErrInvalidInput
	}

	level, err := normalizeAccessLevel(in.AccessLevel)
	if err != nil {
		return FamilyMembership{}, err
	}

	now := s.now()

	existing, err := s.findMatch(ctx, ownerID, memberID)
	if err == nil && existing.ID != "" && existing.Status != MembershipRemoved {
		existing.AccessLevel = level
		existing.UpdatedAt = now
		if err := s.repo.UpdateMembership(ctx, existing); err != nil {
			return FamilyMembership{}, err
		}
		return existing, nil
	}

	m := FamilyMembership{
		ID:            uuid.NewString(),
		FamilyOwnerID: ownerID,
		MemberUserID:  memberID,
		AccessLevel:   level,
		Status:        MembershipInvited,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := s.repo.CreateMembership(ctx, m); err != nil {
		return FamilyMembership{}, err
	}
	return m, nil
}

func (s *Service) Accept(ctx context.Context, membershipID, memberUserID string) (FamilyMembership, error) {
	membershipID = strings.TrimSpace(membershipID)
	memberUserID = strings.TrimSpace(memberUserID)

	if membershipID == "" || memberUserID == "" {
		return FamilyMembership{}, ErrInvalidInput
	}

	m, err := s.repo.GetMembershipByID(ctx, membershipID)
	if err != nil {
		return FamilyMembership{}, ErrNotFound
	}

	if m.MemberUserID != memberUserID {
		return FamilyMembership{}, ErrForbidden
	}
	if m.Status == MembershipRemoved {
		return FamilyMembership{}, ErrBadState
	}

	// Idempotente
	if m.Status == MembershipActive {
		return m, nil
	}

	m.Status = MembershipActive
	m.UpdatedAt = s.now()

	if err := s.repo.UpdateMembership(ctx, m); err != nil {
		return FamilyMembership{}, err
	}
	return m, nil
}

// Remove desactiva la membresía. Removed es terminal: no hay vuelta a active,
// un re-invite crea un registro nuevo.
func (s *Service) Remove(ctx context.Context, membershipID, familyOwnerID string) (FamilyMembership, error) {
	membershipID = strings.TrimSpace(membershipID)
	familyOwnerID = strings.TrimSpace(familyOwnerID)

	if membershipID == "" || familyOwnerID == "" {
		return FamilyMembership{}, ErrInvalidInput
	}

	m, err := s.repo.GetMembershipByID(ctx, membershipID)
	if err != nil {
		return FamilyMembership{}, ErrNotFound
	}

	if m.FamilyOwnerID != familyOwnerID {
		return FamilyMembership{}, ErrForbidden
	}

	// Idempotente
	if m.Status == MembershipRemoved {
		return m, nil
	}

	now := s.now()
	m.Status = MembershipRemoved
	m.UpdatedAt = now
	m.RemovedAt = &now

	if err := s.repo.UpdateMembership(ctx, m); err != nil {
		return FamilyMembership{}, err
	}
	return m, nil
}

func (s *Service) ListByOwner(ctx context.Context, familyOwnerID string) ([]FamilyMembership, error) {
	familyOwnerID = strings.TrimSpace(familyOwnerID)
	if familyOwnerID == "" {
		return nil, ErrInvalidInput
	}
	return s.repo.ListMembershipsByOwner(ctx, familyOwnerID)
}

type RegisterDoctorInput struct {
	ClinicID       string
	DoctorUserID   string
	EmploymentType EmploymentType
}

// RegisterDoctor da de alta la afiliación doctor-clínica. La corta el dueño
// de la clínica; la validación de que el caller es ese dueño vive en el borde.
func (s *Service) RegisterDoctor(ctx context.Context, in RegisterDoctorInput) (DoctorClinicAssociation, error) {
	clinicID := strings.TrimSpace(in.ClinicID)
	doctorID := strings.TrimSpace(in.DoctorUserID)

	if clinicID == "" || doctorID == "" {
		return DoctorClinicAssociation{}, ErrInvalidInput
	}

	emp, err := normalizeEmployment(in.EmploymentType)
	if err != nil {
		return DoctorClinicAssociation{}, err
	}

	now := s.now()

	// Dedup: si ya hay asociación activa para (doctor, clínica), la devolvemos.
	existing, err := s.repo.ActiveDoctorAssociations(ctx, doctorID)
	if err == nil {
		for _, a := range existing {
			if a.ClinicID == clinicID {
				return a, nil
			}
		}
	}

	a := DoctorClinicAssociation{
		ID:             uuid.NewString(),
		DoctorUserID:   doctorID,
		ClinicID:       clinicID,
		EmploymentType: emp,
		IsActive:       true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := s.repo.CreateAssociation(ctx, a); err != nil {
		return DoctorClinicAssociation{}, err
	}
	return a, nil
}

func (s *Service) DeactivateDoctor(ctx context.Context, associationID, clinicID string) (DoctorClinicAssociation, error) {
	associationID = strings.TrimSpace(associationID)
	clinicID = strings.TrimSpace(clinicID)

	if associationID == "" || clinicID == "" {
		return DoctorClinicAssociation{}, ErrInvalidInput
	}

	a, err := s.repo.GetAssociationByID(ctx, associationID)
	if err != nil {
		return DoctorClinicAssociation{}, ErrNotFound
	}
	if a.ClinicID != clinicID {
		return DoctorClinicAssociation{}, ErrForbidden
	}

	// Idempotente
	if !a.IsActive {
		return a, nil
	}

	a.IsActive = false
	a.UpdatedAt = s.now()

	if err := s.repo.UpdateAssociation(ctx, a); err != nil {
		return DoctorClinicAssociation{}, err
	}
	return a, nil
}

// Lecturas consumidas por el motor de permisos.

func (s *Service) ActiveFamilyMembership(ctx context.Context, memberUserID string) (FamilyMembership, error) {
	memberUserID = strings.TrimSpace(memberUserID)
	if memberUserID == "" {
		return FamilyMembership{}, ErrInvalidInput
	}
	m, err := s.repo.ActiveFamilyMembership(ctx, memberUserID)
	if err != nil {
		return FamilyMembership{}, ErrNotFound
	}
	return m, nil
}

func (s *Service) ActiveDoctorAssociations(ctx context.Context, doctorUserID string) ([]DoctorClinicAssociation, error) {
	doctorUserID = strings.TrimSpace(doctorUserID)
	if doctorUserID == "" {
		return nil, ErrInvalidInput
	}
	return s.repo.ActiveDoctorAssociations(ctx, doctorUserID)
}

func (s *Service) findMatch(ctx context.Context, ownerID, memberID string) (FamilyMembership, error) {
	items, err := s.repo.ListMembershipsByOwner(ctx, ownerID)
	if err != nil {
		return FamilyMembership{}, err
	}

	var winner FamilyMembership
	hasWinner := false
	for _, m := range items {
		if m.MemberUserID != memberID {
			continue
		}
		if !hasWinner || m.UpdatedAt.After(winner.UpdatedAt) {
			winner = m
			hasWinner = true
		}
	}

	if !hasWinner {
		return FamilyMembership{}, ErrNotFound
	}
	return winner, nil
}

func normalizeAccessLevel(in AccessLevel) (AccessLevel, error) {
	switch AccessLevel(strings.ToLower(strings.TrimSpace(string(in)))) {
	case AccessLevelFull:
		return AccessLevelFull, nil
	case AccessLevelReadOnly, "":
		// default conservador: solo lectura
		return AccessLevelReadOnly, nil
	default:
		return "", ErrInvalidInput
	}
}

func normalizeEmployment(in EmploymentType) (EmploymentType, error) {
	switch EmploymentType(strings.ToLower(strings.TrimSpace(string(in)))) {
	case EmploymentStaff, "":
		return EmploymentStaff, nil
	case EmploymentContractor:
		return EmploymentContractor, nil
	case EmploymentLocum:
		return EmploymentLocum, nil
	default:
		return "", ErrInvalidInput
	}
}
