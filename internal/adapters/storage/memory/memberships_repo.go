package memory

import (
	"context"
	"errors"
	"sync"

	"pet-medical-access/internal/domain/memberships"
)

type membershipRepo struct {
	mu        sync.RWMutex
	byID      map[string]memberships.FamilyMembership
	assocByID map[string]memberships.DoctorClinicAssociation
}

func NewMembershipsRepo() memberships.Repository {
	return &membershipRepo{
		byID:      make(map[string]memberships.FamilyMembership),
		assocByID: make(map[string]memberships.DoctorClinicAssociation),
	}
}

func (r *membershipRepo) CreateMembership(ctx context.Context, m memberships.FamilyMembership) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if m.ID == "" {
		return errors.New("membership id required")
	}
	if _, exists := r.byID[m.ID]; exists {
		return errors.New("membership already exists")
	}
	r.byID[m.ID] = m
	return nil
}

func (r *membershipRepo) UpdateMembership(ctx context.Context, m memberships.FamilyMembership) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if m.ID == "" {
		return errors.New("membership id required")
	}
	if _, exists := r.byID[m.ID]; !exists {
		return ErrNotFound
	}
	r.byID[m.ID] = m
	return nil
}

func (r *membershipRepo) GetMembershipByID(ctx context.Context, id string) (memberships.FamilyMembership, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	m, ok := r.byID[id]
	if !ok {
		return memberships.FamilyMembership{}, ErrNotFound
	}
	return m, nil
}

func (r *membershipRepo) ListMembershipsByOwner(ctx context.Context, familyOwnerID string) ([]memberships.FamilyMembership, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]memberships.FamilyMembership, 0)
	for _, m := range r.byID {
		if m.FamilyOwnerID == familyOwnerID {
			out = append(out, m)
		}
	}
	return out, nil
}

// Si por data sucia hubiera más de una membresía activa para el mismo
// usuario, gana la más reciente por UpdatedAt.
func (r *membershipRepo) ActiveFamilyMembership(ctx context.Context, memberUserID string) (memberships.FamilyMembership, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var winner memberships.FamilyMembership
	has := false

	for _, m := range r.byID {
		if m.MemberUserID != memberUserID {
			continue
		}
		if m.Status != memberships.MembershipActive {
			continue
		}
		if !has || m.UpdatedAt.After(winner.UpdatedAt) {
			winner = m
			has = true
		}
	}

	if !has {
		return memberships.FamilyMembership{}, ErrNotFound
	}
	return winner, nil
}

func (r *membershipRepo) CreateAssociation(ctx context.Context, a memberships.DoctorClinicAssociation) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if a.ID == "" {
		return errors.New("association id required")
	}
	if _, exists := r.assocByID[a.ID]; exists {
		return errors.New("association already exists")
	}
	r.assocByID[a.ID] = a
	return nil
}

func (r *membershipRepo) UpdateAssociation(ctx context.Context, a memberships.DoctorClinicAssociation) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if a.ID == "" {
		return errors.New("association id required")
	}
	if _, exists := r.assocByID[a.ID]; !exists {
		return ErrNotFound
	}
	r.assocByID[a.ID] = a
	return nil
}

func (r *membershipRepo) GetAssociationByID(ctx context.Context, id string) (memberships.DoctorClinicAssociation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.assocByID[id]
	if !ok {
		return memberships.DoctorClinicAssociation{}, ErrNotFound
	}
	return a, nil
}

func (r *membershipRepo) ActiveDoctorAssociations(ctx context.Context, doctorUserID string) ([]memberships.DoctorClinicAssociation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]memberships.DoctorClinicAssociation, 0)
	for _, a := range r.assocByID {
		if a.DoctorUserID != doctorUserID {
			continue
		}
		if !a.IsActive {
			continue
		}
		out = append(out, a)
	}
	return out, nil
}
