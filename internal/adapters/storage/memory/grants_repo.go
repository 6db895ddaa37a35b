package memory

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"pet-medical-access/internal/domain/grants"
)

type grantRepo struct {
	mu   sync.RWMutex
	byID map[string]grants.Grant
}

func NewGrantsRepo() grants.Repository {
	return &grantRepo{
		byID: make(map[string]grants.Grant),
	}
}

func (r *grantRepo) Create(ctx context.Context, g grants.Grant) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if g.ID == "" {
		return errors.New("grant id required")
	}
	if _, exists := r.byID[g.ID]; exists {
		return errors.New("grant already exists")
	}
	r.byID[g.ID] = g
	return nil
}

func (r *grantRepo) Update(ctx context.Context, g grants.Grant) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if g.ID == "" {
		return errors.New("grant id required")
	}
	if _, exists := r.byID[g.ID]; !exists {
		return ErrNotFound
	}
	r.byID[g.ID] = g
	return nil
}

func (r *grantRepo) GetByID(ctx context.Context, id string) (grants.Grant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	g, ok := r.byID[id]
	if !ok {
		return grants.Grant{}, ErrNotFound
	}
	return g, nil
}

func (r *grantRepo) ListByPet(ctx context.Context, petID string) ([]grants.Grant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]grants.Grant, 0)
	for _, g := range r.byID {
		if g.PetID == petID {
			out = append(out, g)
		}
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].GrantedAt.Before(out[j].GrantedAt)
	})

	return out, nil
}

func (r *grantRepo) ListActiveByPetClinic(ctx context.Context, petID, clinicID string) ([]grants.Grant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]grants.Grant, 0)
	for _, g := range r.byID {
		if g.PetID != petID || g.ClinicID != clinicID {
			continue
		}
		if g.Status != grants.StatusActive {
			continue
		}
		out = append(out, g)
	}
	return out, nil
}

func (r *grantRepo) MarkExpired(ctx context.Context, now time.Time, limit int) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	count := 0
	for id, g := range r.byID {
		if count >= limit {
			break
		}
		if g.Status != grants.StatusActive {
			continue
		}
		if g.ExpiresAt.After(now) {
			continue
		}
		g.Status = grants.StatusExpired
		g.UpdatedAt = now
		r.byID[id] = g
		count++
	}
	return count, nil
}
