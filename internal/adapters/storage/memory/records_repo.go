package memory

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"

	"pet-medical-access/internal/domain/records"
)

type recordRepo struct {
	mu   sync.RWMutex
	byID map[string]records.Record
}

func NewRecordsRepo() records.Repository {
	return &recordRepo{
		byID: make(map[string]records.Record),
	}
}

func (r *recordRepo) Create(ctx context.Context, rec records.Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if rec.ID == "" {
		return errors.New("record id required")
	}
	if _, exists := r.byID[rec.ID]; exists {
		return errors.New("record already exists")
	}
	r.byID[rec.ID] = rec
	return nil
}

func (r *recordRepo) Update(ctx context.Context, rec records.Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if rec.ID == "" {
		return errors.New("record id required")
	}
	if _, exists := r.byID[rec.ID]; !exists {
		return ErrNotFound
	}
	r.byID[rec.ID] = rec
	return nil
}

func (r *recordRepo) GetByID(ctx context.Context, id string) (records.Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.byID[id]
	if !ok {
		return records.Record{}, ErrNotFound
	}
	return rec, nil
}

func (r *recordRepo) ListByPet(ctx context.Context, petID string, filter records.ListFilter) ([]records.Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}

	out := make([]records.Record, 0)

	for _, rec := range r.byID {
		if rec.PetID != petID {
			continue
		}

		// Kind filter
		if len(filter.Kinds) > 0 {
			ok := false
			for _, k := range filter.Kinds {
				if rec.Kind == k {
					ok = true
					break
				}
			}
			if !ok {
				continue
			}
		}

		// Date filters (occurred_at)
		if filter.From != nil && rec.OccurredAt.Before(*filter.From) {
			continue
		}
		if filter.To != nil && rec.OccurredAt.After(*filter.To) {
			continue
		}

		// Query filter
		if q := strings.TrimSpace(filter.Query); q != "" {
			hay := strings.ToLower(rec.Title + " " + rec.Notes)
			if !strings.Contains(hay, strings.ToLower(q)) {
				continue
			}
		}

		out = append(out, rec)
	}

	// Orden por occurred_at desc (más reciente primero)
	sort.Slice(out, func(i, j int) bool {
		return out[i].OccurredAt.After(out[j].OccurredAt)
	})

	if len(out) > limit {
		out = out[:limit]
	}

	return out, nil
}

func (r *recordRepo) HasAnyAtClinic(ctx context.Context, petID, clinicID string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if clinicID == "" {
		return false, nil
	}
	for _, rec := range r.byID {
		if rec.PetID == petID && rec.ClinicID == clinicID {
			return true, nil
		}
	}
	return false, nil
}
