package memory

import (
	"context"
	"errors"
	"sync"
	"time"

	"pet-medical-access/internal/domain/otp"
)

type otpRepo struct {
	mu   sync.Mutex
	byID map[string]otp.OTP
}

func NewOTPsRepo() otp.Repository {
	return &otpRepo{
		byID: make(map[string]otp.OTP),
	}
}

func (r *otpRepo) Create(ctx context.Context, o otp.OTP) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if o.ID == "" {
		return errors.New("otp id required")
	}
	if _, exists := r.byID[o.ID]; exists {
		return errors.New("otp already exists")
	}
	r.byID[o.ID] = o
	return nil
}

// Consume hace el compare-and-swap bajo el mismo lock: dos canjes
// concurrentes del mismo código ven exactamente un ganador.
func (r *otpRepo) Consume(ctx context.Context, code string, purpose otp.Purpose, now time.Time) (otp.OTP, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, o := range r.byID {
		if o.Code != code || o.Purpose != purpose {
			continue
		}
		if o.IsUsed || !o.ExpiresAt.After(now) {
			continue
		}

		o.IsUsed = true
		t := now
		o.UsedAt = &t
		r.byID[id] = o
		return o, nil
	}

	return otp.OTP{}, ErrNotFound
}
