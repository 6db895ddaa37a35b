package otp

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrInvalidInput = errors.New("invalid input")

	// ErrInvalidOrExpired colapsa a propósito "código incorrecto", "ya usado" y
	// "expirado" en una sola señal, para no filtrar cuál de los tres fue.
	ErrInvalidOrExpired = errors.New("otp invalid or expired")
)

const (
	// CodeDigits: 6 dígitos es la convención; el dominio no exige más.
	CodeDigits = 6

	// TTL de cada código.
	TTL = 10 * time.Minute
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

// Issue genera y persiste un código nuevo. No lo entrega: el envío al dueño
// es responsabilidad del canal de delivery, fuera de este paquete.
func (s *Service) Issue(ctx context.Context, purpose Purpose, recipientContact string) (OTP, error) {
	recipientContact = strings.TrimSpace(recipientContact)
	if purpose == "" || recipientContact == "" {
		return OTP{}, ErrInvalidInput
	}

	code, err := generateCode(CodeDigits)
	if err != nil {
		return OTP{}, err
	}

	now := s.now()
	o := OTP{
		ID:               uuid.NewString(),
		Code:             code,
		Purpose:          purpose,
		RecipientContact: recipientContact,
		ExpiresAt:        now.Add(TTL),
		IsUsed:           false,
		CreatedAt:        now,
	}

	if err := s.repo.Create(ctx, o); err != nil {
		return OTP{}, err
	}
	return o, nil
}

// Redeem canjea un código. Cualquier causa de fallo (no existe, ya usado,
// expirado) se reporta como ErrInvalidOrExpired, sin distinguir.
func (s *Service) Redeem(ctx context.Context, code string, purpose Purpose) (OTP, error) {
	code = strings.TrimSpace(code)
	if code == "" || purpose == "" {
		return OTP{}, ErrInvalidOrExpired
	}

	o, err := s.repo.Consume(ctx, code, purpose, s.now())
	if err != nil {
		return OTP{}, ErrInvalidOrExpired
	}
	return o, nil
}

// generateCode produce n dígitos decimales con crypto/rand, con ceros a la izquierda.
func generateCode(n int) (string, error) {
	max := big.NewInt(1)
	for i := 0; i < n; i++ {
		max.Mul(max, big.NewInt(10))
	}
	v, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", n, v), nil
}
