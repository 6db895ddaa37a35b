package auth

import "context"

// AuthVerifier verifica un token y devuelve claims o error.
// Este core nunca verifica credenciales por su cuenta.
type AuthVerifier interface {
	Verify(ctx context.Context, token string) (Claims, error)
}
