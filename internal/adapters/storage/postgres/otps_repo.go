package postgres

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"pet-medical-access/internal/domain/otp"
)

type OTPsRepo struct {
	db *sql.DB
}

func NewOTPsRepo(db *sql.DB) *OTPsRepo {
	return &OTPsRepo{db: db}
}

func (r *OTPsRepo) Create(ctx context.Context, o otp.OTP) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO otps (
			id, code, purpose, recipient_contact,
			expires_at, is_used,
			created_at, used_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`,
		o.ID,
		o.Code,
		string(o.Purpose),
		o.RecipientContact,
		o.ExpiresAt,
		o.IsUsed,
		o.CreatedAt,
		toNullTime(o.UsedAt),
	)
	return err
}

// Consume es un solo UPDATE condicional: el WHERE exige is_used = FALSE y
// expires_at > now, así que ante dos canjes concurrentes del mismo código
// solo uno muta la fila; el otro no matchea y recibe ErrNotFound.
func (r *OTPsRepo) Consume(ctx context.Context, code string, purpose otp.Purpose, now time.Time) (otp.OTP, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return otp.OTP{}, ErrNotFound
	}

	row := r.db.QueryRowContext(ctx, `
		UPDATE otps
		SET is_used = TRUE, used_at = $3
		WHERE id = (
			SELECT id FROM otps
			WHERE code = $1 AND purpose = $2
			  AND is_used = FALSE AND expires_at > $3
			ORDER BY created_at DESC
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING id, code, purpose, recipient_contact, expires_at, is_used, created_at, used_at
	`, code, string(purpose), now)

	var o otp.OTP
	var purposeStr string
	var usedAt sql.NullTime

	if err := row.Scan(
		&o.ID,
		&o.Code,
		&purposeStr,
		&o.RecipientContact,
		&o.ExpiresAt,
		&o.IsUsed,
		&o.CreatedAt,
		&usedAt,
	); err != nil {
		if err == sql.ErrNoRows {
			return otp.OTP{}, ErrNotFound
		}
		return otp.OTP{}, err
	}

	o.Purpose = otp.Purpose(purposeStr)
	o.UsedAt = fromNullTime(usedAt)
	return o, nil
}
