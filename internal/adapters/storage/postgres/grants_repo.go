package postgres

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"pet-medical-access/internal/domain/grants"
)

type GrantsRepo struct {
	db *sql.DB
}

func NewGrantsRepo(db *sql.DB) *GrantsRepo {
	return &GrantsRepo{db: db}
}

const grantColumns = `
	id, pet_id, clinic_id, doctor_id, owner_user_id, otp_id,
	status, granted_at, expires_at, revoked_at, updated_at
`

func (r *GrantsRepo) Create(ctx context.Context, g grants.Grant) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO pet_clinic_access (
			id, pet_id, clinic_id, doctor_id, owner_user_id, otp_id,
			status, granted_at, expires_at, revoked_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
	`,
		g.ID,
		g.PetID,
		g.ClinicID,
		g.DoctorID,
		g.OwnerUserID,
		g.OTPID,
		string(g.Status),
		g.GrantedAt,
		g.ExpiresAt,
		toNullTime(g.RevokedAt),
		g.UpdatedAt,
	)
	return err
}

func (r *GrantsRepo) Update(ctx context.Context, g grants.Grant) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE pet_clinic_access
		SET
			status = $2,
			revoked_at = $3,
			updated_at = $4
		WHERE id = $1
	`,
		g.ID,
		string(g.Status),
		toNullTime(g.RevokedAt),
		g.UpdatedAt,
	)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *GrantsRepo) GetByID(ctx context.Context, id string) (grants.Grant, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return grants.Grant{}, ErrNotFound
	}

	row := r.db.QueryRowContext(ctx, `
		SELECT `+grantColumns+`
		FROM pet_clinic_access
		WHERE id = $1
	`, id)

	g, err := scanGrant(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return grants.Grant{}, ErrNotFound
		}
		return grants.Grant{}, err
	}
	return g, nil
}

func (r *GrantsRepo) ListByPet(ctx context.Context, petID string) ([]grants.Grant, error) {
	petID = strings.TrimSpace(petID)
	if petID == "" {
		return nil, nil
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT `+grantColumns+`
		FROM pet_clinic_access
		WHERE pet_id = $1
		ORDER BY granted_at ASC
	`, petID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectGrants(rows)
}

func (r *GrantsRepo) ListActiveByPetClinic(ctx context.Context, petID, clinicID string) ([]grants.Grant, error) {
	petID = strings.TrimSpace(petID)
	clinicID = strings.TrimSpace(clinicID)
	if petID == "" || clinicID == "" {
		return nil, nil
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT `+grantColumns+`
		FROM pet_clinic_access
		WHERE pet_id = $1
		  AND clinic_id = $2
		  AND status = 'active'
		ORDER BY granted_at DESC
	`, petID, clinicID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectGrants(rows)
}

// MarkExpired toma un lote de grants vencidos con SKIP LOCKED para que dos
// sweeps concurrentes no se pisen, y los pasa a expired.
func (r *GrantsRepo) MarkExpired(ctx context.Context, now time.Time, limit int) (int, error) {
	res, err := r.db.ExecContext(ctx, `
		WITH batch AS (
			SELECT id FROM pet_clinic_access
			WHERE status = 'active' AND expires_at <= $1
			ORDER BY expires_at ASC
			LIMIT $2
			FOR UPDATE SKIP LOCKED
		)
		UPDATE pet_clinic_access g
		SET status = 'expired', updated_at = $1
		FROM batch
		WHERE g.id = batch.id
	`, now, limit)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanGrant(row rowScanner) (grants.Grant, error) {
	var g grants.Grant
	var status string
	var revokedAt sql.NullTime

	if err := row.Scan(
		&g.ID,
		&g.PetID,
		&g.ClinicID,
		&g.DoctorID,
		&g.OwnerUserID,
		&g.OTPID,
		&status,
		&g.GrantedAt,
		&g.ExpiresAt,
		&revokedAt,
		&g.UpdatedAt,
	); err != nil {
		return grants.Grant{}, err
	}

	g.Status = grants.Status(status)
	g.RevokedAt = fromNullTime(revokedAt)
	return g, nil
}

func collectGrants(rows *sql.Rows) ([]grants.Grant, error) {
	out := make([]grants.Grant, 0)
	for rows.Next() {
		g, err := scanGrant(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}
