package postgres

import (
	"context"
	"database/sql"
	"strings"

	"pet-medical-access/internal/domain/memberships"
)

type MembershipsRepo struct {
	db *sql.DB
}

func NewMembershipsRepo(db *sql.DB) *MembershipsRepo {
	return &MembershipsRepo{db: db}
}

func (r *MembershipsRepo) CreateMembership(ctx context.Context, m memberships.FamilyMembership) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO family_memberships (
			id, family_owner_id, member_user_id,
			access_level, status,
			created_at, updated_at, removed_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`,
		m.ID,
		m.FamilyOwnerID,
		m.MemberUserID,
		string(m.AccessLevel),
		string(m.Status),
		m.CreatedAt,
		m.UpdatedAt,
		toNullTime(m.RemovedAt),
	)
	return err
}

func (r *MembershipsRepo) UpdateMembership(ctx context.Context, m memberships.FamilyMembership) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE family_memberships
		SET
			access_level = $2,
			status = $3,
			updated_at = $4,
			removed_at = $5
		WHERE id = $1
	`,
		m.ID,
		string(m.AccessLevel),
		string(m.Status),
		m.UpdatedAt,
		toNullTime(m.RemovedAt),
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

func (r *MembershipsRepo) GetMembershipByID(ctx context.Context, id string) (memberships.FamilyMembership, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return memberships.FamilyMembership{}, ErrNotFound
	}

	row := r.db.QueryRowContext(ctx, `
		SELECT
			id, family_owner_id, member_user_id,
			access_level, status,
			created_at, updated_at, removed_at
		FROM family_memberships
		WHERE id = $1
	`, id)

	m, err := scanMembership(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return memberships.FamilyMembership{}, ErrNotFound
		}
		return memberships.FamilyMembership{}, err
	}
	return m, nil
}

func (r *MembershipsRepo) ListMembershipsByOwner(ctx context.Context, familyOwnerID string) ([]memberships.FamilyMembership, error) {
	familyOwnerID = strings.TrimSpace(familyOwnerID)
	if familyOwnerID == "" {
		return nil, nil
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT
			id, family_owner_id, member_user_id,
			access_level, status,
			created_at, updated_at, removed_at
		FROM family_memberships
		WHERE family_owner_id = $1
		ORDER BY created_at ASC
	`, familyOwnerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]memberships.FamilyMembership, 0)
	for rows.Next() {
		m, err := scanMembership(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (r *MembershipsRepo) ActiveFamilyMembership(ctx context.Context, memberUserID string) (memberships.FamilyMembership, error) {
	memberUserID = strings.TrimSpace(memberUserID)
	if memberUserID == "" {
		return memberships.FamilyMembership{}, ErrNotFound
	}

	row := r.db.QueryRowContext(ctx, `
		SELECT
			id, family_owner_id, member_user_id,
			access_level, status,
			created_at, updated_at, removed_at
		FROM family_memberships
		WHERE member_user_id = $1
		  AND status = 'active'
		ORDER BY updated_at DESC
		LIMIT 1
	`, memberUserID)

	m, err := scanMembership(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return memberships.FamilyMembership{}, ErrNotFound
		}
		return memberships.FamilyMembership{}, err
	}
	return m, nil
}

func (r *MembershipsRepo) CreateAssociation(ctx context.Context, a memberships.DoctorClinicAssociation) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO doctor_clinic_associations (
			id, doctor_user_id, clinic_id,
			employment_type, is_active,
			created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7)
	`,
		a.ID,
		a.DoctorUserID,
		a.ClinicID,
		string(a.EmploymentType),
		a.IsActive,
		a.CreatedAt,
		a.UpdatedAt,
	)
	return err
}

func (r *MembershipsRepo) UpdateAssociation(ctx context.Context, a memberships.DoctorClinicAssociation) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE doctor_clinic_associations
		SET
			employment_type = $2,
			is_active = $3,
			updated_at = $4
		WHERE id = $1
	`,
		a.ID,
		string(a.EmploymentType),
		a.IsActive,
		a.UpdatedAt,
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

func (r *MembershipsRepo) GetAssociationByID(ctx context.Context, id string) (memberships.DoctorClinicAssociation, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return memberships.DoctorClinicAssociation{}, ErrNotFound
	}

	row := r.db.QueryRowContext(ctx, `
		SELECT
			id, doctor_user_id, clinic_id,
			employment_type, is_active,
			created_at, updated_at
		FROM doctor_clinic_associations
		WHERE id = $1
	`, id)

	a, err := scanAssociation(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return memberships.DoctorClinicAssociation{}, ErrNotFound
		}
		return memberships.DoctorClinicAssociation{}, err
	}
	return a, nil
}

func (r *MembershipsRepo) ActiveDoctorAssociations(ctx context.Context, doctorUserID string) ([]memberships.DoctorClinicAssociation, error) {
	doctorUserID = strings.TrimSpace(doctorUserID)
	if doctorUserID == "" {
		return nil, nil
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT
			id, doctor_user_id, clinic_id,
			employment_type, is_active,
			created_at, updated_at
		FROM doctor_clinic_associations
		WHERE doctor_user_id = $1
		  AND is_active = TRUE
		ORDER BY created_at ASC
	`, doctorUserID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]memberships.DoctorClinicAssociation, 0)
	for rows.Next() {
		a, err := scanAssociation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func scanMembership(row rowScanner) (memberships.FamilyMembership, error) {
	var m memberships.FamilyMembership
	var level, status string
	var removedAt sql.NullTime

	if err := row.Scan(
		&m.ID,
		&m.FamilyOwnerID,
		&m.MemberUserID,
		&level,
		&status,
		&m.CreatedAt,
		&m.UpdatedAt,
		&removedAt,
	); err != nil {
		return memberships.FamilyMembership{}, err
	}

	m.AccessLevel = memberships.AccessLevel(level)
	m.Status = memberships.MembershipStatus(status)
	m.RemovedAt = fromNullTime(removedAt)
	return m, nil
}

func scanAssociation(row rowScanner) (memberships.DoctorClinicAssociation, error) {
	var a memberships.DoctorClinicAssociation
	var emp string

	if err := row.Scan(
		&a.ID,
		&a.DoctorUserID,
		&a.ClinicID,
		&emp,
		&a.IsActive,
		&a.CreatedAt,
		&a.UpdatedAt,
	); err != nil {
		return memberships.DoctorClinicAssociation{}, err
	}

	a.EmploymentType = memberships.EmploymentType(emp)
	return a, nil
}
