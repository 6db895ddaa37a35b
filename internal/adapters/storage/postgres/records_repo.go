package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"pet-medical-access/internal/domain/records"
)

type RecordsRepo struct {
	db *sql.DB
}

func NewRecordsRepo(db *sql.DB) *RecordsRepo {
	return &RecordsRepo{db: db}
}

const recordColumns = `
	id, pet_id, kind,
	title, notes, details,
	occurred_at, recorded_at,
	created_by_user_id, created_by_role, clinic_id,
	created_at, updated_at`

func (r *RecordsRepo) Create(ctx context.Context, rec records.Record) error {
	det, err := json.Marshal(rec.Details)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO records (
			id, pet_id, kind,
			title, notes, details,
			occurred_at, recorded_at,
			created_by_user_id, created_by_role, clinic_id,
			created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
	`,
		rec.ID,
		rec.PetID,
		string(rec.Kind),
		rec.Title,
		rec.Notes,
		det,
		rec.OccurredAt,
		rec.RecordedAt,
		rec.CreatedByUserID,
		rec.CreatedByRole,
		rec.ClinicID,
		rec.CreatedAt,
		rec.UpdatedAt,
	)
	return err
}

func (r *RecordsRepo) Update(ctx context.Context, rec records.Record) error {
	det, err := json.Marshal(rec.Details)
	if err != nil {
		return err
	}

	res, err := r.db.ExecContext(ctx, `
		UPDATE records
		SET
			title = $2,
			notes = $3,
			details = $4,
			updated_at = $5
		WHERE id = $1
	`,
		rec.ID,
		rec.Title,
		rec.Notes,
		det,
		rec.UpdatedAt,
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

func (r *RecordsRepo) GetByID(ctx context.Context, id string) (records.Record, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return records.Record{}, ErrNotFound
	}

	row := r.db.QueryRowContext(ctx, `
		SELECT`+recordColumns+`
		FROM records
		WHERE id = $1
	`, id)

	rec, err := scanRecord(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return records.Record{}, ErrNotFound
		}
		return records.Record{}, err
	}
	return rec, nil
}

func (r *RecordsRepo) ListByPet(ctx context.Context, petID string, filter records.ListFilter) ([]records.Record, error) {
	petID = strings.TrimSpace(petID)
	if petID == "" {
		return nil, nil
	}

	var sb strings.Builder
	sb.WriteString(`SELECT` + recordColumns + ` FROM records WHERE pet_id = $1`)
	args := []any{petID}

	if len(filter.Kinds) > 0 {
		kinds := make([]string, 0, len(filter.Kinds))
		for _, k := range filter.Kinds {
			kinds = append(kinds, string(k))
		}
		args = append(args, kinds)
		fmt.Fprintf(&sb, " AND kind = ANY($%d)", len(args))
	}
	if filter.From != nil {
		args = append(args, *filter.From)
		fmt.Fprintf(&sb, " AND occurred_at >= $%d", len(args))
	}
	if filter.To != nil {
		args = append(args, *filter.To)
		fmt.Fprintf(&sb, " AND occurred_at <= $%d", len(args))
	}
	if q := strings.TrimSpace(filter.Query); q != "" {
		args = append(args, "%"+q+"%")
		fmt.Fprintf(&sb, " AND (title ILIKE $%d OR notes ILIKE $%d)", len(args), len(args))
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	args = append(args, limit)
	fmt.Fprintf(&sb, " ORDER BY occurred_at DESC LIMIT $%d", len(args))

	rows, err := r.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]records.Record, 0)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (r *RecordsRepo) HasAnyAtClinic(ctx context.Context, petID, clinicID string) (bool, error) {
	petID = strings.TrimSpace(petID)
	clinicID = strings.TrimSpace(clinicID)
	if petID == "" || clinicID == "" {
		return false, nil
	}

	var one int
	err := r.db.QueryRowContext(ctx, `
		SELECT 1
		FROM records
		WHERE pet_id = $1 AND clinic_id = $2
		LIMIT 1
	`, petID, clinicID).Scan(&one)
	if err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func scanRecord(row rowScanner) (records.Record, error) {
	var rec records.Record
	var kind string
	var det []byte

	if err := row.Scan(
		&rec.ID,
		&rec.PetID,
		&kind,
		&rec.Title,
		&rec.Notes,
		&det,
		&rec.OccurredAt,
		&rec.RecordedAt,
		&rec.CreatedByUserID,
		&rec.CreatedByRole,
		&rec.ClinicID,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	); err != nil {
		return records.Record{}, err
	}

	rec.Kind = records.Kind(kind)
	if len(det) > 0 {
		if err := json.Unmarshal(det, &rec.Details); err != nil {
			return records.Record{}, err
		}
	}
	return rec, nil
}
