package records

import (
	"time"

	"pet-medical-access/internal/domain/records/details"
)

// Kind define los tipos de entrada clínica soportados.
type Kind string

const (
	KindMedicalRecord Kind = "medical_record"
	KindPrescription  Kind = "prescription"
	KindLabTest       Kind = "lab_test"
	KindVaccination   Kind = "vaccination"
	KindAllergy       Kind = "allergy"
)

// Details agrupa los detalles opcionales según el Kind.
type Details struct {
	Prescription *details.Prescription `json:"prescription,omitempty"`
	Vaccination  *details.Vaccination  `json:"vaccination,omitempty"`
	LabTest      *details.LabTest      `json:"lab_test,omitempty"`
}

// Record es una entrada clínica de la mascota. CreatedByRole se persiste al
// crear y después gobierna quién puede corregir la entrada: las correcciones
// quedan atadas al contexto del creador original, no al acceso vigente.
type Record struct {
	ID    string
	PetID string

	Kind Kind

	Title string
	Notes string

	Details Details

	OccurredAt time.Time
	RecordedAt time.Time

	CreatedByUserID string
	CreatedByRole   string // pet_owner | family_member | doctor

	// ClinicID se setea cuando el autor actuó como doctor; sostiene la regla
	// histórica del dueño de clínica (HasAnyAtClinic).
	ClinicID string

	CreatedAt time.Time
	UpdatedAt time.Time
}
