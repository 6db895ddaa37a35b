package details

import "time"

// Prescription modela el detalle de una receta asociada a un registro.
type Prescription struct {
	Name string `json:"name"`

	Dosage   string `json:"dosage"`    // "2"
	DoseUnit string `json:"dose_unit"` // "ml", "mg", etc.

	Frequency string `json:"frequency"` // texto por ahora: "cada 12h"

	StartDate time.Time  `json:"start_date"`
	EndDate   *time.Time `json:"end_date,omitempty"`
}
