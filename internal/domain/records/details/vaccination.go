package details

import "time"

// Vaccination modela el detalle de una vacuna aplicada.
type Vaccination struct {
	Product string `json:"product"`
	Batch   string `json:"batch,omitempty"`

	NextDue *time.Time `json:"next_due,omitempty"`
}
