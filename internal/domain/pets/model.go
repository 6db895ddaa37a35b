package pets

import "time"

// Species define las especies soportadas.
type Species string

const (
	SpeciesDog Species = "dog"
	SpeciesCat Species = "cat"
)

// Sex define el sexo de la mascota.
type Sex string

const (
	SexMale    Sex = "male"
	SexFemale  Sex = "female"
	SexUnknown Sex = "unknown"
)

// Pet representa el perfil básico de una mascota registrada en el sistema.
// OwnerUserID es inmutable durante la vida del registro: la transferencia de
// propiedad queda fuera de alcance, y los accesos clínicos apuntan a la mascota.
type Pet struct {
	ID          string
	OwnerUserID string

	Name    string
	Species string // dog, cat
	Breed   string
	Sex     string // male, female, unknown

	BirthDate *time.Time
	Microchip string

	Notes string

	CreatedAt time.Time
	UpdatedAt time.Time
}
