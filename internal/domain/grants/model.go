package grants

import "time"

type Status string

const (
	StatusActive  Status = "active"
	StatusExpired Status = "expired"
	StatusRevoked Status = "revoked"
)

// Grant (PetClinicAccess) autoriza a una clínica (o a un doctor puntual de
// esa clínica) a acceder a los registros de una mascota por tiempo acotado.
//
// Status es cache, no verdad: la expiración es por reloj, así que toda lectura
// debe re-evaluar ExpiresAt contra now (ver LiveAt). Revoked es terminal.
type Grant struct {
	ID string

	PetID    string
	ClinicID string
	DoctorID string // vacío = grant para toda la clínica

	OwnerUserID string // quién lo aprobó; debe ser el dueño al momento de crear
	OTPID       string // el código consumido que probó el consentimiento

	Status Status

	GrantedAt time.Time
	ExpiresAt time.Time
	RevokedAt *time.Time
	UpdatedAt time.Time
}

// LiveAt es el test autoritativo de vigencia: el status guardado solo es
// consultivo, la comparación contra el reloj manda.
func (g Grant) LiveAt(t time.Time) bool {
	return g.Status == StatusActive && g.ExpiresAt.After(t)
}

// CoversDoctor: un grant con doctor específico no autoriza a otro doctor de
// la misma clínica; el clinic-wide (DoctorID vacío) cubre a cualquiera.
func (g Grant) CoversDoctor(doctorUserID string) bool {
	return g.DoctorID == "" || g.DoctorID == doctorUserID
}
