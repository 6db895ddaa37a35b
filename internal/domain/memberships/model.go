package memberships

import "time"

// AccessLevel gobierna qué puede hacer un familiar dentro de la familia.
type AccessLevel string

const (
	// AccessLevelFull permite crear registros equivalentes a los del dueño.
	AccessLevelFull AccessLevel = "full"
	// AccessLevelReadOnly permite únicamente ver.
	AccessLevelReadOnly AccessLevel = "readonly"
)

type MembershipStatus string

const (
	MembershipInvited MembershipStatus = "invited"
	MembershipActive  MembershipStatus = "active"
	MembershipRemoved MembershipStatus = "removed"
)

// FamilyMembership vincula a un actor con la "familia" (grupo de cuidado)
// de otro actor. Nunca se borra físicamente mientras haya registros que la
// referencien; remover es pasar a status removed.
type FamilyMembership struct {
	ID string

	FamilyOwnerID string // dueño de la familia (y de las mascotas)
	MemberUserID  string // el familiar invitado

	AccessLevel AccessLevel
	Status      MembershipStatus

	CreatedAt time.Time
	UpdatedAt time.Time
	RemovedAt *time.Time
}

func (m FamilyMembership) IsActive() bool {
	return m.Status == MembershipActive
}

type EmploymentType string

const (
	EmploymentStaff      EmploymentType = "staff"
	EmploymentContractor EmploymentType = "contractor"
	EmploymentLocum      EmploymentType = "locum"
)

// DoctorClinicAssociation vincula a un doctor con una clínica. Solo establece
// afiliación vigente; por sí sola no da acceso a ninguna mascota.
type DoctorClinicAssociation struct {
	ID string

	DoctorUserID string
	ClinicID     string

	EmploymentType EmploymentType
	IsActive       bool

	CreatedAt time.Time
	UpdatedAt time.Time
}
