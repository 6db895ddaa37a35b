package permissions

import (
	"context"
	"time"

	"pet-medical-access/internal/domain/grants"
	"pet-medical-access/internal/domain/memberships"
	"pet-medical-access/internal/domain/pets"
)

// Lookups de solo lectura que consume el motor. Se definen acá (y no se
// importan los services) para que el motor dependa solo de vistas.

type MembershipLookup interface {
	ActiveFamilyMembership(ctx context.Context, memberUserID string) (memberships.FamilyMembership, error)
	ActiveDoctorAssociations(ctx context.Context, doctorUserID string) ([]memberships.DoctorClinicAssociation, error)
}

type GrantLookup interface {
	ListActiveByPetClinic(ctx context.Context, petID, clinicID string) ([]grants.Grant, error)
}

// RecordProbe es el chequeo barato de existencia para la regla del dueño de
// clínica: "mi clínica ya produjo al menos un registro para esta mascota".
type RecordProbe interface {
	HasAnyAtClinic(ctx context.Context, petID, clinicID string) (bool, error)
}

// Engine evalúa cada predicado en fresco, sin cachear allow/deny entre
// llamadas. Nunca devuelve error: ante un lookup caído se niega (fail closed),
// porque una denegación es un resultado de consulta, no una falla.
type Engine struct {
	members MembershipLookup
	grants  GrantLookup
	records RecordProbe
	now     func() time.Time
}

func NewEngine(members MembershipLookup, grantLookup GrantLookup, records RecordProbe) *Engine {
	return &Engine{
		members: members,
		grants:  grantLookup,
		records: records,
		now:     time.Now,
	}
}

// CanRead decide lectura sobre registros médicos, recetas, labs, vacunas y
// alergias de la mascota. Orden de reglas:
//  1. dueño
//  2. familiar activo de la familia del dueño (cualquier nivel)
//  3. doctor con afiliación activa + grant vigente (la vigencia se re-evalúa
//     contra el reloj, el status guardado es consultivo)
//  4. dueño de clínica con historial previo en su clínica
func (e *Engine) CanRead(ctx context.Context, actor Actor, pet pets.Pet) bool {
	if actor.ID == "" || pet.ID == "" {
		return false
	}
	if actor.ID == pet.OwnerUserID {
		return true
	}

	if actor.HasRole(RoleFamilyMember) {
		if _, ok := e.activeMembership(ctx, actor.ID, pet.OwnerUserID); ok {
			return true
		}
	}

	if actor.HasRole(RoleDoctor) {
		if _, ok := e.doctorGrantClinic(ctx, actor.ID, pet.ID); ok {
			return true
		}
	}

	if actor.HasRole(RoleClinicOwner) {
		has, err := e.records.HasAnyAtClinic(ctx, pet.ID, actor.ID)
		if err == nil && has {
			return true
		}
	}

	return false
}

// CanCreateRecords decide creación de registros generales (médicos, alergias)
// y devuelve el rol con el que se atribuye el registro. Ese rol se persiste y
// después gobierna quién puede corregirlo (CanUpdateRecord).
func (e *Engine) CanCreateRecords(ctx context.Context, actor Actor, pet pets.Pet) (bool, string) {
	if actor.ID == "" || pet.ID == "" {
		return false, ""
	}
	if actor.ID == pet.OwnerUserID {
		return true, string(RolePetOwner)
	}

	if actor.HasRole(RoleFamilyMember) {
		if m, ok := e.activeMembership(ctx, actor.ID, pet.OwnerUserID); ok {
			// READONLY jamás pasa este check.
			if m.AccessLevel == memberships.AccessLevelFull {
				return true, string(RoleFamilyMember)
			}
		}
	}

	if actor.HasRole(RoleDoctor) {
		if _, ok := e.doctorGrantClinic(ctx, actor.ID, pet.ID); ok {
			return true, string(RoleDoctor)
		}
	}

	return false, ""
}

// CanUpdateRecord: la corrección queda atada al contexto del creador original.
//   - creado por dueño o familiar => solo el dueño de la mascota corrige
//   - creado por doctor => solo ese mismo doctor, y con un grant aún vigente;
//     otro doctor con grant vigente NO puede corregirlo.
func (e *Engine) CanUpdateRecord(ctx context.Context, actor Actor, pet pets.Pet, createdByRole, createdByUserID string) bool {
	if actor.ID == "" || pet.ID == "" {
		return false
	}

	switch createdByRole {
	case string(RolePetOwner), string(RoleFamilyMember):
		return actor.ID == pet.OwnerUserID
	case string(RoleDoctor):
		if actor.ID != createdByUserID || !actor.HasRole(RoleDoctor) {
			return false
		}
		_, ok := e.doctorGrantClinic(ctx, actor.ID, pet.ID)
		return ok
	default:
		return false
	}
}

// Variantes solo-doctor: sin camino de dueño ni de familia.

func (e *Engine) CanCreatePrescriptions(ctx context.Context, actor Actor, pet pets.Pet) bool {
	return e.doctorOnly(ctx, actor, pet)
}

func (e *Engine) CanOrderLabTests(ctx context.Context, actor Actor, pet pets.Pet) bool {
	return e.doctorOnly(ctx, actor, pet)
}

func (e *Engine) CanCreateVaccinations(ctx context.Context, actor Actor, pet pets.Pet) bool {
	return e.doctorOnly(ctx, actor, pet)
}

// AttributedClinic devuelve la clínica del grant vigente que autoriza al actor
// como doctor sobre esta mascota; se persiste junto al registro creado para
// sostener la regla histórica del dueño de clínica.
func (e *Engine) AttributedClinic(ctx context.Context, actor Actor, pet pets.Pet) string {
	if !actor.HasRole(RoleDoctor) {
		return ""
	}
	clinicID, ok := e.doctorGrantClinic(ctx, actor.ID, pet.ID)
	if !ok {
		return ""
	}
	return clinicID
}

func (e *Engine) doctorOnly(ctx context.Context, actor Actor, pet pets.Pet) bool {
	if actor.ID == "" || pet.ID == "" || !actor.HasRole(RoleDoctor) {
		return false
	}
	_, ok := e.doctorGrantClinic(ctx, actor.ID, pet.ID)
	return ok
}

func (e *Engine) activeMembership(ctx context.Context, memberUserID, familyOwnerID string) (memberships.FamilyMembership, bool) {
	m, err := e.members.ActiveFamilyMembership(ctx, memberUserID)
	if err != nil || !m.IsActive() {
		return memberships.FamilyMembership{}, false
	}
	// La membresía tiene que ser en la familia del dueño de ESTA mascota.
	if m.FamilyOwnerID != familyOwnerID {
		return memberships.FamilyMembership{}, false
	}
	return m, true
}

// doctorGrantClinic busca, entre las clínicas con afiliación activa del
// doctor, un grant efectivamente vigente que lo cubra para esta mascota.
// Un grant con doctor específico solo cubre a ese doctor.
func (e *Engine) doctorGrantClinic(ctx context.Context, doctorUserID, petID string) (string, bool) {
	assocs, err := e.members.ActiveDoctorAssociations(ctx, doctorUserID)
	if err != nil {
		return "", false
	}

	now := e.now()
	for _, a := range assocs {
		if !a.IsActive {
			continue
		}
		gs, err := e.grants.ListActiveByPetClinic(ctx, petID, a.ClinicID)
		if err != nil {
			continue
		}
		for _, g := range gs {
			if g.CoversDoctor(doctorUserID) && g.LiveAt(now) {
				return a.ClinicID, true
			}
		}
	}
	return "", false
}
