package permissions

import (
	"context"
	"errors"
	"testing"
	"time"

	"pet-medical-access/internal/domain/grants"
	"pet-medical-access/internal/domain/memberships"
	"pet-medical-access/internal/domain/pets"

	"github.com/stretchr/testify/assert"
)

// -------------------------
// Fakes
// -------------------------

var errLookupDown = errors.New("lookup: unavailable")

type fakeMembers struct {
	membership map[string]memberships.FamilyMembership        // por member user id
	assocs     map[string][]memberships.DoctorClinicAssociation // por doctor user id
	fail       bool
}

func (f *fakeMembers) ActiveFamilyMembership(ctx context.Context, memberUserID string) (memberships.FamilyMembership, error) {
	if f.fail {
		return memberships.FamilyMembership{}, errLookupDown
	}
	m, ok := f.membership[memberUserID]
	if !ok {
		return memberships.FamilyMembership{}, errors.New("not found")
	}
	return m, nil
}

func (f *fakeMembers) ActiveDoctorAssociations(ctx context.Context, doctorUserID string) ([]memberships.DoctorClinicAssociation, error) {
	if f.fail {
		return nil, errLookupDown
	}
	return f.assocs[doctorUserID], nil
}

type fakeGrants struct {
	byPetClinic map[string][]grants.Grant // clave petID + "|" + clinicID
	fail        bool
}

func (f *fakeGrants) ListActiveByPetClinic(ctx context.Context, petID, clinicID string) ([]grants.Grant, error) {
	if f.fail {
		return nil, errLookupDown
	}
	return f.byPetClinic[petID+"|"+clinicID], nil
}

type fakeRecords struct {
	hasHistory map[string]bool // clave petID + "|" + clinicID
	fail       bool
}

func (f *fakeRecords) HasAnyAtClinic(ctx context.Context, petID, clinicID string) (bool, error) {
	if f.fail {
		return false, errLookupDown
	}
	return f.hasHistory[petID+"|"+clinicID], nil
}

// -------------------------
// Fixture
// -------------------------

var testNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

type fixture struct {
	members *fakeMembers
	grants  *fakeGrants
	records *fakeRecords
	engine  *Engine
	pet     pets.Pet
}

func newFixture() *fixture {
	f := &fixture{
		members: &fakeMembers{
			membership: map[string]memberships.FamilyMembership{},
			assocs:     map[string][]memberships.DoctorClinicAssociation{},
		},
		grants:  &fakeGrants{byPetClinic: map[string][]grants.Grant{}},
		records: &fakeRecords{hasHistory: map[string]bool{}},
		pet:     pets.Pet{ID: "pet-1", OwnerUserID: "owner-1"},
	}
	f.engine = NewEngine(f.members, f.grants, f.records)
	f.engine.now = func() time.Time { return testNow }
	return f
}

func (f *fixture) addMembership(memberID string, level memberships.AccessLevel, status memberships.MembershipStatus, familyOwnerID string) {
	f.members.membership[memberID] = memberships.FamilyMembership{
		ID:            "m-" + memberID,
		FamilyOwnerID: familyOwnerID,
		MemberUserID:  memberID,
		AccessLevel:   level,
		Status:        status,
	}
}

func (f *fixture) addAssociation(doctorID, clinicID string, active bool) {
	f.members.assocs[doctorID] = append(f.members.assocs[doctorID], memberships.DoctorClinicAssociation{
		ID:           "a-" + doctorID + "-" + clinicID,
		DoctorUserID: doctorID,
		ClinicID:     clinicID,
		IsActive:     active,
	})
}

func (f *fixture) addGrant(petID, clinicID, doctorID string, status grants.Status, expiresAt time.Time) {
	key := petID + "|" + clinicID
	f.grants.byPetClinic[key] = append(f.grants.byPetClinic[key], grants.Grant{
		ID:        "g-" + clinicID,
		PetID:     petID,
		ClinicID:  clinicID,
		DoctorID:  doctorID,
		Status:    status,
		ExpiresAt: expiresAt,
	})
}

func actor(id string, roles ...Role) Actor {
	return Actor{ID: id, Roles: roles}
}

// -------------------------
// CanRead
// -------------------------

func TestEngine_CanRead_Owner(t *testing.T) {
	f := newFixture()

	// El dueño lee siempre, sin importar roles declarados.
	assert.True(t, f.engine.CanRead(context.Background(), actor("owner-1"), f.pet))
	assert.False(t, f.engine.CanRead(context.Background(), actor("stranger"), f.pet))
}

func TestEngine_CanRead_FamilyMember(t *testing.T) {
	f := newFixture()
	f.addMembership("fam-1", memberships.AccessLevelReadOnly, memberships.MembershipActive, "owner-1")

	assert.True(t, f.engine.CanRead(context.Background(), actor("fam-1", RoleFamilyMember), f.pet))

	// Sin el rol declarado no entra por el camino de familia.
	assert.False(t, f.engine.CanRead(context.Background(), actor("fam-1"), f.pet))
}

func TestEngine_CanRead_FamilyMember_WrongFamily(t *testing.T) {
	f := newFixture()
	// Membresía activa, pero en la familia de otro dueño.
	f.addMembership("fam-1", memberships.AccessLevelFull, memberships.MembershipActive, "other-owner")

	assert.False(t, f.engine.CanRead(context.Background(), actor("fam-1", RoleFamilyMember), f.pet))
}

func TestEngine_CanRead_FamilyMember_NotActive(t *testing.T) {
	f := newFixture()
	f.addMembership("fam-1", memberships.AccessLevelFull, memberships.MembershipInvited, "owner-1")
	assert.False(t, f.engine.CanRead(context.Background(), actor("fam-1", RoleFamilyMember), f.pet))

	f.addMembership("fam-2", memberships.AccessLevelFull, memberships.MembershipRemoved, "owner-1")
	assert.False(t, f.engine.CanRead(context.Background(), actor("fam-2", RoleFamilyMember), f.pet))
}

func TestEngine_CanRead_DoctorWithLiveGrant(t *testing.T) {
	f := newFixture()
	f.addAssociation("doc-1", "clinic-1", true)
	f.addGrant("pet-1", "clinic-1", "", grants.StatusActive, testNow.Add(time.Hour))

	assert.True(t, f.engine.CanRead(context.Background(), actor("doc-1", RoleDoctor), f.pet))
}

func TestEngine_CanRead_Doctor_NoAssociation(t *testing.T) {
	f := newFixture()
	// Grant vigente pero el doctor no tiene afiliación activa con la clínica.
	f.addGrant("pet-1", "clinic-1", "", grants.StatusActive, testNow.Add(time.Hour))

	assert.False(t, f.engine.CanRead(context.Background(), actor("doc-1", RoleDoctor), f.pet))

	// Afiliación existente pero inactiva tampoco sirve.
	f.addAssociation("doc-2", "clinic-1", false)
	assert.False(t, f.engine.CanRead(context.Background(), actor("doc-2", RoleDoctor), f.pet))
}

func TestEngine_CanRead_Doctor_GrantExpiredByClock(t *testing.T) {
	f := newFixture()
	f.addAssociation("doc-1", "clinic-1", true)
	// Status guardado sigue en active; manda el reloj.
	f.addGrant("pet-1", "clinic-1", "", grants.StatusActive, testNow.Add(-time.Minute))

	assert.False(t, f.engine.CanRead(context.Background(), actor("doc-1", RoleDoctor), f.pet))
}

func TestEngine_CanRead_Doctor_GrantRevoked(t *testing.T) {
	f := newFixture()
	f.addAssociation("doc-1", "clinic-1", true)
	f.addGrant("pet-1", "clinic-1", "", grants.StatusRevoked, testNow.Add(time.Hour))

	assert.False(t, f.engine.CanRead(context.Background(), actor("doc-1", RoleDoctor), f.pet))
}

func TestEngine_CanRead_DoctorSpecificGrant_IsolatesOtherDoctors(t *testing.T) {
	f := newFixture()
	f.addAssociation("doc-1", "clinic-1", true)
	f.addAssociation("doc-2", "clinic-1", true)
	// Grant atado a doc-1 puntualmente.
	f.addGrant("pet-1", "clinic-1", "doc-1", grants.StatusActive, testNow.Add(time.Hour))

	assert.True(t, f.engine.CanRead(context.Background(), actor("doc-1", RoleDoctor), f.pet))
	assert.False(t, f.engine.CanRead(context.Background(), actor("doc-2", RoleDoctor), f.pet))
}

func TestEngine_CanRead_ClinicOwnerWithHistory(t *testing.T) {
	f := newFixture()
	f.records.hasHistory["pet-1|clinic-1"] = true

	// El id del actor dueño de clínica es el clinic id.
	assert.True(t, f.engine.CanRead(context.Background(), actor("clinic-1", RoleClinicOwner), f.pet))
	assert.False(t, f.engine.CanRead(context.Background(), actor("clinic-2", RoleClinicOwner), f.pet))
}

func TestEngine_CanRead_FailClosedOnLookupErrors(t *testing.T) {
	f := newFixture()
	f.addMembership("fam-1", memberships.AccessLevelFull, memberships.MembershipActive, "owner-1")
	f.addAssociation("doc-1", "clinic-1", true)
	f.addGrant("pet-1", "clinic-1", "", grants.StatusActive, testNow.Add(time.Hour))
	f.records.hasHistory["pet-1|clinic-1"] = true

	f.members.fail = true
	f.grants.fail = true
	f.records.fail = true

	// Con los lookups caídos todo se niega, nunca hay error hacia afuera.
	assert.False(t, f.engine.CanRead(context.Background(), actor("fam-1", RoleFamilyMember), f.pet))
	assert.False(t, f.engine.CanRead(context.Background(), actor("doc-1", RoleDoctor), f.pet))
	assert.False(t, f.engine.CanRead(context.Background(), actor("clinic-1", RoleClinicOwner), f.pet))

	// El dueño no depende de lookups.
	assert.True(t, f.engine.CanRead(context.Background(), actor("owner-1"), f.pet))
}

// -------------------------
// CanCreateRecords y variantes
// -------------------------

func TestEngine_CanCreateRecords_OwnerAndRoles(t *testing.T) {
	f := newFixture()

	ok, role := f.engine.CanCreateRecords(context.Background(), actor("owner-1"), f.pet)
	assert.True(t, ok)
	assert.Equal(t, string(RolePetOwner), role)

	ok, role = f.engine.CanCreateRecords(context.Background(), actor("stranger"), f.pet)
	assert.False(t, ok)
	assert.Empty(t, role)
}

func TestEngine_CanCreateRecords_FamilyAccessLevels(t *testing.T) {
	f := newFixture()
	f.addMembership("fam-full", memberships.AccessLevelFull, memberships.MembershipActive, "owner-1")
	f.addMembership("fam-ro", memberships.AccessLevelReadOnly, memberships.MembershipActive, "owner-1")

	ok, role := f.engine.CanCreateRecords(context.Background(), actor("fam-full", RoleFamilyMember), f.pet)
	assert.True(t, ok)
	assert.Equal(t, string(RoleFamilyMember), role)

	// READONLY lee pero jamás crea.
	ok, _ = f.engine.CanCreateRecords(context.Background(), actor("fam-ro", RoleFamilyMember), f.pet)
	assert.False(t, ok)
	assert.True(t, f.engine.CanRead(context.Background(), actor("fam-ro", RoleFamilyMember), f.pet))
}

func TestEngine_CanCreateRecords_DoctorWithGrant(t *testing.T) {
	f := newFixture()
	f.addAssociation("doc-1", "clinic-1", true)
	f.addGrant("pet-1", "clinic-1", "", grants.StatusActive, testNow.Add(time.Hour))

	ok, role := f.engine.CanCreateRecords(context.Background(), actor("doc-1", RoleDoctor), f.pet)
	assert.True(t, ok)
	assert.Equal(t, string(RoleDoctor), role)
}

func TestEngine_DoctorOnlyPredicates(t *testing.T) {
	f := newFixture()
	f.addAssociation("doc-1", "clinic-1", true)
	f.addGrant("pet-1", "clinic-1", "", grants.StatusActive, testNow.Add(time.Hour))

	doc := actor("doc-1", RoleDoctor)
	owner := actor("owner-1", RolePetOwner)

	assert.True(t, f.engine.CanCreatePrescriptions(context.Background(), doc, f.pet))
	assert.True(t, f.engine.CanOrderLabTests(context.Background(), doc, f.pet))
	assert.True(t, f.engine.CanCreateVaccinations(context.Background(), doc, f.pet))

	// Ni el dueño prescribe.
	assert.False(t, f.engine.CanCreatePrescriptions(context.Background(), owner, f.pet))
	assert.False(t, f.engine.CanOrderLabTests(context.Background(), owner, f.pet))
	assert.False(t, f.engine.CanCreateVaccinations(context.Background(), owner, f.pet))
}

func TestEngine_ClinicOwner_NeverCreates(t *testing.T) {
	f := newFixture()
	f.records.hasHistory["pet-1|clinic-1"] = true

	co := actor("clinic-1", RoleClinicOwner)
	ok, _ := f.engine.CanCreateRecords(context.Background(), co, f.pet)
	assert.False(t, ok)
	assert.False(t, f.engine.CanCreatePrescriptions(context.Background(), co, f.pet))
}

// -------------------------
// CanUpdateRecord
// -------------------------

func TestEngine_CanUpdateRecord_OwnerContext(t *testing.T) {
	f := newFixture()

	// Entradas de dueño o familia: corrige solo el dueño de la mascota.
	assert.True(t, f.engine.CanUpdateRecord(context.Background(), actor("owner-1"), f.pet, string(RolePetOwner), "owner-1"))
	assert.True(t, f.engine.CanUpdateRecord(context.Background(), actor("owner-1"), f.pet, string(RoleFamilyMember), "fam-1"))

	f.addMembership("fam-1", memberships.AccessLevelFull, memberships.MembershipActive, "owner-1")
	assert.False(t, f.engine.CanUpdateRecord(context.Background(), actor("fam-1", RoleFamilyMember), f.pet, string(RoleFamilyMember), "fam-1"))
}

func TestEngine_CanUpdateRecord_DoctorContext(t *testing.T) {
	f := newFixture()
	f.addAssociation("doc-1", "clinic-1", true)
	f.addAssociation("doc-2", "clinic-1", true)
	f.addGrant("pet-1", "clinic-1", "", grants.StatusActive, testNow.Add(time.Hour))

	// El mismo doctor con grant vigente corrige su entrada.
	assert.True(t, f.engine.CanUpdateRecord(context.Background(), actor("doc-1", RoleDoctor), f.pet, string(RoleDoctor), "doc-1"))

	// Otro doctor con grant vigente NO corrige entradas ajenas.
	assert.False(t, f.engine.CanUpdateRecord(context.Background(), actor("doc-2", RoleDoctor), f.pet, string(RoleDoctor), "doc-1"))

	// Ni el dueño corrige entradas de doctor.
	assert.False(t, f.engine.CanUpdateRecord(context.Background(), actor("owner-1"), f.pet, string(RoleDoctor), "doc-1"))
}

func TestEngine_CanUpdateRecord_DoctorNeedsLiveGrant(t *testing.T) {
	f := newFixture()
	f.addAssociation("doc-1", "clinic-1", true)
	f.addGrant("pet-1", "clinic-1", "", grants.StatusActive, testNow.Add(-time.Minute))

	// El grant venció: el doctor pierde también el derecho de corrección.
	assert.False(t, f.engine.CanUpdateRecord(context.Background(), actor("doc-1", RoleDoctor), f.pet, string(RoleDoctor), "doc-1"))
}

// -------------------------
// AttributedClinic
// -------------------------

func TestEngine_AttributedClinic(t *testing.T) {
	f := newFixture()
	f.addAssociation("doc-1", "clinic-1", true)
	f.addGrant("pet-1", "clinic-1", "", grants.StatusActive, testNow.Add(time.Hour))

	assert.Equal(t, "clinic-1", f.engine.AttributedClinic(context.Background(), actor("doc-1", RoleDoctor), f.pet))
	assert.Empty(t, f.engine.AttributedClinic(context.Background(), actor("doc-2", RoleDoctor), f.pet))
	assert.Empty(t, f.engine.AttributedClinic(context.Background(), actor("owner-1"), f.pet))
}

// -------------------------
// ParseRoles
// -------------------------

func TestParseRoles(t *testing.T) {
	roles := ParseRoles([]string{" Doctor ", "pet_owner", "superuser", "doctor", ""})
	assert.Equal(t, []Role{RoleDoctor, RolePetOwner}, roles)
}
