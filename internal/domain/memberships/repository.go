package memberships

import "context"

type Repository interface {
	CreateMembership(ctx context.Context, m FamilyMembership) error
	UpdateMembership(ctx context.Context, m FamilyMembership) error
	GetMembershipByID(ctx context.Context, id string) (FamilyMembership, error)
	ListMembershipsByOwner(ctx context.Context, familyOwnerID string) ([]FamilyMembership, error)

	// ActiveFamilyMembership devuelve la membresía activa del actor, si existe.
	// Asumimos una familia por usuario (ver DESIGN.md).
	ActiveFamilyMembership(ctx context.Context, memberUserID string) (FamilyMembership, error)

	CreateAssociation(ctx context.Context, a DoctorClinicAssociation) error
	UpdateAssociation(ctx context.Context, a DoctorClinicAssociation) error
	GetAssociationByID(ctx context.Context, id string) (DoctorClinicAssociation, error)

	// ActiveDoctorAssociations filtra a is_active.
	ActiveDoctorAssociations(ctx context.Context, doctorUserID string) ([]DoctorClinicAssociation, error)
}
