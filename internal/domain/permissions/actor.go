package permissions

import "strings"

// Role define los roles soportados por el motor de permisos.
// Un actor puede tener varios a la vez (dueño que además es doctor, etc).
type Role string

const (
	RolePetOwner     Role = "pet_owner"
	RoleFamilyMember Role = "family_member"
	RoleDoctor       Role = "doctor"
	RoleClinicOwner  Role = "clinic_owner"
)

// Actor es el principal ya autenticado que entrega la capa de borde.
// Este paquete nunca verifica credenciales; solo decide sobre roles + relaciones.
type Actor struct {
	ID    string
	Roles []Role
}

func (a Actor) HasRole(r Role) bool {
	for _, have := range a.Roles {
		if have == r {
			return true
		}
	}
	return false
}

// ParseRoles normaliza una lista de strings (p.ej. claims del token) a roles conocidos.
// Roles desconocidos se descartan en silencio: un rol que no entendemos no otorga nada.
func ParseRoles(in []string) []Role {
	known := map[Role]struct{}{
		RolePetOwner:     {},
		RoleFamilyMember: {},
		RoleDoctor:       {},
		RoleClinicOwner:  {},
	}

	seen := map[Role]struct{}{}
	out := make([]Role, 0, len(in))
	for _, raw := range in {
		r := Role(strings.ToLower(strings.TrimSpace(raw)))
		if r == "" {
			continue
		}
		if _, ok := known[r]; !ok {
			continue
		}
		if _, ok := seen[r]; ok {
			continue
		}
		seen[r] = struct{}{}
		out = append(out, r)
	}
	return out
}
