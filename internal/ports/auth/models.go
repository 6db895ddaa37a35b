package auth

// Claims representa la información extraída del token por el verificador
// externo. Roles viene como strings crudos; el motor de permisos los normaliza.
type Claims struct {
	UserID string
	Email  string
	Roles  []string
}
