// Package session implementa el resolver de sesión/rol: decide, una vez
// por arranque, quién es el usuario, si está registrado y qué pantalla
// corresponde mostrar, y es el dueño del estado de rol/perfil/sesión
// para el resto de la app.
package session

import "strings"

// Role es el rol resuelto del usuario. Gatea qué dashboard se muestra.
type Role string

const (
	RoleUser   Role = "user"
	RoleSeller Role = "seller"
	RoleAdmin  Role = "admin"
)

// ParseRole normaliza un rol textual. Valores desconocidos o vacíos
// caen a RoleUser: el rol siempre tiene un valor por defecto.
func ParseRole(s string) Role {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "seller", "vendedor":
		return RoleSeller
	case "admin":
		return RoleAdmin
	default:
		return RoleUser
	}
}

func (r Role) String() string { return string(r) }
