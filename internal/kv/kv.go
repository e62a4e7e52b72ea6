// Package kv provee el storage clave-valor persistente del cliente.
//
// Es el análogo del localStorage del WebView: guarda tokens de sesión,
// el perfil serializado, el rol y el log de notificaciones. Soporta:
//   - Memory (in-process, para tests y desarrollo)
//   - File (documento JSON en disco, instalaciones standalone)
//   - Redis (instalaciones server-side compartidas)
//
// Un valor que no parsea se trata como ausente, nunca como error fatal.
package kv

import (
	"context"
)

// Store define las operaciones del storage persistente.
type Store interface {
	// Get obtiene un valor. Retorna ErrNotFound si no existe.
	Get(ctx context.Context, key string) (string, error)

	// Set guarda un valor (write-through, sin TTL).
	Set(ctx context.Context, key, value string) error

	// Delete elimina una key. No es error si no existe.
	Delete(ctx context.Context, key string) error

	// Keys lista las keys presentes.
	Keys(ctx context.Context) ([]string, error)

	// Close cierra el backend.
	Close() error
}

// Config configuración para crear un Store.
type Config struct {
	Driver   string // "memory" | "file" | "redis"
	Path     string // file: ruta del documento JSON
	Host     string // redis
	Port     int    // redis
	Password string // redis
	DB       int    // redis
	Prefix   string // redis: prefijo para todas las keys
}

// Errores del storage.
var ErrNotFound = errNotFound{}

type errNotFound struct{}

func (errNotFound) Error() string { return "kv: key not found" }

// IsNotFound verifica si el error es porque la key no existe.
func IsNotFound(err error) bool {
	_, ok := err.(errNotFound)
	return ok
}

// New crea un Store según la configuración.
func New(cfg Config) (Store, error) {
	switch cfg.Driver {
	case "redis":
		return NewRedis(cfg)
	case "file":
		return NewFile(cfg.Path)
	case "memory", "":
		return NewMemory(), nil
	default:
		return NewMemory(), nil
	}
}
