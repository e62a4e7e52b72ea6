package logger

import (
	"time"

	"go.uber.org/zap"
)

// Campos estándar del dominio. Usar siempre estos helpers en lugar de
// zap.String suelto para mantener los nombres consistentes entre paquetes.

// UserID crea un campo para el id de usuario (Telegram).
func UserID(v int64) zap.Field {
	return zap.Int64("user_id", v)
}

// ExternalID crea un campo para el id externo (Telegram id como string).
func ExternalID(v string) zap.Field {
	return zap.String("external_id", v)
}

// Role crea un campo para el rol resuelto.
func Role(v string) zap.Field {
	return zap.String("role", v)
}

// Kind crea un campo para el tipo de notificación.
func Kind(v string) zap.Field {
	return zap.String("kind", v)
}

// NotifID crea un campo para el id de una notificación.
func NotifID(v string) zap.Field {
	return zap.String("notif_id", v)
}

// OrderID crea un campo para el id de un pedido.
func OrderID(v string) zap.Field {
	return zap.String("order_id", v)
}

// Key crea un campo para una key del kv store.
func Key(v string) zap.Field {
	return zap.String("key", v)
}

// Op crea un campo para la operación en curso.
func Op(v string) zap.Field {
	return zap.String("op", v)
}

// Layer crea un campo para la capa (resolver, store, push, http).
func Layer(v string) zap.Field {
	return zap.String("layer", v)
}

// Method crea un campo para el método HTTP.
func Method(v string) zap.Field {
	return zap.String("method", v)
}

// Path crea un campo para el path del request.
func Path(v string) zap.Field {
	return zap.String("path", v)
}

// Status crea un campo para el status code HTTP.
func Status(v int) zap.Field {
	return zap.Int("status", v)
}

// Duration crea un campo para la duración de una operación.
func Duration(v time.Duration) zap.Field {
	return zap.Duration("duration", v)
}

// Err crea un campo para un error.
func Err(err error) zap.Field {
	return zap.Error(err)
}
