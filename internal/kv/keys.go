package kv

// Keys conocidas del storage. Centralizadas acá para evitar colisiones
// entre componentes: el resolver escribe las keys de sesión/perfil y el
// notification store escribe KeyNotifyLog. Nadie más escribe estas keys.
const (
	KeyAccessToken  = "session.access_token"
	KeyRefreshToken = "session.refresh_token"
	KeyInitData     = "session.init_data"
	KeyProfile      = "session.profile"
	KeyRole         = "session.role"
	KeyNotifyLog    = "notify.log"
	KeyLastLocation = "geo.last_location"
)

// SessionKeys son las keys que Logout() borra. KeyNotifyLog queda fuera:
// el historial de notificaciones sobrevive al logout.
var SessionKeys = []string{
	KeyAccessToken,
	KeyRefreshToken,
	KeyInitData,
	KeyProfile,
	KeyRole,
}
