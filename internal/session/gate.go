package session

import "github.com/salvacomida/miniapp/internal/telegram"

// GateState es el estado derivado de selección de pantalla. El
// resolver solo setea los flags; la capa de presentación consume Gate()
// para decidir qué mostrar.
type GateState string

const (
	GateLoading            GateState = "loading"
	GateUnregistered       GateState = "unregistered"
	GateAdminNeedsPassword GateState = "admin_needs_password"
	GateRegisteredUser     GateState = "registered_user"
	GateRegisteredSeller   GateState = "registered_seller"
	GateRegisteredAdmin    GateState = "registered_admin"
)

// Gate computa el estado de gating actual.
//
// El short-circuit de admin corre aun durante la carga: si el id
// externo del claim es el admin configurado y no hay access token
// guardado, el estado es AdminNeedsPassword aunque isReady sea false —
// un admin nunca queda atrapado detrás del spinner.
func (r *Resolver) Gate() GateState {
	r.mu.Lock()
	identity := r.identity
	profile := r.profile
	ready := r.ready
	r.mu.Unlock()

	hasToken := r.HasAccessToken()

	// Short-circuit admin, permitido incluso en loading. Si el
	// resolver todavía no capturó la identidad, se intenta leer el
	// claim directo del bridge (disponible en forma síncrona).
	if r.cfg.AdminExternalID != "" && !hasToken {
		ext := ""
		if identity != nil {
			ext = identity.ExternalID()
		} else if r.bridge != nil {
			if c, ok := telegram.ClaimFromBridge(r.bridge); ok {
				ext = c.ExternalID()
			}
		}
		if ext == r.cfg.AdminExternalID {
			return GateAdminNeedsPassword
		}
	}

	if !ready {
		return GateLoading
	}
	if profile == nil {
		return GateUnregistered
	}
	if profile.Role == RoleAdmin && (!hasToken || profile.NeedsSecondaryAuth) {
		return GateAdminNeedsPassword
	}
	if !profile.IsRegistered {
		return GateUnregistered
	}
	switch profile.Role {
	case RoleSeller:
		return GateRegisteredSeller
	case RoleAdmin:
		return GateRegisteredAdmin
	default:
		return GateRegisteredUser
	}
}
