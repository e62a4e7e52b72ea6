package telegram

import "strconv"

// Claim es la identidad no verificada que entrega el host.
// Inmutable una vez capturada para la sesión.
type Claim struct {
	ID           int64
	FirstName    string
	LastName     string
	Username     string
	LanguageCode string
}

// ExternalID retorna el id de Telegram como string, que es la forma en
// la que el backend lo conoce.
func (c Claim) ExternalID() string {
	return strconv.FormatInt(c.ID, 10)
}

// Identidad fallback determinística: si el host está presente pero no
// entrega user parseable, la app degrada a esta identidad anónima fija
// en lugar de bloquearse.
const (
	FallbackID        int64 = 99281932
	FallbackFirstName       = "Vecino"
	FallbackUsername        = "vecino_dev"
)

// FallbackClaim retorna la identidad anónima fija.
func FallbackClaim() Claim {
	return Claim{
		ID:           FallbackID,
		FirstName:    FallbackFirstName,
		Username:     FallbackUsername,
		LanguageCode: "es",
	}
}

// ClaimFromBridge intenta extraer un Claim del bridge, en orden de
// preferencia: user pre-parseado, user embebido en el init data crudo,
// y de nuevo el user del bridge. Retorna ok=false si nada sirve.
func ClaimFromBridge(b Bridge) (Claim, bool) {
	if u, ok := b.User(); ok && u.ID != 0 {
		return claimFromUser(u), true
	}
	if raw := b.InitDataRaw(); raw != "" {
		if d, err := ParseInitData(raw); err == nil && d.User != nil {
			return claimFromUser(d.User), true
		}
	}
	return Claim{}, false
}

func claimFromUser(u *WebAppUser) Claim {
	return Claim{
		ID:           u.ID,
		FirstName:    u.FirstName,
		LastName:     u.LastName,
		Username:     u.Username,
		LanguageCode: u.LanguageCode,
	}
}
