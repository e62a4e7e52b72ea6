package session

import (
	"github.com/salvacomida/miniapp/internal/backend"
	"github.com/salvacomida/miniapp/internal/telegram"
)

// LatLng es una ubicación geográfica simple.
type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Profile es la identidad autoritativa de la app, reconciliada contra
// el backend. Se persiste en el kv store en cada cambio y se borra en
// el logout. Profile.Role es la única fuente de verdad para decisiones
// de autorización; la key de rol persistida se mantiene en sync con él.
type Profile struct {
	ID                 int64   `json:"id"`
	ExternalID         string  `json:"external_id"`
	FirstName          string  `json:"first_name"`
	LastName           string  `json:"last_name,omitempty"`
	Username           string  `json:"username,omitempty"`
	Role               Role    `json:"role"`
	IsRegistered       bool    `json:"is_registered"`
	NeedsSecondaryAuth bool    `json:"needs_secondary_auth,omitempty"`
	BusinessName       string  `json:"business_name,omitempty"`
	PhoneNumber        string  `json:"phone_number,omitempty"`
	BusinessType       string  `json:"business_type,omitempty"`
	Location           *LatLng `json:"location,omitempty"`
	LanguageCode       string  `json:"language_code,omitempty"`
	Status             string  `json:"status,omitempty"`
}

// unregisteredProfile arma un perfil no registrado a partir del claim
// local. Es el estado terminal tanto para "no existe" como para
// "backend inalcanzable".
func unregisteredProfile(c telegram.Claim) *Profile {
	return &Profile{
		ID:           c.ID,
		ExternalID:   c.ExternalID(),
		FirstName:    c.FirstName,
		LastName:     c.LastName,
		Username:     c.Username,
		Role:         RoleUser,
		IsRegistered: false,
		LanguageCode: c.LanguageCode,
	}
}

// mergeProfile combina el registro del backend con el claim local:
// los campos del backend ganan cuando están presentes, el claim llena
// los huecos.
func mergeProfile(c telegram.Claim, rec *backend.UserRecord, role Role) *Profile {
	p := &Profile{
		ID:           c.ID,
		ExternalID:   c.ExternalID(),
		FirstName:    c.FirstName,
		LastName:     c.LastName,
		Username:     c.Username,
		Role:         role,
		IsRegistered: true,
		LanguageCode: c.LanguageCode,
	}
	if rec == nil {
		return p
	}
	if rec.ID != 0 {
		p.ID = rec.ID
	}
	if rec.TelegramID != "" {
		p.ExternalID = rec.TelegramID
	}
	if rec.FirstName != "" {
		p.FirstName = rec.FirstName
	}
	if rec.LastName != "" {
		p.LastName = rec.LastName
	}
	if rec.Username != "" {
		p.Username = rec.Username
	}
	if rec.Role != "" {
		p.Role = ParseRole(rec.Role)
	}
	p.BusinessName = rec.BusinessName
	p.PhoneNumber = rec.PhoneNumber
	p.BusinessType = rec.BusinessType
	p.Status = rec.Status
	if rec.Lat != nil && rec.Lng != nil {
		p.Location = &LatLng{Lat: *rec.Lat, Lng: *rec.Lng}
	}
	return p
}
