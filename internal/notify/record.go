// Package notify implementa el log local de notificaciones: un registro
// append-only persistido por instalación, con una vista filtrada por la
// identidad/rol resueltos y un punto de ingesta para eventos push.
package notify

import (
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/salvacomida/miniapp/internal/session"
)

// Kind es el tipo de notificación.
type Kind string

const (
	KindOrder   Kind = "order"
	KindProduct Kind = "product"
	KindSystem  Kind = "system"
)

// Record es una notificación del log. Solo IsRead muta después de
// creada; el resto es inmutable.
type Record struct {
	ID        string    `json:"id"`
	Kind      Kind      `json:"kind"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
	IsRead    bool      `json:"is_read"`
	OrderID   string    `json:"order_id,omitempty"`
	ProductID string    `json:"product_id,omitempty"`
	SellerID  string    `json:"seller_id,omitempty"`
	UserID    string    `json:"user_id,omitempty"`
	ActionURL string    `json:"action_url,omitempty"`
}

// Input son los campos que aporta el caller de Add; id, timestamp e
// is_read los estampa el store.
type Input struct {
	Kind      Kind
	Title     string
	Message   string
	OrderID   string
	ProductID string
	SellerID  string
	UserID    string
	ActionURL string
}

// Identity es el scope de la vista filtrada: la identidad/rol que el
// resolver tiene en este momento. Resolved=false ⇒ vista vacía.
type Identity struct {
	UserID    string
	ProfileID string
	Role      session.Role
	Resolved  bool
}

// IdentityFrom arma el scope desde un snapshot del resolver.
func IdentityFrom(s session.Snapshot) Identity {
	id := Identity{Role: s.Role, Resolved: s.IsReady}
	if s.Identity != nil {
		id.UserID = s.Identity.ExternalID()
	}
	if s.Profile != nil {
		id.ProfileID = strconv.FormatInt(s.Profile.ID, 10)
		if id.UserID == "" {
			id.UserID = s.Profile.ExternalID
		}
	}
	return id
}

// newID genera un id único y ordenable por tiempo: timestamp en ms en
// base 36 más un sufijo aleatorio que mantiene estable el orden de
// inserción ante colisiones de milisegundo.
func newID(now time.Time) string {
	ts := strconv.FormatInt(now.UnixMilli(), 36)
	suffix := strings.SplitN(uuid.NewString(), "-", 2)[0]
	return ts + "-" + suffix
}

// visible decide si un record entra en la vista filtrada de ident.
func visible(r Record, ident Identity) bool {
	if !ident.Resolved {
		return false
	}
	if r.Kind == KindSystem {
		return true
	}
	switch ident.Role {
	case session.RoleAdmin:
		return true
	case session.RoleSeller:
		return r.SellerID != "" && (r.SellerID == ident.ProfileID || r.SellerID == ident.UserID)
	default:
		return r.UserID != "" && r.UserID == ident.UserID
	}
}
