package push

import (
	"github.com/salvacomida/miniapp/internal/notify"
)

// IntoStore retorna un Handler que traduce eventos "notification" en
// llamadas a notify.Add (kind ORDER). Los eventos de data-sync crudos
// (orderCreated, orderStatusChanged) son para los dashboards, no para
// el store: acá se ignoran, salvo que se pase un raw handler.
func IntoStore(store *notify.Store, raw Handler) Handler {
	return func(ev Event) {
		if ev.Event != "notification" {
			if raw != nil {
				raw(ev)
			}
			return
		}
		store.Add(notify.Input{
			Kind:      notify.KindOrder,
			Title:     ev.Title,
			Message:   ev.Message,
			OrderID:   ev.OrderID,
			ProductID: ev.ProductID,
			SellerID:  ev.SellerID,
			UserID:    ev.UserID,
			ActionURL: ev.ActionURL,
		})
	}
}
