package push

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/salvacomida/miniapp/internal/kv"
	"github.com/salvacomida/miniapp/internal/notify"
	"github.com/salvacomida/miniapp/internal/session"
)

var upgrader = websocket.Upgrader{}

// wsServer acepta una conexión, captura el frame de suscripción y
// emite los eventos dados.
func wsServer(t *testing.T, events []Event, gotSub chan<- subscribeFrame) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()

		var sub subscribeFrame
		if err := conn.ReadJSON(&sub); err != nil {
			t.Errorf("read subscribe: %v", err)
			return
		}
		gotSub <- sub

		for _, ev := range events {
			b, _ := json.Marshal(ev)
			if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
				return
			}
		}
		// mantener abierta hasta que el cliente cierre
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
}

func TestSubscriber_DeliversEvents(t *testing.T) {
	events := []Event{
		{Event: "notification", Type: "order_created", Title: "Pedido nuevo", OrderID: "o-9", SellerID: "7"},
		{Event: "orderCreated", OrderID: "o-9"},
	}
	gotSub := make(chan subscribeFrame, 1)
	srv := wsServer(t, events, gotSub)
	defer srv.Close()

	received := make(chan Event, 4)
	sub := New(Config{
		URL:            srv.URL,
		SubscriberType: "seller",
		SubscriberID:   "7",
	}, func(ev Event) { received <- ev })

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := sub.Dial(ctx); err != nil {
		t.Fatalf("Dial err: %v", err)
	}
	go sub.Run(ctx)
	defer sub.Close()

	frame := <-gotSub
	if frame.SubscriberType != "seller" || frame.SubscriberID != "7" {
		t.Fatalf("subscribe frame = %+v", frame)
	}

	for i := 0; i < 2; i++ {
		select {
		case ev := <-received:
			if ev.Event == "notification" && ev.OrderID != "o-9" {
				t.Fatalf("event = %+v", ev)
			}
		case <-time.After(3 * time.Second):
			t.Fatal("timeout esperando eventos")
		}
	}
}

func TestIntoStore_TranslatesNotificationEvents(t *testing.T) {
	store := notify.New(kv.NewMemory())
	var raws []Event
	h := IntoStore(store, func(ev Event) { raws = append(raws, ev) })

	h(Event{Event: "notification", Type: "order_created", Title: "Pedido", OrderID: "o-1", SellerID: "7"})
	h(Event{Event: "orderCreated", OrderID: "o-1"})

	ident := notify.Identity{UserID: "7", ProfileID: "7", Role: session.RoleSeller, Resolved: true}
	view := store.View(ident)
	if len(view) != 1 {
		t.Fatalf("view len = %d, want 1 (el evento crudo no entra al store)", len(view))
	}
	if view[0].Kind != notify.KindOrder || view[0].OrderID != "o-1" {
		t.Fatalf("record = %+v", view[0])
	}
	if len(raws) != 1 || raws[0].Event != "orderCreated" {
		t.Fatalf("raws = %+v", raws)
	}
}
