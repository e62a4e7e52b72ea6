// Package devserver es el backend stub de desarrollo: implementa los
// endpoints de auth que consume el resolver, un CRUD mínimo de
// productos/pedidos y el canal push, para poder correr el cliente sin
// el backend real.
package devserver

import (
	"context"
	"time"
)

// User es el registro de usuario del stub. Espeja los campos que el
// backend real devuelve en el check de registro.
type User struct {
	ID           int64    `json:"id"`
	TelegramID   string   `json:"telegram_id"`
	FirstName    string   `json:"first_name,omitempty"`
	LastName     string   `json:"last_name,omitempty"`
	Username     string   `json:"username,omitempty"`
	Role         string   `json:"role"`
	BusinessName string   `json:"business_name,omitempty"`
	PhoneNumber  string   `json:"phone_number,omitempty"`
	BusinessType string   `json:"business_type,omitempty"`
	Lat          *float64 `json:"lat,omitempty"`
	Lng          *float64 `json:"lng,omitempty"`
	Status       string   `json:"status,omitempty"`
}

// Product es una oferta de excedente publicada por un vendedor.
type Product struct {
	ID          string    `json:"id"`
	SellerID    int64     `json:"seller_id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Price       float64   `json:"price"`
	Quantity    int       `json:"quantity"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
}

// Order es un pedido de un comprador sobre un producto.
type Order struct {
	ID        string    `json:"id"`
	ProductID string    `json:"product_id"`
	SellerID  int64     `json:"seller_id"`
	BuyerID   int64     `json:"buyer_id"`
	Quantity  int       `json:"quantity"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// Store es la persistencia del stub.
type Store interface {
	UserByTelegramID(ctx context.Context, telegramID string) (*User, error)
	CreateUser(ctx context.Context, u *User) error

	CreateProduct(ctx context.Context, p *Product) error
	ProductByID(ctx context.Context, id string) (*Product, error)
	ListProducts(ctx context.Context) ([]Product, error)

	CreateOrder(ctx context.Context, o *Order) error
	OrdersBySeller(ctx context.Context, sellerID int64) ([]Order, error)

	Close()
}

// Errores del store.
var ErrNotFound = errNotFound{}

type errNotFound struct{}

func (errNotFound) Error() string { return "devserver: not found" }

// StoreConfig configura el driver de persistencia.
type StoreConfig struct {
	Driver string // "memory" | "postgres"
	DSN    string // postgres
}

// NewStore crea el Store según la configuración.
func NewStore(ctx context.Context, cfg StoreConfig) (Store, error) {
	switch cfg.Driver {
	case "postgres":
		return NewPGStore(ctx, cfg.DSN)
	default:
		return NewMemoryStore(), nil
	}
}
