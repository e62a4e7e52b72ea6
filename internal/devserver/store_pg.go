package devserver

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PGStore persiste en Postgres vía pgxpool. Pensado para entornos de
// desarrollo compartidos donde el estado del stub debe sobrevivir
// reinicios.
type PGStore struct{ pool *pgxpool.Pool }

func NewPGStore(ctx context.Context, dsn string) (*PGStore, error) {
	pcfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("devserver: dsn inválido: %w", err)
	}
	if pcfg.MaxConns == 0 || pcfg.MaxConns > 8 {
		// Límites conservadores para desarrollo local.
		pcfg.MaxConns = 8
	}
	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, err
	}
	s := &PGStore{pool: pool}
	if err := s.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *PGStore) ensureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS dev_users (
			id BIGSERIAL PRIMARY KEY,
			telegram_id TEXT UNIQUE NOT NULL,
			first_name TEXT NOT NULL DEFAULT '',
			last_name TEXT NOT NULL DEFAULT '',
			username TEXT NOT NULL DEFAULT '',
			role TEXT NOT NULL DEFAULT 'user',
			business_name TEXT NOT NULL DEFAULT '',
			phone_number TEXT NOT NULL DEFAULT '',
			business_type TEXT NOT NULL DEFAULT '',
			lat DOUBLE PRECISION,
			lng DOUBLE PRECISION,
			status TEXT NOT NULL DEFAULT 'active'
		)`,
		`CREATE TABLE IF NOT EXISTS dev_products (
			id UUID PRIMARY KEY,
			seller_id BIGINT NOT NULL,
			title TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			price DOUBLE PRECISION NOT NULL DEFAULT 0,
			quantity INT NOT NULL DEFAULT 0,
			status TEXT NOT NULL DEFAULT 'available',
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS dev_orders (
			id UUID PRIMARY KEY,
			product_id UUID NOT NULL,
			seller_id BIGINT NOT NULL,
			buyer_id BIGINT NOT NULL,
			quantity INT NOT NULL DEFAULT 1,
			status TEXT NOT NULL DEFAULT 'pending',
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
	}
	for _, q := range stmts {
		if _, err := s.pool.Exec(ctx, q); err != nil {
			return fmt.Errorf("devserver: schema: %w", err)
		}
	}
	return nil
}

func (s *PGStore) UserByTelegramID(ctx context.Context, telegramID string) (*User, error) {
	const q = `SELECT id, telegram_id, first_name, last_name, username, role,
		business_name, phone_number, business_type, lat, lng, status
		FROM dev_users WHERE telegram_id=$1`
	var u User
	err := s.pool.QueryRow(ctx, q, telegramID).Scan(
		&u.ID, &u.TelegramID, &u.FirstName, &u.LastName, &u.Username, &u.Role,
		&u.BusinessName, &u.PhoneNumber, &u.BusinessType, &u.Lat, &u.Lng, &u.Status,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *PGStore) CreateUser(ctx context.Context, u *User) error {
	const q = `INSERT INTO dev_users
		(telegram_id, first_name, last_name, username, role, business_name, phone_number, business_type, lat, lng, status)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
		ON CONFLICT (telegram_id) DO UPDATE SET
			first_name=EXCLUDED.first_name, last_name=EXCLUDED.last_name,
			username=EXCLUDED.username, role=EXCLUDED.role,
			business_name=EXCLUDED.business_name, phone_number=EXCLUDED.phone_number,
			business_type=EXCLUDED.business_type, lat=EXCLUDED.lat, lng=EXCLUDED.lng,
			status=EXCLUDED.status
		RETURNING id`
	status := u.Status
	if status == "" {
		status = "active"
	}
	return s.pool.QueryRow(ctx, q,
		u.TelegramID, u.FirstName, u.LastName, u.Username, u.Role,
		u.BusinessName, u.PhoneNumber, u.BusinessType, u.Lat, u.Lng, status,
	).Scan(&u.ID)
}

func (s *PGStore) CreateProduct(ctx context.Context, p *Product) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	if p.Status == "" {
		p.Status = "available"
	}
	const q = `INSERT INTO dev_products (id, seller_id, title, description, price, quantity, status, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`
	_, err := s.pool.Exec(ctx, q, p.ID, p.SellerID, p.Title, p.Description, p.Price, p.Quantity, p.Status, p.CreatedAt)
	return err
}

func (s *PGStore) ProductByID(ctx context.Context, id string) (*Product, error) {
	const q = `SELECT id, seller_id, title, description, price, quantity, status, created_at
		FROM dev_products WHERE id=$1`
	var p Product
	err := s.pool.QueryRow(ctx, q, id).Scan(
		&p.ID, &p.SellerID, &p.Title, &p.Description, &p.Price, &p.Quantity, &p.Status, &p.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *PGStore) ListProducts(ctx context.Context) ([]Product, error) {
	const q = `SELECT id, seller_id, title, description, price, quantity, status, created_at
		FROM dev_products ORDER BY created_at DESC`
	rows, err := s.pool.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Product
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.ID, &p.SellerID, &p.Title, &p.Description, &p.Price, &p.Quantity, &p.Status, &p.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *PGStore) CreateOrder(ctx context.Context, o *Order) error {
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	if o.CreatedAt.IsZero() {
		o.CreatedAt = time.Now().UTC()
	}
	if o.Status == "" {
		o.Status = "pending"
	}
	const q = `INSERT INTO dev_orders (id, product_id, seller_id, buyer_id, quantity, status, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`
	_, err := s.pool.Exec(ctx, q, o.ID, o.ProductID, o.SellerID, o.BuyerID, o.Quantity, o.Status, o.CreatedAt)
	return err
}

func (s *PGStore) OrdersBySeller(ctx context.Context, sellerID int64) ([]Order, error) {
	const q = `SELECT id, product_id, seller_id, buyer_id, quantity, status, created_at
		FROM dev_orders WHERE seller_id=$1 ORDER BY created_at DESC`
	rows, err := s.pool.Query(ctx, q, sellerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Order
	for rows.Next() {
		var o Order
		if err := rows.Scan(&o.ID, &o.ProductID, &o.SellerID, &o.BuyerID, &o.Quantity, &o.Status, &o.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func (s *PGStore) Close() { s.pool.Close() }
