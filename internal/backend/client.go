// Package backend es el cliente REST del servicio de SalvaComida.
// El core solo consume dos endpoints (check de registro y login); el
// resto del API lo consumen las pantallas por fuera de este paquete.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Client habla con el backend. Zero-value no sirve: usar New.
type Client struct {
	baseURL string
	http    *http.Client
}

// Option configura el Client.
type Option func(*Client)

// WithHTTPClient reemplaza el http.Client (tests, proxies).
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// WithTimeout ajusta el timeout por request.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.Timeout = d }
}

// New crea un cliente para baseURL. Timeout por defecto 10s: el
// resolver depende de que ninguna llamada cuelgue indefinidamente.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 10 * time.Second},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// UserRecord es el registro de usuario que devuelve el backend.
// Todos los campos son opcionales salvo TelegramID: los ausentes se
// completan desde el claim local en el merge del resolver.
type UserRecord struct {
	ID           int64    `json:"id"`
	TelegramID   string   `json:"telegram_id"`
	FirstName    string   `json:"first_name,omitempty"`
	LastName     string   `json:"last_name,omitempty"`
	Username     string   `json:"username,omitempty"`
	Role         string   `json:"role,omitempty"`
	BusinessName string   `json:"business_name,omitempty"`
	PhoneNumber  string   `json:"phone_number,omitempty"`
	BusinessType string   `json:"business_type,omitempty"`
	Lat          *float64 `json:"lat,omitempty"`
	Lng          *float64 `json:"lng,omitempty"`
	Status       string   `json:"status,omitempty"`
}

// CheckResult es la respuesta del check de registro.
type CheckResult struct {
	Exists bool        `json:"exists"`
	Role   string      `json:"role,omitempty"`
	User   *UserRecord `json:"user,omitempty"`
}

// LoginRequest son las credenciales de login. Password solo se usa
// para el secondary auth de admin.
type LoginRequest struct {
	ExternalID string `json:"telegram_id"`
	Role       string `json:"role"`
	Password   string `json:"password,omitempty"`
	InitData   string `json:"init_data,omitempty"`
}

// TokenPair son los bearer tokens de sesión.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// APIError es un error no-2xx del backend.
type APIError struct {
	Status int
	Code   string `json:"error"`
	Detail string `json:"error_description"`
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("backend: %s (%d): %s", e.Code, e.Status, e.Detail)
	}
	return fmt.Sprintf("backend: status %d", e.Status)
}

// CheckUser consulta si existe un usuario con ese id externo.
func (c *Client) CheckUser(ctx context.Context, externalID string) (CheckResult, error) {
	var out CheckResult
	err := c.post(ctx, "/v1/auth/check", map[string]string{"telegram_id": externalID}, &out)
	return out, err
}

// Login obtiene una sesión para el usuario.
func (c *Client) Login(ctx context.Context, req LoginRequest) (TokenPair, error) {
	var out TokenPair
	err := c.post(ctx, "/v1/auth/login", req, &out)
	return out, err
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	b, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("backend: marshal: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("backend: %s: %w", path, err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Status: resp.StatusCode}
		_ = json.Unmarshal(raw, apiErr)
		return apiErr
	}
	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("backend: decode %s: %w", path, err)
		}
	}
	return nil
}
