package backend

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestCheckUser(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/auth/check" || r.Method != http.MethodPost {
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
		var req map[string]string
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req["telegram_id"] != "777" {
			t.Errorf("telegram_id = %q", req["telegram_id"])
		}
		_ = json.NewEncoder(w).Encode(CheckResult{
			Exists: true,
			Role:   "seller",
			User:   &UserRecord{ID: 3, TelegramID: "777", BusinessName: "Panadería Lola"},
		})
	}))
	defer srv.Close()

	c := New(srv.URL)
	res, err := c.CheckUser(context.Background(), "777")
	if err != nil {
		t.Fatalf("CheckUser err: %v", err)
	}
	if !res.Exists || res.Role != "seller" || res.User == nil || res.User.BusinessName != "Panadería Lola" {
		t.Fatalf("res = %+v", res)
	}
}

func TestLogin(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req LoginRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.ExternalID != "777" || req.Role != "seller" {
			t.Errorf("req = %+v", req)
		}
		_ = json.NewEncoder(w).Encode(TokenPair{AccessToken: "at", RefreshToken: "rt"})
	}))
	defer srv.Close()

	c := New(srv.URL)
	tp, err := c.Login(context.Background(), LoginRequest{ExternalID: "777", Role: "seller"})
	if err != nil {
		t.Fatalf("Login err: %v", err)
	}
	if tp.AccessToken != "at" || tp.RefreshToken != "rt" {
		t.Fatalf("tokens = %+v", tp)
	}
}

func TestNon2xxIsAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(map[string]string{
			"error":             "invalid_password",
			"error_description": "password requerida para admin",
		})
	}))
	defer srv.Close()

	c := New(srv.URL)
	_, err := c.Login(context.Background(), LoginRequest{ExternalID: "1", Role: "admin"})
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %T: %v", err, err)
	}
	if apiErr.Status != 401 || apiErr.Code != "invalid_password" {
		t.Fatalf("apiErr = %+v", apiErr)
	}
}

func TestNetworkErrorWrapped(t *testing.T) {
	c := New("http://127.0.0.1:1") // nada escucha acá
	_, err := c.CheckUser(context.Background(), "1")
	if err == nil {
		t.Fatal("expected error")
	}
}
