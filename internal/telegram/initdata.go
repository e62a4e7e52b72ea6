// Package telegram modela al host runtime (el WebView de Telegram) como
// proveedor de identidad: parseo del init data, validación de firma y la
// abstracción Bridge que el resolver consume.
package telegram

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"
)

// WebAppUser es el objeto user embebido en el init data.
type WebAppUser struct {
	ID           int64  `json:"id"`
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name,omitempty"`
	Username     string `json:"username,omitempty"`
	LanguageCode string `json:"language_code,omitempty"`
	PhotoURL     string `json:"photo_url,omitempty"`
}

// InitData es el payload firmado que entrega el WebView.
type InitData struct {
	QueryID  string
	User     *WebAppUser
	AuthDate time.Time
	Hash     string
	Raw      string
}

var (
	ErrNoInitData   = errors.New("telegram: empty init data")
	ErrBadSignature = errors.New("telegram: init data signature mismatch")
)

// ParseInitData decodifica un init data crudo (query string) y su campo
// user embebido (JSON url-encoded). No valida la firma: eso es Validate.
func ParseInitData(raw string) (*InitData, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, ErrNoInitData
	}
	vals, err := url.ParseQuery(raw)
	if err != nil {
		return nil, fmt.Errorf("telegram: parse init data: %w", err)
	}

	d := &InitData{
		QueryID: vals.Get("query_id"),
		Hash:    vals.Get("hash"),
		Raw:     raw,
	}

	if s := vals.Get("auth_date"); s != "" {
		if sec, err := strconv.ParseInt(s, 10, 64); err == nil {
			d.AuthDate = time.Unix(sec, 0)
		}
	}

	if uj := vals.Get("user"); uj != "" {
		var u WebAppUser
		if err := json.Unmarshal([]byte(uj), &u); err == nil && u.ID != 0 {
			d.User = &u
		}
	}

	return d, nil
}

// Validate verifica la firma HMAC del init data contra el bot token,
// según el esquema WebAppData de Telegram. El cliente no la usa (consume
// los claims sin verificar, igual que el WebView); la expone para
// consumidores server-side como el devserver.
func Validate(raw, botToken string) error {
	vals, err := url.ParseQuery(raw)
	if err != nil {
		return fmt.Errorf("telegram: parse init data: %w", err)
	}
	gotHash := vals.Get("hash")
	if gotHash == "" {
		return ErrBadSignature
	}

	// data-check-string: pares key=value ordenados, sin hash, unidos por \n
	keys := make([]string, 0, len(vals))
	for k := range vals {
		if k != "hash" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	lines := make([]string, 0, len(keys))
	for _, k := range keys {
		lines = append(lines, k+"="+vals.Get(k))
	}
	checkString := strings.Join(lines, "\n")

	// secret = HMAC_SHA256(bot_token, key="WebAppData")
	kh := hmac.New(sha256.New, []byte("WebAppData"))
	kh.Write([]byte(botToken))
	secret := kh.Sum(nil)

	mh := hmac.New(sha256.New, secret)
	mh.Write([]byte(checkString))
	want := hex.EncodeToString(mh.Sum(nil))

	if !hmac.Equal([]byte(want), []byte(gotHash)) {
		return ErrBadSignature
	}
	return nil
}
