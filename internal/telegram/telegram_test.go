package telegram

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"sort"
	"strings"
	"testing"
)

// signInitData firma un init data con el esquema WebAppData, para armar
// fixtures válidas en los tests.
func signInitData(t *testing.T, vals url.Values, botToken string) string {
	t.Helper()
	keys := make([]string, 0, len(vals))
	for k := range vals {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	lines := make([]string, 0, len(keys))
	for _, k := range keys {
		lines = append(lines, k+"="+vals.Get(k))
	}
	kh := hmac.New(sha256.New, []byte("WebAppData"))
	kh.Write([]byte(botToken))
	mh := hmac.New(sha256.New, kh.Sum(nil))
	mh.Write([]byte(strings.Join(lines, "\n")))
	vals.Set("hash", hex.EncodeToString(mh.Sum(nil)))
	return vals.Encode()
}

func TestParseInitData_DecodesUser(t *testing.T) {
	raw := "query_id=AAF1&user=" + url.QueryEscape(`{"id":7,"first_name":"Soledad","username":"sole","language_code":"es"}`) + "&auth_date=1717171717&hash=abc"

	d, err := ParseInitData(raw)
	if err != nil {
		t.Fatalf("ParseInitData err: %v", err)
	}
	if d.User == nil {
		t.Fatal("expected user")
	}
	if d.User.ID != 7 || d.User.FirstName != "Soledad" || d.User.Username != "sole" {
		t.Fatalf("user = %+v", d.User)
	}
	if d.QueryID != "AAF1" || d.Hash != "abc" {
		t.Fatalf("query_id=%q hash=%q", d.QueryID, d.Hash)
	}
	if d.AuthDate.Unix() != 1717171717 {
		t.Fatalf("auth_date = %v", d.AuthDate)
	}
}

func TestParseInitData_Empty(t *testing.T) {
	if _, err := ParseInitData("  "); err != ErrNoInitData {
		t.Fatalf("expected ErrNoInitData, got %v", err)
	}
}

func TestParseInitData_BadUserJSONIgnored(t *testing.T) {
	d, err := ParseInitData("user=" + url.QueryEscape("{not json") + "&hash=x")
	if err != nil {
		t.Fatalf("ParseInitData err: %v", err)
	}
	if d.User != nil {
		t.Fatalf("expected nil user, got %+v", d.User)
	}
}

func TestValidate_RoundTrip(t *testing.T) {
	const token = "12345:AAbbCCdd"
	vals := url.Values{}
	vals.Set("query_id", "AAF1")
	vals.Set("user", `{"id":42,"first_name":"Rosa"}`)
	vals.Set("auth_date", "1717171717")
	raw := signInitData(t, vals, token)

	if err := Validate(raw, token); err != nil {
		t.Fatalf("Validate err: %v", err)
	}
	if err := Validate(raw, "otro-token"); err != ErrBadSignature {
		t.Fatalf("expected ErrBadSignature, got %v", err)
	}
}

func TestValidate_MissingHash(t *testing.T) {
	if err := Validate("auth_date=1", "tok"); err != ErrBadSignature {
		t.Fatalf("expected ErrBadSignature, got %v", err)
	}
}

func TestClaimFromBridge_PreferenceOrder(t *testing.T) {
	// user pre-parseado gana sobre el init data crudo
	b := &EnvBridge{
		raw:  "user=" + url.QueryEscape(`{"id":2,"first_name":"Raw"}`),
		user: &WebAppUser{ID: 1, FirstName: "Parsed"},
	}
	c, ok := ClaimFromBridge(b)
	if !ok || c.ID != 1 || c.FirstName != "Parsed" {
		t.Fatalf("claim = %+v ok=%v", c, ok)
	}

	// sin user pre-parseado, cae al init data crudo
	b2 := &EnvBridge{raw: "user=" + url.QueryEscape(`{"id":2,"first_name":"Raw"}`)}
	c2, ok := ClaimFromBridge(b2)
	if !ok || c2.ID != 2 || c2.FirstName != "Raw" {
		t.Fatalf("claim = %+v ok=%v", c2, ok)
	}

	// nada parseable
	if _, ok := ClaimFromBridge(NoBridge{}); ok {
		t.Fatal("expected no claim from NoBridge")
	}
}

func TestFallbackClaim_Deterministic(t *testing.T) {
	a, b := FallbackClaim(), FallbackClaim()
	if a != b {
		t.Fatalf("fallback claim not deterministic: %+v vs %+v", a, b)
	}
	if a.ID != FallbackID || a.ExternalID() != "99281932" {
		t.Fatalf("fallback = %+v", a)
	}
}
