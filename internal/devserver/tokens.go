package devserver

import (
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"fmt"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Issuer firma tokens Ed25519 con una clave efímera generada al boot.
// El stub no rota claves: los tokens dejan de validar en cada reinicio,
// que es exactamente lo que queremos en desarrollo.
type Issuer struct {
	Iss        string
	AccessTTL  time.Duration
	RefreshTTL time.Duration

	kid  string
	priv ed25519.PrivateKey
	pub  ed25519.PublicKey
}

func NewIssuer(iss string) (*Issuer, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("devserver: generar clave: %w", err)
	}
	return &Issuer{
		Iss:        iss,
		AccessTTL:  15 * time.Minute,
		RefreshTTL: 720 * time.Hour,
		kid:        uuid.NewString()[:8],
		priv:       priv,
		pub:        pub,
	}, nil
}

// IssuePair emite access + refresh para un usuario.
func (i *Issuer) IssuePair(telegramID, role string) (access, refresh string, err error) {
	now := time.Now().UTC()
	access, err = i.sign(jwtv5.MapClaims{
		"iss":  i.Iss,
		"sub":  telegramID,
		"role": role,
		"typ":  "access",
		"iat":  now.Unix(),
		"nbf":  now.Unix(),
		"exp":  now.Add(i.AccessTTL).Unix(),
		"jti":  uuid.NewString(),
	})
	if err != nil {
		return "", "", err
	}
	refresh, err = i.sign(jwtv5.MapClaims{
		"iss": i.Iss,
		"sub": telegramID,
		"typ": "refresh",
		"iat": now.Unix(),
		"exp": now.Add(i.RefreshTTL).Unix(),
		"jti": uuid.NewString(),
	})
	if err != nil {
		return "", "", err
	}
	return access, refresh, nil
}

func (i *Issuer) sign(claims jwtv5.MapClaims) (string, error) {
	tk := jwtv5.NewWithClaims(jwtv5.SigningMethodEdDSA, claims)
	tk.Header["kid"] = i.kid
	return tk.SignedString(i.priv)
}

// Parse valida un token emitido por este Issuer y devuelve sus claims.
func (i *Issuer) Parse(token string) (jwtv5.MapClaims, error) {
	parsed, err := jwtv5.Parse(token, func(t *jwtv5.Token) (any, error) {
		if _, ok := t.Method.(*jwtv5.SigningMethodEd25519); !ok {
			return nil, fmt.Errorf("alg inesperado: %v", t.Header["alg"])
		}
		return i.pub, nil
	}, jwtv5.WithIssuer(i.Iss))
	if err != nil {
		return nil, err
	}
	claims, ok := parsed.Claims.(jwtv5.MapClaims)
	if !ok || !parsed.Valid {
		return nil, errors.New("token inválido")
	}
	return claims, nil
}
