package telegram

import (
	"os"

	"github.com/salvacomida/miniapp/internal/observability/logger"
)

// Bridge abstrae el objeto global del WebView. En el browser es
// window.Telegram.WebApp; acá es una interfaz que el runtime inyecta.
// Ready/Expand/OpenLink son fire-and-forget: nunca fallan hacia el caller.
type Bridge interface {
	// Present indica si el host runtime está disponible.
	Present() bool

	// Ready notifica al host que la app terminó de cargar.
	Ready()

	// Expand pide al host expandir la vista a pantalla completa.
	Expand()

	// InitDataRaw retorna el init data crudo ("" si no hay).
	InitDataRaw() string

	// User retorna el user pre-parseado del host, si existe.
	User() (*WebAppUser, bool)

	// OpenLink pide al host abrir una URL externa.
	OpenLink(url string)
}

// EnvBridge es el stand-in headless del WebView: toma el init data de
// la configuración (o de la env TG_INIT_DATA) y parsea el user de ahí.
type EnvBridge struct {
	raw  string
	user *WebAppUser
}

// NewEnvBridge crea un bridge a partir de un init data crudo. Si raw es
// vacío intenta la variable de entorno TG_INIT_DATA.
func NewEnvBridge(raw string) *EnvBridge {
	if raw == "" {
		raw = os.Getenv("TG_INIT_DATA")
	}
	b := &EnvBridge{raw: raw}
	if d, err := ParseInitData(raw); err == nil && d.User != nil {
		b.user = d.User
	}
	return b
}

func (b *EnvBridge) Present() bool { return b.raw != "" }

func (b *EnvBridge) Ready() {
	logger.Named("bridge").Debug("ready()")
}

func (b *EnvBridge) Expand() {
	logger.Named("bridge").Debug("expand()")
}

func (b *EnvBridge) InitDataRaw() string { return b.raw }

func (b *EnvBridge) User() (*WebAppUser, bool) {
	if b.user == nil {
		return nil, false
	}
	return b.user, true
}

func (b *EnvBridge) OpenLink(url string) {
	logger.Named("bridge").Info("open link", logger.Path(url))
}

// NoBridge representa la ausencia del host (browser plano).
type NoBridge struct{}

func (NoBridge) Present() bool              { return false }
func (NoBridge) Ready()                     {}
func (NoBridge) Expand()                    {}
func (NoBridge) InitDataRaw() string        { return "" }
func (NoBridge) User() (*WebAppUser, bool)  { return nil, false }
func (NoBridge) OpenLink(string)            {}
