package session

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/salvacomida/miniapp/internal/backend"
	"github.com/salvacomida/miniapp/internal/kv"
	"github.com/salvacomida/miniapp/internal/metrics"
	"github.com/salvacomida/miniapp/internal/observability/logger"
	"github.com/salvacomida/miniapp/internal/telegram"
)

// AuthClient es lo que el resolver necesita del backend.
// *backend.Client lo satisface.
type AuthClient interface {
	CheckUser(ctx context.Context, externalID string) (backend.CheckResult, error)
	Login(ctx context.Context, req backend.LoginRequest) (backend.TokenPair, error)
}

// Config configura el resolver.
type Config struct {
	// Env: "dev" | "staging" | "prod". En prod no hay identidad
	// sintética ni watchdog.
	Env string

	// AdminExternalID es el Telegram id configurado como admin.
	AdminExternalID string

	// WatchdogTimeout fuerza un estado terminal si la resolución se
	// cuelga. Default 2s. Solo activo fuera de prod.
	WatchdogTimeout time.Duration

	// DevIdentity hace que Resolve sintetice la identidad de
	// desarrollo sin tocar bridge ni backend (paso 1 del algoritmo).
	DevIdentity bool
}

// Snapshot es la vista de solo lectura que consumen las pantallas.
type Snapshot struct {
	Identity  *telegram.Claim
	Profile   *Profile
	Role      Role
	IsReady   bool
	IsLoading bool
}

// Resolver es el dueño del estado de sesión. Una instancia por app;
// Resolve corre el algoritmo completo a lo sumo una vez.
//
// Todo el estado vive detrás de un mutex: el watchdog y la secuencia
// principal compiten por marcar ready y gana el primero (check-and-set
// bajo el lock).
type Resolver struct {
	kv      kv.Store
	client  AuthClient
	bridge  telegram.Bridge
	cfg     Config
	log     *zap.Logger

	mu       sync.Mutex
	started  bool
	ready    bool
	loading  bool
	identity *telegram.Claim
	profile  *Profile
	role     Role
	watchdog *time.Timer
}

// New crea un resolver. El rol arranca con el último valor persistido,
// o RoleUser si no hay ninguno.
func New(store kv.Store, client AuthClient, bridge telegram.Bridge, cfg Config) *Resolver {
	if cfg.WatchdogTimeout <= 0 {
		cfg.WatchdogTimeout = 2 * time.Second
	}
	r := &Resolver{
		kv:     store,
		client: client,
		bridge: bridge,
		cfg:    cfg,
		log:    logger.Named("session"),
		role:   RoleUser,
	}
	if s, err := store.Get(context.Background(), kv.KeyRole); err == nil {
		r.role = ParseRole(s)
	}
	return r
}

// Resolve ejecuta el algoritmo de resolución. Idempotente: llamadas
// posteriores a la primera retornan el snapshot actual sin repetir el
// lookup al backend. Nunca retorna error: toda falla termina en un
// estado definido (usuario no registrado).
func (r *Resolver) Resolve(ctx context.Context) Snapshot {
	r.mu.Lock()
	if r.started {
		snap := r.snapshotLocked()
		r.mu.Unlock()
		return snap
	}
	r.started = true
	r.loading = true

	// Paso 1: identidad de desarrollo, sin backend ni bridge.
	if r.cfg.DevIdentity {
		r.applyDevIdentityLocked("dev")
		snap := r.snapshotLocked()
		r.mu.Unlock()
		return snap
	}

	// Watchdog: si la cadena async se cuelga, forzar un estado
	// terminal para no dejar la UI en el spinner. Solo fuera de prod.
	if r.cfg.Env != "prod" {
		r.watchdog = time.AfterFunc(r.cfg.WatchdogTimeout, func() {
			r.mu.Lock()
			defer r.mu.Unlock()
			if r.ready {
				return
			}
			r.log.Warn("resolución colgada, watchdog fuerza identidad dev")
			r.applyDevIdentityLocked("watchdog")
		})
	}
	r.mu.Unlock()

	r.resolve(ctx)

	r.mu.Lock()
	snap := r.snapshotLocked()
	r.mu.Unlock()
	return snap
}

// resolve corre los pasos 2+ sin el lock tomado (las llamadas al
// backend no deben serializar a los lectores).
func (r *Resolver) resolve(ctx context.Context) {
	// Paso 2: ¿hay host bridge?
	if r.bridge == nil || !r.bridge.Present() {
		r.mu.Lock()
		defer r.mu.Unlock()
		if r.ready {
			return
		}
		// Placeholder vacío y no registrado: la UI muestra la
		// pantalla "abrir desde Telegram".
		r.profile = &Profile{Role: RoleUser}
		r.markReadyLocked("no_bridge")
		return
	}

	// Lifecycle hooks: fire-and-forget, sin camino de error.
	r.bridge.Ready()
	r.bridge.Expand()

	claim, ok := telegram.ClaimFromBridge(r.bridge)
	if !ok {
		// Nunca bloquear por identidad faltante: degradar a la
		// identidad anónima determinística.
		claim = telegram.FallbackClaim()
		r.log.Warn("init data sin user parseable, usando claim fallback")
	}

	// Persistir el init data crudo para llamadas que requieren
	// prueba de origen.
	if raw := r.bridge.InitDataRaw(); raw != "" {
		if err := r.kv.Set(ctx, kv.KeyInitData, raw); err != nil {
			r.log.Warn("no se pudo persistir init data", logger.Err(err))
		}
	}

	r.mu.Lock()
	r.identity = &claim
	r.mu.Unlock()

	res, err := r.client.CheckUser(ctx, claim.ExternalID())
	if err != nil {
		// Backend inalcanzable == no registrado. Se loguea y se
		// cuenta aparte, pero el estado terminal es el mismo.
		r.log.Warn("check de registro falló, tratando como no registrado",
			logger.ExternalID(claim.ExternalID()), logger.Err(err))
		r.finishUnregistered(ctx, claim, "backend_error")
		return
	}

	if !res.Exists {
		r.finishUnregistered(ctx, claim, "unregistered")
		return
	}

	role := ParseRole(res.Role)
	tokens, err := r.client.Login(ctx, backend.LoginRequest{
		ExternalID: claim.ExternalID(),
		Role:       role.String(),
		InitData:   r.bridge.InitDataRaw(),
	})
	if err != nil {
		r.log.Warn("login falló, tratando como no registrado",
			logger.ExternalID(claim.ExternalID()), logger.Err(err))
		r.finishUnregistered(ctx, claim, "backend_error")
		return
	}

	profile := mergeProfile(claim, res.User, role)
	// El admin siempre pasa por el password antes del dashboard.
	profile.NeedsSecondaryAuth = profile.Role == RoleAdmin

	r.mu.Lock()
	if r.ready {
		// Perdió contra el watchdog: descartar sin persistir.
		r.mu.Unlock()
		return
	}
	r.profile = profile
	r.role = profile.Role
	r.markReadyLocked("registered")
	r.mu.Unlock()

	r.persistProfile(ctx, profile)
	r.persistTokens(ctx, tokens)
	r.log.Info("sesión resuelta",
		logger.ExternalID(profile.ExternalID), logger.Role(profile.Role.String()))
}

// finishUnregistered arma el perfil no registrado desde el claim local.
// Si el id externo es el admin configurado, el rol es admin y queda
// pendiente el secondary auth.
func (r *Resolver) finishUnregistered(ctx context.Context, claim telegram.Claim, outcome string) {
	profile := unregisteredProfile(claim)
	if r.cfg.AdminExternalID != "" && claim.ExternalID() == r.cfg.AdminExternalID {
		profile.Role = RoleAdmin
		profile.NeedsSecondaryAuth = true
	}

	r.mu.Lock()
	if r.ready {
		r.mu.Unlock()
		return
	}
	r.profile = profile
	r.role = profile.Role
	r.markReadyLocked(outcome)
	r.mu.Unlock()

	r.persistProfile(ctx, profile)
}

// applyDevIdentityLocked sintetiza la identidad fija de desarrollo.
// Caller debe tener el lock.
func (r *Resolver) applyDevIdentityLocked(outcome string) {
	claim := telegram.FallbackClaim()
	r.identity = &claim
	r.profile = &Profile{
		ID:           claim.ID,
		ExternalID:   claim.ExternalID(),
		FirstName:    claim.FirstName,
		Username:     claim.Username,
		Role:         RoleUser,
		IsRegistered: true,
		LanguageCode: claim.LanguageCode,
	}
	r.role = RoleUser
	r.markReadyLocked(outcome)
}

// markReadyLocked es el check-and-set de ready. Caller debe tener el
// lock. La transición ocurre exactamente una vez.
func (r *Resolver) markReadyLocked(outcome string) {
	if r.ready {
		return
	}
	r.ready = true
	r.loading = false
	if r.watchdog != nil {
		r.watchdog.Stop()
	}
	metrics.ResolverOutcomes.WithLabelValues(outcome).Inc()
}

func (r *Resolver) snapshotLocked() Snapshot {
	return Snapshot{
		Identity:  r.identity,
		Profile:   r.profile,
		Role:      r.role,
		IsReady:   r.ready,
		IsLoading: r.loading,
	}
}

// Snapshot retorna la vista actual del estado.
func (r *Resolver) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshotLocked()
}

// SetProfile reemplaza el perfil. Si p es no-nil también sincroniza el
// rol con p.Role y persiste ambos (invariante perfil/rol).
func (r *Resolver) SetProfile(p *Profile) {
	ctx := context.Background()
	r.mu.Lock()
	r.profile = p
	if p != nil {
		r.role = p.Role
	}
	r.mu.Unlock()

	if p != nil {
		r.persistProfile(ctx, p)
	}
}

// SetRole cambia solo el rol, sin tocar el perfil. Lo usa el tooling
// de desarrollo para cambiar de dashboard.
func (r *Resolver) SetRole(role Role) {
	r.mu.Lock()
	r.role = role
	r.mu.Unlock()

	if err := r.kv.Set(context.Background(), kv.KeyRole, role.String()); err != nil {
		r.log.Warn("no se pudo persistir rol", logger.Err(err))
	}
}

// Logout limpia perfil, rol y todas las keys de sesión persistidas.
// No toca el historial de notificaciones: ese estado es del
// notification store.
func (r *Resolver) Logout() {
	r.mu.Lock()
	r.profile = nil
	r.role = RoleUser
	r.mu.Unlock()

	ctx := context.Background()
	for _, k := range kv.SessionKeys {
		if err := r.kv.Delete(ctx, k); err != nil {
			r.log.Warn("no se pudo borrar key de sesión", logger.Key(k), logger.Err(err))
		}
	}
	r.log.Info("logout")
}

// CompleteAdminAuth es el secondary auth del admin: login con password.
// Es la única salida de GateAdminNeedsPassword. En éxito guarda los
// tokens y limpia NeedsSecondaryAuth.
func (r *Resolver) CompleteAdminAuth(ctx context.Context, password string) error {
	r.mu.Lock()
	externalID := r.cfg.AdminExternalID
	if r.identity != nil {
		externalID = r.identity.ExternalID()
	} else if r.profile != nil && r.profile.ExternalID != "" {
		externalID = r.profile.ExternalID
	}
	r.mu.Unlock()

	tokens, err := r.client.Login(ctx, backend.LoginRequest{
		ExternalID: externalID,
		Role:       RoleAdmin.String(),
		Password:   password,
	})
	if err != nil {
		return err
	}
	r.persistTokens(ctx, tokens)

	r.mu.Lock()
	if r.profile == nil {
		r.profile = &Profile{ExternalID: externalID, Role: RoleAdmin, IsRegistered: true}
	}
	r.profile.NeedsSecondaryAuth = false
	r.profile.Role = RoleAdmin
	// El login aceptado implica que el admin existe en el backend.
	r.profile.IsRegistered = true
	r.role = RoleAdmin
	p := *r.profile
	r.mu.Unlock()

	r.persistProfile(ctx, &p)
	return nil
}

// HasAccessToken indica si hay un access token persistido.
func (r *Resolver) HasAccessToken() bool {
	_, err := r.kv.Get(context.Background(), kv.KeyAccessToken)
	return err == nil
}

func (r *Resolver) persistProfile(ctx context.Context, p *Profile) {
	b, err := json.Marshal(p)
	if err != nil {
		r.log.Warn("no se pudo serializar perfil", logger.Err(err))
		return
	}
	if err := r.kv.Set(ctx, kv.KeyProfile, string(b)); err != nil {
		r.log.Warn("no se pudo persistir perfil", logger.Err(err))
	}
	if err := r.kv.Set(ctx, kv.KeyRole, p.Role.String()); err != nil {
		r.log.Warn("no se pudo persistir rol", logger.Err(err))
	}
}

func (r *Resolver) persistTokens(ctx context.Context, t backend.TokenPair) {
	if t.AccessToken != "" {
		if err := r.kv.Set(ctx, kv.KeyAccessToken, t.AccessToken); err != nil {
			r.log.Warn("no se pudo persistir access token", logger.Err(err))
		}
	}
	if t.RefreshToken != "" {
		if err := r.kv.Set(ctx, kv.KeyRefreshToken, t.RefreshToken); err != nil {
			r.log.Warn("no se pudo persistir refresh token", logger.Err(err))
		}
	}
}
