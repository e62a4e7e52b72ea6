package session

import (
	"context"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/salvacomida/miniapp/internal/backend"
	"github.com/salvacomida/miniapp/internal/kv"
	"github.com/salvacomida/miniapp/internal/telegram"
)

// fakeClient implementa AuthClient con respuestas canned y contadores.
type fakeClient struct {
	mu         sync.Mutex
	checkCalls int
	checkRes   backend.CheckResult
	checkErr   error
	checkDelay time.Duration
	loginRes   backend.TokenPair
	loginErr   error
	loginReqs  []backend.LoginRequest
}

func (f *fakeClient) CheckUser(ctx context.Context, externalID string) (backend.CheckResult, error) {
	f.mu.Lock()
	f.checkCalls++
	f.mu.Unlock()
	if f.checkDelay > 0 {
		time.Sleep(f.checkDelay)
	}
	return f.checkRes, f.checkErr
}

func (f *fakeClient) Login(ctx context.Context, req backend.LoginRequest) (backend.TokenPair, error) {
	f.mu.Lock()
	f.loginReqs = append(f.loginReqs, req)
	f.mu.Unlock()
	return f.loginRes, f.loginErr
}

func (f *fakeClient) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.checkCalls
}

// bridgeFor arma un EnvBridge con un user embebido en el init data.
func bridgeFor(id, firstName string) telegram.Bridge {
	raw := "user=" + url.QueryEscape(`{"id":`+id+`,"first_name":"`+firstName+`"}`) + "&auth_date=1717171717&hash=xx"
	return telegram.NewEnvBridge(raw)
}

func TestResolve_ScenarioA_NoBridgeProd(t *testing.T) {
	store := kv.NewMemory()
	r := New(store, &fakeClient{}, telegram.NoBridge{}, Config{Env: "prod"})

	snap := r.Resolve(context.Background())

	require.True(t, snap.IsReady)
	require.False(t, snap.IsLoading)
	require.NotNil(t, snap.Profile)
	require.False(t, snap.Profile.IsRegistered)
	require.Equal(t, RoleUser, snap.Role)
	require.Equal(t, GateUnregistered, r.Gate())
}

func TestResolve_ScenarioB_RegisteredSeller(t *testing.T) {
	store := kv.NewMemory()
	fc := &fakeClient{
		checkRes: backend.CheckResult{
			Exists: true,
			Role:   "seller",
			User:   &backend.UserRecord{ID: 31, TelegramID: "777", BusinessName: "Verdulería Sur"},
		},
		loginRes: backend.TokenPair{AccessToken: "at-1", RefreshToken: "rt-1"},
	}
	r := New(store, fc, bridgeFor("777", "Marta"), Config{Env: "prod"})

	snap := r.Resolve(context.Background())

	require.True(t, snap.IsReady)
	require.NotNil(t, snap.Profile)
	require.Equal(t, RoleSeller, snap.Profile.Role)
	require.True(t, snap.Profile.IsRegistered)
	require.Equal(t, "Verdulería Sur", snap.Profile.BusinessName)
	// el claim llena los campos que el backend no trae
	require.Equal(t, "Marta", snap.Profile.FirstName)

	at, err := store.Get(context.Background(), kv.KeyAccessToken)
	require.NoError(t, err)
	require.Equal(t, "at-1", at)

	require.Equal(t, GateRegisteredSeller, r.Gate())
}

func TestResolve_ScenarioC_BackendError(t *testing.T) {
	store := kv.NewMemory()
	fc := &fakeClient{checkErr: context.DeadlineExceeded}
	r := New(store, fc, bridgeFor("888", "Pedro"), Config{Env: "prod"})

	var snap Snapshot
	require.NotPanics(t, func() {
		snap = r.Resolve(context.Background())
	})

	require.True(t, snap.IsReady)
	require.NotNil(t, snap.Profile)
	require.False(t, snap.Profile.IsRegistered)
	require.Equal(t, GateUnregistered, r.Gate())
}

func TestResolve_Idempotent(t *testing.T) {
	store := kv.NewMemory()
	fc := &fakeClient{checkRes: backend.CheckResult{Exists: false}}
	r := New(store, fc, bridgeFor("1", "Ana"), Config{Env: "prod"})

	first := r.Resolve(context.Background())
	second := r.Resolve(context.Background())

	require.Equal(t, first, second)
	require.Equal(t, 1, fc.calls(), "el segundo Resolve no debe repetir el lookup")
}

func TestResolve_DevIdentity(t *testing.T) {
	store := kv.NewMemory()
	fc := &fakeClient{}
	r := New(store, fc, telegram.NoBridge{}, Config{Env: "dev", DevIdentity: true})

	snap := r.Resolve(context.Background())

	require.True(t, snap.IsReady)
	require.True(t, snap.Profile.IsRegistered)
	require.Equal(t, RoleUser, snap.Role)
	require.Equal(t, 0, fc.calls(), "modo dev no toca el backend")
	require.Equal(t, GateRegisteredUser, r.Gate())
}

func TestResolve_WatchdogWinsOverHungBackend(t *testing.T) {
	store := kv.NewMemory()
	fc := &fakeClient{
		checkDelay: 150 * time.Millisecond,
		checkRes:   backend.CheckResult{Exists: true, Role: "seller"},
		loginRes:   backend.TokenPair{AccessToken: "late"},
	}
	r := New(store, fc, bridgeFor("5", "Luz"), Config{Env: "dev", WatchdogTimeout: 20 * time.Millisecond})

	snap := r.Resolve(context.Background())

	// el watchdog ganó: identidad dev sintetizada, y el resultado
	// tardío del backend no pisa el estado ready
	require.True(t, snap.IsReady)
	require.True(t, snap.Profile.IsRegistered)
	require.Equal(t, telegram.FallbackID, snap.Identity.ID)
	require.Equal(t, RoleUser, snap.Role)
}

func TestUnregisteredAdminID(t *testing.T) {
	store := kv.NewMemory()
	fc := &fakeClient{checkRes: backend.CheckResult{Exists: false}}
	r := New(store, fc, bridgeFor("4242", "Root"), Config{Env: "prod", AdminExternalID: "4242"})

	snap := r.Resolve(context.Background())

	require.Equal(t, RoleAdmin, snap.Profile.Role)
	require.True(t, snap.Profile.NeedsSecondaryAuth)
	require.Equal(t, GateAdminNeedsPassword, r.Gate())
}

func TestGate_AdminShortCircuitWhileLoading(t *testing.T) {
	store := kv.NewMemory()
	// nunca se llama Resolve: isReady sigue false
	r := New(store, &fakeClient{}, bridgeFor("4242", "Root"), Config{Env: "prod", AdminExternalID: "4242"})

	require.Equal(t, GateAdminNeedsPassword, r.Gate(),
		"admin con id configurado y sin token no puede quedar detrás del spinner")
}

func TestGate_LoadingForNonAdmin(t *testing.T) {
	store := kv.NewMemory()
	r := New(store, &fakeClient{}, bridgeFor("9", "Eva"), Config{Env: "prod", AdminExternalID: "4242"})

	require.Equal(t, GateLoading, r.Gate())
}

func TestDefaultRoleBeforeReadiness(t *testing.T) {
	store := kv.NewMemory()
	require.NoError(t, store.Set(context.Background(), kv.KeyRole, "seller"))

	r := New(store, &fakeClient{}, telegram.NoBridge{}, Config{Env: "prod"})

	snap := r.Snapshot()
	require.False(t, snap.IsReady)
	require.Equal(t, RoleSeller, snap.Role, "el rol default sale del storage persistido")

	r2 := New(kv.NewMemory(), &fakeClient{}, telegram.NoBridge{}, Config{Env: "prod"})
	require.Equal(t, RoleUser, r2.Snapshot().Role)
}

func TestSetProfile_SyncsRole(t *testing.T) {
	store := kv.NewMemory()
	r := New(store, &fakeClient{}, telegram.NoBridge{}, Config{Env: "prod"})

	r.SetProfile(&Profile{ExternalID: "1", Role: RoleSeller, IsRegistered: true})

	require.Equal(t, RoleSeller, r.Snapshot().Role)
	persisted, err := store.Get(context.Background(), kv.KeyRole)
	require.NoError(t, err)
	require.Equal(t, "seller", persisted)

	// SetProfile(nil) no toca el rol
	r.SetProfile(nil)
	require.Equal(t, RoleSeller, r.Snapshot().Role)
	require.Nil(t, r.Snapshot().Profile)
}

func TestLogout_ClearsSessionPreservesNotifications(t *testing.T) {
	ctx := context.Background()
	store := kv.NewMemory()
	require.NoError(t, store.Set(ctx, kv.KeyNotifyLog, `[{"id":"n1"}]`))

	fc := &fakeClient{
		checkRes: backend.CheckResult{Exists: true, Role: "seller"},
		loginRes: backend.TokenPair{AccessToken: "at"},
	}
	r := New(store, fc, bridgeFor("777", "Marta"), Config{Env: "prod"})
	r.Resolve(ctx)

	r.Logout()

	snap := r.Snapshot()
	require.Nil(t, snap.Profile)
	require.Equal(t, RoleUser, snap.Role)
	for _, k := range kv.SessionKeys {
		_, err := store.Get(ctx, k)
		require.True(t, kv.IsNotFound(err), "key %s debería estar borrada", k)
	}
	log, err := store.Get(ctx, kv.KeyNotifyLog)
	require.NoError(t, err)
	require.Equal(t, `[{"id":"n1"}]`, log, "el log de notificaciones sobrevive al logout")
}

func TestCompleteAdminAuth_ExitsGate(t *testing.T) {
	ctx := context.Background()
	store := kv.NewMemory()
	fc := &fakeClient{
		checkRes: backend.CheckResult{Exists: false},
		loginRes: backend.TokenPair{AccessToken: "admin-at", RefreshToken: "admin-rt"},
	}
	r := New(store, fc, bridgeFor("4242", "Root"), Config{Env: "prod", AdminExternalID: "4242"})
	r.Resolve(ctx)

	require.Equal(t, GateAdminNeedsPassword, r.Gate())

	require.NoError(t, r.CompleteAdminAuth(ctx, "secreta"))

	require.Equal(t, GateRegisteredAdmin, r.Gate())
	snap := r.Snapshot()
	require.False(t, snap.Profile.NeedsSecondaryAuth)
	require.Equal(t, RoleAdmin, snap.Role)

	// el login llevó la password
	fc.mu.Lock()
	defer fc.mu.Unlock()
	require.NotEmpty(t, fc.loginReqs)
	require.Equal(t, "secreta", fc.loginReqs[len(fc.loginReqs)-1].Password)
}

func TestCompleteAdminAuth_FailureKeepsGate(t *testing.T) {
	ctx := context.Background()
	store := kv.NewMemory()
	fc := &fakeClient{
		checkRes: backend.CheckResult{Exists: false},
		loginErr: &backend.APIError{Status: 401, Code: "invalid_password"},
	}
	r := New(store, fc, bridgeFor("4242", "Root"), Config{Env: "prod", AdminExternalID: "4242"})
	r.Resolve(ctx)

	require.Error(t, r.CompleteAdminAuth(ctx, "mala"))
	require.Equal(t, GateAdminNeedsPassword, r.Gate())
}
