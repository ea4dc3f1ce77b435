package session

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Tepexicuapan3/SIRES-sub001/internal/authz"
	"github.com/Tepexicuapan3/SIRES-sub001/internal/cache"
	"github.com/Tepexicuapan3/SIRES-sub001/internal/identity"
)

// fakeClient implementa identity.Client para tests, con hooks por operación.
type fakeClient struct {
	loginFn      func(ctx context.Context, username, password string) (*identity.Principal, error)
	refreshFn    func(ctx context.Context) (*identity.Principal, error)
	logoutFn     func(ctx context.Context) error
	onboardingFn func(ctx context.Context, newPassword string, terms bool) (*identity.Principal, error)

	refreshCalls int32
	logoutCalls  int32
}

func (f *fakeClient) Login(ctx context.Context, u, p string) (*identity.Principal, error) {
	if f.loginFn != nil {
		return f.loginFn(ctx, u, p)
	}
	return testPrincipal(), nil
}

func (f *fakeClient) Refresh(ctx context.Context) (*identity.Principal, error) {
	atomic.AddInt32(&f.refreshCalls, 1)
	if f.refreshFn != nil {
		return f.refreshFn(ctx)
	}
	return testPrincipal(), nil
}

func (f *fakeClient) Logout(ctx context.Context) error {
	atomic.AddInt32(&f.logoutCalls, 1)
	if f.logoutFn != nil {
		return f.logoutFn(ctx)
	}
	return nil
}

func (f *fakeClient) CurrentPrincipal(ctx context.Context) (*identity.Principal, error) {
	return testPrincipal(), nil
}

func (f *fakeClient) CompleteOnboarding(ctx context.Context, pw string, terms bool) (*identity.Principal, error) {
	if f.onboardingFn != nil {
		return f.onboardingFn(ctx, pw, terms)
	}
	p := testPrincipal()
	p.MustChangePassword = false
	return p, nil
}

func (f *fakeClient) RequestResetCode(ctx context.Context, email string) error { return nil }

func (f *fakeClient) VerifyResetCode(ctx context.Context, email, code string) (*identity.ResetVerification, error) {
	return &identity.ResetVerification{Valid: true, ResetToken: "rt"}, nil
}

func (f *fakeClient) ResetPassword(ctx context.Context, pw string) (*identity.Principal, error) {
	return testPrincipal(), nil
}

func newManager(cl identity.Client) *Manager {
	return NewManager(ManagerDeps{Client: cl, CallTimeout: 2 * time.Second})
}

func TestManager_LoginSuccess(t *testing.T) {
	m := newManager(&fakeClient{})

	p, err := m.Login(context.Background(), "rlopez", "secreta")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if p == nil || p.ID != "u-77" {
		t.Fatalf("login principal = %+v", p)
	}
	if m.State() != Authenticated {
		t.Fatalf("state = %v, want authenticated", m.State())
	}
}

func TestManager_LoginFailureStaysAnonymous(t *testing.T) {
	cl := &fakeClient{
		loginFn: func(context.Context, string, string) (*identity.Principal, error) {
			return nil, identity.E(identity.KindInvalidCredentials, "bad password")
		},
	}
	m := newManager(cl)

	_, err := m.Login(context.Background(), "rlopez", "mala")
	if err == nil {
		t.Fatal("expected error")
	}
	if identity.KindOf(err) != identity.KindInvalidCredentials {
		t.Fatalf("kind = %v", identity.KindOf(err))
	}
	if m.State() != Anonymous {
		t.Fatalf("state after failed login = %v, want anonymous", m.State())
	}
	if m.Current() != nil {
		t.Fatal("no principal must be stored after failed login")
	}
}

func TestManager_LoginCancellationResolvesToAnonymous(t *testing.T) {
	cl := &fakeClient{
		loginFn: func(ctx context.Context, _, _ string) (*identity.Principal, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		},
	}
	m := NewManager(ManagerDeps{Client: cl, CallTimeout: 20 * time.Millisecond})

	_, err := m.Login(context.Background(), "rlopez", "secreta")
	if err == nil {
		t.Fatal("expected timeout error")
	}
	// La sesión jamás queda colgada en Authenticating.
	if m.State() != Anonymous {
		t.Fatalf("state after abandoned login = %v, want anonymous", m.State())
	}
}

func TestManager_LoginPreservesOnboardingFlag(t *testing.T) {
	cl := &fakeClient{
		loginFn: func(context.Context, string, string) (*identity.Principal, error) {
			p := testPrincipal()
			p.MustChangePassword = true
			return p, nil
		},
	}
	m := newManager(cl)

	p, err := m.Login(context.Background(), "rlopez", "temporal")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if !p.MustChangePassword {
		t.Fatal("MustChangePassword must be preserved verbatim on login")
	}
	if m.State() != Authenticated {
		t.Fatal("onboarding-pending login is still authenticated")
	}

	// Completar onboarding reemplaza el Principal con la bandera apagada.
	p2, err := m.CompleteOnboarding(context.Background(), "NuevaSegura1!", true)
	if err != nil {
		t.Fatalf("onboarding: %v", err)
	}
	if p2.MustChangePassword {
		t.Fatal("flag must flip to false on the replaced principal")
	}
	if p2.ID != p.ID {
		t.Fatal("onboarding must keep the same principal id")
	}
}

func TestManager_OnboardingFailureKeepsPrincipal(t *testing.T) {
	cl := &fakeClient{
		onboardingFn: func(context.Context, string, bool) (*identity.Principal, error) {
			return nil, identity.E(identity.KindPasswordTooWeak, "too short")
		},
	}
	m := newManager(cl)
	if _, err := m.Login(context.Background(), "rlopez", "temporal"); err != nil {
		t.Fatalf("login: %v", err)
	}
	before := m.Current()

	_, err := m.CompleteOnboarding(context.Background(), "123", true)
	if identity.KindOf(err) != identity.KindPasswordTooWeak {
		t.Fatalf("kind = %v", identity.KindOf(err))
	}
	if m.State() != Authenticated {
		t.Fatal("failed onboarding must not change session state")
	}
	if m.Current() != before {
		t.Fatal("failed onboarding must not replace the principal")
	}
}

func TestManager_LogoutUnconditional(t *testing.T) {
	cl := &fakeClient{
		logoutFn: func(context.Context) error {
			return identity.E(identity.KindNetworkError, "connection refused")
		},
	}
	m := newManager(cl)
	if _, err := m.Login(context.Background(), "rlopez", "secreta"); err != nil {
		t.Fatalf("login: %v", err)
	}

	// La invalidación remota falla; la limpieza local procede igual.
	m.Logout(context.Background())

	if m.Current() != nil {
		t.Fatal("logout must clear the principal even when remote fails")
	}
	if m.State() != Anonymous {
		t.Fatalf("state = %v, want anonymous", m.State())
	}
	if atomic.LoadInt32(&cl.logoutCalls) != 1 {
		t.Fatal("remote logout must have been attempted")
	}
}

func TestManager_LogoutSurvivesCallerCancellation(t *testing.T) {
	cl := &fakeClient{}
	m := newManager(cl)
	if _, err := m.Login(context.Background(), "rlopez", "secreta"); err != nil {
		t.Fatalf("login: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	m.Logout(ctx)

	if m.State() != Anonymous {
		t.Fatal("logout must complete even with a cancelled caller context")
	}
}

func TestManager_ConcurrentUnauthorizedSingleNotification(t *testing.T) {
	m := newManager(&fakeClient{})
	if _, err := m.Login(context.Background(), "rlopez", "secreta"); err != nil {
		t.Fatalf("login: %v", err)
	}

	var mu sync.Mutex
	notifications := 0
	m.Store().OnExpired(func() {
		mu.Lock()
		notifications++
		mu.Unlock()
	})

	// Dos (y más) 401 casi simultáneos de llamadas en vuelo no relacionadas.
	var wg sync.WaitGroup
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.HandleUnauthorized(context.Background())
		}()
	}
	wg.Wait()

	if notifications != 1 {
		t.Fatalf("expired notifications = %d, want exactly 1", notifications)
	}
	if m.State() != Anonymous {
		t.Fatalf("state after cleanup = %v, want anonymous (not stuck in expired)", m.State())
	}
	if m.Current() != nil {
		t.Fatal("no principal may survive expiry")
	}
}

func TestManager_RefreshReplacesPrincipal(t *testing.T) {
	refreshed := testPrincipal()
	refreshed.Permissions = []string{"expedientes:read", "usuarios:read"}
	cl := &fakeClient{
		refreshFn: func(context.Context) (*identity.Principal, error) {
			return refreshed, nil
		},
	}
	m := newManager(cl)
	if _, err := m.Login(context.Background(), "rlopez", "secreta"); err != nil {
		t.Fatalf("login: %v", err)
	}

	p, err := m.Refresh(context.Background())
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if p.ID != "u-77" {
		t.Fatal("refresh must keep the same principal id")
	}
	if !m.Evaluate(authz.Permission("usuarios:read")) {
		t.Fatal("permission checks must see the refreshed principal")
	}
}

func TestManager_ConcurrentRefreshCoalesces(t *testing.T) {
	release := make(chan struct{})
	cl := &fakeClient{
		refreshFn: func(ctx context.Context) (*identity.Principal, error) {
			<-release
			return testPrincipal(), nil
		},
	}
	m := newManager(cl)
	if _, err := m.Login(context.Background(), "rlopez", "secreta"); err != nil {
		t.Fatalf("login: %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = m.Refresh(context.Background())
		}()
	}
	// Dar tiempo a que los cinco entren al singleflight antes de liberar.
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	if n := atomic.LoadInt32(&cl.refreshCalls); n != 1 {
		t.Fatalf("backend refresh calls = %d, want 1 (coalesced)", n)
	}
}

func TestManager_RefreshExpiryForcesTransition(t *testing.T) {
	cl := &fakeClient{
		refreshFn: func(context.Context) (*identity.Principal, error) {
			return nil, identity.E(identity.KindTokenExpired, "refresh token expired")
		},
	}
	m := newManager(cl)
	if _, err := m.Login(context.Background(), "rlopez", "secreta"); err != nil {
		t.Fatalf("login: %v", err)
	}

	fired := 0
	m.Store().OnExpired(func() { fired++ })

	_, err := m.Refresh(context.Background())
	if !identity.IsExpiry(identity.KindOf(err)) {
		t.Fatalf("kind = %v, want an expiry kind", identity.KindOf(err))
	}
	if fired != 1 {
		t.Fatalf("expired notification fired %d times, want 1", fired)
	}
	if m.State() != Anonymous {
		t.Fatalf("state = %v, want anonymous after cleanup", m.State())
	}
}

func TestManager_TransientRefreshErrorKeepsSession(t *testing.T) {
	cl := &fakeClient{
		refreshFn: func(context.Context) (*identity.Principal, error) {
			return nil, identity.E(identity.KindServiceUnavailable, "maintenance")
		},
	}
	m := newManager(cl)
	if _, err := m.Login(context.Background(), "rlopez", "secreta"); err != nil {
		t.Fatalf("login: %v", err)
	}

	_, err := m.Refresh(context.Background())
	if identity.KindOf(err) != identity.KindServiceUnavailable {
		t.Fatalf("kind = %v", identity.KindOf(err))
	}
	// Errores transitorios se reportan al caller y el estado no cambia.
	if m.State() != Authenticated {
		t.Fatalf("state = %v, want authenticated", m.State())
	}
	if m.Current() == nil {
		t.Fatal("principal must survive a transient refresh error")
	}
}

func TestManager_LockoutBlocksLogin(t *testing.T) {
	failing := &fakeClient{
		loginFn: func(context.Context, string, string) (*identity.Principal, error) {
			return nil, identity.E(identity.KindInvalidCredentials, "bad password")
		},
	}
	lk := NewLockout(cache.NewMemory("t"), LockoutConfig{
		Threshold:  2,
		BaseWindow: time.Minute,
	})
	m := NewManager(ManagerDeps{Client: failing, Lockout: lk, CallTimeout: time.Second})

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		if _, err := m.Login(ctx, "rlopez", "mala"); err == nil {
			t.Fatal("expected invalid credentials")
		}
	}

	// Tercer intento: el lockout local corta antes de llegar al backend.
	_, err := m.Login(ctx, "rlopez", "secreta")
	if identity.KindOf(err) != identity.KindRateLimitExceeded {
		t.Fatalf("kind = %v, want rate_limit_exceeded", identity.KindOf(err))
	}
	// El corte local es distinguible de un 429 del backend.
	if !errors.Is(err, ErrLockedOut) {
		t.Fatalf("err = %v, want ErrLockedOut", err)
	}

	// El reset explícito rehabilita el login.
	lk.Reset(ctx, "rlopez")
	ok := &fakeClient{}
	m2 := NewManager(ManagerDeps{Client: ok, Lockout: lk, CallTimeout: time.Second})
	if _, err := m2.Login(ctx, "rlopez", "secreta"); err != nil {
		t.Fatalf("login after reset: %v", err)
	}
}

func TestManager_LoginErrorIsTyped(t *testing.T) {
	cl := &fakeClient{
		loginFn: func(context.Context, string, string) (*identity.Principal, error) {
			return nil, identity.E(identity.KindAccountInactive, "disabled by admin")
		},
	}
	m := newManager(cl)

	_, err := m.Login(context.Background(), "rlopez", "secreta")
	var ie *identity.Error
	if !errors.As(err, &ie) || ie.Kind != identity.KindAccountInactive {
		t.Fatalf("caller must be able to discriminate the error kind, got %v", err)
	}
}
