package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Tepexicuapan3/SIRES-sub001/internal/authz"
	"github.com/Tepexicuapan3/SIRES-sub001/internal/identity"
	"github.com/Tepexicuapan3/SIRES-sub001/internal/session"
)

type stubClient struct{}

func (stubClient) Login(context.Context, string, string) (*identity.Principal, error) {
	return nil, identity.E(identity.KindServiceUnavailable, "stub")
}
func (stubClient) Refresh(context.Context) (*identity.Principal, error) {
	return nil, identity.E(identity.KindServiceUnavailable, "stub")
}
func (stubClient) Logout(context.Context) error { return nil }
func (stubClient) CurrentPrincipal(context.Context) (*identity.Principal, error) {
	return nil, identity.E(identity.KindServiceUnavailable, "stub")
}
func (stubClient) CompleteOnboarding(context.Context, string, bool) (*identity.Principal, error) {
	return nil, identity.E(identity.KindServiceUnavailable, "stub")
}
func (stubClient) RequestResetCode(context.Context, string) error {
	return identity.E(identity.KindServiceUnavailable, "stub")
}
func (stubClient) VerifyResetCode(context.Context, string, string) (*identity.ResetVerification, error) {
	return nil, identity.E(identity.KindServiceUnavailable, "stub")
}
func (stubClient) ResetPassword(context.Context, string) (*identity.Principal, error) {
	return nil, identity.E(identity.KindServiceUnavailable, "stub")
}

func authenticatedRequest(t *testing.T, perms ...string) *http.Request {
	t.Helper()
	mgr := session.NewManager(session.ManagerDeps{Client: stubClient{}})
	mgr.Store().SetAuthenticated(&identity.Principal{
		ID:          "u-9",
		Username:    "rlopez",
		Permissions: perms,
	})
	ls := &LiveSession{ID: "sid-test", Manager: mgr}

	r := httptest.NewRequest(http.MethodGet, "/v1/recurso", nil)
	return r.WithContext(context.WithValue(r.Context(), sessKey{}, ls))
}

func runGuard(mw func(http.Handler) http.Handler, r *http.Request) (int, bool) {
	var reached bool
	h := mw(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		reached = true
		w.WriteHeader(http.StatusOK)
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, r)
	return rec.Code, reached
}

func TestRequirePermission_AnonymousGets401(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/v1/recurso", nil)
	code, reached := runGuard(RequirePermission(authz.Permission("pacientes:leer")), r)
	if code != http.StatusUnauthorized || reached {
		t.Fatalf("sin sesión: code=%d reached=%v", code, reached)
	}
}

func TestRequirePermission_DeniedGets403(t *testing.T) {
	r := authenticatedRequest(t, "citas:agendar")
	code, reached := runGuard(RequirePermission(authz.Permission("pacientes:leer")), r)
	if code != http.StatusForbidden || reached {
		t.Fatalf("sin permiso: code=%d reached=%v", code, reached)
	}
}

func TestRequirePermission_AllowedPasses(t *testing.T) {
	r := authenticatedRequest(t, "pacientes:leer")
	code, reached := runGuard(RequirePermission(authz.Permission("pacientes:leer")), r)
	if code != http.StatusOK || !reached {
		t.Fatalf("con permiso: code=%d reached=%v", code, reached)
	}
}

func TestRequirePermission_WildcardPasses(t *testing.T) {
	r := authenticatedRequest(t, "*")
	code, reached := runGuard(RequirePermission(authz.AllOf("a", "b", "c")), r)
	if code != http.StatusOK || !reached {
		t.Fatalf("wildcard: code=%d reached=%v", code, reached)
	}
}

func TestRequireAdmin_RejectsNonWildcard(t *testing.T) {
	r := authenticatedRequest(t, "admin", "usuarios:administrar")
	code, reached := runGuard(RequireAdmin(), r)
	if code != http.StatusForbidden || reached {
		t.Fatalf("códigos con pinta admin pasaron: code=%d reached=%v", code, reached)
	}
}

func TestRequireSession(t *testing.T) {
	if code, _ := runGuard(RequireSession(), httptest.NewRequest(http.MethodGet, "/v1/x", nil)); code != http.StatusUnauthorized {
		t.Fatalf("sin sesión: code=%d", code)
	}
	if code, _ := runGuard(RequireSession(), authenticatedRequest(t)); code != http.StatusOK {
		t.Fatalf("con sesión: code=%d", code)
	}
}
