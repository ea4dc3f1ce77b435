package identity

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestAPIClient_LoginSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/api/auth/login", r.URL.Path)

		var in map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		require.Equal(t, "rlopez", in["username"])

		writeJSON(w, http.StatusOK, map[string]any{
			"user": map[string]any{
				"id":          "u-77",
				"username":    "rlopez",
				"permissions": []string{"expedientes:read"},
			},
			"access_token":  "at-1",
			"refresh_token": "rt-1",
		})
	}))
	defer srv.Close()

	tokens := NewTokenState(TokenPair{})
	cl := NewAPI(srv.URL, time.Second).Session(tokens)

	p, err := cl.Login(context.Background(), "rlopez", "secreta")
	require.NoError(t, err)
	require.Equal(t, "u-77", p.ID)
	require.Equal(t, []string{"expedientes:read"}, p.Permissions)

	// Los tokens se capturan en el estado del caller, nunca en el Principal.
	require.Equal(t, "at-1", tokens.Snapshot().AccessToken)
	require.Equal(t, "rt-1", tokens.Snapshot().RefreshToken)
}

func TestAPIClient_ErrorCodeMapping(t *testing.T) {
	cases := []struct {
		status int
		code   string
		want   Kind
	}{
		{http.StatusUnauthorized, "invalid_credentials", KindInvalidCredentials},
		{http.StatusForbidden, "account_locked", KindAccountLocked},
		{http.StatusForbidden, "account_inactive", KindAccountInactive},
		{http.StatusTooManyRequests, "", KindRateLimitExceeded},
		{http.StatusServiceUnavailable, "", KindServiceUnavailable},
		{http.StatusInternalServerError, "", KindInternalServerError},
		// 401 sin código conocido durante login = credenciales inválidas.
		{http.StatusUnauthorized, "whatever_new_code", KindInvalidCredentials},
	}

	for _, tc := range cases {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, tc.status, map[string]string{"code": tc.code, "message": "detail"})
		}))

		cl := NewAPI(srv.URL, time.Second).Session(nil)
		_, err := cl.Login(context.Background(), "u", "p")
		require.Error(t, err, "status=%d code=%q", tc.status, tc.code)
		require.Equal(t, tc.want, KindOf(err), "status=%d code=%q", tc.status, tc.code)

		srv.Close()
	}
}

func TestAPIClient_AuthenticatedCallExpiry(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"code": "gone"})
	}))
	defer srv.Close()

	cl := NewAPI(srv.URL, time.Second).Session(NewTokenState(TokenPair{AccessToken: "at", RefreshToken: "rt"}))

	// 401 sin código reconocido en una llamada autenticada = sesión expirada.
	_, err := cl.CurrentPrincipal(context.Background())
	require.True(t, IsExpiry(KindOf(err)), "kind = %v", KindOf(err))
}

func TestAPIClient_RefreshRotatesTokens(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var in map[string]string
		_ = json.NewDecoder(r.Body).Decode(&in)
		require.Equal(t, "rt-old", in["refresh_token"])

		writeJSON(w, http.StatusOK, map[string]any{
			"user":          map[string]any{"id": "u-77", "username": "rlopez"},
			"access_token":  "at-new",
			"refresh_token": "rt-new",
		})
	}))
	defer srv.Close()

	tokens := NewTokenState(TokenPair{AccessToken: "at-old", RefreshToken: "rt-old"})
	cl := NewAPI(srv.URL, time.Second).Session(tokens)

	p, err := cl.Refresh(context.Background())
	require.NoError(t, err)
	require.Equal(t, "u-77", p.ID)
	require.Equal(t, "at-new", tokens.Snapshot().AccessToken)
	require.Equal(t, "rt-new", tokens.Snapshot().RefreshToken)
}

func TestAPIClient_RefreshWithoutTokenIsExpired(t *testing.T) {
	cl := NewAPI("http://127.0.0.1:0", time.Second).Session(nil)
	_, err := cl.Refresh(context.Background())
	require.Equal(t, KindSessionExpired, KindOf(err))
}

func TestAPIClient_LogoutToleratesExpiredToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"code": "token_expired"})
	}))
	defer srv.Close()

	tokens := NewTokenState(TokenPair{AccessToken: "stale", RefreshToken: "stale"})
	cl := NewAPI(srv.URL, time.Second).Session(tokens)

	// Un token ya inválido no es un error de logout: no había nada que
	// invalidar. Los tokens locales quedan limpios.
	require.NoError(t, cl.Logout(context.Background()))
	require.Empty(t, tokens.Snapshot().AccessToken)
	require.Empty(t, tokens.Snapshot().RefreshToken)
}

func TestAPIClient_NetworkErrorKind(t *testing.T) {
	// Puerto cerrado: debe mapear a un kind de red, nunca a pánico ni a
	// un error crudo sin clasificar.
	cl := NewAPI("http://127.0.0.1:1", 200*time.Millisecond).Session(nil)
	_, err := cl.Login(context.Background(), "u", "p")
	require.Error(t, err)
	k := KindOf(err)
	require.Contains(t, []Kind{KindNetworkError, KindTimeoutError}, k)
}

func TestAPIClient_VerifyResetCodeCapturesToken(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/auth/password/verify-code", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"valid": true, "reset_token": "reset-1"})
	})
	mux.HandleFunc("/api/auth/password/reset", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer reset-1", r.Header.Get("Authorization"))
		writeJSON(w, http.StatusOK, map[string]any{
			"user":          map[string]any{"id": "u-77", "username": "rlopez"},
			"access_token":  "at-2",
			"refresh_token": "rt-2",
		})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	tokens := NewTokenState(TokenPair{})
	cl := NewAPI(srv.URL, time.Second).Session(tokens)

	v, err := cl.VerifyResetCode(context.Background(), "rlopez@salud.cdmx.gob.mx", "123456")
	require.NoError(t, err)
	require.True(t, v.Valid)

	p, err := cl.ResetPassword(context.Background(), "NuevaSegura1!")
	require.NoError(t, err)
	require.Equal(t, "u-77", p.ID)
	require.Empty(t, tokens.Snapshot().ResetToken, "reset token is single-use")
	require.Equal(t, "at-2", tokens.Snapshot().AccessToken)
}

func TestAPIClient_ConcurrentRefreshAndSnapshot(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"user":          map[string]any{"id": "u-77", "username": "rlopez"},
			"access_token":  "at-new",
			"refresh_token": "rt-new",
		})
	}))
	defer srv.Close()

	tokens := NewTokenState(TokenPair{AccessToken: "at-old", RefreshToken: "rt-old"})
	cl := NewAPI(srv.URL, time.Second).Session(tokens)

	// Lectores y escritores concurrentes sobre el mismo estado de tokens.
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, _ = cl.Refresh(context.Background())
		}()
		go func() {
			defer wg.Done()
			_ = tokens.Snapshot().AccessToken
		}()
	}
	wg.Wait()

	require.Equal(t, "at-new", tokens.Snapshot().AccessToken)
}
