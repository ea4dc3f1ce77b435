package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"
)

// API es el cliente HTTP compartido contra el backend de identidad de SIRES.
// Es seguro para uso concurrente; cada sesión obtiene su propio Client vía
// Session(), ligado a su par de tokens.
type API struct {
	baseURL string
	http    *http.Client
}

// NewAPI crea el cliente compartido. timeout aplica a cada llamada además
// del deadline del contexto.
func NewAPI(baseURL string, timeout time.Duration) *API {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &API{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// Session retorna un Client ligado al estado de tokens dado. El estado se
// muta en login/refresh/reset; el caller lo lee vía Snapshot para persistir.
func (a *API) Session(tokens *TokenState) Client {
	if tokens == nil {
		tokens = NewTokenState(TokenPair{})
	}
	return &apiClient{api: a, tokens: tokens}
}

type apiClient struct {
	api    *API
	tokens *TokenState
}

// principalEnvelope es la respuesta estándar del backend para operaciones
// que entregan un Principal.
type principalEnvelope struct {
	User         *Principal `json:"user"`
	AccessToken  string     `json:"access_token"`
	RefreshToken string     `json:"refresh_token"`
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (c *apiClient) Login(ctx context.Context, username, password string) (*Principal, error) {
	body := map[string]string{"username": username, "password": password}
	var env principalEnvelope
	if err := c.do(ctx, http.MethodPost, "/api/auth/login", body, "", KindInvalidCredentials, &env); err != nil {
		return nil, err
	}
	return c.ingest(&env)
}

func (c *apiClient) Refresh(ctx context.Context) (*Principal, error) {
	rt := c.tokens.Snapshot().RefreshToken
	if rt == "" {
		return nil, E(KindSessionExpired, "no refresh token")
	}
	body := map[string]string{"refresh_token": rt}
	var env principalEnvelope
	if err := c.do(ctx, http.MethodPost, "/api/auth/refresh", body, "", KindSessionExpired, &env); err != nil {
		return nil, err
	}
	return c.ingest(&env)
}

func (c *apiClient) Logout(ctx context.Context) error {
	err := c.do(ctx, http.MethodPost, "/api/auth/logout", nil, c.tokens.Snapshot().AccessToken, KindSessionExpired, nil)
	// El backend responde 401 si el token ya no vale: para logout eso
	// equivale a "ya no hay nada que invalidar".
	if IsExpiry(KindOf(err)) {
		err = nil
	}
	c.tokens.update(func(p *TokenPair) {
		p.AccessToken = ""
		p.RefreshToken = ""
	})
	return err
}

func (c *apiClient) CurrentPrincipal(ctx context.Context) (*Principal, error) {
	var env principalEnvelope
	if err := c.do(ctx, http.MethodGet, "/api/auth/me", nil, c.tokens.Snapshot().AccessToken, KindSessionExpired, &env); err != nil {
		return nil, err
	}
	if env.User == nil {
		return nil, E(KindInternalServerError, "empty principal in response")
	}
	return env.User, nil
}

func (c *apiClient) CompleteOnboarding(ctx context.Context, newPassword string, termsAccepted bool) (*Principal, error) {
	body := map[string]any{"new_password": newPassword, "terms_accepted": termsAccepted}
	var env principalEnvelope
	if err := c.do(ctx, http.MethodPost, "/api/auth/onboarding/complete", body, c.tokens.Snapshot().AccessToken, KindSessionExpired, &env); err != nil {
		return nil, err
	}
	return c.ingest(&env)
}

func (c *apiClient) RequestResetCode(ctx context.Context, email string) error {
	body := map[string]string{"email": email}
	return c.do(ctx, http.MethodPost, "/api/auth/password/forgot", body, "", KindUnknown, nil)
}

func (c *apiClient) VerifyResetCode(ctx context.Context, email, code string) (*ResetVerification, error) {
	body := map[string]string{"email": email, "code": code}
	var out struct {
		Valid      bool   `json:"valid"`
		ResetToken string `json:"reset_token"`
		ExpiresAt  string `json:"expires_at"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/auth/password/verify-code", body, "", KindUnknown, &out); err != nil {
		return nil, err
	}
	v := &ResetVerification{Valid: out.Valid, ResetToken: out.ResetToken}
	if out.ExpiresAt != "" {
		if t, err := time.Parse(time.RFC3339, out.ExpiresAt); err == nil {
			v.ExpiresAt = t
		}
	}
	if v.Valid {
		c.tokens.update(func(p *TokenPair) { p.ResetToken = v.ResetToken })
	}
	return v, nil
}

func (c *apiClient) ResetPassword(ctx context.Context, newPassword string) (*Principal, error) {
	reset := c.tokens.Snapshot().ResetToken
	if reset == "" {
		return nil, E(KindTokenInvalid, "no reset token")
	}
	body := map[string]string{"new_password": newPassword}
	var env principalEnvelope
	if err := c.do(ctx, http.MethodPost, "/api/auth/password/reset", body, reset, KindTokenInvalid, &env); err != nil {
		return nil, err
	}
	c.tokens.update(func(p *TokenPair) { p.ResetToken = "" })
	return c.ingest(&env)
}

// ingest actualiza el estado de tokens con lo que venga en la respuesta y
// retorna el Principal.
func (c *apiClient) ingest(env *principalEnvelope) (*Principal, error) {
	if env.User == nil {
		return nil, E(KindInternalServerError, "empty principal in response")
	}
	c.tokens.update(func(p *TokenPair) {
		if env.AccessToken != "" {
			p.AccessToken = env.AccessToken
		}
		if env.RefreshToken != "" {
			p.RefreshToken = env.RefreshToken
		}
	})
	return env.User, nil
}

// do ejecuta una llamada JSON. authKind es el kind a usar cuando el backend
// responde 401/403 sin un código reconocido: InvalidCredentials durante el
// login, SessionExpired en llamadas ya autenticadas.
func (c *apiClient) do(ctx context.Context, method, path string, body any, bearer string, authKind Kind, out any) error {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return Wrap(KindInternalServerError, err)
		}
		rd = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.api.baseURL+path, rd)
	if err != nil {
		return Wrap(KindInternalServerError, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := c.api.http.Do(req)
	if err != nil {
		return wrapTransport(err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))

	if resp.StatusCode/100 == 2 {
		if out != nil && len(raw) > 0 {
			if err := json.Unmarshal(raw, out); err != nil {
				return Wrap(KindInternalServerError, fmt.Errorf("decode response: %w", err))
			}
		}
		return nil
	}

	var ae apiError
	_ = json.Unmarshal(raw, &ae)
	return &Error{Kind: mapKind(resp.StatusCode, ae.Code, authKind), Detail: strings.TrimSpace(ae.Code + " " + ae.Message)}
}

// knownKinds son los códigos del backend que coinciden 1:1 con la taxonomía.
var knownKinds = map[Kind]bool{
	KindInvalidCredentials: true, KindAccountLocked: true, KindAccountInactive: true,
	KindAccountExpired: true, KindRateLimitExceeded: true, KindTokenExpired: true,
	KindTokenInvalid: true, KindSessionExpired: true, KindTermsNotAccepted: true,
	KindPasswordTooWeak: true, KindOnboardingFailed: true, KindServiceUnavailable: true,
	KindInternalServerError: true,
}

func mapKind(status int, code string, authKind Kind) Kind {
	if k := Kind(strings.ToLower(strings.TrimSpace(code))); knownKinds[k] {
		return k
	}
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return authKind
	case status == http.StatusTooManyRequests:
		return KindRateLimitExceeded
	case status == http.StatusGatewayTimeout:
		return KindTimeoutError
	case status == http.StatusBadGateway || status == http.StatusServiceUnavailable:
		return KindServiceUnavailable
	case status >= 500:
		return KindInternalServerError
	}
	return KindUnknown
}

func wrapTransport(err error) *Error {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return Wrap(KindTimeoutError, err)
	case errors.Is(err, context.Canceled):
		return Wrap(KindTimeoutError, err)
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return Wrap(KindTimeoutError, err)
	}
	return Wrap(KindNetworkError, err)
}
