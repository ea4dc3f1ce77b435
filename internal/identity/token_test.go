package identity

import (
	"testing"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"
)

func signedToken(t *testing.T, exp time.Time) string {
	t.Helper()
	tk := jwtv5.NewWithClaims(jwtv5.SigningMethodHS256, jwtv5.MapClaims{
		"sub": "u-77",
		"exp": exp.Unix(),
	})
	raw, err := tk.SignedString([]byte("test-key"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return raw
}

func TestAccessTokenExpiry(t *testing.T) {
	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	got, ok := AccessTokenExpiry(signedToken(t, exp))
	if !ok {
		t.Fatal("expected decodable exp claim")
	}
	if !got.Equal(exp) {
		t.Fatalf("exp = %v, want %v", got, exp)
	}
}

func TestAccessTokenExpiry_OpaqueToken(t *testing.T) {
	// Tokens opacos no rompen nada: simplemente no hay hint de expiración.
	if _, ok := AccessTokenExpiry("not-a-jwt"); ok {
		t.Fatal("opaque token must not decode")
	}
	if _, ok := AccessTokenExpiry(""); ok {
		t.Fatal("empty token must not decode")
	}
}

func TestShouldRefresh(t *testing.T) {
	soon := signedToken(t, time.Now().Add(30*time.Second))
	later := signedToken(t, time.Now().Add(time.Hour))

	if !ShouldRefresh(soon, time.Minute) {
		t.Fatal("token expiring within the window must trigger refresh")
	}
	if ShouldRefresh(later, time.Minute) {
		t.Fatal("fresh token must not trigger refresh")
	}
	if ShouldRefresh("opaque", time.Minute) {
		t.Fatal("opaque tokens never trigger proactive refresh")
	}
}
