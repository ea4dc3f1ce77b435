package sessionstore

import (
	"context"
	"testing"
	"time"

	"github.com/Tepexicuapan3/SIRES-sub001/internal/identity"
)

func testRecord(id string, ttl time.Duration) *Record {
	now := time.Now()
	return &Record{
		ID: id,
		Principal: &identity.Principal{
			ID:          "u-11",
			Username:    "mgarcia",
			Roles:       []string{"enfermeria"},
			Permissions: []string{"pacientes:expediente:leer"},
		},
		Tokens:     identity.TokenPair{AccessToken: "at-" + id, RefreshToken: "rt-" + id},
		CreatedAt:  now,
		ExpiresAt:  now.Add(ttl),
		LastSeenAt: now,
	}
}

func TestMemoryStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()

	rec := testRecord("sid-1", time.Minute)
	if err := s.Put(ctx, rec); err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, err := s.Get(ctx, "sid-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Principal.Username != "mgarcia" {
		t.Fatalf("username = %q", got.Principal.Username)
	}
	if got.Tokens.RefreshToken != "rt-sid-1" {
		t.Fatalf("refresh token = %q", got.Tokens.RefreshToken)
	}
}

func TestMemoryStore_GetReturnsCopy(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()
	if err := s.Put(ctx, testRecord("sid-1", time.Minute)); err != nil {
		t.Fatalf("Put: %v", err)
	}

	first, _ := s.Get(ctx, "sid-1")
	first.Principal.Permissions[0] = "mutado"
	first.Tokens.AccessToken = "mutado"

	second, _ := s.Get(ctx, "sid-1")
	if second.Principal.Permissions[0] != "pacientes:expediente:leer" {
		t.Fatalf("la mutación del caller contaminó el store")
	}
	if second.Tokens.AccessToken != "at-sid-1" {
		t.Fatalf("access token = %q", second.Tokens.AccessToken)
	}
}

func TestMemoryStore_ExpiredRecordNotFound(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()
	if err := s.Put(ctx, testRecord("sid-exp", 15*time.Millisecond)); err != nil {
		t.Fatalf("Put: %v", err)
	}

	time.Sleep(30 * time.Millisecond)

	if _, err := s.Get(ctx, "sid-exp"); !IsNotFound(err) {
		t.Fatalf("Get tras expirar = %v, se esperaba ErrNotFound", err)
	}
}

func TestMemoryStore_PutAlreadyExpiredIsNoop(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()
	if err := s.Put(ctx, testRecord("sid-old", -time.Minute)); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if _, err := s.Get(ctx, "sid-old"); !IsNotFound(err) {
		t.Fatalf("un record ya vencido no debe persistirse")
	}
}

func TestMemoryStore_Delete(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()
	_ = s.Put(ctx, testRecord("sid-del", time.Minute))

	if err := s.Delete(ctx, "sid-del"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.Get(ctx, "sid-del"); !IsNotFound(err) {
		t.Fatalf("el record sigue presente tras Delete")
	}
	// Delete es idempotente.
	if err := s.Delete(ctx, "sid-del"); err != nil {
		t.Fatalf("Delete repetido: %v", err)
	}
}

func TestMemoryStore_ListSkipsExpired(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()
	_ = s.Put(ctx, testRecord("sid-a", time.Minute))
	_ = s.Put(ctx, testRecord("sid-b", time.Minute))
	_ = s.Put(ctx, testRecord("sid-c", 10*time.Millisecond))

	time.Sleep(25 * time.Millisecond)

	recs, err := s.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("List retornó %d records, se esperaban 2", len(recs))
	}
	for _, r := range recs {
		if r.ID == "sid-c" {
			t.Fatalf("List incluyó un record vencido")
		}
	}
}
