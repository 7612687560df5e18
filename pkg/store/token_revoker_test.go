package store

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestMemoryTokenRevokerExpires(t *testing.T) {
	r := NewMemoryTokenRevoker()
	if err := r.Revoke("jti-1", 20*time.Millisecond); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if revoked, _ := r.IsRevoked("jti-1"); !revoked {
		t.Fatalf("expected token to be revoked")
	}
	time.Sleep(40 * time.Millisecond)
	if revoked, _ := r.IsRevoked("jti-1"); revoked {
		t.Fatalf("expected revocation to lapse after ttl")
	}
	if err := r.Revoke("jti-2", 0); err != nil {
		t.Fatalf("revoke expired: %v", err)
	}
	if revoked, _ := r.IsRevoked("jti-2"); revoked {
		t.Fatalf("already expired token should not be recorded")
	}
}

func TestRedisTokenRevoker(t *testing.T) {
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	r := NewRedisTokenRevoker(client, "")
	if err := r.Revoke("jti-1", time.Minute); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if !srv.Exists("vendorhub:revoked:jti-1") {
		t.Fatalf("expected revocation key, have %v", srv.Keys())
	}
	if revoked, err := r.IsRevoked("jti-1"); err != nil || !revoked {
		t.Fatalf("is revoked = %v, %v", revoked, err)
	}
	srv.FastForward(2 * time.Minute)
	if revoked, _ := r.IsRevoked("jti-1"); revoked {
		t.Fatalf("revocation should expire with the token")
	}
}
