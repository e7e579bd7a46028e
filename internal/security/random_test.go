package security

import (
	"encoding/base64"
	"testing"
)

func TestRandomToken_Length(t *testing.T) {
	for _, n := range []int{16, 32} {
		tok, err := RandomToken(n)
		if err != nil {
			t.Fatalf("RandomToken(%d): %v", n, err)
		}
		if want := base64.RawURLEncoding.EncodedLen(n); len(tok) != want {
			t.Errorf("RandomToken(%d) length = %d, want %d", n, len(tok), want)
		}
		raw, err := base64.RawURLEncoding.DecodeString(tok)
		if err != nil {
			t.Fatalf("token is not base64url without padding: %v", err)
		}
		if len(raw) != n {
			t.Errorf("decoded length = %d, want %d", len(raw), n)
		}
	}
}

func TestRandomToken_Unique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		tok, err := RandomToken(16)
		if err != nil {
			t.Fatalf("RandomToken: %v", err)
		}
		if seen[tok] {
			t.Fatalf("duplicate token %q", tok)
		}
		seen[tok] = true
	}
}

func TestRandomToken_InvalidLength(t *testing.T) {
	if _, err := RandomToken(0); err == nil {
		t.Error("RandomToken(0) should fail")
	}
}
