package security

import (
	"regexp"
	"testing"
)

var lowerHex64 = regexp.MustCompile(`^[0-9a-f]{64}$`)

func TestKeyedHash_Deterministic(t *testing.T) {
	a := KeyedHash("pepper", "123456:user-1:admin_login:row-1")
	b := KeyedHash("pepper", "123456:user-1:admin_login:row-1")
	if a != b {
		t.Errorf("KeyedHash should be deterministic: %q != %q", a, b)
	}
	if !lowerHex64.MatchString(a) {
		t.Errorf("KeyedHash = %q, want 64 lowercase hex chars", a)
	}
}

func TestKeyedHash_KnownVector(t *testing.T) {
	// RFC 4231 test case 2.
	got := KeyedHash("Jefe", "what do ya want for nothing?")
	want := "5bdcc146bf60754e6a042426089575c75a003f089d2739839dec58b964ec3843"
	if got != want {
		t.Errorf("KeyedHash = %q, want %q", got, want)
	}
}

func TestKeyedHash_SecretAndMessageMatter(t *testing.T) {
	base := KeyedHash("s1", "m")
	if KeyedHash("s2", "m") == base {
		t.Error("different secrets should produce different digests")
	}
	if KeyedHash("s1", "m2") == base {
		t.Error("different messages should produce different digests")
	}
}

func TestConstantTimeEqualHex(t *testing.T) {
	h := KeyedHash("s", "m")
	testCases := []struct {
		name string
		a, b string
		want bool
	}{
		{"equal", h, h, true},
		{"different", h, KeyedHash("s", "other"), false},
		{"length mismatch", h, h[:62], false},
		{"malformed a", "zz", "00", false},
		{"malformed b", "00", "0g", false},
		{"both empty", "", "", true},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ConstantTimeEqualHex(tc.a, tc.b); got != tc.want {
				t.Errorf("ConstantTimeEqualHex = %v, want %v", got, tc.want)
			}
		})
	}
}
