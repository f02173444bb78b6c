package crypto

import (
	"crypto/rand"
	"encoding/base64"
	"strings"
	"testing"
)

func testKey(t *testing.T) string {
	t.Helper()
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		t.Fatalf("generate key: %v", err)
	}
	return base64.StdEncoding.EncodeToString(key)
}

func TestAESEncryptorRoundTrip(t *testing.T) {
	enc, err := NewAESEncryptor(testKey(t))
	if err != nil {
		t.Fatalf("NewAESEncryptor() error = %v", err)
	}

	plaintexts := []string{"", "a", "some-oauth-access-token", strings.Repeat("x", 4096)}
	for _, pt := range plaintexts {
		ct, err := EncryptString(enc, pt)
		if err != nil {
			t.Fatalf("EncryptString(%q) error = %v", pt, err)
		}
		if ct == pt && pt != "" {
			t.Errorf("ciphertext equals plaintext for %q", pt)
		}
		got, err := DecryptString(enc, ct)
		if err != nil {
			t.Fatalf("DecryptString() error = %v", err)
		}
		if got != pt {
			t.Errorf("round trip = %q, want %q", got, pt)
		}
	}
}

func TestAESEncryptorNonDeterministic(t *testing.T) {
	enc, err := NewAESEncryptor(testKey(t))
	if err != nil {
		t.Fatalf("NewAESEncryptor() error = %v", err)
	}
	a, _ := EncryptString(enc, "same input")
	b, _ := EncryptString(enc, "same input")
	if a == b {
		t.Error("two encryptions of the same plaintext should differ (random nonce)")
	}
}

func TestAESEncryptorTamperDetection(t *testing.T) {
	enc, err := NewAESEncryptor(testKey(t))
	if err != nil {
		t.Fatalf("NewAESEncryptor() error = %v", err)
	}
	ct, err := EncryptString(enc, "secret")
	if err != nil {
		t.Fatalf("EncryptString() error = %v", err)
	}

	raw, err := base64.StdEncoding.DecodeString(ct)
	if err != nil {
		t.Fatalf("decode ciphertext: %v", err)
	}
	raw[len(raw)-1] ^= 0x01
	tampered := base64.StdEncoding.EncodeToString(raw)

	if _, err := DecryptString(enc, tampered); err == nil {
		t.Error("tampered ciphertext should fail authentication")
	}
}

func TestAESEncryptorWrongKey(t *testing.T) {
	enc1, _ := NewAESEncryptor(testKey(t))
	enc2, _ := NewAESEncryptor(testKey(t))

	ct, err := EncryptString(enc1, "secret")
	if err != nil {
		t.Fatalf("EncryptString() error = %v", err)
	}
	if _, err := DecryptString(enc2, ct); err == nil {
		t.Error("decryption with a different key should fail")
	}
}

func TestNewAESEncryptorBadKeys(t *testing.T) {
	tests := []struct {
		name string
		key  string
	}{
		{"empty", ""},
		{"not base64", "!!!not-base64!!!"},
		{"wrong length", base64.StdEncoding.EncodeToString([]byte("short"))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewAESEncryptor(tt.key); err == nil {
				t.Errorf("NewAESEncryptor(%q) error = nil, want error", tt.key)
			}
		})
	}
}
