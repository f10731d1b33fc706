package identity

import (
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strings"
	"testing"

	"golang.org/x/crypto/pbkdf2"
)

func TestHashAndVerifyArgon2(t *testing.T) {
	h := NewPasswordHasher()

	encoded, err := h.Hash("Str0ng&Secret!pw")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	if !strings.HasPrefix(encoded, "$argon2id$") {
		t.Fatalf("unexpected hash prefix: %s", encoded)
	}

	ok, needsRehash, err := h.Verify(encoded, "Str0ng&Secret!pw")
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if !ok {
		t.Error("correct password rejected")
	}
	if needsRehash {
		t.Error("argon2id hash should not need rehash")
	}

	ok, _, err = h.Verify(encoded, "wrong-password!1A")
	if err != nil {
		t.Fatalf("Verify wrong: %v", err)
	}
	if ok {
		t.Error("wrong password accepted")
	}
}

func TestHashesAreSalted(t *testing.T) {
	h := NewPasswordHasher()
	a, _ := h.Hash("Str0ng&Secret!pw")
	b, _ := h.Hash("Str0ng&Secret!pw")
	if a == b {
		t.Error("two hashes of the same password should differ")
	}
}

// encodeAdaptedBase64 mirrors the passlib encoding used in stored legacy
// hashes: standard alphabet with '+' replaced by '.', no padding.
func encodeAdaptedBase64(b []byte) string {
	return strings.ReplaceAll(base64.RawStdEncoding.EncodeToString(b), "+", ".")
}

func legacyHash(password string, salt []byte, rounds int) string {
	digest := pbkdf2.Key([]byte(password), salt, rounds, sha256.Size, sha256.New)
	return fmt.Sprintf("$pbkdf2-sha256$%d$%s$%s", rounds, encodeAdaptedBase64(salt), encodeAdaptedBase64(digest))
}

func TestVerifyLegacyPBKDF2(t *testing.T) {
	h := NewPasswordHasher()
	salt := []byte{0xfb, 0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08, 0x09, 0x0a, 0x0b, 0x0c, 0x0d, 0x0e, 0xff}
	encoded := legacyHash("Old&Secret!pw99", salt, 29000)

	ok, needsRehash, err := h.Verify(encoded, "Old&Secret!pw99")
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if !ok {
		t.Error("correct password rejected against legacy hash")
	}
	if !needsRehash {
		t.Error("legacy hash should be flagged for rehash")
	}

	ok, _, err = h.Verify(encoded, "not-the-password")
	if err != nil {
		t.Fatalf("Verify wrong: %v", err)
	}
	if ok {
		t.Error("wrong password accepted against legacy hash")
	}
}

func TestVerifyUnknownScheme(t *testing.T) {
	h := NewPasswordHasher()
	if _, _, err := h.Verify("$bcrypt$whatever", "pw"); err == nil {
		t.Error("expected error for unknown hash scheme")
	}
	if _, _, err := h.Verify("plaintext", "pw"); err == nil {
		t.Error("expected error for unprefixed hash")
	}
}

func TestVerifyMalformedArgon2(t *testing.T) {
	h := NewPasswordHasher()
	if _, _, err := h.Verify("$argon2id$v=19$m=65536,t=1,p=4$notbase64!!$x", "pw"); err == nil {
		t.Error("expected error for malformed salt")
	}
}
