package crypto

import (
	"bytes"
	"testing"
)

func TestDeriveSessionKeyMatchesOnBothSides(t *testing.T) {
	watchPrivate, watchPublic, err := GenerateEphemeralX25519KeyPair()
	if err != nil {
		t.Fatalf("generate watch key: %v", err)
	}
	phonePrivate, phonePublic, err := GenerateEphemeralX25519KeyPair()
	if err != nil {
		t.Fatalf("generate phone key: %v", err)
	}

	parsedPhone, err := ParseX25519PublicKey(phonePublic.Bytes())
	if err != nil {
		t.Fatalf("parse phone public key: %v", err)
	}
	parsedWatch, err := ParseX25519PublicKey(watchPublic.Bytes())
	if err != nil {
		t.Fatalf("parse watch public key: %v", err)
	}

	watchSecret, err := ComputeX25519SharedSecret(watchPrivate, parsedPhone)
	if err != nil {
		t.Fatalf("watch ECDH: %v", err)
	}
	phoneSecret, err := ComputeX25519SharedSecret(phonePrivate, parsedWatch)
	if err != nil {
		t.Fatalf("phone ECDH: %v", err)
	}

	salt := bytes.Repeat([]byte{0x07}, 32)
	watchKey, err := DeriveSessionKey(watchSecret, "watch", "phone", salt)
	if err != nil {
		t.Fatalf("watch derive: %v", err)
	}
	phoneKey, err := DeriveSessionKey(phoneSecret, "phone", "watch", salt)
	if err != nil {
		t.Fatalf("phone derive: %v", err)
	}
	if !bytes.Equal(watchKey, phoneKey) {
		t.Fatalf("expected both sides to derive the same session key")
	}
	if len(watchKey) != SessionKeySize {
		t.Fatalf("unexpected key size %d", len(watchKey))
	}

	otherSalt, err := DeriveSessionKey(watchSecret, "watch", "phone", bytes.Repeat([]byte{0x08}, 32))
	if err != nil {
		t.Fatalf("derive with other salt: %v", err)
	}
	if bytes.Equal(otherSalt, watchKey) {
		t.Fatalf("expected salt to change the derived key")
	}
}

func TestParseX25519PublicKeyRejectsBadLength(t *testing.T) {
	if _, err := ParseX25519PublicKey([]byte{1, 2, 3}); err == nil {
		t.Fatalf("expected length error")
	}
}
