package security

import "testing"

func TestEncryptTokenRoundTrip(t *testing.T) {
	key := DeriveKey("correct horse battery staple")
	sealed, err := EncryptToken("s3cr3t", key)
	if err != nil {
		t.Fatalf("EncryptToken: %v", err)
	}
	if sealed == "s3cr3t" {
		t.Fatal("expected the sealed token to not equal the plaintext")
	}
	plain, err := DecryptToken(sealed, key)
	if err != nil {
		t.Fatalf("DecryptToken: %v", err)
	}
	if plain != "s3cr3t" {
		t.Fatalf("expected round-trip to recover the original token, got %q", plain)
	}
}

func TestEncryptTokenEmptyRoundTrip(t *testing.T) {
	key := DeriveKey("k")
	sealed, err := EncryptToken("", key)
	if err != nil {
		t.Fatalf("EncryptToken: %v", err)
	}
	if sealed != "" {
		t.Fatalf("expected empty token to seal to empty string, got %q", sealed)
	}
	plain, err := DecryptToken(sealed, key)
	if err != nil {
		t.Fatalf("DecryptToken: %v", err)
	}
	if plain != "" {
		t.Fatalf("expected empty round trip, got %q", plain)
	}
}

func TestDecryptTokenWrongKeyFails(t *testing.T) {
	sealed, err := EncryptToken("s3cr3t", DeriveKey("key-a"))
	if err != nil {
		t.Fatalf("EncryptToken: %v", err)
	}
	if _, err := DecryptToken(sealed, DeriveKey("key-b")); err == nil {
		t.Fatal("expected decryption with the wrong key to fail")
	}
}
