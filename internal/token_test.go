package internal

import (
	"errors"
	"testing"
)

func TestTokenRoundTrip(t *testing.T) {
	id, err := NewID()
	if err != nil {
		t.Fatalf("NewID: %v", err)
	}
	secret, err := NewSecret()
	if err != nil {
		t.Fatalf("NewSecret: %v", err)
	}

	token, err := EncodeToken(id.String(), secret)
	if err != nil {
		t.Fatalf("EncodeToken: %v", err)
	}
	gotID, gotSecret, err := DecodeToken(token)
	if err != nil {
		t.Fatalf("DecodeToken: %v", err)
	}
	if gotID != id.String() || gotSecret != secret {
		t.Fatal("round trip mismatch")
	}
	if secret.Hash() == ([32]byte{}) {
		t.Fatal("hash must not be zero")
	}
}

func TestDecodeTokenRejectsGarbage(t *testing.T) {
	for _, in := range []string{"", "abc", "!!!not-base64!!!", "aGVsbG8"} {
		if _, _, err := DecodeToken(in); !errors.Is(err, ErrMalformedToken) {
			t.Fatalf("DecodeToken(%q) = %v, want ErrMalformedToken", in, err)
		}
	}
	if _, err := EncodeToken("short", Secret{}); !errors.Is(err, ErrMalformedID) {
		t.Fatalf("expected ErrMalformedID, got %v", err)
	}
}

// FuzzDecodeToken checks decoding never panics and valid decodes re-encode
// to the same token.
func FuzzDecodeToken(f *testing.F) {
	f.Add("")
	f.Add("AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA")
	f.Add("!!!not-base64!!!")

	f.Fuzz(func(t *testing.T, input string) {
		id, secret, err := DecodeToken(input)
		if err != nil {
			return
		}
		again, err := EncodeToken(id, secret)
		if err != nil {
			t.Fatalf("re-encode failed: %v", err)
		}
		id2, secret2, err := DecodeToken(again)
		if err != nil || id2 != id || secret2 != secret {
			t.Fatalf("roundtrip mismatch for %q", input)
		}
	})
}
