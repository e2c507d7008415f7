package internal

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
)

// ID is a random 128-bit identifier shown to clients as base64url.
type ID [16]byte

// Secret is the 256-bit random half of an opaque token. Only its SHA-256
// digest is ever stored.
type Secret [32]byte

const opaqueTokenSize = len(ID{}) + len(Secret{})

var (
	ErrMalformedID    = errors.New("malformed id")
	ErrMalformedToken = errors.New("malformed token")
)

// NewID returns a fresh random ID.
func NewID() (ID, error) {
	var id ID
	_, err := rand.Read(id[:])
	return id, err
}

func (id ID) String() string {
	return base64.RawURLEncoding.EncodeToString(id[:])
}

// ParseID decodes the base64url form produced by ID.String.
func ParseID(s string) (ID, error) {
	var id ID
	raw, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil || len(raw) != len(id) {
		return id, ErrMalformedID
	}
	copy(id[:], raw)
	return id, nil
}

// NewSecret returns 32 random bytes.
func NewSecret() (Secret, error) {
	var s Secret
	_, err := rand.Read(s[:])
	return s, err
}

// Hash is the digest persisted in place of the secret.
func (s Secret) Hash() [32]byte {
	return sha256.Sum256(s[:])
}

// EncodeToken packs id and secret into base64url(id || secret). Refresh
// tokens, password-reset tokens and email-verification tokens all share
// this shape.
func EncodeToken(id string, secret Secret) (string, error) {
	parsed, err := ParseID(id)
	if err != nil {
		return "", err
	}

	var raw [opaqueTokenSize]byte
	copy(raw[:len(parsed)], parsed[:])
	copy(raw[len(parsed):], secret[:])
	return base64.RawURLEncoding.EncodeToString(raw[:]), nil
}

// DecodeToken is the inverse of EncodeToken.
func DecodeToken(token string) (string, Secret, error) {
	var secret Secret

	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil || len(raw) != opaqueTokenSize {
		return "", secret, ErrMalformedToken
	}

	var id ID
	copy(id[:], raw[:len(id)])
	copy(secret[:], raw[len(id):])
	return id.String(), secret, nil
}
