package password

import (
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

var (
	// ErrEmptyPassword is returned when hashing an empty password.
	ErrEmptyPassword = errors.New("password is empty")
	// ErrUnknownFormat is returned for stored hashes that no verifier recognises.
	ErrUnknownFormat = errors.New("unknown password hash format")
)

// Hasher produces Argon2id hashes and verifies both Argon2id and legacy
// bcrypt hashes. Accounts imported from the previous backend carry bcrypt
// hashes; NeedsUpgrade reports true for them so the engine can rehash on
// the next successful login.
type Hasher struct {
	argon *Argon2
}

// NewHasher returns a Hasher that writes Argon2id hashes with cfg.
func NewHasher(cfg Config) (*Hasher, error) {
	a, err := NewArgon2(cfg)
	if err != nil {
		return nil, err
	}
	return &Hasher{argon: a}, nil
}

// Hash always produces an Argon2id hash.
func (h *Hasher) Hash(password string) (string, error) {
	return h.argon.Hash(password)
}

// Verify dispatches on the hash prefix.
func (h *Hasher) Verify(password, encodedHash string) (bool, error) {
	switch {
	case strings.HasPrefix(encodedHash, "$"+algorithmID+"$"):
		return h.argon.Verify(password, encodedHash)
	case isBcrypt(encodedHash):
		err := bcrypt.CompareHashAndPassword([]byte(encodedHash), []byte(password))
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return false, nil
		}
		if err != nil {
			return false, err
		}
		return true, nil
	default:
		return false, ErrUnknownFormat
	}
}

// NeedsUpgrade is true for every bcrypt hash and for Argon2id hashes made
// with weaker parameters.
func (h *Hasher) NeedsUpgrade(encodedHash string) (bool, error) {
	if isBcrypt(encodedHash) {
		return true, nil
	}
	return h.argon.NeedsUpgrade(encodedHash)
}

// Params exposes the active Argon2 parameters.
func (h *Hasher) Params() Config {
	return h.argon.config
}

func isBcrypt(encodedHash string) bool {
	return strings.HasPrefix(encodedHash, "$2a$") ||
		strings.HasPrefix(encodedHash, "$2b$") ||
		strings.HasPrefix(encodedHash, "$2y$")
}
