package auth

import (
	"crypto/sha256"
	"encoding/base64"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// bcryptInputLimit is the longest input bcrypt accepts.
const bcryptInputLimit = 72

// SecretHasher hashes and verifies secrets with bcrypt at a fixed cost.
type SecretHasher struct {
	cost int
}

// NewSecretHasher validates the cost factor. Zero selects bcrypt.DefaultCost.
func NewSecretHasher(cost int) (*SecretHasher, error) {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return nil, fmt.Errorf("auth: bcrypt cost %d outside [%d, %d]", cost, bcrypt.MinCost, bcrypt.MaxCost)
	}
	return &SecretHasher{cost: cost}, nil
}

// HashSecret returns a salted bcrypt hash of plain.
func (h *SecretHasher) HashSecret(plain string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword(bcryptInput(plain), h.cost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// VerifySecret reports whether plain matches hash.
func (h *SecretHasher) VerifySecret(plain, hash string) bool {
	if hash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), bcryptInput(plain)) == nil
}

// bcryptInput passes secrets within bcrypt's limit through unchanged, so hashes made by other
// bcrypt tools keep verifying; longer secrets are reduced to a base64 SHA-256 digest.
func bcryptInput(plain string) []byte {
	if len(plain) <= bcryptInputLimit {
		return []byte(plain)
	}
	digest := sha256.Sum256([]byte(plain))
	return []byte(base64.StdEncoding.EncodeToString(digest[:]))
}

// validateHash reports whether hash is a bcrypt hash this package can verify against.
func validateHash(hash string) error {
	if _, err := bcrypt.Cost([]byte(hash)); err != nil {
		return err
	}
	return nil
}
