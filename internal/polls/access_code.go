package polls

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"math/big"
	"strings"
)

const (
	// AccessCodeLength is the length of generated poll access codes.
	AccessCodeLength = 8
	// AccessCodeAlphabet excludes the ambiguous characters 0, 1, i, l and o.
	AccessCodeAlphabet = "abcdefghjkmnpqrstuvwxyz23456789"
)

// ErrAccessCodeExhausted indicates the attempt cap was reached without finding a free code.
var ErrAccessCodeExhausted = errors.New("polls: no free access code within attempt limit")

// CodeExistsFunc reports whether a code is already taken in the store.
type CodeExistsFunc func(ctx context.Context, code string) (bool, error)

// AccessCodeGenerator draws random codes from AccessCodeAlphabet.
type AccessCodeGenerator struct {
	random      io.Reader
	maxAttempts int
}

// NewAccessCodeGenerator builds a generator. A nil random reader selects crypto/rand;
// maxAttempts <= 0 retries until the context is done.
func NewAccessCodeGenerator(random io.Reader, maxAttempts int) *AccessCodeGenerator {
	if random == nil {
		random = rand.Reader
	}
	return &AccessCodeGenerator{random: random, maxAttempts: maxAttempts}
}

// Generate returns length characters drawn uniformly from AccessCodeAlphabet.
func (g *AccessCodeGenerator) Generate(length int) (string, error) {
	if length <= 0 {
		length = AccessCodeLength
	}
	alphabetSize := big.NewInt(int64(len(AccessCodeAlphabet)))
	code := make([]byte, length)
	for i := range code {
		index, err := rand.Int(g.random, alphabetSize)
		if err != nil {
			return "", fmt.Errorf("polls: draw access code: %w", err)
		}
		code[i] = AccessCodeAlphabet[index.Int64()]
	}
	return string(code), nil
}

// GenerateUnique draws codes until exists reports a free one.
// The result is advisory: the store's unique index on access_code remains authoritative.
func (g *AccessCodeGenerator) GenerateUnique(ctx context.Context, exists CodeExistsFunc) (string, error) {
	for attempt := 1; g.maxAttempts <= 0 || attempt <= g.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		code, err := g.Generate(AccessCodeLength)
		if err != nil {
			return "", err
		}
		taken, err := exists(ctx, code)
		if err != nil {
			return "", err
		}
		if !taken {
			return code, nil
		}
	}
	return "", ErrAccessCodeExhausted
}

// IsAccessCode reports whether value matches the access code contract.
func IsAccessCode(value string) bool {
	if len(value) != AccessCodeLength {
		return false
	}
	for i := 0; i < len(value); i++ {
		if strings.IndexByte(AccessCodeAlphabet, value[i]) < 0 {
			return false
		}
	}
	return true
}
