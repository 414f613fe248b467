package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
)

// developmentAdminSecret is accepted only when AllowDevelopmentSecret is set and no hash is configured.
const developmentAdminSecret = "admin"

var (
	// ErrInvalidAdminSecret indicates a failed admin login.
	ErrInvalidAdminSecret = errors.New("auth: invalid admin secret")
	// ErrAdminSecretNotConfigured indicates neither a hash nor the development fallback is available.
	ErrAdminSecretNotConfigured = errors.New("auth: admin secret hash required outside development mode")
	// ErrAdminSecretHashInvalid indicates the configured admin hash is not a bcrypt hash.
	ErrAdminSecretHashInvalid = errors.New("auth: admin secret hash is not a bcrypt hash")
	errMissingTokenIssuer     = errors.New("auth: token issuer required")
	errMissingSecretHasher    = errors.New("auth: secret hasher required")
)

// AdminGatewayConfig wires the admin gateway.
type AdminGatewayConfig struct {
	Tokens                 *TokenIssuer
	Hasher                 *SecretHasher
	AdminSecretHash        string
	AllowDevelopmentSecret bool
}

// AdminGateway proves that a caller is the admin: it checks the master secret at login
// and verifies the bearer credential on every privileged request.
type AdminGateway struct {
	tokens          *TokenIssuer
	hasher          *SecretHasher
	adminSecretHash string
	allowDevSecret  bool
}

// NewAdminGateway validates the configuration.
func NewAdminGateway(cfg AdminGatewayConfig) (*AdminGateway, error) {
	if cfg.Tokens == nil {
		return nil, errMissingTokenIssuer
	}
	if cfg.Hasher == nil {
		return nil, errMissingSecretHasher
	}
	hash := strings.TrimSpace(cfg.AdminSecretHash)
	if hash == "" && !cfg.AllowDevelopmentSecret {
		return nil, ErrAdminSecretNotConfigured
	}
	if hash != "" {
		if err := validateHash(hash); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrAdminSecretHashInvalid, err)
		}
	}
	return &AdminGateway{
		tokens:          cfg.Tokens,
		hasher:          cfg.Hasher,
		adminSecretHash: hash,
		allowDevSecret:  cfg.AllowDevelopmentSecret,
	}, nil
}

// UsesDevelopmentSecret reports whether logins are checked against the fixed development secret.
func (g *AdminGateway) UsesDevelopmentSecret() bool {
	return g.adminSecretHash == "" && g.allowDevSecret
}

// VerifyAdminSecret compares candidate with the configured bcrypt hash.
func (g *AdminGateway) VerifyAdminSecret(candidate string) bool {
	if candidate == "" {
		return false
	}
	if g.adminSecretHash != "" {
		return g.hasher.VerifySecret(candidate, g.adminSecretHash)
	}
	if !g.allowDevSecret {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(candidate), []byte(developmentAdminSecret)) == 1
}

// Login verifies the admin secret and issues a credential for it.
func (g *AdminGateway) Login(ctx context.Context, candidate string) (string, error) {
	if !g.VerifyAdminSecret(candidate) {
		return "", ErrInvalidAdminSecret
	}
	return g.IssueAdminCredential(ctx)
}

// IssueAdminCredential signs a new admin token.
func (g *AdminGateway) IssueAdminCredential(ctx context.Context) (string, error) {
	token, _, err := g.tokens.IssueAdminToken(ctx)
	return token, err
}

// VerifyAdminCredential validates an Authorization header value.
// The error wraps ErrMissingOrMalformedHeader, ErrTokenInvalid or ErrWrongSubject.
func (g *AdminGateway) VerifyAdminCredential(authorizationHeader string) error {
	token, err := BearerToken(authorizationHeader)
	if err != nil {
		return err
	}
	subject, err := g.tokens.ValidateToken(token)
	if err != nil {
		return err
	}
	if subject != AdminSubject {
		return ErrWrongSubject
	}
	return nil
}

// HashSecret hashes a poll-level password.
func (g *AdminGateway) HashSecret(plain string) (string, error) {
	return g.hasher.HashSecret(plain)
}

// VerifySecret checks a poll-level password against its hash.
func (g *AdminGateway) VerifySecret(plain, hash string) bool {
	return g.hasher.VerifySecret(plain, hash)
}
