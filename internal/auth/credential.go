package auth

import (
	"errors"
	"strings"
)

const bearerPrefix = "Bearer "

var (
	// ErrMissingOrMalformedHeader indicates the Authorization header is absent or not a bearer value.
	ErrMissingOrMalformedHeader = errors.New("auth: authorization header missing or malformed")
	// ErrWrongSubject indicates a correctly signed token that does not assert the admin subject.
	ErrWrongSubject = errors.New("auth: token subject is not admin")
)

// CredentialFailure tags why a credential was rejected. It is meant for logs only;
// callers of the HTTP surface only ever see "unauthorized".
type CredentialFailure string

const (
	FailureNone                     CredentialFailure = ""
	FailureMissingOrMalformedHeader CredentialFailure = "missing_or_malformed_header"
	FailureTokenInvalid             CredentialFailure = "token_invalid"
	FailureWrongSubject             CredentialFailure = "wrong_subject"
	failureUnclassified             CredentialFailure = "unclassified"
)

// FailureReason classifies a verification error.
func FailureReason(err error) CredentialFailure {
	switch {
	case err == nil:
		return FailureNone
	case errors.Is(err, ErrMissingOrMalformedHeader):
		return FailureMissingOrMalformedHeader
	case errors.Is(err, ErrWrongSubject):
		return FailureWrongSubject
	case errors.Is(err, ErrTokenInvalid):
		return FailureTokenInvalid
	default:
		return failureUnclassified
	}
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(headerValue string) (string, error) {
	if !strings.HasPrefix(headerValue, bearerPrefix) {
		return "", ErrMissingOrMalformedHeader
	}
	token := strings.TrimSpace(strings.TrimPrefix(headerValue, bearerPrefix))
	if token == "" {
		return "", ErrMissingOrMalformedHeader
	}
	return token, nil
}
