package auth

import (
	"errors"
)

// Reason identifies why a token was rejected. Reasons are for logs and
// metrics; callers at the HTTP boundary must not reveal them.
type Reason string

const (
	ReasonMalformedToken     Reason = "malformed_token"
	ReasonKeysUnavailable    Reason = "keys_unavailable"
	ReasonUnknownSigningKey  Reason = "unknown_signing_key"
	ReasonInvalidSignature   Reason = "invalid_signature"
	ReasonIssuerNotTrusted   Reason = "issuer_not_trusted"
	ReasonAudienceNotTrusted Reason = "audience_not_trusted"
	ReasonExpired            Reason = "expired"
	ReasonMissingExpiry      Reason = "missing_expiry"
	ReasonNotYetValid        Reason = "not_yet_valid"
	ReasonNoIdentityClaim    Reason = "no_identity_claim"
)

// Reasons lists every rejection reason.
var Reasons = []Reason{
	ReasonMalformedToken,
	ReasonKeysUnavailable,
	ReasonUnknownSigningKey,
	ReasonInvalidSignature,
	ReasonIssuerNotTrusted,
	ReasonAudienceNotTrusted,
	ReasonExpired,
	ReasonMissingExpiry,
	ReasonNotYetValid,
	ReasonNoIdentityClaim,
}

var (
	ErrAuthenticationFailed = errors.New("authentication failed")
	ErrKeysUnavailable      = errors.New("signing certificates not yet available")
	ErrUnknownSigningKey    = errors.New("no certificate matches the token key id")
	ErrNoIdentityClaim      = errors.New("no identity claim found in token")
)

// ValidationError is returned by TokenValidator.
type ValidationError struct {
	Reason Reason
	Err    error
}

func (e *ValidationError) Error() string {
	if e.Err == nil {
		return string(e.Reason)
	}
	return string(e.Reason) + ": " + e.Err.Error()
}

func (e *ValidationError) Unwrap() error { return e.Err }

// AuthenticationError is the only error returned by Pipeline.Authenticate.
type AuthenticationError struct {
	Reason Reason
	Err    error
}

func (e *AuthenticationError) Error() string {
	return ErrAuthenticationFailed.Error() + ": " + string(e.Reason)
}

func (e *AuthenticationError) Unwrap() error { return e.Err }

func (e *AuthenticationError) Is(target error) bool {
	return target == ErrAuthenticationFailed
}

// ReasonOf extracts the rejection reason from err, or "" if err carries none.
func ReasonOf(err error) Reason {
	var authErr *AuthenticationError
	if errors.As(err, &authErr) {
		return authErr.Reason
	}
	var valErr *ValidationError
	if errors.As(err, &valErr) {
		return valErr.Reason
	}
	if errors.Is(err, ErrNoIdentityClaim) {
		return ReasonNoIdentityClaim
	}
	return ""
}
