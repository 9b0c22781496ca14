package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/osvaldoandrade/tokengate/pkg/auth/certs"
)

// ClockSkew is the tolerance applied to exp and nbf.
const ClockSkew = 5 * time.Minute

var signingMethods = []string{
	"RS256", "RS384", "RS512",
	"PS256", "PS384", "PS512",
	"ES256", "ES384", "ES512",
}

// TokenValidator verifies compact JWS bearer tokens against the certificate
// snapshot held in a cache. It never performs network I/O.
type TokenValidator struct {
	cache     *certs.Cache
	issuers   map[string]struct{}
	audiences map[string]struct{}
	now       func() time.Time
	parser    *jwt.Parser
}

type ValidatorOption func(*TokenValidator)

// WithClock overrides the time source used for lifetime checks.
func WithClock(now func() time.Time) ValidatorOption {
	return func(v *TokenValidator) {
		if now != nil {
			v.now = now
		}
	}
}

func NewTokenValidator(cfg ValidationConfig, cache *certs.Cache, opts ...ValidatorOption) (*TokenValidator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cache == nil {
		return nil, errors.New("certificate cache is required")
	}
	cfg = cfg.Normalized()

	v := &TokenValidator{
		cache:     cache,
		issuers:   toSet(cfg.ValidIssuers),
		audiences: toSet(cfg.ValidAudiences),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(v)
	}
	v.parser = jwt.NewParser(
		jwt.WithValidMethods(signingMethods),
		jwt.WithLeeway(ClockSkew),
		jwt.WithExpirationRequired(),
		jwt.WithJSONNumber(),
		jwt.WithTimeFunc(func() time.Time { return v.now() }),
	)
	return v, nil
}

// Validate checks the token and returns its claims, or a *ValidationError.
func (v *TokenValidator) Validate(raw string) (ValidatedClaims, error) {
	set, ok := v.cache.Current()

	claims := jwt.MapClaims{}
	_, err := v.parser.ParseWithClaims(raw, claims, func(token *jwt.Token) (interface{}, error) {
		if !ok {
			return nil, ErrKeysUnavailable
		}
		return v.resolveKeys(set, token)
	})
	if err != nil {
		return nil, &ValidationError{Reason: classify(err), Err: err}
	}

	iss, err := claims.GetIssuer()
	if err != nil {
		return nil, &ValidationError{Reason: ReasonMalformedToken, Err: err}
	}
	if _, trusted := v.issuers[iss]; !trusted {
		return nil, &ValidationError{Reason: ReasonIssuerNotTrusted, Err: fmt.Errorf("issuer %q is not trusted", iss)}
	}

	aud, err := claims.GetAudience()
	if err != nil {
		return nil, &ValidationError{Reason: ReasonMalformedToken, Err: err}
	}
	if !v.audienceTrusted(aud) {
		return nil, &ValidationError{Reason: ReasonAudienceNotTrusted, Err: fmt.Errorf("audience %v is not trusted", []string(aud))}
	}

	return claimsFromMap(claims), nil
}

// resolveKeys returns every certificate matching the token's kid, or its
// x5t thumbprint when kid is absent. Certificates outside their validity
// window are not offered.
func (v *TokenValidator) resolveKeys(set *certs.Set, token *jwt.Token) (interface{}, error) {
	var candidates []certs.Certificate
	kid, _ := token.Header["kid"].(string)
	x5t, _ := token.Header["x5t"].(string)
	switch {
	case kid != "":
		candidates = set.Lookup(kid)
	case x5t != "":
		candidates = set.LookupThumbprint(x5t)
	default:
		return nil, fmt.Errorf("%w: token header has no kid", ErrUnknownSigningKey)
	}

	now := v.now()
	keys := jwt.VerificationKeySet{}
	for _, c := range candidates {
		if !c.ValidAt(now) {
			continue
		}
		keys.Keys = append(keys.Keys, c.PublicKey)
	}
	if len(keys.Keys) == 0 {
		return nil, fmt.Errorf("%w: kid=%q x5t=%q", ErrUnknownSigningKey, kid, x5t)
	}
	return keys, nil
}

func (v *TokenValidator) audienceTrusted(aud jwt.ClaimStrings) bool {
	for _, a := range aud {
		if _, ok := v.audiences[a]; ok {
			return true
		}
	}
	return false
}

func classify(err error) Reason {
	switch {
	case errors.Is(err, ErrKeysUnavailable):
		return ReasonKeysUnavailable
	case errors.Is(err, ErrUnknownSigningKey):
		return ReasonUnknownSigningKey
	case errors.Is(err, jwt.ErrTokenMalformed):
		return ReasonMalformedToken
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return ReasonInvalidSignature
	case errors.Is(err, jwt.ErrTokenRequiredClaimMissing):
		return ReasonMissingExpiry
	case errors.Is(err, jwt.ErrTokenExpired):
		return ReasonExpired
	case errors.Is(err, jwt.ErrTokenNotValidYet):
		return ReasonNotYetValid
	default:
		return ReasonMalformedToken
	}
}

func toSet(values []string) map[string]struct{} {
	out := make(map[string]struct{}, len(values))
	for _, v := range values {
		out[v] = struct{}{}
	}
	return out
}
