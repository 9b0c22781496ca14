package auth

import (
	"context"
	"errors"
	"strings"

	"github.com/osvaldoandrade/tokengate/pkg/auth/certs"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("github.com/osvaldoandrade/tokengate/pkg/auth")

// Authenticator turns a raw bearer token into a Principal.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (Principal, error)
}

// Pipeline validates a token and then extracts the caller identity.
type Pipeline struct {
	validator *TokenValidator
	extractor *IdentityExtractor
}

func NewPipeline(cfg ValidationConfig, cache *certs.Cache, opts ...ValidatorOption) (*Pipeline, error) {
	validator, err := NewTokenValidator(cfg, cache, opts...)
	if err != nil {
		return nil, err
	}
	extractor, err := NewIdentityExtractor(cfg.ClaimTypePriority)
	if err != nil {
		return nil, err
	}
	return &Pipeline{validator: validator, extractor: extractor}, nil
}

// Authenticate returns the caller's Principal. Every failure is an
// *AuthenticationError carrying the rejection reason.
func (p *Pipeline) Authenticate(ctx context.Context, token string) (Principal, error) {
	_, span := tracer.Start(ctx, "auth.authenticate")
	defer span.End()

	principal, err := p.authenticate(token)
	if err != nil {
		var authErr *AuthenticationError
		errors.As(err, &authErr)
		span.SetAttributes(attribute.String("auth.outcome", string(authErr.Reason)))
		span.SetStatus(codes.Error, string(authErr.Reason))
		return Principal{}, err
	}
	span.SetAttributes(
		attribute.String("auth.outcome", "ok"),
		attribute.String("auth.identity_claim", principal.ClaimType),
	)
	return principal, nil
}

func (p *Pipeline) authenticate(token string) (Principal, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Principal{}, &AuthenticationError{Reason: ReasonMalformedToken, Err: errors.New("empty token")}
	}

	claims, err := p.validator.Validate(token)
	if err != nil {
		return Principal{}, &AuthenticationError{Reason: ReasonOf(err), Err: err}
	}

	principal, err := p.extractor.Extract(claims)
	if err != nil {
		return Principal{}, &AuthenticationError{Reason: ReasonNoIdentityClaim, Err: err}
	}
	return principal, nil
}
