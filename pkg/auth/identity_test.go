package auth

import (
	"errors"
	"testing"
)

func TestIdentityExtractorPriority(t *testing.T) {
	e, err := NewIdentityExtractor([]string{"upn", "email"})
	if err != nil {
		t.Fatalf("NewIdentityExtractor: %v", err)
	}

	cases := []struct {
		name   string
		claims ValidatedClaims
		want   string
		claim  string
	}{
		{"higher priority wins", ValidatedClaims{"email": {"bob@example.com"}, "upn": {"bob@corp"}}, "bob@corp", "upn"},
		{"falls back", ValidatedClaims{"email": {"alice@example.com"}}, "alice@example.com", "email"},
		{"case insensitive", ValidatedClaims{"UPN": {"  carol@corp  "}}, "carol@corp", "upn"},
		{"first value wins", ValidatedClaims{"upn": {"first", "second"}}, "first", "upn"},
		{"blank value skipped", ValidatedClaims{"upn": {"   "}, "email": {"dave@example.com"}}, "dave@example.com", "email"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p, err := e.Extract(tc.claims)
			if err != nil {
				t.Fatalf("Extract: %v", err)
			}
			if p.UserID != tc.want || p.ClaimType != tc.claim {
				t.Errorf("expected %s from %s, got %+v", tc.want, tc.claim, p)
			}
		})
	}
}

func TestIdentityExtractorNoClaim(t *testing.T) {
	e, _ := NewIdentityExtractor([]string{"upn"})
	_, err := e.Extract(ValidatedClaims{"sub": {"123"}})
	if !errors.Is(err, ErrNoIdentityClaim) {
		t.Fatalf("expected ErrNoIdentityClaim, got %v", err)
	}
	if ReasonOf(err) != ReasonNoIdentityClaim {
		t.Errorf("unexpected reason %q", ReasonOf(err))
	}
}

func TestNewIdentityExtractorRequiresClaimTypes(t *testing.T) {
	if _, err := NewIdentityExtractor([]string{" "}); err == nil {
		t.Fatal("expected error for blank priority list")
	}
}

func TestValidatedClaimsExactMatchPreferred(t *testing.T) {
	c := ValidatedClaims{"Email": {"upper"}, "email": {"lower"}}
	if got := c.Values("email"); got[0] != "lower" {
		t.Errorf("expected exact match, got %v", got)
	}
	if got := c.Values("EMAIL"); got[0] != "upper" {
		t.Errorf("expected deterministic folded match, got %v", got)
	}
}
