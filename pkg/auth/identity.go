package auth

import (
	"errors"
	"fmt"
	"strings"
)

// IdentityExtractor derives a Principal from validated claims using an
// ordered list of claim types.
type IdentityExtractor struct {
	priority []string
}

func NewIdentityExtractor(priority []string) (*IdentityExtractor, error) {
	p := cleanList(priority)
	if len(p) == 0 {
		return nil, errors.New("at least one identity claim type is required")
	}
	return &IdentityExtractor{priority: p}, nil
}

// Extract returns the trimmed first value of the highest-priority claim type
// present in claims. Claim types match case-insensitively; a claim whose
// first value is blank is passed over.
func (e *IdentityExtractor) Extract(claims ValidatedClaims) (Principal, error) {
	for _, claimType := range e.priority {
		values := claims.Values(claimType)
		if len(values) == 0 {
			continue
		}
		if id := strings.TrimSpace(values[0]); id != "" {
			return Principal{UserID: id, ClaimType: claimType}, nil
		}
	}
	return Principal{}, fmt.Errorf("%w: looked for %s", ErrNoIdentityClaim, strings.Join(e.priority, ", "))
}
