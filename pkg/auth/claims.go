package auth

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// ValidatedClaims maps claim types to their values. It is only produced by
// TokenValidator from a token whose signature and lifetime were verified.
type ValidatedClaims map[string][]string

// Values returns the values of claimType, matched case-insensitively. An
// exact match wins over a case-folded one.
func (c ValidatedClaims) Values(claimType string) []string {
	if v, ok := c[claimType]; ok {
		return v
	}
	var keys []string
	for k := range c {
		if strings.EqualFold(k, claimType) {
			keys = append(keys, k)
		}
	}
	if len(keys) == 0 {
		return nil
	}
	sort.Strings(keys)
	return c[keys[0]]
}

// Principal is the authenticated caller.
type Principal struct {
	UserID string
	// ClaimType is the configured claim type that produced UserID.
	ClaimType string
}

func claimsFromMap(m map[string]interface{}) ValidatedClaims {
	out := make(ValidatedClaims, len(m))
	for k, v := range m {
		switch val := v.(type) {
		case []interface{}:
			vals := make([]string, 0, len(val))
			for _, item := range val {
				vals = append(vals, claimString(item))
			}
			out[k] = vals
		default:
			out[k] = []string{claimString(val)}
		}
	}
	return out
}

func claimString(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case json.Number:
		return val.String()
	case bool:
		return strconv.FormatBool(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	default:
		b, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprint(val)
		}
		return string(b)
	}
}
