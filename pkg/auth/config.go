package auth

import (
	"errors"
	"net/url"
	"strings"
	"time"
)

const defaultFetchTimeout = 10 * time.Second

// ErrInvalidConfiguration is matched by every *ConfigurationError.
var ErrInvalidConfiguration = errors.New("token validation configuration is invalid")

// ValidationConfig holds the trusted issuers and audiences, where signing
// certificates are published, and which claims identify the caller.
type ValidationConfig struct {
	ValidIssuers           []string `yaml:"validIssuers" json:"validIssuers"`
	ValidAudiences         []string `yaml:"validAudiences" json:"validAudiences"`
	MetadataAddress        string   `yaml:"metadataAddress" json:"metadataAddress"`
	RefreshIntervalMinutes int      `yaml:"metadataRefreshMinutes" json:"metadataRefreshMinutes"`
	ClaimTypePriority      []string `yaml:"identityClaimTypes" json:"identityClaimTypes"`
	FetchTimeoutSeconds    int      `yaml:"fetchTimeoutSeconds" json:"fetchTimeoutSeconds"`
}

// ConfigurationError lists every violated field of a ValidationConfig.
type ConfigurationError struct {
	Problems []FieldProblem
}

type FieldProblem struct {
	Field   string
	Message string
}

func (e *ConfigurationError) Error() string {
	parts := make([]string, 0, len(e.Problems))
	for _, p := range e.Problems {
		parts = append(parts, p.Field+" "+p.Message)
	}
	return ErrInvalidConfiguration.Error() + ": " + strings.Join(parts, "; ")
}

func (e *ConfigurationError) Is(target error) bool {
	return target == ErrInvalidConfiguration
}

// Fields returns the names of the violated fields in declaration order.
func (e *ConfigurationError) Fields() []string {
	out := make([]string, 0, len(e.Problems))
	for _, p := range e.Problems {
		out = append(out, p.Field)
	}
	return out
}

// Normalized returns a copy with list entries and the address trimmed and
// blank list entries removed.
func (c ValidationConfig) Normalized() ValidationConfig {
	c.ValidIssuers = cleanList(c.ValidIssuers)
	c.ValidAudiences = cleanList(c.ValidAudiences)
	c.ClaimTypePriority = cleanList(c.ClaimTypePriority)
	c.MetadataAddress = strings.TrimSpace(c.MetadataAddress)
	return c
}

// Validate reports all problems at once. Lists containing only blank
// entries count as empty.
func (c ValidationConfig) Validate() error {
	n := c.Normalized()
	var problems []FieldProblem
	add := func(field, msg string) {
		problems = append(problems, FieldProblem{Field: field, Message: msg})
	}

	if len(n.ValidIssuers) == 0 {
		add("validIssuers", "is required")
	}
	if len(n.ValidAudiences) == 0 {
		add("validAudiences", "is required")
	}
	if n.MetadataAddress == "" {
		add("metadataAddress", "is required")
	} else if u, err := url.Parse(n.MetadataAddress); err != nil || u.Scheme == "" {
		add("metadataAddress", "must be an absolute URL")
	}
	if n.RefreshIntervalMinutes <= 0 {
		add("metadataRefreshMinutes", "must be greater than zero")
	}
	if len(n.ClaimTypePriority) == 0 {
		add("identityClaimTypes", "is required")
	}
	if n.FetchTimeoutSeconds < 0 {
		add("fetchTimeoutSeconds", "must not be negative")
	}

	if len(problems) > 0 {
		return &ConfigurationError{Problems: problems}
	}
	return nil
}

func (c ValidationConfig) RefreshInterval() time.Duration {
	return time.Duration(c.RefreshIntervalMinutes) * time.Minute
}

// FetchTimeout bounds a single metadata fetch.
func (c ValidationConfig) FetchTimeout() time.Duration {
	if c.FetchTimeoutSeconds <= 0 {
		return defaultFetchTimeout
	}
	return time.Duration(c.FetchTimeoutSeconds) * time.Second
}

func cleanList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, v := range in {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
