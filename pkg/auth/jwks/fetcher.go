package jwks

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/osvaldoandrade/tokengate/internal/tracing"
	"github.com/osvaldoandrade/tokengate/pkg/auth/certs"
)

const maxDocumentBytes = 1 << 20

func init() {
	certs.RegisterFetcher("http", New)
	certs.RegisterFetcher("https", New)
}

// Fetcher loads signing certificates over HTTP. The address may point at a
// JWK Set or at an OpenID discovery document whose jwks_uri is followed.
type Fetcher struct {
	address string
	client  *http.Client
}

// New creates an HTTP fetcher for address
func New(address *url.URL, opts certs.FetcherOptions) (certs.Fetcher, error) {
	if address == nil || address.Host == "" {
		return nil, fmt.Errorf("jwks: metadata address must include a host")
	}
	client := opts.HTTPClient
	if client == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	return &Fetcher{address: address.String(), client: client}, nil
}

func (f *Fetcher) Fetch(ctx context.Context) ([]certs.Certificate, error) {
	body, err := f.get(ctx, f.address)
	if err != nil {
		return nil, err
	}

	var doc struct {
		Keys    json.RawMessage `json:"keys"`
		JWKSURI string          `json:"jwks_uri"`
	}
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("%w: decode metadata: %v", certs.ErrFetch, err)
	}

	switch {
	case len(doc.Keys) > 0:
		return certs.ParseJWKS(body)
	case strings.TrimSpace(doc.JWKSURI) != "":
		keysBody, err := f.get(ctx, strings.TrimSpace(doc.JWKSURI))
		if err != nil {
			return nil, err
		}
		return certs.ParseJWKS(keysBody)
	default:
		return nil, fmt.Errorf("%w: metadata has neither keys nor jwks_uri", certs.ErrFetch)
	}
}

func (f *Fetcher) get(ctx context.Context, target string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", certs.ErrFetch, err)
	}
	req.Header.Set("Accept", "application/json")
	tracing.InjectHeaders(ctx, req.Header)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", certs.ErrFetch, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %s returned status %d", certs.ErrFetch, target, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", certs.ErrFetch, err)
	}
	return body, nil
}
