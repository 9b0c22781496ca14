package static

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"

	"github.com/osvaldoandrade/tokengate/pkg/auth/certs"
)

func init() {
	certs.RegisterFetcher("file", New)
}

type fetcher struct {
	path string
}

// New creates a fetcher that reads a local JWK Set or PEM certificate
// bundle on every refresh. Intended for offline and air-gapped deployments.
func New(address *url.URL, _ certs.FetcherOptions) (certs.Fetcher, error) {
	if address == nil {
		return nil, errors.New("static: missing address")
	}
	path := address.Path
	if address.Opaque != "" {
		path = address.Opaque
	}
	if path == "" {
		return nil, errors.New("static: file path is required")
	}
	return &fetcher{path: path}, nil
}

func (f *fetcher) Fetch(ctx context.Context) ([]certs.Certificate, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", certs.ErrFetch, err)
	}
	data, err := os.ReadFile(f.path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", certs.ErrFetch, err)
	}
	data = bytes.TrimSpace(data)
	if bytes.HasPrefix(data, []byte("-----BEGIN")) {
		return certs.ParsePEM(data)
	}
	return certs.ParseJWKS(data)
}
