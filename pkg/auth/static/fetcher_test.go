package static

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/osvaldoandrade/tokengate/internal/testutil"
	"github.com/osvaldoandrade/tokengate/pkg/auth/certs"
)

func TestFileFetcherReadsJWKS(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "keys.json")
	if err := os.WriteFile(path, testutil.JWKS(testutil.NewRSAKey("k1")), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	f, err := certs.NewFetcher("file://"+path, certs.FetcherOptions{})
	if err != nil {
		t.Fatalf("NewFetcher: %v", err)
	}
	got, err := f.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(got) != 1 || got[0].KeyID != "k1" {
		t.Errorf("unexpected certificates: %+v", got)
	}
}

func TestFileFetcherReadsPEMBundle(t *testing.T) {
	key := testutil.NewRSAKey("ignored")
	path := filepath.Join(t.TempDir(), "certs.pem")
	if err := os.WriteFile(path, key.PEM(), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	f, err := certs.NewFetcher("file://"+path, certs.FetcherOptions{})
	if err != nil {
		t.Fatalf("NewFetcher: %v", err)
	}
	got, err := f.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(got) != 1 || got[0].KeyID != key.Thumbprint() {
		t.Errorf("expected thumbprint key id, got %+v", got)
	}
}

func TestFileFetcherMissingFile(t *testing.T) {
	f, err := certs.NewFetcher("file://"+filepath.Join(t.TempDir(), "nope.json"), certs.FetcherOptions{})
	if err != nil {
		t.Fatalf("NewFetcher: %v", err)
	}
	if _, err := f.Fetch(context.Background()); !errors.Is(err, certs.ErrFetch) {
		t.Errorf("expected ErrFetch, got %v", err)
	}
}
