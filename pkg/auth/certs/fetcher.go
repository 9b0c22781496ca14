package certs

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"
)

var (
	// ErrFetch marks any failure to obtain certificates from the metadata source.
	ErrFetch = errors.New("certificate fetch failed")
	// ErrEmptySet is returned when the source responds without usable keys.
	// It matches ErrFetch.
	ErrEmptySet = fmt.Errorf("%w: metadata contained no signing certificates", ErrFetch)
	// ErrUnsupportedScheme is returned by NewFetcher for unregistered URL schemes.
	ErrUnsupportedScheme = errors.New("unsupported metadata address scheme")
	// ErrSkippedKeys is matched by a *SkippedKeysError.
	ErrSkippedKeys = errors.New("some signing keys could not be decoded")
)

// SkippedKey describes a key left out of a fetched set.
type SkippedKey struct {
	Index int
	KeyID string
	Err   error
}

// SkippedKeysError is returned next to a non-empty result when individual
// keys of the document could not be decoded. The returned certificates are
// usable.
type SkippedKeysError struct {
	Keys []SkippedKey
}

func (e *SkippedKeysError) Error() string {
	parts := make([]string, 0, len(e.Keys))
	for _, k := range e.Keys {
		id := k.KeyID
		if id == "" {
			id = fmt.Sprintf("#%d", k.Index)
		}
		parts = append(parts, fmt.Sprintf("%s: %v", id, k.Err))
	}
	return ErrSkippedKeys.Error() + ": " + strings.Join(parts, "; ")
}

func (e *SkippedKeysError) Is(target error) bool {
	return target == ErrSkippedKeys
}

// PartialResult reports whether err only describes skipped keys while list
// still holds certificates.
func PartialResult(list []Certificate, err error) bool {
	return len(list) > 0 && errors.Is(err, ErrSkippedKeys)
}

// Fetcher retrieves the current signing certificates from a metadata source.
// A fetcher may return certificates together with a *SkippedKeysError.
type Fetcher interface {
	Fetch(ctx context.Context) ([]Certificate, error)
}

// FetcherFunc adapts a function to the Fetcher interface.
type FetcherFunc func(ctx context.Context) ([]Certificate, error)

func (f FetcherFunc) Fetch(ctx context.Context) ([]Certificate, error) {
	return f(ctx)
}

// FetcherOptions are passed to every fetcher factory.
type FetcherOptions struct {
	Timeout    time.Duration
	HTTPClient *http.Client
}

// FetcherFactory creates a fetcher for a metadata address.
type FetcherFactory func(address *url.URL, opts FetcherOptions) (Fetcher, error)

var (
	registry = make(map[string]FetcherFactory)
	mu       sync.RWMutex
)

// RegisterFetcher registers a factory for a URL scheme
func RegisterFetcher(scheme string, factory FetcherFactory) {
	mu.Lock()
	defer mu.Unlock()
	registry[strings.ToLower(scheme)] = factory
}

// NewFetcher creates a fetcher for address using the factory registered for
// its scheme.
func NewFetcher(address string, opts FetcherOptions) (Fetcher, error) {
	u, err := url.Parse(strings.TrimSpace(address))
	if err != nil {
		return nil, fmt.Errorf("parse metadata address: %w", err)
	}

	mu.RLock()
	factory, ok := registry[strings.ToLower(u.Scheme)]
	mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedScheme, u.Scheme)
	}
	return factory(u, opts)
}

// ListFetchers returns registered schemes
func ListFetchers() []string {
	mu.RLock()
	defer mu.RUnlock()

	schemes := make([]string, 0, len(registry))
	for name := range registry {
		schemes = append(schemes, name)
	}
	sort.Strings(schemes)
	return schemes
}
