package certs

import (
	"bytes"
	"crypto/x509"
	"encoding/pem"
	"fmt"

	"github.com/lestrrat-go/jwx/v2/cert"
	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwk"
)

// ParseJWKS decodes a JWK Set document. Symmetric keys and keys marked for
// encryption are ignored. When a key carries an x5c chain, the leaf certificate supplies the
// thumbprint and validity window. Signing keys that fail to decode are left
// out and reported in a *SkippedKeysError returned with the remaining keys.
func ParseJWKS(data []byte) ([]Certificate, error) {
	set, err := jwk.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetch, err)
	}

	out := make([]Certificate, 0, set.Len())
	var skipped []SkippedKey
	for i := 0; i < set.Len(); i++ {
		key, ok := set.Key(i)
		if !ok {
			continue
		}
		if use := key.KeyUsage(); use != "" && use != "sig" {
			continue
		}
		if key.KeyType() == jwa.OctetSeq {
			continue
		}
		c, err := fromJWK(key)
		if err != nil {
			skipped = append(skipped, SkippedKey{Index: i, KeyID: key.KeyID(), Err: err})
			continue
		}
		out = append(out, c)
	}

	switch {
	case len(out) == 0 && len(skipped) > 0:
		return nil, fmt.Errorf("%w: %w", ErrEmptySet, &SkippedKeysError{Keys: skipped})
	case len(out) == 0:
		return nil, ErrEmptySet
	case len(skipped) > 0:
		return out, &SkippedKeysError{Keys: skipped}
	}
	return out, nil
}

func fromJWK(key jwk.Key) (Certificate, error) {
	raw, err := jwk.PublicRawKeyOf(key)
	if err != nil {
		return Certificate{}, fmt.Errorf("decode public key: %w", err)
	}

	c := Certificate{
		KeyID:      key.KeyID(),
		Thumbprint: key.X509CertThumbprint(),
		PublicKey:  raw,
	}
	if alg := key.Algorithm(); alg != nil {
		c.Algorithm = alg.String()
	}

	if chain := key.X509CertChain(); chain != nil && chain.Len() > 0 {
		leafB64, _ := chain.Get(0)
		leaf, err := cert.Parse(leafB64)
		if err != nil {
			return Certificate{}, fmt.Errorf("decode x5c: %w", err)
		}
		c.NotBefore = leaf.NotBefore
		c.NotAfter = leaf.NotAfter
		if c.Thumbprint == "" {
			c.Thumbprint = Thumbprint(leaf.Raw)
		}
	}

	if c.KeyID == "" {
		c.KeyID = c.Thumbprint
	}
	return c, nil
}

// ParsePEM decodes a bundle of PEM encoded X.509 certificates. Each key id
// is the certificate's x5t thumbprint.
func ParsePEM(data []byte) ([]Certificate, error) {
	var out []Certificate
	rest := bytes.TrimSpace(data)
	for len(rest) > 0 {
		var block *pem.Block
		block, rest = pem.Decode(rest)
		if block == nil {
			return nil, fmt.Errorf("%w: invalid PEM data", ErrFetch)
		}
		if block.Type != "CERTIFICATE" {
			continue
		}
		parsed, err := x509.ParseCertificate(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrFetch, err)
		}
		out = append(out, FromX509(parsed, ""))
		rest = bytes.TrimSpace(rest)
	}
	if len(out) == 0 {
		return nil, ErrEmptySet
	}
	return out, nil
}
