package certs

import (
	"crypto"
	"crypto/sha1"
	"crypto/x509"
	"encoding/base64"
	"time"
)

// Certificate is a public key published by the token issuer, identified by
// its key id.
type Certificate struct {
	KeyID      string
	Thumbprint string // x5t, base64url SHA-1 of the DER certificate
	Algorithm  string
	PublicKey  crypto.PublicKey
	NotBefore  time.Time
	NotAfter   time.Time
}

// ValidAt reports whether t falls inside the certificate's validity window.
// Zero bounds are treated as open.
func (c Certificate) ValidAt(t time.Time) bool {
	if !c.NotBefore.IsZero() && t.Before(c.NotBefore) {
		return false
	}
	if !c.NotAfter.IsZero() && t.After(c.NotAfter) {
		return false
	}
	return true
}

// FromX509 builds a Certificate from a parsed X.509 certificate. When kid is
// empty the x5t thumbprint is used as the key id.
func FromX509(cert *x509.Certificate, kid string) Certificate {
	thumb := Thumbprint(cert.Raw)
	if kid == "" {
		kid = thumb
	}
	return Certificate{
		KeyID:      kid,
		Thumbprint: thumb,
		PublicKey:  cert.PublicKey,
		NotBefore:  cert.NotBefore,
		NotAfter:   cert.NotAfter,
	}
}

// Thumbprint returns the x5t value for a DER encoded certificate.
func Thumbprint(der []byte) string {
	sum := sha1.Sum(der)
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

// Set is an immutable snapshot of signing certificates. Several certificates
// may share a key id while an issuer rotates keys.
type Set struct {
	certs     []Certificate
	byKeyID   map[string][]int
	byThumb   map[string][]int
	fetchedAt time.Time
}

// NewSet copies certs into a new snapshot stamped with fetchedAt.
func NewSet(certs []Certificate, fetchedAt time.Time) *Set {
	s := &Set{
		certs:     make([]Certificate, len(certs)),
		byKeyID:   make(map[string][]int, len(certs)),
		byThumb:   make(map[string][]int, len(certs)),
		fetchedAt: fetchedAt,
	}
	copy(s.certs, certs)
	for i, c := range s.certs {
		if c.KeyID != "" {
			s.byKeyID[c.KeyID] = append(s.byKeyID[c.KeyID], i)
		}
		if c.Thumbprint != "" {
			s.byThumb[c.Thumbprint] = append(s.byThumb[c.Thumbprint], i)
		}
	}
	return s
}

// Lookup returns every certificate whose key id equals kid.
func (s *Set) Lookup(kid string) []Certificate {
	if s == nil {
		return nil
	}
	return s.pick(s.byKeyID[kid])
}

// LookupThumbprint returns every certificate with the given x5t thumbprint.
func (s *Set) LookupThumbprint(x5t string) []Certificate {
	if s == nil {
		return nil
	}
	return s.pick(s.byThumb[x5t])
}

func (s *Set) pick(idx []int) []Certificate {
	if len(idx) == 0 {
		return nil
	}
	out := make([]Certificate, 0, len(idx))
	for _, i := range idx {
		out = append(out, s.certs[i])
	}
	return out
}

// Certificates returns a copy of all certificates in the snapshot.
func (s *Set) Certificates() []Certificate {
	if s == nil {
		return nil
	}
	out := make([]Certificate, len(s.certs))
	copy(out, s.certs)
	return out
}

func (s *Set) Len() int {
	if s == nil {
		return 0
	}
	return len(s.certs)
}

func (s *Set) FetchedAt() time.Time {
	if s == nil {
		return time.Time{}
	}
	return s.fetchedAt
}
