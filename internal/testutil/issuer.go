// Package testutil provides a signing key and an httptest issuer that serves
// the key as a JWK Set, so token validation can be exercised end to end
// without a real identity provider.
package testutil

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha1"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/lestrrat-go/jwx/v2/cert"
	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwk"
)

// SigningKey is a private key with a self-signed certificate.
type SigningKey struct {
	KeyID       string
	Method      jwt.SigningMethod
	Private     crypto.Signer
	Certificate *x509.Certificate
}

// NewRSAKey generates an RS256 key whose certificate is valid from an hour
// ago until a day from now.
func NewRSAKey(kid string) *SigningKey {
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		panic("generate rsa key: " + err.Error())
	}
	return newSigningKey(kid, jwt.SigningMethodRS256, priv, time.Now().Add(-time.Hour), time.Now().Add(24*time.Hour))
}

// NewECKey generates an ES256 key.
func NewECKey(kid string) *SigningKey {
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		panic("generate ec key: " + err.Error())
	}
	return newSigningKey(kid, jwt.SigningMethodES256, priv, time.Now().Add(-time.Hour), time.Now().Add(24*time.Hour))
}

// NewExpiredRSAKey generates an RS256 key whose certificate expired an hour ago.
func NewExpiredRSAKey(kid string) *SigningKey {
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		panic("generate rsa key: " + err.Error())
	}
	return newSigningKey(kid, jwt.SigningMethodRS256, priv, time.Now().Add(-48*time.Hour), time.Now().Add(-time.Hour))
}

func newSigningKey(kid string, method jwt.SigningMethod, priv crypto.Signer, notBefore, notAfter time.Time) *SigningKey {
	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(time.Now().UnixNano()),
		Subject:      pkix.Name{CommonName: "tokengate test signer " + kid},
		NotBefore:    notBefore,
		NotAfter:     notAfter,
		KeyUsage:     x509.KeyUsageDigitalSignature,
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, priv.Public(), priv)
	if err != nil {
		panic("create certificate: " + err.Error())
	}
	parsed, err := x509.ParseCertificate(der)
	if err != nil {
		panic("parse certificate: " + err.Error())
	}
	return &SigningKey{KeyID: kid, Method: method, Private: priv, Certificate: parsed}
}

// Thumbprint returns the key's x5t value.
func (k *SigningKey) Thumbprint() string {
	sum := sha1.Sum(k.Certificate.Raw)
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

// Sign signs claims with kid set in the header.
func (k *SigningKey) Sign(claims jwt.MapClaims) string {
	return k.SignWithHeader(claims, map[string]any{"kid": k.KeyID})
}

// SignWithHeader signs claims with exactly the given extra header fields.
func (k *SigningKey) SignWithHeader(claims jwt.MapClaims, header map[string]any) string {
	tok := jwt.NewWithClaims(k.Method, claims)
	delete(tok.Header, "kid")
	for name, v := range header {
		tok.Header[name] = v
	}
	signed, err := tok.SignedString(k.Private)
	if err != nil {
		panic("sign token: " + err.Error())
	}
	return signed
}

// PEM returns the certificate in PEM form.
func (k *SigningKey) PEM() []byte {
	return pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: k.Certificate.Raw})
}

// JWKS renders keys as a JWK Set document with x5c chains.
func JWKS(keys ...*SigningKey) []byte {
	set := jwk.NewSet()
	for _, k := range keys {
		pub, err := jwk.FromRaw(k.Private.Public())
		if err != nil {
			panic("jwk from key: " + err.Error())
		}
		var chain cert.Chain
		_ = chain.AddString(base64.StdEncoding.EncodeToString(k.Certificate.Raw))
		must(pub.Set(jwk.KeyIDKey, k.KeyID))
		must(pub.Set(jwk.KeyUsageKey, "sig"))
		must(pub.Set(jwk.AlgorithmKey, jwa.SignatureAlgorithm(k.Method.Alg())))
		must(pub.Set(jwk.X509CertChainKey, &chain))
		must(set.AddKey(pub))
	}
	out, err := json.Marshal(set)
	if err != nil {
		panic("marshal jwks: " + err.Error())
	}
	return out
}

func must(err error) {
	if err != nil {
		panic(err)
	}
}

// Issuer serves a JWK Set at /keys and an OpenID discovery document at
// /.well-known/openid-configuration.
type Issuer struct {
	server   *httptest.Server
	requests atomic.Int64

	mu     sync.Mutex
	keys   []*SigningKey
	status int
	body   []byte
}

func NewIssuer(keys ...*SigningKey) *Issuer {
	iss := &Issuer{keys: keys}

	mux := http.NewServeMux()
	mux.HandleFunc("/keys", iss.handleKeys)
	mux.HandleFunc("/.well-known/openid-configuration", iss.handleDiscovery)

	iss.server = httptest.NewServer(mux)
	return iss
}

func (i *Issuer) URL() string          { return i.server.URL }
func (i *Issuer) KeysURL() string      { return i.server.URL + "/keys" }
func (i *Issuer) DiscoveryURL() string { return i.server.URL + "/.well-known/openid-configuration" }

// Requests counts requests served on /keys.
func (i *Issuer) Requests() int64 { return i.requests.Load() }

// SetKeys changes the published key set.
func (i *Issuer) SetKeys(keys ...*SigningKey) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.keys = keys
	i.status = 0
	i.body = nil
}

// Fail makes /keys answer with status and body until SetKeys is called.
func (i *Issuer) Fail(status int, body []byte) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.status = status
	i.body = body
}

func (i *Issuer) Close() {
	if i.server != nil {
		i.server.Close()
	}
}

func (i *Issuer) handleKeys(w http.ResponseWriter, r *http.Request) {
	i.requests.Add(1)

	i.mu.Lock()
	status, body, keys := i.status, i.body, i.keys
	i.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if status != 0 {
		w.WriteHeader(status)
		_, _ = w.Write(body)
		return
	}
	_, _ = w.Write(JWKS(keys...))
}

func (i *Issuer) handleDiscovery(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{
		"issuer":   i.URL(),
		"jwks_uri": i.KeysURL(),
	})
}
