package jwtverifier

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"testing"

	jose "github.com/go-jose/go-jose/v4"
	josejwt "github.com/go-jose/go-jose/v4/jwt"
	"github.com/golang-jwt/jwt/v5"

	"github.com/m-lab/authgate/auth"
)

// createTestJWKS creates a test signing key and JWKS for testing
func createTestJWKS(t *testing.T) (jose.SigningKey, jose.JSONWebKeySet) {
	t.Helper()
	privateKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("Failed to generate key: %v", err)
	}

	jwks := jose.JSONWebKeySet{
		Keys: []jose.JSONWebKey{
			{
				Key:       &privateKey.PublicKey,
				KeyID:     "test-key",
				Algorithm: string(jose.ES256),
				Use:       "sig",
			},
		},
	}

	return jose.SigningKey{Algorithm: jose.ES256, Key: privateKey}, jwks
}

// createSignedJWT creates a signed JWT with the given claims
func createSignedJWT(t *testing.T, signingKey jose.SigningKey, claims map[string]interface{}) string {
	t.Helper()
	signer, err := jose.NewSigner(signingKey, nil)
	if err != nil {
		t.Fatalf("Failed to create signer: %v", err)
	}

	token, err := josejwt.Signed(signer).Claims(claims).Serialize()
	if err != nil {
		t.Fatalf("Failed to create JWT: %v", err)
	}

	return token
}

// genRSA returns an RSA key, its key ID and a JWKS document with the public key.
func genRSA(t *testing.T) (*rsa.PrivateKey, string, []byte) {
	t.Helper()
	pk, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("gen key: %v", err)
	}
	kid := "test-key"
	jwk := jose.JSONWebKey{Key: &pk.PublicKey, KeyID: kid, Algorithm: "RS256", Use: "sig"}
	b, err := json.Marshal(jose.JSONWebKeySet{Keys: []jose.JSONWebKey{jwk}})
	if err != nil {
		t.Fatalf("marshal jwks: %v", err)
	}
	return pk, kid, b
}

func signRS256(t *testing.T, pk *rsa.PrivateKey, kid string, claims jwt.MapClaims) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	if kid != "" {
		tok.Header["kid"] = kid
	}
	s, err := tok.SignedString(pk)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return s
}

func signHS256(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("shared-secret"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return s
}

func TestModeOf(t *testing.T) {
	tests := []struct {
		v    auth.Verifier
		want string
	}{
		{v: &Insecure{}, want: "insecure"},
		{v: Chain{}, want: "chain"},
		{v: &Cached{}, want: "cached"},
		{v: &Keyfunc{}, want: "keyfunc"},
		{v: &OIDC{}, want: "oidc"},
		{v: &Access{}, want: "access"},
		{v: &Direct{}, want: "jwks"},
		{v: auth.VerifierFunc(func(ctx context.Context, tok string) (*auth.Claims, error) { return nil, nil }), want: "custom"},
	}
	for _, tt := range tests {
		if got := ModeOf(tt.v); got != tt.want {
			t.Errorf("ModeOf(%T) = %q, want %q", tt.v, got, tt.want)
		}
	}
}
