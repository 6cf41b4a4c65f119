package jwtverifier

import (
	"context"
	"time"

	"github.com/m-lab/access/token"
	"gopkg.in/square/go-jose.v2/jwt"

	"github.com/m-lab/authgate/auth"
)

// Access verifies JWTs signed by one of a fixed set of public JWKs, such as
// the keys loaded by the secrets package.
type Access struct {
	verifier *token.Verifier
	expected jwt.Expected
	now      func() time.Time
}

// NewAccess creates a verifier for the given public JWKs. Empty issuer or
// audience values are not checked.
func NewAccess(issuer, audience string, keys ...[]byte) (*Access, error) {
	v, err := token.NewVerifier(keys...)
	if err != nil {
		return nil, err
	}
	exp := jwt.Expected{Issuer: issuer}
	if audience != "" {
		exp.Audience = jwt.Audience{audience}
	}
	return &Access{verifier: v, expected: exp, now: time.Now}, nil
}

// Verify checks the token signature and standard claims.
func (v *Access) Verify(ctx context.Context, tok string) (*auth.Claims, error) {
	exp := v.expected
	exp.Time = v.now()
	cl, err := v.verifier.Verify(tok, exp)
	if err != nil {
		return nil, err
	}
	return claimsFromJWT(cl), nil
}

// Mode returns the verification mode name.
func (v *Access) Mode() string {
	return "access"
}

func claimsFromJWT(cl *jwt.Claims) *auth.Claims {
	m := map[string]interface{}{}
	if cl.Issuer != "" {
		m["iss"] = cl.Issuer
	}
	if cl.Subject != "" {
		m["sub"] = cl.Subject
	}
	if cl.ID != "" {
		m["jti"] = cl.ID
	}
	if len(cl.Audience) > 0 {
		aud := make([]interface{}, len(cl.Audience))
		for i := range cl.Audience {
			aud[i] = cl.Audience[i]
		}
		m["aud"] = aud
	}
	for k, d := range map[string]*jwt.NumericDate{"iat": cl.IssuedAt, "exp": cl.Expiry, "nbf": cl.NotBefore} {
		if d != nil {
			m[k] = int64(*d)
		}
	}
	return auth.ClaimsFromMap(m)
}
