// Package jwtverifier provides bearer token verification backends.
//
// Every backend implements auth.Verifier and reports a Mode used as a
// metric label:
//   - jwks: verify JWTs with keys fetched from a JWKS URL (Direct)
//   - oidc: verify ID tokens with an OpenID Connect provider (OIDC)
//   - keyfunc: verify JWTs with an auto-refreshing JWKS (Keyfunc)
//   - access: verify JWTs with static public keys (Access)
//   - insecure: parse JWTs without verification, for development (Insecure)
//
// Chain and Cached compose other verifiers.
package jwtverifier

import (
	"fmt"

	"github.com/cenkalti/backoff/v4"

	"github.com/m-lab/authgate/auth"
	"github.com/m-lab/authgate/static"
)

// Moder is implemented by verifiers that report their mode.
type Moder interface {
	Mode() string
}

// ModeOf returns v's mode, or "custom" for verifiers that do not report one.
func ModeOf(v auth.Verifier) string {
	if m, ok := v.(Moder); ok {
		return m.Mode()
	}
	return "custom"
}

func newBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = static.BackoffInitialInterval
	b.RandomizationFactor = static.BackoffRandomizationFactor
	b.Multiplier = static.BackoffMultiplier
	b.MaxInterval = static.BackoffMaxInterval
	b.MaxElapsedTime = static.BackoffMaxElapsedTime
	b.Reset()
	return b
}

func checkAlg(alg string, allowed []string) error {
	for _, a := range allowed {
		if alg == a {
			return nil
		}
	}
	return fmt.Errorf("disallowed alg: %q", alg)
}
