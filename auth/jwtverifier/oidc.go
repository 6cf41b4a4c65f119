package jwtverifier

import (
	"context"
	"errors"
	"fmt"

	"github.com/coreos/go-oidc/v3/oidc"

	"github.com/m-lab/authgate/auth"
	"github.com/m-lab/authgate/static"
)

// OIDC verifies ID tokens issued by an OpenID Connect provider.
type OIDC struct {
	verifier *oidc.IDTokenVerifier
}

// NewOIDC discovers the provider at issuer and verifies tokens against its
// published keys. When audience is empty the client ID is not checked.
func NewOIDC(ctx context.Context, issuer, audience string) (*OIDC, error) {
	if issuer == "" {
		return nil, errors.New("issuer is required")
	}
	provider, err := oidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, fmt.Errorf("oidc discovery failed: %w", err)
	}
	return &OIDC{verifier: provider.Verifier(oidcConfig(audience))}, nil
}

// NewOIDCWithKeySet verifies tokens from issuer with an explicit key set,
// without discovery.
func NewOIDCWithKeySet(issuer, audience string, keys oidc.KeySet) *OIDC {
	return &OIDC{verifier: oidc.NewVerifier(issuer, keys, oidcConfig(audience))}
}

func oidcConfig(audience string) *oidc.Config {
	return &oidc.Config{
		ClientID:             audience,
		SkipClientIDCheck:    audience == "",
		SupportedSigningAlgs: static.AllowedAlgs,
	}
}

// Verify checks the ID token signature, issuer, audience and expiry.
func (v *OIDC) Verify(ctx context.Context, token string) (*auth.Claims, error) {
	idt, err := v.verifier.Verify(ctx, token)
	if err != nil {
		return nil, err
	}
	var claims map[string]interface{}
	if err := idt.Claims(&claims); err != nil {
		return nil, fmt.Errorf("failed to decode ID token claims: %w", err)
	}
	return auth.ClaimsFromMap(claims), nil
}

// Mode returns the verification mode name.
func (v *OIDC) Mode() string {
	return "oidc"
}
