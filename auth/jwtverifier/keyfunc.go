package jwtverifier

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	keyfunc "github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"

	"github.com/m-lab/authgate/auth"
	"github.com/m-lab/authgate/static"
)

// KeyfuncConfig controls validation for Keyfunc verifiers. Empty Issuer or
// Audience values are not checked.
type KeyfuncConfig struct {
	Issuer      string
	Audience    string
	AllowedAlgs []string
	Leeway      time.Duration
}

// Keyfunc validates JWTs with a JWKS that is refreshed in the background.
type Keyfunc struct {
	cfg     KeyfuncConfig
	keyfunc jwt.Keyfunc
}

// NewKeyfunc fetches the JWKS at jwksURL and keeps it refreshed until ctx is
// done.
func NewKeyfunc(ctx context.Context, cfg KeyfuncConfig, jwksURL string) (*Keyfunc, error) {
	if jwksURL == "" {
		return nil, errors.New("jwks uri required")
	}
	kf, err := keyfunc.NewDefaultCtx(ctx, []string{jwksURL})
	if err != nil {
		return nil, fmt.Errorf("jwks init failed: %w", err)
	}
	return newKeyfunc(cfg, kf), nil
}

// NewKeyfuncJSON verifies tokens with a fixed JWKS document.
func NewKeyfuncJSON(cfg KeyfuncConfig, jwks json.RawMessage) (*Keyfunc, error) {
	kf, err := keyfunc.NewJWKSetJSON(jwks)
	if err != nil {
		return nil, fmt.Errorf("invalid jwks: %w", err)
	}
	return newKeyfunc(cfg, kf), nil
}

func newKeyfunc(cfg KeyfuncConfig, kf keyfunc.Keyfunc) *Keyfunc {
	if len(cfg.AllowedAlgs) == 0 {
		cfg.AllowedAlgs = static.AllowedAlgs
	}
	return &Keyfunc{cfg: cfg, keyfunc: func(t *jwt.Token) (any, error) {
		if err := checkAlg(t.Method.Alg(), cfg.AllowedAlgs); err != nil {
			return nil, err
		}
		return kf.Keyfunc(t)
	}}
}

// Verify parses and validates the token. Tokens without an expiry are
// rejected.
func (v *Keyfunc) Verify(ctx context.Context, token string) (*auth.Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods(v.cfg.AllowedAlgs),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(v.cfg.Leeway),
	}
	if v.cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.cfg.Issuer))
	}
	if v.cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(v.cfg.Audience))
	}
	parsed, err := jwt.NewParser(opts...).Parse(token, v.keyfunc)
	if err != nil {
		return nil, fmt.Errorf("token parse/verify failed: %w", err)
	}
	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return nil, errors.New("invalid claims type")
	}
	return auth.ClaimsFromMap(claims), nil
}

// Mode returns the verification mode name.
func (v *Keyfunc) Mode() string {
	return "keyfunc"
}
