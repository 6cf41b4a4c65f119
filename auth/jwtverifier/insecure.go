package jwtverifier

import (
	"context"
	"fmt"
	"os"
	"sync"

	log "github.com/sirupsen/logrus"
	"gopkg.in/square/go-jose.v2/jwt"

	"github.com/m-lab/authgate/auth"
)

// Insecure parses JWTs WITHOUT signature verification. This mode is ONLY
// for development and testing. It requires the ALLOW_INSECURE_JWT=true
// environment variable to be set as a safety check.
//
// WARNING: Never use this in production - it accepts any JWT regardless of signature.
type Insecure struct {
	warnedOnce sync.Once
}

// NewInsecure creates a new insecure JWT verifier.
// Returns an error if the ALLOW_INSECURE_JWT environment variable is not set to "true".
func NewInsecure() (*Insecure, error) {
	if os.Getenv("ALLOW_INSECURE_JWT") != "true" {
		return nil, fmt.Errorf("insecure JWT mode requires ALLOW_INSECURE_JWT=true environment variable")
	}

	log.Warn("======================================================================")
	log.Warn("INSECURE JWT MODE ENABLED - JWTs will NOT be validated!")
	log.Warn("This mode should ONLY be used in development/testing environments")
	log.Warn("DO NOT USE IN PRODUCTION")
	log.Warn("======================================================================")

	return &Insecure{}, nil
}

// Verify decodes the token claims without checking the signature.
func (v *Insecure) Verify(ctx context.Context, token string) (*auth.Claims, error) {
	v.warnedOnce.Do(func() {
		log.Warn("INSECURE MODE: Parsing JWT without signature verification")
	})

	tok, err := jwt.ParseSigned(token)
	if err != nil {
		return nil, fmt.Errorf("failed to parse JWT: %w", err)
	}

	var claims map[string]interface{}
	if err := tok.UnsafeClaimsWithoutVerification(&claims); err != nil {
		return nil, fmt.Errorf("failed to extract claims: %w", err)
	}

	log.WithFields(log.Fields{
		"mode":   v.Mode(),
		"claims": claims,
	}).Debug("JWT claims extracted (UNVERIFIED)")

	return auth.ClaimsFromMap(claims), nil
}

// Mode returns the verification mode name.
func (v *Insecure) Mode() string {
	return "insecure"
}
