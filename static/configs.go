// Package static contains static information for the authgate service.
package static

import (
	"time"
)

// Constants used by the authentication gate, its verifier backends, and
// clients presenting bearer tokens.
const (
	AuthorizationHeader        = "Authorization"
	BearerScheme               = "Bearer"
	DefaultRealm               = "authgate"
	IssuerAuthgate             = "authgate"
	AudienceAuthgate           = "authgate"
	JWKSRefreshInterval        = 5 * time.Minute
	JWKSFetchTimeout           = 10 * time.Second
	BackoffInitialInterval     = 100 * time.Millisecond
	BackoffRandomizationFactor = 0.5
	BackoffMultiplier          = 2
	BackoffMaxInterval         = 2 * time.Second
	BackoffMaxElapsedTime      = 10 * time.Second
	ClaimsCacheKeyPrefix       = "authgate:claims:"
	ClaimsCacheMaxTTL          = 5 * time.Minute
	RedisDialTimeout           = 5 * time.Second
	RedisMaxIdle               = 3
	RedisIdleTimeout           = 240 * time.Second
)

// AllowedAlgs lists the JWS algorithms accepted by verifiers unless
// configured otherwise. "none" is never accepted.
var AllowedAlgs = []string{"RS256", "ES256", "EdDSA"}
