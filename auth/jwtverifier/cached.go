package jwtverifier

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/m-lab/authgate/auth"
	"github.com/m-lab/authgate/metrics"
	"github.com/m-lab/authgate/static"
)

// ClaimsStore stores verified claims with a TTL. memorystore.Client
// implements it.
type ClaimsStore interface {
	Get(key string) (auth.Claims, bool, error)
	Put(key string, cl auth.Claims, ttl time.Duration) error
}

// Cached remembers the claims of verified tokens. Entries live until the
// earlier of maxTTL and the token expiry. Store failures are logged and the
// inner verifier is used.
type Cached struct {
	inner  auth.Verifier
	store  ClaimsStore
	maxTTL time.Duration
	now    func() time.Time
}

// NewCached wraps inner with a claims cache.
func NewCached(inner auth.Verifier, store ClaimsStore, maxTTL time.Duration) *Cached {
	return &Cached{
		inner:  inner,
		store:  store,
		maxTTL: maxTTL,
		now:    time.Now,
	}
}

// Verify implements auth.Verifier.
func (c *Cached) Verify(ctx context.Context, token string) (*auth.Claims, error) {
	key := cacheKey(token)
	now := c.now()

	cl, found, err := c.store.Get(key)
	switch {
	case err != nil:
		metrics.ClaimsCacheTotal.WithLabelValues("error").Inc()
		log.WithError(err).Warn("claims cache lookup failed")
	case found && cl.Expiry != 0 && !now.Before(time.Unix(cl.Expiry, 0)):
		metrics.ClaimsCacheTotal.WithLabelValues("expired").Inc()
	case found:
		metrics.ClaimsCacheTotal.WithLabelValues("hit").Inc()
		return &cl, nil
	default:
		metrics.ClaimsCacheTotal.WithLabelValues("miss").Inc()
	}

	verified, err := c.inner.Verify(ctx, token)
	if err != nil || verified == nil {
		return verified, err
	}

	ttl := c.maxTTL
	if verified.Expiry != 0 {
		if left := time.Unix(verified.Expiry, 0).Sub(now); left < ttl {
			ttl = left
		}
	}
	if ttl < time.Second {
		return verified, nil
	}
	if err := c.store.Put(key, *verified, ttl); err != nil {
		log.WithError(err).Warn("claims cache store failed")
	}
	return verified, nil
}

// Mode returns the verification mode name.
func (c *Cached) Mode() string {
	return "cached"
}

func cacheKey(token string) string {
	sum := sha256.Sum256([]byte(token))
	return static.ClaimsCacheKeyPrefix + hex.EncodeToString(sum[:])
}
