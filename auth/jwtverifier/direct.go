package jwtverifier

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/go-cmp/cmp"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
	"gopkg.in/square/go-jose.v2"
	"gopkg.in/square/go-jose.v2/jwt"

	"github.com/m-lab/authgate/auth"
	"github.com/m-lab/authgate/metrics"
	"github.com/m-lab/authgate/static"
)

// Direct validates JWTs using keys from a JWKS URL. The key set is cached
// for a refresh interval. A stale key set keeps serving while one refresh
// runs in the background; when that refresh fails the previous keys are kept
// for another interval.
type Direct struct {
	jwksURL    *url.URL
	httpClient *http.Client
	expected   jwt.Expected
	algs       []string
	refresh    time.Duration
	now        func() time.Time
	newBackOff func() backoff.BackOff

	group   singleflight.Group
	mu      sync.Mutex
	keys    *jose.JSONWebKeySet
	fetched time.Time
}

// NewDirect creates a new JWKS verifier. Empty issuer or audience values are
// not checked.
func NewDirect(jwksURL *url.URL, issuer, audience string) (*Direct, error) {
	if jwksURL == nil {
		return nil, fmt.Errorf("JWKS URL cannot be nil")
	}

	if jwksURL.Scheme != "https" && jwksURL.Scheme != "http" {
		return nil, fmt.Errorf("JWKS URL must use http or https scheme, got: %s", jwksURL.Scheme)
	}

	exp := jwt.Expected{Issuer: issuer}
	if audience != "" {
		exp.Audience = jwt.Audience{audience}
	}
	return &Direct{
		jwksURL:    jwksURL,
		httpClient: &http.Client{Timeout: static.JWKSFetchTimeout},
		expected:   exp,
		algs:       static.AllowedAlgs,
		refresh:    static.JWKSRefreshInterval,
		now:        time.Now,
		newBackOff: newBackOff,
	}, nil
}

// Verify checks the token signature against the JWKS and validates the
// standard claims.
func (v *Direct) Verify(ctx context.Context, token string) (*auth.Claims, error) {
	tok, err := jwt.ParseSigned(token)
	if err != nil {
		return nil, fmt.Errorf("failed to parse JWT: %w", err)
	}
	if len(tok.Headers) == 0 {
		return nil, errors.New("JWT has no signature headers")
	}
	if err := checkAlg(tok.Headers[0].Algorithm, v.algs); err != nil {
		return nil, err
	}

	jwks, err := v.keySet(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch JWKS: %w", err)
	}

	claims, err := v.verifyAndExtractClaims(tok, jwks)
	if err != nil {
		return nil, fmt.Errorf("JWT verification failed for JWKS %s: %w", v.jwksURL.String(), err)
	}

	log.WithFields(log.Fields{
		"mode": v.Mode(),
	}).Debug("JWT verified successfully with JWKS")

	return auth.ClaimsFromMap(claims), nil
}

const jwksFlight = "jwks"

// keySet returns the cached JWKS. Only the first fetch waits for the
// network; later refreshes happen in the background. Concurrent callers
// share a single fetch.
func (v *Direct) keySet(ctx context.Context) (*jose.JSONWebKeySet, error) {
	v.mu.Lock()
	keys, fetched := v.keys, v.fetched
	v.mu.Unlock()

	if keys != nil && v.now().Sub(fetched) < v.refresh {
		return keys, nil
	}

	// The fetch outlives any one caller; it is bounded by the HTTP client
	// timeout and the backoff policy.
	fetchCtx := context.WithoutCancel(ctx)
	ch := v.group.DoChan(jwksFlight, func() (interface{}, error) {
		return v.update(fetchCtx)
	})
	if keys != nil {
		return keys, nil
	}

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*jose.JSONWebKeySet), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// update fetches the JWKS and stores it. A failed refresh keeps the previous
// keys and is not retried until the next interval.
func (v *Direct) update(ctx context.Context) (*jose.JSONWebKeySet, error) {
	v.mu.Lock()
	if v.keys != nil && v.now().Sub(v.fetched) < v.refresh {
		keys := v.keys
		v.mu.Unlock()
		return keys, nil
	}
	v.mu.Unlock()

	jwks, err := v.fetchJWKS(ctx)

	v.mu.Lock()
	defer v.mu.Unlock()
	if err != nil {
		metrics.JWKSFetchTotal.WithLabelValues("error").Inc()
		if v.keys == nil {
			return nil, err
		}
		v.fetched = v.now()
		log.WithError(err).WithField("url", v.jwksURL.String()).Warn("JWKS refresh failed, using previous keys")
		return v.keys, nil
	}
	metrics.JWKSFetchTotal.WithLabelValues("OK").Inc()
	if v.keys != nil && !cmp.Equal(keyIDs(v.keys), keyIDs(jwks)) {
		log.WithFields(log.Fields{
			"url":  v.jwksURL.String(),
			"was":  keyIDs(v.keys),
			"kids": keyIDs(jwks),
		}).Info("JWKS keys rotated")
	}
	v.keys = jwks
	v.fetched = v.now()
	return jwks, nil
}

func keyIDs(jwks *jose.JSONWebKeySet) []string {
	kids := make([]string, 0, len(jwks.Keys))
	for _, k := range jwks.Keys {
		kids = append(kids, k.KeyID)
	}
	return kids
}

// fetchJWKS fetches the JSON Web Key Set, retrying transient failures.
func (v *Direct) fetchJWKS(ctx context.Context) (*jose.JSONWebKeySet, error) {
	var jwks *jose.JSONWebKeySet
	op := func() error {
		var err error
		jwks, err = v.fetchOnce(ctx)
		return err
	}
	if err := backoff.Retry(op, backoff.WithContext(v.newBackOff(), ctx)); err != nil {
		return nil, err
	}
	return jwks, nil
}

func (v *Direct) fetchOnce(ctx context.Context) (*jose.JSONWebKeySet, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.jwksURL.String(), nil)
	if err != nil {
		return nil, backoff.Permanent(err)
	}
	resp, err := v.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP request to JWKS URL failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("JWKS endpoint returned status %d", resp.StatusCode)
		if resp.StatusCode < http.StatusInternalServerError && resp.StatusCode != http.StatusTooManyRequests {
			return nil, backoff.Permanent(err)
		}
		return nil, err
	}

	var jwks jose.JSONWebKeySet
	if err := json.NewDecoder(resp.Body).Decode(&jwks); err != nil {
		return nil, backoff.Permanent(fmt.Errorf("failed to parse JWKS JSON: %w", err))
	}

	if len(jwks.Keys) == 0 {
		return nil, backoff.Permanent(fmt.Errorf("JWKS contains no keys"))
	}

	return &jwks, nil
}

// verifyAndExtractClaims verifies the JWT signature using keys from JWKS
// and extracts the claims. Keys matching the token's kid are tried first.
func (v *Direct) verifyAndExtractClaims(token *jwt.JSONWebToken, jwks *jose.JSONWebKeySet) (map[string]interface{}, error) {
	keys := jwks.Keys
	if kid := token.Headers[0].KeyID; kid != "" {
		if matched := jwks.Key(kid); len(matched) > 0 {
			keys = matched
		}
	}

	var lastErr error
	for i, key := range keys {
		var claims map[string]interface{}
		var jwtClaims jwt.Claims
		err := token.Claims(key, &claims, &jwtClaims)
		if err == nil {
			exp := v.expected
			exp.Time = v.now()
			if err := jwtClaims.Validate(exp); err != nil {
				return nil, fmt.Errorf("JWT claims validation failed: %w", err)
			}

			log.WithFields(log.Fields{
				"key_id":    key.KeyID,
				"key_index": i,
			}).Debug("JWT verified with JWKS key")

			return claims, nil
		}
		lastErr = err
	}

	return nil, fmt.Errorf("failed to verify JWT with any key in JWKS (tried %d keys): %w", len(keys), lastErr)
}

// Mode returns the verification mode name.
func (v *Direct) Mode() string {
	return "jwks"
}
