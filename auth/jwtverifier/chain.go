package jwtverifier

import (
	"context"
	"errors"
	"fmt"

	"github.com/hashicorp/go-multierror"

	"github.com/m-lab/authgate/auth"
)

// Chain tries each verifier in order and returns the first success. When
// all fail, the returned error lists every failure.
type Chain []auth.Verifier

// Verify implements auth.Verifier.
func (c Chain) Verify(ctx context.Context, token string) (*auth.Claims, error) {
	if len(c) == 0 {
		return nil, errors.New("no verifiers configured")
	}
	var errs *multierror.Error
	for _, v := range c {
		cl, err := v.Verify(ctx, token)
		if err == nil && cl != nil {
			return cl, nil
		}
		if err == nil {
			err = errors.New("verifier returned no claims")
		}
		errs = multierror.Append(errs, fmt.Errorf("%s: %w", ModeOf(v), err))
		if ctx.Err() != nil {
			break
		}
	}
	return nil, errs.ErrorOrNil()
}

// Mode returns the verification mode name.
func (c Chain) Mode() string {
	return "chain"
}
