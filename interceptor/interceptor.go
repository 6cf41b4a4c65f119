package interceptor

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/m-lab/authgate/auth"
	"github.com/m-lab/authgate/auth/jwtverifier"
	"github.com/m-lab/authgate/metrics"
	"github.com/m-lab/authgate/static"
)

// Method is the uniform shape of an interceptable controller method: a
// receiver and its positional arguments.
type Method func(ctx context.Context, recv interface{}, args []interface{}) (interface{}, error)

// Option configures the gate applied by Wrap.
type Option func(*config)

type config struct {
	timeout time.Duration
	expiry  bool
	leeway  time.Duration
	now     func() time.Time
	logger  *log.Entry
}

// WithVerifyTimeout bounds each verifier call. A timeout is reported as an
// invalid credential.
func WithVerifyTimeout(d time.Duration) Option {
	return func(c *config) { c.timeout = d }
}

// WithExpiryEnforcement rejects claims whose non-zero Expiry is more than
// leeway in the past, whatever the verifier decided.
func WithExpiryEnforcement(leeway time.Duration) Option {
	return func(c *config) {
		c.expiry = true
		c.leeway = leeway
	}
}

// WithClock sets the time source used for expiry enforcement.
func WithClock(now func() time.Time) Option {
	return func(c *config) { c.now = now }
}

// WithLogger sets the base log entry.
func WithLogger(l *log.Entry) Option {
	return func(c *config) { c.logger = l }
}

func newConfig(opts []Option) *config {
	c := &config{
		now:    time.Now,
		logger: log.NewEntry(log.StandardLogger()),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Wrap returns a Method that authenticates every invocation before calling m.
//
// The receiver must implement HasRequestContext and HasCredentialVerifier.
// The bearer token from the Authorization header is verified, the claims are
// written to d.Target if one is declared, and m is called with a context
// carrying the claims (see auth.FromContext). Every failure is returned as an
// *auth.Error and m is not called.
func Wrap(d Descriptor, m Method, opts ...Option) Method {
	cfg := newConfig(opts)
	return func(ctx context.Context, recv interface{}, args []interface{}) (interface{}, error) {
		l := cfg.logger.WithFields(log.Fields{
			"owner":      d.Owner,
			"method":     d.Method,
			"invocation": uuid.NewString(),
		})

		cl, err := cfg.authenticate(ctx, recv)
		if err == nil {
			args, err = inject(recv, args, d.Target, cl)
		}
		if err != nil {
			reject(l, d, err)
			return nil, err
		}

		metrics.InvocationsTotal.WithLabelValues(d.Owner, d.Method, "ok").Inc()
		l.WithField("sub", cl.Subject).Debug("authenticated")
		return m(auth.NewContext(ctx, cl), recv, args)
	}
}

// authenticate resolves the receiver's collaborators, extracts the token and
// verifies it.
func (c *config) authenticate(ctx context.Context, recv interface{}) (*auth.Claims, error) {
	rc, v, err := resolveCollaborators(recv)
	if err != nil {
		return nil, err
	}
	tok, err := auth.BearerToken(rc.Header(static.AuthorizationHeader))
	if err != nil {
		return nil, err
	}
	return c.verify(ctx, v, tok)
}

func (c *config) verify(ctx context.Context, v auth.Verifier, tok string) (*auth.Claims, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	mode := jwtverifier.ModeOf(v)
	start := time.Now()
	cl, err := v.Verify(ctx, tok)
	if err == nil && cl == nil {
		err = fmt.Errorf("verifier returned no claims")
	}
	if err != nil {
		metrics.VerifyDuration.WithLabelValues(mode, "error").Observe(time.Since(start).Seconds())
		return nil, auth.NewError(auth.InvalidCredential, auth.MessageInvalidCredential, err)
	}
	metrics.VerifyDuration.WithLabelValues(mode, "ok").Observe(time.Since(start).Seconds())

	if c.expiry && cl.Expiry != 0 {
		exp := time.Unix(cl.Expiry, 0)
		if c.now().After(exp.Add(c.leeway)) {
			return nil, auth.NewError(auth.InvalidCredential, auth.MessageInvalidCredential,
				fmt.Errorf("token expired at %s", exp.UTC().Format(time.RFC3339)))
		}
	}
	return cl, nil
}

func reject(l *log.Entry, d Descriptor, err error) {
	kind := auth.KindOf(err)
	metrics.InvocationsTotal.WithLabelValues(d.Owner, d.Method, kind.String()).Inc()
	l = l.WithFields(log.Fields{"kind": kind.String(), "error": err.Error()})
	switch kind {
	case auth.ConfigurationError:
		l.Error("authentication gate is misconfigured")
	case auth.InvalidCredential:
		l.Info("rejected invalid credential")
	default:
		l.Debug("rejected request without bearer token")
	}
}
