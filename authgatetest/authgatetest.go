// Package authgatetest provides fakes and a test server for code that talks
// to the authgate API.
package authgatetest

import (
	"context"
	"errors"
	"log"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"

	"github.com/justinas/alice"

	"github.com/m-lab/authgate/auth"
	"github.com/m-lab/authgate/handler"
	"github.com/m-lab/authgate/interceptor"
)

// ErrUnknownToken is returned by Verifier for tokens it was not given.
var ErrUnknownToken = errors.New("unknown token")

// Verifier is a fake auth.Verifier that accepts a fixed set of tokens.
type Verifier struct {
	// Tokens maps accepted tokens to their claims.
	Tokens map[string]*auth.Claims
	// Err, when set, is returned for every token.
	Err error

	mu    sync.Mutex
	calls int64
	seen  []string
}

// Verify returns a copy of the configured claims for token, or Err.
func (v *Verifier) Verify(ctx context.Context, token string) (*auth.Claims, error) {
	atomic.AddInt64(&v.calls, 1)
	v.mu.Lock()
	v.seen = append(v.seen, token)
	v.mu.Unlock()

	if v.Err != nil {
		return nil, v.Err
	}
	cl, ok := v.Tokens[token]
	if !ok {
		return nil, ErrUnknownToken
	}
	return cl.Clone(), nil
}

// Mode returns the verification mode name.
func (v *Verifier) Mode() string {
	return "fake"
}

// Calls returns the number of Verify calls.
func (v *Verifier) Calls() int {
	return int(atomic.LoadInt64(&v.calls))
}

// Seen returns the tokens passed to Verify, in order.
func (v *Verifier) Seen() []string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]string(nil), v.seen...)
}

// NewServer creates an httptest.Server serving the authgate v1 API with the
// given verifier. Useful for unit testing.
func NewServer(v auth.Verifier) *httptest.Server {
	reg := interceptor.NewRegistry()
	id := &handler.Identity{}
	if err := id.Register(reg); err != nil {
		panic(err)
	}
	g := handler.NewGate(reg, v, "authgatetest")

	mux := http.NewServeMux()
	mux.Handle("/v1/whoami", g.Handle("Identity", "WhoAmI", id.WhoAmI))
	mux.Handle("/v1/private/", alice.New(g.Limit).ThenFunc(handler.Private))
	mux.HandleFunc("/v1/live", handler.Live)

	srv := httptest.NewServer(mux)
	log.Println("Listening for INSECURE authgate requests on " + srv.URL)
	return srv
}
