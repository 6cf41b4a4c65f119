// Package handler serves controller methods over HTTP behind the bearer
// authentication gate.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/m-lab/go/rtx"
	log "github.com/sirupsen/logrus"

	v1 "github.com/m-lab/authgate/api/v1"
	"github.com/m-lab/authgate/auth"
	"github.com/m-lab/authgate/interceptor"
)

const (
	gateOwner   = "Gate"
	limitMethod = "Limit"
)

// HandlerFunc is a controller method served by a Gate. A non-nil result is
// written as JSON with status 200.
type HandlerFunc func(c *Call) (interface{}, error)

// Call is the receiver of one HTTP request. Each request gets its own Call,
// so methods may inject claims into its Claims field.
type Call struct {
	Writer  http.ResponseWriter
	Request *http.Request
	Claims  *auth.Claims

	verifier auth.Verifier
}

// RequestContext exposes the request headers to the gate.
func (c *Call) RequestContext() interceptor.RequestContext {
	return interceptor.HeaderContext(c.Request.Header)
}

// CredentialVerifier returns the verifier of the Gate serving the call.
func (c *Call) CredentialVerifier() auth.Verifier {
	return c.verifier
}

// Gate adapts registered controller methods to http.Handlers.
type Gate struct {
	registry *interceptor.Registry
	verifier auth.Verifier
	realm    string
}

// NewGate creates a Gate whose calls verify tokens with v. A nil v is
// allowed; authenticated methods then fail with a configuration error.
func NewGate(reg *interceptor.Registry, v auth.Verifier, realm string) *Gate {
	return &Gate{
		registry: reg,
		verifier: v,
		realm:    realm,
	}
}

// Handle returns an http.Handler for owner.method. When the registry marks
// the method as authenticated, every request must carry a valid bearer token.
func (g *Gate) Handle(owner, method string, fn HandlerFunc) http.Handler {
	m := g.registry.Decorate(owner, method, func(ctx context.Context, recv interface{}, args []interface{}) (interface{}, error) {
		c := recv.(*Call)
		c.Request = c.Request.WithContext(ctx)
		return fn(c)
	})
	return http.HandlerFunc(func(rw http.ResponseWriter, req *http.Request) {
		c := g.newCall(rw, req)
		result, err := m(req.Context(), c, nil)
		setHeaders(rw)
		if err != nil {
			g.writeError(rw, req, err)
			return
		}
		if result == nil {
			rw.WriteHeader(http.StatusNoContent)
			return
		}
		writeResult(rw, http.StatusOK, result)
	})
}

// Limit is middleware that requires a valid bearer token for every request.
// The claims are available to next through auth.FromContext.
func (g *Gate) Limit(next http.Handler) http.Handler {
	g.registry.RequireAuth(gateOwner, limitMethod)
	m := g.registry.Decorate(gateOwner, limitMethod, func(ctx context.Context, recv interface{}, args []interface{}) (interface{}, error) {
		c := recv.(*Call)
		next.ServeHTTP(c.Writer, c.Request.WithContext(ctx))
		return nil, nil
	})
	return http.HandlerFunc(func(rw http.ResponseWriter, req *http.Request) {
		if _, err := m(req.Context(), g.newCall(rw, req), nil); err != nil {
			setHeaders(rw)
			g.writeError(rw, req, err)
		}
	})
}

func (g *Gate) newCall(rw http.ResponseWriter, req *http.Request) *Call {
	return &Call{Writer: rw, Request: req, verifier: g.verifier}
}

// writeError writes err as a problem details document. Only the categorized
// message is sent; causes stay in the logs.
func (g *Gate) writeError(rw http.ResponseWriter, req *http.Request, err error) {
	status := auth.StatusOf(err)
	typ, title := "internal_error", http.StatusText(status)

	var ae *auth.Error
	if errors.As(err, &ae) {
		typ, title = ae.Kind.String(), ae.Message
	} else {
		log.WithError(err).WithField("path", req.URL.Path).Error("handler failed")
	}

	if status == http.StatusUnauthorized {
		challenge := fmt.Sprintf("Bearer realm=%q", g.realm)
		if ae.Kind == auth.InvalidCredential {
			challenge += `, error="invalid_token"`
		}
		rw.Header().Set("WWW-Authenticate", challenge)
	}

	result := v1.ErrorResult{Error: v1.NewError(typ, title, status)}
	result.Error.Instance = req.URL.Path
	writeResult(rw, status, &result)
}

// Live is a minimal handler to indicate that the server is operating at all.
func Live(rw http.ResponseWriter, req *http.Request) {
	fmt.Fprintf(rw, "ok")
}

func setHeaders(rw http.ResponseWriter) {
	rw.Header().Set("Access-Control-Allow-Origin", "*")
	// Responses depend on the caller's credentials.
	rw.Header().Set("Cache-Control", "no-store")
}

// writeResult marshals the result and writes the result to the response writer.
func writeResult(rw http.ResponseWriter, status int, result interface{}) {
	b, err := json.MarshalIndent(result, "", "  ")
	// Errors are only possible when marshalling incompatible types, like functions.
	rtx.PanicOnError(err, "Failed to format result")
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(status)
	rw.Write(b)
}
