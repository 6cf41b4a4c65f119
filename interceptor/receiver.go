package interceptor

import (
	"fmt"
	"net/http"

	"github.com/m-lab/authgate/auth"
)

// RequestContext exposes the inbound request to the interceptor.
type RequestContext interface {
	// Header returns the first value of the named header and whether the
	// header was present at all.
	Header(name string) (string, bool)
}

// HasRequestContext is implemented by receivers whose methods may be
// decorated. The returned RequestContext must describe the current request.
type HasRequestContext interface {
	RequestContext() RequestContext
}

// HasCredentialVerifier is implemented by receivers whose methods may be
// decorated.
type HasCredentialVerifier interface {
	CredentialVerifier() auth.Verifier
}

// HeaderContext adapts an http.Header to RequestContext.
type HeaderContext http.Header

// Header returns the first value of the canonicalized header name.
func (h HeaderContext) Header(name string) (string, bool) {
	v := http.Header(h).Values(name)
	if len(v) == 0 {
		return "", false
	}
	return v[0], true
}

// resolveCollaborators finds the request context and verifier on recv. A
// receiver that does not provide both is a configuration error.
func resolveCollaborators(recv interface{}) (RequestContext, auth.Verifier, error) {
	if isNil(recv) {
		return nil, nil, configErr("receiver %T is nil", recv)
	}
	hrc, ok := recv.(HasRequestContext)
	if !ok {
		return nil, nil, configErr("receiver %T does not provide a request context", recv)
	}
	hv, ok := recv.(HasCredentialVerifier)
	if !ok {
		return nil, nil, configErr("receiver %T does not provide a credential verifier", recv)
	}
	rc := hrc.RequestContext()
	if isNil(rc) {
		return nil, nil, configErr("receiver %T returned a nil request context", recv)
	}
	v := hv.CredentialVerifier()
	if isNil(v) {
		return nil, nil, configErr("receiver %T returned a nil credential verifier", recv)
	}
	return rc, v, nil
}

func configErr(format string, args ...interface{}) error {
	return auth.NewError(auth.ConfigurationError, auth.MessageConfiguration, fmt.Errorf(format, args...))
}
