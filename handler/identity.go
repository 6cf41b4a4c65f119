package handler

import (
	"errors"
	"net/http"

	v1 "github.com/m-lab/authgate/api/v1"
	"github.com/m-lab/authgate/auth"
	"github.com/m-lab/authgate/interceptor"
)

// Identity reports the authenticated caller.
type Identity struct{}

// Register declares WhoAmI as authenticated, with claims injected into the
// call's Claims field.
func (i *Identity) Register(reg *interceptor.Registry) error {
	return reg.MarkInjectionTarget("Identity", "WhoAmI", interceptor.FieldTarget("Claims"))
}

// WhoAmI returns the verified claims of the caller.
func (i *Identity) WhoAmI(c *Call) (interface{}, error) {
	cl := c.Claims
	if cl == nil {
		return nil, auth.NewError(auth.ConfigurationError, auth.MessageConfiguration,
			errors.New("WhoAmI served without authentication"))
	}
	return &v1.IdentityResult{
		Subject:  cl.Subject,
		UID:      cl.UID,
		Issuer:   cl.Issuer,
		Audience: cl.Audience,
		IssuedAt: cl.IssuedAt,
		Expiry:   cl.Expiry,
		Claims:   cl.Payload,
	}, nil
}

// Private echoes the requested path and the caller's subject. It must be
// served behind Gate.Limit.
func Private(rw http.ResponseWriter, req *http.Request) {
	setHeaders(rw)
	cl := auth.FromContext(req.Context())
	if cl == nil {
		result := v1.PrivateResult{Error: v1.NewError("internal_error", auth.MessageConfiguration, http.StatusInternalServerError)}
		writeResult(rw, http.StatusInternalServerError, &result)
		return
	}
	writeResult(rw, http.StatusOK, &v1.PrivateResult{Path: req.URL.Path, Subject: cl.Subject})
}
