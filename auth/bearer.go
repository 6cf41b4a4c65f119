package auth

import (
	"errors"
	"strings"

	"github.com/m-lab/authgate/static"
)

var (
	errMissingHeader = errors.New("authorization header not found")
	errBadFormat     = errors.New("authorization header must be in format: Bearer <token>")
)

// BearerToken extracts the token from an Authorization header value. The
// header must be exactly "Bearer <token>": the scheme is case-sensitive, the
// value splits on single spaces into exactly two segments, and the token is
// non-empty. Failures are AuthenticationRequired errors.
func BearerToken(header string, present bool) (string, error) {
	if !present || header == "" {
		return "", NewError(AuthenticationRequired, MessageAuthenticationRequired, errMissingHeader)
	}
	if !strings.HasPrefix(header, static.BearerScheme+" ") {
		return "", NewError(AuthenticationRequired, MessageAuthenticationRequired, errBadFormat)
	}
	parts := strings.Split(header, " ")
	if len(parts) != 2 || parts[1] == "" {
		return "", NewError(AuthenticationRequired, MessageAuthenticationRequired, errBadFormat)
	}
	return parts[1], nil
}
