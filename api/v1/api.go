// Package v1 defines the JSON responses of the authgate v1 API.
package v1

// Error describes an error condition that prevents the server from completing
// a request.
type Error struct {
	// RFC7807 Fields for "Problem Details".
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail,omitempty"`
	Instance string `json:"instance,omitempty"`
}

// NewError creates a new api Error.
func NewError(typ, title string, status int) *Error {
	return &Error{
		Type:   typ,
		Title:  title,
		Status: status,
	}
}

// ErrorResult is the response body of every rejected request.
type ErrorResult struct {
	Error *Error `json:"error"`
}

// IdentityResult describes the authenticated caller.
type IdentityResult struct {
	// Error contains information about request failures.
	Error *Error `json:"error,omitempty"`

	Subject  string `json:"subject,omitempty"`
	UID      string `json:"uid,omitempty"`
	Issuer   string `json:"issuer,omitempty"`
	Audience string `json:"audience,omitempty"`
	IssuedAt int64  `json:"issued_at,omitempty"`
	Expiry   int64  `json:"expiry,omitempty"`

	// Claims holds every claim of the verified token.
	Claims map[string]interface{} `json:"claims,omitempty"`
}

// PrivateResult is returned by resources behind the authentication
// middleware.
type PrivateResult struct {
	Error   *Error `json:"error,omitempty"`
	Path    string `json:"path,omitempty"`
	Subject string `json:"subject,omitempty"`
}
