// Package auth defines the credential types shared by the authentication
// gate and its verifier backends.
//
// A Verifier turns a bearer token string into Claims or fails. The gate
// (package interceptor) is responsible for extracting the token from the
// request and for classifying failures; this package provides the Error type
// used for that classification:
//
//	ConfigurationError      the receiver was not wired correctly (500)
//	AuthenticationRequired  no syntactically valid bearer token (401)
//	InvalidCredential       the verifier rejected the token (401)
//
// Use errors.Is with ErrConfiguration, ErrAuthenticationRequired or
// ErrInvalidCredential, or KindOf and StatusOf, to tell them apart.
//
// Verified claims travel with the request context:
//
//	cl := auth.FromContext(ctx)
//	if cl == nil { /* not authenticated */ }
package auth
