// Package interceptor wraps controller methods with a bearer-token
// authentication gate.
//
// Methods are declared once, typically at startup:
//
//	reg := interceptor.NewRegistry(interceptor.WithVerifyTimeout(5 * time.Second))
//	reg.RequireAuth("Profile", "Get")
//	err := reg.MarkInjectionTarget("Profile", "Get", interceptor.FieldTarget("Claims"))
//	get := reg.Decorate("Profile", "Get", profileGet)
//
// Each call of the decorated method runs these stages in order and stops at
// the first failure:
//
//	resolve collaborators  receiver implements HasRequestContext and
//	                       HasCredentialVerifier, else ConfigurationError
//	extract token          "Authorization: Bearer <token>", else
//	                       AuthenticationRequired
//	verify                 verifier accepts the token, else InvalidCredential
//	inject                 claims written to the declared target
//	invoke                 original method, its result returned as is
//
// A method has at most one injection target, either a receiver field (written
// through in place) or a positional argument (replaced). Declaring a second target
// is an error.
package interceptor
