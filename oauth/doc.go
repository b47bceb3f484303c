// Package oauth turns a provider authorization code into a first-party
// session token pair in two hops: code to provider id token, then provider
// id token to identity-service tokens.
//
// # Architecture boundaries
//
// The package owns the provider side (auth URL, login state, code
// exchange). The identity-service hop is delegated to an [IdentityService],
// normally *idtoolkit.Client.
//
// # What this package must NOT do
//
//   - Retry a failed hop.
//   - Verify the resulting id token; the caller does that.
package oauth
