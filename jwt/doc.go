// Package jwt verifies RS256 identity tokens and session cookies against
// rotating provider keys, and signs service assertions and custom tokens
// with a service-account key.
//
// # Verification order
//
// Header (kid, alg), key resolution, signature, then claims. Expiry is
// reported as [ErrTokenExpired] so callers can tell a refreshable token from
// a forged one; every other claim failure is [ErrClaimInvalid].
//
// # What this package must NOT do
//
//   - Accept any algorithm other than RS256.
//   - Cache verified tokens.
//   - Perform network calls other than through the KeyResolver.
package jwt
