// Package transport is the single outbound HTTP path used by goIdentity.
//
// Every network call the engine makes (JWK and certificate downloads, token
// endpoint exchanges, Identity Toolkit requests) goes through a [Client]
// wrapping an injectable [Doer]. Non-2xx responses are decoded into an
// [*APIError] that preserves the upstream code and message.
//
// # What this package must NOT do
//
//   - Retry requests. Retries belong to the caller.
//   - Log request or response bodies (they carry credentials).
//   - Import goIdentity or any sibling package.
package transport
