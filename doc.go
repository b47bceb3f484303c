// Package goIdentity is a token lifecycle engine for applications that sign
// users in through an identity provider and a token-issuing identity service.
//
// It verifies RS256 id tokens and session cookies against published signing
// keys, refreshes expired id tokens, exchanges OAuth authorization codes for
// sessions, and signs service assertions and custom sign-in tokens.
//
// Engine methods are safe for concurrent use after [Builder.Build].
//
// # Architecture boundaries
//
// goIdentity is the public surface: [Engine], [Builder], [Config], value
// types and re-exported sentinel errors. Verification and signing live in
// jwt, key caching in keys, the code exchange in oauth, identity service
// calls in idtoolkit. Session state transitions run in internal/flows.
//
// # What this package must NOT do
//
//   - Store tokens. Callers persist the pairs the engine returns, through a
//     [TokenStore] or their own plumbing.
//   - Log or audit token values.
//   - Retry failed network calls or refresh keys in the background.
package goIdentity
