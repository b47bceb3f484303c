// Package flows contains the orchestration behind every Engine operation
// that crosses more than one component.
//
// Each flow function (RunCurrentUser, RunEstablishSession, RunCheckRevoked,
// RunAccessToken) accepts a typed dependency struct and returns a result
// struct with an explicit failure kind. Flows never panic and never return
// bare errors; the root package maps failure kinds to sentinel errors,
// metrics and audit events.
//
// # Architecture boundaries
//
// Flow functions coordinate the verifier, identity-service client, rate
// limiter and access-token cache. They do NOT own any of these resources;
// ownership stays with the Engine.
//
// # What this package must NOT do
//
//   - Hold mutable state between calls.
//   - Import goIdentity (to avoid import cycles).
//   - Perform I/O directly. All I/O is mediated through dependency funcs.
package flows
