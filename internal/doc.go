// Package internal groups the engine's private sub-packages.
//
//   - audit: async event dispatch and sinks
//   - flows: session, login, revocation and access-token state machines
//   - rate: Redis fixed-window throttles for refresh and code exchange
//   - stores: admin access token cache (Redis or memory)
//
// # What this package must NOT do
//
//   - Export types that appear in the public goIdentity API.
package internal
