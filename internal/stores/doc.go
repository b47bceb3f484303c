// Package stores caches the admin access token minted from the service
// account, either in Redis (shared across replicas) or in process memory.
//
// # Design
//
// A cached token is a versioned, binary-encoded record holding the token and
// its absolute expiry. Redis entries also carry a TTL so stale tokens vanish
// on their own. Readers treat an expired or undecodable record as a miss.
//
// # What this package must NOT do
//
//   - Import goIdentity or any sibling internal package.
//   - Log token values.
package stores
