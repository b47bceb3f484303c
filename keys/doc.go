// Package keys caches the RSA public keys used to verify identity tokens and
// session cookies.
//
// # Design
//
// Each key space ([SpaceIDToken], [SpaceSessionCookie]) owns its own [Source]
// and its own cached [Set]. A set is built completely from one fetch and then
// published with an atomic pointer swap, so concurrent readers see either the
// previous set or the next one, never a partially populated map.
//
// An unknown key id always triggers exactly one refetch of that space before
// the lookup fails. There is no TTL and no background refresh; staleness is
// resolved lazily on the next miss.
//
// # What this package must NOT do
//
//   - Merge keys from different spaces into one cache.
//   - Retry a failed fetch within the same lookup.
package keys
